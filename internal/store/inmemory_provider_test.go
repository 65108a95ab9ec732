package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/db_model"
)

func TestInMemoryProvider_Snapshots(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryProvider()

	content := []byte(`[{"id":1,"items":[]}]`)
	id, err := m.CreateSnapshot(ctx, &db_model.ModuleSnapshot{Teacher: "Ada", Course: "Physics", Content: content})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	// the store keeps its own copy
	content[0] = '{'
	got, err := m.GetSnapshotByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, `[{"id":1,"items":[]}]`, string(got.Content))

	_, err = m.CreateSnapshot(ctx, &db_model.ModuleSnapshot{Teacher: "Ada", Course: "Physics"})
	require.True(t, errors.Is(err, apperrors.ErrDuplicate))

	found, err := m.FindSnapshotByTeacherAndCourse(ctx, "Ada", "Physics")
	require.NoError(t, err)
	require.Equal(t, id, found.ID)

	require.NoError(t, m.UpdateSnapshotContent(ctx, id, []byte(`[]`)))
	got, _ = m.GetSnapshotByID(ctx, id)
	require.Equal(t, `[]`, string(got.Content))

	require.True(t, errors.Is(m.UpdateSnapshotContent(ctx, 99, nil), apperrors.ErrNotFound))

	require.NoError(t, m.DeleteSnapshot(ctx, id))
	got, err = m.GetSnapshotByID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestInMemoryProvider_PurgeEmptySetIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryProvider()
	require.NoError(t, m.InsertPage(ctx, 1, "a", "Page", ""))
	require.NoError(t, m.InsertFile(ctx, 1, "f", "https://dl/f"))

	require.NoError(t, m.DeletePagesAndFilesByItemIDs(ctx, nil))

	pages, _ := m.ListPagesByItemID(ctx, 1)
	files, _ := m.ListFilesByItemID(ctx, 1)
	require.Len(t, pages, 1)
	require.Len(t, files, 1)

	require.NoError(t, m.DeletePagesAndFilesByItemIDs(ctx, []int64{1}))
	pages, _ = m.ListPagesByItemID(ctx, 1)
	files, _ = m.ListFilesByItemID(ctx, 1)
	require.Empty(t, pages)
	require.Empty(t, files)
}

func TestInMemoryProvider_ListOrdered(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryProvider()
	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, m.InsertPage(ctx, 4, title, "Page", ""))
	}
	pages, err := m.ListPagesByItemID(ctx, 4)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, "one", pages[0].Title)
	require.Equal(t, "three", pages[2].Title)
}
