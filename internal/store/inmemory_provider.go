package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/db_model"
)

type InMemoryProvider struct {
	mu         sync.RWMutex
	snapshots  map[int64]db_model.ModuleSnapshot
	pages      map[int64]db_model.PageRecord
	files      map[int64]db_model.FileRecord
	nextID     int64
	nextPageID int64
	nextFileID int64
	now        func() time.Time
}

var _ SnapshotStore = (*InMemoryProvider)(nil)

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		snapshots:  make(map[int64]db_model.ModuleSnapshot),
		pages:      make(map[int64]db_model.PageRecord),
		files:      make(map[int64]db_model.FileRecord),
		nextID:     1,
		nextPageID: 1,
		nextFileID: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *InMemoryProvider) CreateSnapshot(ctx context.Context, snapshot *db_model.ModuleSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.Teacher == snapshot.Teacher && s.Course == snapshot.Course {
			return 0, apperrors.NewDuplicateError("Module already exists for this teacher and course.")
		}
	}
	rec := *snapshot
	rec.ID = m.nextID
	rec.Content = append([]byte(nil), snapshot.Content...)
	rec.CreatedAt = m.now()
	rec.UpdatedAt = rec.CreatedAt
	m.snapshots[rec.ID] = rec
	m.nextID++
	return rec.ID, nil
}

func (m *InMemoryProvider) FindSnapshotByTeacherAndCourse(ctx context.Context, teacher, course string) (*db_model.ModuleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots {
		if s.Teacher == teacher && s.Course == course {
			return copySnapshot(s), nil
		}
	}
	return nil, nil
}

func (m *InMemoryProvider) GetSnapshotByID(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil, nil
	}
	return copySnapshot(s), nil
}

func (m *InMemoryProvider) UpdateSnapshotContent(ctx context.Context, id int64, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return apperrors.NewNotFoundError("No module found with this id.")
	}
	s.Content = append([]byte(nil), content...)
	s.UpdatedAt = m.now()
	m.snapshots[id] = s
	return nil
}

func (m *InMemoryProvider) DeleteSnapshot(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, id)
	return nil
}

func (m *InMemoryProvider) InsertPage(ctx context.Context, itemID int64, title, pageType, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[m.nextPageID] = db_model.PageRecord{
		ID:        m.nextPageID,
		ModuleID:  itemID,
		Title:     title,
		Type:      pageType,
		Content:   body,
		CreatedAt: m.now(),
	}
	m.nextPageID++
	return nil
}

func (m *InMemoryProvider) InsertFile(ctx context.Context, itemID int64, title, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[m.nextFileID] = db_model.FileRecord{
		ID:        m.nextFileID,
		PageID:    itemID,
		Title:     title,
		File:      url,
		CreatedAt: m.now(),
	}
	m.nextFileID++
	return nil
}

func (m *InMemoryProvider) DeletePagesAndFilesByItemIDs(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	stale := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		stale[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.files {
		if _, ok := stale[f.PageID]; ok {
			delete(m.files, id)
		}
	}
	for id, p := range m.pages {
		if _, ok := stale[p.ModuleID]; ok {
			delete(m.pages, id)
		}
	}
	return nil
}

func (m *InMemoryProvider) ListPagesByItemID(ctx context.Context, itemID int64) ([]db_model.PageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]db_model.PageRecord, 0)
	for _, p := range m.pages {
		if p.ModuleID == itemID {
			records = append(records, p)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *InMemoryProvider) ListFilesByItemID(ctx context.Context, itemID int64) ([]db_model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]db_model.FileRecord, 0)
	for _, f := range m.files {
		if f.PageID == itemID {
			records = append(records, f)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *InMemoryProvider) Close() error {
	return nil
}

func copySnapshot(s db_model.ModuleSnapshot) *db_model.ModuleSnapshot {
	s.Content = append([]byte(nil), s.Content...)
	return &s
}
