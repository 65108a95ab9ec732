package store

import (
	"context"

	"github.com/shaibs3/canvascache/internal/db_model"
)

// SnapshotStore persists module snapshots and the page and file rows hanging off their items.
// Lookups that find nothing return a nil record and a nil error.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot *db_model.ModuleSnapshot) (int64, error)
	FindSnapshotByTeacherAndCourse(ctx context.Context, teacher, course string) (*db_model.ModuleSnapshot, error)
	GetSnapshotByID(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error)
	UpdateSnapshotContent(ctx context.Context, id int64, content []byte) error
	DeleteSnapshot(ctx context.Context, id int64) error

	InsertPage(ctx context.Context, itemID int64, title, pageType, body string) error
	InsertFile(ctx context.Context, itemID int64, title, url string) error
	// DeletePagesAndFilesByItemIDs is a no-op for an empty id set
	DeletePagesAndFilesByItemIDs(ctx context.Context, itemIDs []int64) error
	ListPagesByItemID(ctx context.Context, itemID int64) ([]db_model.PageRecord, error)
	ListFilesByItemID(ctx context.Context, itemID int64) ([]db_model.FileRecord, error)

	Close() error
}
