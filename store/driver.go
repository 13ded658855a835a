package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// CareNote model related methods.
	CreateCareNote(ctx context.Context, create *CareNote) (*CareNote, error)
	CreateCareNotes(ctx context.Context, creates []*CareNote) error
	ListCareNotes(ctx context.Context, find *FindCareNote) ([]*CareNote, error)

	// Aggregate query methods consumed by the stats service.
	CountCareNoteGroups(ctx context.Context, find *FindCareNote) ([]*CareNoteGroupCount, error)
	CountDistinctPatients(ctx context.Context, find *FindCareNote) (int64, error)
}
