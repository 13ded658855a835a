package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Category is the kind of care recorded by a note.
type Category string

const (
	CategoryMedication  Category = "medication"
	CategoryObservation Category = "observation"
	CategoryTreatment   Category = "treatment"
)

// Categories lists all known note categories.
var Categories = []Category{CategoryMedication, CategoryObservation, CategoryTreatment}

func (c Category) Valid() bool {
	switch c {
	case CategoryMedication, CategoryObservation, CategoryTreatment:
		return true
	}
	return false
}

const (
	// PriorityMin and PriorityMax bound the note priority scale.
	PriorityMin int32 = 1
	PriorityMax int32 = 5
)

// CareNote is the object representing a single care note event.
// Notes are immutable once created; this subsystem never updates or
// deletes them.
type CareNote struct {
	ID         int32
	UID        string
	TenantID   int32
	FacilityID int32
	PatientID  string
	Category   Category
	Priority   int32
	CreatedTs  int64
	CreatedBy  string
}

// ParseCreatedTime parses the note creation time to time.Time.
func (n *CareNote) ParseCreatedTime() time.Time {
	return time.Unix(n.CreatedTs, 0).UTC()
}

// FindCareNote is the find condition for care notes.
type FindCareNote struct {
	TenantID  *int32
	PatientID *string

	// FacilityIDs is a membership filter. Empty means all facilities.
	FacilityIDs []int32

	// Day restricts matches to notes created on this UTC calendar date.
	// Drivers translate it to a half-open created_ts range so the
	// (tenant_id, created_ts) index stays usable.
	Day *time.Time

	// Pagination
	Limit  *int
	Offset *int
}

// DayRange returns the [start, end) unix-second bounds of the Day filter.
// The second return value is false when no Day filter is set.
func (f *FindCareNote) DayRange() (int64, int64, bool) {
	if f.Day == nil {
		return 0, 0, false
	}
	day := f.Day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Unix()
	return start, start + 24*60*60, true
}

// CareNoteGroupCount is one row of the grouped count query: the number of
// notes sharing a (category, priority, facility) combination.
type CareNoteGroupCount struct {
	Category   Category
	Priority   int32
	FacilityID int32
	Count      int64
}

func (n *CareNote) validate() error {
	if n.TenantID <= 0 {
		return errors.Errorf("invalid tenant id: %d", n.TenantID)
	}
	if n.FacilityID <= 0 {
		return errors.Errorf("invalid facility id: %d", n.FacilityID)
	}
	if n.PatientID == "" {
		return errors.New("patient id is required")
	}
	if !n.Category.Valid() {
		return errors.Errorf("invalid category: %q", n.Category)
	}
	if n.Priority < PriorityMin || n.Priority > PriorityMax {
		return errors.Errorf("invalid priority: %d", n.Priority)
	}
	return nil
}

func (n *CareNote) applyDefaults() {
	if n.UID == "" {
		n.UID = shortuuid.New()
	}
	if n.CreatedTs == 0 {
		n.CreatedTs = time.Now().UTC().Unix()
	}
}

// CreateCareNote creates a single care note.
func (s *Store) CreateCareNote(ctx context.Context, create *CareNote) (*CareNote, error) {
	if err := create.validate(); err != nil {
		return nil, err
	}
	create.applyDefaults()
	return s.driver.CreateCareNote(ctx, create)
}

// CreateCareNotes inserts a batch of care notes in a single transaction.
// It is the ingestion path for bulk data generation.
func (s *Store) CreateCareNotes(ctx context.Context, creates []*CareNote) error {
	if len(creates) == 0 {
		return nil
	}
	for _, create := range creates {
		if err := create.validate(); err != nil {
			return err
		}
		create.applyDefaults()
	}
	return s.driver.CreateCareNotes(ctx, creates)
}

// ListCareNotes lists care notes with filter. Used by the full-scan
// baseline; the optimized path goes through the count queries below.
func (s *Store) ListCareNotes(ctx context.Context, find *FindCareNote) ([]*CareNote, error) {
	return s.driver.ListCareNotes(ctx, find)
}

// CountCareNoteGroups returns note counts grouped by
// (category, priority, facility_id) under the filter.
func (s *Store) CountCareNoteGroups(ctx context.Context, find *FindCareNote) ([]*CareNoteGroupCount, error) {
	return s.driver.CountCareNoteGroups(ctx, find)
}

// CountDistinctPatients returns the number of distinct patients with at
// least one note under the filter.
func (s *Store) CountDistinctPatients(ctx context.Context, find *FindCareNote) (int64, error) {
	return s.driver.CountDistinctPatients(ctx, find)
}
