package seeder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/carenotes/store"
)

type captureCreator struct {
	batches [][]*store.CareNote
	err     error
}

func (c *captureCreator) CreateCareNotes(_ context.Context, creates []*store.CareNote) error {
	if c.err != nil {
		return c.err
	}
	batch := make([]*store.CareNote, len(creates))
	copy(batch, creates)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureCreator) total() int {
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func TestSeederBatching(t *testing.T) {
	creator := &captureCreator{}
	s := New(creator, Config{TotalRecords: 2500, BatchSize: 1000, Seed: 42})

	inserted, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2500, inserted)
	require.Equal(t, 2500, creator.total())

	// Bounded buffer: two full batches plus the remainder.
	require.Len(t, creator.batches, 3)
	require.Len(t, creator.batches[0], 1000)
	require.Len(t, creator.batches[1], 1000)
	require.Len(t, creator.batches[2], 500)
}

func TestSeederGeneratesValidNotes(t *testing.T) {
	creator := &captureCreator{}
	cfg := Config{
		TotalRecords:        500,
		TenantIDs:           []int32{1, 2},
		FacilitiesPerTenant: 4,
		PatientCount:        30,
		DaysBack:            7,
		BatchSize:           200,
		Seed:                7,
	}
	s := New(creator, cfg)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	earliest := time.Now().UTC().AddDate(0, 0, -cfg.DaysBack-1).Unix()
	for _, batch := range creator.batches {
		for _, note := range batch {
			require.Contains(t, []int32{1, 2}, note.TenantID)
			require.GreaterOrEqual(t, note.FacilityID, int32(1))
			require.LessOrEqual(t, note.FacilityID, int32(8))
			require.True(t, note.Category.Valid())
			require.GreaterOrEqual(t, note.Priority, store.PriorityMin)
			require.LessOrEqual(t, note.Priority, store.PriorityMax)
			require.True(t, strings.HasPrefix(note.PatientID, "patient_"))
			require.NotEmpty(t, note.CreatedBy)
			require.GreaterOrEqual(t, note.CreatedTs, earliest)
		}
	}
}

func TestSeederDeterministicWithSeed(t *testing.T) {
	first := &captureCreator{}
	_, err := New(first, Config{TotalRecords: 100, BatchSize: 50, Seed: 99}).Run(context.Background())
	require.NoError(t, err)

	second := &captureCreator{}
	_, err = New(second, Config{TotalRecords: 100, BatchSize: 50, Seed: 99}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.batches), len(second.batches))
	for i := range first.batches {
		for j := range first.batches[i] {
			a, b := first.batches[i][j], second.batches[i][j]
			require.Equal(t, a.TenantID, b.TenantID)
			require.Equal(t, a.FacilityID, b.FacilityID)
			require.Equal(t, a.PatientID, b.PatientID)
			require.Equal(t, a.Category, b.Category)
			require.Equal(t, a.Priority, b.Priority)
		}
	}
}

func TestSeederDefaults(t *testing.T) {
	s := New(&captureCreator{}, Config{})
	require.Equal(t, 100_000, s.config.TotalRecords)
	require.Equal(t, 5000, s.config.BatchSize)
	require.Equal(t, []int32{1, 2, 3}, s.config.TenantIDs)
}
