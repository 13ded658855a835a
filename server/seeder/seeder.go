// Package seeder generates synthetic care-note data for load and
// benchmark runs.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/carenotes/store"
)

// NoteCreator is the ingestion contract the seeder needs from the store.
type NoteCreator interface {
	CreateCareNotes(ctx context.Context, creates []*store.CareNote) error
}

// Config controls the shape of the generated dataset.
type Config struct {
	TotalRecords        int
	TenantIDs           []int32
	FacilitiesPerTenant int32
	PatientCount        int
	CreatorCount        int
	DaysBack            int
	BatchSize           int
	// Seed fixes the random sequence. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig mirrors the dataset used by the benchmark harness:
// 100k notes across 3 tenants, 5 facilities each, 2000 patients,
// spread over the last 30 days.
func DefaultConfig() Config {
	return Config{
		TotalRecords:        100_000,
		TenantIDs:           []int32{1, 2, 3},
		FacilitiesPerTenant: 5,
		PatientCount:        2000,
		CreatorCount:        50,
		DaysBack:            30,
		BatchSize:           5000,
	}
}

// Seeder writes batches of synthetic notes through the store.
type Seeder struct {
	creator NoteCreator
	config  Config
}

// New creates a seeder. Zero-valued config fields fall back to defaults.
func New(creator NoteCreator, config Config) *Seeder {
	defaults := DefaultConfig()
	if config.TotalRecords <= 0 {
		config.TotalRecords = defaults.TotalRecords
	}
	if len(config.TenantIDs) == 0 {
		config.TenantIDs = defaults.TenantIDs
	}
	if config.FacilitiesPerTenant <= 0 {
		config.FacilitiesPerTenant = defaults.FacilitiesPerTenant
	}
	if config.PatientCount <= 0 {
		config.PatientCount = defaults.PatientCount
	}
	if config.CreatorCount <= 0 {
		config.CreatorCount = defaults.CreatorCount
	}
	if config.DaysBack <= 0 {
		config.DaysBack = defaults.DaysBack
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &Seeder{creator: creator, config: config}
}

// Run generates and inserts the configured number of notes using a bounded
// buffer flushed in single-transaction batches. It returns the number of
// notes inserted.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	cfg := s.config
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	runID := uuid.NewString()
	start := time.Now()
	slog.Info("seeding care notes",
		slog.String("run_id", runID),
		slog.Int("total", cfg.TotalRecords),
		slog.Int("batch_size", cfg.BatchSize))

	totalFacilities := int32(len(cfg.TenantIDs)) * cfg.FacilitiesPerTenant
	windowStart := time.Now().UTC().AddDate(0, 0, -cfg.DaysBack)

	creators := make([]string, cfg.CreatorCount)
	for i := range creators {
		creators[i] = fmt.Sprintf("user_%08x", rng.Uint32())
	}

	inserted := 0
	buffer := make([]*store.CareNote, 0, cfg.BatchSize)
	for i := 0; i < cfg.TotalRecords; i++ {
		buffer = append(buffer, &store.CareNote{
			TenantID:   cfg.TenantIDs[rng.Intn(len(cfg.TenantIDs))],
			FacilityID: rng.Int31n(totalFacilities) + 1,
			PatientID:  fmt.Sprintf("patient_%d", rng.Intn(cfg.PatientCount)+1),
			Category:   store.Categories[rng.Intn(len(store.Categories))],
			Priority:   store.PriorityMin + rng.Int31n(store.PriorityMax-store.PriorityMin+1),
			CreatedTs:  windowStart.AddDate(0, 0, rng.Intn(cfg.DaysBack+1)).Unix(),
			CreatedBy:  creators[rng.Intn(len(creators))],
		})

		if len(buffer) >= cfg.BatchSize {
			if err := s.creator.CreateCareNotes(ctx, buffer); err != nil {
				return inserted, err
			}
			inserted += len(buffer)
			buffer = buffer[:0]
		}
	}

	if len(buffer) > 0 {
		if err := s.creator.CreateCareNotes(ctx, buffer); err != nil {
			return inserted, err
		}
		inserted += len(buffer)
	}

	slog.Info("seeding finished",
		slog.String("run_id", runID),
		slog.Int("inserted", inserted),
		slog.Duration("duration", time.Since(start)))
	return inserted, nil
}
