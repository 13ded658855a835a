// Package bench compares the unindexed full-scan aggregation against the
// cached grouped-query path.
package bench

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/carenotes/server/stats"
	"github.com/hrygo/carenotes/store"
)

// Result reports one comparison run.
type Result struct {
	LegacyMs       int64   `json:"legacy_ms"`
	OptimizedMs    int64   `json:"optimized_ms"`
	ImprovementPct float64 `json:"improvement_pct"`
	ConcurrentRuns int     `json:"concurrent_runs"`
	ConcurrentMs   int64   `json:"concurrent_ms"`
	TotalNotes     int64   `json:"total_notes"`
}

// Runner drives both implementations against the same store.
type Runner struct {
	store *store.Store
	stats *stats.Service
}

// NewRunner creates a benchmark runner.
func NewRunner(st *store.Store, statsService *stats.Service) *Runner {
	return &Runner{store: st, stats: statsService}
}

// Run times the legacy full-scan fold, then the optimized path, then a
// 10-way concurrent optimized burst. The two paths must agree on the
// rollup; a mismatch is logged loudly since it would mean the optimized
// path is wrong, not slow.
func (r *Runner) Run(ctx context.Context, tenantID int32, date time.Time) (*Result, error) {
	legacyStart := time.Now()
	legacy, err := r.legacyDailyStats(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}
	legacyDuration := time.Since(legacyStart)

	optimizedStart := time.Now()
	optimized, err := r.stats.GetDailyStats(ctx, tenantID, nil, date)
	if err != nil {
		return nil, err
	}
	optimizedDuration := time.Since(optimizedStart)

	if legacy.TotalNotes != optimized.TotalNotes {
		slog.Warn("benchmark rollup mismatch",
			slog.Int64("legacy_total", legacy.TotalNotes),
			slog.Int64("optimized_total", optimized.TotalNotes))
	}

	const concurrentRuns = 10
	concurrentStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrentRuns; i++ {
		g.Go(func() error {
			_, err := r.stats.GetDailyStats(gctx, tenantID, nil, date)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	concurrentDuration := time.Since(concurrentStart)

	improvement := 0.0
	if legacyDuration > 0 {
		improvement = float64(legacyDuration-optimizedDuration) / float64(legacyDuration) * 100
		improvement = math.Round(improvement*100) / 100
	}

	result := &Result{
		LegacyMs:       legacyDuration.Milliseconds(),
		OptimizedMs:    optimizedDuration.Milliseconds(),
		ImprovementPct: improvement,
		ConcurrentRuns: concurrentRuns,
		ConcurrentMs:   concurrentDuration.Milliseconds(),
		TotalNotes:     optimized.TotalNotes,
	}
	slog.Info("benchmark finished",
		slog.Int64("legacy_ms", result.LegacyMs),
		slog.Int64("optimized_ms", result.OptimizedMs),
		slog.Float64("improvement_pct", result.ImprovementPct),
		slog.Int64("concurrent_ms", result.ConcurrentMs))
	return result, nil
}

// legacyDailyStats is the baseline: load every matching note and fold in
// memory. Kept deliberately naive; it exists to be measured against.
func (r *Runner) legacyDailyStats(ctx context.Context, tenantID int32, date time.Time) (*stats.DailyStats, error) {
	day := date.UTC()
	find := &store.FindCareNote{
		TenantID: &tenantID,
		Day:      &day,
	}
	notes, err := r.store.ListCareNotes(ctx, find)
	if err != nil {
		return nil, err
	}

	result := &stats.DailyStats{
		ByCategory: make(map[store.Category]int64),
		ByPriority: make(map[int32]int64),
		ByFacility: make(map[int32]int64),
	}
	for p := store.PriorityMin; p <= store.PriorityMax; p++ {
		result.ByPriority[p] = 0
	}

	patients := make(map[string]struct{})
	for _, note := range notes {
		result.TotalNotes++
		result.ByCategory[note.Category]++
		result.ByPriority[note.Priority]++
		result.ByFacility[note.FacilityID]++
		patients[note.PatientID] = struct{}{}
	}

	if len(patients) > 0 {
		avg := float64(result.TotalNotes) / float64(len(patients))
		result.AvgNotesPerPatient = math.Round(avg*100) / 100
	}
	return result, nil
}
