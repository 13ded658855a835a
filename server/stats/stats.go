// Package stats computes daily care-note rollups and memoizes them in a
// process-wide cache keyed by the canonical query filter.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	staterrors "github.com/hrygo/carenotes/server/internal/errors"
	"github.com/hrygo/carenotes/server/internal/observability"
	"github.com/hrygo/carenotes/store"
	"github.com/hrygo/carenotes/store/cache"
)

// RecordSource is the query contract the aggregator needs from the record
// store. *store.Store satisfies it.
type RecordSource interface {
	CountCareNoteGroups(ctx context.Context, find *store.FindCareNote) ([]*store.CareNoteGroupCount, error)
	CountDistinctPatients(ctx context.Context, find *store.FindCareNote) (int64, error)
}

// DailyStats is the rollup of one tenant's care notes for one calendar day,
// optionally restricted to a facility subset. Immutable after construction;
// cached instances are shared between callers and must not be mutated.
type DailyStats struct {
	TotalNotes int64 `json:"total_notes"`
	// AvgNotesPerPatient is rounded to two decimals, half away from zero.
	AvgNotesPerPatient float64 `json:"avg_notes_per_patient"`
	// ByCategory contains only observed categories.
	ByCategory map[store.Category]int64 `json:"by_category"`
	// ByPriority always contains all five priority levels, zeros included.
	ByPriority map[int32]int64 `json:"by_priority"`
	// ByFacility contains only observed facilities.
	ByFacility map[int32]int64 `json:"by_facility"`
}

// Service serves daily rollups, memoized per canonical filter.
//
// Concurrent misses on the same key are collapsed by singleflight: one
// computation runs, the other requesters wait for its result (and share
// its error). The cache lock is never held across a record-source query.
type Service struct {
	source  RecordSource
	cache   *cache.Cache
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewService creates a stats service over the given record source and
// cache store. The cache is injected so tests can isolate state with a
// fresh instance.
func NewService(source RecordSource, c *cache.Cache, metrics *observability.Metrics) *Service {
	if metrics == nil {
		metrics = observability.NewMetrics(0)
	}
	return &Service{
		source:  source,
		cache:   c,
		metrics: metrics,
	}
}

// Metrics exposes the service counters.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// GetDailyStats returns the rollup for the tenant's notes created on the
// calendar day of date (UTC), restricted to facilityIDs when non-empty.
// Repeated identical queries are served from cache.
func (s *Service) GetDailyStats(ctx context.Context, tenantID int32, facilityIDs []int32, date time.Time) (*DailyStats, error) {
	if tenantID <= 0 {
		return nil, staterrors.InvalidFilter("tenant id must be positive, got %d", tenantID)
	}
	for _, id := range facilityIDs {
		if id <= 0 {
			return nil, staterrors.InvalidFilter("facility id must be positive, got %d", id)
		}
	}

	day := truncateToDay(date)
	facilities := canonicalFacilities(facilityIDs)
	key := cacheKey(tenantID, day, facilities)

	if v, ok := s.cache.Get(ctx, key); ok {
		s.metrics.RecordCacheHit()
		return v.(*DailyStats), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent flight may have stored the result between our miss
		// and this callback running.
		if v, ok := s.cache.Get(ctx, key); ok {
			return v, nil
		}

		s.metrics.RecordCacheMiss()
		start := time.Now()
		result, err := s.aggregate(ctx, tenantID, day, facilities)
		if err != nil {
			// A failed computation never populates the cache; the next
			// call recomputes.
			s.metrics.RecordFailure()
			return nil, err
		}
		s.metrics.RecordDuration(time.Since(start))

		s.cache.Set(ctx, key, result)
		slog.Debug("daily stats computed",
			slog.String("key", key),
			slog.Int64("total_notes", result.TotalNotes),
			slog.Duration("duration", time.Since(start)))
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DailyStats), nil
}

// aggregate computes the rollup from the record source. It issues exactly
// one grouped query and one distinct-patient query; it never touches the
// cache, which keeps it pure and testable.
func (s *Service) aggregate(ctx context.Context, tenantID int32, day time.Time, facilityIDs []int32) (*DailyStats, error) {
	find := &store.FindCareNote{
		TenantID:    &tenantID,
		FacilityIDs: facilityIDs,
		Day:         &day,
	}

	s.metrics.RecordSourceQuery()
	groups, err := s.source.CountCareNoteGroups(ctx, find)
	if err != nil {
		return nil, staterrors.SourceUnavailable(err)
	}

	result := &DailyStats{
		ByCategory: make(map[store.Category]int64),
		ByPriority: make(map[int32]int64),
		ByFacility: make(map[int32]int64),
	}
	// Priorities are pre-seeded so levels without notes still show up with
	// zero. Categories and facilities carry observed keys only.
	for p := store.PriorityMin; p <= store.PriorityMax; p++ {
		result.ByPriority[p] = 0
	}

	// Each group row fans out into all three dimensions.
	for _, group := range groups {
		result.TotalNotes += group.Count
		result.ByCategory[group.Category] += group.Count
		result.ByPriority[group.Priority] += group.Count
		result.ByFacility[group.FacilityID] += group.Count
	}

	// The grouping dimensions do not include patient_id and one patient can
	// appear in several groups, so distinct patients need their own query.
	s.metrics.RecordSourceQuery()
	uniquePatients, err := s.source.CountDistinctPatients(ctx, find)
	if err != nil {
		return nil, staterrors.SourceUnavailable(err)
	}

	if uniquePatients > 0 {
		result.AvgNotesPerPatient = round2(float64(result.TotalNotes) / float64(uniquePatients))
	}

	return result, nil
}

// cacheKey derives the composite cache key from the canonical filter.
// facilityIDs must already be sorted and deduplicated. The outer delimiter
// differs from the facility-list delimiter so tenant 12 + facility {3} can
// never collide with tenant 1 + facility {23}.
func cacheKey(tenantID int32, day time.Time, facilityIDs []int32) string {
	facilities := "all"
	if len(facilityIDs) > 0 {
		parts := make([]string, 0, len(facilityIDs))
		for _, id := range facilityIDs {
			parts = append(parts, strconv.FormatInt(int64(id), 10))
		}
		facilities = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d|%s|%s", tenantID, day.Format(time.DateOnly), facilities)
}

// canonicalFacilities sorts and deduplicates the facility set. Filter
// equality is defined over the set, so supplied order and duplicates are
// insignificant.
func canonicalFacilities(facilityIDs []int32) []int32 {
	if len(facilityIDs) == 0 {
		return nil
	}
	ids := slices.Clone(facilityIDs)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// truncateToDay discards the time-of-day component in UTC.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// round2 rounds to two decimals, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
