package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	staterrors "github.com/hrygo/carenotes/server/internal/errors"
	"github.com/hrygo/carenotes/store"
	"github.com/hrygo/carenotes/store/cache"
)

// fakeSource is an in-memory RecordSource that serves canned group rows and
// counts the queries it receives.
type fakeSource struct {
	mu            sync.Mutex
	groups        []*store.CareNoteGroupCount
	patients      int64
	err           error
	groupCalls    int
	distinctCalls int

	// gate, when set, blocks grouped queries until closed.
	gate chan struct{}
}

func (f *fakeSource) CountCareNoteGroups(_ context.Context, find *store.FindCareNote) ([]*store.CareNoteGroupCount, error) {
	f.mu.Lock()
	f.groupCalls++
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	// Honor the facility membership filter like a real source would.
	if len(find.FacilityIDs) == 0 {
		return f.groups, nil
	}
	allowed := make(map[int32]bool, len(find.FacilityIDs))
	for _, id := range find.FacilityIDs {
		allowed[id] = true
	}
	filtered := make([]*store.CareNoteGroupCount, 0, len(f.groups))
	for _, g := range f.groups {
		if allowed[g.FacilityID] {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

func (f *fakeSource) CountDistinctPatients(context.Context, *store.FindCareNote) (int64, error) {
	f.mu.Lock()
	f.distinctCalls++
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return f.patients, nil
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupCalls, f.distinctCalls
}

func newTestService(source *fakeSource) (*Service, *cache.Cache) {
	c := cache.New(cache.Config{})
	return NewService(source, c, nil), c
}

func TestCacheKeyCanonicalization(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	base := cacheKey(7, day, canonicalFacilities([]int32{1, 2, 3}))
	for _, ids := range [][]int32{{3, 1, 2}, {2, 3, 1}, {1, 2, 3}, {3, 3, 1, 2, 2}} {
		require.Equal(t, base, cacheKey(7, day, canonicalFacilities(ids)))
	}

	require.Equal(t, "7|2024-01-05|1,2,3", base)
	require.Equal(t, "7|2024-01-05|all", cacheKey(7, day, nil))
	require.Equal(t, "7|2024-01-05|all", cacheKey(7, day, canonicalFacilities([]int32{})))

	// Delimiters keep adjacent numeric fields unambiguous.
	require.NotEqual(t,
		cacheKey(12, day, canonicalFacilities([]int32{3})),
		cacheKey(1, day, canonicalFacilities([]int32{23})))

	// Different days and tenants never collide.
	otherDay := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	require.NotEqual(t, base, cacheKey(7, otherDay, canonicalFacilities([]int32{1, 2, 3})))
	require.NotEqual(t, base, cacheKey(8, day, canonicalFacilities([]int32{1, 2, 3})))
}

func TestTruncateToDayDiscardsTimeOfDay(t *testing.T) {
	morning := time.Date(2024, 1, 5, 8, 15, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC)
	require.Equal(t, truncateToDay(morning), truncateToDay(evening))
	require.Equal(t, 0, truncateToDay(evening).Hour())
}

func TestGetDailyStatsAggregation(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		groups: []*store.CareNoteGroupCount{
			{Category: store.CategoryMedication, Priority: 1, FacilityID: 10, Count: 2},
			{Category: store.CategoryObservation, Priority: 2, FacilityID: 11, Count: 1},
		},
		patients: 1,
	}
	svc, c := newTestService(source)
	defer c.Close()

	result, err := svc.GetDailyStats(ctx, 7, nil, time.Date(2024, 1, 5, 13, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, int64(3), result.TotalNotes)
	require.Equal(t, 3.0, result.AvgNotesPerPatient)
	require.Equal(t, map[store.Category]int64{
		store.CategoryMedication:  2,
		store.CategoryObservation: 1,
	}, result.ByCategory)
	require.Equal(t, map[int32]int64{1: 2, 2: 1, 3: 0, 4: 0, 5: 0}, result.ByPriority)
	require.Equal(t, map[int32]int64{10: 2, 11: 1}, result.ByFacility)
}

func TestGetDailyStatsPriorityCompleteness(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		groups: []*store.CareNoteGroupCount{
			{Category: store.CategoryTreatment, Priority: 5, FacilityID: 3, Count: 4},
		},
		patients: 2,
	}
	svc, c := newTestService(source)
	defer c.Close()

	result, err := svc.GetDailyStats(ctx, 1, nil, time.Now())
	require.NoError(t, err)

	// All five priorities present even though only one was observed;
	// categories and facilities carry observed keys only.
	require.Len(t, result.ByPriority, 5)
	require.Equal(t, int64(4), result.ByPriority[5])
	require.Equal(t, int64(0), result.ByPriority[1])
	require.Len(t, result.ByCategory, 1)
	require.Len(t, result.ByFacility, 1)
}

func TestGetDailyStatsCacheHit(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		groups: []*store.CareNoteGroupCount{
			{Category: store.CategoryMedication, Priority: 1, FacilityID: 10, Count: 5},
		},
		patients: 2,
	}
	svc, c := newTestService(source)
	defer c.Close()

	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first, err := svc.GetDailyStats(ctx, 4, []int32{10, 11}, date)
	require.NoError(t, err)

	second, err := svc.GetDailyStats(ctx, 4, []int32{11, 10}, date.Add(8*time.Hour))
	require.NoError(t, err)

	// The second call is a pure cache hit: the stored rollup verbatim and
	// zero additional source queries.
	require.Same(t, first, second)
	groupCalls, distinctCalls := source.calls()
	require.Equal(t, 1, groupCalls)
	require.Equal(t, 1, distinctCalls)

	require.EqualValues(t, 1, svc.Metrics().CacheHits())
	require.EqualValues(t, 1, svc.Metrics().CacheMisses())
}

func TestGetDailyStatsZeroNotes(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	svc, c := newTestService(source)
	defer c.Close()

	result, err := svc.GetDailyStats(ctx, 9, nil, time.Now())
	require.NoError(t, err, "zero notes is a valid result, not an error")

	require.Equal(t, int64(0), result.TotalNotes)
	require.Equal(t, 0.0, result.AvgNotesPerPatient)
	require.Empty(t, result.ByCategory)
	require.Empty(t, result.ByFacility)
	require.Equal(t, map[int32]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}, result.ByPriority)
}

func TestGetDailyStatsAverageRounding(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		total    int64
		patients int64
		want     float64
	}{
		{10, 3, 3.33},
		{10, 4, 2.5},
		{1, 8, 0.13}, // 0.125 rounds half away from zero
		{2, 3, 0.67},
	}
	for _, tc := range cases {
		source := &fakeSource{
			groups: []*store.CareNoteGroupCount{
				{Category: store.CategoryMedication, Priority: 1, FacilityID: 1, Count: tc.total},
			},
			patients: tc.patients,
		}
		svc, c := newTestService(source)
		result, err := svc.GetDailyStats(ctx, 1, nil, time.Now())
		require.NoError(t, err)
		require.Equal(t, tc.want, result.AvgNotesPerPatient, "total=%d patients=%d", tc.total, tc.patients)
		c.Close()
	}
}

func TestGetDailyStatsInvalidFilter(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	svc, c := newTestService(source)
	defer c.Close()

	_, err := svc.GetDailyStats(ctx, 0, nil, time.Now())
	require.True(t, staterrors.IsInvalidFilter(err))

	_, err = svc.GetDailyStats(ctx, -3, nil, time.Now())
	require.True(t, staterrors.IsInvalidFilter(err))

	_, err = svc.GetDailyStats(ctx, 1, []int32{2, 0}, time.Now())
	require.True(t, staterrors.IsInvalidFilter(err))

	// Rejected before any cache or source interaction.
	groupCalls, distinctCalls := source.calls()
	require.Equal(t, 0, groupCalls)
	require.Equal(t, 0, distinctCalls)
	require.Equal(t, 0, c.Len())
}

func TestGetDailyStatsFailureIsolation(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{err: errors.New("connection refused")}
	svc, c := newTestService(source)
	defer c.Close()

	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetDailyStats(ctx, 2, nil, date)
	require.True(t, staterrors.IsSourceUnavailable(err))
	require.Equal(t, 0, c.Len(), "a failed computation must never populate the cache")

	// The source recovers; the next identical call recomputes instead of
	// returning a cached fault.
	source.mu.Lock()
	source.err = nil
	source.patients = 1
	source.groups = []*store.CareNoteGroupCount{
		{Category: store.CategoryTreatment, Priority: 3, FacilityID: 8, Count: 1},
	}
	source.mu.Unlock()

	result, err := svc.GetDailyStats(ctx, 2, nil, date)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.TotalNotes)

	groupCalls, _ := source.calls()
	require.Equal(t, 2, groupCalls)
}

func TestGetDailyStatsFacilityNarrowing(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		groups: []*store.CareNoteGroupCount{
			{Category: store.CategoryMedication, Priority: 1, FacilityID: 10, Count: 4},
			{Category: store.CategoryObservation, Priority: 2, FacilityID: 11, Count: 2},
			{Category: store.CategoryTreatment, Priority: 3, FacilityID: 12, Count: 6},
		},
		patients: 5,
	}
	svc, c := newTestService(source)
	defer c.Close()

	date := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	unfiltered, err := svc.GetDailyStats(ctx, 3, nil, date)
	require.NoError(t, err)

	subset := []int32{10, 12}
	narrowed, err := svc.GetDailyStats(ctx, 3, subset, date)
	require.NoError(t, err)

	// The narrowed by_facility equals the unfiltered one restricted to the
	// subset.
	require.Len(t, narrowed.ByFacility, len(subset))
	for _, id := range subset {
		require.Equal(t, unfiltered.ByFacility[id], narrowed.ByFacility[id])
	}
	require.Equal(t, int64(10), narrowed.TotalNotes)
}

func TestGetDailyStatsSingleFlight(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	source := &fakeSource{
		groups: []*store.CareNoteGroupCount{
			{Category: store.CategoryMedication, Priority: 2, FacilityID: 1, Count: 7},
		},
		patients: 3,
		gate:     gate,
	}
	svc, c := newTestService(source)
	defer c.Close()

	date := time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)
	const callers = 8

	results := make([]*DailyStats, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = svc.GetDailyStats(ctx, 6, nil, date)
		}(i)
	}

	// Let the callers pile up behind the in-flight computation, then
	// release the source.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, int64(7), results[i].TotalNotes)
	}

	// One computation regardless of interleaving: concurrent callers share
	// the flight, late callers hit the cache.
	groupCalls, distinctCalls := source.calls()
	require.Equal(t, 1, groupCalls)
	require.Equal(t, 1, distinctCalls)
}
