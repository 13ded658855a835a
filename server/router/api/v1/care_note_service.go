package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	staterrors "github.com/hrygo/carenotes/server/internal/errors"
	"github.com/hrygo/carenotes/server/seeder"
	"github.com/hrygo/carenotes/store"
)

// CreateCareNoteRequest is the body of POST /api/v1/care-notes.
type CreateCareNoteRequest struct {
	TenantID   int32          `json:"tenant_id"`
	FacilityID int32          `json:"facility_id"`
	PatientID  string         `json:"patient_id"`
	Category   store.Category `json:"category"`
	Priority   int32          `json:"priority"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
	CreatedBy  string         `json:"created_by"`
}

// CareNoteResponse is the created note.
type CareNoteResponse struct {
	UID        string         `json:"uid"`
	TenantID   int32          `json:"tenant_id"`
	FacilityID int32          `json:"facility_id"`
	PatientID  string         `json:"patient_id"`
	Category   store.Category `json:"category"`
	Priority   int32          `json:"priority"`
	CreatedAt  time.Time      `json:"created_at"`
	CreatedBy  string         `json:"created_by"`
}

// CreateCareNote ingests a single care note.
// POST /api/v1/care-notes
func (s *APIV1Service) CreateCareNote(c echo.Context) error {
	var req CreateCareNoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	note := &store.CareNote{
		TenantID:   req.TenantID,
		FacilityID: req.FacilityID,
		PatientID:  req.PatientID,
		Category:   req.Category,
		Priority:   req.Priority,
		CreatedBy:  req.CreatedBy,
	}
	if req.CreatedAt != nil {
		note.CreatedTs = req.CreatedAt.UTC().Unix()
	}
	if note.CreatedBy == "" {
		note.CreatedBy = "api"
	}

	created, err := s.Store.CreateCareNote(c.Request().Context(), note)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, &CareNoteResponse{
		UID:        created.UID,
		TenantID:   created.TenantID,
		FacilityID: created.FacilityID,
		PatientID:  created.PatientID,
		Category:   created.Category,
		Priority:   created.Priority,
		CreatedAt:  created.ParseCreatedTime(),
		CreatedBy:  created.CreatedBy,
	})
}

// GetDailyCareStats returns the daily rollup for a tenant.
// GET /api/v1/care-notes/stats/daily?tenant_id=1&facility_ids=1&facility_ids=2&date=2024-01-05
func (s *APIV1Service) GetDailyCareStats(c echo.Context) error {
	tenantID, err := parseTenantID(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if s.rateLimiter != nil && !s.rateLimiter.Allow(strconv.FormatInt(int64(tenantID), 10)) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}

	facilityIDs, err := parseFacilityIDs(c.QueryParams()["facility_ids"])
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	date := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		date, err = parseDate(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	result, err := s.StatsService.GetDailyStats(c.Request().Context(), tenantID, facilityIDs, date)
	if err != nil {
		return statsErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// StatsMetricsResponse reports the stats pipeline counters.
type StatsMetricsResponse struct {
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRate       float64 `json:"hit_rate"`
	SourceQueries int64   `json:"source_queries"`
	Failures      int64   `json:"failures"`
	AvgComputeMs  int64   `json:"avg_compute_ms"`
}

// GetStatsMetrics returns cache and query counters.
// GET /api/v1/care-notes/stats/metrics
func (s *APIV1Service) GetStatsMetrics(c echo.Context) error {
	m := s.StatsService.Metrics()
	return c.JSON(http.StatusOK, &StatsMetricsResponse{
		CacheHits:     m.CacheHits(),
		CacheMisses:   m.CacheMisses(),
		HitRate:       m.HitRate(),
		SourceQueries: m.SourceQueries(),
		Failures:      m.Failures(),
		AvgComputeMs:  m.AvgDuration().Milliseconds(),
	})
}

// SeedCareNotesRequest tweaks the synthetic dataset. Zero values use the
// defaults.
type SeedCareNotesRequest struct {
	TotalRecords int   `json:"total_records"`
	BatchSize    int   `json:"batch_size"`
	Seed         int64 `json:"seed"`
}

// SeedCareNotes generates and inserts synthetic care notes.
// POST /api/v1/care-notes/seed
func (s *APIV1Service) SeedCareNotes(c echo.Context) error {
	var req SeedCareNotesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	run := seeder.New(s.Store, seeder.Config{
		TotalRecords: req.TotalRecords,
		BatchSize:    req.BatchSize,
		Seed:         req.Seed,
	})
	inserted, err := run.Run(c.Request().Context())
	if err != nil {
		slog.Error("seeding failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "data source unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]int{"inserted": inserted})
}

// RunBenchmark compares the full-scan and cached aggregation paths.
// GET /api/v1/care-notes/benchmark?tenant_id=1&date=2024-01-05
func (s *APIV1Service) RunBenchmark(c echo.Context) error {
	tenantID, err := parseTenantID(c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	date := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		date, err = parseDate(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	result, err := s.BenchRunner.Run(c.Request().Context(), tenantID, date)
	if err != nil {
		return statsErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func parseTenantID(raw string) (int32, error) {
	if raw == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tenant_id: %q", raw)
	}
	return int32(v), nil
}

func parseFacilityIDs(raw []string) ([]int32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]int32, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.ParseInt(r, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid facility id: %q", r)
		}
		ids = append(ids, int32(v))
	}
	return ids, nil
}

// parseDate accepts RFC3339 timestamps and plain dates; the time-of-day
// component is discarded downstream anyway.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date: %q (expect RFC3339 or YYYY-MM-DD)", raw)
}

func statsErrorResponse(c echo.Context, err error) error {
	switch {
	case staterrors.IsInvalidFilter(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case staterrors.IsSourceUnavailable(err):
		slog.Error("data source unavailable", slog.String("error", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "data source unavailable"})
	default:
		slog.Error("stats request failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
