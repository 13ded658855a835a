package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/carenotes/internal/profile"
	"github.com/hrygo/carenotes/server/bench"
	"github.com/hrygo/carenotes/server/middleware"
	"github.com/hrygo/carenotes/server/stats"
	"github.com/hrygo/carenotes/store"
)

// APIV1Service bundles the handlers of the v1 REST API.
type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	StatsService *stats.Service
	BenchRunner  *bench.Runner

	rateLimiter *middleware.TenantRateLimiter
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, statsService *stats.Service) *APIV1Service {
	service := &APIV1Service{
		Profile:      profile,
		Store:        store,
		StatsService: statsService,
		BenchRunner:  bench.NewRunner(store, statsService),
	}
	if profile.StatsRateLimitPerSecond > 0 {
		service.rateLimiter = middleware.NewTenantRateLimiter(profile.StatsRateLimitPerSecond)
	}
	return service
}

// RegisterRoutes registers the v1 routes on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.POST("/care-notes", s.CreateCareNote)
	g.POST("/care-notes/seed", s.SeedCareNotes)
	g.GET("/care-notes/stats/daily", s.GetDailyCareStats)
	g.GET("/care-notes/stats/metrics", s.GetStatsMetrics)
	g.GET("/care-notes/benchmark", s.RunBenchmark)
}
