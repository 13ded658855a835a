package profile

import (
	"os"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars()

	p := &Profile{}
	p.FromEnv()

	if p.StatsCacheMaxItems != 4096 {
		t.Errorf("StatsCacheMaxItems default should be 4096, got %d", p.StatsCacheMaxItems)
	}
	if p.StatsCacheTTL != 0 {
		t.Errorf("StatsCacheTTL default should be 0, got %s", p.StatsCacheTTL)
	}
	if p.StatsRateLimitPerSecond != 0 {
		t.Errorf("StatsRateLimitPerSecond default should be 0, got %d", p.StatsRateLimitPerSecond)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnvVars()
	os.Setenv("CARENOTES_STATS_CACHE_MAX_ITEMS", "128")
	os.Setenv("CARENOTES_STATS_CACHE_TTL", "10m")
	os.Setenv("CARENOTES_STATS_RATE_LIMIT", "25")
	defer clearEnvVars()

	p := &Profile{}
	p.FromEnv()

	if p.StatsCacheMaxItems != 128 {
		t.Errorf("StatsCacheMaxItems should be 128, got %d", p.StatsCacheMaxItems)
	}
	if p.StatsCacheTTL != 10*time.Minute {
		t.Errorf("StatsCacheTTL should be 10m, got %s", p.StatsCacheTTL)
	}
	if p.StatsRateLimitPerSecond != 25 {
		t.Errorf("StatsRateLimitPerSecond should be 25, got %d", p.StatsRateLimitPerSecond)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "mysql", Data: os.TempDir()}
	if err := p.Validate(); err == nil {
		t.Error("Validate should reject unknown driver")
	}
}

func TestValidateDefaultsSQLiteDSN(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "sqlite", Data: os.TempDir()}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if p.DSN == "" {
		t.Error("Validate should derive a sqlite DSN from the data dir")
	}
}

func clearEnvVars() {
	os.Unsetenv("CARENOTES_STATS_CACHE_MAX_ITEMS")
	os.Unsetenv("CARENOTES_STATS_CACHE_TTL")
	os.Unsetenv("CARENOTES_STATS_RATE_LIMIT")
}
