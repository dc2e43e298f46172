// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/jobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Level registry — competition levels and their age benchmarks
// --------------------------------------------------------------------------

// LevelConfig describes one minor-league competition level. BenchmarkAge is
// the typical age of a player at that level; players younger than it earn
// an age-for-level bonus.
type LevelConfig struct {
	ID           string
	Name         string
	BenchmarkAge float64
}

// LevelRegistry is the single source of truth for valid competition levels.
var LevelRegistry = map[string]LevelConfig{
	"CPX": {ID: "CPX", Name: "Complex", BenchmarkAge: 18.5},
	"RK":  {ID: "RK", Name: "Rookie", BenchmarkAge: 19},
	"A":   {ID: "A", Name: "Single-A", BenchmarkAge: 20.5},
	"A+":  {ID: "A+", Name: "High-A", BenchmarkAge: 21.5},
	"AA":  {ID: "AA", Name: "Double-A", BenchmarkAge: 23},
	"AAA": {ID: "AAA", Name: "Triple-A", BenchmarkAge: 25},
	"WIN": {ID: "WIN", Name: "Winter League", BenchmarkAge: 23},
}

// KnownLevel reports whether a level identifier is registered.
func KnownLevel(level string) bool {
	_, ok := LevelRegistry[level]
	return ok
}

// --------------------------------------------------------------------------
// Sample-size minimums — shared by the aggregator, cohort build, and trend
// --------------------------------------------------------------------------

const (
	// MinBattedBallEvents is the qualifying floor for a batter's pitch-level
	// metric set within a lookback window.
	MinBattedBallEvents = 50
	// MinPitchesThrown is the qualifying floor for a pitcher's pitch-level
	// metric set within a lookback window.
	MinPitchesThrown = 100
	// MinGameLogGames is the qualifying floor for the game-log fallback tier.
	MinGameLogGames = 15
	// MinCohortSize is the smallest cohort for which percentile breakpoints
	// are published; smaller cohorts are omitted from the index.
	MinCohortSize = 20
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches the collection layer schema
// --------------------------------------------------------------------------

const (
	PitchEventsTable      = "pitch_events"
	GameLogsTable         = "game_logs"
	ScoutingGradesTable   = "scouting_grades"
	PlayersTable          = "players"
	CohortPercentileTable = "cohort_percentiles"
	CohortPointerTable    = "cohort_snapshot_pointer"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Ranking engine
	LookbackDays        int
	RankingWorkers      int
	CurrentSeason       int
	IncludeUnscored     bool // players without a base grade go to a separate unscored tier
	FallbackPriorSeason bool // absent current-season cohort falls back to prior season

	// Cohort index rebuild schedule
	CohortRebuildInterval time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("NEON_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or NEON_DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		LookbackDays:        envInt("RANK_LOOKBACK_DAYS", 60),
		RankingWorkers:      envInt("RANK_WORKERS", 4),
		CurrentSeason:       envInt("CURRENT_SEASON", 2026),
		IncludeUnscored:     envBool("RANK_INCLUDE_UNSCORED", false),
		FallbackPriorSeason: envBool("COHORT_FALLBACK_PRIOR_SEASON", false),

		CohortRebuildInterval: time.Duration(envInt("COHORT_REBUILD_HOURS", 24)) * time.Hour,

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
