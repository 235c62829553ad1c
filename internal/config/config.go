// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/onnwee/forcegraph/backend/internal/force"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/quadtree"
	"github.com/onnwee/forcegraph/backend/internal/secrets"
	"github.com/onnwee/forcegraph/backend/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	HTTPAddr string
	Env      string

	// Force engine
	Theta              float64
	RepulsionStrength  float64
	AttractionStrength float64
	ForceBatchSize     int
	ForceConcurrency   int // 0 means GOMAXPROCS

	// Quadtree
	TreeMaxDepth int
	TreeMinSize  float64

	// Layout requests
	LayoutMaxNodes       int
	LayoutIterations     int
	LayoutMaxIterations  int
	LayoutVelocityDecay  float64 // fraction of velocity lost per tick
	LayoutCenterStrength float64
	LayoutMaxSpeed       float64
	LayoutTimeout        time.Duration
	LayoutStreamEvery    int
	LayoutFrameInterval  time.Duration

	// Result cache
	CacheMaxSizeMB  int64
	CacheMaxEntries int64
	CacheTTL        time.Duration

	// Security settings
	RateLimitGlobal      float64 // requests per second globally
	RateLimitGlobalBurst int
	RateLimitPerIP       float64 // requests per second per IP
	RateLimitPerIPBurst  int
	EnableRateLimit      bool
	CORSAllowedOrigins   []string
	MaxBodyBytes         int64

	// Observability settings
	LogLevel          string
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	c := &Config{
		HTTPAddr: utils.GetEnv("HTTP_ADDR", ":8000"),
		Env:      utils.GetEnv("ENV", "development"),

		Theta:              utils.GetEnvAsFloat("FORCE_THETA", force.DefaultTheta),
		RepulsionStrength:  utils.GetEnvAsFloat("FORCE_REPULSION", force.DefaultRepulsionStrength),
		AttractionStrength: utils.GetEnvAsFloat("FORCE_ATTRACTION", force.DefaultAttractionStrength),
		ForceBatchSize:     utils.GetEnvAsInt("FORCE_BATCH_SIZE", force.DefaultBatchSize),
		ForceConcurrency:   utils.GetEnvAsInt("FORCE_CONCURRENCY", 0),

		TreeMaxDepth: utils.GetEnvAsInt("QUADTREE_MAX_DEPTH", quadtree.DefaultMaxDepth),
		TreeMinSize:  utils.GetEnvAsFloat("QUADTREE_MIN_SIZE", quadtree.DefaultMinSize),

		LayoutMaxNodes:       utils.GetEnvAsInt("LAYOUT_MAX_NODES", 5000),
		LayoutIterations:     utils.GetEnvAsInt("LAYOUT_ITERATIONS", 300),
		LayoutMaxIterations:  utils.GetEnvAsInt("LAYOUT_MAX_ITERATIONS", 2000),
		LayoutVelocityDecay:  utils.GetEnvAsFloat("LAYOUT_VELOCITY_DECAY", 0.3),
		LayoutCenterStrength: utils.GetEnvAsFloat("LAYOUT_CENTER_STRENGTH", 0.01),
		LayoutMaxSpeed:       utils.GetEnvAsFloat("LAYOUT_MAX_SPEED", 50),
		LayoutTimeout:        utils.GetEnvAsMillis("LAYOUT_TIMEOUT_MS", 30*time.Second),
		LayoutStreamEvery:    utils.GetEnvAsInt("LAYOUT_STREAM_EVERY", 5),
		LayoutFrameInterval:  utils.GetEnvAsMillis("LAYOUT_FRAME_INTERVAL_MS", 16*time.Millisecond),

		CacheMaxSizeMB:  int64(utils.GetEnvAsInt("CACHE_MAX_SIZE_MB", 64)),
		CacheMaxEntries: int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 1000)),
		CacheTTL:        time.Duration(utils.GetEnvAsInt("CACHE_TTL_SECONDS", 600)) * time.Second,

		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		CORSAllowedOrigins:   utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}, ","),
		MaxBodyBytes:         int64(utils.GetEnvAsInt("MAX_BODY_BYTES", 10<<20)),

		LogLevel:         strings.ToLower(utils.GetEnv("LOG_LEVEL", "info")),
		OTELEnabled:      utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:     utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELSampleRate:   utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:        utils.GetEnv("SENTRY_DSN", ""),
		SentryRelease:    utils.GetEnv("SENTRY_RELEASE", ""),
		SentrySampleRate: utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	c.SentryEnvironment = utils.GetEnv("SENTRY_ENVIRONMENT", c.Env)
	cached = c
	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// ForceConfig translates the FORCE_* settings.
func (c *Config) ForceConfig() force.Config {
	conc := c.ForceConcurrency
	if conc == 0 {
		conc = runtime.GOMAXPROCS(0)
	}
	return force.Config{
		Theta:              c.Theta,
		RepulsionStrength:  c.RepulsionStrength,
		AttractionStrength: c.AttractionStrength,
		BatchSize:          c.ForceBatchSize,
		Concurrency:        conc,
	}
}

// TreeOptions translates the QUADTREE_* settings.
func (c *Config) TreeOptions() []quadtree.Option {
	return []quadtree.Option{
		quadtree.WithMaxDepth(c.TreeMaxDepth),
		quadtree.WithMinSize(c.TreeMinSize),
	}
}

// SimulationConfig combines force, tree and LAYOUT_* settings.
func (c *Config) SimulationConfig() graph.SimulationConfig {
	return graph.SimulationConfig{
		Force:          c.ForceConfig(),
		MaxDepth:       c.TreeMaxDepth,
		MinSize:        c.TreeMinSize,
		Damping:        1 - c.LayoutVelocityDecay,
		CenterStrength: c.LayoutCenterStrength,
		MaxSpeed:       c.LayoutMaxSpeed,
	}
}

// ServiceOptions is the layout service configuration.
func (c *Config) ServiceOptions() graph.ServiceOptions {
	return graph.ServiceOptions{
		Simulation:        c.SimulationConfig(),
		MaxNodes:          c.LayoutMaxNodes,
		DefaultIterations: c.LayoutIterations,
		MaxIterations:     c.LayoutMaxIterations,
		CacheTTL:          c.CacheTTL,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ForceConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := quadtree.New(quadtree.Boundary{Width: 1}, c.TreeOptions()...); err != nil {
		errs = append(errs, err)
	}
	if err := c.SimulationConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ForceConcurrency < 0 {
		errs = append(errs, fmt.Errorf("FORCE_CONCURRENCY must not be negative, got %d", c.ForceConcurrency))
	}
	if c.LayoutMaxNodes <= 0 {
		errs = append(errs, fmt.Errorf("LAYOUT_MAX_NODES must be positive, got %d", c.LayoutMaxNodes))
	}
	if c.LayoutIterations <= 0 || c.LayoutMaxIterations < c.LayoutIterations {
		errs = append(errs, fmt.Errorf("LAYOUT_ITERATIONS %d must be positive and at most LAYOUT_MAX_ITERATIONS %d",
			c.LayoutIterations, c.LayoutMaxIterations))
	}
	if c.LayoutStreamEvery <= 0 {
		errs = append(errs, fmt.Errorf("LAYOUT_STREAM_EVERY must be positive, got %d", c.LayoutStreamEvery))
	}
	if c.CacheMaxSizeMB <= 0 || c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_SIZE_MB and CACHE_TTL_SECONDS must be positive"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACE_SAMPLE_RATE must be within [0,1], got %v", c.OTELSampleRate))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(os.Getenv("ENV"), "production")
}

// LogFields summarises the configuration for the startup log with
// credentials masked.
func (c *Config) LogFields() []any {
	return []any{
		"addr", c.HTTPAddr,
		"env", c.Env,
		"theta", c.Theta,
		"force_concurrency", c.ForceConfig().Concurrency,
		"max_nodes", c.LayoutMaxNodes,
		"iterations", c.LayoutIterations,
		"rate_limit", c.EnableRateLimit,
		"otel_enabled", c.OTELEnabled,
		"sentry_dsn", secrets.MaskURL(c.SentryDSN),
	}
}
