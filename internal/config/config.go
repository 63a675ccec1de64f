package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// Naming schemes for artifact keys.
const (
	NamingBasename = "basename"
	NamingHashed   = "hashed"
)

// Config holds all batch settings, populated from environment variables.
type Config struct {
	RasterDir        string
	ShapeDir         string
	OutputDir        string
	RasterExtensions []string
	ShapeExtensions  []string

	WorkerCount  int
	OutputFormat domain.Format
	NamingScheme string
	FailFast     bool

	// Operator assignment.
	OperatorRules         []domain.SubstringMatch
	DefaultOperator       domain.Operator
	OperatorCaseSensitive bool

	ShapeCacheSize int
	ReportFile     string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Result publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parseNonNegativeInt("WORKER_COUNT", 0)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseNonNegativeInt("SHAPE_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	format, err := domain.ParseFormat(sharedcfg.EnvOrDefault("OUTPUT_FORMAT", "netcdf"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTPUT_FORMAT: %w", err)
	}

	rules, err := domain.ParseSubstringMatches(sharedcfg.EnvOrDefault("OPERATOR_RULES", "tas:mean"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATOR_RULES: %w", err)
	}

	defaultOp, err := domain.ParseOperator(sharedcfg.EnvOrDefault("OPERATOR_DEFAULT", "sum"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATOR_DEFAULT: %w", err)
	}

	caseSensitive, err := parseBool("OPERATOR_CASE_SENSITIVE", true)
	if err != nil {
		return nil, err
	}

	failFast, err := parseBool("FAIL_FAST", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RasterDir:        sharedcfg.EnvOrDefault("RASTER_DIR", ""),
		ShapeDir:         sharedcfg.EnvOrDefault("SHAPE_DIR", ""),
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", ""),
		RasterExtensions: parseExtensions(sharedcfg.EnvOrDefault("RASTER_EXTENSIONS", ".nc")),
		ShapeExtensions:  parseExtensions(sharedcfg.EnvOrDefault("SHAPE_EXTENSIONS", ".shp")),

		WorkerCount:  workers,
		OutputFormat: format,
		NamingScheme: sharedcfg.EnvOrDefault("NAMING_SCHEME", NamingBasename),
		FailFast:     failFast,

		OperatorRules:         rules,
		DefaultOperator:       defaultOp,
		OperatorCaseSensitive: caseSensitive,

		ShapeCacheSize: cacheSize,
		ReportFile:     sharedcfg.EnvOrDefault("REPORT_FILE", ""),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")),
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "zonal-stats-results"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and enumerations.
func (c *Config) Validate() error {
	if c.RasterDir == "" {
		return errors.New("RASTER_DIR is required")
	}
	if c.ShapeDir == "" {
		return errors.New("SHAPE_DIR is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if len(c.RasterExtensions) == 0 {
		return errors.New("RASTER_EXTENSIONS must list at least one extension")
	}
	if len(c.ShapeExtensions) == 0 {
		return errors.New("SHAPE_EXTENSIONS must list at least one extension")
	}
	switch c.NamingScheme {
	case NamingBasename, NamingHashed:
	default:
		return fmt.Errorf("invalid NAMING_SCHEME: %q (want %s or %s)", c.NamingScheme, NamingBasename, NamingHashed)
	}
	if c.PublishResults() && c.KafkaResultsTopic == "" {
		return errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Workers resolves WorkerCount, where 0 means one worker per CPU.
func (c *Config) Workers() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	return runtime.NumCPU()
}

// OperatorRule builds the raster → operator policy from the configured rules.
func (c *Config) OperatorRule() domain.SubstringRule {
	return domain.SubstringRule{
		Matches:       c.OperatorRules,
		Default:       c.DefaultOperator,
		CaseSensitive: c.OperatorCaseSensitive,
	}
}

// PublishResults reports whether per-unit results go to Kafka.
func (c *Config) PublishResults() bool {
	return len(c.KafkaBrokers) > 0
}
