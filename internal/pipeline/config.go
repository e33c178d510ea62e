// Package pipeline orchestrates one fetch-validate-diff-persist-report run.
package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roadwatch-io/roadwatch/internal/config"
	"github.com/roadwatch-io/roadwatch/internal/feed"
	"github.com/roadwatch-io/roadwatch/internal/snapshot"
)

// DefaultConfigPath is the default location for the roadwatch configuration
// file. Uses hidden file format following common tool conventions.
const DefaultConfigPath = ".roadwatch.yaml"

// ConfigPathEnvVar is the environment variable name for a custom config path.
const ConfigPathEnvVar = "ROADWATCH_CONFIG_PATH"

const (
	defaultAPIURL         = "https://www.microsoft.com/releasecommunications/api/v1/m365"
	defaultOutputDir      = "./data"
	defaultFetchTimeout   = 30 * time.Second
	defaultRetryCount     = 3
	maxRetryCount         = 10
	defaultMaxAgeHours    = 8
	defaultUpdateInterval = 6 * time.Hour
	defaultRateLimitRPS   = 0.5
)

// Sentinel errors for configuration validation.
var (
	ErrAPIURLEmpty           = errors.New("API URL cannot be empty")
	ErrFetchTimeoutInvalid   = errors.New("fetch timeout must be positive")
	ErrUpdateIntervalInvalid = errors.New("update interval must be positive")
)

// Config is the explicit configuration struct passed into the pipeline
// constructor. Defaults are overridden by the optional YAML file, which is
// overridden by environment variables. Out-of-range values are clamped, not
// rejected.
type Config struct {
	// APIURL is the upstream roadmap feed endpoint.
	APIURL string

	// OutputDir holds every artifact: snapshots, backups, health, report.
	OutputDir string

	// LogLevel controls log verbosity.
	LogLevel slog.Level

	// FetchTimeout bounds a single upstream request.
	FetchTimeout time.Duration

	// RetryCount is additional fetch attempts after the first failure.
	// Clamped to [0,10].
	RetryCount int

	// BackupRetention is how many timestamped backups to keep. Clamped to
	// [1,100].
	BackupRetention int

	// MaxAge is the staleness threshold used by the health checker.
	MaxAge time.Duration

	// UpdateInterval feeds the report's nextUpdate field.
	UpdateInterval time.Duration

	// RateLimitRPS caps sustained upstream request rate.
	RateLimitRPS float64

	// Feed configures the optional Kafka change feed.
	Feed feed.Config
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "unset" from zero values.
//
//nolint:tagliatelle // snake_case is intentional for YAML config files
type fileConfig struct {
	APIURL          *string  `yaml:"api_url"`
	OutputDir       *string  `yaml:"output_dir"`
	LogLevel        *string  `yaml:"log_level"`
	FetchTimeout    *string  `yaml:"fetch_timeout"`
	RetryCount      *int     `yaml:"retry_count"`
	BackupRetention *int     `yaml:"backup_retention"`
	MaxAgeHours     *int     `yaml:"max_age_hours"`
	UpdateInterval  *string  `yaml:"update_interval"`
	RateLimitRPS    *float64 `yaml:"rate_limit_rps"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopic      *string  `yaml:"kafka_topic"`
}

// LoadConfigFromEnv loads config from the path in ROADWATCH_CONFIG_PATH,
// falling back to ".roadwatch.yaml" in the current directory.
func LoadConfigFromEnv() *Config {
	return LoadConfig(config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath))
}

// LoadConfig builds the effective configuration: documented defaults, then
// the YAML file at path (missing or invalid files degrade gracefully to no
// overrides), then environment variables on top. The result is clamped into
// valid ranges.
func LoadConfig(path string) *Config {
	cfg := &Config{
		APIURL:          defaultAPIURL,
		OutputDir:       defaultOutputDir,
		LogLevel:        slog.LevelInfo,
		FetchTimeout:    defaultFetchTimeout,
		RetryCount:      defaultRetryCount,
		BackupRetention: snapshot.DefaultBackupRetention,
		MaxAge:          defaultMaxAgeHours * time.Hour,
		UpdateInterval:  defaultUpdateInterval,
		RateLimitRPS:    defaultRateLimitRPS,
		Feed:            feed.Config{Topic: feed.DefaultTopic},
	}

	cfg.applyFile(path)
	cfg.applyEnv()
	cfg.clamp()

	return cfg
}

// applyFile overlays the YAML file at path onto cfg. Missing file is fine:
// the config file is optional. Invalid YAML logs a warning and applies
// nothing, so the pipeline can still run on defaults and env.
func (c *Config) applyFile(path string) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read config file, continuing without it",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}

		return
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		slog.Warn("Failed to parse config file, continuing without it",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return
	}

	if file.APIURL != nil {
		c.APIURL = *file.APIURL
	}

	if file.OutputDir != nil {
		c.OutputDir = *file.OutputDir
	}

	if file.LogLevel != nil {
		c.LogLevel = parseLogLevel(*file.LogLevel, c.LogLevel)
	}

	if file.FetchTimeout != nil {
		if d, err := time.ParseDuration(*file.FetchTimeout); err == nil {
			c.FetchTimeout = d
		}
	}

	if file.RetryCount != nil {
		c.RetryCount = *file.RetryCount
	}

	if file.BackupRetention != nil {
		c.BackupRetention = *file.BackupRetention
	}

	if file.MaxAgeHours != nil {
		c.MaxAge = time.Duration(*file.MaxAgeHours) * time.Hour
	}

	if file.UpdateInterval != nil {
		if d, err := time.ParseDuration(*file.UpdateInterval); err == nil {
			c.UpdateInterval = d
		}
	}

	if file.RateLimitRPS != nil {
		c.RateLimitRPS = *file.RateLimitRPS
	}

	if len(file.KafkaBrokers) > 0 {
		c.Feed.Brokers = file.KafkaBrokers
	}

	if file.KafkaTopic != nil {
		c.Feed.Topic = *file.KafkaTopic
	}
}

// applyEnv overlays environment variables onto cfg. Unset variables leave
// the current value in place.
func (c *Config) applyEnv() {
	c.APIURL = config.GetEnvStr("ROADWATCH_API_URL", c.APIURL)
	c.OutputDir = config.GetEnvStr("ROADWATCH_OUTPUT_DIR", c.OutputDir)
	c.LogLevel = config.GetEnvLogLevel("ROADWATCH_LOG_LEVEL", c.LogLevel)
	c.FetchTimeout = config.GetEnvDuration("ROADWATCH_FETCH_TIMEOUT", c.FetchTimeout)
	c.RetryCount = config.GetEnvInt("ROADWATCH_RETRY_COUNT", c.RetryCount)
	c.BackupRetention = config.GetEnvInt("ROADWATCH_BACKUP_RETENTION", c.BackupRetention)
	c.MaxAge = time.Duration(config.GetEnvInt("ROADWATCH_MAX_AGE_HOURS", int(c.MaxAge/time.Hour))) * time.Hour
	c.UpdateInterval = config.GetEnvDuration("ROADWATCH_UPDATE_INTERVAL", c.UpdateInterval)
	c.RateLimitRPS = config.GetEnvFloat("ROADWATCH_RATE_LIMIT_RPS", c.RateLimitRPS)

	if brokers := config.GetEnvStr("ROADWATCH_KAFKA_BROKERS", ""); brokers != "" {
		c.Feed.Brokers = config.ParseCommaSeparatedList(brokers)
	}

	c.Feed.Topic = config.GetEnvStr("ROADWATCH_KAFKA_TOPIC", c.Feed.Topic)
}

// clamp forces out-of-range values into their documented ranges.
func (c *Config) clamp() {
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}

	if c.RetryCount > maxRetryCount {
		c.RetryCount = maxRetryCount
	}

	if c.BackupRetention < snapshot.MinBackupRetention {
		c.BackupRetention = snapshot.MinBackupRetention
	}

	if c.BackupRetention > snapshot.MaxBackupRetention {
		c.BackupRetention = snapshot.MaxBackupRetention
	}

	if c.MaxAge < time.Hour {
		c.MaxAge = defaultMaxAgeHours * time.Hour
	}
}

// Validate checks whether the configuration can run a pipeline at all.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrAPIURLEmpty
	}

	if c.FetchTimeout <= 0 {
		return ErrFetchTimeoutInvalid
	}

	if c.UpdateInterval <= 0 {
		return ErrUpdateIntervalInvalid
	}

	return nil
}

// parseLogLevel maps a config-file level name onto a slog level.
func parseLogLevel(value string, fallback slog.Level) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	return fallback
}
