// Package config loads service configuration from config.yaml, .env and
// SMARTIMPORT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/db"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/matching"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
)

// EnvPrefix namespaces environment overrides, e.g. SMARTIMPORT_DATABASE_HOST.
const EnvPrefix = "SMARTIMPORT"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// Config is the full service configuration.
type Config struct {
	Server         ServerConfig
	Database       db.Config
	MigrateOnStart bool
	Redis          RedisConfig
	StorageDriver  string
	SourceTTL      time.Duration
	// CommitClaimTTL is how long an unfinished commit blocks its session.
	CommitClaimTTL time.Duration
	Import         session.Config
	Log            LogConfig
}

// Load reads configuration. A missing config.yaml or .env is not an error;
// defaults and the environment still apply.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			IdleTimeout:    v.GetDuration("server.idle_timeout"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
		},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		MigrateOnStart: v.GetBool("database.migrate_on_start"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		StorageDriver: strings.ToLower(v.GetString("storage.driver")),
		SourceTTL:      v.GetDuration("import.source_ttl"),
		CommitClaimTTL: v.GetDuration("import.commit_claim_ttl"),
		Import: session.Config{
			SampleSize:         v.GetInt("import.sample_size"),
			AutoApplyThreshold: v.GetFloat64("import.auto_apply_threshold"),
			PreviewLimit:       v.GetInt("import.preview_limit"),
			PreviewWorkers:     v.GetInt("import.preview_workers"),
			MaxHours:           v.GetFloat64("import.max_hours"),
			LoaderWait:         v.GetDuration("import.loader_wait"),
			LoaderBatchSize:    v.GetInt("import.loader_batch_size"),
			Matching: matching.Policy{
				HighThreshold:  v.GetFloat64("matching.high_threshold"),
				LowThreshold:   v.GetFloat64("matching.low_threshold"),
				TieMargin:      v.GetFloat64("matching.tie_margin"),
				CandidateLimit: v.GetInt("matching.candidate_limit"),
			},
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	importDefaults := session.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 32<<20)

	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)
	v.SetDefault("database.migrate_on_start", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("import.sample_size", importDefaults.SampleSize)
	v.SetDefault("import.auto_apply_threshold", importDefaults.AutoApplyThreshold)
	v.SetDefault("import.preview_limit", importDefaults.PreviewLimit)
	v.SetDefault("import.preview_workers", importDefaults.PreviewWorkers)
	v.SetDefault("import.max_hours", importDefaults.MaxHours)
	v.SetDefault("import.loader_wait", importDefaults.LoaderWait)
	v.SetDefault("import.loader_batch_size", importDefaults.LoaderBatchSize)
	v.SetDefault("import.source_ttl", 24*time.Hour)
	v.SetDefault("import.commit_claim_ttl", repository.DefaultCommitClaimTTL)

	v.SetDefault("matching.high_threshold", importDefaults.Matching.HighThreshold)
	v.SetDefault("matching.low_threshold", importDefaults.Matching.LowThreshold)
	v.SetDefault("matching.tie_margin", importDefaults.Matching.TieMargin)
	v.SetDefault("matching.candidate_limit", importDefaults.Matching.CandidateLimit)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}
	policy := c.Import.Matching
	if policy.LowThreshold <= 0 || policy.LowThreshold > policy.HighThreshold || policy.HighThreshold > 1 {
		return fmt.Errorf("matching thresholds must satisfy 0 < low (%v) <= high (%v) <= 1", policy.LowThreshold, policy.HighThreshold)
	}
	if policy.TieMargin < 0 {
		return fmt.Errorf("matching.tie_margin must not be negative, got %v", policy.TieMargin)
	}
	if c.CommitClaimTTL <= 0 {
		return fmt.Errorf("import.commit_claim_ttl must be positive, got %v", c.CommitClaimTTL)
	}
	if c.Import.MaxHours <= 0 {
		return fmt.Errorf("import.max_hours must be positive, got %v", c.Import.MaxHours)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
