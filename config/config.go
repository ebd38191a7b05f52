package config

import (
	"os"
	"time"

	"statushub/pkg/logger"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion       string `mapstructure:"GENERAL_VERSION"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	ServerPort           int    `mapstructure:"SERVER_PORT"`
	CorsAllowOrigins     string `mapstructure:"CORS_ALLOW_ORIGINS"`
	DatabaseDriver       string `mapstructure:"DB_DRIVER"`
	DatabaseHost         string `mapstructure:"DB_HOST"`
	DatabasePort         int    `mapstructure:"DB_PORT"`
	DatabaseName         string `mapstructure:"DB_NAME"`
	DatabaseUser         string `mapstructure:"DB_USER"`
	DatabasePassword     string `mapstructure:"DB_PASSWORD"`
	DatabasePath         string `mapstructure:"DB_PATH"`
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	StatusDebounceMs     int    `mapstructure:"STATUS_DEBOUNCE_MS"`
	RecoveryGraceMs      int    `mapstructure:"RECOVERY_GRACE_MS"`
	EventMailboxSize     int    `mapstructure:"EVENT_MAILBOX_SIZE"`
	RecoveryWatchDir     string `mapstructure:"RECOVERY_WATCH_DIR"`
	RecoveryPlaceholder  string `mapstructure:"RECOVERY_PLACEHOLDER_SUFFIX"`
	RecoveryScanMinutes  int    `mapstructure:"RECOVERY_SCAN_MINUTES"`
	TempDir              string `mapstructure:"TEMP_DIR"`
	TempMaxAgeHours      int    `mapstructure:"TEMP_MAX_AGE_HOURS"`
	ControlJWTSecret     string `mapstructure:"CONTROL_JWT_SECRET"`
}

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT", "CORS_ALLOW_ORIGINS",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PATH",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
	"STATUS_DEBOUNCE_MS", "RECOVERY_GRACE_MS", "EVENT_MAILBOX_SIZE",
	"RECOVERY_WATCH_DIR", "RECOVERY_PLACEHOLDER_SUFFIX", "RECOVERY_SCAN_MINUTES",
	"TEMP_DIR", "TEMP_MAX_AGE_HOURS",
	"CONTROL_JWT_SECRET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GENERAL_VERSION", "dev")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", 8288)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_PATH", "statushub.db")
	v.SetDefault("STATUS_DEBOUNCE_MS", 100)
	v.SetDefault("RECOVERY_GRACE_MS", 4000)
	v.SetDefault("EVENT_MAILBOX_SIZE", 256)
	v.SetDefault("RECOVERY_PLACEHOLDER_SUFFIX", ".icloud")
	v.SetDefault("RECOVERY_SCAN_MINUTES", 15)
	v.SetDefault("TEMP_MAX_AGE_HOURS", 24)
}

func New() (Config, error) {
	return Load(viper.New())
}

// Load reads env vars, falling back to .env and .env.local when the key
// variables are not set
func Load(v *viper.Viper) (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	setDefaults(v)
	v.AutomaticEnv()

	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	// defaults make viper.IsSet always true, so look at the environment itself
	if _, ok := os.LookupEnv("SERVER_PORT"); ok {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		v.SetConfigFile(".env.local")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"port", config.ServerPort,
		"dbDriver", config.DatabaseDriver,
		"cache", config.CacheEnabled(),
	)
	return config, nil
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error("Fatal error: invalid server port", "port", config.ServerPort)
	}

	switch config.DatabaseDriver {
	case "":
	case DriverPostgres:
		if config.DatabaseHost == "" || config.DatabaseName == "" {
			return log.ErrMsg("Fatal error: DB_HOST and DB_NAME required for postgres")
		}
	case DriverSqlite:
		if config.DatabasePath == "" {
			return log.ErrMsg("Fatal error: DB_PATH required for sqlite")
		}
	default:
		return log.Error("Fatal error: unsupported DB_DRIVER", "driver", config.DatabaseDriver)
	}

	if config.EventMailboxSize <= 0 {
		return log.Error("Fatal error: invalid event mailbox size", "size", config.EventMailboxSize)
	}
	if config.StatusDebounceMs < 0 || config.RecoveryGraceMs <= 0 {
		return log.Error("Fatal error: invalid status timings",
			"debounceMs", config.StatusDebounceMs,
			"graceMs", config.RecoveryGraceMs,
		)
	}
	if config.RecoveryScanMinutes <= 0 || config.TempMaxAgeHours <= 0 {
		return log.Error("Fatal error: invalid job intervals",
			"scanMinutes", config.RecoveryScanMinutes,
			"tempMaxAgeHours", config.TempMaxAgeHours,
		)
	}

	return nil
}

// CacheEnabled reports whether a valkey address is configured
func (c Config) CacheEnabled() bool {
	return c.DatabaseCacheAddress != "" && c.DatabaseCachePort > 0
}

func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.StatusDebounceMs) * time.Millisecond
}

func (c Config) DismissalGrace() time.Duration {
	return time.Duration(c.RecoveryGraceMs) * time.Millisecond
}

func (c Config) RecoveryScanInterval() time.Duration {
	return time.Duration(c.RecoveryScanMinutes) * time.Minute
}

func (c Config) TempMaxAge() time.Duration {
	return time.Duration(c.TempMaxAgeHours) * time.Hour
}
