package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"statushub/config"
	"statushub/pkg/logger"

	"github.com/valkey-io/valkey-go"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type CacheClient valkey.Client

type Cache struct {
	General CacheClient
	Events  CacheClient
}

// DB bundles the optional session history store and the optional valkey
// clients. Either may be nil when not configured.
type DB struct {
	SQL   *gorm.DB
	Cache Cache
	log   logger.Logger
}

func New(config config.Config) (DB, error) {
	log := logger.New("database").Function("New")

	log.Info("Initializing database", "driver", config.DatabaseDriver, "cache", config.CacheEnabled())
	db := &DB{log: log}

	if config.DatabaseDriver != "" {
		if err := db.initializeDB(config); err != nil {
			return DB{}, log.Err("failed to initialize database", err)
		}
	} else {
		log.Info("No database driver configured, session history disabled")
	}

	if config.CacheEnabled() {
		if err := db.initializeCacheDB(config); err != nil {
			_ = db.Close()
			return DB{}, log.Err("failed to initialize cache database", err)
		}
	} else {
		log.Info("No cache configured, snapshot cache and event bridge disabled")
	}

	return *db, nil
}

func newGormConfig() *gorm.Config {
	gormLogger := gormLogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		gormLogger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  gormLogger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	return &gorm.Config{
		Logger:                 gormLogger,
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}
}

func (s *DB) initializeDB(config config.Config) error {
	gormConfig := newGormConfig()

	switch config.DatabaseDriver {
	case "postgres":
		return s.initializePostgresDB(gormConfig, config)
	case "sqlite":
		return s.initializeSqliteDB(gormConfig, config)
	default:
		return s.log.Function("initializeDB").Error("unsupported database driver", "driver", config.DatabaseDriver)
	}
}

func (s *DB) initializePostgresDB(gormConfig *gorm.Config, config config.Config) error {
	log := s.log.Function("initializePostgresDB")

	if config.DatabaseHost == "" {
		return log.Error("database host is empty")
	}
	if config.DatabaseName == "" {
		return log.Error("database name is empty")
	}
	if config.DatabaseUser == "" {
		return log.Error("database user is empty")
	}

	log.Info("Connecting to PostgreSQL",
		"host", config.DatabaseHost,
		"port", config.DatabasePort,
		"database", config.DatabaseName,
	)
	db, err := gorm.Open(postgres.Open(PostgresDSN(config)+" TimeZone=UTC"), gormConfig)
	if err != nil {
		return log.Err("failed to open PostgreSQL database with GORM", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return log.Err("failed to get database from GORM", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return log.Err("failed to ping PostgreSQL database through GORM", err)
	}

	log.Info("Successfully connected to PostgreSQL with GORM")
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s.SQL = db
	return nil
}

// initializeSqliteDB opens a local file and migrates it in place. Postgres
// schemas are owned by cmd/migration instead.
func (s *DB) initializeSqliteDB(gormConfig *gorm.Config, config config.Config) error {
	log := s.log.Function("initializeSqliteDB")

	db, err := OpenSqlite(config.DatabasePath, gormConfig)
	if err != nil {
		return log.Err("failed to open sqlite database", err, "path", config.DatabasePath)
	}

	s.SQL = db
	if err := s.MigrateModels(); err != nil {
		return log.Err("failed to migrate sqlite database", err)
	}

	log.Info("Opened sqlite database", "path", config.DatabasePath)
	return nil
}

// OpenSqlite opens a sqlite file with a single connection
func OpenSqlite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if gormConfig == nil {
		gormConfig = newGormConfig()
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// PostgresDSN builds the lib/pq style connection string shared with cmd/migration
func PostgresDSN(config config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		config.DatabaseHost,
		config.DatabasePort,
		config.DatabaseUser,
		config.DatabasePassword,
		config.DatabaseName,
	)
}

func (s *DB) Close() (err error) {
	if s.SQL != nil {
		sqlDB, dbErr := s.SQL.DB()
		if dbErr == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				err = s.log.Err("failed to close database", closeErr)
			}
		}
	}

	if s.Cache.General != nil {
		s.Cache.General.Close()
	}

	if s.Cache.Events != nil {
		s.Cache.Events.Close()
	}

	return err
}

func (s *DB) SQLWithContext(ctx context.Context) *gorm.DB {
	return s.SQL.WithContext(ctx)
}

// HistoryEnabled reports whether sessions can be persisted
func (s *DB) HistoryEnabled() bool {
	return s.SQL != nil
}
