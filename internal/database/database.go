package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectTimeout = 5 * time.Second

// Connect opens the Postgres pool and checks it answers before returning.
func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         newGormLogger(log, cfg.SSLMode == "disable"),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info("connected to database",
		"host", cfg.Host,
		"database", cfg.Name,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Models lists every table the application owns, in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Account{},
		&models.Event{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// slogWriter sends gorm's log lines to the application logger.
type slogWriter struct {
	log   *slog.Logger
	level slog.Level
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	msg := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	w.log.Log(context.Background(), w.level, msg, "component", "gorm")
}

// newGormLogger logs every statement when verbose, otherwise only slow
// queries and errors. Record-not-found is an expected outcome for lookups.
func newGormLogger(log *slog.Logger, verbose bool) logger.Interface {
	level := logger.Warn
	writer := slogWriter{log: log, level: slog.LevelWarn}
	if verbose {
		level = logger.Info
		writer.level = slog.LevelDebug
	}
	return logger.New(writer, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
