// Package storage implements the chunk-based persistence engine of
// spec.md §4.6: a single mutating writer connection batching samples into
// fixed-duration chunks, many-reader WAL snapshot isolation, and a FIFO
// reaper enforcing a total-size budget under an active-session guard.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dbehnke/neomonitor/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

// DB wraps the GORM connection used for persistence. Per spec.md's
// sharing discipline, exactly one DB value in a process may be used for
// mutating operations (see Writer); any number may be opened read-only.
type DB struct {
	gdb *gorm.DB
	log *logger.Logger
}

// Config configures the on-disk database.
type Config struct {
	Path string
}

// Open creates (or attaches to) the database file, enables WAL journaling,
// and runs the schema migration.
func Open(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = "neomonitor.db"
	}
	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying connection: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := gdb.AutoMigrate(
		&Patient{}, &Session{}, &Chunk{}, &AEEGTrend{}, &Event{}, &DeletionLog{},
	); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("storage opened", logger.String("path", cfg.Path))
	return &DB{gdb: gdb, log: log}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GORM returns the underlying connection for repository construction.
func (d *DB) GORM() *gorm.DB { return d.gdb }

type gormLogAdapter struct {
	log *logger.Logger
}

func (a *gormLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Debug(fmt.Sprintf(format, args...))
}
