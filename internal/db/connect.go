// Package db opens the GORM connection that backs the mailbox, the agent
// registry and the workflow record store.
package db

import (
	"errors"
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnavailable reports that the backing store could not serve a request.
var ErrUnavailable = errors.New("store unavailable")

// Unavailable wraps a storage error so that errors.Is(err, ErrUnavailable)
// holds while the original cause stays in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// DSN builds a MySQL-compatible DSN (MySQL or a Dolt sql-server).
func DSN(user string, host string, port int, database string) string {
	if user == "" {
		user = "root"
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, host, port, database)
}

// Open connects to the database described by cfg.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return ConnectMySQL(cfg.User, cfg.Host, cfg.Port, cfg.Name)
	case config.DriverSQLite, "":
		return ConnectSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}
}

// ConnectMySQL opens a GORM connection to a MySQL-compatible server.
func ConnectMySQL(user, host string, port int, database string) (*gorm.DB, error) {
	dsn := DSN(user, host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return db, nil
}

// ConnectSQLite opens a SQLite database file (or ":memory:"). SQLite allows a
// single writer, so the pool is capped at one connection; drone loops and
// workflow phases serialize on it instead of failing with SQLITE_BUSY.
func ConnectSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}
