// Package sqlite provides a SQLite-backed storage driver using ent's SQL layer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	entdriver "github.com/papercomputeco/tether/pkg/storage/ent/driver"
	"github.com/papercomputeco/tether/pkg/storage/ent/migrate"
)

// Driver implements storage.Driver using SQLite via the ent driver.
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver creates a new SQLite-backed store and migrates its schema.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	drv := entsql.OpenDB(dialect.SQLite, db)

	// Run ent's auto-migration to create/update the schema.
	// This handles append-only schema changes (new tables, columns, indexes)
	if err := migrate.Create(ctx, drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{
		EntDriver: &entdriver.EntDriver{Driver: drv},
	}, nil
}

// Open opens the database using the github.com/mattn/go-sqlite3 driver
// (registered as "sqlite3") with foreign keys enforced.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	if strings.Contains(dbPath, "_fk=") {
		return dbPath
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_fk=1"
}
