// Package schema embeds the database migrations and applies them with
// golang-migrate. The DEV seed lives in a separate set with its own version
// table so its numbering never collides with the schema's.
package schema

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed seed/*.sql
var seedFS embed.FS

// Set is one independently versioned group of migrations.
type Set struct {
	name  string
	fsys  embed.FS
	dir   string
	table string
}

var (
	Tables = Set{name: "schema", fsys: migrationsFS, dir: "migrations", table: postgres.DefaultMigrationsTable}
	Seed   = Set{name: "seed", fsys: seedFS, dir: "seed", table: "seed_migrations"}
)

func (s Set) String() string { return s.name }

// Up applies every pending migration of s. Already current is not an error.
func (s Set) Up(db *sql.DB) error {
	return s.run(db, (*migrate.Migrate).Up)
}

// Down rolls back every applied migration of s.
func (s Set) Down(db *sql.DB) error {
	return s.run(db, (*migrate.Migrate).Down)
}

func (s Set) run(db *sql.DB, step func(*migrate.Migrate) error) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: s.table})
	if err != nil {
		return fmt.Errorf("%s: postgres driver: %w", s.name, err)
	}

	src, err := iofs.New(s.fsys, s.dir)
	if err != nil {
		return fmt.Errorf("%s: iofs source: %w", s.name, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("%s: migrate instance: %w", s.name, err)
	}

	err = step(m)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	return nil
}
