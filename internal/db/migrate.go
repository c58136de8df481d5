package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

var ErrUnknownMigrateMode = errors.New("unknown migration mode")

// Migrate applies every pending migration in dir ("up") or rolls back the
// most recent one ("down").
func Migrate(conn *sql.DB, dir, mode string) error {
	if mode != MigrateUp && mode != MigrateDown {
		return fmt.Errorf("%w: %s (use 'up' or 'down')", ErrUnknownMigrateMode, mode)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	switch mode {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Steps(-1)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations (%s): %w", mode, err)
	}
	return nil
}
