package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir holds the ledger schema, relative to the repository root.
const DefaultDir = "pkg/migrate/migrations"

const dialect = "postgres"

type direction int

const (
	stay direction = iota
	forward
	backward
)

// directionTo picks how goose must move the schema from current to target.
func directionTo(current, target int64) direction {
	switch {
	case target > current:
		return forward
	case target < current:
		return backward
	}
	return stay
}

// ParseVersion reads a goose version such as 20260101000000. Zero is allowed
// and means an empty schema.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("migrate: version is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("migrate: version %q is not a YYYYMMDDHHMMSS timestamp", raw)
	}
	return v, nil
}

func prepare(db *sql.DB, dir string) error {
	if db == nil {
		return errors.New("migrate: nil database handle")
	}
	if dir == "" {
		return errors.New("migrate: empty migrations dir")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migrate: dialect %s: %w", dialect, err)
	}
	return nil
}

// Run executes one goose command (up, down, status, version) against db.
// goose writes its own progress lines to stdout.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := ParseVersion(targetVersion)
	if err != nil {
		return err
	}
	if err := prepare(db, dir); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}

	switch directionTo(current, target) {
	case forward:
		err = goose.UpToContext(ctx, db, dir, target)
	case backward:
		err = goose.DownToContext(ctx, db, dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
