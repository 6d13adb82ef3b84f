// Package store persists workout templates and instances. Two backends
// share one schema: Postgres through pgx for deployments and SQLite for
// single-user installs and tests.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrTemplateNotFound is returned by InsertInstance when the template does
// not exist or belongs to another user.
var ErrTemplateNotFound = errors.New("workout template not found for user")

// Config selects and addresses a backend.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is a libpq connection string / URL for postgres, or a file path
	// for sqlite.
	DSN string
}

// Store is the persistence collaborator used by schedule.Service, plus the
// template seeding and lifecycle calls the process needs.
type Store interface {
	InsertInstance(ctx context.Context, userID model.UserID, templateID model.TemplateID, start time.Time, rule string) (model.InstanceID, error)
	FetchTemplates(ctx context.Context, userID model.UserID) ([]model.WorkoutTemplate, error)
	FetchInstances(ctx context.Context, userID model.UserID, rng model.DateRange) ([]model.WorkoutInstance, error)
	CreateTemplate(ctx context.Context, tpl model.WorkoutTemplate) (model.TemplateID, error)
	Close() error
}

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "postgres", "postgresql", "pgx":
		p, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return p, nil
	case "sqlite", "sqlite3", "":
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func schema(driver string) (string, error) {
	b, err := migrationsFS.ReadFile("migrations/" + driver + ".sql")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// zoneName is what gets stored next to an instant so the instance's wall
// clock can be restored on load.
func zoneName(t time.Time) string {
	name := t.Location().String()
	if name == "" {
		return "UTC"
	}
	return name
}

func inZone(t time.Time, name string) time.Time {
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("stored timezone unknown; using UTC", err, "tz", name)
		return t.UTC()
	}
	return t.In(loc)
}
