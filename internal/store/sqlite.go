package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"workoutcal/internal/model"
)

const sqliteTimeLayout = "2006-01-02T15:04:05Z"

// SQLite is the modernc.org/sqlite-backed Store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	ddl, err := schema("sqlite")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) InsertInstance(ctx context.Context, userID model.UserID, templateID model.TemplateID, start time.Time, rule string) (model.InstanceID, error) {
	const stmt = `INSERT INTO workout_instances (user_id, workout_template_id, start_date, start_tz, rrule)
		SELECT ?, t.id, ?, ?, ? FROM workout_templates t WHERE t.id = ? AND t.user_id = ?
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, stmt,
		int64(userID), start.UTC().Format(sqliteTimeLayout), zoneName(start), rule,
		int64(templateID), int64(userID),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTemplateNotFound
		}
		return 0, err
	}
	return model.InstanceID(id), nil
}

func (s *SQLite) FetchTemplates(ctx context.Context, userID model.UserID) ([]model.WorkoutTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, template_name, workout_type FROM workout_templates WHERE user_id = ? ORDER BY id`,
		int64(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.WorkoutTemplate, 0)
	for rows.Next() {
		var tpl model.WorkoutTemplate
		var id, uid int64
		if err := rows.Scan(&id, &uid, &tpl.Name, &tpl.Kind); err != nil {
			return nil, err
		}
		tpl.ID, tpl.UserID = model.TemplateID(id), model.UserID(uid)
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *SQLite) FetchInstances(ctx context.Context, userID model.UserID, rng model.DateRange) ([]model.WorkoutInstance, error) {
	query := `SELECT id, user_id, workout_template_id, start_date, start_tz, rrule
		FROM workout_instances WHERE user_id = ?`
	args := []any{int64(userID)}
	if !rng.End.IsZero() {
		query += ` AND start_date <= ?`
		args = append(args, rng.End.UTC().Format(sqliteTimeLayout))
	}
	query += ` ORDER BY start_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.WorkoutInstance, 0)
	for rows.Next() {
		var inst model.WorkoutInstance
		var id, uid, tid int64
		var start, tz string
		if err := rows.Scan(&id, &uid, &tid, &start, &tz, &inst.Rule); err != nil {
			return nil, err
		}
		t, err := time.Parse(sqliteTimeLayout, start)
		if err != nil {
			return nil, err
		}
		inst.ID, inst.UserID, inst.TemplateID = model.InstanceID(id), model.UserID(uid), model.TemplateID(tid)
		inst.Start = inZone(t, tz)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateTemplate(ctx context.Context, tpl model.WorkoutTemplate) (model.TemplateID, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workout_templates (user_id, template_name, workout_type) VALUES (?, ?, ?)`,
		int64(tpl.UserID), tpl.Name, tpl.Kind,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return model.TemplateID(id), nil
}
