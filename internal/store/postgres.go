package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workoutcal/internal/model"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	p := NewPostgres(pool)
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. The schema is not touched.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) migrate(ctx context.Context) error {
	ddl, err := schema("postgres")
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, ddl)
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// InsertInstance stores a schedule. The row is only written when the
// template belongs to userID.
func (p *Postgres) InsertInstance(ctx context.Context, userID model.UserID, templateID model.TemplateID, start time.Time, rule string) (model.InstanceID, error) {
	const stmt = `INSERT INTO workout_instances (user_id, workout_template_id, start_date, start_tz, rrule)
        SELECT $1::bigint, t.id, $3::timestamptz, $4::text, $5::text
        FROM workout_templates t WHERE t.id = $2::bigint AND t.user_id = $1::bigint
        RETURNING id`

	var id int64
	err := p.pool.QueryRow(ctx, stmt, int64(userID), int64(templateID), start, zoneName(start), rule).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTemplateNotFound
		}
		return 0, err
	}
	return model.InstanceID(id), nil
}

func (p *Postgres) FetchTemplates(ctx context.Context, userID model.UserID) ([]model.WorkoutTemplate, error) {
	const query = `SELECT id, user_id, template_name, workout_type
        FROM workout_templates WHERE user_id = $1 ORDER BY id`

	rows, err := p.pool.Query(ctx, query, int64(userID))
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

// FetchInstances returns instances that start no later than rng.End (a
// zero End means no bound). Whether they actually occur inside rng is for
// the caller to expand.
func (p *Postgres) FetchInstances(ctx context.Context, userID model.UserID, rng model.DateRange) ([]model.WorkoutInstance, error) {
	const query = `SELECT id, user_id, workout_template_id, start_date, start_tz, rrule
        FROM workout_instances
        WHERE user_id = $1 AND ($2::timestamptz IS NULL OR start_date <= $2)
        ORDER BY start_date, id`

	var end *time.Time
	if !rng.End.IsZero() {
		end = &rng.End
	}

	rows, err := p.pool.Query(ctx, query, int64(userID), end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.WorkoutInstance, 0)
	for rows.Next() {
		var inst model.WorkoutInstance
		var id, uid, tid int64
		var tz string
		if err := rows.Scan(&id, &uid, &tid, &inst.Start, &tz, &inst.Rule); err != nil {
			return nil, err
		}
		inst.ID, inst.UserID, inst.TemplateID = model.InstanceID(id), model.UserID(uid), model.TemplateID(tid)
		inst.Start = inZone(inst.Start, tz)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateTemplate(ctx context.Context, tpl model.WorkoutTemplate) (model.TemplateID, error) {
	const stmt = `INSERT INTO workout_templates (user_id, template_name, workout_type)
        VALUES ($1, $2, $3) RETURNING id`

	var id int64
	if err := p.pool.QueryRow(ctx, stmt, int64(tpl.UserID), tpl.Name, tpl.Kind).Scan(&id); err != nil {
		return 0, err
	}
	return model.TemplateID(id), nil
}
