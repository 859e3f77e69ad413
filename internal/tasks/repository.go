package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"steamwash-cloud/internal/sqldb"
)

const taskColumns = `id, uuid, task, pic, status, priority, created_at, updated_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLRepository stores tasks in the tasks table.
type SQLRepository struct {
	db *sqldb.DB
}

// NewSQLRepository constructs a repository.
func NewSQLRepository(db *sqldb.DB) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("task repo: nil db")
	}
	return &SQLRepository{db: db}, nil
}

// List returns every task, newest id first.
func (r *SQLRepository) List(ctx context.Context) ([]Task, error) {
	return r.query(ctx, r.db, `SELECT `+taskColumns+` FROM tasks ORDER BY id DESC`)
}

// Get loads one task.
func (r *SQLRepository) Get(ctx context.Context, id int64) (Task, error) {
	return r.get(ctx, r.db, id)
}

// Create inserts task and returns it with its assigned id.
func (r *SQLRepository) Create(ctx context.Context, task Task) (Task, error) {
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	return r.insert(ctx, r.db, task)
}

// Update applies patch in one transaction.
func (r *SQLRepository) Update(ctx context.Context, id int64, patch Patch, at time.Time) (Task, error) {
	if err := patch.Validate(); err != nil {
		return Task{}, err
	}
	var updated Task
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		updated.UpdatedAt = at.UTC()
		_, err = tx.ExecContext(ctx, r.db.Rebind(`UPDATE tasks
SET task = $1, pic = $2, status = $3, priority = $4, updated_at = $5
WHERE id = $6`),
			updated.Task, nullString(updated.PIC), string(updated.Status), string(updated.Priority), updated.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("task repo: update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return updated, nil
}

// Delete removes a task.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("task repo: delete: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates counts for the dashboard. Every known status and
// priority is present, with zero when no task has it.
func (r *SQLRepository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		StatusStats:   make(map[Status]int, len(Statuses)),
		PriorityStats: make(map[Priority]int, len(Priorities)),
		PICStats:      make(map[string]int),
	}
	for _, s := range Statuses {
		stats.StatusStats[s] = 0
	}
	for _, p := range Priorities {
		stats.PriorityStats[p] = 0
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&stats.TotalTodos); err != nil {
		return Stats{}, fmt.Errorf("task repo: count: %w", err)
	}
	if err := r.countBy(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`, func(key string, n int) {
		stats.StatusStats[Status(key)] = n
	}); err != nil {
		return Stats{}, err
	}
	if err := r.countBy(ctx, `SELECT priority, COUNT(*) FROM tasks GROUP BY priority`, func(key string, n int) {
		stats.PriorityStats[Priority(key)] = n
	}); err != nil {
		return Stats{}, err
	}
	if err := r.countBy(ctx, `SELECT COALESCE(NULLIF(pic, ''), '`+UnassignedPIC+`'), COUNT(*) FROM tasks
GROUP BY COALESCE(NULLIF(pic, ''), '`+UnassignedPIC+`')`, func(key string, n int) {
		stats.PICStats[key] = n
	}); err != nil {
		return Stats{}, err
	}

	var err error
	stats.RunningTodos, err = r.query(ctx, r.db, `SELECT `+taskColumns+` FROM tasks
WHERE status = 'running' ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return Stats{}, err
	}
	stats.HighPriorityPending, err = r.query(ctx, r.db, `SELECT `+taskColumns+` FROM tasks
WHERE priority = 'high' AND status = 'pending' ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return Stats{}, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE pic IS NULL OR pic = ''`).
		Scan(&stats.UnassignedTodos); err != nil {
		return Stats{}, fmt.Errorf("task repo: count unassigned: %w", err)
	}
	return stats, nil
}

// ByPIC lists the tasks of pic, newest first.
func (r *SQLRepository) ByPIC(ctx context.Context, pic string) ([]Task, error) {
	if pic == UnassignedKey {
		return r.query(ctx, r.db, `SELECT `+taskColumns+` FROM tasks
WHERE pic IS NULL OR pic = '' ORDER BY created_at DESC, id DESC`)
	}
	return r.query(ctx, r.db, r.db.Rebind(`SELECT `+taskColumns+` FROM tasks
WHERE pic = $1 ORDER BY created_at DESC, id DESC`), pic)
}

// PICs returns the distinct assigned people in ascending order.
func (r *SQLRepository) PICs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT pic FROM tasks
WHERE pic IS NOT NULL AND pic <> '' ORDER BY pic ASC`)
	if err != nil {
		return nil, fmt.Errorf("task repo: pics: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var pic string
		if err := rows.Scan(&pic); err != nil {
			return nil, fmt.Errorf("task repo: scan pic: %w", err)
		}
		out = append(out, pic)
	}
	return out, rows.Err()
}

// SeedSamples inserts the starter tasks when the table is empty. It reports
// how many tasks were inserted.
func (r *SQLRepository) SeedSamples(ctx context.Context, now time.Time) (int, error) {
	inserted := 0
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
			return fmt.Errorf("task repo: count: %w", err)
		}
		if count > 0 {
			return nil
		}
		for _, task := range SampleTasks(now.UTC()) {
			if _, err := r.insert(ctx, tx, task); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *SQLRepository) insert(ctx context.Context, q querier, task Task) (Task, error) {
	query := r.db.Rebind(`INSERT INTO tasks (uuid, task, pic, status, priority, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`)
	if err := q.QueryRowContext(ctx, query,
		task.UUID, task.Task, nullString(task.PIC), string(task.Status), string(task.Priority),
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	).Scan(&task.ID); err != nil {
		return Task{}, fmt.Errorf("task repo: create: %w", err)
	}
	return task, nil
}

func (r *SQLRepository) get(ctx context.Context, q querier, id int64) (Task, error) {
	row := q.QueryRowContext(ctx, r.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = $1`), id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("task repo: get: %w", err)
	}
	return task, nil
}

func (r *SQLRepository) query(ctx context.Context, q querier, query string, args ...any) ([]Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("task repo: query: %w", err)
	}
	defer rows.Close()
	out := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("task repo: scan: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLRepository) countBy(ctx context.Context, query string, fn func(key string, n int)) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("task repo: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("task repo: scan stats: %w", err)
		}
		fn(key, n)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var (
		task     Task
		pic      sql.NullString
		status   string
		priority string
	)
	if err := s.Scan(&task.ID, &task.UUID, &task.Task, &pic, &status, &priority, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return Task{}, err
	}
	if pic.Valid {
		task.PIC = normalizePIC(pic.String)
	}
	task.Status = Status(status)
	task.Priority = Priority(priority)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return task, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
