package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"steamwash-cloud/internal/sqldb"
)

const memberColumns = `id, uuid, name, address, created_at, updated_at`

// SQLRepository stores members in the members table.
type SQLRepository struct {
	db *sqldb.DB
}

// NewSQLRepository constructs a repository.
func NewSQLRepository(db *sqldb.DB) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("member repo: nil db")
	}
	return &SQLRepository{db: db}, nil
}

// List returns every member, newest id first.
func (r *SQLRepository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("member repo: list: %w", err)
	}
	defer rows.Close()

	out := make([]Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("member repo: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get loads one member.
func (r *SQLRepository) Get(ctx context.Context, id int64) (Member, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+memberColumns+` FROM members WHERE id = $1`), id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("member repo: get: %w", err)
	}
	return m, nil
}

// Create inserts member and returns it with its assigned id.
func (r *SQLRepository) Create(ctx context.Context, member Member) (Member, error) {
	if err := member.Validate(); err != nil {
		return Member{}, err
	}
	query := r.db.Rebind(`INSERT INTO members (uuid, name, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`)
	if err := r.db.QueryRowContext(ctx, query,
		member.UUID, member.Name, member.Address, member.CreatedAt.UTC(), member.UpdatedAt.UTC(),
	).Scan(&member.ID); err != nil {
		return Member{}, fmt.Errorf("member repo: create: %w", err)
	}
	return member, nil
}

// Update replaces name and address.
func (r *SQLRepository) Update(ctx context.Context, id int64, name, address string, at time.Time) (Member, error) {
	name, address = strings.TrimSpace(name), strings.TrimSpace(address)
	if name == "" || address == "" {
		return Member{}, ErrInvalidMember
	}
	result, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE members SET name = $1, address = $2, updated_at = $3 WHERE id = $4`),
		name, address, at.UTC(), id)
	if err != nil {
		return Member{}, fmt.Errorf("member repo: update: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return Member{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a member.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM members WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("member repo: delete: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(s scanner) (Member, error) {
	var m Member
	if err := s.Scan(&m.ID, &m.UUID, &m.Name, &m.Address, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Member{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}
