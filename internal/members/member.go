package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no member has the requested id.
	ErrNotFound = errors.New("member not found")
	// ErrInvalidMember is returned when name or address is missing.
	ErrInvalidMember = errors.New("name and address are required")
)

// Member is a registered customer of the wash.
type Member struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a member with a fresh uuid.
func New(name, address string, now time.Time) (Member, error) {
	m := Member{
		UUID:      uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Address:   strings.TrimSpace(address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		return Member{}, err
	}
	return m, nil
}

// Validate checks member invariants.
func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Address) == "" {
		return ErrInvalidMember
	}
	return nil
}

// Repository manages member persistence.
type Repository interface {
	List(ctx context.Context) ([]Member, error)
	Get(ctx context.Context, id int64) (Member, error)
	Create(ctx context.Context, member Member) (Member, error)
	Update(ctx context.Context, id int64, name, address string, at time.Time) (Member, error)
	Delete(ctx context.Context, id int64) error
}
