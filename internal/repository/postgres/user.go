package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/pulsemail/internal/domain"
)

// UserRepo stores the login identities that own every other row.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Upsert creates or refreshes a user keyed by email (the OAuth identity)
// and returns the stored row.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	out := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, picture, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO UPDATE SET name = $3, picture = $4
		RETURNING id, email, name, picture, created_at
	`, u.ID, u.Email, u.Name, u.Picture).Scan(
		&out.ID, &out.Email, &out.Name, &out.Picture, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

// Get returns one user by id.
func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, COALESCE(name,''), COALESCE(picture,''), created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
