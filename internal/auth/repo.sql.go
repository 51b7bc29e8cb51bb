package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// Repository provides PostgreSQL backed persistence for cashier accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByUsername fetches one cashier account.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Cashier, error) {
	var c Cashier
	err := r.pool.QueryRow(ctx, `SELECT id, username, name, role, pin_hash, created_at
FROM cashiers WHERE username = $1`, username).
		Scan(&c.ID, &c.Username, &c.Name, &c.Role, &c.PINHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a cashier account.
func (r *Repository) Create(ctx context.Context, c *Cashier) (*Cashier, error) {
	var out Cashier
	err := r.pool.QueryRow(ctx, `INSERT INTO cashiers (username, name, role, pin_hash, created_at)
VALUES ($1, $2, $3, $4, now())
RETURNING id, username, name, role, pin_hash, created_at`,
		c.Username, c.Name, c.Role, c.PINHash).
		Scan(&out.ID, &out.Username, &out.Name, &out.Role, &out.PINHash, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
