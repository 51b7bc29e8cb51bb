package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruko-pos/ruko-pos/internal/shared"
)

type memRepo struct {
	nextID   int64
	cashiers map[string]*Cashier
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*Cashier, error) {
	c, ok := r.cashiers[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (r *memRepo) Create(_ context.Context, c *Cashier) (*Cashier, error) {
	r.nextID++
	cp := *c
	cp.ID = r.nextID
	r.cashiers[cp.Username] = &cp
	return &cp, nil
}

func TestVerifyPIN(t *testing.T) {
	repo := &memRepo{cashiers: make(map[string]*Cashier)}
	svc := NewService(repo, slog.Default())
	ctx := context.Background()

	_, err := svc.Register(ctx, "budi", "Budi", "123456", RoleCashier)
	require.NoError(t, err)

	c, err := svc.VerifyPIN(ctx, "budi", "123456")
	require.NoError(t, err)
	assert.Equal(t, "Budi", c.Name)

	_, err = svc.VerifyPIN(ctx, "budi", "654321")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Unknown username is indistinguishable from a wrong pin.
	_, err = svc.VerifyPIN(ctx, "siapa", "123456")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
