// Package auth verifies cashier PINs before a terminal is unlocked.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// Role separates owner screens from cashier screens.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleCashier Role = "cashier"
)

// Cashier is a terminal account. The PIN is stored as a bcrypt hash only.
type Cashier struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	PINHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// RepositoryPort defines cashier persistence.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (*Cashier, error)
	Create(ctx context.Context, c *Cashier) (*Cashier, error)
}

// Service verifies credentials.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// VerifyPIN checks the cashier's PIN. Unknown usernames and wrong PINs are
// indistinguishable to the caller.
func (s *Service) VerifyPIN(ctx context.Context, username, pin string) (*Cashier, error) {
	c, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PINHash), []byte(pin)) != nil {
		s.logger.Warn("pin rejected", slog.String("username", username))
		return nil, shared.ErrInvalidCredentials
	}
	return c, nil
}

// Register creates a cashier account with a hashed PIN.
func (s *Service) Register(ctx context.Context, username, name, pin string, role Role) (*Cashier, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &Cashier{
		Username: username,
		Name:     name,
		Role:     role,
		PINHash:  string(hash),
	})
}
