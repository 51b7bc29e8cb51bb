// Package expense records operational outgoings (restock purchases,
// electricity, plastic bags) so daily profit reporting can net them out.
package expense

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound is returned for unknown expense ids.
var ErrNotFound = errors.New("expense: not found")

// Expense is one recorded outgoing.
type Expense struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Amount    int64     `json:"amount"`
	Category  string    `json:"category,omitempty"`
	SpentAt   time.Time `json:"spent_at"`
	CashierID string    `json:"cashier_id"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest is the expense form.
type CreateRequest struct {
	Name      string     `json:"name" validate:"required,max=128"`
	Amount    int64      `json:"amount" validate:"required,gt=0"`
	Category  string     `json:"category" validate:"max=64"`
	SpentAt   *time.Time `json:"spent_at"`
	CashierID string     `json:"cashier_id" validate:"required,max=64"`
}

// RepositoryPort defines expense persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, e *Expense) (*Expense, error)
	List(ctx context.Context, from, to time.Time) ([]Expense, error)
	Delete(ctx context.Context, id int64) error
	TotalBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// SyncPort queues expenses for the cloud push.
type SyncPort interface {
	EnqueueExpense(ctx context.Context, id int64) error
}

// Service exposes expense operations.
type Service struct {
	repo   RepositoryPort
	sync   SyncPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, syncPort SyncPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, sync: syncPort, logger: logger}
}

// Record stores an expense and queues it for sync.
func (s *Service) Record(ctx context.Context, input CreateRequest) (*Expense, error) {
	spentAt := time.Now()
	if input.SpentAt != nil {
		spentAt = *input.SpentAt
	}
	e, err := s.repo.Insert(ctx, &Expense{
		Name:      input.Name,
		Amount:    input.Amount,
		Category:  input.Category,
		SpentAt:   spentAt,
		CashierID: input.CashierID,
	})
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		if qerr := s.sync.EnqueueExpense(ctx, e.ID); qerr != nil {
			s.logger.Warn("enqueue expense sync", slog.Int64("expense", e.ID), slog.Any("error", qerr))
		}
	}
	return e, nil
}

// List returns expenses in the window, newest first.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]Expense, error) {
	return s.repo.List(ctx, from, to)
}

// Delete removes a mistakenly entered expense.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// TotalBetween sums expenses in the window for reporting.
func (s *Service) TotalBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.repo.TotalBetween(ctx, from, to)
}
