package ledger

import (
	"context"
	"log/slog"
)

// RepositoryPort defines ledger persistence.
type RepositoryPort interface {
	AppendEntry(ctx context.Context, customerID int64, kind EntryKind, amount int64, txID, note string) (*Entry, error)
	EntriesFor(ctx context.Context, customerID int64) ([]Entry, error)
	BalanceFor(ctx context.Context, customerID int64) (int64, error)
	OutstandingCustomers(ctx context.Context) ([]Balance, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
}

// Service exposes the receivables operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RecordPayment appends a payment entry. Over-payment is permitted and
// leaves the customer with store credit (a negative outstanding balance).
func (s *Service) RecordPayment(ctx context.Context, customerID int64, input PaymentRequest) (*Entry, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	entry, err := s.repo.AppendEntry(ctx, customerID, KindPayment, input.Amount, "", input.Note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("kasbon payment recorded",
		slog.Int64("customer", customerID), slog.Int64("amount", input.Amount))
	return entry, nil
}

// RecordBorrow appends a borrow entry linked to a sale. Debt sales normally
// write their entry inside the checkout transaction; this path covers
// manual corrections.
func (s *Service) RecordBorrow(ctx context.Context, customerID, amount int64, txID, note string) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.AppendEntry(ctx, customerID, KindBorrow, amount, txID, note)
}

// BalanceFor derives the customer's outstanding amount from the entry stream.
func (s *Service) BalanceFor(ctx context.Context, customerID int64) (int64, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return 0, err
	}
	return s.repo.BalanceFor(ctx, customerID)
}

// EntriesFor returns the customer's ledger history, newest first.
func (s *Service) EntriesFor(ctx context.Context, customerID int64) ([]Entry, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.EntriesFor(ctx, customerID)
}

// OutstandingCustomers lists customers owing money, largest balance first.
func (s *Service) OutstandingCustomers(ctx context.Context) ([]Balance, error) {
	return s.repo.OutstandingCustomers(ctx)
}

func (s *Service) ensureCustomer(ctx context.Context, customerID int64) error {
	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
