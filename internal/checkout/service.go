package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruko-pos/ruko-pos/internal/cart"
	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// RepositoryPort defines persistence for committed sales.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	MarkSynced(ctx context.Context, id string) error
	CountUnsynced(ctx context.Context) (int64, error)
}

// TxRepository exposes the commit-phase operations, run in one transaction.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx *Transaction) error
	// DecrementStock applies a relative decrement so concurrent terminals
	// converge without a locking protocol. It fails rather than clamps when
	// stock would go negative.
	DecrementStock(ctx context.Context, productID, baseQty int64) error
	AppendDebtBorrow(ctx context.Context, customerID, amount int64, txID string) error
}

// SyncPort pushes committed sales to the cloud endpoint, or queues them for
// a background retry when the network is uncertain.
type SyncPort interface {
	Push(ctx context.Context, tx *Transaction) error
	Enqueue(ctx context.Context, txID string) error
}

// MetricsPort records checkout outcomes.
type MetricsPort interface {
	RecordCheckout(outcome string)
	SetSyncPending(n float64)
}

type session struct {
	state      State
	frozen     int64
	committing bool
}

// Service is the settlement state machine: it turns a cart into a committed
// Transaction exactly once, with stock and ledger side effects.
type Service struct {
	carts   *cart.Engine
	repo    RepositoryPort
	sync    SyncPort
	metrics MetricsPort
	logger  *slog.Logger

	storeName   string
	syncTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	StoreName   string
	SyncTimeout time.Duration
}

// NewService builds Service.
func NewService(carts *cart.Engine, repo RepositoryPort, syncPort SyncPort, metrics MetricsPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		carts:       carts,
		repo:        repo,
		sync:        syncPort,
		metrics:     metrics,
		logger:      logger,
		storeName:   cfg.StoreName,
		syncTimeout: timeout,
		sessions:    make(map[string]*session),
	}
}

// Begin freezes the subtotal and opens the payment phase. Cart mutations
// while the payment modal is open do not move the frozen total.
func (s *Service) Begin(terminal string) (*Session, error) {
	subtotal := s.carts.Subtotal(terminal)
	if len(s.carts.Lines(terminal)) == 0 {
		return nil, ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[terminal]
	if sess != nil && sess.committing {
		return nil, ErrAlreadyProcessing
	}
	sess = &session{state: StateAwaiting, frozen: subtotal}
	s.sessions[terminal] = sess
	return &Session{State: sess.state, FrozenSubtotal: sess.frozen}, nil
}

// Cancel abandons the payment phase, leaving the cart intact. Not permitted
// once committing has started.
func (s *Service) Cancel(terminal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[terminal]
	if sess == nil {
		return nil
	}
	if sess.committing {
		return ErrAlreadyProcessing
	}
	delete(s.sessions, terminal)
	return nil
}

// Session reports the terminal's checkout phase.
func (s *Service) Session(terminal string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[terminal]
	if sess == nil {
		return Session{State: StateIdle}
	}
	state := sess.state
	if sess.committing {
		state = StateCommitting
	}
	return Session{State: state, FrozenSubtotal: sess.frozen}
}

// Commit validates the payment and persists the sale. The commit-in-flight
// guard rejects a second invocation while one is active, so a double submit
// produces exactly one Transaction.
func (s *Service) Commit(ctx context.Context, terminal string, input CommitInput) (*Receipt, error) {
	frozen, err := s.enterCommit(terminal)
	if err != nil {
		return nil, err
	}

	receipt, err := s.commit(ctx, terminal, frozen, input)
	if err != nil {
		// Back to the payment phase; the cashier corrects and retries.
		s.leaveCommit(terminal, false)
		if s.metrics != nil {
			s.metrics.RecordCheckout("rejected")
		}
		return nil, err
	}
	s.leaveCommit(terminal, true)
	return receipt, nil
}

func (s *Service) enterCommit(terminal string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[terminal]
	if sess == nil || sess.state != StateAwaiting {
		return 0, ErrNotAwaitingPayment
	}
	if sess.committing {
		return 0, ErrAlreadyProcessing
	}
	sess.committing = true
	return sess.frozen, nil
}

func (s *Service) leaveCommit(terminal string, settled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settled {
		delete(s.sessions, terminal)
		return
	}
	if sess := s.sessions[terminal]; sess != nil {
		sess.committing = false
	}
}

func (s *Service) commit(ctx context.Context, terminal string, frozen int64, input CommitInput) (*Receipt, error) {
	lines := s.carts.Lines(terminal)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	customer := s.carts.Customer(terminal)

	discount := input.Discount.Amount(frozen)
	finalTotal := frozen - discount

	tendered := input.AmountTendered
	var change int64
	switch input.Method {
	case MethodCash:
		if tendered < finalTotal {
			return nil, ErrInsufficientPayment
		}
		change = tendered - finalTotal
	case MethodDebt:
		if customer == nil {
			return nil, ErrNoCustomerSelected
		}
		tendered, change = 0, 0
	default:
		// Non-cash electronic methods settle for the exact amount.
		tendered, change = finalTotal, 0
	}

	// The stock invariant is checked before any persistence call; the
	// relative decrement in the repository is the backstop.
	if err := checkStock(lines); err != nil {
		return nil, err
	}

	var custID *int64
	var custName string
	if customer != nil {
		id := customer.ID
		custID = &id
		custName = customer.Name
	}
	tx := buildTransaction(lines, frozen, discount, finalTotal, tendered, change, custID, custName, input)

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		for _, line := range tx.Lines {
			if err := repo.DecrementStock(ctx, line.ProductID, line.Quantity*line.Conversion); err != nil {
				return err
			}
		}
		if tx.Method == MethodDebt {
			return repo.AppendDebtBorrow(ctx, *tx.CustomerID, tx.FinalTotal, tx.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	degraded := s.pushOrQueue(ctx, tx)

	// The sale is settled either way; clear the register.
	s.carts.Clear(terminal)
	if s.metrics != nil {
		if degraded {
			s.metrics.RecordCheckout("degraded")
		} else {
			s.metrics.RecordCheckout("settled")
		}
	}

	warnings := 0
	for _, line := range lines {
		if line.PriceIncomplete {
			warnings++
		}
	}
	return &Receipt{
		Transaction:   tx,
		StoreName:     s.storeName,
		TotalDisplay:  shared.FormatRupiah(tx.FinalTotal),
		ChangeDisplay: shared.FormatRupiah(tx.ChangeDue),
		Degraded:      degraded,
		PriceWarnings: warnings,
	}, nil
}

// pushOrQueue attempts the cloud push within the sync timeout. A timeout or
// failure is not fatal: the sale stays unsynced and is queued for retry.
func (s *Service) pushOrQueue(ctx context.Context, tx *Transaction) bool {
	if s.sync == nil {
		return false
	}
	pushCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()
	if err := s.sync.Push(pushCtx, tx); err != nil {
		s.logger.Warn("cloud push deferred",
			slog.String("transaction", tx.ID), slog.Any("error", err))
		if qerr := s.sync.Enqueue(ctx, tx.ID); qerr != nil {
			// The sweep job re-enqueues unsynced rows, so this is not lost.
			s.logger.Error("enqueue sync task", slog.String("transaction", tx.ID), slog.Any("error", qerr))
		}
		return true
	}
	tx.Synced = true
	if err := s.repo.MarkSynced(ctx, tx.ID); err != nil {
		s.logger.Warn("mark synced", slog.String("transaction", tx.ID), slog.Any("error", err))
	}
	return false
}

func checkStock(lines []cart.Line) error {
	needed := make(map[int64]int64, len(lines))
	for _, line := range lines {
		needed[line.ProductID] += line.BaseQuantity()
	}
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		if needed[line.ProductID] > line.Product.Stock {
			return ErrInsufficientStock
		}
	}
	return nil
}

func buildTransaction(lines []cart.Line, subtotal, discount, finalTotal, tendered, change int64, custID *int64, custName string, input CommitInput) *Transaction {
	txLines := make([]TransactionLine, 0, len(lines))
	var totalCost int64
	for _, line := range lines {
		var cost int64
		if line.Product != nil {
			cost = line.Product.CostPrice
		}
		totalCost += cost * line.Quantity * line.Conversion
		txLines = append(txLines, TransactionLine{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Unit:       line.UnitName,
			Conversion: line.Conversion,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			CostAtSale: cost,
		})
	}
	return &Transaction{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Lines:          txLines,
		Subtotal:       subtotal,
		Discount:       discount,
		FinalTotal:     finalTotal,
		TotalCost:      totalCost,
		Profit:         finalTotal - totalCost,
		Method:         input.Method,
		AmountTendered: tendered,
		ChangeDue:      change,
		CustomerID:     custID,
		CustomerName:   custName,
		CashierID:      input.CashierID,
		Synced:         false,
	}
}

// ListTransactions returns committed sales for the history view.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// GetTransaction fetches one sale.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// RefreshSyncGauge republishes the unsynced backlog size.
func (s *Service) RefreshSyncGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.repo.CountUnsynced(ctx)
	if err != nil {
		return
	}
	s.metrics.SetSyncPending(float64(n))
}
