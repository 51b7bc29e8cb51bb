package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruko-pos/ruko-pos/internal/cart"
	"github.com/ruko-pos/ruko-pos/internal/catalog"
)

const terminal = "kasir-1"

type debtRecord struct {
	customerID int64
	amount     int64
	txID       string
}

// memRepo is an in-memory RepositoryPort with transactional semantics: the
// staged state replaces the live state only when the callback succeeds.
type memRepo struct {
	mu      sync.Mutex
	stock   map[int64]int64
	txs     map[string]*Transaction
	order   []string
	debts   []debtRecord
	failTx  error
	blockTx chan struct{}
	synced  map[string]bool
}

func newMemRepo(stock map[int64]int64) *memRepo {
	return &memRepo{
		stock:  stock,
		txs:    make(map[string]*Transaction),
		synced: make(map[string]bool),
	}
}

type memTx struct {
	repo  *memRepo
	stock map[int64]int64
	txs   []*Transaction
	debts []debtRecord
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.blockTx != nil {
		<-r.blockTx
	}
	if r.failTx != nil {
		return r.failTx
	}
	r.mu.Lock()
	staged := &memTx{repo: r, stock: make(map[int64]int64, len(r.stock))}
	for id, qty := range r.stock {
		staged.stock[id] = qty
	}
	r.mu.Unlock()

	if err := fn(ctx, staged); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock = staged.stock
	for _, tx := range staged.txs {
		cp := *tx
		r.txs[cp.ID] = &cp
		r.order = append(r.order, cp.ID)
	}
	r.debts = append(r.debts, staged.debts...)
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx *Transaction) error {
	t.txs = append(t.txs, tx)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID, baseQty int64) error {
	if t.stock[productID] < baseQty {
		return ErrInsufficientStock
	}
	t.stock[productID] -= baseQty
	return nil
}

func (t *memTx) AppendDebtBorrow(_ context.Context, customerID, amount int64, txID string) error {
	t.debts = append(t.debts, debtRecord{customerID: customerID, amount: amount, txID: txID})
	return nil
}

func (r *memRepo) ListTransactions(_ context.Context, _ ListFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.txs[r.order[i]])
	}
	return out, nil
}

func (r *memRepo) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *memRepo) MarkSynced(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.Synced = true
	r.synced[id] = true
	return nil
}

func (r *memRepo) CountUnsynced(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, tx := range r.txs {
		if !tx.Synced {
			n++
		}
	}
	return n, nil
}

type memSync struct {
	mu       sync.Mutex
	pushErr  error
	pushed   []string
	enqueued []string
}

func (s *memSync) Push(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.pushed = append(s.pushed, tx.ID)
	return nil
}

func (s *memSync) Enqueue(_ context.Context, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, txID)
	return nil
}

func testProduct() *catalog.Product {
	return &catalog.Product{
		ID:              1,
		Barcode:         "899000111",
		Name:            "Gula Pasir 1kg",
		CostPrice:       7000,
		RetailPrice:     10000,
		WholesalePrice:  8000,
		WholesaleMinQty: 10,
		Stock:           30,
		BaseUnit:        "Pcs",
		Units: []catalog.Unit{
			{Name: "Box", Conversion: 12, Barcode: "899000112", RetailPrice: 110000, WholesalePrice: 96000},
		},
	}
}

type fixture struct {
	carts   *cart.Engine
	repo    *memRepo
	sync    *memSync
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	carts := cart.NewEngine()
	repo := newMemRepo(map[int64]int64{1: 30})
	syncPort := &memSync{}
	svc := NewService(carts, repo, syncPort, nil, slog.Default(), ServiceConfig{
		StoreName:   "RUKO POS",
		SyncTimeout: 50 * time.Millisecond,
	})
	return &fixture{carts: carts, repo: repo, sync: syncPort, service: svc}
}

func (f *fixture) addItems(t *testing.T, qty int64) {
	t.Helper()
	p := testProduct()
	_, err := f.carts.AddLine(terminal, p, "")
	require.NoError(t, err)
	if qty > 1 {
		require.NoError(t, f.carts.ChangeQuantity(terminal, 0, qty))
	}
}

func cashInput(tendered int64) CommitInput {
	return CommitInput{Method: MethodCash, AmountTendered: tendered, CashierID: "budi"}
}

func TestBeginRequiresNonEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Begin(terminal)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCommitRequiresBegin(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	_, err := f.service.Commit(context.Background(), terminal, cashInput(10000))
	assert.ErrorIs(t, err, ErrNotAwaitingPayment)
}

func TestCashCommitComputesChange(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 3) // 3 x 10000

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	receipt, err := f.service.Commit(context.Background(), terminal, cashInput(50000))
	require.NoError(t, err)

	tx := receipt.Transaction
	assert.Equal(t, int64(30000), tx.Subtotal)
	assert.Equal(t, int64(30000), tx.FinalTotal)
	assert.Equal(t, int64(50000), tx.AmountTendered)
	assert.Equal(t, int64(20000), tx.ChangeDue)
	assert.Equal(t, int64(3*7000), tx.TotalCost)
	assert.Equal(t, int64(30000-21000), tx.Profit)
	assert.Equal(t, "Rp 30.000", receipt.TotalDisplay)

	// Register cleared, session closed, stock decremented.
	assert.Empty(t, f.carts.Lines(terminal))
	assert.Equal(t, StateIdle, f.service.Session(terminal).State)
	assert.Equal(t, int64(27), f.repo.stock[1])
}

func TestCashUnderpaymentKeepsSessionAndCart(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 3)

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	_, err = f.service.Commit(context.Background(), terminal, cashInput(20000))
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	assert.Len(t, f.carts.Lines(terminal), 1)
	assert.Equal(t, StateAwaiting, f.service.Session(terminal).State)

	// Corrected retry succeeds without another Begin.
	_, err = f.service.Commit(context.Background(), terminal, cashInput(30000))
	assert.NoError(t, err)
}

func TestDebtRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 2)

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	_, err = f.service.Commit(context.Background(), terminal, CommitInput{Method: MethodDebt, CashierID: "budi"})
	assert.ErrorIs(t, err, ErrNoCustomerSelected)
	assert.Len(t, f.carts.Lines(terminal), 1)
}

func TestDebtCommitAppendsBorrowEntry(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 2)
	f.carts.SetCustomer(terminal, &catalog.Customer{ID: 7, Name: "Toko Berkah", Tier: catalog.TierRetail})

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	receipt, err := f.service.Commit(context.Background(), terminal, CommitInput{Method: MethodDebt, CashierID: "budi"})
	require.NoError(t, err)

	tx := receipt.Transaction
	assert.Equal(t, MethodDebt, tx.Method)
	assert.Zero(t, tx.AmountTendered)
	assert.Zero(t, tx.ChangeDue)
	require.NotNil(t, tx.CustomerID)
	assert.Equal(t, int64(7), *tx.CustomerID)

	require.Len(t, f.repo.debts, 1)
	assert.Equal(t, int64(7), f.repo.debts[0].customerID)
	assert.Equal(t, tx.FinalTotal, f.repo.debts[0].amount)
	assert.Equal(t, tx.ID, f.repo.debts[0].txID)
}

func TestFrozenSubtotalIgnoresLateCartEdits(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 2) // 20000

	sess, err := f.service.Begin(terminal)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), sess.FrozenSubtotal)

	// Cart grows while the payment modal is open.
	require.NoError(t, f.carts.ChangeQuantity(terminal, 0, 5))

	receipt, err := f.service.Commit(context.Background(), terminal, cashInput(20000))
	require.NoError(t, err)
	assert.Equal(t, int64(20000), receipt.Transaction.Subtotal)
}

func TestDiscountPercentRoundsAndClamps(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 3) // 30000

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	input := cashInput(30000)
	input.Discount = Discount{Mode: DiscountPercent, Value: 10}
	receipt, err := f.service.Commit(context.Background(), terminal, input)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), receipt.Transaction.Discount)
	assert.Equal(t, int64(27000), receipt.Transaction.FinalTotal)
}

func TestDiscountFlatNeverExceedsSubtotal(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1) // 10000

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	input := cashInput(0)
	input.Discount = Discount{Mode: DiscountFlat, Value: 99999}
	receipt, err := f.service.Commit(context.Background(), terminal, input)
	require.NoError(t, err)
	assert.Zero(t, receipt.Transaction.FinalTotal)
	assert.Zero(t, receipt.Transaction.ChangeDue)
}

func TestDoubleCommitRejectedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.repo.blockTx = make(chan struct{})

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Commit(context.Background(), terminal, cashInput(10000))
		done <- err
	}()

	// Wait until the first commit is inside the persistence call.
	require.Eventually(t, func() bool {
		return f.service.Session(terminal).State == StateCommitting
	}, time.Second, time.Millisecond)

	_, err = f.service.Commit(context.Background(), terminal, cashInput(10000))
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
	assert.ErrorIs(t, f.service.Cancel(terminal), ErrAlreadyProcessing)

	close(f.repo.blockTx)
	require.NoError(t, <-done)

	// Exactly one transaction.
	txs, err := f.repo.ListTransactions(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestStockShortfallRollsBackWholeCommit(t *testing.T) {
	f := newFixture(t)
	p := testProduct()
	_, err := f.carts.AddLine(terminal, p, "")
	require.NoError(t, err)
	require.NoError(t, f.carts.ChangeQuantity(terminal, 0, 5))

	_, err = f.service.Begin(terminal)
	require.NoError(t, err)

	// Another terminal drained the shelf after Begin.
	f.repo.stock[1] = 2

	_, err = f.service.Commit(context.Background(), terminal, cashInput(50000))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, int64(2), f.repo.stock[1], "no partial decrement")
	assert.Empty(t, f.repo.txs)
	assert.Len(t, f.carts.Lines(terminal), 1)
	assert.Equal(t, StateAwaiting, f.service.Session(terminal).State)
}

func TestPersistenceFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.repo.failTx = errors.New("disk full")

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	_, err = f.service.Commit(context.Background(), terminal, cashInput(10000))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Len(t, f.carts.Lines(terminal), 1)
	assert.Equal(t, StateAwaiting, f.service.Session(terminal).State)
}

func TestCloudPushFailureSettlesDegraded(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.sync.pushErr = errors.New("dial tcp: timeout")

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	receipt, err := f.service.Commit(context.Background(), terminal, cashInput(10000))
	require.NoError(t, err)

	assert.True(t, receipt.Degraded)
	assert.False(t, receipt.Transaction.Synced)
	require.Len(t, f.sync.enqueued, 1)
	assert.Equal(t, receipt.Transaction.ID, f.sync.enqueued[0])

	// The sale is settled regardless: stock moved, register cleared.
	assert.Equal(t, int64(29), f.repo.stock[1])
	assert.Empty(t, f.carts.Lines(terminal))

	n, err := f.repo.CountUnsynced(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCloudPushSuccessMarksSynced(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	receipt, err := f.service.Commit(context.Background(), terminal, cashInput(10000))
	require.NoError(t, err)

	assert.False(t, receipt.Degraded)
	assert.True(t, receipt.Transaction.Synced)
	assert.True(t, f.repo.synced[receipt.Transaction.ID])
	assert.Empty(t, f.sync.enqueued)
}

func TestCancelReturnsToCartIntact(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 2)

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)
	require.NoError(t, f.service.Cancel(terminal))

	assert.Equal(t, StateIdle, f.service.Session(terminal).State)
	assert.Len(t, f.carts.Lines(terminal), 1)
}

func TestNonCashSettlesExactAmount(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 2)

	_, err := f.service.Begin(terminal)
	require.NoError(t, err)

	receipt, err := f.service.Commit(context.Background(), terminal, CommitInput{Method: MethodQRIS, CashierID: "budi"})
	require.NoError(t, err)
	assert.Equal(t, receipt.Transaction.FinalTotal, receipt.Transaction.AmountTendered)
	assert.Zero(t, receipt.Transaction.ChangeDue)
}
