package ledger

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	nextID    int64
	entries   []Entry
	customers map[int64]string
}

func newMemRepo() *memRepo {
	return &memRepo{customers: map[int64]string{7: "Toko Berkah", 8: "Ibu Sari"}}
}

func (r *memRepo) AppendEntry(_ context.Context, customerID int64, kind EntryKind, amount int64, txID, note string) (*Entry, error) {
	r.nextID++
	e := Entry{
		ID:            r.nextID,
		CustomerID:    customerID,
		Kind:          kind,
		Amount:        amount,
		TransactionID: txID,
		Note:          note,
		CreatedAt:     time.Now(),
	}
	r.entries = append(r.entries, e)
	return &e, nil
}

func (r *memRepo) EntriesFor(_ context.Context, customerID int64) ([]Entry, error) {
	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].CustomerID == customerID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memRepo) BalanceFor(_ context.Context, customerID int64) (int64, error) {
	var balance int64
	for _, e := range r.entries {
		if e.CustomerID != customerID {
			continue
		}
		if e.Kind == KindBorrow {
			balance += e.Amount
		} else {
			balance -= e.Amount
		}
	}
	return balance, nil
}

func (r *memRepo) OutstandingCustomers(_ context.Context) ([]Balance, error) {
	totals := make(map[int64]int64)
	for _, e := range r.entries {
		if e.Kind == KindBorrow {
			totals[e.CustomerID] += e.Amount
		} else {
			totals[e.CustomerID] -= e.Amount
		}
	}
	var out []Balance
	for id, amount := range totals {
		if amount > 0 {
			out = append(out, Balance{CustomerID: id, CustomerName: r.customers[id], Outstanding: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Outstanding > out[j].Outstanding })
	return out, nil
}

func (r *memRepo) CustomerExists(_ context.Context, customerID int64) (bool, error) {
	_, ok := r.customers[customerID]
	return ok, nil
}

func newService(repo *memRepo) *Service {
	return NewService(repo, slog.Default())
}

func TestBalanceDerivedFromEntries(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordBorrow(ctx, 7, 100000, "tx-1", "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, 7, PaymentRequest{Amount: 40000})
	require.NoError(t, err)

	balance, err := svc.BalanceFor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), balance)
}

func TestOverpaymentLeavesStoreCredit(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordBorrow(ctx, 7, 50000, "tx-1", "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, 7, PaymentRequest{Amount: 70000})
	require.NoError(t, err)

	balance, err := svc.BalanceFor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(-20000), balance)
}

func TestPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, 7, PaymentRequest{Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.RecordPayment(ctx, 7, PaymentRequest{Amount: -5000})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestUnknownCustomer(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, 99, PaymentRequest{Amount: 1000})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.BalanceFor(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutstandingCustomersOrdering(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordBorrow(ctx, 7, 30000, "tx-1", "")
	require.NoError(t, err)
	_, err = svc.RecordBorrow(ctx, 8, 90000, "tx-2", "")
	require.NoError(t, err)

	balances, err := svc.OutstandingCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, int64(8), balances[0].CustomerID)
	assert.Equal(t, int64(90000), balances[0].Outstanding)
	assert.Equal(t, "Ibu Sari", balances[0].CustomerName)
}

func TestSettledCustomerExcludedFromOutstanding(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordBorrow(ctx, 7, 30000, "tx-1", "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, 7, PaymentRequest{Amount: 30000})
	require.NoError(t, err)

	balances, err := svc.OutstandingCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestEntriesNewestFirst(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.RecordBorrow(ctx, 7, 10000, "tx-1", "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, 7, PaymentRequest{Amount: 5000, Note: "cicilan"})
	require.NoError(t, err)

	entries, err := svc.EntriesFor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindPayment, entries[0].Kind)
	assert.Equal(t, "cicilan", entries[0].Note)
	assert.Equal(t, KindBorrow, entries[1].Kind)
}
