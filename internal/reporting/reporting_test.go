package reporting

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSales struct {
	totals  *SalesTotals
	sellers []BestSeller
	err     error
}

func (m *memSales) TotalsBetween(_ context.Context, _, _ time.Time) (*SalesTotals, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.totals, nil
}

func (m *memSales) BestSellers(_ context.Context, _, _ time.Time, limit int) ([]BestSeller, error) {
	if limit < len(m.sellers) {
		return m.sellers[:limit], nil
	}
	return m.sellers, nil
}

type memExpenses struct {
	total int64
	err   error
}

func (m *memExpenses) TotalBetween(_ context.Context, _, _ time.Time) (int64, error) {
	return m.total, m.err
}

func TestDailyNetsExpensesFromProfit(t *testing.T) {
	sales := &memSales{totals: &SalesTotals{
		Revenue:      500000,
		Profit:       120000,
		Transactions: 14,
		ByMethod:     map[string]int64{"cash": 450000, "debt": 50000},
	}}
	svc := NewService(sales, &memExpenses{total: 35000}, slog.Default())

	day := time.Date(2026, 9, 1, 15, 30, 0, 0, time.Local)
	summary, err := svc.Daily(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, "2026-09-01", summary.Date)
	assert.Equal(t, int64(500000), summary.Sales.Revenue)
	assert.Equal(t, int64(35000), summary.Expenses)
	assert.Equal(t, int64(85000), summary.NetProfit)
	assert.Equal(t, "Rp 500.000", summary.RevenueDisplay)
}

func TestDailyPropagatesQueryError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&memSales{err: boom}, &memExpenses{}, slog.Default())

	_, err := svc.Daily(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestBestSellersDefaultLimit(t *testing.T) {
	sellers := make([]BestSeller, 20)
	for i := range sellers {
		sellers[i] = BestSeller{ProductID: int64(i + 1)}
	}
	svc := NewService(&memSales{totals: &SalesTotals{}, sellers: sellers}, &memExpenses{}, slog.Default())

	out, err := svc.BestSellers(context.Background(), time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 10)
}
