// Package reporting assembles read-only aggregates for the owner dashboard.
package reporting

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ruko-pos/ruko-pos/internal/shared"
)

// SalesTotals are the transaction-side aggregates for a window.
type SalesTotals struct {
	Revenue      int64            `json:"revenue"`
	Profit       int64            `json:"profit"`
	Discount     int64            `json:"discount"`
	Transactions int64            `json:"transactions"`
	ByMethod     map[string]int64 `json:"by_method"`
}

// DailySummary is the owner's end-of-day view.
type DailySummary struct {
	Date           string      `json:"date"`
	Sales          SalesTotals `json:"sales"`
	Expenses       int64       `json:"expenses"`
	NetProfit      int64       `json:"net_profit"`
	RevenueDisplay string      `json:"revenue_display"`
	NetDisplay     string      `json:"net_display"`
}

// BestSeller ranks a product by base units moved.
type BestSeller struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	BaseUnits int64  `json:"base_units"`
	Revenue   int64  `json:"revenue"`
}

// SalesPort reads transaction aggregates.
type SalesPort interface {
	TotalsBetween(ctx context.Context, from, to time.Time) (*SalesTotals, error)
	BestSellers(ctx context.Context, from, to time.Time, limit int) ([]BestSeller, error)
}

// ExpensePort reads expense aggregates.
type ExpensePort interface {
	TotalBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// Service composes the report queries.
type Service struct {
	sales    SalesPort
	expenses ExpensePort
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(sales SalesPort, expenses ExpensePort, logger *slog.Logger) *Service {
	return &Service{sales: sales, expenses: expenses, logger: logger}
}

// Daily builds the summary for one calendar day. The two aggregate queries
// are independent so they fan out concurrently.
func (s *Service) Daily(ctx context.Context, day time.Time) (*DailySummary, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)

	var (
		totals   *SalesTotals
		expenses int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.sales.TotalsBetween(gctx, from, to)
		if err != nil {
			return err
		}
		totals = t
		return nil
	})
	g.Go(func() error {
		t, err := s.expenses.TotalBetween(gctx, from, to)
		if err != nil {
			return err
		}
		expenses = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	net := totals.Profit - expenses
	return &DailySummary{
		Date:           from.Format("2006-01-02"),
		Sales:          *totals,
		Expenses:       expenses,
		NetProfit:      net,
		RevenueDisplay: shared.FormatRupiah(totals.Revenue),
		NetDisplay:     shared.FormatRupiah(net),
	}, nil
}

// BestSellers ranks products by base units sold in the window.
func (s *Service) BestSellers(ctx context.Context, from, to time.Time, limit int) ([]BestSeller, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if to.IsZero() {
		to = time.Now()
	}
	return s.sales.BestSellers(ctx, from, to, limit)
}
