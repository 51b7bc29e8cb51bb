package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads aggregates straight from the transactions table. Line
// snapshots live in jsonb, so the best-seller ranking unnests them in SQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TotalsBetween aggregates sales in [from, to).
func (r *Repository) TotalsBetween(ctx context.Context, from, to time.Time) (*SalesTotals, error) {
	totals := &SalesTotals{ByMethod: make(map[string]int64)}
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(final_total), 0), COALESCE(SUM(profit), 0), COALESCE(SUM(discount), 0), COUNT(*)
FROM transactions WHERE ts >= $1 AND ts < $2`, from, to).
		Scan(&totals.Revenue, &totals.Profit, &totals.Discount, &totals.Transactions)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT payment_method, COALESCE(SUM(final_total), 0)
FROM transactions WHERE ts >= $1 AND ts < $2 GROUP BY payment_method`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var amount int64
		if err := rows.Scan(&method, &amount); err != nil {
			return nil, err
		}
		totals.ByMethod[method] = amount
	}
	return totals, rows.Err()
}

// BestSellers unnests the line snapshots and ranks by base units moved.
func (r *Repository) BestSellers(ctx context.Context, from, to time.Time, limit int) ([]BestSeller, error) {
	rows, err := r.pool.Query(ctx, `SELECT
  (line->>'product_id')::bigint AS product_id,
  MAX(line->>'name') AS name,
  SUM((line->>'quantity')::bigint * (line->>'conversion')::bigint) AS base_units,
  SUM((line->>'quantity')::bigint * (line->>'unit_price')::bigint) AS revenue
FROM transactions, jsonb_array_elements(lines) AS line
WHERE ts >= $1 AND ts < $2
GROUP BY (line->>'product_id')::bigint
ORDER BY base_units DESC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BestSeller
	for rows.Next() {
		var b BestSeller
		if err := rows.Scan(&b.ProductID, &b.Name, &b.BaseUnits, &b.Revenue); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
