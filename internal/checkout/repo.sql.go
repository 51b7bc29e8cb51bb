package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruko-pos/ruko-pos/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for committed sales.
// Line snapshots live in a jsonb column; the sale header carries the frozen
// totals so history never depends on current catalog prices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transactionColumns = `id, ts, lines, subtotal, discount, final_total, total_cost, profit, payment_method, amount_tendered, change_due, customer_id, customer_name, cashier_id, synced`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var linesRaw []byte
	if err := row.Scan(&t.ID, &t.Timestamp, &linesRaw, &t.Subtotal, &t.Discount, &t.FinalTotal, &t.TotalCost, &t.Profit, &t.Method, &t.AmountTendered, &t.ChangeDue, &t.CustomerID, &t.CustomerName, &t.CashierID, &t.Synced); err != nil {
		return nil, err
	}
	if len(linesRaw) > 0 {
		if err := json.Unmarshal(linesRaw, &t.Lines); err != nil {
			return nil, fmt.Errorf("checkout: decode lines: %w", err)
		}
	}
	return &t, nil
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs the commit phase inside one RepeatableRead transaction so the
// sale row, the stock decrements and the debt entry land or fail together.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) InsertTransaction(ctx context.Context, tx *Transaction) error {
	linesRaw, err := json.Marshal(tx.Lines)
	if err != nil {
		return fmt.Errorf("checkout: encode lines: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO transactions (id, ts, lines, subtotal, discount, final_total, total_cost, profit, payment_method, amount_tendered, change_due, customer_id, customer_name, cashier_id, synced)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tx.ID, tx.Timestamp, linesRaw, tx.Subtotal, tx.Discount, tx.FinalTotal, tx.TotalCost, tx.Profit, tx.Method, tx.AmountTendered, tx.ChangeDue, tx.CustomerID, tx.CustomerName, tx.CashierID, tx.Synced)
	return err
}

// DecrementStock subtracts sold base units. The WHERE clause refuses an
// oversell instead of clamping, so a concurrent terminal that drained the
// shelf rolls this whole commit back.
func (t *txRepository) DecrementStock(ctx context.Context, productID, baseQty int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2`, productID, baseQty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *txRepository) AppendDebtBorrow(ctx context.Context, customerID, amount int64, txID string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO debt_entries (customer_id, kind, amount, transaction_id, note, created_at)
VALUES ($1, 'borrow', $2, $3, '', now())`, customerID, amount, txID)
	return err
}

// ListTransactions returns sales newest first, optionally windowed.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	args := []any{}
	where := ""
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = fmt.Sprintf(" WHERE ts >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		if where == "" {
			where = fmt.Sprintf(" WHERE ts < $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND ts < $%d", len(args))
		}
	}
	query += where + ` ORDER BY ts DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTransaction fetches one sale by id.
func (r *Repository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// MarkSynced flips the synced flag once the cloud acknowledged the sale.
func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET synced = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnsynced reports the backlog awaiting a cloud push.
func (r *Repository) CountUnsynced(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE NOT synced`).Scan(&n)
	return n, err
}

// ListUnsyncedIDs returns ids for the sweep job, oldest first.
func (r *Repository) ListUnsyncedIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM transactions WHERE NOT synced ORDER BY ts LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
