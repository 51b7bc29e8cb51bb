package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for debt entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendEntry writes one immutable ledger line.
func (r *Repository) AppendEntry(ctx context.Context, customerID int64, kind EntryKind, amount int64, txID, note string) (*Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `INSERT INTO debt_entries (customer_id, kind, amount, transaction_id, note, created_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, customer_id, kind, amount, transaction_id, note, created_at`,
		customerID, kind, amount, txID, note).
		Scan(&e.ID, &e.CustomerID, &e.Kind, &e.Amount, &e.TransactionID, &e.Note, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EntriesFor returns the customer's entries, newest first.
func (r *Repository) EntriesFor(ctx context.Context, customerID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, kind, amount, transaction_id, note, created_at
FROM debt_entries WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Kind, &e.Amount, &e.TransactionID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BalanceFor derives the outstanding amount in SQL: borrows minus payments.
func (r *Repository) BalanceFor(ctx context.Context, customerID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN kind = 'borrow' THEN amount ELSE -amount END), 0)
FROM debt_entries WHERE customer_id = $1`, customerID).Scan(&balance)
	return balance, err
}

// OutstandingCustomers lists positive balances, largest first.
func (r *Repository) OutstandingCustomers(ctx context.Context) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.name,
  SUM(CASE WHEN d.kind = 'borrow' THEN d.amount ELSE -d.amount END) AS outstanding
FROM debt_entries d
JOIN customers c ON c.id = d.customer_id
GROUP BY c.id, c.name
HAVING SUM(CASE WHEN d.kind = 'borrow' THEN d.amount ELSE -d.amount END) > 0
ORDER BY outstanding DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.CustomerID, &b.CustomerName, &b.Outstanding); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// CustomerExists checks the customer account.
func (r *Repository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&ok)
	return ok, err
}
