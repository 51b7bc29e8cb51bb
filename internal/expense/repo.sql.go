package expense

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, name, amount, category, spent_at, cashier_id, synced, created_at`

// Insert stores a new expense.
func (r *Repository) Insert(ctx context.Context, e *Expense) (*Expense, error) {
	var out Expense
	err := r.pool.QueryRow(ctx, `INSERT INTO expenses (name, amount, category, spent_at, cashier_id, synced, created_at)
VALUES ($1, $2, $3, $4, $5, false, now())
RETURNING `+expenseColumns,
		e.Name, e.Amount, e.Category, e.SpentAt, e.CashierID).
		Scan(&out.ID, &out.Name, &out.Amount, &out.Category, &out.SpentAt, &out.CashierID, &out.Synced, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns expenses in [from, to), newest first. Zero bounds are open.
func (r *Repository) List(ctx context.Context, from, to time.Time) ([]Expense, error) {
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses
WHERE spent_at >= $1 AND spent_at < $2 ORDER BY spent_at DESC, id DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount, &e.Category, &e.SpentAt, &e.CashierID, &e.Synced, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// Delete removes one expense.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TotalBetween sums expense amounts in [from, to).
func (r *Repository) TotalBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses
WHERE spent_at >= $1 AND spent_at < $2`, from, to).Scan(&total)
	return total, err
}

// MarkSynced flips the synced flag after a cloud push.
func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE expenses SET synced = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one expense by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Expense, error) {
	var e Expense
	err := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Amount, &e.Category, &e.SpentAt, &e.CashierID, &e.Synced, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
