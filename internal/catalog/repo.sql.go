package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
//
// Unit definitions live in a jsonb column; every sellable code (base barcode
// and unit barcodes) is mirrored into product_codes, whose primary key
// enforces the global uniqueness invariant and backs the scan lookup.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, barcode, name, category, cost_price, retail_price, wholesale_price, wholesale_min_qty, stock, base_unit, units, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var unitsRaw []byte
	if err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.CostPrice, &p.RetailPrice, &p.WholesalePrice, &p.WholesaleMinQty, &p.Stock, &p.BaseUnit, &unitsRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(unitsRaw) > 0 {
		if err := json.Unmarshal(unitsRaw, &p.Units); err != nil {
			return nil, fmt.Errorf("catalog: decode units: %w", err)
		}
	}
	return &p, nil
}

// ListProducts returns the full catalog ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetProduct fetches one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindByBarcode resolves a product owning the given code (base or unit).
func (r *Repository) FindByBarcode(ctx context.Context, code string) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products
WHERE id = (SELECT product_id FROM product_codes WHERE code = $1)`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// CreateProduct inserts the product and mirrors its sellable codes.
func (r *Repository) CreateProduct(ctx context.Context, input CreateProductRequest) (*Product, error) {
	units := make([]Unit, 0, len(input.Units))
	for _, u := range input.Units {
		units = append(units, Unit(u))
	}
	unitsRaw, err := json.Marshal(units)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode units: %w", err)
	}

	var created *Product
	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		now := time.Now()
		row := tx.QueryRow(ctx, `INSERT INTO products (barcode, name, category, cost_price, retail_price, wholesale_price, wholesale_min_qty, stock, base_unit, units, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
RETURNING `+productColumns, input.Barcode, input.Name, input.Category, input.CostPrice, input.RetailPrice, input.WholesalePrice, input.WholesaleMinQty, input.Stock, input.BaseUnit, unitsRaw, now)
		p, err := scanProduct(row)
		if err != nil {
			return err
		}
		if err := insertCodes(ctx, tx, p.ID, p.Barcode, units); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, mapBarcodeConflict(err)
	}
	return created, nil
}

// UpdateProduct applies partial updates inside a transaction, rebuilding the
// code mirror when barcoded fields change.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, input UpdateProductRequest) (*Product, error) {
	var updated *Product
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if input.Name != nil {
			p.Name = *input.Name
		}
		if input.Category != nil {
			p.Category = *input.Category
		}
		if input.CostPrice != nil {
			p.CostPrice = *input.CostPrice
		}
		if input.RetailPrice != nil {
			p.RetailPrice = *input.RetailPrice
		}
		if input.WholesalePrice != nil {
			p.WholesalePrice = *input.WholesalePrice
		}
		if input.WholesaleMinQty != nil {
			p.WholesaleMinQty = *input.WholesaleMinQty
		}
		if input.BaseUnit != nil {
			p.BaseUnit = *input.BaseUnit
		}
		unitsChanged := false
		if input.Units != nil {
			p.Units = p.Units[:0]
			for _, u := range *input.Units {
				p.Units = append(p.Units, Unit(u))
			}
			unitsChanged = true
		}

		unitsRaw, err := json.Marshal(p.Units)
		if err != nil {
			return fmt.Errorf("catalog: encode units: %w", err)
		}
		p.UpdatedAt = time.Now()
		if _, err := tx.Exec(ctx, `UPDATE products SET name=$2, category=$3, cost_price=$4, retail_price=$5, wholesale_price=$6, wholesale_min_qty=$7, base_unit=$8, units=$9, updated_at=$10 WHERE id=$1`,
			p.ID, p.Name, p.Category, p.CostPrice, p.RetailPrice, p.WholesalePrice, p.WholesaleMinQty, p.BaseUnit, unitsRaw, p.UpdatedAt); err != nil {
			return err
		}
		if unitsChanged {
			if _, err := tx.Exec(ctx, `DELETE FROM product_codes WHERE product_id = $1`, p.ID); err != nil {
				return err
			}
			if err := insertCodes(ctx, tx, p.ID, p.Barcode, p.Units); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, mapBarcodeConflict(err)
	}
	return updated, nil
}

// DeleteProduct removes the product; the code mirror cascades.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock applies a relative stock change, refusing to go negative.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int64) (int64, error) {
	var stock int64
	err := r.pool.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = now()
WHERE id = $1 AND stock + $2 >= 0 RETURNING stock`, id, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetProduct(ctx, id); gerr != nil {
			return 0, gerr
		}
		return 0, ErrInvalidStock
	}
	return stock, err
}

// ListCustomers returns all customers ordered by name.
func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, tier, created_at, updated_at FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Tier, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// GetCustomer fetches one customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, tier, created_at, updated_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Tier, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a customer account.
func (r *Repository) CreateCustomer(ctx context.Context, input CreateCustomerRequest) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, phone, tier, created_at, updated_at)
VALUES ($1, $2, $3, now(), now()) RETURNING id, name, phone, tier, created_at, updated_at`,
		input.Name, input.Phone, input.Tier).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Tier, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCustomer removes a customer account.
func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertCodes(ctx context.Context, tx pgx.Tx, productID int64, barcode string, units []Unit) error {
	if _, err := tx.Exec(ctx, `INSERT INTO product_codes (code, product_id) VALUES ($1, $2)`, barcode, productID); err != nil {
		return err
	}
	for _, u := range units {
		if u.Barcode == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `INSERT INTO product_codes (code, product_id) VALUES ($1, $2)`, u.Barcode, productID); err != nil {
			return err
		}
	}
	return nil
}

func mapBarcodeConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateBarcode
	}
	return err
}
