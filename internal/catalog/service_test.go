package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	products  map[int64]*Product
	nextID    int64
	listCalls int
	findErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[int64]*Product)}
}

func (r *memRepo) add(p Product) *Product {
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = &p
	return &p
}

func (r *memRepo) ListProducts(_ context.Context) ([]Product, error) {
	r.listCalls++
	var out []Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) GetProduct(_ context.Context, id int64) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindByBarcode(_ context.Context, code string) (*Product, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, p := range r.products {
		if p.Barcode == code {
			cp := *p
			return &cp, nil
		}
		for _, u := range p.Units {
			if u.Barcode == code {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) CreateProduct(_ context.Context, input CreateProductRequest) (*Product, error) {
	for _, p := range r.products {
		if p.Barcode == input.Barcode {
			return nil, ErrDuplicateBarcode
		}
	}
	units := make([]Unit, 0, len(input.Units))
	for _, u := range input.Units {
		units = append(units, Unit(u))
	}
	return r.add(Product{
		Barcode:         input.Barcode,
		Name:            input.Name,
		Category:        input.Category,
		CostPrice:       input.CostPrice,
		RetailPrice:     input.RetailPrice,
		WholesalePrice:  input.WholesalePrice,
		WholesaleMinQty: input.WholesaleMinQty,
		Stock:           input.Stock,
		BaseUnit:        input.BaseUnit,
		Units:           units,
	}), nil
}

func (r *memRepo) UpdateProduct(_ context.Context, id int64, input UpdateProductRequest) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.RetailPrice != nil {
		p.RetailPrice = *input.RetailPrice
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *memRepo) AdjustStock(_ context.Context, id int64, delta int64) (int64, error) {
	p, ok := r.products[id]
	if !ok {
		return 0, ErrNotFound
	}
	if p.Stock+delta < 0 {
		return 0, ErrInvalidStock
	}
	p.Stock += delta
	return p.Stock, nil
}

func (r *memRepo) ListCustomers(_ context.Context) ([]Customer, error) { return nil, nil }

func (r *memRepo) GetCustomer(_ context.Context, _ int64) (*Customer, error) {
	return nil, ErrNotFound
}

func (r *memRepo) CreateCustomer(_ context.Context, input CreateCustomerRequest) (*Customer, error) {
	return &Customer{ID: 1, Name: input.Name, Phone: input.Phone, Tier: input.Tier}, nil
}

func (r *memRepo) DeleteCustomer(_ context.Context, _ int64) error { return nil }

func gula() Product {
	return Product{
		Barcode:        "8990001110011",
		Name:           "Gula Pasir 1kg",
		Category:       "sembako",
		CostPrice:      13500,
		RetailPrice:    16000,
		WholesalePrice: 15000,
		Stock:          120,
		BaseUnit:       "Pcs",
		Units: []Unit{
			{Name: "Karung", Conversion: 25, Barcode: "8990001110099", RetailPrice: 390000},
		},
	}
}

func testCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl)
}

func TestResolveByCodeBaseAndUnitBarcodes(t *testing.T) {
	repo := newMemRepo()
	repo.add(gula())
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	res, err := svc.ResolveByCode(ctx, "8990001110011")
	require.NoError(t, err)
	assert.Equal(t, "Gula Pasir 1kg", res.Product.Name)
	assert.Equal(t, "Pcs", res.Unit.Name)
	assert.Equal(t, int64(1), res.Unit.Conversion)

	res, err = svc.ResolveByCode(ctx, "8990001110099")
	require.NoError(t, err)
	assert.Equal(t, "Karung", res.Unit.Name)
	assert.Equal(t, int64(25), res.Unit.Conversion)

	_, err = svc.ResolveByCode(ctx, "0000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveByCodeTrimsScannerWhitespace(t *testing.T) {
	repo := newMemRepo()
	repo.add(gula())
	svc := NewService(repo, nil, slog.Default())

	res, err := svc.ResolveByCode(context.Background(), "  8990001110011\n")
	require.NoError(t, err)
	assert.Equal(t, "Gula Pasir 1kg", res.Product.Name)
}

func TestResolveByCodeFallsBackToSnapshotWhenDBDown(t *testing.T) {
	repo := newMemRepo()
	repo.add(gula())
	cache := testCache(t, time.Minute)
	svc := NewService(repo, cache, slog.Default())
	ctx := context.Background()

	// Warm the snapshot, then take the database away.
	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	repo.findErr = errors.New("dial tcp: connection refused")

	res, err := svc.ResolveByCode(ctx, "8990001110099")
	require.NoError(t, err)
	assert.Equal(t, "Karung", res.Unit.Name)
}

func TestListProductsServesFromCache(t *testing.T) {
	repo := newMemRepo()
	repo.add(gula())
	cache := testCache(t, time.Minute)
	svc := NewService(repo, cache, slog.Default())
	ctx := context.Background()

	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	_, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "second read must hit the snapshot")
}

func TestMutationsInvalidateSnapshot(t *testing.T) {
	repo := newMemRepo()
	p := repo.add(gula())
	cache := testCache(t, time.Minute)
	svc := NewService(repo, cache, slog.Default())
	ctx := context.Background()

	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)

	_, err = svc.AdjustStock(ctx, p.ID, -20)
	require.NoError(t, err)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(100), products[0].Stock)
	assert.Equal(t, 2, repo.listCalls)
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	repo := newMemRepo()
	p := repo.add(gula())
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, p.ID, -121)
	assert.ErrorIs(t, err, ErrInvalidStock)

	stock, err := svc.AdjustStock(ctx, p.ID, -120)
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestCreateProductRejectsDuplicateUnitBarcode(t *testing.T) {
	svc := NewService(newMemRepo(), nil, slog.Default())

	_, err := svc.CreateProduct(context.Background(), CreateProductRequest{
		Barcode:     "111",
		Name:        "Teh Celup",
		RetailPrice: 5000,
		Units: []CreateUnitRequest{
			{Name: "Box", Conversion: 24, Barcode: "111"},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateBarcode)
}

func TestSearchProductsByNameAndCategory(t *testing.T) {
	repo := newMemRepo()
	repo.add(gula())
	kopi := gula()
	kopi.Barcode = "222"
	kopi.Name = "Kopi Kapal Api"
	kopi.Category = "minuman"
	kopi.Units = nil
	repo.add(kopi)
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	out, err := svc.SearchProducts(ctx, "kopi", "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Kopi Kapal Api", out[0].Name)

	out, err = svc.SearchProducts(ctx, "", "sembako")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Gula Pasir 1kg", out[0].Name)
}

func TestCreateCustomerDefaultsToRetail(t *testing.T) {
	svc := NewService(newMemRepo(), nil, slog.Default())

	c, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Ibu Sari"})
	require.NoError(t, err)
	assert.Equal(t, TierRetail, c.Tier)

	_, err = svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "X", Tier: "platinum"})
	assert.Error(t, err)
}
