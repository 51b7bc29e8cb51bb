package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	FindByBarcode(ctx context.Context, code string) (*Product, error)
	CreateProduct(ctx context.Context, input CreateProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, input UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int64) (int64, error)

	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	CreateCustomer(ctx context.Context, input CreateCustomerRequest) (*Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// CachePort stores catalog snapshots so the register keeps working while the
// database is briefly unreachable.
type CachePort interface {
	GetProducts(ctx context.Context) ([]Product, bool)
	SetProducts(ctx context.Context, products []Product)
	Invalidate(ctx context.Context)
}

// Service exposes catalog lookups and maintenance.
type Service struct {
	repo   RepositoryPort
	cache  CachePort
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache CachePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListProducts returns the product snapshot, serving from cache when warm.
// Concurrent misses are collapsed into a single repository read.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	if s.cache != nil {
		if products, ok := s.cache.GetProducts(ctx); ok {
			return products, nil
		}
	}
	v, err, _ := s.group.Do("products", func() (any, error) {
		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.SetProducts(ctx, products)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// ListCustomers returns all customer accounts.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// GetProduct fetches a single product.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetCustomer fetches a single customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ResolveByCode maps a scanned code to a product and the unit the code sells.
// The base barcode wins, then unit barcodes; uniqueness of codes across the
// whole catalog guarantees at most one match. When the database read fails
// the cached snapshot is scanned instead so a scan never hangs the register.
func (s *Service) ResolveByCode(ctx context.Context, code string) (*Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	p, err := s.repo.FindByBarcode(ctx, code)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if s.logger != nil {
			s.logger.Warn("barcode lookup fell back to snapshot", slog.String("code", code), slog.Any("error", err))
		}
		p = s.findInSnapshot(ctx, code)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return resolveUnit(p, code)
}

func (s *Service) findInSnapshot(ctx context.Context, code string) *Product {
	if s.cache == nil {
		return nil
	}
	products, ok := s.cache.GetProducts(ctx)
	if !ok {
		return nil
	}
	for i := range products {
		p := &products[i]
		if p.Barcode == code {
			return p
		}
		for _, u := range p.Units {
			if u.Barcode == code {
				return p
			}
		}
	}
	return nil
}

func resolveUnit(p *Product, code string) (*Resolution, error) {
	if p.Barcode == code {
		return &Resolution{Product: p, Unit: BaseUnitOf(p)}, nil
	}
	for _, u := range p.Units {
		if u.Barcode == code {
			return &Resolution{Product: p, Unit: u}, nil
		}
	}
	return nil, ErrNotFound
}

// SearchProducts filters the snapshot by name, barcode or unit barcode,
// optionally scoped to a category. Matching is case-insensitive on names.
func (s *Service) SearchProducts(ctx context.Context, query, category string) ([]Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Product
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if query == "" || matchesQuery(&p, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesQuery(p *Product, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) {
		return true
	}
	if strings.Contains(p.Barcode, query) {
		return true
	}
	for _, u := range p.Units {
		if strings.Contains(u.Barcode, query) {
			return true
		}
	}
	return false
}

// CreateProduct registers a product and invalidates the snapshot.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductRequest) (*Product, error) {
	if input.BaseUnit == "" {
		input.BaseUnit = "Pcs"
	}
	if err := validateUnitBarcodes(input.Barcode, input.Units); err != nil {
		return nil, err
	}
	p, err := s.repo.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdateProduct applies partial updates and invalidates the snapshot.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductRequest) (*Product, error) {
	p, err := s.repo.UpdateProduct(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AdjustStock applies a relative stock change for inventory corrections.
// The delta form keeps concurrent adjustments convergent.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int64) (int64, error) {
	if delta == 0 {
		return 0, errors.New("catalog: zero adjustment")
	}
	stock, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return stock, nil
}

// CreateCustomer registers a customer, defaulting the tier to retail.
func (s *Service) CreateCustomer(ctx context.Context, input CreateCustomerRequest) (*Customer, error) {
	if input.Tier == "" {
		input.Tier = TierRetail
	}
	if !input.Tier.Valid() {
		return nil, errors.New("catalog: unknown pricing tier")
	}
	return s.repo.CreateCustomer(ctx, input)
}

// DeleteCustomer removes a customer account.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func validateUnitBarcodes(base string, units []CreateUnitRequest) error {
	seen := map[string]struct{}{base: {}}
	for _, u := range units {
		if u.Barcode == "" {
			continue
		}
		if _, dup := seen[u.Barcode]; dup {
			return ErrDuplicateBarcode
		}
		seen[u.Barcode] = struct{}{}
	}
	return nil
}
