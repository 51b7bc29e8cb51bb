package catalog

import (
	"errors"
	"time"
)

// PriceTier classifies a customer for default price selection.
type PriceTier string

const (
	// TierRetail is the walk-in default ("umum").
	TierRetail PriceTier = "retail"
	// TierWholesale gets wholesale prices regardless of quantity ("grosir").
	TierWholesale PriceTier = "grosir"
	// TierVIP behaves like wholesale for pricing.
	TierVIP PriceTier = "vip"
)

// Valid reports whether the tier is one of the known values.
func (t PriceTier) Valid() bool {
	switch t {
	case TierRetail, TierWholesale, TierVIP:
		return true
	}
	return false
}

// Wholesale reports whether the tier qualifies for wholesale pricing on its own.
func (t PriceTier) Wholesale() bool {
	return t == TierWholesale || t == TierVIP
}

// Unit is an alternate selling unit with a conversion factor to base units.
type Unit struct {
	Name           string `json:"name"`
	Conversion     int64  `json:"conversion"`
	Barcode        string `json:"barcode,omitempty"`
	RetailPrice    int64  `json:"retail_price"`
	WholesalePrice int64  `json:"wholesale_price,omitempty"`
}

// Product models a catalog item. Stock is always expressed in base units.
// Prices are integer rupiah.
type Product struct {
	ID              int64     `json:"id"`
	Barcode         string    `json:"barcode"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	CostPrice       int64     `json:"cost_price"`
	RetailPrice     int64     `json:"retail_price"`
	WholesalePrice  int64     `json:"wholesale_price,omitempty"`
	WholesaleMinQty int64     `json:"wholesale_min_qty,omitempty"`
	Stock           int64     `json:"stock"`
	BaseUnit        string    `json:"base_unit"`
	Units           []Unit    `json:"units,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BaseUnitOf synthesizes the base unit descriptor for a product, so callers
// always work against a uniform unit list regardless of how the record was
// captured (flat legacy rows have no explicit unit entries).
func BaseUnitOf(p *Product) Unit {
	name := p.BaseUnit
	if name == "" {
		name = "Pcs"
	}
	return Unit{
		Name:           name,
		Conversion:     1,
		Barcode:        p.Barcode,
		RetailPrice:    p.RetailPrice,
		WholesalePrice: p.WholesalePrice,
	}
}

// EffectiveUnits returns the base unit followed by the product's multi-units.
func EffectiveUnits(p *Product) []Unit {
	units := make([]Unit, 0, len(p.Units)+1)
	units = append(units, BaseUnitOf(p))
	units = append(units, p.Units...)
	return units
}

// UnitByName finds a unit in the effective unit list.
func UnitByName(p *Product, name string) (Unit, bool) {
	for _, u := range EffectiveUnits(p) {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// Customer carries the pricing tier applied at the register.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Tier      PriceTier `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolution pairs the product and the unit a scanned code refers to.
type Resolution struct {
	Product *Product `json:"product"`
	Unit    Unit     `json:"unit"`
}

// CreateProductRequest is the payload for registering a product.
type CreateProductRequest struct {
	Barcode         string             `json:"barcode" validate:"required,max=64"`
	Name            string             `json:"name" validate:"required,max=200"`
	Category        string             `json:"category" validate:"max=100"`
	CostPrice       int64              `json:"cost_price" validate:"gte=0"`
	RetailPrice     int64              `json:"retail_price" validate:"gte=0"`
	WholesalePrice  int64              `json:"wholesale_price" validate:"gte=0"`
	WholesaleMinQty int64              `json:"wholesale_min_qty" validate:"gte=0"`
	Stock           int64              `json:"stock" validate:"gte=0"`
	BaseUnit        string             `json:"base_unit" validate:"max=20"`
	Units           []CreateUnitRequest `json:"units" validate:"omitempty,dive"`
}

// CreateUnitRequest describes one multi-unit entry.
type CreateUnitRequest struct {
	Name           string `json:"name" validate:"required,max=20"`
	Conversion     int64  `json:"conversion" validate:"required,gte=1"`
	Barcode        string `json:"barcode" validate:"omitempty,max=64"`
	RetailPrice    int64  `json:"retail_price" validate:"gte=0"`
	WholesalePrice int64  `json:"wholesale_price" validate:"gte=0"`
}

// UpdateProductRequest carries partial product updates.
type UpdateProductRequest struct {
	Name            *string              `json:"name,omitempty" validate:"omitempty,max=200"`
	Category        *string              `json:"category,omitempty" validate:"omitempty,max=100"`
	CostPrice       *int64               `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	RetailPrice     *int64               `json:"retail_price,omitempty" validate:"omitempty,gte=0"`
	WholesalePrice  *int64               `json:"wholesale_price,omitempty" validate:"omitempty,gte=0"`
	WholesaleMinQty *int64               `json:"wholesale_min_qty,omitempty" validate:"omitempty,gte=0"`
	BaseUnit        *string              `json:"base_unit,omitempty" validate:"omitempty,max=20"`
	Units           *[]CreateUnitRequest `json:"units,omitempty" validate:"omitempty,dive"`
}

// CreateCustomerRequest registers a customer account.
type CreateCustomerRequest struct {
	Name  string    `json:"name" validate:"required,max=200"`
	Phone string    `json:"phone" validate:"max=30"`
	Tier  PriceTier `json:"tier" validate:"omitempty,oneof=retail grosir vip"`
}

// Sentinel errors for catalog operations.
var (
	ErrNotFound         = errors.New("catalog: not found")
	ErrDuplicateBarcode = errors.New("catalog: barcode already in use")
	ErrInvalidStock     = errors.New("catalog: stock adjustment below zero")
)
