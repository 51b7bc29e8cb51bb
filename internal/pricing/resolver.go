// Package pricing resolves the unit price for a cart line.
//
// Resolution is a pure function of (product, unit, tier, quantity): the cart
// re-prices every line on tier change by calling it again with the same unit
// and quantity, so the resolver must be deterministic and side-effect free.
package pricing

import (
	"github.com/ruko-pos/ruko-pos/internal/catalog"
)

// Quote is the outcome of a price resolution.
type Quote struct {
	// UnitPrice in rupiah for one of the chosen unit.
	UnitPrice int64 `json:"unit_price"`
	// WholesaleApplied marks the line for display ("Grosir" badge).
	WholesaleApplied bool `json:"wholesale_applied"`
	// Incomplete flags missing price data. The price is then zero rather
	// than a stale guess; the register surfaces it as a data warning.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Resolve computes the applicable price for qty of the given unit.
//
// Base-unit purchases go wholesale when the customer tier qualifies OR the
// quantity reaches the product threshold; either alone suffices. Multi-units
// carry no quantity threshold, only the tier can trigger their wholesale
// price.
func Resolve(p *catalog.Product, unit catalog.Unit, tier catalog.PriceTier, qty int64) Quote {
	if p == nil {
		return Quote{Incomplete: true}
	}

	base := catalog.BaseUnitOf(p)
	if unit.Name == base.Name {
		wholesale := p.WholesalePrice
		if wholesale <= 0 {
			wholesale = p.RetailPrice
		}
		if tier.Wholesale() || (p.WholesaleMinQty > 0 && qty >= p.WholesaleMinQty) {
			return quoteOf(wholesale, true)
		}
		return quoteOf(p.RetailPrice, false)
	}

	for _, u := range p.Units {
		if u.Name != unit.Name {
			continue
		}
		if tier.Wholesale() {
			wholesale := u.WholesalePrice
			if wholesale <= 0 {
				wholesale = u.RetailPrice
			}
			return quoteOf(wholesale, true)
		}
		return quoteOf(u.RetailPrice, false)
	}

	// Unknown unit name: price data is missing for this combination.
	return Quote{Incomplete: true}
}

func quoteOf(price int64, wholesale bool) Quote {
	if price <= 0 {
		return Quote{Incomplete: true, WholesaleApplied: wholesale}
	}
	return Quote{UnitPrice: price, WholesaleApplied: wholesale}
}
