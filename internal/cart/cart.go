// Package cart owns in-flight register state. All cart mutation for a
// terminal goes through Engine; nothing else touches a line before commit.
package cart

import (
	"errors"
	"sync"

	"github.com/ruko-pos/ruko-pos/internal/catalog"
	"github.com/ruko-pos/ruko-pos/internal/pricing"
)

// Sentinel errors for cart operations.
var (
	ErrInsufficientStock = errors.New("cart: insufficient stock")
	ErrLineNotFound      = errors.New("cart: line not found")
	ErrUnknownUnit       = errors.New("cart: unknown unit")
	ErrEmptyCart         = errors.New("cart: empty")
)

// Line is one cart entry: a product sold in a chosen unit.
type Line struct {
	ProductID        int64  `json:"product_id"`
	Name             string `json:"name"`
	UnitName         string `json:"unit"`
	Conversion       int64  `json:"conversion"`
	Quantity         int64  `json:"quantity"`
	UnitPrice        int64  `json:"unit_price"`
	WholesaleApplied bool   `json:"wholesale_applied"`
	PriceIncomplete  bool   `json:"price_incomplete,omitempty"`

	// Product snapshot retained for re-pricing and cost capture at commit.
	Product *catalog.Product `json:"-"`
}

// BaseQuantity is the stock cost of the line in base units.
func (l *Line) BaseQuantity() int64 {
	return l.Quantity * l.Conversion
}

// Total is the line amount in rupiah.
func (l *Line) Total() int64 {
	return l.UnitPrice * l.Quantity
}

type state struct {
	lines    []*Line
	customer *catalog.Customer // nil means walk-in retail
}

func (s *state) tier() catalog.PriceTier {
	if s.customer == nil {
		return catalog.TierRetail
	}
	return s.customer.Tier
}

// Engine keeps one cart per terminal. A single mutex serialises UI callbacks
// and sync callbacks that interleave on the same terminal.
type Engine struct {
	mu    sync.Mutex
	carts map[string]*state
}

// NewEngine builds an empty Engine.
func NewEngine() *Engine {
	return &Engine{carts: make(map[string]*state)}
}

func (e *Engine) cart(terminal string) *state {
	c, ok := e.carts[terminal]
	if !ok {
		c = &state{}
		e.carts[terminal] = c
	}
	return c
}

// AddLine puts one unit's worth of product into the cart. A line for the
// same (product, unit) pair is merged by incrementing its quantity; the
// price is re-resolved at the merged quantity. The merge is all-or-nothing:
// when stock cannot cover the increment the line keeps its prior quantity.
func (e *Engine) AddLine(terminal string, p *catalog.Product, unitName string) (*Line, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cart(terminal)
	if unitName == "" {
		unitName = catalog.BaseUnitOf(p).Name
	}
	unit, ok := catalog.UnitByName(p, unitName)
	if !ok {
		return nil, ErrUnknownUnit
	}
	if p.Stock < unit.Conversion {
		return nil, ErrInsufficientStock
	}

	for _, line := range c.lines {
		if line.ProductID != p.ID || line.UnitName != unit.Name {
			continue
		}
		if (line.Quantity+1)*line.Conversion > p.Stock {
			return nil, ErrInsufficientStock
		}
		line.Quantity++
		repriceLine(line, unit, c.tier())
		return line, nil
	}

	line := &Line{
		ProductID:  p.ID,
		Name:       p.Name,
		UnitName:   unit.Name,
		Conversion: unit.Conversion,
		Quantity:   1,
		Product:    p,
	}
	repriceLine(line, unit, c.tier())
	c.lines = append(c.lines, line)
	return line, nil
}

// ChangeQuantity sets a line's quantity. Zero or below removes the line.
// An increase past the stock ceiling is rejected and the line is unchanged.
func (e *Engine) ChangeQuantity(terminal string, index int, newQty int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cart(terminal)
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	line := c.lines[index]
	if newQty <= 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}
	if newQty*line.Conversion > line.Product.Stock {
		return ErrInsufficientStock
	}
	line.Quantity = newQty
	unit, ok := catalog.UnitByName(line.Product, line.UnitName)
	if !ok {
		return ErrUnknownUnit
	}
	repriceLine(line, unit, c.tier())
	return nil
}

// ChangeUnit switches a line to another of the product's units at the
// current quantity and re-resolves its price. The new conversion is
// re-validated against stock so a Pcs→Box switch cannot oversell.
func (e *Engine) ChangeUnit(terminal string, index int, unitName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cart(terminal)
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	line := c.lines[index]
	unit, ok := catalog.UnitByName(line.Product, unitName)
	if !ok {
		return ErrUnknownUnit
	}
	if line.Quantity*unit.Conversion > line.Product.Stock {
		return ErrInsufficientStock
	}

	// Merge into an existing line for the target unit if one exists.
	for i, other := range c.lines {
		if i == index || other.ProductID != line.ProductID || other.UnitName != unit.Name {
			continue
		}
		merged := other.Quantity + line.Quantity
		if merged*unit.Conversion > line.Product.Stock {
			return ErrInsufficientStock
		}
		other.Quantity = merged
		repriceLine(other, unit, c.tier())
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}

	line.UnitName = unit.Name
	line.Conversion = unit.Conversion
	repriceLine(line, unit, c.tier())
	return nil
}

// SetCustomer attaches (or detaches, with nil) the active customer and
// re-resolves every line's price under the new tier in one pass. Quantity
// and unit are untouched.
func (e *Engine) SetCustomer(terminal string, customer *catalog.Customer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cart(terminal)
	c.customer = customer
	tier := c.tier()
	for _, line := range c.lines {
		unit, ok := catalog.UnitByName(line.Product, line.UnitName)
		if !ok {
			line.UnitPrice = 0
			line.PriceIncomplete = true
			continue
		}
		repriceLine(line, unit, tier)
	}
}

// Customer returns the attached customer, or nil for walk-in.
func (e *Engine) Customer(terminal string) *catalog.Customer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart(terminal).customer
}

// Subtotal is the derived sum of line totals; never cached.
func (e *Engine) Subtotal(terminal string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sum int64
	for _, line := range e.cart(terminal).lines {
		sum += line.Total()
	}
	return sum
}

// Lines returns a copy of the cart lines for display or commit.
func (e *Engine) Lines(terminal string) []Line {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cart(terminal)
	out := make([]Line, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, *line)
	}
	return out
}

// Clear empties the terminal's cart and detaches the customer.
func (e *Engine) Clear(terminal string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.carts, terminal)
}

func repriceLine(line *Line, unit catalog.Unit, tier catalog.PriceTier) {
	q := pricing.Resolve(line.Product, unit, tier, line.Quantity)
	line.UnitPrice = q.UnitPrice
	line.WholesaleApplied = q.WholesaleApplied
	line.PriceIncomplete = q.Incomplete
}
