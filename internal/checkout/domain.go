package checkout

import (
	"errors"
	"time"
)

// PaymentMethod enumerates how a sale is settled.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodQRIS     PaymentMethod = "qris"
	MethodTransfer PaymentMethod = "transfer"
	// MethodDebt books the sale to the customer's kasbon ledger.
	MethodDebt PaymentMethod = "debt"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodQRIS, MethodTransfer, MethodDebt:
		return true
	}
	return false
}

// DiscountMode selects how the discount input is interpreted.
type DiscountMode string

const (
	DiscountFlat    DiscountMode = "flat"
	DiscountPercent DiscountMode = "percent"
)

// Discount is the cashier's discount input.
type Discount struct {
	Mode  DiscountMode `json:"mode" validate:"omitempty,oneof=flat percent"`
	Value int64        `json:"value" validate:"gte=0"`
}

// Amount computes the discount in rupiah against the frozen subtotal.
// Percent is clamped to [0,100] and rounded to the nearest rupiah; flat is
// clamped so the final total never goes negative.
func (d Discount) Amount(subtotal int64) int64 {
	switch d.Mode {
	case DiscountPercent:
		pct := d.Value
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return (subtotal*pct + 50) / 100
	default:
		if d.Value < 0 {
			return 0
		}
		if d.Value > subtotal {
			return subtotal
		}
		return d.Value
	}
}

// State names a checkout session phase.
type State string

const (
	StateIdle       State = "idle"
	StateAwaiting   State = "awaiting_payment"
	StateCommitting State = "committing"
)

// TransactionLine is the immutable per-line snapshot stored with a sale.
type TransactionLine struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Conversion int64  `json:"conversion"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	// CostAtSale is the base-unit cost price captured at commit time.
	CostAtSale int64 `json:"cost_at_sale"`
}

// Transaction is a committed sale. Immutable once created except Synced.
type Transaction struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Lines          []TransactionLine `json:"lines"`
	Subtotal       int64             `json:"subtotal"`
	Discount       int64             `json:"discount"`
	FinalTotal     int64             `json:"final_total"`
	TotalCost      int64             `json:"total_cost"`
	Profit         int64             `json:"profit"`
	Method         PaymentMethod     `json:"payment_method"`
	AmountTendered int64             `json:"amount_tendered"`
	ChangeDue      int64             `json:"change_due"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	CustomerName   string            `json:"customer_name,omitempty"`
	CashierID      string            `json:"cashier_id"`
	Synced         bool              `json:"synced"`
}

// CommitInput is the payment form the cashier submits.
type CommitInput struct {
	Method         PaymentMethod `json:"payment_method" validate:"required,oneof=cash qris transfer debt"`
	AmountTendered int64         `json:"amount_tendered" validate:"gte=0"`
	Discount       Discount      `json:"discount"`
	CashierID      string        `json:"cashier_id" validate:"required,max=64"`
}

// Receipt is the summary emitted to the printing collaborator.
type Receipt struct {
	Transaction    *Transaction `json:"transaction"`
	StoreName      string       `json:"store_name"`
	TotalDisplay   string       `json:"total_display"`
	ChangeDisplay  string       `json:"change_display"`
	Degraded       bool         `json:"degraded,omitempty"`
	PriceWarnings  int          `json:"price_warnings,omitempty"`
}

// Session is the per-terminal checkout state exposed to handlers.
type Session struct {
	State          State `json:"state"`
	FrozenSubtotal int64 `json:"frozen_subtotal"`
}

// ListFilter narrows transaction history queries.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Sentinel errors for the settlement engine.
var (
	ErrEmptyCart           = errors.New("checkout: cart is empty")
	ErrNotAwaitingPayment  = errors.New("checkout: no payment in progress")
	ErrInsufficientPayment = errors.New("checkout: amount tendered below total")
	ErrNoCustomerSelected  = errors.New("checkout: debt sale requires a customer")
	ErrAlreadyProcessing   = errors.New("checkout: commit already in flight")
	ErrInsufficientStock   = errors.New("checkout: stock cannot cover the sale")
	ErrPersistence         = errors.New("checkout: sale could not be stored")
	ErrNotFound            = errors.New("checkout: transaction not found")
)
