// Package ledger tracks customer receivables (kasbon). The balance is never
// stored: it is derived from the append-only entry stream, so a replay of
// the entries always reproduces it.
package ledger

import (
	"errors"
	"time"
)

// EntryKind tags a ledger entry.
type EntryKind string

const (
	// KindBorrow increases what the customer owes; written by a debt sale.
	KindBorrow EntryKind = "borrow"
	// KindPayment decreases what the customer owes.
	KindPayment EntryKind = "payment"
)

// Entry is one immutable ledger line.
type Entry struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Kind       EntryKind `json:"kind"`
	Amount     int64     `json:"amount"`
	// TransactionID links a borrow entry to the sale that produced it.
	TransactionID string    `json:"transaction_id,omitempty"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Balance is a customer's derived position.
type Balance struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Outstanding  int64  `json:"outstanding"`
}

// PaymentRequest records money received against a customer's balance.
type PaymentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Note   string `json:"note" validate:"max=255"`
}

// Sentinel errors for the receivables ledger.
var (
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	ErrNotFound      = errors.New("ledger: customer not found")
)
