package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidStatus is returned when a status literal is outside the allowed set.
var ErrInvalidStatus = errors.New("invalid transaction status")

// TransactionStatus is the settlement state of a transaction.
// Any member may be set from any other member.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusProcessing TransactionStatus = "processing"
	StatusSuccess    TransactionStatus = "success"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "Cancelled"
)

var allowedStatuses = map[TransactionStatus]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusSuccess:    {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// ParseTransactionStatus validates an exact, case-sensitive status literal.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	status := TransactionStatus(raw)
	if _, ok := allowedStatuses[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Customer holds the payer contact details attached to a transaction.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Transaction is a payment request against a shop.
type Transaction struct {
	ID            int64
	ServiceID     string
	Amount        float64
	Currency      string
	Title         string
	Customer      Customer
	Status        TransactionStatus
	PaymentLinkID *string
	CreatedAt     time.Time
}

// TransactionFilter narrows a merchant's transaction listing.
type TransactionFilter struct {
	MerchantID int64
	Status     string
	Currency   string
	Search     string
	SortBy     string
	SortAsc    bool
	Page       Page
}

var sortableTransactionFields = map[string]struct{}{
	"id":         {},
	"title":      {},
	"amount":     {},
	"currency":   {},
	"status":     {},
	"created_at": {},
}

// NormalizedSortBy returns the requested sort column when allowed, created_at otherwise.
func (f TransactionFilter) NormalizedSortBy() string {
	if _, ok := sortableTransactionFields[f.SortBy]; ok {
		return f.SortBy
	}
	return "created_at"
}
