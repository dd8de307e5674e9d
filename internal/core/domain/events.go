package domain

import "time"

const (
	EventTransactionCreated       = "transaction.created"
	EventTransactionStatusChanged = "transaction.status_changed"
	EventAccountProvisioned       = "account.provisioned"
	EventProvisioningFailed       = "provisioning.failed"
)

// TransactionCreatedEvent is emitted after a transaction or payment link is persisted.
type TransactionCreatedEvent struct {
	TransactionID int64
	ServiceID     string
	MerchantID    int64
	Amount        float64
	Currency      string
	PaymentLinkID *string
	CreatedAt     time.Time
}

// TransactionStatusChangedEvent is emitted after a status write.
// Via is "merchant" for authenticated updates and "payment_link" for payer updates.
type TransactionStatusChangedEvent struct {
	TransactionID *int64
	PaymentLinkID *string
	Status        TransactionStatus
	Via           string
	ChangedAt     time.Time
}

// AccountProvisionedEvent is emitted once the worker commits a new account.
type AccountProvisionedEvent struct {
	Type           ProvisioningType
	Email          string
	MerchantID     int64
	PrincipalID    int64
	IdempotencyKey string
	ProvisionedAt  time.Time
}

// ProvisioningFailedEvent is emitted when a provisioning message is dead-lettered.
type ProvisioningFailedEvent struct {
	Type           ProvisioningType
	Email          string
	IdempotencyKey string
	Reason         string
	FailedAt       time.Time
}
