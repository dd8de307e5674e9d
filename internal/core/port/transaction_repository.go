package port

import (
	"context"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

// ShopRepository looks up shops for ownership and activity checks.
type ShopRepository interface {
	GetByServiceID(ctx context.Context, serviceID string) (*domain.Shop, error)
}

// TransactionRepository persists transactions and payment links.
type TransactionRepository interface {
	Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	GetByPaymentLink(ctx context.Context, paymentLinkID string) (*domain.Transaction, error)
	UpdateStatusForMerchant(ctx context.Context, merchantID, transactionID int64, status domain.TransactionStatus) error
	UpdateStatusByPaymentLink(ctx context.Context, paymentLinkID string, status domain.TransactionStatus) error
	ListByMerchant(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error)
}

// TxScope exposes repositories bound to one database transaction.
type TxScope interface {
	Shops() ShopRepository
	Transactions() TransactionRepository
}

// UnitOfWork runs fn inside a database transaction, committing when fn returns nil
// and rolling back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, scope TxScope) error) error
}
