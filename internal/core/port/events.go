package port

import (
	"context"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

// EventPublisher publishes domain events to the event bus.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, event domain.TransactionCreatedEvent) error
	PublishTransactionStatusChanged(ctx context.Context, event domain.TransactionStatusChangedEvent) error
	PublishAccountProvisioned(ctx context.Context, event domain.AccountProvisionedEvent) error
	PublishProvisioningFailed(ctx context.Context, event domain.ProvisioningFailedEvent) error
}
