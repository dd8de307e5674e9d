package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It is used when no brokers
// are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.logger.Debug("stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishTransactionCreated logs transaction.created events.
func (p *StubPublisher) PublishTransactionCreated(_ context.Context, event domain.TransactionCreatedEvent) error {
	p.logEvent(domain.EventTransactionCreated, event.CreatedAt,
		zap.Int64("transaction_id", event.TransactionID),
		zap.String("service_id", event.ServiceID),
		zap.Float64("amount", event.Amount),
		zap.String("currency", event.Currency),
	)
	return nil
}

// PublishTransactionStatusChanged logs transaction.status_changed events.
func (p *StubPublisher) PublishTransactionStatusChanged(_ context.Context, event domain.TransactionStatusChangedEvent) error {
	p.logEvent(domain.EventTransactionStatusChanged, event.ChangedAt,
		zap.String("key", statusEventKey(event)),
		zap.String("status", string(event.Status)),
		zap.String("via", event.Via),
	)
	return nil
}

// PublishAccountProvisioned logs account.provisioned events.
func (p *StubPublisher) PublishAccountProvisioned(_ context.Context, event domain.AccountProvisionedEvent) error {
	p.logEvent(domain.EventAccountProvisioned, event.ProvisionedAt,
		zap.String("type", string(event.Type)),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.Int64("merchant_id", event.MerchantID),
		zap.Int64("principal_id", event.PrincipalID),
	)
	return nil
}

// PublishProvisioningFailed logs provisioning.failed events.
func (p *StubPublisher) PublishProvisioningFailed(_ context.Context, event domain.ProvisioningFailedEvent) error {
	p.logEvent(domain.EventProvisioningFailed, event.FailedAt,
		zap.String("type", string(event.Type)),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("reason", event.Reason),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
