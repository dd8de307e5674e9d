package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Key       string           `json:"key,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// publish wraps payload in the envelope and enqueues it. key selects the partition, so
// events about the same transaction or account stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventType, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTransactionCreated publishes transaction.created events.
func (p *EventPublisher) PublishTransactionCreated(ctx context.Context, event domain.TransactionCreatedEvent) error {
	payload := struct {
		TransactionID int64     `json:"transaction_id"`
		ServiceID     string    `json:"service_id"`
		MerchantID    int64     `json:"merchant_id"`
		Amount        float64   `json:"amount"`
		Currency      string    `json:"currency"`
		PaymentLinkID *string   `json:"payment_link_id,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
	}{
		TransactionID: event.TransactionID,
		ServiceID:     event.ServiceID,
		MerchantID:    event.MerchantID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		PaymentLinkID: event.PaymentLinkID,
		CreatedAt:     event.CreatedAt.UTC(),
	}

	return p.publish(ctx, domain.EventTransactionCreated, strconv.FormatInt(event.TransactionID, 10), event.CreatedAt, payload)
}

// PublishTransactionStatusChanged publishes transaction.status_changed events.
func (p *EventPublisher) PublishTransactionStatusChanged(ctx context.Context, event domain.TransactionStatusChangedEvent) error {
	payload := struct {
		TransactionID *int64    `json:"transaction_id,omitempty"`
		PaymentLinkID *string   `json:"payment_link_id,omitempty"`
		Status        string    `json:"status"`
		Via           string    `json:"via"`
		ChangedAt     time.Time `json:"changed_at"`
	}{
		TransactionID: event.TransactionID,
		PaymentLinkID: event.PaymentLinkID,
		Status:        string(event.Status),
		Via:           event.Via,
		ChangedAt:     event.ChangedAt.UTC(),
	}

	return p.publish(ctx, domain.EventTransactionStatusChanged, statusEventKey(event), event.ChangedAt, payload)
}

// PublishAccountProvisioned publishes account.provisioned events.
func (p *EventPublisher) PublishAccountProvisioned(ctx context.Context, event domain.AccountProvisionedEvent) error {
	payload := struct {
		Type           string    `json:"type"`
		Email          string    `json:"email"`
		MerchantID     int64     `json:"merchant_id"`
		PrincipalID    int64     `json:"principal_id"`
		IdempotencyKey string    `json:"idempotency_key"`
		ProvisionedAt  time.Time `json:"provisioned_at"`
	}{
		Type:           string(event.Type),
		Email:          event.Email,
		MerchantID:     event.MerchantID,
		PrincipalID:    event.PrincipalID,
		IdempotencyKey: event.IdempotencyKey,
		ProvisionedAt:  event.ProvisionedAt.UTC(),
	}

	return p.publish(ctx, domain.EventAccountProvisioned, event.IdempotencyKey, event.ProvisionedAt, payload)
}

// PublishProvisioningFailed publishes provisioning.failed events. The email is masked.
func (p *EventPublisher) PublishProvisioningFailed(ctx context.Context, event domain.ProvisioningFailedEvent) error {
	payload := struct {
		Type           string    `json:"type"`
		Email          string    `json:"email"`
		IdempotencyKey string    `json:"idempotency_key"`
		Reason         string    `json:"reason"`
		FailedAt       time.Time `json:"failed_at"`
	}{
		Type:           string(event.Type),
		Email:          logger.MaskEmail(event.Email),
		IdempotencyKey: event.IdempotencyKey,
		Reason:         event.Reason,
		FailedAt:       event.FailedAt.UTC(),
	}

	return p.publish(ctx, domain.EventProvisioningFailed, event.IdempotencyKey, event.FailedAt, payload)
}

func statusEventKey(event domain.TransactionStatusChangedEvent) string {
	if event.TransactionID != nil {
		return strconv.FormatInt(*event.TransactionID, 10)
	}
	if event.PaymentLinkID != nil {
		return *event.PaymentLinkID
	}
	return ""
}

var _ port.EventPublisher = (*EventPublisher)(nil)
