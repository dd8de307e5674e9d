package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/telemetry"
)

const defaultDelay = 60 * time.Second

// ErrPublishNacked is returned when the broker refuses a confirmed publish.
var ErrPublishNacked = errors.New("rabbitmq: publish not acknowledged by broker")

// Producer publishes provisioning requests to the delayed exchange. It implements
// port.ProvisioningPublisher. Success means the broker accepted the message, nothing more.
type Producer struct {
	source  ChannelSource
	cfg     config.RabbitMQSettings
	metrics *telemetry.ProvisioningMetrics
	logger  *zap.Logger

	mu sync.Mutex
	ch Channel
}

// NewProducer constructs a Producer. metrics may be nil.
func NewProducer(source ChannelSource, cfg config.RabbitMQSettings, metrics *telemetry.ProvisioningMetrics, logger *zap.Logger) *Producer {
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{source: source, cfg: cfg, metrics: metrics, logger: logger}
}

// Publish serializes req and hands it to the exchange with the configured delay.
func (p *Producer) Publish(ctx context.Context, req domain.ProvisioningRequest) (err error) {
	defer func() { p.metrics.ObservePublish(err) }()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal provisioning request: %w", err)
	}

	headers := amqp.Table{delayHeader: p.cfg.Delay.Milliseconds()}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.IdempotencyKey,
		Type:         string(req.Type),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, msg)
	if err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	if p.cfg.PublishConfirm && confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("rabbitmq: await publish confirm: %w", err)
		}
		if !acked {
			return ErrPublishNacked
		}
	}

	p.logger.Debug("provisioning request published",
		zap.String("message_id", req.IdempotencyKey),
		zap.String("type", string(req.Type)),
	)
	return nil
}

// Close releases the producer channel. The connection stays with its manager.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("rabbitmq: close producer channel: %w", err)
	}
	return nil
}

// channel lazily opens and prepares the publishing channel. Callers hold p.mu.
func (p *Producer) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}

	ch, err := p.source.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareExchange(ch, p.cfg); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if p.cfg.PublishConfirm {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: enable publisher confirms: %w", err)
		}
	}

	p.ch = ch
	return ch, nil
}

func (p *Producer) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}
