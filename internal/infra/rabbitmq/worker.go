package rabbitmq

import (
	"context"
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

// Handler processes one message body. A nil error acknowledges the message; any error
// rejects it without requeue so it is dead-lettered.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// Worker consumes the provisioning queue with one channel per consumer and prefetch 1.
type Worker struct {
	source  ChannelSource
	cfg     config.RabbitMQSettings
	handler Handler
	metrics *telemetry.ProvisioningMetrics
	logger  *zap.Logger
}

// NewWorker constructs a Worker. metrics may be nil.
func NewWorker(source ChannelSource, cfg config.RabbitMQSettings, handler Handler, metrics *telemetry.ProvisioningMetrics, logger *zap.Logger) *Worker {
	if cfg.Consumers <= 0 {
		cfg.Consumers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{source: source, cfg: cfg, handler: handler, metrics: metrics, logger: logger}
}

// Run declares the topology and consumes until ctx is cancelled or a consumer channel
// closes. In-flight messages finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	setup, err := w.source.Channel()
	if err != nil {
		return err
	}
	if err := declareQueues(setup, w.cfg); err != nil {
		_ = setup.Close()
		return err
	}
	_ = setup.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < w.cfg.Consumers; i++ {
		ch, deliveries, err := w.subscribe(i)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}

		wg.Add(1)
		go func(id int, ch Channel, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			defer ch.Close()
			if err := w.consume(ctx, deliveries); err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("consumer %d: %w", id, err) })
				cancel()
			}
		}(i, ch, deliveries)
	}

	w.logger.Info("provisioning worker started",
		zap.String("queue", w.cfg.Queue),
		zap.Int("consumers", w.cfg.Consumers),
	)

	wg.Wait()
	return firstErr
}

func (w *Worker) subscribe(id int) (Channel, <-chan amqp.Delivery, error) {
	ch, err := w.source.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("rabbitmq: set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(w.cfg.Queue, fmt.Sprintf("provisioning-worker-%d", id), false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("rabbitmq: consume %s: %w", w.cfg.Queue, err)
	}
	return ch, deliveries, nil
}

var errDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

func (w *Worker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errDeliveriesClosed
			}
			w.Process(ctx, d)
		}
	}
}

// Process runs the handler for one delivery and settles it: ack on success, reject without
// requeue on failure.
func (w *Worker) Process(ctx context.Context, d amqp.Delivery) {
	started := time.Now()
	msgCtx := otel.GetTextMapPropagator().Extract(context.WithoutCancel(ctx), headerCarrier(d.Headers))

	log := w.logger.With(
		zap.String("message_id", d.MessageId),
		zap.String("type", d.Type),
		zap.Uint64("delivery_tag", d.DeliveryTag),
	)

	outcome := telemetry.OutcomeAcked
	if err := w.handler.Handle(msgCtx, d.Body); err != nil {
		outcome = telemetry.OutcomeNacked
		if errors.Is(err, domain.ErrMalformedProvisioning) {
			outcome = telemetry.OutcomeMalformed
		}
		log.Error("provisioning message rejected", zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("nack provisioning message", zap.Error(nackErr))
		}
	} else if ackErr := d.Ack(false); ackErr != nil {
		log.Error("ack provisioning message", zap.Error(ackErr))
	}

	w.metrics.ObserveDelivery(d.Type, outcome, time.Since(started).Seconds())
}
