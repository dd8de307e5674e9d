package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
)

const (
	delayedExchangeKind = "x-delayed-message"
	delayHeader         = "x-delay"
)

// declareExchange declares the durable delayed-message exchange. Redeclaring with the
// same arguments is a no-op on the broker.
func declareExchange(ch Channel, cfg config.RabbitMQSettings) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		delayedExchangeKind,
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", cfg.Exchange, err)
	}
	return nil
}

// declareQueues declares the exchange, the dead-letter queue and the work queue bound to
// the exchange. Rejected messages are routed through the default exchange into the DLQ.
func declareQueues(ch Channel, cfg config.RabbitMQSettings) error {
	if err := declareExchange(ch, cfg); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare dead-letter queue %s: %w", cfg.DeadLetterQueue, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DeadLetterQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// headerCarrier adapts AMQP headers to the OpenTelemetry text map carrier.
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
