package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
)

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 3 * time.Second
)

// ErrNotConnected is returned when a channel is requested before Open or after Close.
var ErrNotConnected = errors.New("rabbitmq: not connected")

// Channel is the subset of *amqp.Channel used by the producer and the worker.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ChannelSource hands out channels on a shared connection.
type ChannelSource interface {
	Channel() (Channel, error)
}

// ConnectionManager owns the single broker connection of a process.
type ConnectionManager struct {
	url      string
	attempts int
	delay    time.Duration
	logger   *zap.Logger
	dial     func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewConnectionManager builds a manager from the broker settings. Open must be called before use.
func NewConnectionManager(cfg config.RabbitMQSettings, logger *zap.Logger) *ConnectionManager {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	delay := cfg.ConnectDelay
	if delay <= 0 {
		delay = defaultConnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		url:      cfg.URL,
		attempts: attempts,
		delay:    delay,
		logger:   logger,
		dial:     amqp.Dial,
	}
}

// Open dials the broker, retrying with a fixed delay. It fails once every attempt is spent
// or ctx ends.
func (m *ConnectionManager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		conn, err := m.dial(m.url)
		if err == nil {
			m.conn = conn
			m.logger.Info("connected to rabbitmq", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		m.logger.Warn("rabbitmq connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.attempts),
			zap.Error(err),
		)

		if attempt == m.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq: connect aborted: %w", ctx.Err())
		case <-time.After(m.delay):
		}
	}

	return fmt.Errorf("rabbitmq: connect failed after %d attempts: %w", m.attempts, lastErr)
}

// Channel opens a new channel on the managed connection.
func (m *ConnectionManager) Channel() (Channel, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return ch, nil
}

// HealthCheck reports whether the connection is open.
func (m *ConnectionManager) HealthCheck(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || m.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

// Close closes the connection and every channel opened on it.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("rabbitmq: close connection: %w", err)
	}
	return nil
}
