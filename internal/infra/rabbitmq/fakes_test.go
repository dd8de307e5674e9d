package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type exchangeDecl struct {
	name string
	kind string
	args amqp.Table
}

type queueDecl struct {
	name string
	args amqp.Table
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu sync.Mutex

	exchanges  []exchangeDecl
	queues     []queueDecl
	bindings   []string
	prefetch   int
	confirmed  bool
	published  []published
	publishErr error
	deliveries chan amqp.Delivery
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, exchangeDecl{name: name, kind: kind, args: args})
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, queueDecl{name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, name+"|"+key+"|"+exchange)
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) Confirm(bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = true
	return nil
}

func (c *fakeChannel) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return nil, c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil, nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deliveries == nil {
		return nil, errors.New("no deliveries configured")
	}
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	channels []*fakeChannel
	next     func() *fakeChannel
}

func (s *fakeSource) Channel() (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := &fakeChannel{}
	if s.next != nil {
		ch = s.next()
	}
	s.channels = append(s.channels, ch)
	return ch, nil
}

func (s *fakeSource) opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
	settled chan struct{}
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{settled: make(chan struct{}, 8)}
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.record(ackRecord{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.record(ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.record(ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) record(r ackRecord) {
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
	a.settled <- struct{}{}
}

func (a *fakeAcknowledger) snapshot() []ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackRecord(nil), a.records...)
}

type handlerFunc func(ctx context.Context, body []byte) error

func (f handlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }
