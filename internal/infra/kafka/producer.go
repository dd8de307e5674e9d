package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
)

// Producer wraps a Sarama AsyncProducer. Delivery failures are logged and counted per topic.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	failures *prometheus.CounterVec
	drained  chan struct{}
}

// NewProducer connects an async producer to cfg.Brokers. Events are keyed, so the hash
// partitioner keeps per-transaction ordering. reg may be nil.
func NewProducer(cfg config.KafkaSettings, reg prometheus.Registerer, logger *zap.Logger) (*Producer, error) {
	failures, err := newFailureCounter(reg)
	if err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.ClientID = "payment-gateway"

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		failures: failures,
		drained:  make(chan struct{}),
	}

	go p.handleErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

// handleErrors runs until the producer closes its error channel.
func (p *Producer) handleErrors() {
	defer close(p.drained)
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		p.logger.Error("kafka delivery failed",
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
			zap.Int32("partition", perr.Msg.Partition),
		)
		if p.failures != nil {
			p.failures.WithLabelValues(perr.Msg.Topic).Inc()
		}
	}
}

// Producer exposes the underlying AsyncProducer.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Close flushes pending messages and waits for the remaining failures to be recorded.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	err := p.producer.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

func newFailureCounter(reg prometheus.Registerer) (*prometheus.CounterVec, error) {
	if reg == nil {
		return nil, nil
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgw",
		Subsystem: "kafka",
		Name:      "delivery_failures_total",
		Help:      "Domain events the broker failed to accept, by topic.",
	}, []string{"topic"})
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register kafka failure counter: %w", err)
	}
	return counter, nil
}

// TopicName prefixes eventType with the configured topic prefix, once.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := fmt.Sprintf("%s.", p.cfg.TopicPrefix)
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return fmt.Sprintf("%s%s", prefix, eventType)
}
