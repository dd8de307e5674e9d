package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pgw"

// Provisioning outcomes recorded by ProvisioningMetrics.
const (
	OutcomeAcked     = "acked"
	OutcomeNacked    = "nacked"
	OutcomeMalformed = "malformed"
)

// ProvisioningMetrics counts what the provisioning worker did with each delivery.
type ProvisioningMetrics struct {
	Deliveries *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Published  *prometheus.CounterVec
}

// NewProvisioningMetrics registers the worker and producer collectors with reg, reusing
// collectors that are already registered. A nil reg means the default registerer.
func NewProvisioningMetrics(reg prometheus.Registerer) (*ProvisioningMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	deliveries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "deliveries_total",
		Help:      "Provisioning messages handled by the worker partitioned by type and outcome.",
	}, []string{"type", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling one provisioning message.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	if err := reg.Register(duration); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register provisioning duration collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("existing duration collector has unexpected type %T", already.ExistingCollector)
		}
		duration = existing
	}

	published, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "published_total",
		Help:      "Provisioning requests handed to the broker partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &ProvisioningMetrics{Deliveries: deliveries, Duration: duration, Published: published}, nil
}

// ObserveDelivery records one handled message. Safe on a nil receiver.
func (m *ProvisioningMetrics) ObserveDelivery(msgType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if msgType == "" {
		msgType = "unknown"
	}
	m.Deliveries.WithLabelValues(msgType, outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(seconds)
}

// ObservePublish records one producer publish attempt. Safe on a nil receiver.
func (m *ProvisioningMetrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Published.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register counter: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing counter has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}
