package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/telemetry"
)

func newTestMetrics(t *testing.T) *telemetry.ProvisioningMetrics {
	t.Helper()
	metrics, err := telemetry.NewProvisioningMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewProvisioningMetrics: %v", err)
	}
	return metrics
}

func TestWorker_ProcessSettlesDeliveries(t *testing.T) {
	cases := []struct {
		name        string
		handlerErr  error
		wantAcked   bool
		wantOutcome string
	}{
		{name: "success acks", wantAcked: true, wantOutcome: telemetry.OutcomeAcked},
		{name: "failure dead-letters", handlerErr: errors.New("db down"), wantOutcome: telemetry.OutcomeNacked},
		{name: "malformed dead-letters", handlerErr: fmt.Errorf("%w: bad json", domain.ErrMalformedProvisioning), wantOutcome: telemetry.OutcomeMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := newTestMetrics(t)
			var seen []byte
			handler := handlerFunc(func(_ context.Context, body []byte) error {
				seen = body
				return tc.handlerErr
			})
			worker := NewWorker(&fakeSource{}, testSettings(), handler, metrics, zaptest.NewLogger(t))

			ack := newFakeAcknowledger()
			worker.Process(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  7,
				Type:         string(domain.ProvisionStaffCreation),
				Body:         []byte(`{"type":"staff_creation"}`),
			})

			if string(seen) != `{"type":"staff_creation"}` {
				t.Fatalf("handler saw %q", seen)
			}
			records := ack.snapshot()
			if len(records) != 1 || records[0].tag != 7 {
				t.Fatalf("expected exactly one settlement, got %+v", records)
			}
			if records[0].acked != tc.wantAcked {
				t.Fatalf("expected acked=%v, got %+v", tc.wantAcked, records[0])
			}
			if records[0].requeue {
				t.Fatal("failed messages must not be requeued")
			}
			got := testutil.ToFloat64(metrics.Deliveries.WithLabelValues(string(domain.ProvisionStaffCreation), tc.wantOutcome))
			if got != 1 {
				t.Fatalf("expected outcome %s counted once, got %v", tc.wantOutcome, got)
			}
		})
	}
}

func TestWorker_RunDeclaresTopologyAndConsumes(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 1)
	source := &fakeSource{next: func() *fakeChannel {
		return &fakeChannel{deliveries: deliveries}
	}}

	handled := make(chan struct{}, 1)
	handler := handlerFunc(func(context.Context, []byte) error {
		handled <- struct{}{}
		return nil
	})
	worker := NewWorker(source, testSettings(), handler, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	ack := newFakeAcknowledger()
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	select {
	case <-ack.settled:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not settled")
	}
	<-handled

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	setup := source.channels[0]
	if len(setup.queues) != 2 || setup.queues[0].name != "provisioning.dlq" || setup.queues[1].name != "provisioning" {
		t.Fatalf("unexpected queue declarations: %+v", setup.queues)
	}
	if !setup.closed {
		t.Fatal("expected setup channel to be closed")
	}

	consumer := source.channels[1]
	if consumer.prefetch != 1 {
		t.Fatalf("expected prefetch 1, got %d", consumer.prefetch)
	}
	if records := ack.snapshot(); len(records) != 1 || !records[0].acked {
		t.Fatalf("expected one ack, got %+v", records)
	}
}

func TestWorker_RunFailsWhenDeliveriesClose(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	close(deliveries)
	source := &fakeSource{next: func() *fakeChannel {
		return &fakeChannel{deliveries: deliveries}
	}}
	worker := NewWorker(source, testSettings(), handlerFunc(func(context.Context, []byte) error { return nil }), nil, zaptest.NewLogger(t))

	if err := worker.Run(context.Background()); !errors.Is(err, errDeliveriesClosed) {
		t.Fatalf("expected errDeliveriesClosed, got %v", err)
	}
}
