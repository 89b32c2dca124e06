package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

// ackRecorder is an amqp.Acknowledger that remembers what happened to a delivery.
type ackRecorder struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type retried struct {
	queue string
	pub   amqp.Publishing
}

func testBus(redeliverErr error) (*Bus, *[]retried) {
	var sent []retried
	b := &Bus{
		cfg: Config{
			Service:        "orchestrator",
			HandlerTimeout: time.Second,
			MaxAttempts:    3,
			RetryDelay:     time.Second,
		},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("test"),
	}
	b.redeliver = func(_ context.Context, queue string, pub amqp.Publishing) error {
		if redeliverErr != nil {
			return redeliverErr
		}
		sent = append(sent, retried{queue: queue, pub: pub})
		return nil
	}
	return b, &sent
}

func delivery(t *testing.T, ack amqp.Acknowledger, headers amqp.Table) amqp.Delivery {
	t.Helper()
	env, err := messages.Encode(messages.ProcessShippingCommand{OrderID: "o-1"})
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger:  ack,
		Headers:       headers,
		CorrelationId: "o-1",
		MessageId:     "m-1",
		Type:          env.Type,
		Body:          env.Body,
	}
}

func registrationFor(h func(context.Context, messages.Message) error) registration {
	return registration{
		messageType: messages.TypeProcessShipping,
		queue:       queueName("orchestrator", messages.TypeProcessShipping),
		handler:     h,
	}
}

func TestDispatch_AcksHandledMessage(t *testing.T) {
	b, sent := testBus(nil)
	ack := &ackRecorder{}

	var got messages.Message
	b.dispatch(context.Background(), registrationFor(func(_ context.Context, m messages.Message) error {
		got = m
		return nil
	}), delivery(t, ack, nil))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Empty(t, *sent)
	assert.Equal(t, messages.ProcessShippingCommand{OrderID: "o-1"}, got)
}

func TestDispatch_UndecodableBodyIsDeadLettered(t *testing.T) {
	b, sent := testBus(nil)
	ack := &ackRecorder{}

	d := delivery(t, ack, nil)
	d.Body = []byte("{not json")
	b.dispatch(context.Background(), registrationFor(func(context.Context, messages.Message) error {
		t.Fatal("handler must not run")
		return nil
	}), d)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, *sent)
}

func TestDispatch_FailureGoesToRetryQueueWithAttemptCount(t *testing.T) {
	b, sent := testBus(nil)
	ack := &ackRecorder{}
	failing := registrationFor(func(context.Context, messages.Message) error { return errors.New("store down") })

	b.dispatch(context.Background(), failing, delivery(t, ack, amqp.Table{"traceparent": "abc"}))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	require.Len(t, *sent, 1)
	assert.Equal(t, failing.queue, (*sent)[0].queue)
	assert.Equal(t, int32(1), (*sent)[0].pub.Headers[AttemptHeader])
	assert.Equal(t, "abc", (*sent)[0].pub.Headers["traceparent"])
	assert.Equal(t, "o-1", (*sent)[0].pub.CorrelationId)
	assert.Equal(t, amqp.Persistent, (*sent)[0].pub.DeliveryMode)
}

func TestDispatch_DeadLettersAfterMaxAttempts(t *testing.T) {
	b, sent := testBus(nil)
	ack := &ackRecorder{}
	failing := registrationFor(func(context.Context, messages.Message) error { return errors.New("store down") })

	b.dispatch(context.Background(), failing, delivery(t, ack, amqp.Table{AttemptHeader: int32(2)}))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.False(t, ack.acked)
	assert.Empty(t, *sent)
}

func TestDispatch_RequeuesWhenRetryPublishFails(t *testing.T) {
	b, _ := testBus(errors.New("channel closed"))
	ack := &ackRecorder{}
	failing := registrationFor(func(context.Context, messages.Message) error { return errors.New("store down") })

	b.dispatch(context.Background(), failing, delivery(t, ack, nil))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.False(t, ack.acked)
}

func TestAttempts_ReadsIntegerHeaders(t *testing.T) {
	assert.Equal(t, 0, attempts(nil))
	assert.Equal(t, 2, attempts(amqp.Table{AttemptHeader: int32(2)}))
	assert.Equal(t, 3, attempts(amqp.Table{AttemptHeader: int64(3)}))
	assert.Equal(t, 0, attempts(amqp.Table{AttemptHeader: "4"}))
}

func TestSideQueueNames(t *testing.T) {
	q := queueName("payment-service", messages.TypeProcessPayment)
	assert.Equal(t, q+".retry", retryQueue(q))
	assert.Equal(t, q+".dead", deadQueue(q))
	assert.Equal(t, "order-fulfillment.dlx", deadLetterExchange("order-fulfillment"))
}
