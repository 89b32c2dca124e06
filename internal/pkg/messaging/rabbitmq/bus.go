// Package rabbitmq implements messaging.Bus on a RabbitMQ topic exchange.
//
// Every message type is a routing key. Each service declares its own durable
// queue per subscribed type ("<service>.<type>"), so two services that both
// subscribe to the same type each receive a copy.
//
// A failed delivery is parked on "<queue>.retry" for RetryDelay and then
// routed back to its queue, carrying an attempt count in a header. After
// MaxAttempts it is dead-lettered through "<exchange>.dlx" to "<queue>.dead".
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

type Config struct {
	URL      string
	Exchange string
	// Service prefixes queue names and consumer tags.
	Service string
	// Prefetch bounds unacknowledged deliveries per consumer channel.
	Prefetch int
	// HandlerTimeout bounds a single handler call.
	HandlerTimeout time.Duration
	// MaxAttempts is how many times a delivery is handed to a handler
	// before it is dead-lettered.
	MaxAttempts int
	RetryDelay  time.Duration
}

// AttemptHeader counts failed handler calls for one message.
const AttemptHeader = "x-attempt"

type Bus struct {
	cfg  Config
	log  *slog.Logger
	conn *amqp.Connection

	pubMu sync.Mutex
	pubCh *amqp.Channel
	subCh *amqp.Channel

	registrations []registration
	tracer        trace.Tracer

	// redeliver publishes a failed delivery to its retry queue.
	redeliver func(ctx context.Context, queue string, pub amqp.Publishing) error
}

type registration struct {
	messageType string
	queue       string
	handler     messaging.Handler
}

// Dial connects, declares the exchange and enables publisher confirms.
func Dial(cfg Config, log *slog.Logger) (*Bus, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	b := &Bus{cfg: cfg, log: log, conn: conn, tracer: otel.Tracer("rabbitmq")}
	b.redeliver = func(ctx context.Context, queue string, pub amqp.Publishing) error {
		// The default exchange routes by queue name.
		return b.publishConfirmed(ctx, "", retryQueue(queue), pub)
	}
	if err := b.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) setup() error {
	var err error
	if b.pubCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("rabbitmq: open publish channel: %w", err)
	}
	if err := b.pubCh.ExchangeDeclare(
		b.cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %q: %w", b.cfg.Exchange, err)
	}
	if err := b.pubCh.ExchangeDeclare(
		deadLetterExchange(b.cfg.Exchange),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("rabbitmq: declare dead-letter exchange: %w", err)
	}
	if err := b.pubCh.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq: enable confirm mode: %w", err)
	}

	if b.subCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("rabbitmq: open consume channel: %w", err)
	}
	if err := b.subCh.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set qos: %w", err)
	}
	return nil
}

// Publish sends msg as a persistent delivery and waits for the broker confirm.
func (b *Bus) Publish(ctx context.Context, msg messages.Message) error {
	env, err := messages.Encode(msg)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))
	interceptors.Inject(ctx, headerCarrier(headers).Set)

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: env.OrderID,
		Type:          env.Type,
		Timestamp:     time.Now().UTC(),
		AppId:         b.cfg.Service,
		Headers:       headers,
		Body:          env.Body,
	}

	if err := b.publishConfirmed(ctx, b.cfg.Exchange, env.Type, pub); err != nil {
		return fmt.Errorf("%w (order %s)", err, env.OrderID)
	}
	return nil
}

func (b *Bus) publishConfirmed(ctx context.Context, exchange, key string, pub amqp.Publishing) error {
	b.pubMu.Lock()
	confirm, err := b.pubCh.PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,
		key,   // routing key
		false, // mandatory
		false, // immediate
		pub,
	)
	b.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked %s", key)
	}
	return nil
}

// Subscribe registers a handler. Consumption starts with Start.
func (b *Bus) Subscribe(messageType string, h messaging.Handler) error {
	b.registrations = append(b.registrations, registration{
		messageType: messageType,
		queue:       queueName(b.cfg.Service, messageType),
		handler:     h,
	})
	return nil
}

// Start declares and binds the queues, then consumes each one on its own
// goroutine until ctx is cancelled or the channel closes.
func (b *Bus) Start(ctx context.Context) error {
	for _, reg := range b.registrations {
		if err := b.declareSideQueues(reg.queue); err != nil {
			return err
		}
		q, err := b.subCh.QueueDeclare(
			reg.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			amqp.Table{
				"x-dead-letter-exchange":    deadLetterExchange(b.cfg.Exchange),
				"x-dead-letter-routing-key": reg.queue,
			},
		)
		if err != nil {
			return fmt.Errorf("rabbitmq: declare queue %q: %w", reg.queue, err)
		}
		if err := b.subCh.QueueBind(q.Name, reg.messageType, b.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: bind %q: %w", reg.queue, err)
		}

		deliveries, err := b.subCh.ConsumeWithContext(
			ctx,
			q.Name,
			"c_"+q.Name,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("rabbitmq: consume %q: %w", reg.queue, err)
		}

		go b.consume(ctx, reg, deliveries)
	}
	return nil
}

// declareSideQueues declares the dead-letter queue and the delay queue that
// feeds expired messages back into queue.
func (b *Bus) declareSideQueues(queue string) error {
	dead, err := b.subCh.QueueDeclare(deadQueue(queue), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue %q: %w", deadQueue(queue), err)
	}
	if err := b.subCh.QueueBind(dead.Name, queue, deadLetterExchange(b.cfg.Exchange), false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind %q: %w", dead.Name, err)
	}

	_, err = b.subCh.QueueDeclare(retryQueue(queue), true, false, false, false, amqp.Table{
		"x-message-ttl":             b.cfg.RetryDelay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue %q: %w", retryQueue(queue), err)
	}
	return nil
}

func (b *Bus) consume(ctx context.Context, reg registration, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				b.log.Warn("consumer stopped", "queue", reg.queue)
				return
			}
			b.dispatch(ctx, reg, d)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, reg registration, d amqp.Delivery) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(d.Headers))
	ctx = interceptors.Extract(ctx, headerCarrier(d.Headers).Get)
	ctx, span := b.tracer.Start(ctx, "consume "+reg.messageType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", reg.queue),
			attribute.String("messaging.message.id", d.MessageId),
			attribute.String("order.id", d.CorrelationId),
		))
	defer span.End()

	msg, err := messages.Unmarshal(reg.messageType, d.Body)
	if err != nil {
		// A body that cannot be decoded will never succeed; do not requeue it.
		span.SetStatus(codes.Error, err.Error())
		b.log.ErrorContext(ctx, "rejecting undecodable delivery", "queue", reg.queue, "error", err)
		_ = d.Nack(false, false)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	err = reg.handler(callCtx, msg)
	cancel()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.retryLater(ctx, reg, d, err)
		return
	}
	_ = d.Ack(false)
}

// retryLater hands a failed delivery to the retry queue, or dead-letters it
// once it has used up its attempts.
func (b *Bus) retryLater(ctx context.Context, reg registration, d amqp.Delivery, cause error) {
	attempt := attempts(d.Headers) + 1
	log := b.log.With("queue", reg.queue, "order_id", d.CorrelationId, "attempt", attempt, "error", cause)

	if attempt >= b.cfg.MaxAttempts {
		log.ErrorContext(ctx, "handler failed, dead-lettering")
		_ = d.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[AttemptHeader] = int32(attempt)

	pub := amqp.Publishing{
		ContentType:   d.ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     d.MessageId,
		CorrelationId: d.CorrelationId,
		Type:          d.Type,
		Timestamp:     d.Timestamp,
		AppId:         d.AppId,
		Headers:       headers,
		Body:          d.Body,
	}
	if err := b.redeliver(ctx, reg.queue, pub); err != nil {
		log.ErrorContext(ctx, "retry publish failed, requeueing", "publish_error", err)
		_ = d.Nack(false, true)
		return
	}
	log.WarnContext(ctx, "handler failed, retrying later", "delay", b.cfg.RetryDelay)
	_ = d.Ack(false)
}

func attempts(h amqp.Table) int {
	switch v := h[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Close closes both channels and the connection.
func (b *Bus) Close() error {
	if b.subCh != nil {
		_ = b.subCh.Close()
	}
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	return b.conn.Close()
}

func queueName(service, messageType string) string {
	return service + "." + messageType
}

func retryQueue(queue string) string      { return queue + ".retry" }
func deadQueue(queue string) string       { return queue + ".dead" }
func deadLetterExchange(ex string) string { return ex + ".dlx" }
