package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptHeader = "x-attempt"

// AMQPBroker runs each queue on RabbitMQ with two companions:
//
//	<queue>        work queue; rejected messages dead-letter to <queue>.dead
//	<queue>.retry  holding queue; messages expire back into <queue>
//	<queue>.dead   dead letters
//
// Consumers use manual acks and a prefetch of one, so a job is in flight
// on at most one consumer and is redelivered if that consumer dies.
//
// A lost connection is redialed on the next publish, and consumers
// reconnect with backoff until their context ends.
type AMQPBroker struct {
	url    string
	policy RetryPolicy
	logger logging.Logger

	mu       sync.Mutex
	closed   bool
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	declared map[string]bool
}

// DialAMQP connects to url and opens a confirm-mode publishing channel.
func DialAMQP(url string, policy RetryPolicy, l logging.Logger) (*AMQPBroker, error) {
	b := &AMQPBroker{
		url:      url,
		policy:   policy,
		logger:   l.With("module", "amqp_queue"),
		declared: make(map[string]bool),
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// connect (re)opens the connection and the publishing channel when either
// is gone. Callers hold b.mu.
func (b *AMQPBroker) connect() error {
	if b.closed {
		return ErrClosed
	}
	if b.conn != nil && !b.conn.IsClosed() && b.pubCh != nil && !b.pubCh.IsClosed() {
		return nil
	}

	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		if b.conn != nil {
			b.logger.Warn(context.Background(), "amqp connection re-established")
		}
		b.conn = conn
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("amqp confirm: %w", err)
	}
	b.pubCh = ch
	// queues may have been lost with a non-durable broker restart
	b.declared = make(map[string]bool)
	return nil
}

func (b *AMQPBroker) connection() (*amqp.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b.conn, nil
}

func declareTopology(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue+".dead", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue + ".dead",
	}); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue+".retry", true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	})
	return err
}

// publish sends on the shared confirm channel and waits for the broker ack.
func (b *AMQPBroker) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connect(); err != nil {
		return err
	}

	base := routingKey
	if n := len(routingKey) - len(".retry"); n > 0 && routingKey[n:] == ".retry" {
		base = routingKey[:n]
	}
	if !b.declared[base] {
		if err := declareTopology(b.pubCh, base); err != nil {
			return fmt.Errorf("amqp declare %s: %w", base, err)
		}
		b.declared[base] = true
	}

	dc, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", routingKey, true, false, msg)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	if !ok {
		return errors.New("amqp publish nacked")
	}
	return nil
}

func (b *AMQPBroker) Publish(ctx context.Context, queue string, payload []byte) error {
	return b.publish(ctx, queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{attemptHeader: int32(0)},
		Body:         payload,
	})
}

// Consume runs h on queue until ctx ends. When the connection drops it
// reconnects, waiting longer after each consecutive failure.
func (b *AMQPBroker) Consume(ctx context.Context, queue string, h Handler) error {
	bo := &backoff.Backoff{Min: b.policy.MinDelay, Max: b.policy.MaxDelay, Factor: 2, Jitter: true}
	for {
		err := b.consume(ctx, queue, h, bo.Reset)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		wait := bo.Duration()
		b.logger.Warn(ctx, "amqp consumer lost, reconnecting", "queue", queue, "delay", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// consume serves one channel until it closes. started is called once the
// consumer is registered.
func (b *AMQPBroker) consume(ctx context.Context, queue string, h Handler, started func()) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch, queue); err != nil {
		return fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	started()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: delivery channel closed")
			}
			b.handle(ctx, queue, d, h)
		}
	}
}

func (b *AMQPBroker) handle(ctx context.Context, queue string, d amqp.Delivery, h Handler) {
	sctx := context.WithoutCancel(ctx)
	attempt := headerInt(d.Headers, attemptHeader) + 1

	err := h(sctx, Delivery{ID: d.MessageId, Queue: queue, Payload: d.Body, Attempt: attempt})
	outcome, delay := b.policy.Decide(attempt, err)

	switch outcome {
	case OutcomeAck:
		_ = d.Ack(false)
	case OutcomeDrop:
		b.logger.Error(sctx, "job dropped", "queue", queue, "job_id", d.MessageId, "attempt", attempt, "error", err)
		_ = d.Ack(false)
	case OutcomeDeadLetter:
		b.logger.Error(sctx, "job dead-lettered", "queue", queue, "job_id", d.MessageId, "attempt", attempt, "error", err)
		_ = d.Nack(false, false)
	case OutcomeRetry:
		b.logger.Warn(sctx, "job failed, retrying", "queue", queue, "job_id", d.MessageId, "attempt", attempt, "delay", delay, "error", err)
		perr := b.publish(sctx, queue+".retry", amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    d.MessageId,
			Headers:      amqp.Table{attemptHeader: int32(attempt)},
			Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
			Body:         d.Body,
		})
		if perr != nil {
			// let the broker redeliver rather than lose the job
			b.logger.Error(sctx, "schedule retry", "queue", queue, "job_id", d.MessageId, "error", perr)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

func headerInt(t amqp.Table, key string) int {
	switch v := t[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// Ping reports whether the connection is up. It does not redial.
func (b *AMQPBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.conn == nil || b.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
