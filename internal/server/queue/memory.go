package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/google/uuid"
)

// ErrClosed is returned by a broker after Close.
var ErrClosed = errors.New("queue: broker closed")

var errQueueFull = errors.New("queue: buffer full")

const memoryQueueCapacity = 1024

// MemoryBroker delivers jobs over buffered channels within one process.
// Retries are re-enqueued by timers; dead letters are kept for inspection.
type MemoryBroker struct {
	policy   RetryPolicy
	logger   logging.Logger
	capacity int

	mu     sync.Mutex
	closed bool
	queues map[string]chan Delivery
	dead   map[string][]Delivery
	timers map[*time.Timer]struct{}
}

func NewMemoryBroker(policy RetryPolicy, l logging.Logger) *MemoryBroker {
	return &MemoryBroker{
		policy:   policy,
		logger:   l.With("module", "memory_queue"),
		capacity: memoryQueueCapacity,
		queues:   make(map[string]chan Delivery),
		dead:     make(map[string][]Delivery),
		timers:   make(map[*time.Timer]struct{}),
	}
}

func (b *MemoryBroker) queue(name string) (chan Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Delivery, b.capacity)
		b.queues[name] = q
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, queue string, payload []byte) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	d := Delivery{ID: uuid.NewString(), Queue: queue, Payload: append([]byte(nil), payload...)}
	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Consume(ctx context.Context, queue string, h Handler) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-q:
			d.Attempt++
			err := h(context.WithoutCancel(ctx), d)
			b.settle(ctx, q, d, err)
		}
	}
}

func (b *MemoryBroker) settle(ctx context.Context, q chan Delivery, d Delivery, err error) {
	outcome, delay := b.policy.Decide(d.Attempt, err)
	switch outcome {
	case OutcomeAck:
	case OutcomeDrop:
		b.logger.Error(ctx, "job dropped", "queue", d.Queue, "job_id", d.ID, "attempt", d.Attempt, "error", err)
	case OutcomeDeadLetter:
		b.deadLetter(ctx, d, err)
	case OutcomeRetry:
		b.logger.Warn(ctx, "job failed, retrying", "queue", d.Queue, "job_id", d.ID, "attempt", d.Attempt, "delay", delay, "error", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		var t *time.Timer
		t = time.AfterFunc(delay, func() {
			b.mu.Lock()
			delete(b.timers, t)
			closed := b.closed
			b.mu.Unlock()
			if !closed {
				b.requeue(q, d)
			}
		})
		b.timers[t] = struct{}{}
	}
}

func (b *MemoryBroker) deadLetter(ctx context.Context, d Delivery, err error) {
	b.logger.Error(ctx, "job dead-lettered", "queue", d.Queue, "job_id", d.ID, "attempt", d.Attempt, "error", err)
	b.mu.Lock()
	b.dead[d.Queue] = append(b.dead[d.Queue], d)
	b.mu.Unlock()
}

// requeue puts a retried job back on q. A full buffer never blocks the
// timer goroutine; the job is dead-lettered instead.
func (b *MemoryBroker) requeue(q chan Delivery, d Delivery) {
	select {
	case q <- d:
	default:
		b.deadLetter(context.Background(), d, errQueueFull)
	}
}

// DeadLetters returns the jobs dead-lettered on queue so far.
func (b *MemoryBroker) DeadLetters(queue string) []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Delivery(nil), b.dead[queue]...)
}

// Len returns the number of jobs waiting on queue, excluding pending retries.
func (b *MemoryBroker) Len(queue string) int {
	q, err := b.queue(queue)
	if err != nil {
		return 0
	}
	return len(q)
}

func (b *MemoryBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops pending retries. Jobs still buffered are discarded.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for t := range b.timers {
		t.Stop()
	}
	b.timers = map[*time.Timer]struct{}{}
	return nil
}
