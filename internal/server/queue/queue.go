// Package queue delivers background jobs at least once. Consumers see each
// job until their handler succeeds, returns a Permanent error, or the
// attempt budget runs out; in the last case the job is dead-lettered.
// There is no ordering guarantee between jobs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Queue names used by the server and worker.
const (
	FileQueue = "fileQueue"
	UserQueue = "userQueue"
)

// Delivery is one attempt at one job.
type Delivery struct {
	ID      string
	Queue   string
	Payload []byte
	// Attempt is 1 on first delivery.
	Attempt int
}

// Decode unmarshals the JSON payload into v, wrapping failures as Permanent:
// a payload that does not parse now never will.
func (d Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s job %s: %w", d.Queue, d.ID, err))
	}
	return nil
}

// Handler processes a delivery. A nil error acknowledges it.
type Handler func(ctx context.Context, d Delivery) error

// Broker is the transport-neutral queue contract.
type Broker interface {
	// Publish returns once the broker has durably accepted payload.
	Publish(ctx context.Context, queue string, payload []byte) error
	// Consume runs h for deliveries from queue until ctx is cancelled. A
	// handler already running when ctx is cancelled is allowed to finish.
	Consume(ctx context.Context, queue string, h Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, b Broker, queue string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", queue, err)
	}
	return b.Publish(ctx, queue, payload)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job is dropped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, came from Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Outcome is what a broker does with a delivery after its handler returns.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRetry
	OutcomeDrop
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRetry:
		return "retry"
	case OutcomeDrop:
		return "drop"
	case OutcomeDeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

// RetryPolicy bounds redelivery. Delays grow exponentially with jitter
// between MinDelay and MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used where no policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, MinDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}

// Decide maps a handler result for the given attempt to an Outcome and,
// for OutcomeRetry, the delay before the next attempt.
func (p RetryPolicy) Decide(attempt int, err error) (Outcome, time.Duration) {
	switch {
	case err == nil:
		return OutcomeAck, 0
	case IsPermanent(err):
		return OutcomeDrop, 0
	case attempt >= p.MaxAttempts:
		return OutcomeDeadLetter, 0
	}

	b := &backoff.Backoff{
		Min:    p.MinDelay,
		Max:    p.MaxDelay,
		Factor: 2,
		Jitter: true,
	}
	return OutcomeRetry, b.ForAttempt(float64(attempt - 1))
}
