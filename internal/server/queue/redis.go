package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// envelope is the wire form of a job in Redis lists.
type envelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

// RedisBroker keeps each queue in four keys:
//
//	<prefix>:<queue>:wait     list of jobs ready to run
//	<prefix>:<queue>:active   list of jobs a consumer has taken
//	<prefix>:<queue>:delayed  sorted set of retries scored by ready time
//	<prefix>:<queue>:dead     list of dead-lettered jobs
//
// BLMOVE from wait to active makes a taken job survive a consumer crash;
// Recover puts such jobs back.
type RedisBroker struct {
	client      redis.UniversalClient
	prefix      string
	policy      RetryPolicy
	logger      logging.Logger
	pollTimeout time.Duration
}

func NewRedisBroker(client redis.UniversalClient, policy RetryPolicy, l logging.Logger) *RedisBroker {
	return &RedisBroker{
		client:      client,
		prefix:      "fv",
		policy:      policy,
		logger:      l.With("module", "redis_queue"),
		pollTimeout: time.Second,
	}
}

func (b *RedisBroker) key(queue, part string) string {
	return b.prefix + ":" + queue + ":" + part
}

func (b *RedisBroker) Publish(ctx context.Context, queue string, payload []byte) error {
	raw, err := json.Marshal(envelope{ID: uuid.NewString(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.LPush(ctx, b.key(queue, "wait"), raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (b *RedisBroker) Consume(ctx context.Context, queue string, h Handler) error {
	wait, active := b.key(queue, "wait"), b.key(queue, "active")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := b.promoteDue(ctx, queue); err != nil && ctx.Err() == nil {
			b.logger.Warn(ctx, "promote delayed jobs", "queue", queue, "error", err)
		}

		raw, err := b.client.BLMove(ctx, wait, active, "RIGHT", "LEFT", b.pollTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("redis blmove: %w", err)
		}

		b.handle(ctx, queue, raw, h)
	}
}

func (b *RedisBroker) handle(ctx context.Context, queue, raw string, h Handler) {
	// settle even if ctx is cancelled mid-job
	sctx := context.WithoutCancel(ctx)
	active := b.key(queue, "active")

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Error(sctx, "unreadable job envelope", "queue", queue, "error", err)
		b.client.TxPipelined(sctx, func(p redis.Pipeliner) error {
			p.LRem(sctx, active, 1, raw)
			p.LPush(sctx, b.key(queue, "dead"), raw)
			return nil
		})
		return
	}

	env.Attempt++
	err := h(sctx, Delivery{ID: env.ID, Queue: queue, Payload: env.Payload, Attempt: env.Attempt})
	outcome, delay := b.policy.Decide(env.Attempt, err)

	next, _ := json.Marshal(env)

	_, perr := b.client.TxPipelined(sctx, func(p redis.Pipeliner) error {
		p.LRem(sctx, active, 1, raw)
		switch outcome {
		case OutcomeRetry:
			p.ZAdd(sctx, b.key(queue, "delayed"), redis.Z{
				Score:  float64(time.Now().Add(delay).UnixMilli()),
				Member: next,
			})
		case OutcomeDeadLetter:
			p.LPush(sctx, b.key(queue, "dead"), next)
		}
		return nil
	})
	if perr != nil {
		b.logger.Error(sctx, "settle job", "queue", queue, "job_id", env.ID, "error", perr)
	}

	switch outcome {
	case OutcomeRetry:
		b.logger.Warn(sctx, "job failed, retrying", "queue", queue, "job_id", env.ID, "attempt", env.Attempt, "delay", delay, "error", err)
	case OutcomeDrop:
		b.logger.Error(sctx, "job dropped", "queue", queue, "job_id", env.ID, "attempt", env.Attempt, "error", err)
	case OutcomeDeadLetter:
		b.logger.Error(sctx, "job dead-lettered", "queue", queue, "job_id", env.ID, "attempt", env.Attempt, "error", err)
	}
}

// promoteDue moves retries whose delay has passed back to wait. ZREM
// decides which consumer wins a member, so each retry is promoted once.
func (b *RedisBroker) promoteDue(ctx context.Context, queue string) error {
	delayed := b.key(queue, "delayed")
	due, err := b.client.ZRangeByScore(ctx, delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}
	for _, m := range due {
		n, err := b.client.ZRem(ctx, delayed, m).Result()
		if err != nil {
			return err
		}
		if n == 1 {
			if err := b.client.LPush(ctx, b.key(queue, "wait"), m).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Recover moves every job left in active back to wait and returns how many
// it moved. Call it before starting consumers after an unclean shutdown.
func (b *RedisBroker) Recover(ctx context.Context, queue string) (int, error) {
	n := 0
	for {
		_, err := b.client.LMove(ctx, b.key(queue, "active"), b.key(queue, "wait"), "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis lmove: %w", err)
		}
		n++
	}
}

// DeadLetters returns the payloads dead-lettered on queue.
func (b *RedisBroker) DeadLetters(ctx context.Context, queue string) ([]Delivery, error) {
	raws, err := b.client.LRange(ctx, b.key(queue, "dead"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Delivery, 0, len(raws))
	for _, raw := range raws {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		out = append(out, Delivery{ID: env.ID, Queue: queue, Payload: env.Payload, Attempt: env.Attempt})
	}
	return out, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
