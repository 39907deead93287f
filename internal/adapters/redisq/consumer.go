package redisq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantlab/quantjobs/internal/core"
)

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Client   redis.UniversalClient
	Handler  core.DeliveryHandler
	Logger   *slog.Logger
	Stream   string // defaults to DefaultStream
	Group    string // defaults to DefaultGroup
	Consumer string // unique consumer name within the group

	// Concurrency is the number of delivery-processing goroutines.
	Concurrency int
	// BlockTimeout bounds each XREADGROUP call so shutdown stays responsive.
	BlockTimeout time.Duration
	// ClaimMinIdle is how long an entry must sit unacked before another
	// consumer may reclaim it; this is the redelivery delay for nacks and
	// crashed workers.
	ClaimMinIdle time.Duration
	// ClaimInterval is how often pending entries are scanned for reclaim.
	ClaimInterval time.Duration
}

// Consumer pulls stream entries for its group and pushes each delivery into
// the handler. Ack results in XACK; Nack leaves the entry pending, to be
// reclaimed after ClaimMinIdle. Redis guarantees at-least-once here, never
// exactly-once: the handler owns idempotency.
type Consumer struct {
	client   redis.UniversalClient
	handler  core.DeliveryHandler
	logger   *slog.Logger
	stream   string
	group    string
	consumer string

	workers       int
	blockTimeout  time.Duration
	claimMinIdle  time.Duration
	claimInterval time.Duration
}

// NewConsumer constructs a Consumer.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("delivery handler is required")
	}
	if opts.Consumer == "" {
		return nil, errors.New("consumer name is required")
	}

	c := &Consumer{
		client:        opts.Client,
		handler:       opts.Handler,
		logger:        opts.Logger,
		stream:        opts.Stream,
		group:         opts.Group,
		consumer:      opts.Consumer,
		workers:       opts.Concurrency,
		blockTimeout:  opts.BlockTimeout,
		claimMinIdle:  opts.ClaimMinIdle,
		claimInterval: opts.ClaimInterval,
	}
	if c.stream == "" {
		c.stream = DefaultStream
	}
	if c.group == "" {
		c.group = DefaultGroup
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.blockTimeout <= 0 {
		c.blockTimeout = 5 * time.Second
	}
	if c.claimMinIdle <= 0 {
		c.claimMinIdle = time.Minute
	}
	if c.claimInterval <= 0 {
		c.claimInterval = 30 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "dispatch_consumer")
	return c, nil
}

// Run creates the consumer group if needed and processes deliveries until the
// context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	errCh := make(chan error, c.workers+1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := range c.workers {
		name := fmt.Sprintf("%s-%d", c.consumer, i)
		go func() {
			errCh <- c.readLoop(runCtx, name)
		}()
	}
	go func() {
		errCh <- c.claimLoop(runCtx)
	}()

	var first error
	for range c.workers + 1 {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
			cancel()
		}
	}
	if first != nil {
		return first
	}
	return ctx.Err()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) readLoop(ctx context.Context, consumer string) error {
	for ctx.Err() == nil {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: consumer,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.deliver(ctx, msg)
			}
		}
	}
	return ctx.Err()
}

// claimLoop periodically reclaims entries another consumer left pending past
// the min-idle threshold and re-delivers them locally.
func (c *Consumer) claimLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := "0-0"
		for {
			msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   c.stream,
				Group:    c.group,
				Consumer: c.consumer + "-claim",
				MinIdle:  c.claimMinIdle,
				Start:    start,
				Count:    16,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.WarnContext(ctx, "xautoclaim failed", "error", err)
				break
			}
			for _, msg := range msgs {
				c.deliver(ctx, msg)
			}
			if len(msgs) == 0 || next == "0-0" {
				break
			}
			start = next
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg redis.XMessage) {
	raw := c.messageBody(ctx, msg)
	if raw == nil {
		// Entries without a body can never be processed; ack to drop.
		c.ack(ctx, msg.ID)
		return
	}

	switch c.handler.OnDelivery(ctx, raw) {
	case core.Ack:
		c.ack(ctx, msg.ID)
	case core.Nack:
		c.logger.DebugContext(ctx, "delivery nacked, leaving pending", "entry_id", msg.ID)
	}
}

func (c *Consumer) messageBody(ctx context.Context, msg redis.XMessage) []byte {
	v, ok := msg.Values[bodyField]
	if !ok {
		c.logger.WarnContext(ctx, "stream entry missing body field", "entry_id", msg.ID)
		return nil
	}
	s, ok := v.(string)
	if !ok {
		c.logger.WarnContext(ctx, "stream entry body has unexpected type", "entry_id", msg.ID)
		return nil
	}
	return []byte(s)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.ErrorContext(ctx, "xack failed", "entry_id", id, "error", err)
	}
}
