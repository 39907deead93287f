// Package redisq implements the dispatch channel over a Redis Stream with a
// consumer group. Publishing appends one entry per job; the consumer group
// gives at-least-once push delivery to the worker tier, with unacked entries
// reclaimed after a minimum idle time.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quantlab/quantjobs/internal/dispatch"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

const (
	// DefaultStream is the stream key carrying dispatch messages.
	DefaultStream = "quantjobs:dispatch"
	// DefaultGroup is the worker tier's consumer group.
	DefaultGroup = "workers"

	bodyField = "body"
)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Client redis.UniversalClient
	Stream string // defaults to DefaultStream
	Secret []byte // HMAC key for the dispatch envelope
}

// Publisher publishes signed dispatch messages onto the stream.
type Publisher struct {
	client redis.UniversalClient
	stream string
	secret []byte
}

// NewPublisher constructs a Publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("dispatch secret is required")
	}
	stream := opts.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: opts.Client, stream: stream, secret: opts.Secret}, nil
}

// Publish appends one signed dispatch message to the stream.
func (p *Publisher) Publish(ctx context.Context, msg model.DispatchMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode dispatch message: %w", err)
	}
	body, err := dispatch.Seal(payload, p.secret)
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{bodyField: body},
	}).Err(); err != nil {
		return fmt.Errorf("xadd dispatch message: %w", err)
	}
	return nil
}
