package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/dispatch"
	"github.com/quantlab/quantjobs/internal/domain/model"
	"github.com/quantlab/quantjobs/internal/testutil"
)

var streamSecret = []byte("stream-test-secret")

// handlerFunc adapts a function to core.DeliveryHandler.
type handlerFunc func(ctx context.Context, raw []byte) core.Disposition

func (f handlerFunc) OnDelivery(ctx context.Context, raw []byte) core.Disposition {
	return f(ctx, raw)
}

func testStream(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("quantjobs:test:%s:%d", t.Name(), time.Now().UnixNano())
}

func dispatchMessage(t *testing.T) model.DispatchMessage {
	t.Helper()
	msg, err := model.NewDispatchMessage(testutil.NewJobRecord().Build())
	require.NoError(t, err)
	return msg
}

func TestPublisher_PublishesSignedEnvelope(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	stream := testStream(t)
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	p, err := NewPublisher(PublisherOptions{Client: client, Stream: stream, Secret: streamSecret})
	require.NoError(t, err)

	msg := dispatchMessage(t)
	require.NoError(t, p.Publish(context.Background(), msg))

	entries, err := client.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	body, ok := entries[0].Values["body"].(string)
	require.True(t, ok)

	payload, err := dispatch.Open([]byte(body), streamSecret)
	require.NoError(t, err)

	var got model.DispatchMessage
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, msg.JobID, got.JobID)
	assert.Equal(t, msg.OwnerID, got.OwnerID)
	assert.Equal(t, msg.Kind, got.Kind)
	assert.Equal(t, msg.Symbols, got.Symbols)

	_, err = dispatch.Open([]byte(body), []byte("wrong-secret"))
	require.Error(t, err)
}

func TestConsumer_AckRemovesPending(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	stream := testStream(t)
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	delivered := make(chan []byte, 1)
	c, err := NewConsumer(ConsumerOptions{
		Client: client,
		Handler: handlerFunc(func(_ context.Context, raw []byte) core.Disposition {
			delivered <- raw
			return core.Ack
		}),
		Stream:       stream,
		Group:        "workers",
		Consumer:     "test-consumer",
		BlockTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	p, err := NewPublisher(PublisherOptions{Client: client, Stream: stream, Secret: streamSecret})
	require.NoError(t, err)
	msg := dispatchMessage(t)
	require.NoError(t, p.Publish(context.Background(), msg))

	select {
	case raw := <-delivered:
		payload, err := dispatch.Open(raw, streamSecret)
		require.NoError(t, err)
		var got model.DispatchMessage
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, msg.JobID, got.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("delivery never arrived")
	}

	// The ack lands right after the handler returns; poll briefly.
	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), stream, "workers").Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestConsumer_NackLeavesEntryPending(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	stream := testStream(t)
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	delivered := make(chan struct{}, 1)
	c, err := NewConsumer(ConsumerOptions{
		Client: client,
		Handler: handlerFunc(func(context.Context, []byte) core.Disposition {
			select {
			case delivered <- struct{}{}:
			default:
			}
			return core.Nack
		}),
		Stream:       stream,
		Group:        "workers",
		Consumer:     "test-consumer",
		BlockTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	p, err := NewPublisher(PublisherOptions{Client: client, Stream: stream, Secret: streamSecret})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), dispatchMessage(t)))

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery never arrived")
	}

	pending, err := client.XPending(context.Background(), stream, "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(PublisherOptions{Secret: streamSecret})
	require.Error(t, err)
}

func TestNewConsumer_Validation(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	_, err := NewConsumer(ConsumerOptions{Client: client, Consumer: "c"})
	require.Error(t, err)

	handler := handlerFunc(func(context.Context, []byte) core.Disposition { return core.Ack })
	_, err = NewConsumer(ConsumerOptions{Client: client, Handler: handler})
	require.Error(t, err)

	c, err := NewConsumer(ConsumerOptions{Client: client, Handler: handler, Consumer: "c"})
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, c.stream)
	assert.Equal(t, DefaultGroup, c.group)
	assert.Equal(t, 1, c.workers)
}
