package realtime

import (
	"context"
	"encoding/json"

	"fitchallenge/utils"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker shares events between API instances through Redis pub/sub
type RedisBroker struct {
	client *redis.Client
	buffer int
	prefix string
}

// NewRedisBroker wraps client. Channel names are prefixed so several
// deployments can share one Redis.
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{client: client, buffer: DefaultBufferSize, prefix: prefix}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + topic
}

// Publish sends ev as JSON on the topic's channel
func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription, so events published
// after it returns are not missed
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "subscribe to %s", topic)
	}

	out := make(chan Event, b.buffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					utils.Logger.Warn("discarding malformed event",
						zap.String("topic", topic), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					utils.Logger.Warn("subscriber buffer full, dropping event",
						zap.String("topic", topic), zap.String("type", ev.Type))
				}
			}
		}
	}()

	return newSubscription(topic, out, func() {
		close(done)
		_ = pubsub.Close()
	}), nil
}

// Close closes the underlying client
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
