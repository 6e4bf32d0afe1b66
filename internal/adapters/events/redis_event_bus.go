package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	redisclient "github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/redis"
)

// subscriberBuffer bounds how many events a slow subscriber may lag behind.
// When the buffer is full new events are dropped; the queued ones still arrive.
const subscriberBuffer = 64

var errBusClosed = errors.New("event bus is closed")

// subscription is one Redis SUBSCRIBE feeding one local channel
type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// RedisEventBus carries cache events between replicas over Redis Pub/Sub.
// Every Subscribe call opens its own Redis subscription.
type RedisEventBus struct {
	client *redisclient.Client

	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	return &RedisEventBus{
		client: client,
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

// Publish sends event to every subscriber of channel, in any process
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.CacheEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int64("receivers", receivers).
		Msg("Published cache event")
	return nil
}

// Subscribe returns a channel of events published on channel. The channel is
// closed when ctx is done or the subscription is dropped.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CacheEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errBusClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		pubsub: b.client.Client().Subscribe(subCtx, channel),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*subscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}

	out := make(chan *entities.CacheEvent, subscriberBuffer)
	go b.deliver(subCtx, channel, sub, out)

	log.Info().Str("channel", channel).Int("subscriptions", len(b.subs[channel])).Msg("Subscribed to event channel")
	return out, nil
}

func (b *RedisEventBus) deliver(ctx context.Context, channel string, sub *subscription, out chan<- *entities.CacheEvent) {
	defer close(sub.done)
	defer close(out)
	defer b.forget(channel, sub)
	defer func() {
		if err := sub.pubsub.Close(); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("Closing subscription")
		}
	}()

	messages := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event := &entities.CacheEvent{}
			if err := json.Unmarshal([]byte(msg.Payload), event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Dropping undecodable event")
				continue
			}
			select {
			case out <- event:
			default:
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber is behind, dropping event")
			}
		}
	}
}

func (b *RedisEventBus) forget(channel string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[channel], sub)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
}

// take removes and returns the subscriptions of the given channels
func (b *RedisEventBus) take(channels ...string) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(channels) == 0 {
		for channel := range b.subs {
			channels = append(channels, channel)
		}
	}
	var taken []*subscription
	for _, channel := range channels {
		for sub := range b.subs[channel] {
			taken = append(taken, sub)
		}
		delete(b.subs, channel)
	}
	return taken
}

func stop(subs []*subscription) {
	for _, sub := range subs {
		sub.cancel()
	}
	for _, sub := range subs {
		<-sub.done
	}
}

// Unsubscribe drops every local subscription to channel and closes their
// event channels
func (b *RedisEventBus) Unsubscribe(_ context.Context, channel string) error {
	subs := b.take(channel)
	stop(subs)
	log.Info().Str("channel", channel).Int("subscriptions", len(subs)).Msg("Unsubscribed from event channel")
	return nil
}

// Close drops every subscription. The bus cannot be reused afterwards.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	stop(b.take())
	log.Info().Msg("Event bus closed")
	return nil
}
