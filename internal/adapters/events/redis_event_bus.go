package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/domain/providers"
	redisclient "github.com/zatekoja/trialmatch/internal/infrastructure/clients/redis"
)

// subscriberBuffer is how many undelivered events a slow subscriber may hold.
// Catalog refreshes are rare, so a full buffer means the subscriber is stuck.
const subscriberBuffer = 16

// RedisEventBus implements the EventBus interface using Redis Pub/Sub. Each
// Subscribe call owns one Redis subscription.
type RedisEventBus struct {
	client *redisclient.Client

	mu     sync.Mutex
	subs   map[string][]*redis.PubSub
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		subs:   make(map[string][]*redis.PubSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.CatalogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	log.Debug().Str("channel", channel).Str("event_id", event.ID).Msg("published event")
	return nil
}

// Subscribe subscribes to events on a channel
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("event bus is closed")
	}

	pubsub := b.client.Client().Subscribe(b.ctx, channel)
	// Receive blocks until Redis confirms the subscription, so events
	// published right after Subscribe returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	b.subs[channel] = append(b.subs[channel], pubsub)

	out := make(chan *entities.CatalogEvent, subscriberBuffer)
	b.wg.Add(1)
	go b.forward(ctx, channel, pubsub, out)

	log.Info().Str("channel", channel).Msg("subscribed to channel")
	return out, nil
}

// forward decodes messages from one Redis subscription until ctx or the bus
// ends, then closes out.
func (b *RedisEventBus) forward(ctx context.Context, channel string, pubsub *redis.PubSub, out chan<- *entities.CatalogEvent) {
	defer b.wg.Done()
	defer close(out)
	defer b.drop(channel, pubsub)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event entities.CatalogEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
				continue
			}
			select {
			case out <- &event:
			default:
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber channel full, skipping event")
			}
		}
	}
}

func (b *RedisEventBus) drop(channel string, pubsub *redis.PubSub) {
	b.mu.Lock()
	subs := b.subs[channel]
	for i, s := range subs {
		if s == pubsub {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	b.mu.Unlock()

	if err := pubsub.Close(); err != nil {
		log.Debug().Err(err).Str("channel", channel).Msg("closing subscription")
	}
}

// Unsubscribe ends every subscription to channel held by this bus
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	subs := append([]*redis.PubSub(nil), b.subs[channel]...)
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Unsubscribe(ctx, channel); err != nil {
			errs = append(errs, err)
		}
		// Closing the pubsub closes its message channel, which ends forward.
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	log.Info().Msg("event bus closed")
	return nil
}
