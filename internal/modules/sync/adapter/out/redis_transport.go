package out

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	syncout "focuskit/internal/modules/sync/port/out"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisTransport fans envelopes out over a Redis pub/sub channel.
type RedisTransport struct {
	client     *redis.Client
	channel    string
	ownsClient bool

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisTransport(opts RedisOptions, channel string) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	t := NewRedisTransportWithClient(client, channel)
	t.ownsClient = true
	return t, nil
}

func NewRedisTransportWithClient(client *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{client: client, channel: channel}
}

func (t *RedisTransport) Publish(ctx context.Context, payload []byte) error {
	if err := t.client.Publish(ctx, t.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (t *RedisTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	pubsub := t.client.Subscribe(ctx, t.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe %s: %w", t.channel, err)
	}
	t.mu.Lock()
	t.pubsub = pubsub
	t.mu.Unlock()

	messages := pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	pubsub := t.pubsub
	t.pubsub = nil
	t.mu.Unlock()
	if pubsub != nil {
		_ = pubsub.Close()
	}
	if t.ownsClient {
		return t.client.Close()
	}
	return nil
}

var _ syncout.Transport = (*RedisTransport)(nil)
