package bus

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts Redis pub/sub channels to the Bus capability.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

func (r *Redis) Publish(ctx context.Context, topic string, body []byte) error {
	return r.client.Publish(ctx, topic, body).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, topic)
	// Wait for the broker to confirm the subscription so nothing published
	// right after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &redisSub{topic: topic, ps: ps, ch: ps.Channel()}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

type redisSub struct {
	topic string
	ps    *redis.PubSub
	ch    <-chan *redis.Message
}

func (s *redisSub) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return &Message{Topic: s.topic, Body: []byte(m.Payload)}, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *redisSub) Close() error { return s.ps.Close() }
