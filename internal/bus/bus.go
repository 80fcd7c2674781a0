// Package bus is the message-bus capability every actor coordinates through.
// The protocol core is written once against Bus; backends (Redis pub/sub,
// RabbitMQ topic exchange, in-process) are swappable adapters.
package bus

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("bus: subscription closed")

type Message struct {
	Topic string
	Body  []byte
}

// Subscription delivers messages published after Subscribe. There is no
// replay and no persistence; a slow consumer simply misses messages.
type Subscription interface {
	// Poll waits up to timeout for one message. It returns (nil, nil) when
	// the timeout elapses with nothing to deliver, and ctx.Err() when the
	// context is canceled.
	Poll(ctx context.Context, timeout time.Duration) (*Message, error)
	Close() error
}

type Bus interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// Shared topics plus per-order topics derived from the order id, so every
// actor can compute them without a directory lookup. Dots keep the names
// valid both as Redis channels and AMQP routing keys.
const (
	TopicOrders = "orders"
	TopicOffers = "offers"
)

func CandidatesTopic(orderID string) string  { return "candidates." + orderID }
func AssignmentsTopic(orderID string) string { return "assignments." + orderID }
func TrackingTopic(orderID string) string    { return "tracking." + orderID }
