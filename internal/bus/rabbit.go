package bus

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"courier-dispatch/internal/connections/rabbitmq"
)

const rabbitExchange = "dispatch.topic"

// Rabbit adapts a RabbitMQ topic exchange to the Bus capability. Each
// subscription gets its own exclusive auto-delete queue bound with the topic
// as routing key, which mirrors pub/sub fan-out: every subscriber sees every
// message, nothing is retained once the subscriber goes away.
type Rabbit struct {
	client *rabbitmq.Client
}

func NewRabbit(client *rabbitmq.Client) (*Rabbit, error) {
	if err := client.ExchangeDeclare(rabbitExchange); err != nil {
		return nil, err
	}
	return &Rabbit{client: client}, nil
}

func (r *Rabbit) Publish(ctx context.Context, topic string, body []byte) error {
	return r.client.Publish(ctx, rabbitExchange, topic, body)
}

func (r *Rabbit) Subscribe(_ context.Context, topic string) (Subscription, error) {
	ch, err := r.client.NewChannel()
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, topic, rabbitExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &rabbitSub{topic: topic, ch: ch, deliveries: deliveries}, nil
}

func (r *Rabbit) Close() error {
	r.client.Close()
	return nil
}

type rabbitSub struct {
	topic      string
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

func (s *rabbitSub) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case d, ok := <-s.deliveries:
		if !ok {
			return nil, ErrClosed
		}
		return &Message{Topic: s.topic, Body: d.Body}, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *rabbitSub) Close() error { return s.ch.Close() }
