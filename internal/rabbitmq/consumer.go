package rabbitmq

import (
	"context"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer delivers messages from a queue bound to the service exchange.
type Consumer interface {
	Consume(ctx context.Context, handler func(routingKey string, body []byte)) error
	Close() error
}

// NewConsumer binds queue to exchange on the given routing keys and returns a
// consumer, or a noop consumer when AMQP is disabled.
func NewConsumer(amqpURL, exchange, queue string, routingKeys ...string) Consumer {
	if amqpURL == "" {
		log.Printf("rabbitmq consumer disabled, using noop: empty amqp url")
		return noopConsumer{}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("rabbitmq consumer disabled, using noop: %v", err)
		return noopConsumer{}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq consumer disabled, using noop: %v", err)
		_ = conn.Close()
		return noopConsumer{}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq consumer disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopConsumer{}
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		log.Printf("rabbitmq consumer disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopConsumer{}
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			log.Printf("rabbitmq consumer disabled, using noop: %v", err)
			_ = ch.Close()
			_ = conn.Close()
			return noopConsumer{}
		}
	}

	log.Printf("rabbitmq consumer connected exchange=%s queue=%s", exchange, q.Name)
	return &amqpConsumer{conn: conn, ch: ch, queue: q.Name}
}

type amqpConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func (c *amqpConsumer) Consume(ctx context.Context, handler func(routingKey string, body []byte)) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			handler(d.RoutingKey, d.Body)
			if err := d.Ack(false); err != nil {
				log.Printf("rabbitmq ack failed: %v", err)
			}
		}
	}
}

func (c *amqpConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type noopConsumer struct{}

func (noopConsumer) Consume(ctx context.Context, handler func(string, []byte)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (noopConsumer) Close() error {
	return nil
}
