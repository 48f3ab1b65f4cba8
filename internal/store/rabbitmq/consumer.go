package rabbitmq

import (
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/companion-api/internal/queue"
)

type deliveryTask struct {
	d amqp.Delivery
}

func (t deliveryTask) Payload() []byte { return t.d.Body }
func (t deliveryTask) Ack() error      { return t.d.Ack(false) }

// Nack without requeue; the main queue dead-letters to the DLQ.
func (t deliveryTask) Nack() error { return t.d.Nack(false, false) }

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	tasks chan queue.Task
}

// NewConsumer starts consuming with manual acks and a prefetch equal to the
// worker concurrency.
func NewConsumer(url, queueName string, prefetch int) (*Consumer, error) {
	conn, ch, err := open(url, queueName)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	c := &Consumer{conn: conn, ch: ch, tasks: make(chan queue.Task)}
	go func() {
		defer close(c.tasks)
		for d := range msgs {
			c.tasks <- deliveryTask{d: d}
		}
		slog.Info("delivery channel closed", "queue", queueName)
	}()
	return c, nil
}

func (c *Consumer) Tasks() <-chan queue.Task {
	return c.tasks
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
