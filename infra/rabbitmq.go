package infra

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-plugin-installer/config"
)

// RabbitMQClient holds the process-wide broker connection. There is no
// reconnect: a closed connection ends the worker and a restart recovers it.
type RabbitMQClient struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func InitRabbitMQClient(cfg *config.EnvConfig) (*RabbitMQClient, error) {
	client, err := NewRabbitMQClient(cfg.RabbitMQURL())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to RabbitMQ:", cfg.RabbitMQ.Host+":"+cfg.RabbitMQ.Port)
	return client, nil
}

func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	// One unacknowledged delivery per consumer at a time
	if err := channel.Qos(1, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set RabbitMQ prefetch: %w", err)
	}

	return &RabbitMQClient{Connection: conn, Channel: channel}, nil
}

// EnsureQueue declares a durable queue; declaring an existing queue is a no-op.
func (r *RabbitMQClient) EnsureQueue(name string) error {
	_, err := r.Channel.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Consume registers a manual-ack consumer on queue.
func (r *RabbitMQClient) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	msgs, err := r.Channel.Consume(
		queue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}
	return msgs, nil
}

// CancelConsumer stops deliveries to consumerTag without closing the channel.
func (r *RabbitMQClient) CancelConsumer(consumerTag string) error {
	return r.Channel.Cancel(consumerTag, false)
}

// Publish sends msg to queue through the default exchange without waiting
// for a confirmation.
func (r *RabbitMQClient) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	return r.Channel.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQClient) NotifyClose() <-chan *amqp.Error {
	return r.Connection.NotifyClose(make(chan *amqp.Error, 1))
}

func (r *RabbitMQClient) IsClosed() bool {
	return r.Connection == nil || r.Connection.IsClosed()
}

func (r *RabbitMQClient) Close() error {
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Connection != nil && !r.Connection.IsClosed() {
		return r.Connection.Close()
	}
	return nil
}
