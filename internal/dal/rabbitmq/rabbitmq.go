package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

const defaultConfirmTimeout = 5 * time.Second

var (
	// ErrNacked is returned when the broker refuses a published message.
	ErrNacked = errors.New("message nacked by broker")
	// ErrConfirmTimeout is returned when the broker does not confirm a publish in time.
	ErrConfirmTimeout = errors.New("publish confirmation timed out")
)

const confirmBuffer = 16

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Close() error
}

// Client publishes on a single channel in confirm mode.
// published counts the messages sent on the channel, which is the delivery
// tag the broker confirms them with.
type Client struct {
	conn           *amqp.Connection
	channel        channel
	confirms       chan amqp.Confirmation
	confirmTimeout time.Duration
	published      uint64
	mu             sync.Mutex
}

// Topology names where fulfillment events go.
// An empty Exchange publishes through the default exchange straight to Queue.
type Topology struct {
	Exchange   string
	Queue      string
	BindingKey string
}

// MustNewClient connects using the rabbitmq.* settings and enables publisher confirms.
func MustNewClient() *Client {
	port := viper.GetInt("rabbitmq.port")
	if port == 0 {
		port = 5672
	}
	host := viper.GetString("rabbitmq.host")
	if host == "" {
		host = "rabbitmq"
	}

	conn, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%d/",
		viper.GetString("rabbitmq.user"),
		viper.GetString("rabbitmq.password"),
		host,
		port,
	))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	ch, err := conn.Channel()
	if err == nil {
		err = ch.Confirm(false)
	}
	if err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to open a confirm channel: %v", err))
	}

	timeout := time.Duration(viper.GetInt("rabbitmq.confirm_timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}

	slog.Info("RabbitMQ connected", "host", host, "port", port)

	return &Client{
		conn:           conn,
		channel:        ch,
		confirms:       ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer)),
		confirmTimeout: timeout,
	}
}

// Declare creates the durable queue and, when an exchange is named, a durable
// topic exchange bound to it.
func (r *Client) Declare(t Topology) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.channel.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.Queue, err)
	}
	if t.Exchange == "" {
		return nil
	}

	if err := r.channel.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", t.Exchange, err)
	}
	if err := r.channel.QueueBind(t.Queue, t.BindingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", t.Queue, t.Exchange, err)
	}

	return nil
}

// Publish sends p and waits for the broker to confirm it. Confirms of earlier
// publishes that timed out are discarded.
func (r *Client) Publish(exchange, routingKey string, p amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.Publish(exchange, routingKey, false, false, p); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	r.published++
	tag := r.published

	timeout := time.NewTimer(r.confirmTimeout)
	defer timeout.Stop()

	for {
		select {
		case c, ok := <-r.confirms:
			if !ok {
				return amqp.ErrClosed
			}
			if c.DeliveryTag < tag {
				slog.Warn("Discarding late publish confirmation", "delivery_tag", c.DeliveryTag, "awaiting", tag)

				continue
			}
			if c.DeliveryTag > tag {
				return fmt.Errorf("unexpected confirmation %d while awaiting %d", c.DeliveryTag, tag)
			}
			if !c.Ack {
				return ErrNacked
			}

			return nil
		case <-timeout.C:
			return ErrConfirmTimeout
		}
	}
}

// Close closes the channel and connection.
func (r *Client) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}

	return r.conn.Close()
}
