package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"unification-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Пакет сам решает, как делать ack/nack/retry.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer - общий контракт потребителей пакета
type Consumer interface {
	StartConsuming(ctx context.Context) error
	Close() error
}

// SequentialConsumer обрабатывает сообщения строго по одному, в горутине чтения.
// Следующее сообщение не берется, пока обработчик не вернул результат.
type SequentialConsumer struct {
	base    *baseConsumer
	handler MessageHandler
}

var _ Consumer = (*SequentialConsumer)(nil)

// NewSequentialConsumer создает потребителя с последовательной обработкой
func NewSequentialConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*SequentialConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("sequential Consumer: message handler is required")
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("sequential Consumer: %w", err)
	}

	return &SequentialConsumer{base: bc, handler: handler}, nil
}

// StartConsuming блокируется до отмены контекста или закрытия соединения
func (c *SequentialConsumer) StartConsuming(ctx context.Context) error {
	if c.base.channel == nil || c.base.connection == nil || c.base.connection.IsClosed() {
		return fmt.Errorf("sequential Consumer: not connected")
	}

	msgs, err := c.base.channel.Consume(
		c.base.actualQueueName,
		c.base.config.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("sequential Consumer %s: failed to register a consumer on queue '%s': %w", c.base.config.ConsumerTag, c.base.actualQueueName, err)
	}

	notifyClose := c.base.connection.NotifyClose(make(chan *amqp.Error, 1))

	c.base.Logger.Info("[*] Waiting for messages on queue", "queue_name", c.base.actualQueueName)

	for {
		select {
		case <-ctx.Done():
			c.base.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", c.base.config.ConsumerTag)
			return nil

		case amqpErr := <-notifyClose:
			if amqpErr == nil {
				return fmt.Errorf("sequential Consumer %s: connection closed", c.base.config.ConsumerTag)
			}
			c.base.Logger.Error(amqpErr, "Connection closed for consumer.", "consumer_tag", c.base.config.ConsumerTag)
			return amqpErr

		case d, ok := <-msgs:
			if !ok {
				c.base.Logger.Info("Deliveries channel closed by RabbitMQ. Exiting loop.", "consumer_tag", c.base.config.ConsumerTag)
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *SequentialConsumer) handle(ctx context.Context, d amqp.Delivery) {
	tag := c.base.config.ConsumerTag

	processErr := c.handler(ctx, d)
	if processErr == nil {
		_ = d.Ack(false)
		c.base.Logger.Debug("[+] Message Ack'd", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)
		return
	}

	c.base.Logger.Error(processErr, "Handler error for message", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)

	if !c.base.config.EnableRetryMechanism {
		_ = d.Nack(false, false)
		return
	}

	deathCount := getDeathCount(d, c.base.actualQueueName)
	if deathCount < int64(c.base.config.MaxRetries) {
		c.base.Logger.Info("Retrying message", "consumer_tag", tag, "delivery_tag", d.DeliveryTag, "death_count", deathCount)
		_ = d.Nack(false, false)
		return
	}

	c.base.Logger.Warn("Max retries reached for message. Publishing to final DLX.", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)

	publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.base.finalDlxPublisher.Publish(publishCtx, c.base.config.FinalDLQRoutingKey, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      d.Headers,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		c.base.Logger.Error(err, "Failed to publish to final DLX. Nacking to trigger retry loop again.", "consumer_tag", tag)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close закрывает потребителя
func (c *SequentialConsumer) Close() error {
	c.base.Logger.Info("Closing consumer")
	return c.base.Close()
}
