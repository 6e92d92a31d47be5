package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer читает топики событий леджера. Сообщение, которое handler
// не смог обработать за maxRetries доставок, уходит в DLQ.
type Consumer struct {
	consumer    sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	maxRetries  int
}

// NewConsumer создаёт consumer без DLQ.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithDLQ(brokers, groupID, topics, handler, nil, 3)
}

// NewConsumerWithDLQ создаёт consumer с отправкой необработанных
// сообщений в Dead Letter Queue.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:    consumer,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		dlqProducer: dlqProducer,
		maxRetries:  maxRetries,
	}, nil
}

// Start запускает фоновые горутины потребления и чтения ошибок.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go c.consumeLoop(ctx)
	go c.errorLoop()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// consumeLoop перезапускает Consume после каждого rebalance,
// пока контекст не отменён.
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
			c.logger.WithError(err).Error("error from consumer")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) errorLoop() {
	defer c.wg.Done()
	for err := range c.consumer.Errors() {
		c.logger.WithError(err).Error("consumer error")
	}
}

// Stop останавливает consumer и дожидается рабочих горутин.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup вызывается при старте consumer session.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения одной partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			if c.processMessage(session, message) {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// processMessage возвращает true, если offset сообщения можно коммитить.
// Не маркированное сообщение либо уже в DLQ, либо будет перечитано.
func (c *Consumer) processMessage(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) bool {
	fields := log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	}
	c.logger.WithFields(fields).Debug("received message")

	if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
		c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
		return false
	}
	return true
}

// handleMessageWithRetry обрабатывает сообщение; после maxRetries
// неудачных доставок отправляет его в DLQ.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	err := c.handler(ctx, message)
	if err == nil {
		return nil
	}

	retryCount := c.getRetryCount(message)
	if retryCount < c.maxRetries {
		c.logger.WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": retryCount,
			"max_retries": c.maxRetries,
		}).Warn("message processing failed, will retry")
		return err
	}

	if c.dlqProducer == nil {
		return err
	}

	if dlqErr := c.sendToDLQ(message, err); dlqErr != nil {
		c.logger.WithError(dlqErr).Error("failed to send message to DLQ")
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(log.Fields{
		"topic":       message.Topic,
		"retry_count": retryCount,
	}).Info("message sent to DLQ after max retries")
	return nil
}

// getRetryCount извлекает retry count из headers сообщения.
func (c *Consumer) getRetryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// sendToDLQ кладёт необработанное сообщение в Dead Letter Queue.
// DLQ-сообщение несёт original_* поля, по которым его восстановит replay.
func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	return c.dlqProducer.PublishEvent(
		TopicDeadLetterQueue,
		string(message.Key),
		map[string]interface{}{
			"original_topic":     message.Topic,
			"original_partition": message.Partition,
			"original_offset":    message.Offset,
			"original_key":       string(message.Key),
			"original_value":     string(message.Value),
			"error_message":      processingErr.Error(),
			"failed_at":          time.Now().UTC().Format(time.RFC3339),
			"retry_count":        c.getRetryCount(message),
		},
	)
}
