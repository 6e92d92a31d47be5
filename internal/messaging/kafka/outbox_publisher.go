package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, разводя их
// по топикам в зависимости от агрегата: события заказов идут в
// orderTopic, события аккаунтов мерчантов (счета, платежи) — в billingTopic.
type OutboxTopicPublisher struct {
	producer     *Producer
	orderTopic   string
	billingTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, orderTopic, billingTopic string) domain.OutboxPublisher {
	if orderTopic == "" {
		orderTopic = TopicOrderEvents
	}
	if billingTopic == "" {
		billingTopic = TopicBillingEvents
	}
	return &OutboxTopicPublisher{
		producer:     producer,
		orderTopic:   orderTopic,
		billingTopic: billingTopic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	topic := p.orderTopic
	if event.AggregateType == "merchant" {
		topic = p.billingTopic
	}

	envelope := LedgerEvent{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(topic, key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
