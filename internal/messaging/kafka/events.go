package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Topics для Kafka
const (
	// TopicOrderEvents — события жизненного цикла заказов.
	TopicOrderEvents = "infopharma.order.events"
	// TopicBillingEvents — события биллинга: счета и платежи.
	TopicBillingEvents = "infopharma.billing.events"
	// TopicDeadLetterQueue — очередь сообщений, не обработанных после retry.
	TopicDeadLetterQueue = "infopharma.dlq"
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// LedgerEvent — конверт события леджера, уходящего во внешние топики.
type LedgerEvent struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ParseLedgerEvent парсит LedgerEvent из Kafka-сообщения.
func ParseLedgerEvent(message *sarama.ConsumerMessage) (*LedgerEvent, error) {
	var event LedgerEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger event: %w", err)
	}
	return &event, nil
}
