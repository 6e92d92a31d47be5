package ledger

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// Типы доменных событий леджера, попадающих в transactional outbox.
const (
	EventOrderAccepted      = "OrderAccepted"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventInvoiceIssued      = "InvoiceIssued"
	EventPaymentRecorded    = "PaymentRecorded"
)

// emitOrderEvent кладёт событие заказа в outbox и дублирует его в timeline.
func (l *ledger) emitOrderEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID

	occurred := l.enqueueOutbox("order", order.ID, eventType, payload)

	if l.timeline == nil {
		return
	}
	var reason string
	if r, ok := payload["reason"].(string); ok {
		reason = r
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := l.timeline.Append(event); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if l.metrics != nil {
		l.metrics.RecordTimelineEvent()
	}
}

// emitMerchantEvent кладёт событие аккаунта мерчанта в outbox.
// Timeline ведётся только для заказов.
func (l *ledger) emitMerchantEvent(merchantID, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["merchant_id"] = merchantID
	l.enqueueOutbox("merchant", merchantID, eventType, payload)
}

// enqueueOutbox сериализует payload и сохраняет событие для публикации.
// Возвращает момент события из поля ts либо текущее время.
func (l *ledger) enqueueOutbox(aggregateType, aggregateID, eventType string, payload map[string]interface{}) time.Time {
	occurred := time.Now().UTC()
	if ts, ok := payload["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			occurred = parsed
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("marshal event failed")
		return occurred
	}

	if l.outbox == nil {
		return occurred
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := l.outbox.Enqueue(msg); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
	} else if l.metrics != nil {
		l.metrics.RecordOutboxEvent()
	}

	return occurred
}
