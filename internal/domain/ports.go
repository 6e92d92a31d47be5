package domain

import "time"

// OutboxMessage описывает событие леджера, ожидающее публикации в брокер.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats снимает состояние очереди неопубликованных событий.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher отправляет событие во внешний брокер.
type OutboxPublisher interface {
	// Publish должен быть безопасен к повторной доставке одного события.
	Publish(event OutboxMessage) error
}

// OutboxRepository хранит события до момента их публикации.
type OutboxRepository interface {
	// Enqueue ставит событие в очередь и возвращает запись с присвоенным ID.
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	// PullPending возвращает до limit pending-событий в порядке постановки.
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository ведёт append-only историю событий заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	// List возвращает события заказа в хронологическом порядке.
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит результат обработки запроса по idempotency-key,
// чтобы повтор с тем же ключом получил сохранённый ответ.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
