package domain

import "time"

// IdempotencyStatus описывает состояние обработки запроса с idempotency-key.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят, результат ещё не известен.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — запрос выполнен, сохранённый ответ можно отдавать повторно.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyRecord связывает idempotency-key с хэшом запроса и
// сохранённым ответом. Повтор с тем же ключом и хэшом получает
// сохранённый ответ, повтор с другим хэшом отклоняется.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, истёк ли TTL записи к моменту now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	if r.TTLAt.IsZero() {
		return false
	}
	return !r.TTLAt.After(now)
}
