package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора мерчанта.
	ErrMerchantIDRequired = errors.New("merchant_id is required")
	// Ошибка отсутствующего названия мерчанта.
	ErrMerchantNameRequired = errors.New("merchant name is required")
	// Ошибка отсутствующего адреса мерчанта.
	ErrMerchantAddressRequired = errors.New("merchant address is required")
	// Ошибка отрицательного кредитного лимита.
	ErrCreditLimitNegative = errors.New("credit limit must be non-negative")
	// Ошибка неподдерживаемого статуса мерчанта.
	ErrMerchantStatusInvalid = errors.New("merchant status is invalid")
	// Ошибка запрещённого перехода статуса аккаунта.
	ErrStatusTransitionNotAllowed = errors.New("merchant status transition is not allowed")

	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// Ошибка отрицательного складского остатка.
	ErrStockNegative = errors.New("stock level must be non-negative")
	// Ошибка отрицательного минимального остатка.
	ErrMinimumStockNegative = errors.New("minimum stock level must be non-negative")
	// Ошибка неположительного пополнения склада.
	ErrStockAdjustmentInvalid = errors.New("stock adjustment must be greater than zero")

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка позиции без товара.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка отрицательной суммы заказа.
	ErrOrderTotalNegative = errors.New("order total must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrOrderTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего идентификатора заказа в счетах/платежах.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка некорректной суммы платежа (<= 0).
	ErrPaymentAmountInvalid = errors.New("payment amount must be greater than zero")
	// Ошибка срока оплаты раньше даты выставления счёта.
	ErrInvoiceDueBeforeIssue = errors.New("invoice due date is before issue date")
	// Ошибка события хронологии без идентификатора заказа.
	ErrTimelineOrderIDRequired = errors.New("timeline event order_id is required")
	// Ошибка события хронологии без типа.
	ErrTimelineTypeRequired = errors.New("timeline event type is required")

	// ErrMerchantNotFound возвращается, если мерчант не найден в справочнике.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в леджере.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvoiceNotFound возвращается, если счёт не найден.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrMerchantExists сигнализирует о повторной регистрации мерчанта.
	ErrMerchantExists = errors.New("merchant already exists")
	// ErrProductExists сигнализирует о дубликате товара в каталоге.
	ErrProductExists = errors.New("product already exists")
	// ErrOrderExists сигнализирует о коллизии идентификатора заказа.
	ErrOrderExists = errors.New("order already exists")
	// ErrInvoiceExists возвращается при попытке создать второй счёт по заказу.
	ErrInvoiceExists = errors.New("invoice already exists for order")

	// ErrVersionConflict сигнализирует о конфликте версий при optimistic-сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки обработки idempotency-ключей HTTP-адаптера.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// AccountNotActiveError возвращается при попытке оформить заказ
// на неактивный аккаунт мерчанта.
type AccountNotActiveError struct {
	MerchantID string
	Status     MerchantStatus
}

func (e *AccountNotActiveError) Error() string {
	return fmt.Sprintf("merchant account %s is not active: status %s", e.MerchantID, e.Status)
}

// CreditLimitExceededError возвращается, когда заказ превысил бы кредитный лимит.
type CreditLimitExceededError struct {
	MerchantID       string
	BalanceMinor     int64
	OrderTotalMinor  int64
	CreditLimitMinor int64
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf(
		"order would exceed credit limit for merchant %s: balance %d, order total %d, limit %d",
		e.MerchantID, e.BalanceMinor, e.OrderTotalMinor, e.CreditLimitMinor,
	)
}

// IsAccountNotActive проверяет, является ли ошибка отказом по статусу аккаунта.
func IsAccountNotActive(err error) bool {
	var target *AccountNotActiveError
	return errors.As(err, &target)
}

// IsCreditLimitExceeded проверяет, является ли ошибка отказом по кредитному лимиту.
func IsCreditLimitExceeded(err error) bool {
	var target *CreditLimitExceededError
	return errors.As(err, &target)
}

// IsNotFound проверяет, относится ли ошибка к семейству "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMerchantNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
