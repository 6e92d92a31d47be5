package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят, ожидает отгрузки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusDispatched — заказ передан в доставку.
	OrderStatusDispatched OrderStatus = "dispatched"
	// OrderStatusDelivered — заказ доставлен мерчанту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// rank задаёт порядок статусов доставки для проверки монотонности.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusDispatched:
		return 1
	case OrderStatusDelivered:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo разрешает только движение вперёд по цепочке
// pending → dispatched → delivered. Отмена идёт отдельным путём и
// доступна исключительно из pending.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if s == OrderStatusCancelled || next == OrderStatusCancelled {
		return false
	}
	return next.rank() > s.rank()
}

// OrderItem представляет одну позицию заказа. После прикрепления к заказу
// позиция не изменяется: цена зафиксирована на момент оформления.
type OrderItem struct {
	ProductID string
	Qty       int32
	// UnitPriceMinor — цена за единицу на момент заказа.
	UnitPriceMinor int64
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID         string
	MerchantID string
	Status     OrderStatus
	// TotalMinor — сумма заказа: Σ qty × unit_price.
	TotalMinor int64
	Items      []OrderItem
	OrderDate  time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemsTotalMinor пересчитывает сумму заказа по позициям.
func ItemsTotalMinor(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Qty) * item.UnitPriceMinor
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.MerchantID == "" {
		errs = append(errs, ErrMerchantIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrOrderTotalNegative)
	}

	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if ItemsTotalMinor(o.Items) != o.TotalMinor {
		errs = append(errs, ErrOrderTotalMismatch)
	}

	return errs
}
