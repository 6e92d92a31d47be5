package ledger

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/keylock"
	"github.com/vladislavdragonenkov/infopharma/internal/metrics"
)

// Начальные значения счётчиков идентификаторов: первый заказ получает
// номер ORD1001, первый счёт — INV5001.
const (
	orderSeqStart   = 1000
	invoiceSeqStart = 5000
)

// Ledger описывает интерфейс order-to-cash леджера.
type Ledger interface {
	// CreateOrder проводит заказ через кредитные проверки и фиксирует его.
	CreateOrder(draft domain.Order) (domain.Order, error)
	// CancelOrder отменяет pending-заказ с возвратом остатков и долга.
	CancelOrder(orderID string) bool
	// AdvanceOrderStatus продвигает заказ по цепочке доставки.
	AdvanceOrderStatus(orderID string, next domain.OrderStatus) bool
	// RaiseInvoice идемпотентно выставляет счёт по заказу.
	RaiseInvoice(orderID string) (domain.Invoice, error)
	// RecordPayment применяет платёж к балансу мерчанта.
	RecordPayment(merchantID string, amountMinor int64) bool

	// GetOrder возвращает заказ по идентификатору.
	GetOrder(orderID string) (domain.Order, error)
	// ListOrdersForMerchant возвращает заказы мерчанта, новые первыми.
	ListOrdersForMerchant(merchantID string, limit int) ([]domain.Order, error)
	// OrderTotalMinor возвращает сумму заказа; 0, если заказ не найден.
	OrderTotalMinor(orderID string) int64
	// GetInvoice возвращает счёт по идентификатору.
	GetInvoice(invoiceID string) (domain.Invoice, error)
	// GetInvoiceForOrder возвращает счёт, выставленный по заказу.
	GetInvoiceForOrder(orderID string) (domain.Invoice, error)
	// ListInvoicesForMerchant возвращает счета мерчанта.
	ListInvoicesForMerchant(merchantID string) ([]domain.Invoice, error)
	// ListPaymentsForMerchant возвращает историю платежей мерчанта.
	ListPaymentsForMerchant(merchantID string) ([]domain.Payment, error)
	// OrderTimeline возвращает хронологию событий заказа.
	OrderTimeline(orderID string) ([]domain.TimelineEvent, error)

	// SeedCounters поднимает счётчики идентификаторов при старте
	// с постоянным хранилищем.
	SeedCounters(lastOrderSeq, lastInvoiceSeq int64)
}

// ledger реализует проведение заказа: существование аккаунта → активность →
// кредитный лимит → мутация склада и баланса. Операции по одному мерчанту
// сериализуются ключевым мьютексом, поэтому проверка лимита и запись
// баланса видят один снимок.
type ledger struct {
	merchants domain.MerchantRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	invoices  domain.InvoiceRepository
	payments  domain.PaymentRepository
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository

	accounts *keylock.KeyedMutex
	logger   *log.Entry
	metrics  *metrics.LedgerMetrics

	orderSeq   atomic.Int64
	invoiceSeq atomic.Int64
}

// New создаёт рабочий экземпляр леджера.
func New(
	merchants domain.MerchantRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	invoices domain.InvoiceRepository,
	payments domain.PaymentRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	accounts *keylock.KeyedMutex,
	logger *log.Entry,
) Ledger {
	l := newLedger(merchants, products, orders, invoices, payments, outbox, timeline, accounts, logger)
	l.metrics = metrics.NewLedgerMetrics()
	return l
}

// NewWithoutMetrics создаёт леджер без метрик (для тестов).
func NewWithoutMetrics(
	merchants domain.MerchantRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	invoices domain.InvoiceRepository,
	payments domain.PaymentRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	accounts *keylock.KeyedMutex,
	logger *log.Entry,
) Ledger {
	return newLedger(merchants, products, orders, invoices, payments, outbox, timeline, accounts, logger)
}

func newLedger(
	merchants domain.MerchantRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	invoices domain.InvoiceRepository,
	payments domain.PaymentRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	accounts *keylock.KeyedMutex,
	logger *log.Entry,
) *ledger {
	if logger == nil {
		logger = log.New().WithField("component", "ledger")
	}
	if accounts == nil {
		accounts = keylock.New()
	}
	l := &ledger{
		merchants: merchants,
		products:  products,
		orders:    orders,
		invoices:  invoices,
		payments:  payments,
		outbox:    outbox,
		timeline:  timeline,
		accounts:  accounts,
		logger:    logger,
	}
	l.orderSeq.Store(orderSeqStart)
	l.invoiceSeq.Store(invoiceSeqStart)
	return l
}

// SeedCounters поднимает счётчики идентификаторов до переданных значений.
// Используется при старте с постоянным хранилищем, чтобы не выдавать
// уже занятые номера.
func (l *ledger) SeedCounters(lastOrderSeq, lastInvoiceSeq int64) {
	if lastOrderSeq > l.orderSeq.Load() {
		l.orderSeq.Store(lastOrderSeq)
	}
	if lastInvoiceSeq > l.invoiceSeq.Load() {
		l.invoiceSeq.Store(lastInvoiceSeq)
	}
}

func (l *ledger) nextOrderID() string {
	return fmt.Sprintf("ORD%d", l.orderSeq.Add(1))
}

func (l *ledger) nextInvoiceID() string {
	return fmt.Sprintf("INV%d", l.invoiceSeq.Add(1))
}

// CreateOrder выполняет проверки строго в порядке: существование мерчанта,
// активность аккаунта, кредитный лимит. Отказ на любом шаге не оставляет
// следов ни на складе, ни на балансе.
func (l *ledger) CreateOrder(draft domain.Order) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordOpDuration("create_order", time.Since(start))
		}
	}()

	if err := validateDraft(&draft); err != nil {
		if l.metrics != nil {
			l.metrics.RecordOrderRejected(metrics.RejectReasonInvalid)
		}
		return domain.Order{}, err
	}

	unlock := l.accounts.Lock(draft.MerchantID)
	defer unlock()

	merchant, err := l.merchants.Get(draft.MerchantID)
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordOrderRejected(metrics.RejectReasonNotFound)
		}
		return domain.Order{}, err
	}

	if merchant.Status != domain.MerchantStatusActive {
		if l.metrics != nil {
			l.metrics.RecordOrderRejected(metrics.RejectReasonNotActive)
		}
		return domain.Order{}, &domain.AccountNotActiveError{
			MerchantID: merchant.ID,
			Status:     merchant.Status,
		}
	}

	total := domain.ItemsTotalMinor(draft.Items)
	if merchant.BalanceMinor+total > merchant.CreditLimitMinor {
		if l.metrics != nil {
			l.metrics.RecordOrderRejected(metrics.RejectReasonCreditLimit)
		}
		return domain.Order{}, &domain.CreditLimitExceededError{
			MerchantID:       merchant.ID,
			BalanceMinor:     merchant.BalanceMinor,
			OrderTotalMinor:  total,
			CreditLimitMinor: merchant.CreditLimitMinor,
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:         l.nextOrderID(),
		MerchantID: merchant.ID,
		Status:     domain.OrderStatusPending,
		TotalMinor: total,
		Items:      append([]domain.OrderItem(nil), draft.Items...),
		OrderDate:  draft.OrderDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}

	// Баланс увеличиваем первым: при отказе хранилища заказ ещё не создан
	// и компенсация не нужна.
	merchant.BalanceMinor += total
	merchant.UpdatedAt = now
	if err := l.merchants.Save(merchant); err != nil {
		l.logger.WithError(err).WithField("merchant_id", merchant.ID).Error("failed to apply order to balance")
		return domain.Order{}, err
	}

	if err := l.orders.Create(order); err != nil {
		l.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		l.rollbackBalance(merchant.ID, total)
		return domain.Order{}, err
	}

	// Списываем склад с полом в ноль. Отсутствующий в каталоге товар
	// списание не блокирует: заказ уже принят.
	for _, item := range order.Items {
		if _, err := l.products.AdjustStock(item.ProductID, -item.Qty); err != nil {
			if !errors.Is(err, domain.ErrProductNotFound) {
				l.logger.WithError(err).WithFields(log.Fields{
					"order_id":   order.ID,
					"product_id": item.ProductID,
				}).Warn("stock adjustment failed")
				continue
			}
			l.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("ordered product missing from catalog, stock not adjusted")
		}
	}

	l.emitOrderEvent(&order, EventOrderAccepted, map[string]interface{}{
		"merchant_id": order.MerchantID,
		"total_minor": order.TotalMinor,
		"items_count": len(order.Items),
		"ts":          now.Format(time.RFC3339Nano),
	})

	if l.metrics != nil {
		l.metrics.RecordOrderAccepted()
	}
	l.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"merchant_id": order.MerchantID,
		"total_minor": order.TotalMinor,
	}).Info("order accepted")

	return order, nil
}

// rollbackBalance снимает с баланса сумму неудавшегося заказа.
// Вызывается под мьютексом аккаунта.
func (l *ledger) rollbackBalance(merchantID string, totalMinor int64) {
	merchant, err := l.merchants.Get(merchantID)
	if err != nil {
		l.logger.WithError(err).WithField("merchant_id", merchantID).Error("balance rollback failed: merchant lookup")
		return
	}
	merchant.BalanceMinor -= totalMinor
	merchant.UpdatedAt = time.Now().UTC()
	if err := l.merchants.Save(merchant); err != nil {
		l.logger.WithError(err).WithField("merchant_id", merchantID).Error("balance rollback failed: save")
	}
}

// CancelOrder отменяет заказ, если тот ещё в pending: возвращает позиции
// на склад, уменьшает долг мерчанта и переводит заказ в cancelled.
// Любой другой статус или неизвестный заказ дают false.
func (l *ledger) CancelOrder(orderID string) bool {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordOpDuration("cancel_order", time.Since(start))
		}
	}()

	order, err := l.orders.Get(orderID)
	if err != nil {
		l.logger.WithError(err).WithField("order_id", orderID).Debug("cancel skipped: order not found")
		return false
	}

	unlock := l.accounts.Lock(order.MerchantID)
	defer unlock()

	// Перечитываем под мьютексом: статус мог поменяться.
	order, err = l.orders.Get(orderID)
	if err != nil {
		return false
	}
	if order.Status != domain.OrderStatusPending {
		l.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"status":   order.Status,
		}).Debug("cancel skipped: order is not pending")
		return false
	}

	now := time.Now().UTC()
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	if err := l.orders.Save(order); err != nil {
		l.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist cancellation")
		return false
	}

	for _, item := range order.Items {
		if _, err := l.products.AdjustStock(item.ProductID, item.Qty); err != nil && !errors.Is(err, domain.ErrProductNotFound) {
			l.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("restock failed")
		}
	}

	if merchant, err := l.merchants.Get(order.MerchantID); err == nil {
		merchant.BalanceMinor -= order.TotalMinor
		merchant.UpdatedAt = now
		if err := l.merchants.Save(merchant); err != nil {
			l.logger.WithError(err).WithField("merchant_id", merchant.ID).Error("failed to release cancelled order from balance")
		}
	} else {
		l.logger.WithError(err).WithField("merchant_id", order.MerchantID).Warn("cancel without balance release: merchant not found")
	}

	l.emitOrderEvent(&order, EventOrderCancelled, map[string]interface{}{
		"merchant_id": order.MerchantID,
		"total_minor": order.TotalMinor,
		"ts":          now.Format(time.RFC3339Nano),
	})

	if l.metrics != nil {
		l.metrics.RecordOrderCancelled()
	}
	l.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"merchant_id": order.MerchantID,
	}).Info("order cancelled")

	return true
}

// AdvanceOrderStatus двигает заказ вперёд по цепочке
// pending → dispatched → delivered. Возврат назад и работа с
// отменёнными заказами запрещены.
func (l *ledger) AdvanceOrderStatus(orderID string, next domain.OrderStatus) bool {
	order, err := l.orders.Get(orderID)
	if err != nil {
		l.logger.WithError(err).WithField("order_id", orderID).Debug("status advance skipped: order not found")
		return false
	}

	unlock := l.accounts.Lock(order.MerchantID)
	defer unlock()

	order, err = l.orders.Get(orderID)
	if err != nil {
		return false
	}
	if !order.Status.CanAdvanceTo(next) {
		l.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"from":     order.Status,
			"to":       next,
		}).Debug("status advance rejected")
		return false
	}

	now := time.Now().UTC()
	previous := order.Status
	order.Status = next
	order.UpdatedAt = now
	if err := l.orders.Save(order); err != nil {
		l.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status advance")
		return false
	}

	l.emitOrderEvent(&order, EventOrderStatusChanged, map[string]interface{}{
		"from": string(previous),
		"to":   string(next),
		"ts":   now.Format(time.RFC3339Nano),
	})

	l.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       next,
	}).Info("order status advanced")

	return true
}

// RaiseInvoice выставляет счёт по заказу. Повторный вызов возвращает
// уже существующий счёт без изменений.
func (l *ledger) RaiseInvoice(orderID string) (domain.Invoice, error) {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordOpDuration("raise_invoice", time.Since(start))
		}
	}()

	order, err := l.orders.Get(orderID)
	if err != nil {
		return domain.Invoice{}, err
	}

	if existing, err := l.invoices.GetByOrder(orderID); err == nil {
		return existing, nil
	}

	now := time.Now().UTC()
	invoice := domain.Invoice{
		ID:               l.nextInvoiceID(),
		OrderID:          order.ID,
		MerchantID:       order.MerchantID,
		IssueDate:        now,
		DueDate:          now.Add(domain.InvoiceDueTerm),
		TotalAmountMinor: domain.ItemsTotalMinor(order.Items),
		Status:           domain.InvoiceStatusIssued,
		CreatedAt:        now,
	}

	if err := l.invoices.Create(invoice); err != nil {
		if errors.Is(err, domain.ErrInvoiceExists) {
			// Проиграли гонку выставления: отдаём счёт победителя.
			return l.invoices.GetByOrder(orderID)
		}
		l.logger.WithError(err).WithField("order_id", orderID).Error("failed to persist invoice")
		return domain.Invoice{}, err
	}

	l.emitOrderEvent(&order, EventInvoiceIssued, map[string]interface{}{
		"invoice_id":   invoice.ID,
		"amount_minor": invoice.TotalAmountMinor,
		"due_date":     invoice.DueDate.Format(time.RFC3339Nano),
		"ts":           now.Format(time.RFC3339Nano),
	})

	if l.metrics != nil {
		l.metrics.RecordInvoiceIssued()
	}
	l.logger.WithFields(log.Fields{
		"invoice_id": invoice.ID,
		"order_id":   order.ID,
	}).Info("invoice issued")

	return invoice, nil
}

// RecordPayment добавляет платёж в историю, уменьшает долг мерчанта и
// пересчитывает статус аккаунта. Неизвестный мерчант или сумма <= 0
// дают false.
func (l *ledger) RecordPayment(merchantID string, amountMinor int64) bool {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.RecordOpDuration("record_payment", time.Since(start))
		}
	}()

	if merchantID == "" || amountMinor <= 0 {
		return false
	}

	unlock := l.accounts.Lock(merchantID)
	defer unlock()

	merchant, err := l.merchants.Get(merchantID)
	if err != nil {
		l.logger.WithError(err).WithField("merchant_id", merchantID).Debug("payment skipped: merchant not found")
		return false
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:          uuid.NewString(),
		MerchantID:  merchant.ID,
		AmountMinor: amountMinor,
		Date:        now,
	}
	if err := l.payments.Append(payment); err != nil {
		l.logger.WithError(err).WithField("merchant_id", merchant.ID).Error("failed to append payment")
		return false
	}

	merchant.BalanceMinor -= amountMinor
	merchant.RecalcStatusAfterPayment()
	merchant.UpdatedAt = now
	if err := l.merchants.Save(merchant); err != nil {
		// Платёж уже в истории, но баланс не применён. История append-only,
		// поэтому фиксируем ошибку и отдаём отказ вызывающему.
		l.logger.WithError(err).WithFields(log.Fields{
			"merchant_id": merchant.ID,
			"payment_id":  payment.ID,
		}).Error("payment recorded but balance not applied")
		return false
	}

	l.emitMerchantEvent(merchant.ID, EventPaymentRecorded, map[string]interface{}{
		"payment_id":    payment.ID,
		"amount_minor":  amountMinor,
		"balance_minor": merchant.BalanceMinor,
		"status":        string(merchant.Status),
		"ts":            now.Format(time.RFC3339Nano),
	})

	if l.metrics != nil {
		l.metrics.RecordPaymentRecorded()
	}
	l.logger.WithFields(log.Fields{
		"merchant_id":  merchant.ID,
		"payment_id":   payment.ID,
		"amount_minor": amountMinor,
	}).Info("payment recorded")

	return true
}

// GetOrder возвращает заказ по идентификатору.
func (l *ledger) GetOrder(orderID string) (domain.Order, error) {
	return l.orders.Get(orderID)
}

// ListOrdersForMerchant возвращает заказы мерчанта, новые первыми.
func (l *ledger) ListOrdersForMerchant(merchantID string, limit int) ([]domain.Order, error) {
	if merchantID == "" {
		return nil, domain.ErrMerchantIDRequired
	}
	return l.orders.ListByMerchant(merchantID, limit)
}

// OrderTotalMinor возвращает сумму заказа; для неизвестного заказа 0.
func (l *ledger) OrderTotalMinor(orderID string) int64 {
	order, err := l.orders.Get(orderID)
	if err != nil {
		return 0
	}
	return order.TotalMinor
}

// GetInvoice возвращает счёт по идентификатору.
func (l *ledger) GetInvoice(invoiceID string) (domain.Invoice, error) {
	return l.invoices.Get(invoiceID)
}

// GetInvoiceForOrder возвращает счёт, выставленный по заказу.
func (l *ledger) GetInvoiceForOrder(orderID string) (domain.Invoice, error) {
	if orderID == "" {
		return domain.Invoice{}, domain.ErrOrderIDRequired
	}
	return l.invoices.GetByOrder(orderID)
}

// ListInvoicesForMerchant возвращает счета мерчанта.
func (l *ledger) ListInvoicesForMerchant(merchantID string) ([]domain.Invoice, error) {
	if merchantID == "" {
		return nil, domain.ErrMerchantIDRequired
	}
	return l.invoices.ListByMerchant(merchantID)
}

// ListPaymentsForMerchant возвращает историю платежей мерчанта.
func (l *ledger) ListPaymentsForMerchant(merchantID string) ([]domain.Payment, error) {
	if merchantID == "" {
		return nil, domain.ErrMerchantIDRequired
	}
	return l.payments.ListByMerchant(merchantID)
}

// OrderTimeline возвращает хронологию событий заказа.
func (l *ledger) OrderTimeline(orderID string) ([]domain.TimelineEvent, error) {
	if l.timeline == nil {
		return nil, nil
	}
	return l.timeline.List(orderID)
}

// validateDraft проверяет входной заказ до обращения к хранилищу.
func validateDraft(draft *domain.Order) error {
	if draft.MerchantID == "" {
		return domain.ErrMerchantIDRequired
	}
	if len(draft.Items) == 0 {
		return domain.ErrItemsRequired
	}
	for _, item := range draft.Items {
		if item.ProductID == "" {
			return domain.ErrItemProductRequired
		}
		if item.Qty <= 0 {
			return domain.ErrItemQtyInvalid
		}
		if item.UnitPriceMinor < 0 {
			return domain.ErrItemPriceInvalid
		}
	}
	return nil
}

var _ Ledger = (*ledger)(nil)
