package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/keylock"
	"github.com/vladislavdragonenkov/infopharma/internal/service/catalog"
	"github.com/vladislavdragonenkov/infopharma/internal/service/directory"
	"github.com/vladislavdragonenkov/infopharma/internal/service/ledger"
	"github.com/vladislavdragonenkov/infopharma/internal/service/outbox"
	"github.com/vladislavdragonenkov/infopharma/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный цикл order-to-cash.
type OrderLifecycleTestSuite struct {
	suite.Suite
	ledger    ledger.Ledger
	directory directory.Directory
	catalog   catalog.Catalog
	outbox    domain.OutboxRepository
	publisher *capturingPublisher
}

type capturingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxMessage
}

func (p *capturingPublisher) Publish(msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

func (p *capturingPublisher) messages() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.published...)
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	accounts := keylock.New()
	merchants := memory.NewMerchantRepository()
	products := memory.NewProductRepository()
	suite.outbox = memory.NewOutboxRepository()
	suite.publisher = &capturingPublisher{}

	suite.ledger = ledger.NewWithoutMetrics(
		merchants,
		products,
		memory.NewOrderRepository(),
		memory.NewInvoiceRepository(),
		memory.NewPaymentRepository(),
		suite.outbox,
		memory.NewTimelineRepository(),
		accounts,
		logger,
	)
	suite.directory = directory.New(merchants, accounts, logger)
	suite.catalog = catalog.New(products, logger)
}

func (suite *OrderLifecycleTestSuite) seedMerchantAndProduct(limitMinor int64) {
	_, err := suite.directory.RegisterMerchant(directory.RegisterMerchantParams{
		ID:               "M001",
		Name:             "Central Pharmacy",
		Address:          "12 High Street",
		CreditLimitMinor: &limitMinor,
	})
	require.NoError(suite.T(), err)

	_, err = suite.catalog.AddProduct(catalog.AddProductParams{
		ID:         "P001",
		Name:       "Paracetamol 500mg",
		PriceMinor: 250,
		StockLevel: 100,
	})
	require.NoError(suite.T(), err)
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderToCashLifecycle() {
	suite.seedMerchantAndProduct(100_000)

	// 1. Создаём заказ
	order, err := suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 16, UnitPriceMinor: 250},
		},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "ORD1001", order.ID)
	require.Equal(suite.T(), domain.OrderStatusPending, order.Status)
	require.Equal(suite.T(), int64(4_000), order.TotalMinor)

	// 2. Заказ списал остаток и увеличил долг мерчанта
	product, err := suite.catalog.GetProduct("P001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(84), product.StockLevel)

	balance, err := suite.directory.BalanceMinor("M001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(4_000), balance)

	// 3. Доставляем заказ
	require.True(suite.T(), suite.ledger.AdvanceOrderStatus(order.ID, domain.OrderStatusDispatched))
	require.True(suite.T(), suite.ledger.AdvanceOrderStatus(order.ID, domain.OrderStatusDelivered))

	// 4. Выставляем счёт; повторный вызов возвращает тот же счёт
	invoice, err := suite.ledger.RaiseInvoice(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "INV5001", invoice.ID)
	require.Equal(suite.T(), order.TotalMinor, invoice.TotalAmountMinor)
	require.Equal(suite.T(), invoice.IssueDate.Add(domain.InvoiceDueTerm), invoice.DueDate)

	again, err := suite.ledger.RaiseInvoice(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), invoice.ID, again.ID)

	// 5. Платёж закрывает долг
	require.True(suite.T(), suite.ledger.RecordPayment("M001", 4_000))

	balance, err = suite.directory.BalanceMinor("M001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), balance)

	// 6. Timeline содержит весь жизненный цикл заказа
	timeline, err := suite.ledger.OrderTimeline(order.ID)
	require.NoError(suite.T(), err)
	require.GreaterOrEqual(suite.T(), len(timeline), 3)
	require.Equal(suite.T(), "OrderAccepted", timeline[0].Type)
}

func (suite *OrderLifecycleTestSuite) TestCancellationRestocksAndReleasesCredit() {
	suite.seedMerchantAndProduct(100_000)

	order, err := suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 10, UnitPriceMinor: 250},
		},
	})
	require.NoError(suite.T(), err)

	require.True(suite.T(), suite.ledger.CancelOrder(order.ID))

	cancelled, err := suite.ledger.GetOrder(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, cancelled.Status)

	product, err := suite.catalog.GetProduct("P001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(100), product.StockLevel)

	balance, err := suite.directory.BalanceMinor("M001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), balance)

	// Повторная отмена — no-op
	require.False(suite.T(), suite.ledger.CancelOrder(order.ID))
}

func (suite *OrderLifecycleTestSuite) TestCreditEnforcementAndReactivation() {
	suite.seedMerchantAndProduct(2_000)

	// Заказ на 2500 превышает лимит 2000
	_, err := suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 10, UnitPriceMinor: 250},
		},
	})
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsCreditLimitExceeded(err))

	// Заказ ровно в лимит проходит
	order, err := suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 8, UnitPriceMinor: 250},
		},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(2_000), order.TotalMinor)

	// Приостановленный мерчант не может заказывать
	_, err = suite.directory.ChangeStatus("M001", domain.MerchantStatusSuspended)
	require.NoError(suite.T(), err)

	_, err = suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 1, UnitPriceMinor: 250},
		},
	})
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsAccountNotActive(err))

	// Полное погашение долга возвращает статус active
	require.True(suite.T(), suite.ledger.RecordPayment("M001", 2_000))

	merchant, err := suite.directory.GetMerchant("M001")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.MerchantStatusActive, merchant.Status)
}

func (suite *OrderLifecycleTestSuite) TestOutboxDrainsThroughWorker() {
	suite.seedMerchantAndProduct(100_000)

	order, err := suite.ledger.CreateOrder(domain.Order{
		MerchantID: "M001",
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 10, UnitPriceMinor: 250},
		},
	})
	require.NoError(suite.T(), err)
	require.True(suite.T(), suite.ledger.RecordPayment("M001", 1_000))

	worker := outbox.NewWorker(
		suite.outbox,
		suite.publisher,
		outbox.WithRetryBaseDelay(0),
		outbox.WithBatchSize(10),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	worker.ProcessOnce(ctx)

	published := suite.publisher.messages()
	require.Len(suite.T(), published, 2)
	require.Equal(suite.T(), "OrderAccepted", published[0].EventType)
	require.Equal(suite.T(), order.ID, published[0].AggregateID)
	require.Equal(suite.T(), "PaymentRecorded", published[1].EventType)
	require.Equal(suite.T(), "merchant", published[1].AggregateType)

	pending, err := suite.outbox.PullPending(10)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), pending)
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
