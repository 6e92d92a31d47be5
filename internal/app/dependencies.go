package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/keylock"
	"github.com/vladislavdragonenkov/infopharma/internal/storage/memory"
	"github.com/vladislavdragonenkov/infopharma/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения: репозитории,
// ключевой мьютекс мерчантских счетов и, для postgres, открытый Store.
type Dependencies struct {
	Merchants domain.MerchantRepository
	Products  domain.ProductRepository
	Orders    domain.OrderRepository
	Invoices  domain.InvoiceRepository
	Payments  domain.PaymentRepository
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	IdemKeys  domain.IdempotencyRepository

	Accounts *keylock.KeyedMutex
	Store    *postgres.Store

	LastOrderSeq   int64
	LastInvoiceSeq int64

	Logger *log.Entry
}

// NewDependencies создаёт зависимости согласно выбранному драйверу хранилища.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}

	deps := &Dependencies{
		Accounts: keylock.New(),
		Logger:   logger,
	}

	switch cfg.StorageDriver {
	case StorageMemory, "":
		deps.Merchants = memory.NewMerchantRepository()
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Invoices = memory.NewInvoiceRepository()
		deps.Payments = memory.NewPaymentRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		deps.IdemKeys = memory.NewIdempotencyRepository()
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires INFOPHARMA_POSTGRES_DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}

		lastOrder, lastInvoice, err := store.LastSequenceValues(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("read sequence values: %w", err)
		}

		deps.Store = store
		deps.LastOrderSeq = lastOrder
		deps.LastInvoiceSeq = lastInvoice
		deps.Merchants = postgres.NewMerchantRepository(store)
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Invoices = postgres.NewInvoiceRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.IdemKeys = postgres.NewIdempotencyRepository(store)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	return deps, nil
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
