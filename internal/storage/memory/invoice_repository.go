package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// invoiceRepositoryInMemory — in-memory реализация InvoiceRepository.
// Индекс byOrder обеспечивает уникальность счёта на заказ.
type invoiceRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Invoice
	byOrder map[string]string
}

// NewInvoiceRepository возвращает in-memory хранилище счетов.
func NewInvoiceRepository() domain.InvoiceRepository {
	return &invoiceRepositoryInMemory{
		items:   make(map[string]domain.Invoice),
		byOrder: make(map[string]string),
	}
}

// Create сохраняет счёт. Второй счёт по тому же заказу отклоняется,
// поэтому гонка двух raiseInvoice разрешается в пользу первого.
func (r *invoiceRepositoryInMemory) Create(inv domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[inv.OrderID]; exists {
		return domain.ErrInvoiceExists
	}
	if _, exists := r.items[inv.ID]; exists {
		return domain.ErrInvoiceExists
	}
	r.items[inv.ID] = inv
	r.byOrder[inv.OrderID] = inv.ID
	return nil
}

// Get возвращает счёт или ErrInvoiceNotFound, если его нет.
func (r *invoiceRepositoryInMemory) Get(id string) (domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.items[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

// GetByOrder возвращает счёт по заказу или ErrInvoiceNotFound.
func (r *invoiceRepositoryInMemory) GetByOrder(orderID string) (domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return r.items[id], nil
}

// ListByMerchant возвращает счета мерчанта, отсортированные по ID.
func (r *invoiceRepositoryInMemory) ListByMerchant(merchantID string) ([]domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Invoice, 0)
	for _, inv := range r.items {
		if inv.MerchantID == merchantID {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ domain.InvoiceRepository = (*invoiceRepositoryInMemory)(nil)
