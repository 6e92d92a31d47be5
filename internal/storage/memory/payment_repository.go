package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// paymentRepositoryInMemory хранит append-only историю платежей по мерчантам.
type paymentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string][]domain.Payment
}

// NewPaymentRepository возвращает in-memory журнал платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items: make(map[string][]domain.Payment),
	}
}

// Append добавляет платёж в историю мерчанта. Запись только добавляется:
// конкурентные писатели не теряют чужие платежи.
func (r *paymentRepositoryInMemory) Append(p domain.Payment) error {
	if errs := p.Validate(); len(errs) > 0 {
		return errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[p.MerchantID] = append(r.items[p.MerchantID], p)
	return nil
}

// ListByMerchant возвращает копию истории платежей в порядке добавления.
func (r *paymentRepositoryInMemory) ListByMerchant(merchantID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payments := r.items[merchantID]
	result := make([]domain.Payment, len(payments))
	copy(result, payments)
	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
