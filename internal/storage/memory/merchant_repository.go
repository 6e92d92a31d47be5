package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// merchantRepositoryInMemory — in-memory реализация MerchantRepository.
type merchantRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Merchant
}

// NewMerchantRepository возвращает in-memory справочник аккаунтов.
func NewMerchantRepository() domain.MerchantRepository {
	return &merchantRepositoryInMemory{
		items: make(map[string]domain.Merchant),
	}
}

// Create сохраняет нового мерчанта, если ID ещё не занят.
func (r *merchantRepositoryInMemory) Create(m domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[m.ID]; exists {
		return domain.ErrMerchantExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[m.ID] = m
	return nil
}

// Get возвращает мерчанта или ErrMerchantNotFound, если его нет.
func (r *merchantRepositoryInMemory) Get(id string) (domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.items[id]
	if !ok {
		return domain.Merchant{}, domain.ErrMerchantNotFound
	}
	return m, nil
}

// List возвращает всех мерчантов, отсортированных по ID для детерминизма.
func (r *merchantRepositoryInMemory) List() ([]domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Merchant, 0, len(r.items))
	for _, m := range r.items {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save перезаписывает мерчанта, проверяя версию (optimistic locking).
func (r *merchantRepositoryInMemory) Save(m domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[m.ID]
	if !ok {
		return domain.ErrMerchantNotFound
	}
	if current.Version != m.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	m.Version++
	r.items[m.ID] = m
	return nil
}

var _ domain.MerchantRepository = (*merchantRepositoryInMemory)(nil)
