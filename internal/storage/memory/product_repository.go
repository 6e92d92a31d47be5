package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Все изменения остатка выполняются под одним мьютексом, поэтому
// read-modify-write по складу атомарен относительно конкурентных заказов.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory каталог товаров.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[p.ID]; exists {
		return domain.ErrProductExists
	}
	r.items[p.ID] = p
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// List возвращает все товары, отсортированные по ID.
func (r *productRepositoryInMemory) List() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, p := range r.items {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SetStock выставляет абсолютный складской остаток.
func (r *productRepositoryInMemory) SetStock(id string, level int32) error {
	if level < 0 {
		return domain.ErrStockNegative
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.StockLevel = level
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return nil
}

// AdjustStock атомарно меняет остаток на delta. Остаток ниже нуля не
// опускается: при списании сверх наличия фиксируется ноль.
func (r *productRepositoryInMemory) AdjustStock(id string, delta int32) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}

	next := p.StockLevel + delta
	if next < 0 {
		next = 0
	}
	p.StockLevel = next
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return next, nil
}

// SetMinimumStock выставляет минимальный порог остатка.
func (r *productRepositoryInMemory) SetMinimumStock(id string, level int32) error {
	if level < 0 {
		return domain.ErrMinimumStockNegative
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.MinimumStockLevel = level
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
