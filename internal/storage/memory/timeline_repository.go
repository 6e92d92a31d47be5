package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// timelineRepositoryInMemory хранит события жизненного цикла заказов в памяти.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в хронологию заказа.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if errs := event.ValidateInvariants(); len(errs) > 0 {
		return errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	timeline := append(r.events[event.OrderID], event)
	// Хронология держится отсортированной по времени события,
	// чтобы List не сортировал на каждое чтение.
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Occurred.Before(timeline[j].Occurred)
	})
	r.events[event.OrderID] = timeline

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
