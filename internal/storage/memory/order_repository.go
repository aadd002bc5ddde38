package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const defaultListLimit = 10

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Order
	outbox domain.OutboxRepository
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// NewOrderRepositoryWithOutbox возвращает репозиторий, который пишет
// outbox-события атомарно с изменением заказа, как постгресовая
// реализация делает это в одной транзакции.
func NewOrderRepositoryWithOutbox(outbox domain.OutboxRepository) domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:  make(map[string]domain.Order),
		outbox: outbox,
	}
}

// CreateWithItems сохраняет заказ вместе с позициями и outbox-событиями,
// если ID ещё не занят. При сбое записи события заказ откатывается.
func (r *orderRepositoryInMemory) CreateWithItems(order domain.Order, events ...domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	// Сохраняем копию без имён товаров: имя — представление, не состояние.
	r.items[order.ID] = cloneStoredOrder(order)

	if err := r.enqueueEvents(events); err != nil {
		delete(r.items, order.ID)
		return err
	}
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneStoredOrder(order), nil
}

// List возвращает страницу заказов без позиций и метаданные выборки.
func (r *orderRepositoryInMemory) List(filter domain.ListFilter) ([]domain.Order, domain.ListMeta, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultListLimit
	}

	r.mu.RLock()
	matched := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		flat := order
		flat.Items = nil
		matched = append(matched, flat)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	meta := domain.ListMeta{
		MatchingCount: int64(len(matched)),
		Page:          page,
		LastPage:      (len(matched) + limit - 1) / limit,
	}

	offset := (page - 1) * limit
	if offset >= len(matched) {
		return []domain.Order{}, meta, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], meta, nil
}

// UpdateStatus меняет статус существующего заказа вместе с записью
// outbox-событий; при сбое записи события статус откатывается.
func (r *orderRepositoryInMemory) UpdateStatus(id string, status domain.OrderStatus, updatedAt time.Time, events ...domain.OutboxMessage) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order := previous
	order.Status = status
	order.UpdatedAt = updatedAt
	r.items[id] = order

	if err := r.enqueueEvents(events); err != nil {
		r.items[id] = previous
		return domain.Order{}, err
	}
	return cloneStoredOrder(order), nil
}

func (r *orderRepositoryInMemory) enqueueEvents(events []domain.OutboxMessage) error {
	if len(events) == 0 {
		return nil
	}
	if r.outbox == nil {
		return fmt.Errorf("outbox repository is not configured")
	}
	for _, event := range events {
		if _, err := r.outbox.Enqueue(event); err != nil {
			return err
		}
	}
	return nil
}

// cloneStoredOrder копирует заказ, очищая несохраняемое поле Name у позиций.
func cloneStoredOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.Name = ""
		clone.Items[i] = item
	}
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
