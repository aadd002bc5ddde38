package domain

import "time"

// ListFilter задаёт выборку для постраничного списка заказов.
type ListFilter struct {
	// Status фильтрует по статусу; nil означает "все заказы".
	Status *OrderStatus
	// Page — номер страницы, начиная с 1.
	Page int
	// Limit — размер страницы.
	Limit int
}

// ListMeta описывает метаданные постраничной выборки.
type ListMeta struct {
	// MatchingCount — количество заказов, подходящих под фильтр.
	MatchingCount int64
	Page          int
	// LastPage = ceil(MatchingCount / Limit).
	LastPage int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateWithItems атомарно сохраняет заказ вместе с позициями и
	// переданными outbox-событиями: либо записывается всё, либо ничего.
	// Поле Name позиций не сохраняется.
	CreateWithItems(order Order, events ...OutboxMessage) error
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает страницу заказов по фильтру. Позиции не загружаются.
	// Страница за пределами выборки — пустой список без ошибки.
	List(filter ListFilter) ([]Order, ListMeta, error)
	// UpdateStatus меняет статус заказа атомарно с записью переданных
	// outbox-событий и возвращает обновлённую запись с позициями;
	// ErrOrderNotFound, если заказа нет.
	UpdateStatus(id string, status OrderStatus, updatedAt time.Time, events ...OutboxMessage) (Order, error)
}
