package domain

import "time"

// ProductGateway описывает взаимодействие с внешним каталогом товаров.
type ProductGateway interface {
	// Resolve возвращает записи каталога для каждого запрошенного id.
	// Если хотя бы один id не подтверждён или вызов завершился ошибкой,
	// возвращается ошибка и вся операция вызывающей стороны прерывается.
	Resolve(productIDs []int64) ([]Product, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// DeadLetter описывает событие, исчерпавшее попытки публикации.
type DeadLetter struct {
	Event    OutboxMessage
	Attempts int
	Reason   string
	FailedAt time.Time
}

// DeadLetterPublisher отправляет невыданные события в dead letter queue.
type DeadLetterPublisher interface {
	Publish(dead DeadLetter) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
