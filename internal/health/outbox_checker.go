package health

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const defaultBacklogThreshold = 1000

// OutboxBacklogChecker проверяет размер backlog transactional outbox.
// Растущий backlog означает, что события заказов не доходят до брокера.
type OutboxBacklogChecker struct {
	repo      domain.OutboxRepository
	threshold int
}

// NewOutboxBacklogChecker создаёт проверку backlog. threshold <= 0
// заменяется значением по умолчанию.
func NewOutboxBacklogChecker(repo domain.OutboxRepository, threshold int) *OutboxBacklogChecker {
	if threshold <= 0 {
		threshold = defaultBacklogThreshold
	}
	return &OutboxBacklogChecker{repo: repo, threshold: threshold}
}

// Check выполняет проверку backlog.
func (c *OutboxBacklogChecker) Check() Check {
	start := time.Now()

	stats, err := c.repo.Stats()
	duration := time.Since(start)
	if err != nil {
		return Check{
			Name:       "outbox",
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	if stats.PendingCount > c.threshold {
		return Check{
			Name:       "outbox",
			Status:     StatusDegraded,
			Message:    fmt.Sprintf("outbox backlog %d exceeds threshold %d", stats.PendingCount, c.threshold),
			DurationMs: duration.Milliseconds(),
		}
	}

	return Check{
		Name:       "outbox",
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}

var _ Checker = (*OutboxBacklogChecker)(nil)
