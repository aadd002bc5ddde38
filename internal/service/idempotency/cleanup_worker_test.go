package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestCleanupWorker_DeleteExpired_DrainsInBatches(t *testing.T) {
	t.Parallel()

	repo := &stubIdempotencyRepo{batches: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}
	if repo.callCount() != 3 {
		t.Errorf("repo calls = %d, want 3", repo.callCount())
	}
}

func TestCleanupWorker_DeleteExpired_PropagatesRepoError(t *testing.T) {
	t.Parallel()

	repo := &stubIdempotencyRepo{err: errors.New("db down")}
	worker := NewCleanupWorker(repo)

	_, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected repo error, got nil")
	}
}

func TestCleanupWorker_DeleteExpired_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	repo := &stubIdempotencyRepo{batches: []int{1}}
	worker := NewCleanupWorker(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.DeleteExpired(ctx, time.Now().UTC())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if repo.callCount() != 0 {
		t.Errorf("repo must not be called after cancel, got %d calls", repo.callCount())
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubIdempotencyRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("cleanup worker did not stop on context cancel")
	}
}

type stubIdempotencyRepo struct {
	mu      sync.Mutex
	batches []int
	calls   int
	err     error
}

func (s *stubIdempotencyRepo) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, nil
}

func (s *stubIdempotencyRepo) Get(key string) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
}

func (s *stubIdempotencyRepo) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return nil
}

func (s *stubIdempotencyRepo) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return nil
}

func (s *stubIdempotencyRepo) DeleteExpired(before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	s.calls++
	if len(s.batches) == 0 {
		return 0, nil
	}
	deleted := s.batches[0]
	s.batches = s.batches[1:]
	return deleted, nil
}

func (s *stubIdempotencyRepo) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ domain.IdempotencyRepository = (*stubIdempotencyRepo)(nil)
