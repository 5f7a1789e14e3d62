package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/storage/memory"
)

func testMetrics() *metrics.IdempotencyMetrics {
	return metrics.NewIdempotencyMetricsWithRegisterer(prometheus.NewRegistry())
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{
		deleteResults: []int{2, 2, 1},
	}

	worker := NewCleanupWorker(repo, WithBatchSize(2), WithMetrics(testMetrics()))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}

	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
	if limit := repo.lastLimit(); limit != 2 {
		t.Fatalf("unexpected batch limit: got=%d want=2", limit)
	}
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{
		deleteResults: []int{10},
		deleteErrors:  []error{nil, errors.New("boom")},
	}

	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected DeleteExpired error")
	}
	if deleted != 10 {
		t.Fatalf("unexpected deleted total: got=%d want=10", deleted)
	}
}

func TestCleanupWorker_DeleteExpired_CancelledContext(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := worker.DeleteExpired(ctx, time.Time{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls := repo.calls(); calls != 0 {
		t.Fatalf("repo must not be called after cancel, got %d calls", calls)
	}
}

func TestCleanupWorker_DeleteExpired_MemoryRepository(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, ttl := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		key := string(rune('a' + i))
		if _, err := repo.CreateProcessing(ctx, key, "hash", ttl); err != nil {
			t.Fatalf("CreateProcessing %s failed: %v", key, err)
		}
	}

	worker := NewCleanupWorker(repo, WithBatchSize(2))
	deleted, err := worker.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("unexpected deleted total: got=%d want=3", deleted)
	}
	if _, err := repo.Get(ctx, "d"); err != nil {
		t.Fatalf("active key must stay: %v", err)
	}
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expired key must be removed, got %v", err)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{
		deleteResults: []int{0, 0, 0},
		deleteErrors:  []error{errors.New("transient")},
	}

	worker := NewCleanupWorker(
		repo,
		WithInterval(5*time.Millisecond),
		WithBatchSize(10),
		WithMetrics(testMetrics()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := repo.calls(); calls < 2 {
		t.Fatalf("expected cleanup to continue after a failed run, got %d calls", calls)
	}
}

func TestCleanupWorker_Run_NilRepo(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without repo must return immediately")
	}
}

type stubCleanupRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
	limit         int
}

func (s *stubCleanupRepo) DeleteExpired(_ context.Context, _ time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.limit = limit

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubCleanupRepo) lastLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}
