package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()
	ctx := context.Background()

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "1",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"status":"paid"}`),
	}

	saved, err := repo.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}
}

func TestOutboxRepository_PullPendingKeepsEnqueueOrder(t *testing.T) {
	repo := NewOutboxRepository()
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, id := range []string{"c", "a", "b"} {
		if _, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: id}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pending, err := repo.PullPending(ctx, 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "c" || pending[1].ID != "a" {
		t.Fatalf("unexpected pending order: %+v", pending)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewOutboxRepository()
	ctx := context.Background()

	saved, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(ctx, saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if got := len(repo.AllPending()); got != 0 {
		t.Fatalf("expected no pending messages after MarkSent, got %d", got)
	}

	if err := repo.MarkFailed(ctx, saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := NewOutboxRepository()
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	first, _ := repo.Enqueue(ctx, domain.OutboxMessage{})
	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}
}

func TestTimelineRepository_ListChronological(t *testing.T) {
	repo := NewTimelineRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []domain.TimelineEvent{
		{OrderID: 1, Type: domain.EventOrderStatusChanged, Occurred: base.Add(time.Minute)},
		{OrderID: 1, Type: domain.EventOrderCreated, Occurred: base},
		{OrderID: 2, Type: domain.EventOrderCreated, Occurred: base},
	}
	for _, e := range events {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != domain.EventOrderCreated || got[1].Type != domain.EventOrderStatusChanged {
		t.Fatalf("unexpected order: %+v", got)
	}
}
