package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

func TestOutboxRepository_PostgresEnqueuePullAndMark(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ORD1001",
		EventType:     "OrderAccepted",
		Payload:       []byte(`{"total_minor":4000}`),
	})
	if err != nil {
		t.Fatalf("enqueue first message: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated outbox id")
	}

	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "merchant",
		AggregateID:   "M001",
		EventType:     "PaymentRecorded",
	})
	if err != nil {
		t.Fatalf("enqueue second message: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Fatalf("expected oldest message first, got %s", pending[0].ID)
	}
	if string(pending[1].Payload) != "{}" {
		t.Fatalf("expected empty payload fallback, got %s", pending[1].Payload)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending in stats, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages, got %d", len(pending))
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("outbox stats after marks: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected 0 pending in stats, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_PostgresMarkUnknownMessage(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if err := repo.MarkSent("absent"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for unknown id, got %v", err)
	}
}

func TestOutboxRepository_PostgresPullRespectsLimit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	for i := 0; i < 3; i++ {
		if _, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "ORD1001",
			EventType:     "OrderStatusChanged",
			Payload:       []byte(`{}`),
		}); err != nil {
			t.Fatalf("enqueue message %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	pending, err := repo.PullPending(2)
	if err != nil {
		t.Fatalf("pull pending with limit: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 messages with limit, got %d", len(pending))
	}
}
