package postgres

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)

	events := []domain.TimelineEvent{
		{OrderID: "ORD1001", Type: "OrderAccepted", Occurred: now.Add(-2 * time.Minute)},
		{OrderID: "ORD1001", Type: "OrderStatusChanged", Reason: "dispatched", Occurred: now.Add(-time.Minute)},
		{OrderID: "ORD1002", Type: "OrderAccepted", Occurred: now},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append event %s: %v", event.Type, err)
		}
	}

	listed, err := repo.List("ORD1001")
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events for ORD1001, got %d", len(listed))
	}
	if listed[0].Type != "OrderAccepted" || listed[1].Type != "OrderStatusChanged" {
		t.Fatalf("unexpected event order: %+v", listed)
	}
	if listed[1].Reason != "dispatched" {
		t.Fatalf("expected reason dispatched, got %s", listed[1].Reason)
	}

	empty, err := repo.List("ORD9999")
	if err != nil {
		t.Fatalf("list unknown order timeline: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty timeline, got %d", len(empty))
	}
}
