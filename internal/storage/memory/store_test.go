package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/netcurfew/netcurfew/internal/domain"
)

func TestListEventsNewestFirstWithDefaultLimit(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 105; i++ {
		err := store.AppendEvent(ctx, &domain.AuditEvent{
			Action:      "lock",
			Actor:       "tester",
			SubjectType: "device",
			SubjectID:   fmt.Sprintf("dev-%d", i),
		})
		if err != nil {
			t.Fatalf("append event %d: %v", i, err)
		}
	}

	events, err := store.ListEvents(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 100 {
		t.Fatalf("got %d events with zero limit, want the default page of 100", len(events))
	}
	if events[0].SubjectID != "dev-104" {
		t.Errorf("first event = %q, want the newest", events[0].SubjectID)
	}

	events, err = store.ListEvents(ctx, 10, 100)
	if err != nil {
		t.Fatalf("list events with offset: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events past offset 100, want 5", len(events))
	}
	if events[0].SubjectID != "dev-4" {
		t.Errorf("first offset event = %q", events[0].SubjectID)
	}
}
