package events

import (
	"context"
	"testing"
)

func TestNoopPublisherRecordsEvents(t *testing.T) {
	p := &NoopPublisher{}
	err := p.PublishSessionCompleted(context.Background(), SessionCompleted{SessionID: "s1", UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Published) != 1 || p.Published[0].SessionID != "s1" {
		t.Errorf("expected the event to be recorded, got %+v", p.Published)
	}
	if err := p.Close(); err != nil {
		t.Errorf("expected Close to be a no-op, got %v", err)
	}
}
