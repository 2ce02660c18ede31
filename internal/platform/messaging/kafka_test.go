package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubscribeDeliversPublishedPayloads(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	err = bus.Subscribe(ctx, "judging.audit.level_published", "galileo-notifications",
		func(_ context.Context, payload []byte) error {
			received <- payload
			return nil
		})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	payload := []byte(`{"event_type":"judging.level_published"}`)
	if err := bus.Publish(context.Background(), "judging.audit.level_published", payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Fatalf("payload arrived mangled: %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber never received the payload")
	}
}

func TestSubscribeSurvivesHandlerErrors(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 2)
	err = bus.Subscribe(ctx, "judging.audit.level_unpublished", "galileo-notifications",
		func(_ context.Context, payload []byte) error {
			received <- payload
			return errors.New("notifier unavailable")
		})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, payload := range []string{"first", "second"} {
		if err := bus.Publish(context.Background(), "judging.audit.level_unpublished", []byte(payload)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	for _, want := range []string{"first", "second"} {
		select {
		case got := <-received:
			if string(got) != want {
				t.Fatalf("expected %q, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("a handler error must not stop the consume loop")
		}
	}
}

func TestCancelledSubscriberIsRemoved(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan []byte, 1)
	err = bus.Subscribe(ctx, "judging.audit.scoring_session_timed_out", "galileo-notifications",
		func(_ context.Context, payload []byte) error {
			received <- payload
			return nil
		})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.RLock()
		remaining := len(bus.subscribers["judging.audit.scoring_session_timed_out"])
		bus.mu.RUnlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancelled subscriber was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := bus.Publish(context.Background(), "judging.audit.scoring_session_timed_out", []byte("late")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	select {
	case <-received:
		t.Fatalf("a removed subscriber must not receive further events")
	case <-time.After(50 * time.Millisecond):
	}
}
