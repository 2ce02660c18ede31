package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"galileo/contexts/competition-core/judging-engine/adapters/memory"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
)

type capturingPublisher struct {
	topics   []string
	payloads [][]byte
	fail     bool
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func appendAudit(t *testing.T, store *memory.Store, action string) {
	t.Helper()
	err := store.AppendAudit(context.Background(), entities.AuditEntry{
		Action:           action,
		PerformingUserID: "admin-1",
		Detail:           map[string]any{"level": "sub_county"},
		OccurredAt:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append audit failed: %v", err)
	}
}

func TestRelayPublishesEnvelopedAuditRows(t *testing.T) {
	store := memory.NewStore()
	appendAudit(t, store, "level_published")
	publisher := &capturingPublisher{}

	relay := AuditRelay{Outbox: store, Publisher: publisher}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != "judging.audit.level_published" {
		t.Fatalf("the action routes the topic, got %v", publisher.topics)
	}

	var envelope struct {
		EventType     string `json:"event_type"`
		SourceService string `json:"source_service"`
		EntityType    string `json:"entity_type"`
	}
	if err := json.Unmarshal(publisher.payloads[0], &envelope); err != nil {
		t.Fatalf("payload is not a JSON envelope: %v", err)
	}
	if envelope.EventType != "judging.level_published" || envelope.SourceService != "galileo" {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	if envelope.EntityType != "audit_entry" {
		t.Fatalf("unexpected entity type: %+v", envelope)
	}

	// The row is marked published; a second cycle sends nothing.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay cycle failed: %v", err)
	}
	if len(publisher.topics) != 1 {
		t.Fatalf("published rows must not resend, got %v", publisher.topics)
	}
}

func TestRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	appendAudit(t, store, "level_published")
	publisher := &capturingPublisher{fail: true}

	relay := AuditRelay{Outbox: store, Publisher: publisher}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("a broker failure must surface")
	}

	pending, err := store.ListPendingAudit(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending audit failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("failed rows stay pending for retry, got %d", len(pending))
	}

	publisher.fail = false
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
	if len(publisher.topics) != 1 {
		t.Fatalf("the retried row publishes exactly once, got %v", publisher.topics)
	}
}
