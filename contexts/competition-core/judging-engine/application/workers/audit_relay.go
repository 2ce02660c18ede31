package workers

import (
	"context"
	"log/slog"
	"time"

	application "galileo/contexts/competition-core/judging-engine/application"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// AuditRelay drains pending audit entries to the platform event bus so
// notification and display collaborators see publish, rollback, arbitration,
// conflict, and timeout events. Relay failure never affects engine state.
type AuditRelay struct {
	Outbox    ports.AuditOutbox
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending audit rows, marking each row
// published only after the bus accepts it. It stops on the first failure so
// the retry loop can reprocess remaining rows safely.
func (r AuditRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingAudit(ctx, limit)
	if err != nil {
		logger.Error("audit outbox list failed",
			"event", "judging_audit_relay_list_failed",
			"module", "competition-core/judging-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		topic := "judging.audit." + row.Action
		if err := r.Publisher.Publish(ctx, topic, row.Payload); err != nil {
			logger.Error("audit publish failed",
				"event", "judging_audit_relay_publish_failed",
				"module", "competition-core/judging-engine",
				"layer", "worker",
				"audit_id", row.AuditID,
				"action", row.Action,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkAuditPublished(ctx, row.AuditID, now); err != nil {
			logger.Error("audit mark published failed",
				"event", "judging_audit_relay_mark_failed",
				"module", "competition-core/judging-engine",
				"layer", "worker",
				"audit_id", row.AuditID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("audit relay cycle completed",
		"event", "judging_audit_relay_completed",
		"module", "competition-core/judging-engine",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
