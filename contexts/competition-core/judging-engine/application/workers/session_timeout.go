package workers

import (
	"context"
	"log/slog"
	"time"

	application "galileo/contexts/competition-core/judging-engine/application"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// SessionTimeoutSweeper enforces the maximum scoring-session dwell time.
// Assignments in progress past the limit transition to review-pending with a
// timeout reason and land on the coordinator queue through the audit outbox.
// This is a timer-driven transition, not a user-cancelable operation.
type SessionTimeoutSweeper struct {
	Assignments ports.AssignmentRepository
	Audit       ports.AuditWriter
	Clock       ports.Clock
	MaxDwell    time.Duration
	Logger      *slog.Logger
}

// RunOnce scans in-progress assignments and times out the overdue ones.
func (s SessionTimeoutSweeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(s.Logger)
	maxDwell := s.MaxDwell
	if maxDwell <= 0 {
		maxDwell = 2 * time.Hour
	}

	inProgress, err := s.Assignments.ListInProgressAssignments(ctx)
	if err != nil {
		logger.Error("session timeout list failed",
			"event", "judging_session_timeout_list_failed",
			"module", "competition-core/judging-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	now := s.now()
	timedOut := 0
	for _, assignment := range inProgress {
		if assignment.StartedAt == nil || now.Sub(*assignment.StartedAt) < maxDwell {
			continue
		}
		assignment.Status = entities.AssignmentStatusReviewPending
		assignment.ReviewReason = "scoring session exceeded the maximum duration"
		assignment.UpdatedAt = now
		if err := s.Assignments.SaveAssignment(ctx, assignment); err != nil {
			return timedOut, err
		}
		timedOut++

		if s.Audit != nil {
			entry := entities.AuditEntry{
				Action:           "scoring_session_timed_out",
				PerformingUserID: "system",
				Detail: map[string]any{
					"assignment_id": assignment.AssignmentID,
					"judge_id":      assignment.JudgeID,
					"project_id":    assignment.ProjectID,
					"section":       string(assignment.Section),
					"level":         assignment.Level.String(),
				},
				OccurredAt: now,
			}
			if err := s.Audit.AppendAudit(ctx, entry); err != nil {
				logger.Warn("audit append failed",
					"event", "judging_audit_append_failed",
					"module", "competition-core/judging-engine",
					"layer", "worker",
					"assignment_id", assignment.AssignmentID,
					"error", err.Error(),
				)
			}
		}
	}

	if timedOut > 0 {
		logger.Info("session timeout sweep completed",
			"event", "judging_session_timeout_sweep_completed",
			"module", "competition-core/judging-engine",
			"layer", "worker",
			"timed_out_count", timedOut,
		)
	}
	return timedOut, nil
}

func (s SessionTimeoutSweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
