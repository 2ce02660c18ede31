package commands

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	application "galileo/contexts/competition-core/judging-engine/application"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// SubmitScoreCommand carries a judge's completed score sheet for one
// assignment.
type SubmitScoreCommand struct {
	AssignmentID string
	JudgeID      string
	Breakdown    map[string]float64
	Comments     string
}

// ScoringUseCase owns the judge-facing scoring lifecycle: starting a
// session, submitting a validated score, recording tie-break overrides, and
// the conflict-of-interest sweep.
type ScoringUseCase struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	Locks       ports.ScopeLocker
	Audit       ports.AuditWriter
	Clock       ports.Clock
	Logger      *slog.Logger
	// Sheets overrides the built-in score-sheet definitions per category.
	Sheets map[string]entities.ScoreSheet
	// MinDwell is the minimum scoring-session duration; a sheet completed
	// faster is rejected as implausible.
	MinDwell time.Duration
}

// StartScoring opens a judge's scoring session on an assignment.
func (uc ScoringUseCase) StartScoring(ctx context.Context, assignmentID string, judgeID string) (entities.JudgeAssignment, error) {
	var updated entities.JudgeAssignment
	err := uc.Locks.WithinScope(ctx, scoreScope(assignmentID), func(ctx context.Context) error {
		assignment, err := uc.Assignments.GetAssignment(ctx, strings.TrimSpace(assignmentID))
		if err != nil {
			return err
		}
		if !strings.EqualFold(assignment.JudgeID, strings.TrimSpace(judgeID)) {
			return domainerrors.Invariant("assignment belongs to a different judge")
		}
		if assignment.Archived {
			return domainerrors.Precondition("assignment is archived; this level has been published")
		}
		switch assignment.Status {
		case entities.AssignmentStatusCompleted:
			return domainerrors.Precondition("assignment has already been scored")
		case entities.AssignmentStatusReviewPending:
			return domainerrors.Precondition(fmt.Sprintf(
				"assignment is pending coordinator review: %s", assignment.ReviewReason,
			))
		}

		now := uc.now()
		assignment.Status = entities.AssignmentStatusInProgress
		if assignment.StartedAt == nil {
			assignment.StartedAt = &now
		}
		assignment.UpdatedAt = now
		if err := uc.Assignments.SaveAssignment(ctx, assignment); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return entities.JudgeAssignment{}, err
	}
	return updated, nil
}

// SubmitScore validates the breakdown against the category's score sheet and
// completes the assignment. Validation failures name the offending
// criterion; nothing is written on failure.
func (uc ScoringUseCase) SubmitScore(ctx context.Context, cmd SubmitScoreCommand) (entities.JudgeAssignment, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(cmd.Breakdown) == 0 {
		return entities.JudgeAssignment{}, domainerrors.Validation("score breakdown is required")
	}

	var completed entities.JudgeAssignment
	err := uc.Locks.WithinScope(ctx, scoreScope(cmd.AssignmentID), func(ctx context.Context) error {
		assignment, err := uc.Assignments.GetAssignment(ctx, strings.TrimSpace(cmd.AssignmentID))
		if err != nil {
			return err
		}
		if !strings.EqualFold(assignment.JudgeID, strings.TrimSpace(cmd.JudgeID)) {
			return domainerrors.Invariant("assignment belongs to a different judge")
		}
		if assignment.Archived {
			return domainerrors.Precondition("assignment is archived; this level has been published")
		}
		if assignment.Status == entities.AssignmentStatusReviewPending {
			return domainerrors.Precondition(fmt.Sprintf(
				"assignment is pending coordinator review: %s", assignment.ReviewReason,
			))
		}

		sheet := entities.SheetForCategory(assignment.Category, uc.Sheets)
		total, err := validateBreakdown(sheet, assignment.Section, cmd.Breakdown)
		if err != nil {
			return err
		}

		now := uc.now()
		if uc.MinDwell > 0 && assignment.StartedAt != nil && now.Sub(*assignment.StartedAt) < uc.MinDwell {
			return domainerrors.Validation(fmt.Sprintf(
				"scoring session shorter than the required minimum of %s", uc.MinDwell,
			))
		}

		assignment.Breakdown = cmd.Breakdown
		assignment.Score = total
		assignment.Comments = strings.TrimSpace(cmd.Comments)
		assignment.Status = entities.AssignmentStatusCompleted
		assignment.CompletedAt = &now
		assignment.UpdatedAt = now
		if err := uc.Assignments.SaveAssignment(ctx, assignment); err != nil {
			return err
		}
		completed = assignment

		logger.Info("score submitted",
			"event", "judging_score_submitted",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"assignment_id", assignment.AssignmentID,
			"project_id", assignment.ProjectID,
			"judge_id", assignment.JudgeID,
			"section", string(assignment.Section),
			"score", total,
		)
		return nil
	})
	if err != nil {
		return entities.JudgeAssignment{}, err
	}
	return completed, nil
}

// SetTieBreak records the manual override score that orders projects with
// equal totals. Only the override ever breaks a tie, never arbitrary order.
func (uc ScoringUseCase) SetTieBreak(ctx context.Context, actorID string, projectID string, override float64) error {
	actor, err := uc.Judges.GetJudge(ctx, strings.TrimSpace(actorID))
	if err != nil {
		return err
	}
	if _, ok := actor.Role.AdminScope(); !ok {
		return domainerrors.Invariant(fmt.Sprintf(
			"user %s holds no administrative role and cannot resolve ties", actor.Name,
		))
	}
	project, err := uc.Projects.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return err
	}
	now := uc.now()
	project.TieBreakScore = &override
	project.UpdatedAt = now
	if err := uc.Projects.SaveProject(ctx, project); err != nil {
		return err
	}
	uc.appendAudit(ctx, "tie_break_recorded", actor, map[string]any{
		"project_id": project.ProjectID,
		"category":   project.Category,
		"override":   override,
	})
	return nil
}

// SweepConflicts force-marks review-pending every completed or active
// assignment held by a regular judge from the project's own school. The
// aggregator excludes them either way; the sweep persists the status so
// coordinators see the queue.
func (uc ScoringUseCase) SweepConflicts(ctx context.Context, actorID string, level entities.CompetitionLevel) (int, error) {
	logger := application.ResolveLogger(uc.Logger)
	actor, err := uc.Judges.GetJudge(ctx, strings.TrimSpace(actorID))
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, category := range entities.Categories() {
		assignments, err := uc.Assignments.ListCategoryAssignments(ctx, category, level)
		if err != nil {
			return flagged, err
		}
		if len(assignments) == 0 {
			continue
		}
		coordinators := entities.CoordinatorSet(assignments)

		for _, assignment := range assignments {
			if assignment.Archived || coordinators[assignment.JudgeID] {
				continue
			}
			if assignment.Status == entities.AssignmentStatusReviewPending {
				continue
			}
			judge, err := uc.Judges.GetJudge(ctx, assignment.JudgeID)
			if err != nil {
				if domainerrors.KindOf(err) == domainerrors.KindNotFound {
					continue
				}
				return flagged, err
			}
			project, err := uc.Projects.GetProject(ctx, assignment.ProjectID)
			if err != nil {
				if domainerrors.KindOf(err) == domainerrors.KindNotFound {
					continue
				}
				return flagged, err
			}
			school := strings.TrimSpace(judge.School)
			if school == "" || !strings.EqualFold(school, strings.TrimSpace(project.Geography.School)) {
				continue
			}

			now := uc.now()
			assignment.Status = entities.AssignmentStatusReviewPending
			assignment.ReviewReason = fmt.Sprintf(
				"judge shares school %q with the project; coordinator adjudication required", judge.School,
			)
			assignment.UpdatedAt = now
			if err := uc.Assignments.SaveAssignment(ctx, assignment); err != nil {
				return flagged, err
			}
			flagged++

			uc.appendAudit(ctx, "conflict_of_interest_flagged", actor, map[string]any{
				"assignment_id": assignment.AssignmentID,
				"judge_id":      assignment.JudgeID,
				"project_id":    assignment.ProjectID,
				"category":      assignment.Category,
				"level":         level.String(),
			})
		}
	}

	if flagged > 0 {
		logger.Info("conflict sweep completed",
			"event", "judging_conflict_sweep_completed",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"level", level.String(),
			"flagged_count", flagged,
		)
	}
	return flagged, nil
}

func (uc ScoringUseCase) appendAudit(ctx context.Context, action string, actor entities.Judge, detail map[string]any) {
	if uc.Audit == nil {
		return
	}
	entry := entities.AuditEntry{
		Action:           action,
		PerformingUserID: actor.JudgeID,
		Scope:            actor.WorkGeography,
		Detail:           detail,
		OccurredAt:       uc.now(),
	}
	if err := uc.Audit.AppendAudit(ctx, entry); err != nil {
		application.ResolveLogger(uc.Logger).Warn("audit append failed",
			"event", "judging_audit_append_failed",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"action", action,
			"error", err.Error(),
		)
	}
}

func (uc ScoringUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// validateBreakdown checks every submitted criterion against the sheet:
// known key, within range, on the step grid. Returns the section total.
func validateBreakdown(
	sheet entities.ScoreSheet,
	section entities.Section,
	breakdown map[string]float64,
) (float64, error) {
	criteria := sheet.Criteria[section]
	byKey := make(map[string]entities.Criterion, len(criteria))
	for _, criterion := range criteria {
		byKey[criterion.Key] = criterion
	}

	var total float64
	for key, value := range breakdown {
		criterion, ok := byKey[strings.TrimSpace(key)]
		if !ok {
			return 0, domainerrors.Validation(fmt.Sprintf(
				"criterion %q is not on the %s score sheet", key, sheet.Category,
			))
		}
		if value < 0 || value > criterion.Max {
			return 0, domainerrors.Validation(fmt.Sprintf(
				"%s must be between 0 and %g", criterion.Label, criterion.Max,
			))
		}
		if criterion.Step > 0 {
			steps := value / criterion.Step
			if math.Abs(steps-math.Round(steps)) > 1e-9 {
				return 0, domainerrors.Validation(fmt.Sprintf(
					"%s must be scored in steps of %g", criterion.Label, criterion.Step,
				))
			}
		}
		total += value
	}
	for _, criterion := range criteria {
		if _, ok := breakdown[criterion.Key]; !ok {
			return 0, domainerrors.Validation(fmt.Sprintf(
				"%s is missing from the submitted breakdown", criterion.Label,
			))
		}
	}
	return total, nil
}

func scoreScope(assignmentID string) string {
	return "score:" + strings.TrimSpace(assignmentID)
}
