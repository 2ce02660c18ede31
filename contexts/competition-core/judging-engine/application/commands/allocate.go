package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "galileo/contexts/competition-core/judging-engine/application"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// AssignJudgeCommand asks for a judge to take one section of one category at
// one level. The acting admin's jurisdiction is validated first.
type AssignJudgeCommand struct {
	ActorID  string
	JudgeID  string
	Category string
	Section  entities.Section
	Level    entities.CompetitionLevel
}

// UnassignJudgeCommand removes a judge's section in a category at a level.
type UnassignJudgeCommand struct {
	ActorID  string
	JudgeID  string
	Category string
	Section  entities.Section
	Level    entities.CompetitionLevel
}

// AssignResult reports the created assignments and any role change.
type AssignResult struct {
	Assignments []entities.JudgeAssignment
	NewRole     entities.Role
}

// AllocateUseCase is the Assignment Allocator. Every invariant is checked
// before any write; failures carry a user-displayable reason.
type AllocateUseCase struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	Locks       ports.ScopeLocker
	Audit       ports.AuditWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// Assign creates one not-started assignment per cohort project for the
// requested category/section/level.
func (uc AllocateUseCase) Assign(ctx context.Context, cmd AssignJudgeCommand) (AssignResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateAllocation(cmd.JudgeID, cmd.Category, cmd.Section, cmd.Level); err != nil {
		return AssignResult{}, err
	}

	var result AssignResult
	scope := allocationScope(cmd.JudgeID, cmd.Category, cmd.Level)
	err := uc.Locks.WithinScope(ctx, scope, func(ctx context.Context) error {
		actor, judge, err := uc.loadActorAndJudge(ctx, cmd.ActorID, cmd.JudgeID)
		if err != nil {
			return err
		}
		if err := checkJurisdiction(actor, judge); err != nil {
			return err
		}

		held, err := uc.Assignments.ListJudgeAssignments(ctx, judge.JudgeID, cmd.Level)
		if err != nil {
			return err
		}
		category := normalizeCategory(cmd.Category)

		// Rule 1: the same section label cannot be held concurrently in two
		// different categories; that would double-book the judge's schedule.
		for _, assignment := range held {
			if assignment.Category != category && assignment.Section == cmd.Section {
				return domainerrors.Invariant(fmt.Sprintf(
					"judge %s already holds %s in category %q at this level",
					judge.Name, sectionLabel(cmd.Section), assignment.Category,
				))
			}
			if assignment.Category == category && assignment.Section == cmd.Section {
				return domainerrors.Invariant(fmt.Sprintf(
					"judge %s is already assigned %s in category %q",
					judge.Name, sectionLabel(cmd.Section), category,
				))
			}
		}

		categoryAssignments, err := uc.Assignments.ListCategoryAssignments(ctx, category, cmd.Level)
		if err != nil {
			return err
		}
		coordinators := entities.CoordinatorSet(categoryAssignments)

		holdsOtherSection := false
		for _, assignment := range held {
			if assignment.Category == category && assignment.Section != cmd.Section {
				holdsOtherSection = true
				break
			}
		}

		if holdsOtherSection {
			// Rule 3: taking the second section promotes to Coordinator,
			// allowed only when the seat is vacant and the judge holds
			// nothing in any other category at this level.
			for judgeID := range coordinators {
				if judgeID != judge.JudgeID {
					return domainerrors.Invariant(fmt.Sprintf(
						"category %q already has a coordinator at the %s level", category, cmd.Level,
					))
				}
			}
			for _, assignment := range held {
				if assignment.Category != category {
					return domainerrors.Invariant(fmt.Sprintf(
						"judge %s cannot coordinate %q while assigned in category %q",
						judge.Name, category, assignment.Category,
					))
				}
			}
		} else {
			// Rule 2: at most two regular judges per project-section.
			incumbents := regularSectionHolders(categoryAssignments, coordinators, cmd.Section)
			if len(incumbents) >= 2 {
				names, err := uc.judgeNames(ctx, incumbents)
				if err != nil {
					return err
				}
				return domainerrors.Invariant(fmt.Sprintf(
					"%s in category %q is fully staffed by %s",
					sectionLabel(cmd.Section), category, strings.Join(names, " and "),
				))
			}
		}

		cohort, err := uc.Projects.ListProjectsByCategory(ctx, category, cmd.Level)
		if err != nil {
			return err
		}
		if len(cohort) == 0 {
			return domainerrors.Precondition(fmt.Sprintf(
				"no projects registered for category %q at the %s level", category, cmd.Level,
			))
		}

		now := uc.now()
		created := make([]entities.JudgeAssignment, 0, len(cohort))
		for _, project := range cohort {
			assignmentID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			created = append(created, entities.JudgeAssignment{
				AssignmentID: assignmentID,
				JudgeID:      judge.JudgeID,
				ProjectID:    project.ProjectID,
				Category:     category,
				Section:      cmd.Section,
				Level:        cmd.Level,
				Status:       entities.AssignmentStatusNotStarted,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		for _, assignment := range created {
			if err := uc.Assignments.SaveAssignment(ctx, assignment); err != nil {
				return err
			}
		}

		result.Assignments = created
		result.NewRole = judge.Role
		if holdsOtherSection && judge.Role != entities.RoleCoordinator {
			judge.Role = entities.RoleCoordinator
			if err := uc.Judges.SaveJudge(ctx, judge); err != nil {
				return err
			}
			result.NewRole = entities.RoleCoordinator
		}

		uc.appendAudit(ctx, "judge_assigned", actor, map[string]any{
			"judge_id": judge.JudgeID,
			"category": category,
			"section":  string(cmd.Section),
			"level":    cmd.Level.String(),
			"projects": len(created),
		})
		logger.Info("judge assigned",
			"event", "judging_judge_assigned",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"judge_id", judge.JudgeID,
			"category", category,
			"section", string(cmd.Section),
			"level", cmd.Level.String(),
			"assignment_count", len(created),
		)
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}
	return result, nil
}

// Unassign removes the judge's non-archived assignments for the section.
// Sections with submitted scores require super-admin privilege; the caller
// sees that as a distinct blocking reason, never a silent score drop.
func (uc AllocateUseCase) Unassign(ctx context.Context, cmd UnassignJudgeCommand) (AssignResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateAllocation(cmd.JudgeID, cmd.Category, cmd.Section, cmd.Level); err != nil {
		return AssignResult{}, err
	}

	var result AssignResult
	scope := allocationScope(cmd.JudgeID, cmd.Category, cmd.Level)
	err := uc.Locks.WithinScope(ctx, scope, func(ctx context.Context) error {
		actor, judge, err := uc.loadActorAndJudge(ctx, cmd.ActorID, cmd.JudgeID)
		if err != nil {
			return err
		}
		if err := checkJurisdiction(actor, judge); err != nil {
			return err
		}

		held, err := uc.Assignments.ListJudgeAssignments(ctx, judge.JudgeID, cmd.Level)
		if err != nil {
			return err
		}
		category := normalizeCategory(cmd.Category)

		var removing []entities.JudgeAssignment
		remainingSections := make(map[entities.Section]bool)
		for _, assignment := range held {
			if assignment.Category != category {
				continue
			}
			if assignment.Section == cmd.Section {
				removing = append(removing, assignment)
			} else {
				remainingSections[assignment.Section] = true
			}
		}
		if len(removing) == 0 {
			return domainerrors.NotFound(fmt.Sprintf(
				"judge %s holds no %s assignments in category %q at the %s level",
				judge.Name, sectionLabel(cmd.Section), category, cmd.Level,
			))
		}

		hasScores := false
		for _, assignment := range removing {
			if assignment.Status == entities.AssignmentStatusCompleted || assignment.Score > 0 {
				hasScores = true
				break
			}
		}
		if hasScores && !actor.Role.IsSuperAdmin() {
			return domainerrors.Invariant(fmt.Sprintf(
				"scores have been submitted for %s in category %q; removing them requires super-admin privilege",
				sectionLabel(cmd.Section), category,
			))
		}

		ids := make([]string, 0, len(removing))
		for _, assignment := range removing {
			ids = append(ids, assignment.AssignmentID)
		}
		if err := uc.Assignments.DeleteAssignments(ctx, ids); err != nil {
			return err
		}

		// Rule 4: dropping below both sections demotes a coordinator back
		// to judge; admin roles are left untouched.
		result.NewRole = judge.Role
		if judge.Role == entities.RoleCoordinator && len(remainingSections) < 2 {
			judge.Role = entities.RoleJudge
			if err := uc.Judges.SaveJudge(ctx, judge); err != nil {
				return err
			}
			result.NewRole = entities.RoleJudge
		}

		uc.appendAudit(ctx, "judge_unassigned", actor, map[string]any{
			"judge_id":       judge.JudgeID,
			"category":       category,
			"section":        string(cmd.Section),
			"level":          cmd.Level.String(),
			"removed_count":  len(ids),
			"had_scores":     hasScores,
			"acting_as_role": string(actor.Role),
		})
		logger.Info("judge unassigned",
			"event", "judging_judge_unassigned",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"judge_id", judge.JudgeID,
			"category", category,
			"section", string(cmd.Section),
			"level", cmd.Level.String(),
			"removed_count", len(ids),
		)
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}
	return result, nil
}

func (uc AllocateUseCase) loadActorAndJudge(
	ctx context.Context,
	actorID string,
	judgeID string,
) (entities.Judge, entities.Judge, error) {
	actor, err := uc.Judges.GetJudge(ctx, strings.TrimSpace(actorID))
	if err != nil {
		return entities.Judge{}, entities.Judge{}, err
	}
	judge, err := uc.Judges.GetJudge(ctx, strings.TrimSpace(judgeID))
	if err != nil {
		return entities.Judge{}, entities.Judge{}, err
	}
	return actor, judge, nil
}

func (uc AllocateUseCase) judgeNames(ctx context.Context, judgeIDs []string) ([]string, error) {
	sort.Strings(judgeIDs)
	names := make([]string, 0, len(judgeIDs))
	for _, judgeID := range judgeIDs {
		judge, err := uc.Judges.GetJudge(ctx, judgeID)
		if err != nil {
			if domainerrors.KindOf(err) == domainerrors.KindNotFound {
				names = append(names, judgeID)
				continue
			}
			return nil, err
		}
		names = append(names, judge.Name)
	}
	return names, nil
}

func (uc AllocateUseCase) appendAudit(ctx context.Context, action string, actor entities.Judge, detail map[string]any) {
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

func (uc AllocateUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// checkJurisdiction rejects admins acting outside the judge's work
// geography before any other rule is evaluated.
func checkJurisdiction(actor entities.Judge, judge entities.Judge) error {
	scope, ok := actor.Role.AdminScope()
	if !ok {
		return domainerrors.Invariant(fmt.Sprintf(
			"user %s holds no administrative role and cannot manage assignments", actor.Name,
		))
	}
	if !actor.WorkGeography.Matches(judge.WorkGeography, scope) {
		return domainerrors.Invariant(fmt.Sprintf(
			"judge %s works outside your %s jurisdiction", judge.Name, scope,
		))
	}
	return nil
}

func regularSectionHolders(
	assignments []entities.JudgeAssignment,
	coordinators map[string]bool,
	section entities.Section,
) []string {
	seen := make(map[string]bool)
	var holders []string
	for _, assignment := range assignments {
		if assignment.Section != section || assignment.Archived {
			continue
		}
		if coordinators[assignment.JudgeID] || seen[assignment.JudgeID] {
			continue
		}
		seen[assignment.JudgeID] = true
		holders = append(holders, assignment.JudgeID)
	}
	return holders
}

func validateAllocation(judgeID, category string, section entities.Section, level entities.CompetitionLevel) error {
	if strings.TrimSpace(judgeID) == "" {
		return domainerrors.Validation("judge id is required")
	}
	if !entities.IsKnownCategory(category) {
		return domainerrors.Validation(fmt.Sprintf("unknown category %q", strings.TrimSpace(category)))
	}
	if section != entities.SectionPartA && section != entities.SectionPartBC {
		return domainerrors.Validation("section must be Part A or Part B & C")
	}
	if !level.IsValid() {
		return domainerrors.Validation("unknown competition level")
	}
	return nil
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func sectionLabel(section entities.Section) string {
	if section == entities.SectionPartA {
		return "Part A"
	}
	return "Part B & C"
}

func allocationScope(judgeID, category string, level entities.CompetitionLevel) string {
	return "allocate:" + strings.TrimSpace(judgeID) + ":" + normalizeCategory(category) + ":" + level.String()
}
