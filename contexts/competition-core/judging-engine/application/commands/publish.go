package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "galileo/contexts/competition-core/judging-engine/application"
	"galileo/contexts/competition-core/judging-engine/application/queries"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// PublishLevelCommand finalizes one level: promote the top band per
// category, eliminate the rest, archive spent assignments.
type PublishLevelCommand struct {
	ActorID string
	Level   entities.CompetitionLevel
}

// UnpublishLevelCommand reverses a publish, permitted only before any
// next-level judging begins.
type UnpublishLevelCommand struct {
	ActorID string
	Level   entities.CompetitionLevel
}

// PublishResult summarizes the applied promotion.
type PublishResult struct {
	Level         entities.CompetitionLevel
	Final         bool
	PromotedIDs   map[string][]string
	EliminatedIDs map[string][]string
	ArchivedCount int
}

// CategoryReadiness is the dashboard view of one category's promotion state
// and whatever currently blocks publication.
type CategoryReadiness struct {
	Category string
	State    entities.PublishState
	Blockers []string
	Ties     []queries.TieGroup
}

// PromotionUseCase is the Promotion Controller state machine. Preconditions
// are re-evaluated inside the cohort's critical section, and the whole
// effect is applied through the PromotionStore all-or-nothing.
type PromotionUseCase struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	States      ports.PublishStateRepository
	Promotions  ports.PromotionStore
	Rankings    queries.RankUseCase
	Locks       ports.ScopeLocker
	Audit       ports.AuditWriter
	Clock       ports.Clock
	Policy      entities.ScoringPolicy
	Logger      *slog.Logger
}

// Publish promotes the top band per category to the next level, eliminates
// the remaining cohort projects at this level, and archives every
// non-archived assignment of the cohort. At NATIONAL it finalizes placements
// instead; that action is irreversible.
func (uc PromotionUseCase) Publish(ctx context.Context, cmd PublishLevelCommand) (PublishResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Level.IsValid() {
		return PublishResult{}, domainerrors.Validation("unknown competition level")
	}

	var result PublishResult
	err := uc.Locks.WithinScope(ctx, publishScope(cmd.Level), func(ctx context.Context) error {
		actor, err := uc.requireAdmin(ctx, cmd.ActorID, "publish results")
		if err != nil {
			return err
		}

		cohort, err := uc.Projects.ListCohort(ctx, cmd.Level)
		if err != nil {
			return err
		}
		if len(cohort) == 0 {
			return domainerrors.Precondition(fmt.Sprintf(
				"no projects are competing at the %s level", cmd.Level,
			))
		}

		ranking, err := uc.Rankings.RankCohort(ctx, cohort, cmd.Level)
		if err != nil {
			return err
		}
		if err := uc.rejectRepublish(ctx, ranking, cmd.Level); err != nil {
			return err
		}

		now := uc.now()
		policy := uc.Policy.Normalize()
		if blocked := uc.recordReadiness(ctx, ranking, cmd.Level, now); blocked != nil {
			return blocked
		}

		change, summary := buildPublishChange(ranking, cmd.Level, policy, now)
		archivedIDs, assignmentProjects, err := uc.collectActiveAssignmentIDs(ctx, cohort, cmd.Level)
		if err != nil {
			return err
		}
		change.ArchiveAssignmentIDs = archivedIDs
		for i := range change.Records {
			change.Records[i].ArchivedAssignmentIDs = assignmentIDsForProjects(
				archivedIDs, assignmentProjects, summary.categoryProjects[change.Records[i].Category],
			)
		}

		if err := uc.Promotions.ApplyPromotion(ctx, change); err != nil {
			return err
		}

		result = PublishResult{
			Level:         cmd.Level,
			Final:         summary.final,
			PromotedIDs:   summary.promoted,
			EliminatedIDs: summary.eliminated,
			ArchivedCount: len(archivedIDs),
		}

		uc.appendAudit(ctx, "level_published", actor, map[string]any{
			"level":          cmd.Level.String(),
			"final":          summary.final,
			"categories":     len(summary.promoted),
			"archived_count": len(archivedIDs),
		})
		logger.Info("level published",
			"event", "judging_level_published",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"level", cmd.Level.String(),
			"final", summary.final,
			"archived_count", len(archivedIDs),
		)
		return nil
	})
	if err != nil {
		return PublishResult{}, err
	}
	return result, nil
}

// Unpublish reverses the corresponding publish. The sole guard, zero
// non-archived assignments at the next level, is re-checked inside the same
// atomic change that performs the rollback, so a judge starting next-level
// work mid-operation fails the rollback cleanly.
func (uc PromotionUseCase) Unpublish(ctx context.Context, cmd UnpublishLevelCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Level.IsValid() {
		return domainerrors.Validation("unknown competition level")
	}
	next, ok := cmd.Level.Next()
	if !ok {
		return domainerrors.Precondition("national results are final and cannot be unpublished")
	}

	return uc.Locks.WithinScope(ctx, publishScope(cmd.Level), func(ctx context.Context) error {
		actor, err := uc.requireAdmin(ctx, cmd.ActorID, "unpublish results")
		if err != nil {
			return err
		}

		records, err := uc.States.ListPublishRecords(ctx, cmd.Level)
		if err != nil {
			return err
		}
		var published []entities.PublishRecord
		for _, record := range records {
			if record.State == entities.PublishStatePublished {
				published = append(published, record)
			}
		}
		if len(published) == 0 {
			return domainerrors.Precondition(fmt.Sprintf(
				"the %s level has not been published", cmd.Level,
			))
		}

		active, err := uc.Assignments.CountActiveAssignments(ctx, next)
		if err != nil {
			return err
		}
		if active > 0 {
			return domainerrors.Precondition(fmt.Sprintf(
				"judging has already started at the %s level; rollback is no longer possible", next,
			))
		}

		now := uc.now()
		change := ports.PromotionChange{
			Level:              cmd.Level,
			GuardNextLevelIdle: true,
		}
		for _, record := range published {
			for _, projectID := range record.PromotedProjectIDs {
				project, err := uc.Projects.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				project.CurrentLevel = cmd.Level
				project.UpdatedAt = now
				change.Projects = append(change.Projects, project)
			}
			for _, projectID := range record.EliminatedProjectIDs {
				project, err := uc.Projects.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				project.Eliminated = false
				project.EliminatedAtLevel = 0
				project.UpdatedAt = now
				change.Projects = append(change.Projects, project)
			}
			change.UnarchiveAssignmentIDs = append(change.UnarchiveAssignmentIDs, record.ArchivedAssignmentIDs...)

			record.State = entities.PublishStateRolledBack
			record.UpdatedAt = now
			change.Records = append(change.Records, record)
		}

		if err := uc.Promotions.ApplyPromotion(ctx, change); err != nil {
			return err
		}

		uc.appendAudit(ctx, "level_unpublished", actor, map[string]any{
			"level":      cmd.Level.String(),
			"categories": len(published),
		})
		logger.Info("level unpublished",
			"event", "judging_level_unpublished",
			"module", "competition-core/judging-engine",
			"layer", "application",
			"level", cmd.Level.String(),
			"categories", len(published),
		)
		return nil
	})
}

// Readiness reports each category's promotion state and current blockers
// without mutating anything.
func (uc PromotionUseCase) Readiness(ctx context.Context, level entities.CompetitionLevel) ([]CategoryReadiness, error) {
	if !level.IsValid() {
		return nil, domainerrors.Validation("unknown competition level")
	}
	cohort, err := uc.Projects.ListCohort(ctx, level)
	if err != nil {
		return nil, err
	}
	ranking, err := uc.Rankings.RankCohort(ctx, cohort, level)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]entities.PublishState)
	records, err := uc.States.ListPublishRecords(ctx, level)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		stored[record.Category] = record.State
	}

	return summarizeReadiness(ranking, stored), nil
}

// recordReadiness persists the state machine position for every category
// and returns the blocking failure when the cohort is not publishable.
func (uc PromotionUseCase) recordReadiness(
	ctx context.Context,
	ranking queries.RankingResult,
	level entities.CompetitionLevel,
	now time.Time,
) error {
	readiness := summarizeReadiness(ranking, nil)

	var reasons []string
	for _, category := range readiness {
		if category.State == entities.PublishStateReadyToPublish {
			continue
		}
		reasons = append(reasons, category.Blockers...)
	}

	for _, category := range readiness {
		record := entities.PublishRecord{
			Category:  category.Category,
			Level:     level,
			State:     category.State,
			UpdatedAt: now,
		}
		if len(reasons) > 0 {
			// Persist TiesPending/InProgress so dashboards see why the
			// level is stuck; publish itself has not happened.
			if err := uc.States.SavePublishRecord(ctx, record); err != nil {
				return err
			}
		}
	}

	if len(reasons) > 0 {
		return domainerrors.Precondition(strings.Join(reasons, "; "))
	}
	return nil
}

// rejectRepublish blocks publishing a category whose results at this level
// are already live. Re-archiving an already published cohort would double
// promotions at NATIONAL, where finalists stay in the cohort; the path back
// is Unpublish, which moves the record to rolled_back.
func (uc PromotionUseCase) rejectRepublish(
	ctx context.Context,
	ranking queries.RankingResult,
	level entities.CompetitionLevel,
) error {
	seen := make(map[string]bool)
	for _, entry := range ranking.Projects {
		category := entry.Project.Category
		if seen[category] {
			continue
		}
		seen[category] = true

		record, ok, err := uc.States.GetPublishRecord(ctx, category, level)
		if err != nil {
			return err
		}
		if ok && record.State == entities.PublishStatePublished {
			return domainerrors.Precondition(fmt.Sprintf(
				"category %q has already been published at the %s level", category, level,
			))
		}
	}
	return nil
}

func (uc PromotionUseCase) collectActiveAssignmentIDs(
	ctx context.Context,
	cohort []entities.Project,
	level entities.CompetitionLevel,
) ([]string, map[string]string, error) {
	var ids []string
	assignmentProjects := make(map[string]string)
	for _, project := range cohort {
		assignments, err := uc.Assignments.ListProjectAssignments(ctx, project.ProjectID, level)
		if err != nil {
			return nil, nil, err
		}
		for _, assignment := range assignments {
			if !assignment.Archived {
				ids = append(ids, assignment.AssignmentID)
				assignmentProjects[assignment.AssignmentID] = assignment.ProjectID
			}
		}
	}
	sort.Strings(ids)
	return ids, assignmentProjects, nil
}

func (uc PromotionUseCase) requireAdmin(ctx context.Context, actorID string, action string) (entities.Judge, error) {
	actor, err := uc.Judges.GetJudge(ctx, strings.TrimSpace(actorID))
	if err != nil {
		return entities.Judge{}, err
	}
	if _, ok := actor.Role.AdminScope(); !ok {
		return entities.Judge{}, domainerrors.Invariant(fmt.Sprintf(
			"user %s holds no administrative role and cannot %s", actor.Name, action,
		))
	}
	return actor, nil
}

func (uc PromotionUseCase) appendAudit(ctx context.Context, action string, actor entities.Judge, detail map[string]any) {
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

func (uc PromotionUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

type publishSummary struct {
	final            bool
	promoted         map[string][]string
	eliminated       map[string][]string
	categoryProjects map[string]map[string]bool
}

// buildPublishChange turns a clean ranking into the project mutations and
// state records of a publish. Assignment archival is filled in by the caller.
func buildPublishChange(
	ranking queries.RankingResult,
	level entities.CompetitionLevel,
	policy entities.ScoringPolicy,
	now time.Time,
) (ports.PromotionChange, publishSummary) {
	next, hasNext := level.Next()
	summary := publishSummary{
		final:            !hasNext,
		promoted:         make(map[string][]string),
		eliminated:       make(map[string][]string),
		categoryProjects: make(map[string]map[string]bool),
	}
	change := ports.PromotionChange{Level: level}

	byCategory := make(map[string][]queries.RankedProject)
	for _, entry := range ranking.Projects {
		byCategory[entry.Project.Category] = append(byCategory[entry.Project.Category], entry)
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		group := byCategory[category]
		record := entities.PublishRecord{
			Category:  category,
			Level:     level,
			State:     entities.PublishStatePublished,
			UpdatedAt: now,
		}
		summary.categoryProjects[category] = make(map[string]bool, len(group))

		for i, entry := range group {
			project := entry.Project
			summary.categoryProjects[category][project.ProjectID] = true
			if i < policy.PromotionBand {
				if hasNext {
					project.CurrentLevel = next
				} else {
					project.Status = entities.ProjectStatusCompleted
				}
				record.PromotedProjectIDs = append(record.PromotedProjectIDs, project.ProjectID)
				summary.promoted[category] = append(summary.promoted[category], project.ProjectID)
			} else {
				project.Eliminated = true
				project.EliminatedAtLevel = level
				record.EliminatedProjectIDs = append(record.EliminatedProjectIDs, project.ProjectID)
				summary.eliminated[category] = append(summary.eliminated[category], project.ProjectID)
			}
			project.UpdatedAt = now
			change.Projects = append(change.Projects, project)
		}
		change.Records = append(change.Records, record)
	}
	return change, summary
}

func summarizeReadiness(ranking queries.RankingResult, stored map[string]entities.PublishState) []CategoryReadiness {
	tiesByCategory := make(map[string][]queries.TieGroup)
	for _, tie := range ranking.TiesToResolve {
		tiesByCategory[tie.Category] = append(tiesByCategory[tie.Category], tie)
	}

	blockersByCategory := make(map[string][]string)
	for _, entry := range ranking.Projects {
		category := entry.Project.Category
		if entry.Score.NeedsArbitration {
			blockersByCategory[category] = append(blockersByCategory[category], fmt.Sprintf(
				"project %q awaits coordinator arbitration", entry.Project.Title,
			))
		} else if !entry.Score.FullyJudged {
			blockersByCategory[category] = append(blockersByCategory[category], fmt.Sprintf(
				"project %q has not been fully judged", entry.Project.Title,
			))
		}
	}

	categories := make(map[string]bool)
	for _, entry := range ranking.Projects {
		categories[entry.Project.Category] = true
	}
	names := make([]string, 0, len(categories))
	for category := range categories {
		names = append(names, category)
	}
	sort.Strings(names)

	readiness := make([]CategoryReadiness, 0, len(names))
	for _, category := range names {
		item := CategoryReadiness{
			Category: category,
			Blockers: blockersByCategory[category],
			Ties:     tiesByCategory[category],
		}
		switch {
		case stored[category] == entities.PublishStatePublished:
			item.State = entities.PublishStatePublished
		case stored[category] == entities.PublishStateRolledBack && len(item.Blockers) == 0 && len(item.Ties) == 0:
			item.State = entities.PublishStateReadyToPublish
		case len(item.Blockers) > 0:
			item.State = entities.PublishStateInProgress
		case len(item.Ties) > 0:
			item.State = entities.PublishStateTiesPending
			for _, tie := range item.Ties {
				item.Blockers = append(item.Blockers, fmt.Sprintf(
					"category %q has an unresolved tie at rank %d", category, tie.Rank,
				))
			}
		default:
			item.State = entities.PublishStateReadyToPublish
		}
		readiness = append(readiness, item)
	}
	return readiness
}

func assignmentIDsForProjects(
	archivedIDs []string,
	assignmentProjects map[string]string,
	projects map[string]bool,
) []string {
	if len(assignmentProjects) == 0 {
		// Per-category attribution is unavailable; keep the full set on
		// each record so rollback still restores everything exactly once.
		return archivedIDs
	}
	var ids []string
	for _, id := range archivedIDs {
		if projects[assignmentProjects[id]] {
			ids = append(ids, id)
		}
	}
	return ids
}

func publishScope(level entities.CompetitionLevel) string {
	return "publish:" + level.String()
}
