package queries

import (
	"context"
	"math"
	"sort"
	"strings"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// ScoreUseCase is the Score Aggregator: a pure read over the Assignment
// Store. It never mutates; callers persist status transitions separately.
type ScoreUseCase struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	Policy      entities.ScoringPolicy
}

// ComputeScore aggregates a project's non-archived assignments at a level
// into section scores, total, judged status, and the arbitration flag.
func (uc ScoreUseCase) ComputeScore(
	ctx context.Context,
	projectID string,
	level entities.CompetitionLevel,
) (entities.ProjectScore, error) {
	project, err := uc.Projects.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return entities.ProjectScore{}, err
	}
	assignments, err := uc.Assignments.ListProjectAssignments(ctx, project.ProjectID, level)
	if err != nil {
		return entities.ProjectScore{}, err
	}
	categoryAssignments, err := uc.Assignments.ListCategoryAssignments(ctx, project.Category, level)
	if err != nil {
		return entities.ProjectScore{}, err
	}
	coordinators := entities.CoordinatorSet(categoryAssignments)

	judges := make(map[string]entities.Judge)
	for _, assignment := range assignments {
		if _, seen := judges[assignment.JudgeID]; seen {
			continue
		}
		judge, err := uc.Judges.GetJudge(ctx, assignment.JudgeID)
		if err != nil {
			if domainerrors.KindOf(err) == domainerrors.KindNotFound {
				continue
			}
			return entities.ProjectScore{}, err
		}
		judges[assignment.JudgeID] = judge
	}

	return AggregateProject(project, assignments, judges, coordinators, uc.Policy.Normalize()), nil
}

// AggregateProject is the pure aggregation core, exposed so ranking and
// publish can reuse it over preloaded data without extra repository reads.
func AggregateProject(
	project entities.Project,
	assignments []entities.JudgeAssignment,
	judges map[string]entities.Judge,
	coordinators map[string]bool,
	policy entities.ScoringPolicy,
) entities.ProjectScore {
	score := entities.ProjectScore{
		ProjectID: project.ProjectID,
		Level:     project.CurrentLevel,
		Sections:  make(map[entities.Section]entities.SectionScore, 2),
	}

	for _, section := range entities.Sections() {
		detail := aggregateSection(project, section, assignments, judges, coordinators, policy)
		score.Sections[section] = detail
		if detail.NeedsArbitration {
			score.NeedsArbitration = true
		}
	}

	partA := score.Sections[entities.SectionPartA]
	partBC := score.Sections[entities.SectionPartBC]
	score.SectionA = partA.Value()
	score.SectionBC = partBC.Value()
	if score.SectionA != nil {
		score.Total += *score.SectionA
	}
	if score.SectionBC != nil {
		score.Total += *score.SectionBC
	}

	score.FullyJudged = sectionFullyJudged(partA, policy) && sectionFullyJudged(partBC, policy)
	return score
}

func aggregateSection(
	project entities.Project,
	section entities.Section,
	assignments []entities.JudgeAssignment,
	judges map[string]entities.Judge,
	coordinators map[string]bool,
	policy entities.ScoringPolicy,
) entities.SectionScore {
	detail := entities.SectionScore{}

	type completed struct {
		judgeID     string
		score       float64
		completedAt int64
	}
	var regulars []completed

	for _, assignment := range assignments {
		if assignment.Archived || assignment.Section != section {
			continue
		}
		isCoordinator := coordinators[assignment.JudgeID]

		// Conflict of interest: a regular judge from the project's own
		// school cannot contribute; coordinators are exempt.
		if !isCoordinator {
			if judge, ok := judges[assignment.JudgeID]; ok && conflicted(judge, project) {
				detail.ConflictedJudges = append(detail.ConflictedJudges, assignment.JudgeID)
				continue
			}
		}
		if assignment.Status != entities.AssignmentStatusCompleted {
			continue
		}
		if isCoordinator {
			value := assignment.Score
			detail.CoordinatorScore = &value
			continue
		}
		at := int64(0)
		if assignment.CompletedAt != nil {
			at = assignment.CompletedAt.UnixNano()
		}
		regulars = append(regulars, completed{
			judgeID:     assignment.JudgeID,
			score:       assignment.Score,
			completedAt: at,
		})
	}

	// At most two regular judges contribute per section; the capacity
	// invariant makes more impossible, but earliest completions win if a
	// store ever violates it.
	sort.Slice(regulars, func(i, j int) bool {
		if regulars[i].completedAt == regulars[j].completedAt {
			return regulars[i].judgeID < regulars[j].judgeID
		}
		return regulars[i].completedAt < regulars[j].completedAt
	})
	if len(regulars) > policy.MinJudgesPerSection {
		regulars = regulars[:policy.MinJudgesPerSection]
	}

	var sum float64
	for _, entry := range regulars {
		detail.RegularScores = append(detail.RegularScores, entry.score)
		sum += entry.score
	}
	if len(regulars) > 0 {
		average := sum / float64(len(regulars))
		detail.Average = &average
	}

	if len(regulars) == 2 {
		diff := math.Abs(regulars[0].score - regulars[1].score)
		if diff >= policy.ArbitrationThreshold && detail.CoordinatorScore == nil {
			detail.NeedsArbitration = true
		}
	}
	if len(detail.ConflictedJudges) > 0 && detail.CoordinatorScore == nil {
		detail.NeedsArbitration = true
	}
	return detail
}

func sectionFullyJudged(detail entities.SectionScore, policy entities.ScoringPolicy) bool {
	completed := len(detail.RegularScores)
	if completed >= policy.MinJudgesPerSection {
		return true
	}
	// Understaffed jurisdictions fall back to a lower bound, honored only
	// when a coordinator has judged the section too.
	if detail.CoordinatorScore != nil && completed >= policy.MinJudgesFallback {
		return true
	}
	return false
}

func conflicted(judge entities.Judge, project entities.Project) bool {
	school := strings.TrimSpace(judge.School)
	return school != "" && strings.EqualFold(school, strings.TrimSpace(project.Geography.School))
}
