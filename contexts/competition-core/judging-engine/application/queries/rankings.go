package queries

import (
	"context"
	"sort"
	"strings"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
)

// RankedProject pairs a cohort project with its computed score, category
// rank, and competition points.
type RankedProject struct {
	Project entities.Project
	Score   entities.ProjectScore
	Rank    int
	Points  int
}

// TieGroup reports projects sharing a rank inside the promotion band with no
// tie-break override to separate them. Publication blocks until resolved.
type TieGroup struct {
	Category   string
	Rank       int
	ProjectIDs []string
}

// RankingResult is the full Ranking Engine output for one level cohort.
type RankingResult struct {
	Level         entities.CompetitionLevel
	Projects      []RankedProject
	TiesToResolve []TieGroup
	Schools       []entities.RankedEntity
	Zones         []entities.RankedEntity
	SubCounties   []entities.RankedEntity
	Counties      []entities.RankedEntity
	Regions       []entities.RankedEntity
}

// RankUseCase is the Ranking Engine. It is stateless and idempotent: the
// same cohort always produces the same output, and nothing is cached.
type RankUseCase struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	Policy      entities.ScoringPolicy
}

// RankLevel loads the cohort at a level and ranks it.
func (uc RankUseCase) RankLevel(ctx context.Context, level entities.CompetitionLevel) (RankingResult, error) {
	if !level.IsValid() {
		return RankingResult{}, domainerrors.Validation("unknown competition level")
	}
	cohort, err := uc.Projects.ListCohort(ctx, level)
	if err != nil {
		return RankingResult{}, err
	}
	return uc.RankCohort(ctx, cohort, level)
}

// RankCohort ranks an explicit project cohort at a level.
func (uc RankUseCase) RankCohort(
	ctx context.Context,
	cohort []entities.Project,
	level entities.CompetitionLevel,
) (RankingResult, error) {
	policy := uc.Policy.Normalize()

	coordinatorsByCategory := make(map[string]map[string]bool)
	judges := make(map[string]entities.Judge)

	scored := make([]RankedProject, 0, len(cohort))
	for _, project := range cohort {
		assignments, err := uc.Assignments.ListProjectAssignments(ctx, project.ProjectID, level)
		if err != nil {
			return RankingResult{}, err
		}
		coordinators, ok := coordinatorsByCategory[project.Category]
		if !ok {
			categoryAssignments, err := uc.Assignments.ListCategoryAssignments(ctx, project.Category, level)
			if err != nil {
				return RankingResult{}, err
			}
			coordinators = entities.CoordinatorSet(categoryAssignments)
			coordinatorsByCategory[project.Category] = coordinators
		}
		for _, assignment := range assignments {
			if _, seen := judges[assignment.JudgeID]; seen {
				continue
			}
			judge, err := uc.Judges.GetJudge(ctx, assignment.JudgeID)
			if err != nil {
				if domainerrors.KindOf(err) == domainerrors.KindNotFound {
					continue
				}
				return RankingResult{}, err
			}
			judges[assignment.JudgeID] = judge
		}
		scored = append(scored, RankedProject{
			Project: project,
			Score:   AggregateProject(project, assignments, judges, coordinators, policy),
		})
	}

	result := rankScored(scored, level, policy)
	return result, nil
}

// rankScored is the pure ranking core: category ranks, points, tie
// detection, and the geographic roll-up.
func rankScored(
	scored []RankedProject,
	level entities.CompetitionLevel,
	policy entities.ScoringPolicy,
) RankingResult {
	byCategory := make(map[string][]RankedProject)
	for _, entry := range scored {
		byCategory[entry.Project.Category] = append(byCategory[entry.Project.Category], entry)
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	result := RankingResult{Level: level}
	for _, category := range categories {
		group := byCategory[category]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Score.Total != group[j].Score.Total {
				return group[i].Score.Total > group[j].Score.Total
			}
			// Ties are broken only by the explicit per-project override.
			oi := tieBreak(group[i].Project)
			oj := tieBreak(group[j].Project)
			if oi != oj {
				return oi > oj
			}
			return group[i].Project.ProjectID < group[j].Project.ProjectID
		})

		// Standard competition ranking: equal (total, override) pairs share
		// a rank and the following rank is skipped.
		for i := range group {
			if i > 0 && sameStanding(group[i], group[i-1]) {
				group[i].Rank = group[i-1].Rank
			} else {
				group[i].Rank = i + 1
			}
			group[i].Points = policy.PointsForRank(group[i].Rank)
		}

		result.TiesToResolve = append(result.TiesToResolve, unresolvedTies(category, group, policy.PromotionBand)...)
		result.Projects = append(result.Projects, group...)
	}

	result.Schools = rollUp(result.Projects, func(p entities.Project) string { return p.Geography.School })
	result.Zones = rollUp(result.Projects, func(p entities.Project) string { return p.Geography.Zone })
	result.SubCounties = rollUp(result.Projects, func(p entities.Project) string { return p.Geography.SubCounty })
	result.Counties = rollUp(result.Projects, func(p entities.Project) string { return p.Geography.County })
	result.Regions = rollUp(result.Projects, func(p entities.Project) string { return p.Geography.Region })
	return result
}

func tieBreak(project entities.Project) float64 {
	if project.TieBreakScore == nil {
		return 0
	}
	return *project.TieBreakScore
}

func sameStanding(a, b RankedProject) bool {
	return a.Score.Total == b.Score.Total && tieBreak(a.Project) == tieBreak(b.Project)
}

func unresolvedTies(category string, group []RankedProject, band int) []TieGroup {
	byRank := make(map[int][]string)
	for _, entry := range group {
		if entry.Rank > band {
			continue
		}
		byRank[entry.Rank] = append(byRank[entry.Rank], entry.Project.ProjectID)
	}
	ranks := make([]int, 0, len(byRank))
	for rank, ids := range byRank {
		if len(ids) > 1 {
			ranks = append(ranks, rank)
		}
	}
	sort.Ints(ranks)

	ties := make([]TieGroup, 0, len(ranks))
	for _, rank := range ranks {
		ids := byRank[rank]
		sort.Strings(ids)
		ties = append(ties, TieGroup{Category: category, Rank: rank, ProjectIDs: ids})
	}
	return ties
}

// rollUp sums project points into a named entity and ranks the aggregate
// descending by total, ties broken by stable name ordering.
func rollUp(projects []RankedProject, keyOf func(entities.Project) string) []entities.RankedEntity {
	totals := make(map[string]int)
	for _, entry := range projects {
		name := strings.TrimSpace(keyOf(entry.Project))
		if name == "" {
			continue
		}
		totals[name] += entry.Points
	}

	items := make([]entities.RankedEntity, 0, len(totals))
	for name, total := range totals {
		items = append(items, entities.RankedEntity{Name: name, TotalPoints: total})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TotalPoints != items[j].TotalPoints {
			return items[i].TotalPoints > items[j].TotalPoints
		}
		return items[i].Name < items[j].Name
	})
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}
