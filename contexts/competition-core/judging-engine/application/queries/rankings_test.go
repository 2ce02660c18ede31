package queries

import (
	"reflect"
	"testing"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
)

func rankedEntry(id, school, zone string, total float64, tieBreak *float64) RankedProject {
	project := testProject(id, school)
	project.Geography.Zone = zone
	project.TieBreakScore = tieBreak
	return RankedProject{
		Project: project,
		Score:   entities.ProjectScore{ProjectID: id, Total: total, FullyJudged: true},
	}
}

func TestRankScoredCompetitionRanking(t *testing.T) {
	scored := []RankedProject{
		rankedEntry("project-1", "School A", "Zone 1", 80, nil),
		rankedEntry("project-2", "School B", "Zone 1", 75, nil),
		rankedEntry("project-3", "School C", "Zone 2", 75, nil),
		rankedEntry("project-4", "School D", "Zone 2", 70, nil),
		rankedEntry("project-5", "School E", "Zone 3", 65, nil),
	}
	policy := entities.ScoringPolicy{}.Normalize()

	result := rankScored(scored, entities.LevelSubCounty, policy)
	ranks := make([]int, 0, len(result.Projects))
	for _, entry := range result.Projects {
		ranks = append(ranks, entry.Rank)
	}
	if !reflect.DeepEqual(ranks, []int{1, 2, 2, 4, 5}) {
		t.Fatalf("expected competition ranking 1,2,2,4,5, got %v", ranks)
	}

	points := make([]int, 0, len(result.Projects))
	for _, entry := range result.Projects {
		points = append(points, entry.Points)
	}
	if !reflect.DeepEqual(points, []int{12, 10, 10, 6, 0}) {
		t.Fatalf("expected points 12,10,10,6,0, got %v", points)
	}

	if len(result.TiesToResolve) != 1 {
		t.Fatalf("expected one unresolved tie inside the band, got %d", len(result.TiesToResolve))
	}
	tie := result.TiesToResolve[0]
	if tie.Rank != 2 || !reflect.DeepEqual(tie.ProjectIDs, []string{"project-2", "project-3"}) {
		t.Fatalf("unexpected tie group: %+v", tie)
	}
}

func TestRankScoredTieBreakOverrideSeparates(t *testing.T) {
	high := 8.5
	low := 7.0
	scored := []RankedProject{
		rankedEntry("project-1", "School A", "Zone 1", 75, &low),
		rankedEntry("project-2", "School B", "Zone 1", 75, &high),
	}
	policy := entities.ScoringPolicy{}.Normalize()

	result := rankScored(scored, entities.LevelSubCounty, policy)
	if result.Projects[0].Project.ProjectID != "project-2" || result.Projects[0].Rank != 1 {
		t.Fatalf("higher override must rank first, got %s at rank %d",
			result.Projects[0].Project.ProjectID, result.Projects[0].Rank)
	}
	if result.Projects[1].Rank != 2 {
		t.Fatalf("separated projects take distinct ranks, got %d", result.Projects[1].Rank)
	}
	if len(result.TiesToResolve) != 0 {
		t.Fatalf("an override resolves the tie, got %v", result.TiesToResolve)
	}
}

func TestRankScoredTieOutsideBandDoesNotBlock(t *testing.T) {
	scored := []RankedProject{
		rankedEntry("project-1", "School A", "Zone 1", 90, nil),
		rankedEntry("project-2", "School B", "Zone 1", 85, nil),
		rankedEntry("project-3", "School C", "Zone 1", 80, nil),
		rankedEntry("project-4", "School D", "Zone 1", 75, nil),
		rankedEntry("project-5", "School E", "Zone 2", 60, nil),
		rankedEntry("project-6", "School F", "Zone 2", 60, nil),
	}
	policy := entities.ScoringPolicy{}.Normalize()

	result := rankScored(scored, entities.LevelSubCounty, policy)
	if len(result.TiesToResolve) != 0 {
		t.Fatalf("ties past the promotion band never block publication, got %v", result.TiesToResolve)
	}
}

func TestRankScoredIsIdempotent(t *testing.T) {
	scored := []RankedProject{
		rankedEntry("project-1", "School A", "Zone 1", 80, nil),
		rankedEntry("project-2", "School B", "Zone 2", 75, nil),
		rankedEntry("project-3", "School C", "Zone 3", 70, nil),
	}
	policy := entities.ScoringPolicy{}.Normalize()

	first := rankScored(scored, entities.LevelSubCounty, policy)
	second := rankScored(scored, entities.LevelSubCounty, policy)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ranking the same cohort twice must produce identical output")
	}
}

func TestRollUpSumsPointsAndRanksDescending(t *testing.T) {
	scored := []RankedProject{
		rankedEntry("project-1", "School A", "Zone 1", 90, nil),
		rankedEntry("project-2", "School A", "Zone 1", 85, nil),
		rankedEntry("project-3", "School B", "Zone 2", 80, nil),
	}
	policy := entities.ScoringPolicy{}.Normalize()

	result := rankScored(scored, entities.LevelSubCounty, policy)
	if len(result.Schools) != 2 {
		t.Fatalf("expected two ranked schools, got %d", len(result.Schools))
	}
	if result.Schools[0].Name != "School A" || result.Schools[0].TotalPoints != 22 {
		t.Fatalf("School A should lead with 12+10 points, got %+v", result.Schools[0])
	}
	if result.Schools[1].Name != "School B" || result.Schools[1].TotalPoints != 8 {
		t.Fatalf("School B should hold 8 points, got %+v", result.Schools[1])
	}
	if result.Schools[0].Rank != 1 || result.Schools[1].Rank != 2 {
		t.Fatalf("roll-up ranks must be 1-based descending")
	}

	// Conservation: entity points equal the points granted to projects.
	var projectPoints, schoolPoints int
	for _, entry := range result.Projects {
		projectPoints += entry.Points
	}
	for _, school := range result.Schools {
		schoolPoints += school.TotalPoints
	}
	if projectPoints != schoolPoints {
		t.Fatalf("school roll-up lost points: projects %d vs schools %d", projectPoints, schoolPoints)
	}
}
