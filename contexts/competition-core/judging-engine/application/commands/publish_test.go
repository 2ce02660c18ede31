package commands

import (
	"context"
	"fmt"
	"testing"
	"time"

	"galileo/contexts/competition-core/judging-engine/adapters/memory"
	"galileo/contexts/competition-core/judging-engine/application/queries"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
)

// seedPublishCohort seeds one physics cohort at sub-county with the given
// project totals. Every project carries two completed regular scores per
// section, so the cohort is fully judged with zero spread.
func seedPublishCohort(t *testing.T, totals []float64) *memory.Store {
	t.Helper()
	store := memory.NewStore()

	store.SeedJudge(entities.Judge{
		JudgeID:       "admin-1",
		Name:          "Achieng Odhiambo",
		Role:          entities.RoleSubCountyAdmin,
		WorkGeography: testGeo,
	})
	panel := []string{"pa-1", "pa-2", "pb-1", "pb-2"}
	for _, id := range panel {
		store.SeedJudge(entities.Judge{
			JudgeID:       id,
			Name:          "Panel " + id,
			Role:          entities.RoleJudge,
			School:        "Kibarani Secondary",
			WorkGeography: testGeo,
		})
	}

	completedAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	for i, total := range totals {
		projectID := fmt.Sprintf("project-%d", i+1)
		geo := testGeo
		geo.School = fmt.Sprintf("School %d", i+1)
		store.SeedProject(entities.Project{
			ProjectID:    projectID,
			Title:        "Project " + projectID,
			Category:     "physics",
			CurrentLevel: entities.LevelSubCounty,
			Geography:    geo,
		})

		partA := 20.0
		partBC := total - partA
		panelSections := map[string]entities.Section{
			"pa-1": entities.SectionPartA, "pa-2": entities.SectionPartA,
			"pb-1": entities.SectionPartBC, "pb-2": entities.SectionPartBC,
		}
		for judgeID, section := range panelSections {
			score := partA
			if section == entities.SectionPartBC {
				score = partBC
			}
			at := completedAt
			store.SeedAssignment(entities.JudgeAssignment{
				AssignmentID: fmt.Sprintf("%s:%s", judgeID, projectID),
				JudgeID:      judgeID,
				ProjectID:    projectID,
				Category:     "physics",
				Section:      section,
				Level:        entities.LevelSubCounty,
				Status:       entities.AssignmentStatusCompleted,
				Score:        score,
				CompletedAt:  &at,
			})
		}
	}
	return store
}

func promotionUseCase(store *memory.Store, clock *fakeClock) PromotionUseCase {
	policy := entities.ScoringPolicy{}.Normalize()
	return PromotionUseCase{
		Projects:    store,
		Assignments: store,
		Judges:      store,
		States:      store,
		Promotions:  store,
		Rankings: queries.RankUseCase{
			Projects:    store,
			Assignments: store,
			Judges:      store,
			Policy:      policy,
		},
		Locks:  store,
		Audit:  store,
		Clock:  clock,
		Policy: policy,
	}
}

func TestPublishPromotesBandAndArchives(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 50, 45, 40})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	result, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if result.Final {
		t.Fatalf("sub-county publication is never final")
	}
	if len(result.PromotedIDs["physics"]) != 4 || len(result.EliminatedIDs["physics"]) != 1 {
		t.Fatalf("expected 4 promoted and 1 eliminated, got %+v", result)
	}
	if result.ArchivedCount != 20 {
		t.Fatalf("every cohort assignment archives, got %d", result.ArchivedCount)
	}

	for i := 1; i <= 4; i++ {
		project, err := store.GetProject(context.Background(), fmt.Sprintf("project-%d", i))
		if err != nil {
			t.Fatalf("get project failed: %v", err)
		}
		if project.CurrentLevel != entities.LevelCounty || project.Eliminated {
			t.Fatalf("top-band projects move to county, got %+v", project)
		}
	}
	last, err := store.GetProject(context.Background(), "project-5")
	if err != nil {
		t.Fatalf("get project failed: %v", err)
	}
	if !last.Eliminated || last.EliminatedAtLevel != entities.LevelSubCounty || last.CurrentLevel != entities.LevelSubCounty {
		t.Fatalf("the project past the band is eliminated in place, got %+v", last)
	}

	active, err := store.CountActiveAssignments(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("count assignments failed: %v", err)
	}
	if active != 0 {
		t.Fatalf("published levels keep no active assignments, got %d", active)
	}

	records, err := store.ListPublishRecords(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("list publish records failed: %v", err)
	}
	if len(records) != 1 || records[0].State != entities.PublishStatePublished {
		t.Fatalf("expected one published record, got %+v", records)
	}
}

func TestPublishBlocksOnTieInsideBand(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 55, 45, 40})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	_, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	})
	if domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("an unresolved tie inside the band blocks publication, got %v", err)
	}

	records, err := store.ListPublishRecords(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("list publish records failed: %v", err)
	}
	if len(records) != 1 || records[0].State != entities.PublishStateTiesPending {
		t.Fatalf("the blocked state persists for dashboards, got %+v", records)
	}

	project, err := store.GetProject(context.Background(), "project-1")
	if err != nil {
		t.Fatalf("get project failed: %v", err)
	}
	if project.CurrentLevel != entities.LevelSubCounty {
		t.Fatalf("a blocked publish moves no projects, got %s", project.CurrentLevel)
	}
}

func TestPublishBlocksOnIncompleteJudging(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 50, 45, 40})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	stalled, err := store.GetAssignment(context.Background(), "pb-1:project-3")
	if err != nil {
		t.Fatalf("get assignment failed: %v", err)
	}
	stalled.Status = entities.AssignmentStatusInProgress
	stalled.Score = 0
	stalled.CompletedAt = nil
	if err := store.SaveAssignment(context.Background(), stalled); err != nil {
		t.Fatalf("save assignment failed: %v", err)
	}

	_, err = uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	})
	if domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("an unjudged project blocks publication, got %v", err)
	}

	readiness, err := uc.Readiness(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("readiness failed: %v", err)
	}
	if len(readiness) != 1 || readiness[0].State != entities.PublishStateInProgress {
		t.Fatalf("the category reports in progress, got %+v", readiness)
	}
	if len(readiness[0].Blockers) == 0 {
		t.Fatalf("readiness must name the blocking project")
	}
}

func TestUnpublishRestoresTheLevelVerbatim(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 50, 45, 40})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	if _, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := uc.Unpublish(context.Background(), UnpublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	}); err != nil {
		t.Fatalf("unpublish failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		project, err := store.GetProject(context.Background(), fmt.Sprintf("project-%d", i))
		if err != nil {
			t.Fatalf("get project failed: %v", err)
		}
		if project.CurrentLevel != entities.LevelSubCounty || project.Eliminated {
			t.Fatalf("rollback restores the pre-publish cohort, got %+v", project)
		}
	}

	active, err := store.CountActiveAssignments(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("count assignments failed: %v", err)
	}
	if active != 20 {
		t.Fatalf("rollback unarchives every assignment, got %d active", active)
	}

	records, err := store.ListPublishRecords(context.Background(), entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("list publish records failed: %v", err)
	}
	if len(records) != 1 || records[0].State != entities.PublishStateRolledBack {
		t.Fatalf("the record moves to rolled back, got %+v", records)
	}

	// A rolled-back level can publish again.
	if _, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	}); err != nil {
		t.Fatalf("republish after rollback failed: %v", err)
	}
}

func TestUnpublishBlockedOnceNextLevelJudgingStarts(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 50, 45, 40})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	if _, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	store.SeedAssignment(entities.JudgeAssignment{
		AssignmentID: "pa-1:project-1:county",
		JudgeID:      "pa-1",
		ProjectID:    "project-1",
		Category:     "physics",
		Section:      entities.SectionPartA,
		Level:        entities.LevelCounty,
		Status:       entities.AssignmentStatusNotStarted,
	})

	err := uc.Unpublish(context.Background(), UnpublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelSubCounty,
	})
	if domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("rollback must refuse once county judging exists, got %v", err)
	}
}

func TestPublishAtNationalIsFinalAndIrreversible(t *testing.T) {
	store := seedPublishCohort(t, []float64{60, 55, 50})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	uc := promotionUseCase(store, clock)

	// Lift the seeded cohort to the national level in place.
	for i := 1; i <= 3; i++ {
		projectID := fmt.Sprintf("project-%d", i)
		project, err := store.GetProject(context.Background(), projectID)
		if err != nil {
			t.Fatalf("get project failed: %v", err)
		}
		project.CurrentLevel = entities.LevelNational
		if err := store.SaveProject(context.Background(), project); err != nil {
			t.Fatalf("save project failed: %v", err)
		}
		for _, judgeID := range []string{"pa-1", "pa-2", "pb-1", "pb-2"} {
			assignment, err := store.GetAssignment(context.Background(), fmt.Sprintf("%s:%s", judgeID, projectID))
			if err != nil {
				t.Fatalf("get assignment failed: %v", err)
			}
			assignment.Level = entities.LevelNational
			if err := store.SaveAssignment(context.Background(), assignment); err != nil {
				t.Fatalf("save assignment failed: %v", err)
			}
		}
	}

	result, err := uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelNational,
	})
	if err != nil {
		t.Fatalf("national publish failed: %v", err)
	}
	if !result.Final {
		t.Fatalf("national publication is final")
	}
	winner, err := store.GetProject(context.Background(), "project-1")
	if err != nil {
		t.Fatalf("get project failed: %v", err)
	}
	if winner.Status != entities.ProjectStatusCompleted || winner.CurrentLevel != entities.LevelNational {
		t.Fatalf("national winners complete without advancing, got %+v", winner)
	}

	err = uc.Unpublish(context.Background(), UnpublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelNational,
	})
	if domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("national results never unpublish, got %v", err)
	}

	// Finalists stay in the national cohort, so a second publish would find
	// a non-empty level; the published record must refuse it outright.
	_, err = uc.Publish(context.Background(), PublishLevelCommand{
		ActorID: "admin-1",
		Level:   entities.LevelNational,
	})
	if domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("a published category must not publish twice, got %v", err)
	}
}
