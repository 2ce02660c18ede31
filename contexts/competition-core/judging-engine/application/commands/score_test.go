package commands

import (
	"context"
	"testing"
	"time"

	"galileo/contexts/competition-core/judging-engine/adapters/memory"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func scoringUseCase(store *memory.Store, clock *fakeClock, minDwell time.Duration) ScoringUseCase {
	return ScoringUseCase{
		Projects:    store,
		Assignments: store,
		Judges:      store,
		Locks:       store,
		Audit:       store,
		Clock:       clock,
		MinDwell:    minDwell,
	}
}

func validPartA() map[string]float64 {
	return map[string]float64{
		"creativity":         10,
		"scientific_thought": 8.5,
		"thoroughness":       6,
	}
}

func TestStartAndSubmitScore(t *testing.T) {
	store := seedAllocation(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	allocate := allocateUseCase(store)
	scoring := scoringUseCase(store, clock, 0)

	result := assign(t, allocate, "admin-1", "judge-1", "physics", entities.SectionPartA)
	target := result.Assignments[0]

	started, err := scoring.StartScoring(context.Background(), target.AssignmentID, "judge-1")
	if err != nil {
		t.Fatalf("start scoring failed: %v", err)
	}
	if started.Status != entities.AssignmentStatusInProgress || started.StartedAt == nil {
		t.Fatalf("starting must move to in_progress with a start time, got %+v", started)
	}

	completed, err := scoring.SubmitScore(context.Background(), SubmitScoreCommand{
		AssignmentID: target.AssignmentID,
		JudgeID:      "judge-1",
		Breakdown:    validPartA(),
		Comments:     "solid methodology",
	})
	if err != nil {
		t.Fatalf("submit score failed: %v", err)
	}
	if completed.Score != 24.5 {
		t.Fatalf("expected criterion sum 24.5, got %f", completed.Score)
	}
	if completed.Status != entities.AssignmentStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("submission must complete the assignment, got %+v", completed)
	}
}

func TestStartScoringOwnershipAndState(t *testing.T) {
	store := seedAllocation(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	allocate := allocateUseCase(store)
	scoring := scoringUseCase(store, clock, 0)

	result := assign(t, allocate, "admin-1", "judge-1", "physics", entities.SectionPartA)
	target := result.Assignments[0]

	if _, err := scoring.StartScoring(context.Background(), target.AssignmentID, "judge-2"); domainerrors.KindOf(err) != domainerrors.KindInvariantViolation {
		t.Fatalf("another judge cannot open the session, got %v", err)
	}

	if _, err := scoring.SubmitScore(context.Background(), SubmitScoreCommand{
		AssignmentID: target.AssignmentID,
		JudgeID:      "judge-1",
		Breakdown:    validPartA(),
	}); err != nil {
		t.Fatalf("submit score failed: %v", err)
	}
	if _, err := scoring.StartScoring(context.Background(), target.AssignmentID, "judge-1"); domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("a completed assignment cannot restart, got %v", err)
	}

	archived := target
	archived.Archived = true
	if err := store.SaveAssignment(context.Background(), archived); err != nil {
		t.Fatalf("archive assignment failed: %v", err)
	}
	if _, err := scoring.StartScoring(context.Background(), target.AssignmentID, "judge-1"); domainerrors.KindOf(err) != domainerrors.KindPreconditionNotMet {
		t.Fatalf("an archived assignment cannot start, got %v", err)
	}
}

func TestSubmitScoreValidatesSheet(t *testing.T) {
	store := seedAllocation(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	allocate := allocateUseCase(store)
	scoring := scoringUseCase(store, clock, 0)

	result := assign(t, allocate, "admin-1", "judge-1", "physics", entities.SectionPartA)
	target := result.Assignments[0]

	cases := map[string]map[string]float64{
		"unknown criterion": {
			"creativity": 10, "scientific_thought": 8, "thoroughness": 6, "showmanship": 5,
		},
		"value over maximum": {
			"creativity": 11, "scientific_thought": 8, "thoroughness": 6,
		},
		"value off the step grid": {
			"creativity": 10, "scientific_thought": 8.3, "thoroughness": 6,
		},
		"missing criterion": {
			"creativity": 10, "scientific_thought": 8,
		},
	}
	for name, breakdown := range cases {
		_, err := scoring.SubmitScore(context.Background(), SubmitScoreCommand{
			AssignmentID: target.AssignmentID,
			JudgeID:      "judge-1",
			Breakdown:    breakdown,
		})
		if domainerrors.KindOf(err) != domainerrors.KindValidation {
			t.Fatalf("%s must fail validation, got %v", name, err)
		}
	}

	fresh, err := store.GetAssignment(context.Background(), target.AssignmentID)
	if err != nil {
		t.Fatalf("get assignment failed: %v", err)
	}
	if fresh.Status == entities.AssignmentStatusCompleted || fresh.Score != 0 {
		t.Fatalf("rejected submissions must write nothing, got %+v", fresh)
	}
}

func TestSubmitScoreEnforcesMinimumDwell(t *testing.T) {
	store := seedAllocation(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	allocate := allocateUseCase(store)
	scoring := scoringUseCase(store, clock, 5*time.Minute)

	result := assign(t, allocate, "admin-1", "judge-1", "physics", entities.SectionPartA)
	target := result.Assignments[0]

	if _, err := scoring.StartScoring(context.Background(), target.AssignmentID, "judge-1"); err != nil {
		t.Fatalf("start scoring failed: %v", err)
	}

	_, err := scoring.SubmitScore(context.Background(), SubmitScoreCommand{
		AssignmentID: target.AssignmentID,
		JudgeID:      "judge-1",
		Breakdown:    validPartA(),
	})
	if domainerrors.KindOf(err) != domainerrors.KindValidation {
		t.Fatalf("an instant submission is implausible and must be rejected, got %v", err)
	}

	clock.Advance(6 * time.Minute)
	if _, err := scoring.SubmitScore(context.Background(), SubmitScoreCommand{
		AssignmentID: target.AssignmentID,
		JudgeID:      "judge-1",
		Breakdown:    validPartA(),
	}); err != nil {
		t.Fatalf("a submission past the dwell minimum must pass: %v", err)
	}
}

func TestSetTieBreakRequiresAdmin(t *testing.T) {
	store := seedAllocation(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	scoring := scoringUseCase(store, clock, 0)

	err := scoring.SetTieBreak(context.Background(), "judge-1", "project-1", 7.5)
	if domainerrors.KindOf(err) != domainerrors.KindInvariantViolation {
		t.Fatalf("a regular judge cannot resolve ties, got %v", err)
	}

	if err := scoring.SetTieBreak(context.Background(), "admin-1", "project-1", 7.5); err != nil {
		t.Fatalf("set tie break failed: %v", err)
	}
	project, err := store.GetProject(context.Background(), "project-1")
	if err != nil {
		t.Fatalf("get project failed: %v", err)
	}
	if project.TieBreakScore == nil || *project.TieBreakScore != 7.5 {
		t.Fatalf("the override must persist, got %v", project.TieBreakScore)
	}
}

func TestSweepConflictsFlagsSameSchoolRegulars(t *testing.T) {
	store := seedAllocation(t)
	store.SeedProject(entities.Project{
		ProjectID:    "project-gede",
		Title:        "Rainwater Harvesting",
		Category:     "physics",
		CurrentLevel: entities.LevelSubCounty,
		Geography: entities.Geography{
			Region:    "Coast",
			County:    "Kilifi",
			SubCounty: "Malindi",
			Zone:      "Central",
			School:    "Gede Secondary",
		},
	})
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	allocate := allocateUseCase(store)
	scoring := scoringUseCase(store, clock, 0)

	// judge-1 stays a regular on Part A; judge-2 holds both sections and
	// derives as coordinator, exempt from the sweep.
	assign(t, allocate, "admin-1", "judge-1", "physics", entities.SectionPartA)
	assign(t, allocate, "admin-1", "judge-2", "physics", entities.SectionPartA)
	assign(t, allocate, "admin-1", "judge-2", "physics", entities.SectionPartBC)

	flagged, err := scoring.SweepConflicts(context.Background(), "admin-1", entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("only the regular judge's same-school assignment is flagged, got %d", flagged)
	}

	assignments, err := store.ListJudgeAssignments(context.Background(), "judge-1", entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("list assignments failed: %v", err)
	}
	var found bool
	for _, assignment := range assignments {
		if assignment.ProjectID == "project-gede" {
			found = true
			if assignment.Status != entities.AssignmentStatusReviewPending || assignment.ReviewReason == "" {
				t.Fatalf("flagged assignment must be review-pending with a reason, got %+v", assignment)
			}
		} else if assignment.Status == entities.AssignmentStatusReviewPending {
			t.Fatalf("assignments at other schools must stay untouched, got %+v", assignment)
		}
	}
	if !found {
		t.Fatalf("expected an assignment on the conflicted project")
	}

	// The sweep is idempotent: already-flagged rows are skipped.
	again, err := scoring.SweepConflicts(context.Background(), "admin-1", entities.LevelSubCounty)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("a repeated sweep flags nothing new, got %d", again)
	}
}
