package entities

// CoordinatorSet derives which judges act as coordinators from assignment
// shape: a judge coordinates a category+level exactly when they hold
// non-archived assignments to both sections of every project they judge in
// that category at that level. This derivation is intentionally centralized;
// call sites must not re-derive it ad hoc.
//
// The input is expected to be the non-archived assignments of a single
// category and level. The result maps judge ID to coordinator-ness.
func CoordinatorSet(assignments []JudgeAssignment) map[string]bool {
	sectionsByJudgeProject := make(map[string]map[string]map[Section]bool)
	for _, assignment := range assignments {
		if assignment.Archived {
			continue
		}
		byProject, ok := sectionsByJudgeProject[assignment.JudgeID]
		if !ok {
			byProject = make(map[string]map[Section]bool)
			sectionsByJudgeProject[assignment.JudgeID] = byProject
		}
		sections, ok := byProject[assignment.ProjectID]
		if !ok {
			sections = make(map[Section]bool)
			byProject[assignment.ProjectID] = sections
		}
		sections[assignment.Section] = true
	}

	coordinators := make(map[string]bool, len(sectionsByJudgeProject))
	for judgeID, byProject := range sectionsByJudgeProject {
		if len(byProject) == 0 {
			continue
		}
		holdsBothEverywhere := true
		for _, sections := range byProject {
			if !sections[SectionPartA] || !sections[SectionPartBC] {
				holdsBothEverywhere = false
				break
			}
		}
		coordinators[judgeID] = holdsBothEverywhere
	}
	for judgeID, isCoordinator := range coordinators {
		if !isCoordinator {
			delete(coordinators, judgeID)
		}
	}
	return coordinators
}
