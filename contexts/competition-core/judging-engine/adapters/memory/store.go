package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
	"galileo/internal/shared/events"

	"github.com/google/uuid"
)

type auditRecord struct {
	message   ports.AuditMessage
	published bool
}

// Store is the in-memory Assignment Store and friends: every port of the
// engine behind one mutex-guarded map set. Used by tests and local wiring.
type Store struct {
	mu sync.RWMutex

	projects    map[string]entities.Project
	assignments map[string]entities.JudgeAssignment
	judges      map[string]entities.Judge
	states      map[string]entities.PublishRecord
	audit       map[string]auditRecord

	scopeMu sync.Mutex
	scopes  map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		projects:    make(map[string]entities.Project),
		assignments: make(map[string]entities.JudgeAssignment),
		judges:      make(map[string]entities.Judge),
		states:      make(map[string]entities.PublishRecord),
		audit:       make(map[string]auditRecord),
		scopes:      make(map[string]*sync.Mutex),
	}
}

// SeedProject and the other seed helpers exist for tests and local wiring.
func (s *Store) SeedProject(project entities.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[strings.TrimSpace(project.ProjectID)] = project
}

func (s *Store) SeedJudge(judge entities.Judge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judges[strings.TrimSpace(judge.JudgeID)] = judge
}

func (s *Store) SeedAssignment(assignment entities.JudgeAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[strings.TrimSpace(assignment.AssignmentID)] = assignment
}

func (s *Store) GetProject(_ context.Context, projectID string) (entities.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[strings.TrimSpace(projectID)]
	if !ok {
		return entities.Project{}, domainerrors.ErrProjectNotFound
	}
	return project, nil
}

func (s *Store) ListCohort(_ context.Context, level entities.CompetitionLevel) ([]entities.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Project, 0)
	for _, project := range s.projects {
		if project.CurrentLevel != level || project.Eliminated {
			continue
		}
		if project.Status == entities.ProjectStatusRejected {
			continue
		}
		items = append(items, project)
	}
	sortProjects(items)
	return items, nil
}

func (s *Store) ListProjectsByCategory(
	_ context.Context,
	category string,
	level entities.CompetitionLevel,
) ([]entities.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category = strings.ToLower(strings.TrimSpace(category))
	items := make([]entities.Project, 0)
	for _, project := range s.projects {
		if project.CurrentLevel != level || project.Eliminated {
			continue
		}
		if project.Status == entities.ProjectStatusRejected {
			continue
		}
		if strings.ToLower(project.Category) == category {
			items = append(items, project)
		}
	}
	sortProjects(items)
	return items, nil
}

func (s *Store) SaveProject(_ context.Context, project entities.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[strings.TrimSpace(project.ProjectID)] = project
	return nil
}

func (s *Store) GetAssignment(_ context.Context, assignmentID string) (entities.JudgeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[strings.TrimSpace(assignmentID)]
	if !ok {
		return entities.JudgeAssignment{}, domainerrors.ErrAssignmentNotFound
	}
	return assignment, nil
}

// SaveAssignment upserts while enforcing the single non-archived assignment
// per (judge, project, section, level) invariant.
func (s *Store) SaveAssignment(_ context.Context, assignment entities.JudgeAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !assignment.Archived {
		for _, existing := range s.assignments {
			if existing.AssignmentID == assignment.AssignmentID || existing.Archived {
				continue
			}
			if existing.JudgeID == assignment.JudgeID &&
				existing.ProjectID == assignment.ProjectID &&
				existing.Section == assignment.Section &&
				existing.Level == assignment.Level {
				return domainerrors.Conflict("a non-archived assignment already exists for this judge, project, section, and level")
			}
		}
	}
	s.assignments[strings.TrimSpace(assignment.AssignmentID)] = assignment
	return nil
}

func (s *Store) ListProjectAssignments(
	_ context.Context,
	projectID string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projectID = strings.TrimSpace(projectID)
	items := make([]entities.JudgeAssignment, 0)
	for _, assignment := range s.assignments {
		if assignment.Archived || assignment.ProjectID != projectID || assignment.Level != level {
			continue
		}
		items = append(items, assignment)
	}
	sortAssignments(items)
	return items, nil
}

func (s *Store) ListJudgeAssignments(
	_ context.Context,
	judgeID string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	judgeID = strings.TrimSpace(judgeID)
	items := make([]entities.JudgeAssignment, 0)
	for _, assignment := range s.assignments {
		if assignment.Archived || assignment.JudgeID != judgeID || assignment.Level != level {
			continue
		}
		items = append(items, assignment)
	}
	sortAssignments(items)
	return items, nil
}

func (s *Store) ListCategoryAssignments(
	_ context.Context,
	category string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category = strings.ToLower(strings.TrimSpace(category))
	items := make([]entities.JudgeAssignment, 0)
	for _, assignment := range s.assignments {
		if assignment.Archived || assignment.Level != level {
			continue
		}
		if strings.ToLower(assignment.Category) == category {
			items = append(items, assignment)
		}
	}
	sortAssignments(items)
	return items, nil
}

func (s *Store) CountActiveAssignments(_ context.Context, level entities.CompetitionLevel) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, assignment := range s.assignments {
		if !assignment.Archived && assignment.Level == level {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListInProgressAssignments(_ context.Context) ([]entities.JudgeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.JudgeAssignment, 0)
	for _, assignment := range s.assignments {
		if !assignment.Archived && assignment.Status == entities.AssignmentStatusInProgress {
			items = append(items, assignment)
		}
	}
	sortAssignments(items)
	return items, nil
}

func (s *Store) DeleteAssignments(_ context.Context, assignmentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, assignmentID := range assignmentIDs {
		if _, ok := s.assignments[strings.TrimSpace(assignmentID)]; !ok {
			return domainerrors.ErrAssignmentNotFound
		}
	}
	for _, assignmentID := range assignmentIDs {
		delete(s.assignments, strings.TrimSpace(assignmentID))
	}
	return nil
}

func (s *Store) GetJudge(_ context.Context, judgeID string) (entities.Judge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	judge, ok := s.judges[strings.TrimSpace(judgeID)]
	if !ok {
		return entities.Judge{}, domainerrors.ErrJudgeNotFound
	}
	return judge, nil
}

func (s *Store) SaveJudge(_ context.Context, judge entities.Judge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judges[strings.TrimSpace(judge.JudgeID)] = judge
	return nil
}

func (s *Store) GetPublishRecord(
	_ context.Context,
	category string,
	level entities.CompetitionLevel,
) (entities.PublishRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.states[stateKey(category, level)]
	return record, ok, nil
}

func (s *Store) ListPublishRecords(_ context.Context, level entities.CompetitionLevel) ([]entities.PublishRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.PublishRecord, 0)
	for _, record := range s.states {
		if record.Level == level {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Category < items[j].Category
	})
	return items, nil
}

func (s *Store) SavePublishRecord(_ context.Context, record entities.PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(record.Category, record.Level)] = record
	return nil
}

// ApplyPromotion applies the whole change under one lock: the in-memory
// equivalent of a transaction. Every referenced row is validated before the
// first write, so a failure leaves the store untouched.
func (s *Store) ApplyPromotion(_ context.Context, change ports.PromotionChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if change.GuardNextLevelIdle {
		if next, ok := change.Level.Next(); ok {
			for _, assignment := range s.assignments {
				if !assignment.Archived && assignment.Level == next {
					return domainerrors.Conflict(
						"judging has started at the next level; the rollback was abandoned",
					)
				}
			}
		}
	}

	for _, project := range change.Projects {
		if _, ok := s.projects[project.ProjectID]; !ok {
			return domainerrors.ErrProjectNotFound
		}
	}
	for _, assignmentID := range change.ArchiveAssignmentIDs {
		if _, ok := s.assignments[assignmentID]; !ok {
			return domainerrors.ErrAssignmentNotFound
		}
	}
	for _, assignmentID := range change.UnarchiveAssignmentIDs {
		if _, ok := s.assignments[assignmentID]; !ok {
			return domainerrors.ErrAssignmentNotFound
		}
	}

	for _, project := range change.Projects {
		s.projects[project.ProjectID] = project
	}
	for _, assignmentID := range change.ArchiveAssignmentIDs {
		assignment := s.assignments[assignmentID]
		assignment.Archived = true
		s.assignments[assignmentID] = assignment
	}
	for _, assignmentID := range change.UnarchiveAssignmentIDs {
		assignment := s.assignments[assignmentID]
		assignment.Archived = false
		s.assignments[assignmentID] = assignment
	}
	for _, record := range change.Records {
		s.states[stateKey(record.Category, record.Level)] = record
	}
	return nil
}

func (s *Store) AppendAudit(_ context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(entry.AuditID) == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(events.Envelope{
		EventID:        entry.AuditID,
		EventType:      "judging." + entry.Action,
		SourceService:  "galileo",
		OccurredAtUTC:  entry.OccurredAt,
		EntityType:     "audit_entry",
		EntityID:       entry.AuditID,
		PayloadVersion: 1,
		Payload:        entry,
	})
	if err != nil {
		return err
	}
	s.audit[entry.AuditID] = auditRecord{
		message: ports.AuditMessage{
			AuditID:   entry.AuditID,
			Action:    entry.Action,
			Payload:   payload,
			CreatedAt: entry.OccurredAt,
		},
	}
	return nil
}

func (s *Store) ListPendingAudit(_ context.Context, limit int) ([]ports.AuditMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.AuditMessage, 0, len(s.audit))
	for _, row := range s.audit {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].AuditID < items[j].AuditID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkAuditPublished(_ context.Context, auditID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.audit[strings.TrimSpace(auditID)]
	if !ok {
		return domainerrors.NotFound("audit entry not found")
	}
	row.published = true
	s.audit[strings.TrimSpace(auditID)] = row
	return nil
}

// WithinScope serializes mutations sharing a scope key while letting
// distinct scopes proceed concurrently.
func (s *Store) WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	s.scopeMu.Lock()
	lock, ok := s.scopes[scope]
	if !ok {
		lock = &sync.Mutex{}
		s.scopes[scope] = lock
	}
	s.scopeMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func stateKey(category string, level entities.CompetitionLevel) string {
	return strings.ToLower(strings.TrimSpace(category)) + ":" + level.String()
}

func sortProjects(items []entities.Project) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProjectID < items[j].ProjectID
	})
}

func sortAssignments(items []entities.JudgeAssignment) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].AssignmentID < items[j].AssignmentID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
