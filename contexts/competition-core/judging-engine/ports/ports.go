package ports

import (
	"context"
	"time"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
)

// ProjectRepository reads and writes project registration records.
type ProjectRepository interface {
	GetProject(ctx context.Context, projectID string) (entities.Project, error)
	// ListCohort returns the projects competing at a level: current level
	// equals the given level and not eliminated there.
	ListCohort(ctx context.Context, level entities.CompetitionLevel) ([]entities.Project, error)
	ListProjectsByCategory(ctx context.Context, category string, level entities.CompetitionLevel) ([]entities.Project, error)
	SaveProject(ctx context.Context, project entities.Project) error
}

// AssignmentRepository is the Assignment Store: the single shared mutable
// substrate of the engine.
type AssignmentRepository interface {
	GetAssignment(ctx context.Context, assignmentID string) (entities.JudgeAssignment, error)
	SaveAssignment(ctx context.Context, assignment entities.JudgeAssignment) error
	// ListProjectAssignments returns non-archived assignments for a project
	// at a level.
	ListProjectAssignments(ctx context.Context, projectID string, level entities.CompetitionLevel) ([]entities.JudgeAssignment, error)
	// ListJudgeAssignments returns a judge's non-archived assignments at a
	// level across all categories.
	ListJudgeAssignments(ctx context.Context, judgeID string, level entities.CompetitionLevel) ([]entities.JudgeAssignment, error)
	// ListCategoryAssignments returns non-archived assignments for a
	// category at a level.
	ListCategoryAssignments(ctx context.Context, category string, level entities.CompetitionLevel) ([]entities.JudgeAssignment, error)
	// CountActiveAssignments counts non-archived assignments at a level;
	// the unpublish guard depends on it.
	CountActiveAssignments(ctx context.Context, level entities.CompetitionLevel) (int, error)
	// ListInProgressAssignments feeds the session-timeout sweep.
	ListInProgressAssignments(ctx context.Context) ([]entities.JudgeAssignment, error)
	// DeleteAssignments removes the non-archived rows identified; used only
	// by unassignment before any score exists or under elevated privilege.
	DeleteAssignments(ctx context.Context, assignmentIDs []string) error
}

// JudgeDirectory reads judge/coordinator snapshots and persists role moves.
type JudgeDirectory interface {
	GetJudge(ctx context.Context, judgeID string) (entities.Judge, error)
	SaveJudge(ctx context.Context, judge entities.Judge) error
}

// PublishStateRepository holds the per (category, level) promotion state
// machine records, including the identifier sets a rollback restores.
type PublishStateRepository interface {
	GetPublishRecord(ctx context.Context, category string, level entities.CompetitionLevel) (entities.PublishRecord, bool, error)
	ListPublishRecords(ctx context.Context, level entities.CompetitionLevel) ([]entities.PublishRecord, error)
	SavePublishRecord(ctx context.Context, record entities.PublishRecord) error
}

// PromotionChange is the full effect of publishing one level: project state
// moves, assignment archival, and state records, applied atomically.
type PromotionChange struct {
	Level                  entities.CompetitionLevel
	Projects               []entities.Project
	ArchiveAssignmentIDs   []string
	UnarchiveAssignmentIDs []string
	Records                []entities.PublishRecord
	// GuardNextLevelIdle, when true, requires zero non-archived assignments
	// at the level after Level inside the same transaction; violation fails
	// the whole change with a concurrency conflict.
	GuardNextLevelIdle bool
}

// PromotionStore applies a PromotionChange all-or-nothing. Partial
// application is never an acceptable outcome.
type PromotionStore interface {
	ApplyPromotion(ctx context.Context, change PromotionChange) error
}

// AuditMessage is a persisted, pending audit entry awaiting relay.
type AuditMessage struct {
	AuditID   string
	Action    string
	Payload   []byte
	CreatedAt time.Time
}

// AuditWriter appends audit entries. Emission is best-effort from the
// caller's perspective: use cases log append failures and proceed.
type AuditWriter interface {
	AppendAudit(ctx context.Context, entry entities.AuditEntry) error
}

// AuditOutbox is drained by the relay worker.
type AuditOutbox interface {
	ListPendingAudit(ctx context.Context, limit int) ([]AuditMessage, error)
	MarkAuditPublished(ctx context.Context, auditID string, publishedAt time.Time) error
}

// EventPublisher delivers relayed audit events to the platform bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// ScopeLocker serializes mutations per logical scope: judge+category+level
// for allocation, assignment for score submission, level cohort for
// publish/unpublish. Different scopes proceed concurrently.
type ScopeLocker interface {
	WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
