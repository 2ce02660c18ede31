package entities

import (
	"strings"
	"time"
)

// Section is one of the two scoring partitions of a project's evaluation.
type Section string

const (
	SectionPartA  Section = "part_a"
	SectionPartBC Section = "part_bc"
)

// Sections lists both scoring partitions in canonical order.
func Sections() []Section {
	return []Section{SectionPartA, SectionPartBC}
}

// ParseSection maps wire names to sections.
func ParseSection(raw string) (Section, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "part_a", "a", "part-a":
		return SectionPartA, true
	case "part_bc", "bc", "part_b_c", "part-bc":
		return SectionPartBC, true
	default:
		return "", false
	}
}

type ProjectStatus string

const (
	ProjectStatusAwaitingApproval ProjectStatus = "awaiting_approval"
	ProjectStatusNotStarted       ProjectStatus = "not_started"
	ProjectStatusInProgress       ProjectStatus = "in_progress"
	ProjectStatusCompleted        ProjectStatus = "completed"
	ProjectStatusRejected         ProjectStatus = "rejected"
)

type AssignmentStatus string

const (
	AssignmentStatusNotStarted    AssignmentStatus = "not_started"
	AssignmentStatusInProgress    AssignmentStatus = "in_progress"
	AssignmentStatusCompleted     AssignmentStatus = "completed"
	AssignmentStatusReviewPending AssignmentStatus = "review_pending"
)

// Role is the explicit role a user carries. Coordinator-ness is additionally
// derived from assignment shape; see CoordinatorSet.
type Role string

const (
	RoleJudge          Role = "judge"
	RoleCoordinator    Role = "coordinator"
	RoleSubCountyAdmin Role = "sub_county_admin"
	RoleCountyAdmin    Role = "county_admin"
	RoleRegionalAdmin  Role = "regional_admin"
	RoleNationalAdmin  Role = "national_admin"
)

// AdminScope is the geographic granularity an admin role may act on.
// LevelNational doubles as the super-admin scope.
func (r Role) AdminScope() (CompetitionLevel, bool) {
	switch r {
	case RoleSubCountyAdmin:
		return LevelSubCounty, true
	case RoleCountyAdmin:
		return LevelCounty, true
	case RoleRegionalAdmin:
		return LevelRegional, true
	case RoleNationalAdmin:
		return LevelNational, true
	default:
		return 0, false
	}
}

// IsSuperAdmin reports whether the role may override score-destructive
// operations such as unassigning a judged section.
func (r Role) IsSuperAdmin() bool {
	return r == RoleNationalAdmin
}

// Geography is the nested region/county/sub-county/zone/school path.
type Geography struct {
	Region    string
	County    string
	SubCounty string
	Zone      string
	School    string
}

// Matches reports whether two geographies agree at the given granularity.
func (g Geography) Matches(other Geography, scope CompetitionLevel) bool {
	switch scope {
	case LevelNational:
		return true
	case LevelRegional:
		return strings.EqualFold(g.Region, other.Region)
	case LevelCounty:
		return strings.EqualFold(g.Region, other.Region) &&
			strings.EqualFold(g.County, other.County)
	default:
		return strings.EqualFold(g.Region, other.Region) &&
			strings.EqualFold(g.County, other.County) &&
			strings.EqualFold(g.SubCounty, other.SubCounty)
	}
}

// Project is a registered science-fair entry. CurrentLevel only advances
// through the fixed level sequence; Eliminated is set for the level the
// project was dropped at and nowhere else.
type Project struct {
	ProjectID         string
	Title             string
	Category          string
	Geography         Geography
	CurrentLevel      CompetitionLevel
	Status            ProjectStatus
	Eliminated        bool
	EliminatedAtLevel CompetitionLevel
	// TieBreakScore orders projects with equal totals. Nil means no manual
	// tie-break has been recorded.
	TieBreakScore *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JudgeAssignment links one judge to one project, one section, and one
// level. At most one non-archived assignment exists per
// (judge, project, section, level). Archived rows are never mutated except
// by an explicit rollback flipping the flag back.
type JudgeAssignment struct {
	AssignmentID string
	JudgeID      string
	ProjectID    string
	Category     string
	Section      Section
	Level        CompetitionLevel
	Status       AssignmentStatus
	Score        float64
	Breakdown    map[string]float64
	Comments     string
	ReviewReason string
	Archived     bool
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Judge is the read-model snapshot of a judging user. Home and work
// geographies are independent: work geography governs assignment
// jurisdiction, home geography is informational.
type Judge struct {
	JudgeID       string
	Name          string
	Role          Role
	School        string
	HomeGeography Geography
	WorkGeography Geography
}

// RankedEntity is derived on each ranking query and never persisted.
type RankedEntity struct {
	Name        string
	TotalPoints int
	Rank        int
}

// PublishState is the per (category, level) promotion state machine record.
// Promoted/eliminated/archived identifiers are captured at publish time so a
// rollback restores exactly what publish changed.
type PublishState string

const (
	PublishStateInProgress     PublishState = "in_progress"
	PublishStateTiesPending    PublishState = "ties_pending"
	PublishStateReadyToPublish PublishState = "ready_to_publish"
	PublishStatePublished      PublishState = "published"
	PublishStateRolledBack     PublishState = "rolled_back"
)

type PublishRecord struct {
	Category              string
	Level                 CompetitionLevel
	State                 PublishState
	PromotedProjectIDs    []string
	EliminatedProjectIDs  []string
	ArchivedAssignmentIDs []string
	UpdatedAt             time.Time
}

// AuditEntry is the structured trail record emitted on publish, unpublish,
// arbitration, conflict, and timeout events. Emission is best-effort and
// never blocks the underlying state change.
type AuditEntry struct {
	AuditID          string
	Action           string
	PerformingUserID string
	Scope            Geography
	Detail           map[string]any
	OccurredAt       time.Time
}

// ProjectScore is the Score Aggregator output for one project at one level.
type ProjectScore struct {
	ProjectID        string
	Level            CompetitionLevel
	SectionA         *float64
	SectionBC        *float64
	Total            float64
	FullyJudged      bool
	NeedsArbitration bool
	Sections         map[Section]SectionScore
}

// SectionScore is the per-section aggregation detail.
type SectionScore struct {
	RegularScores    []float64
	Average          *float64
	CoordinatorScore *float64
	NeedsArbitration bool
	ConflictedJudges []string
}

// Value is the contributing score for the section: the coordinator's
// completed score when present, otherwise the regular-judge average.
func (s SectionScore) Value() *float64 {
	if s.CoordinatorScore != nil {
		return s.CoordinatorScore
	}
	return s.Average
}
