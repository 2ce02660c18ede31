package postgresadapter

import (
	"encoding/json"
	"strings"
	"time"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
)

type projectModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	Title             string    `gorm:"column:title"`
	Category          string    `gorm:"column:category;index"`
	Region            string    `gorm:"column:region"`
	County            string    `gorm:"column:county"`
	SubCounty         string    `gorm:"column:sub_county"`
	Zone              string    `gorm:"column:zone"`
	School            string    `gorm:"column:school"`
	CurrentLevel      int       `gorm:"column:current_level;index"`
	Status            string    `gorm:"column:status"`
	Eliminated        bool      `gorm:"column:eliminated"`
	EliminatedAtLevel int       `gorm:"column:eliminated_at_level"`
	TieBreakScore     *float64  `gorm:"column:tie_break_score"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (projectModel) TableName() string { return "projects" }

func (m projectModel) toEntity() entities.Project {
	return entities.Project{
		ProjectID: m.ID,
		Title:     m.Title,
		Category:  m.Category,
		Geography: entities.Geography{
			Region:    m.Region,
			County:    m.County,
			SubCounty: m.SubCounty,
			Zone:      m.Zone,
			School:    m.School,
		},
		CurrentLevel:      entities.CompetitionLevel(m.CurrentLevel),
		Status:            entities.ProjectStatus(m.Status),
		Eliminated:        m.Eliminated,
		EliminatedAtLevel: entities.CompetitionLevel(m.EliminatedAtLevel),
		TieBreakScore:     m.TieBreakScore,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func projectModelFromEntity(project entities.Project) projectModel {
	return projectModel{
		ID:                strings.TrimSpace(project.ProjectID),
		Title:             project.Title,
		Category:          strings.ToLower(strings.TrimSpace(project.Category)),
		Region:            project.Geography.Region,
		County:            project.Geography.County,
		SubCounty:         project.Geography.SubCounty,
		Zone:              project.Geography.Zone,
		School:            project.Geography.School,
		CurrentLevel:      int(project.CurrentLevel),
		Status:            string(project.Status),
		Eliminated:        project.Eliminated,
		EliminatedAtLevel: int(project.EliminatedAtLevel),
		TieBreakScore:     project.TieBreakScore,
		CreatedAt:         project.CreatedAt,
		UpdatedAt:         project.UpdatedAt,
	}
}

type assignmentModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	JudgeID      string     `gorm:"column:judge_id;index"`
	ProjectID    string     `gorm:"column:project_id;index"`
	Category     string     `gorm:"column:category;index"`
	Section      string     `gorm:"column:section"`
	Level        int        `gorm:"column:level;index"`
	Status       string     `gorm:"column:status"`
	Score        float64    `gorm:"column:score"`
	Breakdown    string     `gorm:"column:breakdown"`
	Comments     string     `gorm:"column:comments"`
	ReviewReason string     `gorm:"column:review_reason"`
	Archived     bool       `gorm:"column:archived;index"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (assignmentModel) TableName() string { return "judge_assignments" }

func (m assignmentModel) toEntity() entities.JudgeAssignment {
	var breakdown map[string]float64
	if strings.TrimSpace(m.Breakdown) != "" {
		_ = json.Unmarshal([]byte(m.Breakdown), &breakdown)
	}
	return entities.JudgeAssignment{
		AssignmentID: m.ID,
		JudgeID:      m.JudgeID,
		ProjectID:    m.ProjectID,
		Category:     m.Category,
		Section:      entities.Section(m.Section),
		Level:        entities.CompetitionLevel(m.Level),
		Status:       entities.AssignmentStatus(m.Status),
		Score:        m.Score,
		Breakdown:    breakdown,
		Comments:     m.Comments,
		ReviewReason: m.ReviewReason,
		Archived:     m.Archived,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func assignmentModelFromEntity(assignment entities.JudgeAssignment) assignmentModel {
	breakdown := ""
	if len(assignment.Breakdown) > 0 {
		raw, err := json.Marshal(assignment.Breakdown)
		if err == nil {
			breakdown = string(raw)
		}
	}
	return assignmentModel{
		ID:           strings.TrimSpace(assignment.AssignmentID),
		JudgeID:      strings.TrimSpace(assignment.JudgeID),
		ProjectID:    strings.TrimSpace(assignment.ProjectID),
		Category:     strings.ToLower(strings.TrimSpace(assignment.Category)),
		Section:      string(assignment.Section),
		Level:        int(assignment.Level),
		Status:       string(assignment.Status),
		Score:        assignment.Score,
		Breakdown:    breakdown,
		Comments:     assignment.Comments,
		ReviewReason: assignment.ReviewReason,
		Archived:     assignment.Archived,
		StartedAt:    assignment.StartedAt,
		CompletedAt:  assignment.CompletedAt,
		CreatedAt:    assignment.CreatedAt,
		UpdatedAt:    assignment.UpdatedAt,
	}
}

type judgeModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	Name          string `gorm:"column:name"`
	Role          string `gorm:"column:role"`
	School        string `gorm:"column:school"`
	HomeRegion    string `gorm:"column:home_region"`
	HomeCounty    string `gorm:"column:home_county"`
	HomeSubCounty string `gorm:"column:home_sub_county"`
	HomeZone      string `gorm:"column:home_zone"`
	HomeSchool    string `gorm:"column:home_school"`
	WorkRegion    string `gorm:"column:work_region"`
	WorkCounty    string `gorm:"column:work_county"`
	WorkSubCounty string `gorm:"column:work_sub_county"`
	WorkZone      string `gorm:"column:work_zone"`
	WorkSchool    string `gorm:"column:work_school"`
}

func (judgeModel) TableName() string { return "judges" }

func (m judgeModel) toEntity() entities.Judge {
	return entities.Judge{
		JudgeID: m.ID,
		Name:    m.Name,
		Role:    entities.Role(m.Role),
		School:  m.School,
		HomeGeography: entities.Geography{
			Region:    m.HomeRegion,
			County:    m.HomeCounty,
			SubCounty: m.HomeSubCounty,
			Zone:      m.HomeZone,
			School:    m.HomeSchool,
		},
		WorkGeography: entities.Geography{
			Region:    m.WorkRegion,
			County:    m.WorkCounty,
			SubCounty: m.WorkSubCounty,
			Zone:      m.WorkZone,
			School:    m.WorkSchool,
		},
	}
}

func judgeModelFromEntity(judge entities.Judge) judgeModel {
	return judgeModel{
		ID:            strings.TrimSpace(judge.JudgeID),
		Name:          judge.Name,
		Role:          string(judge.Role),
		School:        judge.School,
		HomeRegion:    judge.HomeGeography.Region,
		HomeCounty:    judge.HomeGeography.County,
		HomeSubCounty: judge.HomeGeography.SubCounty,
		HomeZone:      judge.HomeGeography.Zone,
		HomeSchool:    judge.HomeGeography.School,
		WorkRegion:    judge.WorkGeography.Region,
		WorkCounty:    judge.WorkGeography.County,
		WorkSubCounty: judge.WorkGeography.SubCounty,
		WorkZone:      judge.WorkGeography.Zone,
		WorkSchool:    judge.WorkGeography.School,
	}
}

type publishStateModel struct {
	Category              string    `gorm:"column:category;primaryKey"`
	Level                 int       `gorm:"column:level;primaryKey"`
	State                 string    `gorm:"column:state"`
	PromotedProjectIDs    string    `gorm:"column:promoted_project_ids"`
	EliminatedProjectIDs  string    `gorm:"column:eliminated_project_ids"`
	ArchivedAssignmentIDs string    `gorm:"column:archived_assignment_ids"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (publishStateModel) TableName() string { return "publish_states" }

func (m publishStateModel) toEntity() entities.PublishRecord {
	return entities.PublishRecord{
		Category:              m.Category,
		Level:                 entities.CompetitionLevel(m.Level),
		State:                 entities.PublishState(m.State),
		PromotedProjectIDs:    decodeIDs(m.PromotedProjectIDs),
		EliminatedProjectIDs:  decodeIDs(m.EliminatedProjectIDs),
		ArchivedAssignmentIDs: decodeIDs(m.ArchivedAssignmentIDs),
		UpdatedAt:             m.UpdatedAt,
	}
}

func publishStateModelFromEntity(record entities.PublishRecord) publishStateModel {
	return publishStateModel{
		Category:              strings.ToLower(strings.TrimSpace(record.Category)),
		Level:                 int(record.Level),
		State:                 string(record.State),
		PromotedProjectIDs:    encodeIDs(record.PromotedProjectIDs),
		EliminatedProjectIDs:  encodeIDs(record.EliminatedProjectIDs),
		ArchivedAssignmentIDs: encodeIDs(record.ArchivedAssignmentIDs),
		UpdatedAt:             record.UpdatedAt,
	}
}

type auditOutboxModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Action      string     `gorm:"column:action"`
	Payload     string     `gorm:"column:payload"`
	Status      string     `gorm:"column:status;index"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (auditOutboxModel) TableName() string { return "audit_outbox" }

func decodeIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []string
	_ = json.Unmarshal([]byte(raw), &ids)
	return ids
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
