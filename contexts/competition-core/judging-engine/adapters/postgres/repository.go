package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	"galileo/contexts/competition-core/judging-engine/ports"
	"galileo/internal/shared/events"
	"galileo/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Postgres Assignment Store. Promotion changes run inside
// one transaction so publish and rollback stay all-or-nothing.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Migrate creates or updates the engine's tables. AutoMigrate cannot express
// a partial index, so the single-active-assignment constraint is created with
// raw DDL afterwards.
func (r *Repository) Migrate() error {
	err := r.db.AutoMigrate(
		&projectModel{},
		&assignmentModel{},
		&judgeModel{},
		&publishStateModel{},
		&auditOutboxModel{},
	)
	if err != nil {
		return err
	}
	return r.db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_judge_assignments_active
		 ON judge_assignments (judge_id, project_id, section, level)
		 WHERE NOT archived`,
	).Error
}

func (r *Repository) GetProject(ctx context.Context, projectID string) (entities.Project, error) {
	var row projectModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(projectID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Project{}, domainerrors.ErrProjectNotFound
		}
		return entities.Project{}, r.logError("judging_repo_get_project_failed", err,
			"project_id", strings.TrimSpace(projectID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCohort(ctx context.Context, level entities.CompetitionLevel) ([]entities.Project, error) {
	var rows []projectModel
	err := r.db.WithContext(ctx).
		Where("current_level = ?", int(level)).
		Where("eliminated = ?", false).
		Where("status <> ?", string(entities.ProjectStatusRejected)).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_cohort_failed", err, "level", level.String())
	}
	return projectsToEntities(rows), nil
}

func (r *Repository) ListProjectsByCategory(
	ctx context.Context,
	category string,
	level entities.CompetitionLevel,
) ([]entities.Project, error) {
	var rows []projectModel
	err := r.db.WithContext(ctx).
		Where("category = ?", strings.ToLower(strings.TrimSpace(category))).
		Where("current_level = ?", int(level)).
		Where("eliminated = ?", false).
		Where("status <> ?", string(entities.ProjectStatusRejected)).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_category_projects_failed", err,
			"category", strings.TrimSpace(category),
			"level", level.String(),
		)
	}
	return projectsToEntities(rows), nil
}

func (r *Repository) SaveProject(ctx context.Context, project entities.Project) error {
	row := projectModelFromEntity(project)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("judging_repo_save_project_failed", err, "project_id", row.ID)
	}
	return nil
}

func (r *Repository) GetAssignment(ctx context.Context, assignmentID string) (entities.JudgeAssignment, error) {
	var row assignmentModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(assignmentID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.JudgeAssignment{}, domainerrors.ErrAssignmentNotFound
		}
		return entities.JudgeAssignment{}, r.logError("judging_repo_get_assignment_failed", err,
			"assignment_id", strings.TrimSpace(assignmentID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveAssignment(ctx context.Context, assignment entities.JudgeAssignment) error {
	row := assignmentModelFromEntity(assignment)

	// uq_judge_assignments_active (created in Migrate) is the authority on
	// the single-active-assignment invariant; a concurrent insert that slips
	// past the pre-check below surfaces as a 23505, mapped to a conflict.
	// The pre-check exists only to return the domain error without burning a
	// failed insert on the common duplicate case.
	if !row.Archived {
		var count int64
		err := r.db.WithContext(ctx).Model(&assignmentModel{}).
			Where("judge_id = ? AND project_id = ? AND section = ? AND level = ?",
				row.JudgeID, row.ProjectID, row.Section, row.Level).
			Where("archived = ?", false).
			Where("id <> ?", row.ID).
			Count(&count).
			Error
		if err != nil {
			return r.logError("judging_repo_assignment_uniqueness_check_failed", err,
				"assignment_id", row.ID,
			)
		}
		if count > 0 {
			return domainerrors.Conflict(
				"a non-archived assignment already exists for this judge, project, section, and level",
			)
		}
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.Conflict(
				"a non-archived assignment already exists for this judge, project, section, and level",
			)
		}
		return r.logError("judging_repo_save_assignment_failed", err, "assignment_id", row.ID)
	}
	return nil
}

func (r *Repository) ListProjectAssignments(
	ctx context.Context,
	projectID string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	var rows []assignmentModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", strings.TrimSpace(projectID)).
		Where("level = ?", int(level)).
		Where("archived = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_project_assignments_failed", err,
			"project_id", strings.TrimSpace(projectID),
		)
	}
	return assignmentsToEntities(rows), nil
}

func (r *Repository) ListJudgeAssignments(
	ctx context.Context,
	judgeID string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	var rows []assignmentModel
	err := r.db.WithContext(ctx).
		Where("judge_id = ?", strings.TrimSpace(judgeID)).
		Where("level = ?", int(level)).
		Where("archived = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_judge_assignments_failed", err,
			"judge_id", strings.TrimSpace(judgeID),
		)
	}
	return assignmentsToEntities(rows), nil
}

func (r *Repository) ListCategoryAssignments(
	ctx context.Context,
	category string,
	level entities.CompetitionLevel,
) ([]entities.JudgeAssignment, error) {
	var rows []assignmentModel
	err := r.db.WithContext(ctx).
		Where("category = ?", strings.ToLower(strings.TrimSpace(category))).
		Where("level = ?", int(level)).
		Where("archived = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_category_assignments_failed", err,
			"category", strings.TrimSpace(category),
		)
	}
	return assignmentsToEntities(rows), nil
}

func (r *Repository) CountActiveAssignments(ctx context.Context, level entities.CompetitionLevel) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("level = ?", int(level)).
		Where("archived = ?", false).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("judging_repo_count_active_assignments_failed", err, "level", level.String())
	}
	return int(count), nil
}

func (r *Repository) ListInProgressAssignments(ctx context.Context) ([]entities.JudgeAssignment, error) {
	var rows []assignmentModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.AssignmentStatusInProgress)).
		Where("archived = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_in_progress_failed", err)
	}
	return assignmentsToEntities(rows), nil
}

func (r *Repository) DeleteAssignments(ctx context.Context, assignmentIDs []string) error {
	if len(assignmentIDs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", assignmentIDs).
		Delete(&assignmentModel{})
	if result.Error != nil {
		return r.logError("judging_repo_delete_assignments_failed", result.Error)
	}
	if result.RowsAffected != int64(len(assignmentIDs)) {
		return domainerrors.ErrAssignmentNotFound
	}
	return nil
}

func (r *Repository) GetJudge(ctx context.Context, judgeID string) (entities.Judge, error) {
	var row judgeModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(judgeID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Judge{}, domainerrors.ErrJudgeNotFound
		}
		return entities.Judge{}, r.logError("judging_repo_get_judge_failed", err,
			"judge_id", strings.TrimSpace(judgeID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveJudge(ctx context.Context, judge entities.Judge) error {
	row := judgeModelFromEntity(judge)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("judging_repo_save_judge_failed", err, "judge_id", row.ID)
	}
	return nil
}

func (r *Repository) GetPublishRecord(
	ctx context.Context,
	category string,
	level entities.CompetitionLevel,
) (entities.PublishRecord, bool, error) {
	var row publishStateModel
	err := r.db.WithContext(ctx).
		Where("category = ? AND level = ?", strings.ToLower(strings.TrimSpace(category)), int(level)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PublishRecord{}, false, nil
		}
		return entities.PublishRecord{}, false, r.logError("judging_repo_get_publish_record_failed", err,
			"category", strings.TrimSpace(category),
			"level", level.String(),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListPublishRecords(
	ctx context.Context,
	level entities.CompetitionLevel,
) ([]entities.PublishRecord, error) {
	var rows []publishStateModel
	err := r.db.WithContext(ctx).
		Where("level = ?", int(level)).
		Order("category ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_publish_records_failed", err, "level", level.String())
	}
	items := make([]entities.PublishRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SavePublishRecord(ctx context.Context, record entities.PublishRecord) error {
	row := publishStateModelFromEntity(record)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "level"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("judging_repo_save_publish_record_failed", err,
			"category", row.Category,
			"level", record.Level.String(),
		)
	}
	return nil
}

// ApplyPromotion applies project moves, archival flips, and state records in
// one transaction. The rollback guard re-checks next-level idleness inside
// the same transaction, closing the check/act race.
func (r *Repository) ApplyPromotion(ctx context.Context, change ports.PromotionChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if change.GuardNextLevelIdle {
			if next, ok := change.Level.Next(); ok {
				var active int64
				err := tx.Model(&assignmentModel{}).
					Where("level = ?", int(next)).
					Where("archived = ?", false).
					Count(&active).
					Error
				if err != nil {
					return err
				}
				if active > 0 {
					return domainerrors.Conflict(
						"judging has started at the next level; the rollback was abandoned",
					)
				}
			}
		}

		for _, project := range change.Projects {
			row := projectModelFromEntity(project)
			result := tx.Model(&projectModel{}).Where("id = ?", row.ID).Updates(map[string]any{
				"current_level":       row.CurrentLevel,
				"status":              row.Status,
				"eliminated":          row.Eliminated,
				"eliminated_at_level": row.EliminatedAtLevel,
				"updated_at":          row.UpdatedAt,
			})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrProjectNotFound
			}
		}

		if len(change.ArchiveAssignmentIDs) > 0 {
			result := tx.Model(&assignmentModel{}).
				Where("id IN ?", change.ArchiveAssignmentIDs).
				Update("archived", true)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != int64(len(change.ArchiveAssignmentIDs)) {
				return domainerrors.ErrAssignmentNotFound
			}
		}
		if len(change.UnarchiveAssignmentIDs) > 0 {
			result := tx.Model(&assignmentModel{}).
				Where("id IN ?", change.UnarchiveAssignmentIDs).
				Update("archived", false)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != int64(len(change.UnarchiveAssignmentIDs)) {
				return domainerrors.ErrAssignmentNotFound
			}
		}

		for _, record := range change.Records {
			row := publishStateModelFromEntity(record)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "category"}, {Name: "level"}},
				UpdateAll: true,
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) AppendAudit(ctx context.Context, entry entities.AuditEntry) error {
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
	row := auditOutboxModel{
		ID:        entry.AuditID,
		Action:    entry.Action,
		Payload:   string(payload),
		Status:    outbox.StatusPending,
		CreatedAt: entry.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("judging_repo_append_audit_failed", err, "action", entry.Action)
	}
	return nil
}

func (r *Repository) ListPendingAudit(ctx context.Context, limit int) ([]ports.AuditMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditOutboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("judging_repo_list_pending_audit_failed", err)
	}
	items := make([]ports.AuditMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.AuditMessage{
			AuditID:   row.ID,
			Action:    row.Action,
			Payload:   []byte(row.Payload),
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkAuditPublished(ctx context.Context, auditID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&auditOutboxModel{}).
		Where("id = ?", strings.TrimSpace(auditID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("judging_repo_mark_audit_published_failed", result.Error, "audit_id", auditID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.NotFound("audit entry not found")
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "competition-core/judging-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("judging repository operation failed", fields...)
	return err
}

func projectsToEntities(rows []projectModel) []entities.Project {
	items := make([]entities.Project, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func assignmentsToEntities(rows []assignmentModel) []entities.JudgeAssignment {
	items := make([]entities.JudgeAssignment, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
