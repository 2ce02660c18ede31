package httpadapter

import (
	"context"
	"log/slog"

	"galileo/contexts/competition-core/judging-engine/application/commands"
	"galileo/contexts/competition-core/judging-engine/application/queries"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	domainerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	httptransport "galileo/contexts/competition-core/judging-engine/transport/http"
)

// Handler is the transport-agnostic surface of the engine; the platform
// HTTP server maps requests onto these methods.
type Handler struct {
	Allocation commands.AllocateUseCase
	Scoring    commands.ScoringUseCase
	Promotion  commands.PromotionUseCase
	Scores     queries.ScoreUseCase
	Rankings   queries.RankUseCase
	Logger     *slog.Logger
}

func (h Handler) AssignJudgeHandler(
	ctx context.Context,
	actorID string,
	req httptransport.AssignJudgeRequest,
) (httptransport.AssignJudgeResponse, error) {
	section, ok := entities.ParseSection(req.Section)
	if !ok {
		return httptransport.AssignJudgeResponse{}, domainerrors.Validation("section must be Part A or Part B & C")
	}
	level, ok := entities.ParseLevel(req.Level)
	if !ok {
		return httptransport.AssignJudgeResponse{}, domainerrors.Validation("unknown competition level")
	}
	result, err := h.Allocation.Assign(ctx, commands.AssignJudgeCommand{
		ActorID:  actorID,
		JudgeID:  req.JudgeID,
		Category: req.Category,
		Section:  section,
		Level:    level,
	})
	if err != nil {
		return httptransport.AssignJudgeResponse{}, err
	}
	ids := make([]string, 0, len(result.Assignments))
	for _, assignment := range result.Assignments {
		ids = append(ids, assignment.AssignmentID)
	}
	return httptransport.AssignJudgeResponse{
		AssignmentIDs: ids,
		Role:          string(result.NewRole),
	}, nil
}

func (h Handler) UnassignJudgeHandler(
	ctx context.Context,
	actorID string,
	req httptransport.AssignJudgeRequest,
) (httptransport.AssignJudgeResponse, error) {
	section, ok := entities.ParseSection(req.Section)
	if !ok {
		return httptransport.AssignJudgeResponse{}, domainerrors.Validation("section must be Part A or Part B & C")
	}
	level, ok := entities.ParseLevel(req.Level)
	if !ok {
		return httptransport.AssignJudgeResponse{}, domainerrors.Validation("unknown competition level")
	}
	result, err := h.Allocation.Unassign(ctx, commands.UnassignJudgeCommand{
		ActorID:  actorID,
		JudgeID:  req.JudgeID,
		Category: req.Category,
		Section:  section,
		Level:    level,
	})
	if err != nil {
		return httptransport.AssignJudgeResponse{}, err
	}
	return httptransport.AssignJudgeResponse{Role: string(result.NewRole)}, nil
}

func (h Handler) StartScoringHandler(
	ctx context.Context,
	assignmentID string,
	req httptransport.StartScoringRequest,
) (httptransport.AssignmentResponse, error) {
	assignment, err := h.Scoring.StartScoring(ctx, assignmentID, req.JudgeID)
	if err != nil {
		return httptransport.AssignmentResponse{}, err
	}
	return assignmentResponse(assignment), nil
}

func (h Handler) SubmitScoreHandler(
	ctx context.Context,
	assignmentID string,
	req httptransport.SubmitScoreRequest,
) (httptransport.AssignmentResponse, error) {
	assignment, err := h.Scoring.SubmitScore(ctx, commands.SubmitScoreCommand{
		AssignmentID: assignmentID,
		JudgeID:      req.JudgeID,
		Breakdown:    req.Breakdown,
		Comments:     req.Comments,
	})
	if err != nil {
		return httptransport.AssignmentResponse{}, err
	}
	return assignmentResponse(assignment), nil
}

func (h Handler) ProjectScoreHandler(
	ctx context.Context,
	projectID string,
	rawLevel string,
) (httptransport.ProjectScoreResponse, error) {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return httptransport.ProjectScoreResponse{}, domainerrors.Validation("unknown competition level")
	}
	score, err := h.Scores.ComputeScore(ctx, projectID, level)
	if err != nil {
		return httptransport.ProjectScoreResponse{}, err
	}
	return httptransport.ProjectScoreResponse{
		ProjectID:        score.ProjectID,
		Level:            level.String(),
		SectionA:         score.SectionA,
		SectionBC:        score.SectionBC,
		Total:            score.Total,
		FullyJudged:      score.FullyJudged,
		NeedsArbitration: score.NeedsArbitration,
	}, nil
}

func (h Handler) RankingHandler(ctx context.Context, rawLevel string) (httptransport.RankingResponse, error) {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return httptransport.RankingResponse{}, domainerrors.Validation("unknown competition level")
	}
	result, err := h.Rankings.RankLevel(ctx, level)
	if err != nil {
		return httptransport.RankingResponse{}, err
	}

	response := httptransport.RankingResponse{
		Level:       level.String(),
		Schools:     rankedEntities(result.Schools),
		Zones:       rankedEntities(result.Zones),
		SubCounties: rankedEntities(result.SubCounties),
		Counties:    rankedEntities(result.Counties),
		Regions:     rankedEntities(result.Regions),
	}
	for _, entry := range result.Projects {
		response.Projects = append(response.Projects, httptransport.RankedProjectItem{
			ProjectID: entry.Project.ProjectID,
			Title:     entry.Project.Title,
			Category:  entry.Project.Category,
			School:    entry.Project.Geography.School,
			Total:     entry.Score.Total,
			Rank:      entry.Rank,
			Points:    entry.Points,
		})
	}
	for _, tie := range result.TiesToResolve {
		response.TiesToResolve = append(response.TiesToResolve, httptransport.TieGroupItem{
			Category:   tie.Category,
			Rank:       tie.Rank,
			ProjectIDs: tie.ProjectIDs,
		})
	}
	return response, nil
}

func (h Handler) TieBreakHandler(ctx context.Context, actorID string, req httptransport.TieBreakRequest) error {
	return h.Scoring.SetTieBreak(ctx, actorID, req.ProjectID, req.Override)
}

func (h Handler) ConflictSweepHandler(ctx context.Context, actorID string, rawLevel string) (httptransport.ConflictSweepResponse, error) {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return httptransport.ConflictSweepResponse{}, domainerrors.Validation("unknown competition level")
	}
	flagged, err := h.Scoring.SweepConflicts(ctx, actorID, level)
	if err != nil {
		return httptransport.ConflictSweepResponse{}, err
	}
	return httptransport.ConflictSweepResponse{
		Level:        level.String(),
		FlaggedCount: flagged,
	}, nil
}

func (h Handler) PublishHandler(ctx context.Context, actorID string, rawLevel string) (httptransport.PublishResponse, error) {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return httptransport.PublishResponse{}, domainerrors.Validation("unknown competition level")
	}
	result, err := h.Promotion.Publish(ctx, commands.PublishLevelCommand{ActorID: actorID, Level: level})
	if err != nil {
		return httptransport.PublishResponse{}, err
	}
	return httptransport.PublishResponse{
		Level:         result.Level.String(),
		Final:         result.Final,
		Promoted:      result.PromotedIDs,
		Eliminated:    result.EliminatedIDs,
		ArchivedCount: result.ArchivedCount,
	}, nil
}

func (h Handler) UnpublishHandler(ctx context.Context, actorID string, rawLevel string) error {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return domainerrors.Validation("unknown competition level")
	}
	return h.Promotion.Unpublish(ctx, commands.UnpublishLevelCommand{ActorID: actorID, Level: level})
}

func (h Handler) ReadinessHandler(ctx context.Context, rawLevel string) (httptransport.ReadinessResponse, error) {
	level, ok := entities.ParseLevel(rawLevel)
	if !ok {
		return httptransport.ReadinessResponse{}, domainerrors.Validation("unknown competition level")
	}
	readiness, err := h.Promotion.Readiness(ctx, level)
	if err != nil {
		return httptransport.ReadinessResponse{}, err
	}
	response := httptransport.ReadinessResponse{Level: level.String()}
	for _, category := range readiness {
		item := httptransport.CategoryReadinessItem{
			Category: category.Category,
			State:    string(category.State),
			Blockers: category.Blockers,
		}
		for _, tie := range category.Ties {
			item.Ties = append(item.Ties, httptransport.TieGroupItem{
				Category:   tie.Category,
				Rank:       tie.Rank,
				ProjectIDs: tie.ProjectIDs,
			})
		}
		response.Categories = append(response.Categories, item)
	}
	return response, nil
}

func assignmentResponse(assignment entities.JudgeAssignment) httptransport.AssignmentResponse {
	return httptransport.AssignmentResponse{
		AssignmentID: assignment.AssignmentID,
		ProjectID:    assignment.ProjectID,
		JudgeID:      assignment.JudgeID,
		Category:     assignment.Category,
		Section:      string(assignment.Section),
		Level:        assignment.Level.String(),
		Status:       string(assignment.Status),
		Score:        assignment.Score,
		Archived:     assignment.Archived,
	}
}

func rankedEntities(items []entities.RankedEntity) []httptransport.RankedEntityItem {
	mapped := make([]httptransport.RankedEntityItem, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, httptransport.RankedEntityItem{
			Name:        item.Name,
			TotalPoints: item.TotalPoints,
			Rank:        item.Rank,
		})
	}
	return mapped
}
