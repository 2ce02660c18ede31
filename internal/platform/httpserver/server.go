package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	judgingengine "galileo/contexts/competition-core/judging-engine"
	judgingerrors "galileo/contexts/competition-core/judging-engine/domain/errors"
	judginghttp "galileo/contexts/competition-core/judging-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	judging judgingengine.Module
}

func New(judging judgingengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		judging: judging,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/judging/v1/assignments/assign", s.handleAssignJudge)
	s.mux.HandleFunc("POST /api/judging/v1/assignments/unassign", s.handleUnassignJudge)
	s.mux.HandleFunc("POST /api/judging/v1/assignments/{assignment_id}/start", s.handleStartScoring)
	s.mux.HandleFunc("POST /api/judging/v1/assignments/{assignment_id}/score", s.handleSubmitScore)

	s.mux.HandleFunc("GET /api/judging/v1/projects/{project_id}/score", s.handleProjectScore)
	s.mux.HandleFunc("POST /api/judging/v1/projects/tie-break", s.handleTieBreak)

	s.mux.HandleFunc("GET /api/judging/v1/levels/{level}/ranking", s.handleRanking)
	s.mux.HandleFunc("GET /api/judging/v1/levels/{level}/readiness", s.handleReadiness)
	s.mux.HandleFunc("POST /api/judging/v1/levels/{level}/conflict-sweep", s.handleConflictSweep)
	s.mux.HandleFunc("POST /api/judging/v1/levels/{level}/publish", s.handlePublish)
	s.mux.HandleFunc("POST /api/judging/v1/levels/{level}/unpublish", s.handleUnpublish)
}

func (s *Server) handleAssignJudge(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req judginghttp.AssignJudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJudgingError(w, http.StatusBadRequest, "validation", "request body must be valid JSON")
		return
	}
	resp, err := s.judging.Handler.AssignJudgeHandler(r.Context(), actorID, req)
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnassignJudge(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req judginghttp.AssignJudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJudgingError(w, http.StatusBadRequest, "validation", "request body must be valid JSON")
		return
	}
	resp, err := s.judging.Handler.UnassignJudgeHandler(r.Context(), actorID, req)
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartScoring(w http.ResponseWriter, r *http.Request) {
	var req judginghttp.StartScoringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJudgingError(w, http.StatusBadRequest, "validation", "request body must be valid JSON")
		return
	}
	resp, err := s.judging.Handler.StartScoringHandler(r.Context(), r.PathValue("assignment_id"), req)
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req judginghttp.SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJudgingError(w, http.StatusBadRequest, "validation", "request body must be valid JSON")
		return
	}
	resp, err := s.judging.Handler.SubmitScoreHandler(r.Context(), r.PathValue("assignment_id"), req)
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProjectScore(w http.ResponseWriter, r *http.Request) {
	resp, err := s.judging.Handler.ProjectScoreHandler(
		r.Context(),
		r.PathValue("project_id"),
		r.URL.Query().Get("level"),
	)
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTieBreak(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req judginghttp.TieBreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJudgingError(w, http.StatusBadRequest, "validation", "request body must be valid JSON")
		return
	}
	if err := s.judging.Handler.TieBreakHandler(r.Context(), actorID, req); err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	resp, err := s.judging.Handler.RankingHandler(r.Context(), r.PathValue("level"))
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp, err := s.judging.Handler.ReadinessHandler(r.Context(), r.PathValue("level"))
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConflictSweep(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.judging.Handler.ConflictSweepHandler(r.Context(), actorID, r.PathValue("level"))
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.judging.Handler.PublishHandler(r.Context(), actorID, r.PathValue("level"))
	if err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := s.judging.Handler.UnpublishHandler(r.Context(), actorID, r.PathValue("level")); err != nil {
		writeJudgingDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeJudgingError(w, http.StatusUnauthorized, "validation", "X-User-Id header is required")
		return "", false
	}
	return actorID, true
}

func writeJudgingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, judgingerrors.ErrValidation):
		writeJudgingError(w, http.StatusBadRequest, string(judgingerrors.KindValidation), err.Error())
	case errors.Is(err, judgingerrors.ErrNotFound):
		writeJudgingError(w, http.StatusNotFound, string(judgingerrors.KindNotFound), err.Error())
	case errors.Is(err, judgingerrors.ErrInvariantViolation):
		writeJudgingError(w, http.StatusUnprocessableEntity, string(judgingerrors.KindInvariantViolation), err.Error())
	case errors.Is(err, judgingerrors.ErrPreconditionNotMet):
		writeJudgingError(w, http.StatusConflict, string(judgingerrors.KindPreconditionNotMet), err.Error())
	case errors.Is(err, judgingerrors.ErrConcurrencyConflict):
		writeJudgingError(w, http.StatusConflict, string(judgingerrors.KindConcurrencyConflict), err.Error())
	default:
		writeJudgingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJudgingError(w http.ResponseWriter, status int, kind string, message string) {
	writeJSON(w, status, judginghttp.ErrorResponse{
		Kind:    kind,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
