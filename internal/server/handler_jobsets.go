package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/me/flakeci/internal/coordinator"
	"github.com/me/flakeci/pkg/model"
)

// triggerResponse is the body of POST /jobsets/{id}/trigger.
type triggerResponse struct {
	Jobset     *model.Jobset     `json:"jobset"`
	Evaluation *model.Evaluation `json:"evaluation"`
}

// projectExists writes a 404 or 500 and returns false when the project is unusable.
func (s *Server) projectExists(w http.ResponseWriter, r *http.Request, reqID string, id int64) bool {
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return false
	}
	if p == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("project", id))
		return false
	}
	return true
}

func (s *Server) handleListJobsets(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	projectID, ok := idParam(w, r, reqID)
	if !ok || !s.projectExists(w, r, reqID, projectID) {
		return
	}

	jobsets, err := s.coord.GetJobsets(r.Context(), projectID)
	if err != nil {
		s.respondCoordinatorError(w, reqID, err)
		return
	}
	if jobsets == nil {
		jobsets = []*model.Jobset{}
	}
	respondList(w, reqID, jobsets, model.NewPagination(len(jobsets), len(jobsets), len(jobsets), 0))
}

func (s *Server) handleCreateJobset(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	projectID, ok := idParam(w, r, reqID)
	if !ok {
		return
	}

	var req struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		Flake         string `json:"flake"`
		CheckInterval string `json:"check_interval"` // Go duration, e.g. "5m"; empty uses the scheduler default
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Flake = strings.TrimSpace(req.Flake)
	var details []model.FieldError
	if apiErr := validateName("name", req.Name); apiErr != nil {
		details = append(details, apiErr.Details...)
	}
	if uri, _ := model.SplitFlakeRef(req.Flake, ""); uri == "" {
		details = append(details, model.FieldError{Field: "flake", Message: "must be a flake reference, e.g. github:owner/repo"})
	}
	var interval time.Duration
	if req.CheckInterval != "" {
		d, err := time.ParseDuration(req.CheckInterval)
		if err != nil || d < 0 {
			details = append(details, model.FieldError{Field: "check_interval", Message: "must be a non-negative duration such as 5m"})
		}
		interval = d
	}
	if len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid jobset", details...))
		return
	}

	if !s.projectExists(w, r, reqID, projectID) {
		return
	}
	existing, err := s.store.GetProjectJobsets(r.Context(), projectID)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	for _, js := range existing {
		if js.Name == req.Name {
			respondError(w, reqID, http.StatusConflict, &model.APIError{
				Code:    model.ErrConflict,
				Message: "jobset '" + req.Name + "' already exists in this project",
			})
			return
		}
	}

	js := &model.Jobset{
		ProjectID:     projectID,
		Name:          req.Name,
		Description:   req.Description,
		Flake:         req.Flake,
		CheckInterval: interval,
		State:         model.JobsetStateUnknown,
	}
	if err := s.store.CreateJobset(r.Context(), js); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("jobset created", "jobset_id", js.ID, "project_id", projectID, "flake", js.Flake)
	respondCreated(w, reqID, js)
}

func (s *Server) handleGetJobset(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := idParam(w, r, reqID)
	if !ok {
		return
	}

	js, err := s.coord.GetJobset(r.Context(), id)
	if err != nil {
		s.respondCoordinatorError(w, reqID, err)
		return
	}
	if js == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("jobset", id))
		return
	}
	respondOK(w, reqID, js)
}

// handleTriggerJobset evaluates the jobset synchronously.
// POST /api/v1/jobsets/{id}/trigger
func (s *Server) handleTriggerJobset(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := idParam(w, r, reqID)
	if !ok {
		return
	}

	js, ev, err := s.coord.TriggerJobset(r.Context(), id)
	var evalErr *coordinator.EvaluatorError
	switch {
	case err == nil:
		respondOK(w, reqID, triggerResponse{Jobset: js, Evaluation: ev})
	case errors.As(err, &evalErr):
		respondJSON(w, http.StatusBadGateway, reqID, triggerResponse{Jobset: js, Evaluation: ev}, nil, &model.APIError{
			Code:    model.ErrEvaluationFailed,
			Message: evalErr.Message,
		})
	default:
		s.respondCoordinatorError(w, reqID, err)
	}
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := idParam(w, r, reqID)
	if !ok {
		return
	}

	js, err := s.coord.GetJobset(r.Context(), id)
	if err != nil {
		s.respondCoordinatorError(w, reqID, err)
		return
	}
	if js == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("jobset", id))
		return
	}

	opts := listOptions(r)
	evals, total, err := s.store.ListEvaluations(r.Context(), id, opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if evals == nil {
		evals = []*model.Evaluation{}
	}
	respondList(w, reqID, evals, model.NewPagination(len(evals), total, opts.Limit, opts.Offset))
}
