package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/me/flakeci/pkg/model"
)

// namePattern restricts project and jobset names to URL- and shell-safe identifiers.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

func validateName(field, name string) *model.APIError {
	if name == "" {
		return model.NewValidationError(field+" is required",
			model.FieldError{Field: field, Message: "must not be empty"})
	}
	if !namePattern.MatchString(name) {
		return model.NewValidationError("invalid "+field,
			model.FieldError{Field: field, Message: "must match " + namePattern.String()})
	}
	return nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	projects, err := s.coord.GetProjects(r.Context())
	if err != nil {
		s.respondCoordinatorError(w, reqID, err)
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	respondList(w, reqID, projects, model.NewPagination(len(projects), len(projects), len(projects), 0))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if apiErr := validateName("name", req.Name); apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	existing, err := s.store.ListProjects(r.Context())
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	for _, p := range existing {
		if p.Name == req.Name {
			respondError(w, reqID, http.StatusConflict, &model.APIError{
				Code:    model.ErrConflict,
				Message: "project '" + req.Name + "' already exists",
			})
			return
		}
	}

	p := &model.Project{Name: req.Name, Description: req.Description}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("project created", "project_id", p.ID, "name", p.Name)
	respondCreated(w, reqID, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := idParam(w, r, reqID)
	if !ok {
		return
	}

	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if p == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("project", id))
		return
	}
	respondOK(w, reqID, p)
}
