package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "flakeci API",
		Version:     "v1",
		Description: "Scheduled and on-demand evaluation of flake jobsets",
		Endpoints: []endpointInfo{
			{"/api/v1/projects", []string{"GET", "POST"}, "Project management"},
			{"/api/v1/projects/{id}", []string{"GET"}, "Single Project"},
			{"/api/v1/projects/{id}/jobsets", []string{"GET", "POST"}, "Jobsets of a Project, ordered by id"},
			{"/api/v1/jobsets/{id}", []string{"GET"}, "Single Jobset with state and timing"},
			{"/api/v1/jobsets/{id}/trigger", []string{"POST"}, "Evaluate a Jobset now; 409 if one is already running"},
			{"/api/v1/jobsets/{id}/evaluations", []string{"GET"}, "Evaluation history, newest first"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
