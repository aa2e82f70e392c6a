package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	GoVersion          string `json:"go_version"`
	Uptime             string `json:"uptime"`
	Scheduler          string `json:"scheduler"`
	Store              string `json:"store"`
	RunningEvaluations int    `json:"running_evaluations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	sched := "disabled"
	if s.scheduler != nil {
		sched = "enabled"
	}
	storeStatus := "ok"
	if _, err := s.store.ListProjects(r.Context()); err != nil {
		s.logger.Warn("health: store check failed", "error", err)
		storeStatus = "error"
	}
	status := "healthy"
	if storeStatus != "ok" {
		status = "degraded"
	}

	respondOK(w, reqID, healthResponse{
		Status:             status,
		Version:            Version,
		GoVersion:          runtime.Version(),
		Uptime:             time.Since(s.startTime).Round(time.Second).String(),
		Scheduler:          sched,
		Store:              storeStatus,
		RunningEvaluations: s.coord.Running(),
	})
}
