package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleDashboard)
	r.Get("/projects/{id}", ui.HandleProject)
	r.Get("/jobsets/{id}", ui.HandleJobset)
}
