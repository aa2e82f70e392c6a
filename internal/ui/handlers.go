package ui

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/flakeci/internal/coordinator"
	"github.com/me/flakeci/internal/store"
	"github.com/me/flakeci/pkg/model"
)

// UI handles the read-only web interface.
type UI struct {
	store     store.Store
	coord     *coordinator.Coordinator
	logger    *slog.Logger
	startTime time.Time
	config    Config
}

// Config holds UI configuration.
type Config struct {
	// DefaultCheckInterval is shown for jobsets without an interval of their own.
	DefaultCheckInterval time.Duration
}

// New creates a new UI handler. Jobset reads go through coord so pages see
// the same state the scheduler acts on.
func New(st store.Store, coord *coordinator.Coordinator, logger *slog.Logger, cfg Config) *UI {
	return &UI{
		store:     st,
		coord:     coord,
		logger:    logger.With("component", "ui"),
		startTime: time.Now(),
		config:    cfg,
	}
}

// projectSummary is one dashboard row.
type projectSummary struct {
	Project   *model.Project
	Jobsets   int
	InFlight  int
	Failed    int
	Succeeded int
}

// HandleDashboard renders the project overview.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	projects, err := ui.coord.GetProjects(r.Context())
	if err != nil {
		ui.renderError(w, "Failed to load projects", err)
		return
	}

	var totals projectSummary
	summaries := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		jobsets, err := ui.coord.GetJobsets(r.Context(), p.ID)
		if err != nil {
			ui.renderError(w, "Failed to load jobsets", err)
			return
		}
		sum := projectSummary{Project: p, Jobsets: len(jobsets)}
		for _, js := range jobsets {
			switch {
			case js.State.InFlight():
				sum.InFlight++
			case js.State == model.JobsetStateFailed:
				sum.Failed++
			case js.State == model.JobsetStateSucceeded:
				sum.Succeeded++
			}
		}
		totals.Jobsets += sum.Jobsets
		totals.InFlight += sum.InFlight
		totals.Failed += sum.Failed
		totals.Succeeded += sum.Succeeded
		summaries = append(summaries, sum)
	}

	data := map[string]any{
		"Title":    "Dashboard - flakeci",
		"Projects": summaries,
		"Totals":   totals,
		"Running":  ui.coord.Running(),
		"Uptime":   time.Since(ui.startTime).Round(time.Second).String(),
	}
	ui.render(w, http.StatusOK, "dashboard", data)
}

// HandleProject renders a project and its jobsets.
func (ui *UI) HandleProject(w http.ResponseWriter, r *http.Request) {
	id, ok := ui.idParam(w, r)
	if !ok {
		return
	}

	p, err := ui.store.GetProject(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load project", err)
		return
	}
	if p == nil {
		ui.renderNotFound(w, "Project not found")
		return
	}

	jobsets, err := ui.coord.GetJobsets(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load jobsets", err)
		return
	}

	data := map[string]any{
		"Title":           p.Name + " - flakeci",
		"Project":         p,
		"Jobsets":         jobsets,
		"DefaultInterval": ui.config.DefaultCheckInterval,
	}
	ui.render(w, http.StatusOK, "projects/detail", data)
}

// HandleJobset renders a jobset with its evaluation history.
func (ui *UI) HandleJobset(w http.ResponseWriter, r *http.Request) {
	id, ok := ui.idParam(w, r)
	if !ok {
		return
	}

	js, err := ui.coord.GetJobset(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load jobset", err)
		return
	}
	if js == nil {
		ui.renderNotFound(w, "Jobset not found")
		return
	}

	p, err := ui.store.GetProject(r.Context(), js.ProjectID)
	if err != nil {
		ui.renderError(w, "Failed to load project", err)
		return
	}

	opts := ui.parseListOptions(r)
	evals, total, err := ui.store.ListEvaluations(r.Context(), js.ID, opts)
	if err != nil {
		ui.renderError(w, "Failed to load evaluations", err)
		return
	}

	interval := js.CheckInterval
	if interval <= 0 {
		interval = ui.config.DefaultCheckInterval
	}
	var nextCheck *time.Time
	if js.LastChecked != nil && !js.State.InFlight() {
		t := js.LastChecked.Add(interval)
		nextCheck = &t
	}

	data := map[string]any{
		"Title":       js.Name + " - flakeci",
		"Project":     p,
		"Jobset":      js,
		"Interval":    interval,
		"NextCheck":   nextCheck,
		"Evaluations": evals,
		"Pagination":  ui.buildPagination(opts, total),
	}
	ui.render(w, http.StatusOK, "jobsets/detail", data)
}

func (ui *UI) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		ui.renderNotFound(w, "Invalid id")
		return 0, false
	}
	return id, true
}

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	return opts
}

func (ui *UI) buildPagination(opts model.ListOptions, total int) map[string]any {
	return map[string]any{
		"Total":      total,
		"Limit":      opts.Limit,
		"Offset":     opts.Offset,
		"HasMore":    opts.Offset+opts.Limit < total,
		"HasPrev":    opts.Offset > 0,
		"NextOffset": opts.Offset + opts.Limit,
		"PrevOffset": max(0, opts.Offset-opts.Limit),
	}
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - flakeci",
		"Message": message,
	}
	ui.render(w, http.StatusInternalServerError, "error", data)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	data := map[string]any{
		"Title":   "Not Found - flakeci",
		"Message": message,
	}
	ui.render(w, http.StatusNotFound, "error", data)
}
