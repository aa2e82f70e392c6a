package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/me/flakeci/pkg/model"
)

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ProjectRoundTrip", func(t *testing.T) { testProjectRoundTrip(t, newStore(t)) })
	t.Run("JobsetsOrderedByID", func(t *testing.T) { testJobsetsOrderedByID(t, newStore(t)) })
	t.Run("UpdateJobset", func(t *testing.T) { testUpdateJobset(t, newStore(t)) })
	t.Run("UpdateMissingJobset", func(t *testing.T) { testUpdateMissingJobset(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Evaluations", func(t *testing.T) { testEvaluations(t, newStore(t)) })
}

func mustProject(t *testing.T, st Store, name string) *model.Project {
	t.Helper()
	p := &model.Project{Name: name, Description: "test project"}
	if err := st.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject(%s): %v", name, err)
	}
	if p.ID == 0 {
		t.Fatal("CreateProject did not assign an id")
	}
	return p
}

func mustJobset(t *testing.T, st Store, projectID int64, name string) *model.Jobset {
	t.Helper()
	js := &model.Jobset{
		ProjectID:     projectID,
		Name:          name,
		Description:   "nightly",
		Flake:         "git+https://example.org/" + name + "#hydraJobs",
		CheckInterval: 15 * time.Minute,
	}
	if err := st.CreateJobset(context.Background(), js); err != nil {
		t.Fatalf("CreateJobset(%s): %v", name, err)
	}
	if js.ID == 0 {
		t.Fatal("CreateJobset did not assign an id")
	}
	return js
}

func testProjectRoundTrip(t *testing.T, st Store) {
	ctx := context.Background()
	p := mustProject(t, st, "nixos")
	mustProject(t, st, "home")

	got, err := st.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got == nil || got.Name != "nixos" || got.Description != "test project" {
		t.Fatalf("GetProject = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	all, err := st.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(all) != 2 || all[0].Name != "nixos" || all[1].Name != "home" {
		t.Errorf("ListProjects = %+v", all)
	}

	if err := st.CreateProject(ctx, &model.Project{Name: "nixos"}); err == nil {
		t.Error("expected duplicate project name to fail")
	}
}

func testJobsetsOrderedByID(t *testing.T, st Store) {
	ctx := context.Background()
	p := mustProject(t, st, "p")
	other := mustProject(t, st, "other")
	a := mustJobset(t, st, p.ID, "a")
	mustJobset(t, st, other.ID, "x")
	b := mustJobset(t, st, p.ID, "b")

	jobsets, err := st.GetProjectJobsets(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProjectJobsets: %v", err)
	}
	if len(jobsets) != 2 {
		t.Fatalf("got %d jobsets, want 2", len(jobsets))
	}
	if jobsets[0].ID != a.ID || jobsets[1].ID != b.ID {
		t.Errorf("order = [%d %d], want [%d %d]", jobsets[0].ID, jobsets[1].ID, a.ID, b.ID)
	}
	if jobsets[0].State != model.JobsetStateUnknown {
		t.Errorf("initial state = %s, want UNKNOWN", jobsets[0].State)
	}
	if jobsets[0].LastChecked != nil || jobsets[0].EvaluationTook != nil {
		t.Error("fresh jobset should have no timing fields")
	}
	if jobsets[0].CheckInterval != 15*time.Minute {
		t.Errorf("CheckInterval = %v, want 15m", jobsets[0].CheckInterval)
	}

	none, err := st.GetProjectJobsets(ctx, 9999)
	if err != nil {
		t.Fatalf("GetProjectJobsets(missing): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d jobsets for missing project", len(none))
	}

	if err := st.CreateJobset(ctx, &model.Jobset{ProjectID: 9999, Name: "orphan", Flake: "path:/x"}); err == nil {
		t.Error("expected jobset for missing project to fail")
	}
}

func testUpdateJobset(t *testing.T, st Store) {
	ctx := context.Background()
	p := mustProject(t, st, "p")
	js := mustJobset(t, st, p.ID, "main")

	checked := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	evaluated := checked.Add(2 * time.Second)
	took := int64(2000)
	js.State = model.JobsetStateSucceeded
	js.LastChecked = &checked
	js.LastEvaluated = &evaluated
	js.EvaluationTook = &took
	if err := st.UpdateJobset(ctx, js); err != nil {
		t.Fatalf("UpdateJobset: %v", err)
	}

	got, err := st.GetJobset(ctx, js.ID)
	if err != nil {
		t.Fatalf("GetJobset: %v", err)
	}
	if got.State != model.JobsetStateSucceeded {
		t.Errorf("State = %s", got.State)
	}
	if got.LastChecked == nil || !got.LastChecked.Equal(checked) {
		t.Errorf("LastChecked = %v, want %v", got.LastChecked, checked)
	}
	if got.LastEvaluated == nil || !got.LastEvaluated.Equal(evaluated) {
		t.Errorf("LastEvaluated = %v, want %v", got.LastEvaluated, evaluated)
	}
	if got.EvaluationTook == nil || *got.EvaluationTook != 2000 {
		t.Errorf("EvaluationTook = %v", got.EvaluationTook)
	}

	// Mutating the returned value must not leak into the store.
	got.State = model.JobsetStateFailed
	again, _ := st.GetJobset(ctx, js.ID)
	if again.State != model.JobsetStateSucceeded {
		t.Error("store shares state with returned jobset")
	}
}

func testUpdateMissingJobset(t *testing.T, st Store) {
	err := st.UpdateJobset(context.Background(), &model.Jobset{ID: 424242, State: model.JobsetStateFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateJobset(missing) = %v, want ErrNotFound", err)
	}
}

func testGetMissing(t *testing.T, st Store) {
	ctx := context.Background()
	js, err := st.GetJobset(ctx, 31337)
	if err != nil || js != nil {
		t.Errorf("GetJobset(missing) = %v, %v; want nil, nil", js, err)
	}
	p, err := st.GetProject(ctx, 31337)
	if err != nil || p != nil {
		t.Errorf("GetProject(missing) = %v, %v; want nil, nil", p, err)
	}
}

func testEvaluations(t *testing.T, st Store) {
	ctx := context.Background()
	p := mustProject(t, st, "p")
	js := mustJobset(t, st, p.ID, "main")
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := model.NewEvaluation(js.ID, start.Add(time.Duration(i)*time.Hour), model.EvaluationResult{
			Outcome:  model.EvaluationSuccess,
			Duration: time.Duration(i+1) * time.Second,
			Targets: []model.TargetOutcome{
				{AttrPath: "pkgs.hello", DrvPath: "/nix/store/abc-hello.drv", Outputs: map[string]string{"out": "/nix/store/abc-hello"}},
				{AttrPath: "pkgs.broken", Error: "assertion failed"},
			},
		})
		if err := st.CreateEvaluation(ctx, ev); err != nil {
			t.Fatalf("CreateEvaluation: %v", err)
		}
		if ev.ID == 0 {
			t.Fatal("CreateEvaluation did not assign an id")
		}
	}

	evals, total, err := st.ListEvaluations(ctx, js.ID, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if total != 3 || len(evals) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(evals))
	}
	if evals[0].DurationMS != 3000 || evals[1].DurationMS != 2000 {
		t.Errorf("not newest first: %d, %d", evals[0].DurationMS, evals[1].DurationMS)
	}
	if len(evals[0].Targets) != 2 || evals[0].Targets[0].Outputs["out"] != "/nix/store/abc-hello" {
		t.Errorf("targets = %+v", evals[0].Targets)
	}
	if !evals[0].StartedAt.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v", evals[0].StartedAt)
	}

	page2, _, err := st.ListEvaluations(ctx, js.ID, model.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListEvaluations(page 2): %v", err)
	}
	if len(page2) != 1 || page2[0].DurationMS != 1000 {
		t.Errorf("page2 = %+v", page2)
	}
}
