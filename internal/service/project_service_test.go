package service

import (
	"errors"
	"testing"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

func TestProjectProgress_MilestonesAndReports(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	f.completed(t, p.ID, "Foundation")
	f.completed(t, p.ID, "Framing")
	f.milestone(t, p.ID, "Roofing", model.MilestoneInProgress, 40)
	f.milestone(t, p.ID, "Finishing", model.MilestonePending, 0)
	f.dailyReports(t, p.ID, 9)

	got, err := f.projects.Get(f.ctx, client, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	// 2/4*70 + min(9/30*30, 30) = 35 + 9
	if got.Progress != 44 {
		t.Errorf("expected progress 44, got %d", got.Progress)
	}

	bd := got.ProgressBreakdown
	if bd.Milestones.Total != 4 || bd.Milestones.Approved != 2 || bd.Milestones.InProgress != 1 || bd.Milestones.Pending != 1 {
		t.Errorf("unexpected milestone breakdown: %+v", bd.Milestones)
	}
	if bd.Reports.Total != 9 {
		t.Errorf("expected 9 reports in breakdown, got %d", bd.Reports.Total)
	}
	// 本周从 2024-01-08 开始
	if bd.Reports.ThisWeek != 2 {
		t.Errorf("expected 2 reports this week, got %d", bd.Reports.ThisWeek)
	}
}

func TestProjectProgress_ReportsOnly(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.dailyReports(t, p.ID, 15)

	got, err := f.projects.Get(f.ctx, contractor, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Progress != 50 {
		t.Errorf("expected progress 50, got %d", got.Progress)
	}
}

func TestProjectProgress_EmptyProjectIsZero(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	res, err := f.projects.Recalculate(f.ctx, client, p.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if res.Progress != 0 || res.Changed {
		t.Errorf("expected unchanged 0, got %+v", res)
	}
}

func TestProjectGet_NotFoundBeforeMembership(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	_, err := f.projects.Get(f.ctx, outsider, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing project, got %v", err)
	}

	_, err = f.projects.Get(f.ctx, outsider, p.ID)
	if !errors.Is(err, apperr.ErrNotProjectMember) {
		t.Errorf("expected NOT_PROJECT_MEMBER, got %v", err)
	}

	if _, err := f.projects.Get(f.ctx, admin, p.ID); err != nil {
		t.Errorf("admin should bypass membership: %v", err)
	}
}

func TestProjectCreate_ClientForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.projects.Create(f.ctx, client, CreateProjectInput{
		Name:      "Warehouse",
		StartDate: "2024-01-01",
		EndDate:   "2024-02-01",
		ClientID:  client.UserID,
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestProjectCreate_RejectsInvertedDates(t *testing.T) {
	f := newFixture(t)

	_, err := f.projects.Create(f.ctx, contractor, CreateProjectInput{
		Name:      "Warehouse",
		StartDate: "2024-03-01",
		EndDate:   "2024-02-01",
		ClientID:  client.UserID,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestProjectUpdate_VersionConflict(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	stale := p.Version
	name := "Riverside Tower II"
	updated, err := f.projects.Update(f.ctx, contractor, p.ID, UpdateProjectInput{Name: &name, Version: &stale})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != stale+1 {
		t.Errorf("expected version %d, got %d", stale+1, updated.Version)
	}

	other := "Riverside Tower III"
	_, err = f.projects.Update(f.ctx, contractor, p.ID, UpdateProjectInput{Name: &other, Version: &stale})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, err := f.projects.Get(f.ctx, contractor, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Name != name {
		t.Errorf("stale update must not win, name is %q", got.Name)
	}
}

func TestProjectUpdate_KeepsProgress(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.dailyReports(t, p.ID, 15)

	desc := "phase two"
	got, err := f.projects.Update(f.ctx, contractor, p.ID, UpdateProjectInput{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Progress != 50 {
		t.Errorf("update must not touch progress, got %d", got.Progress)
	}
}

func TestProjectList_ScopedToMembers(t *testing.T) {
	f := newFixture(t)
	f.project(t)
	f.project(t)

	projects, page, err := f.projects.List(f.ctx, client, ProjectQuery{Page: model.NewPage(1, 10)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 2 || page.Total != 2 {
		t.Errorf("expected 2 projects for client, got %d (total %d)", len(projects), page.Total)
	}

	projects, _, err = f.projects.List(f.ctx, outsider, ProjectQuery{Page: model.NewPage(1, 10)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects for outsider, got %d", len(projects))
	}
}

func TestOverrideProgress(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	_, err := f.projects.OverrideProgress(f.ctx, architect, p.ID, 60)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("architect must not override progress, got %v", err)
	}

	_, err = f.projects.OverrideProgress(f.ctx, contractor, p.ID, 101)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for 101, got %v", err)
	}

	got, err := f.projects.OverrideProgress(f.ctx, contractor, p.ID, 60)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.Progress != 60 {
		t.Errorf("expected 60, got %d", got.Progress)
	}
}

func TestProjectDelete_CascadesChildren(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	m := f.milestone(t, p.ID, "Foundation", model.MilestonePending, 0)
	f.dailyReports(t, p.ID, 1)

	if err := f.projects.Delete(f.ctx, contractor, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.milestones.Get(f.ctx, admin, m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected milestone gone, got %v", err)
	}
}
