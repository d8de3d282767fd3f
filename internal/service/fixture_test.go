package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/internal/repository/memory"
	"buildtrack/pkg/rbac"
	"buildtrack/pkg/storage"
)

var (
	contractor = model.Actor{UserID: "u-contractor", Role: rbac.RoleContractor}
	architect  = model.Actor{UserID: "u-architect", Role: rbac.RoleArchitect}
	client     = model.Actor{UserID: "u-client", Role: rbac.RoleClient}
	outsider   = model.Actor{UserID: "u-outsider", Role: rbac.RoleArchitect}
	admin      = model.Actor{UserID: "u-admin", Role: rbac.RoleAdmin}
)

// 2024-01-10 是周三
var fixedNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	objects    *storage.MemoryStore
	projects   *ProjectService
	milestones *MilestoneService
	reports    *ReportService
	inventory  *InventoryService
	photos     *PhotoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatalf("load enforcer: %v", err)
	}
	log := zap.NewNop()
	store := memory.NewStore(log)
	store.SetClock(func() time.Time { return fixedNow })
	objects := storage.NewMemoryStore()
	access := NewAccess(enforcer)

	rc := NewRecalculator(store, time.UTC, log)
	rc.now = func() time.Time { return fixedNow }

	milestones := NewMilestoneService(store, access, rc, log)
	milestones.now = func() time.Time { return fixedNow }
	inventory := NewInventoryService(store, access, log)
	inventory.now = func() time.Time { return fixedNow }
	photos := NewPhotoService(store, access, objects, log)
	photos.now = func() time.Time { return fixedNow }

	return &fixture{
		ctx:        context.Background(),
		store:      store,
		objects:    objects,
		projects:   NewProjectService(store, access, rc, log),
		milestones: milestones,
		reports:    NewReportService(store, access, rc, time.UTC, log),
		inventory:  inventory,
		photos:     photos,
	}
}

// project 30 天跨度，承包商、建筑师、客户都是成员
func (f *fixture) project(t *testing.T) *model.Project {
	t.Helper()
	p, err := f.projects.Create(f.ctx, contractor, CreateProjectInput{
		Name:         "Riverside Tower",
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-31",
		ClientID:     client.UserID,
		ContractorID: contractor.UserID,
		ArchitectID:  architect.UserID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (f *fixture) milestone(t *testing.T, projectID, title string, status model.MilestoneStatus, progress int) *model.Milestone {
	t.Helper()
	m, err := f.milestones.Create(f.ctx, contractor, CreateMilestoneInput{
		ProjectID: projectID,
		Title:     title,
		Status:    status,
		StartDate: "2024-01-02",
		DueDate:   "2024-01-20",
		Progress:  progress,
	})
	if err != nil {
		t.Fatalf("create milestone %q: %v", title, err)
	}
	return m
}

// awaiting 创建并提交一个进度已满的里程碑
func (f *fixture) awaiting(t *testing.T, projectID, title string) *model.Milestone {
	t.Helper()
	m := f.milestone(t, projectID, title, model.MilestoneInProgress, 100)
	m, err := f.milestones.Submit(f.ctx, contractor, m.ID)
	if err != nil {
		t.Fatalf("submit %q: %v", title, err)
	}
	return m
}

func (f *fixture) completed(t *testing.T, projectID, title string) *model.Milestone {
	t.Helper()
	m := f.awaiting(t, projectID, title)
	res, err := f.milestones.Review(f.ctx, architect, m.ID, ReviewInput{Decision: "approved"})
	if err != nil {
		t.Fatalf("approve %q: %v", title, err)
	}
	return res.Milestone
}

// dailyReports 从 2024-01-01 起每天一份
func (f *fixture) dailyReports(t *testing.T, projectID string, n int) {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i).Format(model.DateLayout)
		_, err := f.reports.Create(f.ctx, contractor, CreateReportInput{
			ProjectID:   projectID,
			Date:        date,
			WorkSummary: fmt.Sprintf("day %d", i+1),
		})
		if err != nil {
			t.Fatalf("create report %s: %v", date, err)
		}
	}
}
