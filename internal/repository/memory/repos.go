package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

type projectRepo struct{ *repos }

func (r *projectRepo) Create(_ context.Context, p *model.Project) error {
	return r.view(func(t *tables) error {
		if _, ok := t.projects.get(p.ID); ok {
			return fmt.Errorf("project %s already exists", p.ID)
		}
		now := r.s.now()
		p.Version = 1
		p.CreatedAt, p.UpdatedAt = now, now
		t.projects.put(p.ID, cloneProject(p))
		return nil
	})
}

func (r *projectRepo) Get(_ context.Context, id string) (*model.Project, error) {
	var out *model.Project
	err := r.view(func(t *tables) error {
		p, ok := t.projects.get(id)
		if !ok {
			return apperr.NotFound("project")
		}
		out = cloneProject(p)
		return nil
	})
	return out, err
}

func (r *projectRepo) GetForUpdate(ctx context.Context, id string) (*model.Project, error) {
	return r.Get(ctx, id)
}

func matchProject(p *model.Project, f model.ProjectFilter) bool {
	if f.MemberID != "" && !p.IsMember(f.MemberID) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Priority != "" && p.Priority != f.Priority {
		return false
	}
	if f.Search != "" && !containsFold(p.Name, f.Search) {
		return false
	}
	return true
}

func (r *projectRepo) List(_ context.Context, f model.ProjectFilter) ([]*model.Project, int, error) {
	var matched []*model.Project
	_ = r.view(func(t *tables) error {
		for _, p := range t.projects.all() {
			if matchProject(p, f) {
				matched = append(matched, cloneProject(p))
			}
		}
		return nil
	})

	slices.Reverse(matched)
	sortStable(matched, func(a, b *model.Project) bool { return a.CreatedAt.After(b.CreatedAt) })
	return model.Window(orEmpty(matched), f.Page), len(matched), nil
}

func (r *projectRepo) MemberProjectIDs(_ context.Context, userID string) ([]string, error) {
	ids := []string{}
	_ = r.view(func(t *tables) error {
		for _, p := range t.projects.all() {
			if userID == "" || p.IsMember(userID) {
				ids = append(ids, p.ID)
			}
		}
		return nil
	})
	return ids, nil
}

func (r *projectRepo) Update(_ context.Context, p *model.Project) error {
	return r.view(func(t *tables) error {
		cur, ok := t.projects.get(p.ID)
		if !ok || cur.Version != p.Version {
			return apperr.Conflict(apperr.CodeVersionConflict, "project was modified by another request")
		}
		next := cloneProject(p)
		next.Progress = cur.Progress
		next.CreatedBy = cur.CreatedBy
		next.CreatedAt = cur.CreatedAt
		next.Version = cur.Version + 1
		next.UpdatedAt = r.s.now()
		t.projects.put(p.ID, next)

		p.Version, p.UpdatedAt = next.Version, next.UpdatedAt
		return nil
	})
}

func (r *projectRepo) UpdateProgress(_ context.Context, p *model.Project) error {
	return r.view(func(t *tables) error {
		cur, ok := t.projects.get(p.ID)
		if !ok {
			return apperr.NotFound("project")
		}
		cur.Progress = p.Progress
		cur.Version++
		cur.UpdatedAt = r.s.now()
		p.Version, p.UpdatedAt = cur.Version, cur.UpdatedAt
		return nil
	})
}

// Delete 级联删除项目下的里程碑、日报、库存与照片
func (r *projectRepo) Delete(_ context.Context, id string) error {
	return r.view(func(t *tables) error {
		if !t.projects.remove(id) {
			return apperr.NotFound("project")
		}
		for _, m := range t.milestones.all() {
			if m.ProjectID == id {
				t.milestones.remove(m.ID)
			}
		}
		for _, rep := range t.reports.all() {
			if rep.ProjectID == id {
				t.reports.remove(rep.ID)
			}
		}
		for _, item := range t.inventory.all() {
			if item.ProjectID == id {
				t.inventory.remove(item.ID)
			}
		}
		for _, p := range t.photos.all() {
			if p.ProjectID == id {
				t.photos.remove(p.ID)
			}
		}
		return nil
	})
}

type milestoneRepo struct{ *repos }

func (r *milestoneRepo) Create(_ context.Context, m *model.Milestone) error {
	return r.view(func(t *tables) error {
		if _, ok := t.projects.get(m.ProjectID); !ok {
			return fmt.Errorf("insert milestone: project %s does not exist", m.ProjectID)
		}
		now := r.s.now()
		m.CreatedAt, m.UpdatedAt = now, now
		t.milestones.put(m.ID, cloneMilestone(m))
		return nil
	})
}

func (r *milestoneRepo) Get(_ context.Context, id string) (*model.Milestone, error) {
	var out *model.Milestone
	err := r.view(func(t *tables) error {
		m, ok := t.milestones.get(id)
		if !ok {
			return apperr.NotFound("milestone")
		}
		out = cloneMilestone(m)
		return nil
	})
	return out, err
}

func (r *milestoneRepo) GetForUpdate(ctx context.Context, id string) (*model.Milestone, error) {
	return r.Get(ctx, id)
}

func (r *milestoneRepo) ListByProject(_ context.Context, projectID string) ([]*model.Milestone, error) {
	out := []*model.Milestone{}
	_ = r.view(func(t *tables) error {
		for _, m := range t.milestones.all() {
			if m.ProjectID == projectID {
				out = append(out, cloneMilestone(m))
			}
		}
		return nil
	})
	sortStable(out, func(a, b *model.Milestone) bool { return a.Order < b.Order })
	return out, nil
}

func (r *milestoneRepo) ListByStatus(_ context.Context, projectIDs []string, status model.MilestoneStatus) ([]*model.Milestone, error) {
	out := []*model.Milestone{}
	_ = r.view(func(t *tables) error {
		for _, m := range t.milestones.all() {
			if m.Status != status {
				continue
			}
			if projectIDs != nil && !slices.Contains(projectIDs, m.ProjectID) {
				continue
			}
			out = append(out, cloneMilestone(m))
		}
		return nil
	})
	sortStable(out, func(a, b *model.Milestone) bool { return a.DueDate.Before(b.DueDate) })
	return out, nil
}

func (r *milestoneRepo) StatusesByProject(_ context.Context, projectID string) ([]model.MilestoneStatus, error) {
	statuses := []model.MilestoneStatus{}
	_ = r.view(func(t *tables) error {
		for _, m := range t.milestones.all() {
			if m.ProjectID == projectID {
				statuses = append(statuses, m.Status)
			}
		}
		return nil
	})
	return statuses, nil
}

func (r *milestoneRepo) CountInProject(_ context.Context, projectID string, ids []string) (int, error) {
	n := 0
	_ = r.view(func(t *tables) error {
		for _, id := range ids {
			if m, ok := t.milestones.get(id); ok && m.ProjectID == projectID {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r *milestoneRepo) Update(_ context.Context, m *model.Milestone) error {
	return r.view(func(t *tables) error {
		cur, ok := t.milestones.get(m.ID)
		if !ok {
			return apperr.NotFound("milestone")
		}
		next := cloneMilestone(m)
		next.ProjectID = cur.ProjectID
		next.CreatedBy = cur.CreatedBy
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = r.s.now()
		t.milestones.put(m.ID, next)
		m.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *milestoneRepo) Delete(_ context.Context, id string) error {
	return r.view(func(t *tables) error {
		if !t.milestones.remove(id) {
			return apperr.NotFound("milestone")
		}
		for _, p := range t.photos.all() {
			if p.MilestoneID == id {
				p.MilestoneID = ""
			}
		}
		return nil
	})
}

type reportRepo struct{ *repos }

func duplicateDate() error {
	return apperr.ValidationCode(apperr.CodeDuplicateDate, "a daily report already exists for this project on this date")
}

func reportExists(t *tables, projectID string, date time.Time, excludeID string) bool {
	for _, rep := range t.reports.all() {
		if rep.ProjectID == projectID && rep.Date.Equal(date) && rep.ID != excludeID {
			return true
		}
	}
	return false
}

func (r *reportRepo) Create(_ context.Context, rep *model.DailyReport) error {
	return r.view(func(t *tables) error {
		if _, ok := t.projects.get(rep.ProjectID); !ok {
			return fmt.Errorf("insert daily report: project %s does not exist", rep.ProjectID)
		}
		if reportExists(t, rep.ProjectID, rep.Date, "") {
			return duplicateDate()
		}
		now := r.s.now()
		rep.CreatedAt, rep.UpdatedAt = now, now
		t.reports.put(rep.ID, cloneReport(rep))
		return nil
	})
}

func (r *reportRepo) Get(_ context.Context, id string) (*model.DailyReport, error) {
	var out *model.DailyReport
	err := r.view(func(t *tables) error {
		rep, ok := t.reports.get(id)
		if !ok {
			return apperr.NotFound("daily report")
		}
		out = cloneReport(rep)
		return nil
	})
	return out, err
}

func (r *reportRepo) ExistsForDate(_ context.Context, projectID string, date time.Time, excludeID string) (bool, error) {
	var exists bool
	_ = r.view(func(t *tables) error {
		exists = reportExists(t, projectID, date, excludeID)
		return nil
	})
	return exists, nil
}

func matchReport(rep *model.DailyReport, f model.ReportFilter) bool {
	if f.ProjectID != "" && rep.ProjectID != f.ProjectID {
		return false
	}
	if f.SubmittedBy != "" && rep.SubmittedBy != f.SubmittedBy {
		return false
	}
	if !f.From.IsZero() && rep.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rep.Date.After(f.To) {
		return false
	}
	return true
}

func (r *reportRepo) List(_ context.Context, f model.ReportFilter) ([]*model.DailyReport, int, error) {
	var matched []*model.DailyReport
	_ = r.view(func(t *tables) error {
		for _, rep := range t.reports.all() {
			if matchReport(rep, f) {
				matched = append(matched, cloneReport(rep))
			}
		}
		return nil
	})
	sortStable(matched, func(a, b *model.DailyReport) bool { return a.Date.After(b.Date) })
	return model.Window(orEmpty(matched), f.Page), len(matched), nil
}

func (r *reportRepo) Count(_ context.Context, projectID string, since time.Time) (int, error) {
	n := 0
	_ = r.view(func(t *tables) error {
		for _, rep := range t.reports.all() {
			if rep.ProjectID == projectID && (since.IsZero() || !rep.Date.Before(since)) {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r *reportRepo) Update(_ context.Context, rep *model.DailyReport) error {
	return r.view(func(t *tables) error {
		cur, ok := t.reports.get(rep.ID)
		if !ok {
			return apperr.NotFound("daily report")
		}
		if reportExists(t, cur.ProjectID, rep.Date, rep.ID) {
			return duplicateDate()
		}
		next := cloneReport(rep)
		next.ProjectID = cur.ProjectID
		next.SubmittedBy = cur.SubmittedBy
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = r.s.now()
		t.reports.put(rep.ID, next)
		rep.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *reportRepo) Delete(_ context.Context, id string) error {
	return r.view(func(t *tables) error {
		if !t.reports.remove(id) {
			return apperr.NotFound("daily report")
		}
		for _, p := range t.photos.all() {
			if p.DailyReportID == id {
				p.DailyReportID = ""
			}
		}
		return nil
	})
}

type inventoryRepo struct{ *repos }

func (r *inventoryRepo) Create(_ context.Context, item *model.InventoryItem) error {
	return r.view(func(t *tables) error {
		if _, ok := t.projects.get(item.ProjectID); !ok {
			return fmt.Errorf("insert inventory item: project %s does not exist", item.ProjectID)
		}
		now := r.s.now()
		item.CreatedAt, item.UpdatedAt = now, now
		t.inventory.put(item.ID, cloneItem(item))
		return nil
	})
}

func (r *inventoryRepo) Get(_ context.Context, id string) (*model.InventoryItem, error) {
	var out *model.InventoryItem
	err := r.view(func(t *tables) error {
		item, ok := t.inventory.get(id)
		if !ok {
			return apperr.NotFound("inventory item")
		}
		out = cloneItem(item)
		return nil
	})
	return out, err
}

func (r *inventoryRepo) GetForUpdate(ctx context.Context, id string) (*model.InventoryItem, error) {
	return r.Get(ctx, id)
}

func matchItem(item *model.InventoryItem, f model.InventoryFilter) bool {
	switch {
	case f.ProjectID != "":
		if item.ProjectID != f.ProjectID {
			return false
		}
	case f.ProjectIDs != nil:
		if !slices.Contains(f.ProjectIDs, item.ProjectID) {
			return false
		}
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.LowStock && !item.IsLowStock() {
		return false
	}
	if f.Search != "" && !containsFold(item.Name, f.Search) && !containsFold(item.Description, f.Search) {
		return false
	}
	return true
}

func (r *inventoryRepo) List(_ context.Context, f model.InventoryFilter) ([]*model.InventoryItem, error) {
	out := []*model.InventoryItem{}
	_ = r.view(func(t *tables) error {
		for _, item := range t.inventory.all() {
			if matchItem(item, f) {
				out = append(out, cloneItem(item))
			}
		}
		return nil
	})
	sortStable(out, func(a, b *model.InventoryItem) bool { return a.Name < b.Name })
	return out, nil
}

func (r *inventoryRepo) Update(_ context.Context, item *model.InventoryItem) error {
	return r.view(func(t *tables) error {
		cur, ok := t.inventory.get(item.ID)
		if !ok {
			return apperr.NotFound("inventory item")
		}
		next := cloneItem(item)
		next.ProjectID = cur.ProjectID
		next.AddedBy = cur.AddedBy
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = r.s.now()
		t.inventory.put(item.ID, next)
		item.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *inventoryRepo) Delete(_ context.Context, id string) error {
	return r.view(func(t *tables) error {
		if !t.inventory.remove(id) {
			return apperr.NotFound("inventory item")
		}
		return nil
	})
}

type photoRepo struct{ *repos }

func (r *photoRepo) Create(_ context.Context, p *model.Photo) error {
	return r.view(func(t *tables) error {
		if _, ok := t.projects.get(p.ProjectID); !ok {
			return fmt.Errorf("insert photo: project %s does not exist", p.ProjectID)
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		t.photos.put(p.ID, clonePhoto(p))
		return nil
	})
}

func (r *photoRepo) Get(_ context.Context, id string) (*model.Photo, error) {
	var out *model.Photo
	err := r.view(func(t *tables) error {
		p, ok := t.photos.get(id)
		if !ok {
			return apperr.NotFound("photo")
		}
		out = clonePhoto(p)
		return nil
	})
	return out, err
}

func (r *photoRepo) List(_ context.Context, f model.PhotoFilter) ([]*model.Photo, error) {
	out := []*model.Photo{}
	_ = r.view(func(t *tables) error {
		for _, p := range t.photos.all() {
			if p.ProjectID != f.ProjectID {
				continue
			}
			if f.Category != "" && p.Category != f.Category {
				continue
			}
			if !f.From.IsZero() && p.TakenAt.Before(f.From) {
				continue
			}
			if !f.To.IsZero() && p.TakenAt.After(f.To) {
				continue
			}
			out = append(out, clonePhoto(p))
		}
		return nil
	})
	sortStable(out, func(a, b *model.Photo) bool { return a.TakenAt.After(b.TakenAt) })
	return out, nil
}

func (r *photoRepo) Update(_ context.Context, p *model.Photo) error {
	return r.view(func(t *tables) error {
		cur, ok := t.photos.get(p.ID)
		if !ok {
			return apperr.NotFound("photo")
		}
		cur.Caption = p.Caption
		cur.Category = p.Category
		cur.Tags = slices.Clone(p.Tags)
		cur.UpdatedAt = r.s.now()
		p.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *photoRepo) Delete(_ context.Context, id string) error {
	return r.view(func(t *tables) error {
		if !t.photos.remove(id) {
			return apperr.NotFound("photo")
		}
		return nil
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func orEmpty[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}
