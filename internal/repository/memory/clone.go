package memory

import (
	"slices"
	"time"

	"buildtrack/internal/model"
	"buildtrack/pkg/outbox"
)

// 存取都经过深拷贝，调用方改动返回值不会影响已存数据

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneProject(p *model.Project) *model.Project {
	c := *p
	c.ActualEndDate = cloneTime(p.ActualEndDate)
	c.Tags = slices.Clone(p.Tags)
	c.Budget.Breakdown = slices.Clone(p.Budget.Breakdown)
	return &c
}

func cloneMilestone(m *model.Milestone) *model.Milestone {
	c := *m
	c.CompletedDate = cloneTime(m.CompletedDate)
	c.Approval.ApprovedAt = cloneTime(m.Approval.ApprovedAt)
	c.Dependencies = slices.Clone(m.Dependencies)
	return &c
}

func cloneReport(r *model.DailyReport) *model.DailyReport {
	c := *r
	if r.Weather.Temperature != nil {
		t := *r.Weather.Temperature
		c.Weather.Temperature = &t
	}
	c.Equipment = slices.Clone(r.Equipment)
	c.MaterialsUsed = slices.Clone(r.MaterialsUsed)
	c.Issues = slices.Clone(r.Issues)
	c.SafetyIncidents = slices.Clone(r.SafetyIncidents)
	return &c
}

func cloneItem(i *model.InventoryItem) *model.InventoryItem {
	c := *i
	c.LastRestocked = cloneTime(i.LastRestocked)
	return &c
}

func clonePhoto(p *model.Photo) *model.Photo {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return &c
}

func cloneEvent(e *outbox.Event) *outbox.Event {
	c := *e
	c.Payload = slices.Clone(e.Payload)
	c.NextRetryAt = cloneTime(e.NextRetryAt)
	return &c
}
