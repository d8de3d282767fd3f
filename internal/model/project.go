package model

import (
	"strings"
	"time"

	"buildtrack/pkg/apperr"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	PinCode string `json:"pin_code,omitempty"`
}

type BudgetLine struct {
	Category  string  `json:"category"`
	Estimated float64 `json:"estimated"`
	Actual    float64 `json:"actual"`
}

type Budget struct {
	Estimated float64      `json:"estimated"`
	Actual    float64      `json:"actual"`
	Breakdown []BudgetLine `json:"breakdown"`
}

type Project struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Status        ProjectStatus `json:"status"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	ActualEndDate *time.Time    `json:"actual_end_date,omitempty"`
	Location      Location      `json:"location"`
	Budget        Budget        `json:"budget"`
	Progress      int           `json:"progress"` // 只由重算或显式覆盖写入
	Priority      Priority      `json:"priority"`
	Tags          []string      `json:"tags"`
	ClientID      string        `json:"client_id"`
	ContractorID  string        `json:"contractor_id,omitempty"`
	ArchitectID   string        `json:"architect_id,omitempty"`
	CreatedBy     string        `json:"created_by"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsMember 项目的客户、承包商、建筑师或创建者
func (p *Project) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == p.ClientID ||
		userID == p.ContractorID ||
		userID == p.ArchitectID ||
		userID == p.CreatedBy
}

// Validate 校验字段约束，缺省值在这里补齐
func (p *Project) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("project name is required")
	}
	if p.ClientID == "" {
		return apperr.Validation("client_id is required")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return apperr.Validation("start_date and end_date are required")
	}
	if p.StartDate.After(p.EndDate) {
		return apperr.Validation("start_date must not be after end_date")
	}
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
	if !p.Status.Valid() {
		return apperr.Validation("invalid project status %q", p.Status)
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if !p.Priority.Valid() {
		return apperr.Validation("invalid priority %q", p.Priority)
	}
	if p.Progress < 0 || p.Progress > 100 {
		return apperr.Validation("progress must be between 0 and 100")
	}
	if err := p.Budget.Validate(); err != nil {
		return err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return nil
}

func (b *Budget) Validate() error {
	if b.Estimated < 0 || b.Actual < 0 {
		return apperr.Validation("budget amounts must not be negative")
	}
	for _, line := range b.Breakdown {
		if strings.TrimSpace(line.Category) == "" {
			return apperr.Validation("budget breakdown category is required")
		}
		if line.Estimated < 0 || line.Actual < 0 {
			return apperr.Validation("budget breakdown amounts must not be negative")
		}
	}
	if b.Breakdown == nil {
		b.Breakdown = []BudgetLine{}
	}
	return nil
}

// ProjectFilter 列表查询条件，成员过滤由 MemberID 表达（管理员为空）
type ProjectFilter struct {
	MemberID string
	Status   ProjectStatus
	Priority Priority
	Search   string
	Page     Page
}
