package model

import (
	"strings"
	"time"

	"buildtrack/pkg/apperr"
)

type MilestoneStatus string

const (
	MilestonePending          MilestoneStatus = "pending"
	MilestoneInProgress       MilestoneStatus = "in-progress"
	MilestoneAwaitingApproval MilestoneStatus = "awaiting-approval"
	MilestoneApproved         MilestoneStatus = "approved"
	MilestoneRejected         MilestoneStatus = "rejected"
	MilestoneCompleted        MilestoneStatus = "completed"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneAwaitingApproval,
		MilestoneApproved, MilestoneRejected, MilestoneCompleted:
		return true
	}
	return false
}

// CountsAsDone approved 与 completed 计入进度
func (s MilestoneStatus) CountsAsDone() bool {
	return s == MilestoneApproved || s == MilestoneCompleted
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalFor 返回与里程碑状态锁步的审批状态
func ApprovalFor(s MilestoneStatus) ApprovalStatus {
	switch s {
	case MilestoneApproved, MilestoneCompleted:
		return ApprovalApproved
	case MilestoneRejected:
		return ApprovalRejected
	default:
		return ApprovalPending
	}
}

type Approval struct {
	Status     ApprovalStatus `json:"status"`
	ApprovedBy string         `json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	Comments   string         `json:"comments"`
}

type Milestone struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Status        MilestoneStatus `json:"status"`
	StartDate     time.Time       `json:"start_date"`
	DueDate       time.Time       `json:"due_date"`
	CompletedDate *time.Time      `json:"completed_date,omitempty"`
	Progress      int             `json:"progress"`
	AssignedTo    string          `json:"assigned_to,omitempty"`
	Approval      Approval        `json:"approval"`
	Dependencies  []string        `json:"dependencies"`
	Order         int             `json:"order"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SyncApproval 按当前状态重置审批状态，审批人与意见保留
func (m *Milestone) SyncApproval() {
	m.Approval.Status = ApprovalFor(m.Status)
}

// InLockstep 审批状态与里程碑状态一致
func (m *Milestone) InLockstep() bool {
	return m.Approval.Status == ApprovalFor(m.Status)
}

func (m *Milestone) Validate() error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return apperr.Validation("milestone title is required")
	}
	if m.StartDate.IsZero() {
		return apperr.Validation("start_date is required")
	}
	if m.DueDate.IsZero() {
		return apperr.Validation("due_date is required")
	}
	if m.StartDate.After(m.DueDate) {
		return apperr.Validation("start_date must not be after due_date")
	}
	if m.Progress < 0 || m.Progress > 100 {
		return apperr.Validation("progress must be between 0 and 100")
	}
	if !m.Status.Valid() {
		return apperr.Validation("invalid milestone status %q", m.Status)
	}
	seen := make(map[string]bool, len(m.Dependencies))
	deps := make([]string, 0, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep == "" || seen[dep] {
			continue
		}
		if dep == m.ID {
			return apperr.Validation("milestone cannot depend on itself")
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	m.Dependencies = deps
	return nil
}
