// Package workflow 里程碑审批状态机
//
//	pending ──edit──▶ in-progress ──submit──▶ awaiting-approval ──approve──▶ completed
//	                       ▲                          │
//	                       └──────edit─── rejected ◀──┴──reject
//
// rejected 可以直接 submit 重新提交。completed 与 approved 不再接受任何动作。
package workflow

import (
	"time"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
)

// Decision 审批结论，取值与 ApprovalStatus 相同
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision 只接受 approved / rejected
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApproved, DecisionRejected:
		return Decision(s), nil
	}
	return "", apperr.ValidationCode(apperr.CodeInvalidDecision, "decision must be approved or rejected")
}

func (d Decision) Action() Action {
	if d == DecisionApproved {
		return ActionApprove
	}
	return ActionReject
}

// 每个状态允许的动作
var allowed = map[model.MilestoneStatus]map[Action]bool{
	model.MilestonePending: {
		ActionEdit:   true,
		ActionDelete: true,
	},
	model.MilestoneInProgress: {
		ActionSubmit: true,
		ActionEdit:   true,
		ActionDelete: true,
	},
	model.MilestoneAwaitingApproval: {
		ActionApprove: true,
		ActionReject:  true,
		ActionEdit:    true,
		ActionDelete:  true,
	},
	model.MilestoneRejected: {
		ActionSubmit: true,
		ActionEdit:   true,
	},
}

// 会改变状态的动作的目标状态
var targets = map[Action]model.MilestoneStatus{
	ActionSubmit:  model.MilestoneAwaitingApproval,
	ActionApprove: model.MilestoneCompleted,
	ActionReject:  model.MilestoneRejected,
}

// Allowed 动作在该状态下是否合法
func Allowed(from model.MilestoneStatus, action Action) bool {
	return allowed[from][action]
}

// Check 非法时返回 InvalidTransition
func Check(from model.MilestoneStatus, action Action) error {
	if !Allowed(from, action) {
		return apperr.InvalidTransition(string(from), string(action))
	}
	return nil
}

// Reachable 一步之内可以到达的状态（不含 edit 显式设置的状态）
func Reachable(from model.MilestoneStatus) []model.MilestoneStatus {
	var out []model.MilestoneStatus
	for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject} {
		if Allowed(from, action) {
			out = append(out, targets[action])
		}
	}
	return out
}

// InitialStatusAllowed 新建里程碑只能是 pending 或 in-progress
func InitialStatusAllowed(s model.MilestoneStatus) bool {
	return s == model.MilestonePending || s == model.MilestoneInProgress
}

// Submit 承包商提交审批，进度必须为 100
func Submit(m *model.Milestone) error {
	if err := Check(m.Status, ActionSubmit); err != nil {
		return err
	}
	if m.Progress != 100 {
		return apperr.ValidationCode(apperr.CodeProgressIncomplete, "milestone must reach 100% before submission")
	}
	m.Status = targets[ActionSubmit]
	m.SyncApproval()
	return nil
}

// Review 建筑师审批
func Review(m *model.Milestone, decision Decision, reviewerID, comments string, now time.Time) error {
	action := decision.Action()
	if err := Check(m.Status, action); err != nil {
		return err
	}

	m.Status = targets[action]
	m.Approval = model.Approval{
		Status:     model.ApprovalFor(m.Status),
		ApprovedBy: reviewerID,
		ApprovedAt: &now,
		Comments:   comments,
	}
	if decision == DecisionApproved {
		m.Progress = 100
		m.CompletedDate = &now
	}
	return nil
}

// Edit 校验编辑是否合法；status 非空时只能设为 pending 或 in-progress
func Edit(m *model.Milestone, status model.MilestoneStatus) error {
	if err := Check(m.Status, ActionEdit); err != nil {
		return err
	}
	if status != "" {
		if !InitialStatusAllowed(status) {
			return apperr.InvalidTransition(string(m.Status), "set status "+string(status)+" on")
		}
		m.Status = status
	}
	m.SyncApproval()
	return nil
}

// Delete 校验删除是否合法
func Delete(m *model.Milestone) error {
	return Check(m.Status, ActionDelete)
}
