package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/internal/workflow"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/metrics"
	"buildtrack/pkg/rbac"
)

type MilestoneService struct {
	store        repository.Store
	access       *Access
	recalculator *Recalculator
	now          func() time.Time
	logger       *zap.Logger
}

func NewMilestoneService(store repository.Store, access *Access, recalculator *Recalculator, logger *zap.Logger) *MilestoneService {
	return &MilestoneService{
		store:        store,
		access:       access,
		recalculator: recalculator,
		now:          utcNow,
		logger:       logger,
	}
}

type CreateMilestoneInput struct {
	ProjectID    string                `json:"project_id" binding:"required"`
	Title        string                `json:"title" binding:"required"`
	Description  string                `json:"description"`
	Status       model.MilestoneStatus `json:"status"`
	StartDate    string                `json:"start_date" binding:"required"`
	DueDate      string                `json:"due_date" binding:"required"`
	Progress     int                   `json:"progress"`
	AssignedTo   string                `json:"assigned_to"`
	Dependencies []string              `json:"dependencies"`
	Order        int                   `json:"order"`
}

// UpdateMilestoneInput status 只能改为 pending 或 in-progress，审批走 Submit / Review
type UpdateMilestoneInput struct {
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Status        *model.MilestoneStatus `json:"status"`
	StartDate     *string                `json:"start_date"`
	DueDate       *string                `json:"due_date"`
	CompletedDate *string                `json:"completed_date"`
	Progress      *int                   `json:"progress"`
	AssignedTo    *string                `json:"assigned_to"`
	Dependencies  []string               `json:"dependencies"`
	Order         *int                   `json:"order"`
}

// ReviewInput 与原接口一致，结论放在 status 字段
type ReviewInput struct {
	Decision string `json:"status" binding:"required"`
	Comments string `json:"comments"`
}

type ReviewResult struct {
	Milestone       *model.Milestone `json:"milestone"`
	ProjectProgress int              `json:"project_progress"`
}

// recordTransition result: ok / rejected_by_policy / error
func recordTransition(action workflow.Action, err error) {
	result := "ok"
	switch {
	case err == nil:
	case apperr.KindOf(err) != "":
		result = "rejected_by_policy"
	default:
		result = "error"
	}
	metrics.RecordTransition(string(action), result)
}

// checkDependencies 依赖必须是同一项目中已存在的里程碑
func checkDependencies(ctx context.Context, r repository.Repos, m *model.Milestone) error {
	if len(m.Dependencies) == 0 {
		return nil
	}
	n, err := r.Milestones().CountInProject(ctx, m.ProjectID, m.Dependencies)
	if err != nil {
		return err
	}
	if n != len(m.Dependencies) {
		return apperr.Validation("dependencies must reference milestones of the same project")
	}
	return nil
}

func (s *MilestoneService) Create(ctx context.Context, actor model.Actor, in CreateMilestoneInput) (*model.Milestone, error) {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionCreate); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.MilestonePending
	}
	if !workflow.InitialStatusAllowed(status) {
		return nil, apperr.Validation("a new milestone must start as pending or in-progress")
	}
	if strings.TrimSpace(in.StartDate) == "" {
		return nil, apperr.Validation("start_date is required")
	}
	start, err := parseTime("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	due, err := parseTime("due_date", in.DueDate)
	if err != nil {
		return nil, err
	}

	m := &model.Milestone{
		ID:           uuid.NewString(),
		ProjectID:    in.ProjectID,
		Title:        in.Title,
		Description:  in.Description,
		Status:       status,
		StartDate:    start,
		DueDate:      due,
		Progress:     in.Progress,
		AssignedTo:   in.AssignedTo,
		Dependencies: in.Dependencies,
		Order:        in.Order,
		CreatedBy:    actor.UserID,
	}
	m.SyncApproval()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.Project(ctx, r.Projects(), actor, m.ProjectID); err != nil {
			return err
		}
		if err := checkDependencies(ctx, r, m); err != nil {
			return err
		}
		if err := r.Milestones().Create(ctx, m); err != nil {
			return err
		}
		return requestRecalculation(ctx, r, m.ProjectID, "milestone.created")
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Milestone created",
		zap.String("milestone_id", m.ID),
		zap.String("project_id", m.ProjectID),
	)
	return m, nil
}

func (s *MilestoneService) Get(ctx context.Context, actor model.Actor, milestoneID string) (*model.Milestone, error) {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionRead); err != nil {
		return nil, err
	}
	m, err := s.store.Milestones().Get(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, m.ProjectID); err != nil {
		return nil, err
	}
	return m, nil
}

// ListByProject 按 order 排序
func (s *MilestoneService) ListByProject(ctx context.Context, actor model.Actor, projectID string) ([]*model.Milestone, error) {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, projectID); err != nil {
		return nil, err
	}
	return s.store.Milestones().ListByProject(ctx, projectID)
}

// PendingApprovals 审批人所在项目中等待审批的里程碑，仅有审批权限的角色可用
func (s *MilestoneService) PendingApprovals(ctx context.Context, actor model.Actor) ([]*model.Milestone, error) {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionReview); err != nil {
		return nil, err
	}
	ids, err := memberProjectIDs(ctx, s.store.Projects(), actor)
	if err != nil {
		return nil, err
	}
	if ids != nil && len(ids) == 0 {
		return []*model.Milestone{}, nil
	}
	return s.store.Milestones().ListByStatus(ctx, ids, model.MilestoneAwaitingApproval)
}

func (s *MilestoneService) Update(ctx context.Context, actor model.Actor, milestoneID string, in UpdateMilestoneInput) (*model.Milestone, error) {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var out *model.Milestone
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		m, err := r.Milestones().GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, m.ProjectID); err != nil {
			return err
		}

		var status model.MilestoneStatus
		if in.Status != nil {
			status = *in.Status
		}
		if err := workflow.Edit(m, status); err != nil {
			return err
		}
		if err := applyMilestoneUpdate(m, in); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
		if err := checkDependencies(ctx, r, m); err != nil {
			return err
		}
		if err := r.Milestones().Update(ctx, m); err != nil {
			return err
		}
		out = m
		return requestRecalculation(ctx, r, m.ProjectID, "milestone.updated")
	})
	recordTransition(workflow.ActionEdit, err)
	return out, err
}

func applyMilestoneUpdate(m *model.Milestone, in UpdateMilestoneInput) error {
	if in.Title != nil {
		m.Title = *in.Title
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.StartDate != nil {
		t, err := parseTime("start_date", *in.StartDate)
		if err != nil {
			return err
		}
		m.StartDate = t
	}
	if in.DueDate != nil {
		t, err := parseTime("due_date", *in.DueDate)
		if err != nil {
			return err
		}
		m.DueDate = t
	}
	if in.CompletedDate != nil {
		t, err := parseOptionalTime("completed_date", *in.CompletedDate)
		if err != nil {
			return err
		}
		m.CompletedDate = t
	}
	if in.Progress != nil {
		m.Progress = *in.Progress
	}
	if in.AssignedTo != nil {
		m.AssignedTo = *in.AssignedTo
	}
	if in.Dependencies != nil {
		m.Dependencies = in.Dependencies
	}
	if in.Order != nil {
		m.Order = *in.Order
	}
	return nil
}

func (s *MilestoneService) Delete(ctx context.Context, actor model.Actor, milestoneID string) error {
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionDelete); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(r repository.Repos) error {
		m, err := r.Milestones().GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, m.ProjectID); err != nil {
			return err
		}
		if err := workflow.Delete(m); err != nil {
			return err
		}
		if err := r.Milestones().Delete(ctx, milestoneID); err != nil {
			return err
		}
		return requestRecalculation(ctx, r, m.ProjectID, "milestone.deleted")
	})
	recordTransition(workflow.ActionDelete, err)
	return err
}

// Submit 承包商提交审批，进度必须达到 100
func (s *MilestoneService) Submit(ctx context.Context, actor model.Actor, milestoneID string) (*model.Milestone, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionSubmit); err != nil {
		recordTransition(workflow.ActionSubmit, err)
		return nil, err
	}

	var out *model.Milestone
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		m, err := r.Milestones().GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, m.ProjectID); err != nil {
			return err
		}
		if err := workflow.Submit(m); err != nil {
			return err
		}
		if err := r.Milestones().Update(ctx, m); err != nil {
			return err
		}

		payload := &mqcontracts.MilestoneSubmittedPayload{
			MilestoneID: m.ID,
			ProjectID:   m.ProjectID,
			Title:       m.Title,
			SubmittedBy: actor.UserID,
			SubmittedAt: s.now(),
		}
		if err := enqueue(ctx, r, aggregateMilestone, m.ID, mqcontracts.RoutingMilestoneSubmitted, payload); err != nil {
			return err
		}
		out = m
		return nil
	})
	recordTransition(workflow.ActionSubmit, err)
	if err != nil {
		log.Warn("Milestone submit refused",
			zap.String("milestone_id", milestoneID),
			zap.String("user_id", actor.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Milestone submitted for approval",
		zap.String("milestone_id", milestoneID),
		zap.String("user_id", actor.UserID),
	)
	return out, nil
}

// Review 建筑师审批：角色 → 结论 → 加载 → 成员资格 → 状态，通过或驳回后重算项目进度
func (s *MilestoneService) Review(ctx context.Context, actor model.Actor, milestoneID string, in ReviewInput) (*ReviewResult, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourceMilestone, rbac.ActionReview); err != nil {
		recordTransition(workflow.ActionApprove, err)
		return nil, err
	}
	decision, err := workflow.ParseDecision(in.Decision)
	if err != nil {
		recordTransition(workflow.ActionApprove, err)
		return nil, err
	}

	var out *ReviewResult
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		m, err := r.Milestones().GetForUpdate(ctx, milestoneID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, m.ProjectID); err != nil {
			return err
		}

		now := s.now()
		if err := workflow.Review(m, decision, actor.UserID, in.Comments, now); err != nil {
			return err
		}
		if err := r.Milestones().Update(ctx, m); err != nil {
			return err
		}

		res, err := s.recalculator.Recalculate(ctx, r, m.ProjectID, TriggerReview)
		if err != nil {
			return err
		}

		payload := &mqcontracts.MilestoneReviewedPayload{
			MilestoneID:     m.ID,
			ProjectID:       m.ProjectID,
			Title:           m.Title,
			Decision:        string(decision),
			Comments:        in.Comments,
			ReviewedBy:      actor.UserID,
			ReviewedAt:      now,
			ProjectProgress: res.Progress,
		}
		if err := enqueue(ctx, r, aggregateMilestone, m.ID, mqcontracts.RoutingMilestoneReviewed, payload); err != nil {
			return err
		}
		out = &ReviewResult{Milestone: m, ProjectProgress: res.Progress}
		return nil
	})
	recordTransition(decision.Action(), err)
	if err != nil {
		log.Warn("Milestone review refused",
			zap.String("milestone_id", milestoneID),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Milestone reviewed",
		zap.String("milestone_id", milestoneID),
		zap.String("decision", string(decision)),
		zap.String("reviewed_by", actor.UserID),
		zap.Int("project_progress", out.ProjectProgress),
	)
	return out, nil
}
