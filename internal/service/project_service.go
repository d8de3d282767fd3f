package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/internal/progress"
	"buildtrack/internal/repository"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/rbac"
)

type ProjectService struct {
	store        repository.Store
	access       *Access
	recalculator *Recalculator
	logger       *zap.Logger
}

func NewProjectService(store repository.Store, access *Access, recalculator *Recalculator, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		store:        store,
		access:       access,
		recalculator: recalculator,
		logger:       logger,
	}
}

type CreateProjectInput struct {
	Name         string              `json:"name" binding:"required"`
	Description  string              `json:"description"`
	Status       model.ProjectStatus `json:"status"`
	StartDate    string              `json:"start_date" binding:"required"`
	EndDate      string              `json:"end_date" binding:"required"`
	Location     model.Location      `json:"location"`
	Budget       model.Budget        `json:"budget"`
	Priority     model.Priority      `json:"priority"`
	Tags         []string            `json:"tags"`
	ClientID     string              `json:"client_id" binding:"required"`
	ContractorID string              `json:"contractor_id"`
	ArchitectID  string              `json:"architect_id"`
}

// UpdateProjectInput 只更新非 nil 字段；Version 非 nil 时作为乐观锁前提
type UpdateProjectInput struct {
	Name          *string              `json:"name"`
	Description   *string              `json:"description"`
	Status        *model.ProjectStatus `json:"status"`
	StartDate     *string              `json:"start_date"`
	EndDate       *string              `json:"end_date"`
	ActualEndDate *string              `json:"actual_end_date"`
	Location      *model.Location      `json:"location"`
	Budget        *model.Budget        `json:"budget"`
	Priority      *model.Priority      `json:"priority"`
	Tags          []string             `json:"tags"`
	ClientID      *string              `json:"client_id"`
	ContractorID  *string              `json:"contractor_id"`
	ArchitectID   *string              `json:"architect_id"`
	Version       *int64               `json:"version"`
}

type ProjectQuery struct {
	Status   model.ProjectStatus
	Priority model.Priority
	Search   string
	Page     model.Page
}

// ProjectDetail 项目读取结果，附带进度明细
type ProjectDetail struct {
	*model.Project
	ProgressBreakdown progress.Breakdown `json:"progress_breakdown"`
}

func (s *ProjectService) List(ctx context.Context, actor model.Actor, q ProjectQuery) ([]*model.Project, model.Pagination, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionRead); err != nil {
		return nil, model.Pagination{}, err
	}

	projects, total, err := s.store.Projects().List(ctx, model.ProjectFilter{
		MemberID: memberScope(actor),
		Status:   q.Status,
		Priority: q.Priority,
		Search:   q.Search,
		Page:     q.Page,
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return projects, model.NewPagination(q.Page, len(projects), total), nil
}

func (s *ProjectService) Create(ctx context.Context, actor model.Actor, in CreateProjectInput) (*model.Project, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionCreate); err != nil {
		return nil, err
	}

	start, err := parseTime("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}

	p := &model.Project{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		Status:       in.Status,
		StartDate:    start,
		EndDate:      end,
		Location:     in.Location,
		Budget:       in.Budget,
		Priority:     in.Priority,
		Tags:         in.Tags,
		ClientID:     in.ClientID,
		ContractorID: in.ContractorID,
		ArchitectID:  in.ArchitectID,
		CreatedBy:    actor.UserID,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.InTx(ctx, func(r repository.Repos) error {
		return r.Projects().Create(ctx, p)
	}); err != nil {
		return nil, err
	}

	log.Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("created_by", actor.UserID),
	)
	return p, nil
}

// Get 读取项目时重算进度并返回明细
func (s *ProjectService) Get(ctx context.Context, actor model.Actor, projectID string) (*ProjectDetail, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionRead); err != nil {
		return nil, err
	}

	var out *ProjectDetail
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.ProjectForUpdate(ctx, r.Projects(), actor, projectID); err != nil {
			return err
		}
		res, err := s.recalculator.Recalculate(ctx, r, projectID, TriggerRead)
		if err != nil {
			return err
		}
		p, err := r.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		out = &ProjectDetail{Project: p, ProgressBreakdown: res.Breakdown}
		return nil
	})
	return out, err
}

func (s *ProjectService) Update(ctx context.Context, actor model.Actor, projectID string, in UpdateProjectInput) (*model.Project, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var out *model.Project
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		p, err := s.access.ProjectForUpdate(ctx, r.Projects(), actor, projectID)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != p.Version {
			return apperr.Conflict(apperr.CodeVersionConflict, "project was modified by another request")
		}
		if err := applyProjectUpdate(p, in); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := r.Projects().Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Project updated",
		zap.String("project_id", projectID),
		zap.Int64("version", out.Version),
	)
	return out, nil
}

func applyProjectUpdate(p *model.Project, in UpdateProjectInput) error {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.StartDate != nil {
		t, err := parseTime("start_date", *in.StartDate)
		if err != nil {
			return err
		}
		p.StartDate = t
	}
	if in.EndDate != nil {
		t, err := parseTime("end_date", *in.EndDate)
		if err != nil {
			return err
		}
		p.EndDate = t
	}
	if in.ActualEndDate != nil {
		t, err := parseOptionalTime("actual_end_date", *in.ActualEndDate)
		if err != nil {
			return err
		}
		p.ActualEndDate = t
	}
	if in.Location != nil {
		p.Location = *in.Location
	}
	if in.Budget != nil {
		p.Budget = *in.Budget
	}
	if in.Priority != nil {
		p.Priority = *in.Priority
	}
	if in.Tags != nil {
		p.Tags = in.Tags
	}
	if in.ClientID != nil {
		p.ClientID = *in.ClientID
	}
	if in.ContractorID != nil {
		p.ContractorID = *in.ContractorID
	}
	if in.ArchitectID != nil {
		p.ArchitectID = *in.ArchitectID
	}
	return nil
}

// Delete 级联删除里程碑、日报、库存与照片记录
func (s *ProjectService) Delete(ctx context.Context, actor model.Actor, projectID string) error {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionDelete); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.ProjectForUpdate(ctx, r.Projects(), actor, projectID); err != nil {
			return err
		}
		return r.Projects().Delete(ctx, projectID)
	})
	if err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Project deleted",
		zap.String("project_id", projectID),
		zap.String("deleted_by", actor.UserID),
	)
	return nil
}

func (s *ProjectService) UpdateBudget(ctx context.Context, actor model.Actor, projectID string, budget model.Budget) (*model.Project, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionBudget); err != nil {
		return nil, err
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	var out *model.Project
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		p, err := s.access.ProjectForUpdate(ctx, r.Projects(), actor, projectID)
		if err != nil {
			return err
		}
		p.Budget = budget
		if err := r.Projects().Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// OverrideProgress 显式覆盖进度，下一次重算会重新覆盖它
func (s *ProjectService) OverrideProgress(ctx context.Context, actor model.Actor, projectID string, value int) (*model.Project, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionOverrideProgress); err != nil {
		return nil, err
	}
	if value < 0 || value > 100 {
		return nil, apperr.Validation("progress must be between 0 and 100")
	}

	var out *model.Project
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		p, err := s.access.ProjectForUpdate(ctx, r.Projects(), actor, projectID)
		if err != nil {
			return err
		}
		previous := p.Progress
		p.Progress = value
		if err := r.Projects().UpdateProgress(ctx, p); err != nil {
			return err
		}
		payload := &mqcontracts.ProjectProgressUpdatedPayload{
			ProjectID: projectID,
			Previous:  previous,
			Progress:  value,
			Trigger:   "override",
		}
		if err := enqueue(ctx, r, aggregateProject, projectID, mqcontracts.RoutingProjectProgressUpdated, payload); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Project progress overridden",
		zap.String("project_id", projectID),
		zap.Int("progress", value),
		zap.String("user_id", actor.UserID),
	)
	return out, nil
}

func (s *ProjectService) Recalculate(ctx context.Context, actor model.Actor, projectID string) (*RecalculationResult, error) {
	if err := s.access.Require(actor, rbac.ResourceProject, rbac.ActionRecalculate); err != nil {
		return nil, err
	}

	var out *RecalculationResult
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.Project(ctx, r.Projects(), actor, projectID); err != nil {
			return err
		}
		res, err := s.recalculator.Recalculate(ctx, r, projectID, TriggerExplicit)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}
