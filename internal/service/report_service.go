package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/rbac"
)

type ReportService struct {
	store        repository.Store
	access       *Access
	recalculator *Recalculator
	loc          *time.Location
	logger       *zap.Logger
}

// NewReportService loc 决定带时刻的日期折算到哪一天
func NewReportService(store repository.Store, access *Access, recalculator *Recalculator, loc *time.Location, logger *zap.Logger) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		store:        store,
		access:       access,
		recalculator: recalculator,
		loc:          loc,
		logger:       logger,
	}
}

type CreateReportInput struct {
	ProjectID       string                 `json:"project_id" binding:"required"`
	Date            string                 `json:"date" binding:"required"`
	Weather         model.Weather          `json:"weather"`
	WorkSummary     string                 `json:"work_summary" binding:"required"`
	WorkersOnSite   int                    `json:"workers_on_site"`
	HoursWorked     float64                `json:"hours_worked"`
	Equipment       []model.Equipment      `json:"equipment"`
	MaterialsUsed   []model.MaterialUsage  `json:"materials_used"`
	Issues          []model.Issue          `json:"issues"`
	SafetyIncidents []model.SafetyIncident `json:"safety_incidents"`
	Notes           string                 `json:"notes"`
}

type UpdateReportInput struct {
	Date            *string                `json:"date"`
	Weather         *model.Weather         `json:"weather"`
	WorkSummary     *string                `json:"work_summary"`
	WorkersOnSite   *int                   `json:"workers_on_site"`
	HoursWorked     *float64               `json:"hours_worked"`
	Equipment       []model.Equipment      `json:"equipment"`
	MaterialsUsed   []model.MaterialUsage  `json:"materials_used"`
	Issues          []model.Issue          `json:"issues"`
	SafetyIncidents []model.SafetyIncident `json:"safety_incidents"`
	Notes           *string                `json:"notes"`
}

// ReportQuery 日期为 YYYY-MM-DD 或 RFC3339，空串表示不限
type ReportQuery struct {
	From string
	To   string
	Page model.Page
}

func (s *ReportService) Create(ctx context.Context, actor model.Actor, in CreateReportInput) (*model.DailyReport, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionCreate); err != nil {
		return nil, err
	}

	date, err := model.ParseReportDate(in.Date, s.loc)
	if err != nil {
		return nil, err
	}
	rep := &model.DailyReport{
		ID:              uuid.NewString(),
		ProjectID:       in.ProjectID,
		Date:            date,
		Weather:         in.Weather,
		WorkSummary:     in.WorkSummary,
		WorkersOnSite:   in.WorkersOnSite,
		HoursWorked:     in.HoursWorked,
		Equipment:       in.Equipment,
		MaterialsUsed:   in.MaterialsUsed,
		Issues:          in.Issues,
		SafetyIncidents: in.SafetyIncidents,
		Notes:           in.Notes,
		SubmittedBy:     actor.UserID,
	}
	if err := rep.Validate(); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(r repository.Repos) error {
		if _, err := s.access.Project(ctx, r.Projects(), actor, rep.ProjectID); err != nil {
			return err
		}
		exists, err := r.Reports().ExistsForDate(ctx, rep.ProjectID, rep.Date, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.ValidationCode(apperr.CodeDuplicateDate, "a daily report already exists for this project on this date")
		}
		if err := r.Reports().Create(ctx, rep); err != nil {
			return err
		}
		if _, err := s.recalculator.Recalculate(ctx, r, rep.ProjectID, TriggerReport); err != nil {
			return err
		}

		payload := &mqcontracts.ReportCreatedPayload{
			ReportID:    rep.ID,
			ProjectID:   rep.ProjectID,
			ReportDate:  rep.Date.Format(model.DateLayout),
			SubmittedBy: actor.UserID,
		}
		return enqueue(ctx, r, aggregateReport, rep.ID, mqcontracts.RoutingReportCreated, payload)
	})
	if err != nil {
		log.Warn("Daily report not created",
			zap.String("project_id", in.ProjectID),
			zap.String("date", in.Date),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Daily report created",
		zap.String("report_id", rep.ID),
		zap.String("project_id", rep.ProjectID),
		zap.String("date", rep.Date.Format(model.DateLayout)),
	)
	return rep, nil
}

func (s *ReportService) parseRange(q ReportQuery) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if q.From != "" {
		if from, err = model.ParseReportDate(q.From, s.loc); err != nil {
			return from, to, err
		}
	}
	if q.To != "" {
		if to, err = model.ParseReportDate(q.To, s.loc); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

func (s *ReportService) List(ctx context.Context, actor model.Actor, projectID string, q ReportQuery) ([]*model.DailyReport, model.Pagination, error) {
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionRead); err != nil {
		return nil, model.Pagination{}, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, projectID); err != nil {
		return nil, model.Pagination{}, err
	}
	from, to, err := s.parseRange(q)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	reports, total, err := s.store.Reports().List(ctx, model.ReportFilter{
		ProjectID: projectID,
		From:      from,
		To:        to,
		Page:      q.Page,
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return reports, model.NewPagination(q.Page, len(reports), total), nil
}

// Mine 调用者自己提交的日报
func (s *ReportService) Mine(ctx context.Context, actor model.Actor, page model.Page) ([]*model.DailyReport, model.Pagination, error) {
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionRead); err != nil {
		return nil, model.Pagination{}, err
	}
	reports, total, err := s.store.Reports().List(ctx, model.ReportFilter{SubmittedBy: actor.UserID, Page: page})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return reports, model.NewPagination(page, len(reports), total), nil
}

func (s *ReportService) Get(ctx context.Context, actor model.Actor, reportID string) (*model.DailyReport, error) {
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionRead); err != nil {
		return nil, err
	}
	rep, err := s.store.Reports().Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, rep.ProjectID); err != nil {
		return nil, err
	}
	return rep, nil
}

// loadOwned 加载日报并确认调用者是提交人（管理员除外）
func (s *ReportService) loadOwned(ctx context.Context, r repository.Repos, actor model.Actor, reportID string) (*model.DailyReport, error) {
	rep, err := r.Reports().Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, r.Projects(), actor, rep.ProjectID); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && rep.SubmittedBy != actor.UserID {
		return nil, apperr.ForbiddenCode(apperr.CodeNotSubmitter, "only the submitter may change this report")
	}
	return rep, nil
}

func (s *ReportService) Update(ctx context.Context, actor model.Actor, reportID string, in UpdateReportInput) (*model.DailyReport, error) {
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var out *model.DailyReport
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		rep, err := s.loadOwned(ctx, r, actor, reportID)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(rep, in); err != nil {
			return err
		}
		if err := rep.Validate(); err != nil {
			return err
		}
		exists, err := r.Reports().ExistsForDate(ctx, rep.ProjectID, rep.Date, rep.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ValidationCode(apperr.CodeDuplicateDate, "a daily report already exists for this project on this date")
		}
		if err := r.Reports().Update(ctx, rep); err != nil {
			return err
		}
		out = rep

		return requestRecalculation(ctx, r, rep.ProjectID, "report.updated")
	})
	return out, err
}

func (s *ReportService) applyUpdate(rep *model.DailyReport, in UpdateReportInput) error {
	if in.Date != nil {
		d, err := model.ParseReportDate(*in.Date, s.loc)
		if err != nil {
			return err
		}
		rep.Date = d
	}
	if in.Weather != nil {
		rep.Weather = *in.Weather
	}
	if in.WorkSummary != nil {
		rep.WorkSummary = *in.WorkSummary
	}
	if in.WorkersOnSite != nil {
		rep.WorkersOnSite = *in.WorkersOnSite
	}
	if in.HoursWorked != nil {
		rep.HoursWorked = *in.HoursWorked
	}
	if in.Equipment != nil {
		rep.Equipment = in.Equipment
	}
	if in.MaterialsUsed != nil {
		rep.MaterialsUsed = in.MaterialsUsed
	}
	if in.Issues != nil {
		rep.Issues = in.Issues
	}
	if in.SafetyIncidents != nil {
		rep.SafetyIncidents = in.SafetyIncidents
	}
	if in.Notes != nil {
		rep.Notes = *in.Notes
	}
	return nil
}

func (s *ReportService) Delete(ctx context.Context, actor model.Actor, reportID string) error {
	if err := s.access.Require(actor, rbac.ResourceReport, rbac.ActionDelete); err != nil {
		return err
	}

	return s.store.InTx(ctx, func(r repository.Repos) error {
		rep, err := s.loadOwned(ctx, r, actor, reportID)
		if err != nil {
			return err
		}
		if err := r.Reports().Delete(ctx, reportID); err != nil {
			return err
		}
		return requestRecalculation(ctx, r, rep.ProjectID, "report.deleted")
	})
}
