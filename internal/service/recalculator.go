package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/progress"
	"buildtrack/internal/repository"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/metrics"
)

// 重算触发来源，写入指标与 project.progress_updated 事件
const (
	TriggerRead     = "read"
	TriggerReview   = "review"
	TriggerReport   = "report"
	TriggerExplicit = "explicit"
	TriggerCommand  = "command"
)

// RecalculationResult 一次重算的结果
type RecalculationResult struct {
	ProjectID string             `json:"project_id"`
	Progress  int                `json:"progress"`
	Previous  int                `json:"previous"`
	Changed   bool               `json:"changed"`
	Breakdown progress.Breakdown `json:"breakdown"`
}

// Recalculator 进度唯一的写入路径（显式覆盖除外）
type Recalculator struct {
	store  repository.Store
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewRecalculator(store repository.Store, loc *time.Location, logger *zap.Logger) *Recalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Recalculator{
		store:  store,
		loc:    loc,
		now:    utcNow,
		logger: logger,
	}
}

// Recalculate 在调用方事务内执行：锁项目行、读取输入、计算，值变化时才写回并发事件
func (rc *Recalculator) Recalculate(ctx context.Context, r repository.Repos, projectID, trigger string) (*RecalculationResult, error) {
	start := time.Now()
	log := logger.WithTrace(ctx, rc.logger)

	p, err := r.Projects().GetForUpdate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	statuses, err := r.Milestones().StatusesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	total, err := r.Reports().Count(ctx, projectID, time.Time{})
	if err != nil {
		return nil, err
	}
	thisWeek, err := r.Reports().Count(ctx, projectID, progress.WeekStart(rc.now(), rc.loc))
	if err != nil {
		return nil, err
	}

	res := progress.Calculate(progress.Input{
		Milestones:      statuses,
		ReportCount:     total,
		ReportsThisWeek: thisWeek,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
	})

	out := &RecalculationResult{
		ProjectID: projectID,
		Progress:  res.Progress,
		Previous:  p.Progress,
		Changed:   res.Progress != p.Progress,
		Breakdown: res.Breakdown,
	}

	if out.Changed {
		p.Progress = res.Progress
		if err := r.Projects().UpdateProgress(ctx, p); err != nil {
			return nil, err
		}
		payload := &mqcontracts.ProjectProgressUpdatedPayload{
			ProjectID: projectID,
			Previous:  out.Previous,
			Progress:  out.Progress,
			Trigger:   trigger,
		}
		if err := enqueue(ctx, r, aggregateProject, projectID, mqcontracts.RoutingProjectProgressUpdated, payload); err != nil {
			return nil, err
		}
		log.Info("Project progress changed",
			zap.String("project_id", projectID),
			zap.Int("previous", out.Previous),
			zap.Int("progress", out.Progress),
			zap.String("trigger", trigger),
		)
	}

	metrics.RecordRecalculation(trigger, out.Changed, time.Since(start))
	return out, nil
}

// Run 单独开启一个事务重算，供 worker 的 project.recalculate 命令使用
func (rc *Recalculator) Run(ctx context.Context, projectID, trigger string) (*RecalculationResult, error) {
	var out *RecalculationResult
	err := rc.store.InTx(ctx, func(r repository.Repos) error {
		res, err := rc.Recalculate(ctx, r, projectID, trigger)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}
