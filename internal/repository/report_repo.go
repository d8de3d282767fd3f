package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/db"
)

const reportDateIndex = "uq_daily_reports_project_date"

type ReportRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewReportRepo(conn db.DBTX, logger *zap.Logger) *ReportRepo {
	return &ReportRepo{
		db:     conn,
		logger: logger,
	}
}

const reportColumns = `id, project_id, report_date, weather, work_summary, workers_on_site, hours_worked,
	equipment, materials_used, issues, safety_incidents, notes, submitted_by, created_at, updated_at`

func scanReport(row pgx.Row) (*model.DailyReport, error) {
	var r model.DailyReport
	err := row.Scan(
		&r.ID,
		&r.ProjectID,
		&r.Date,
		&r.Weather,
		&r.WorkSummary,
		&r.WorkersOnSite,
		&r.HoursWorked,
		&r.Equipment,
		&r.MaterialsUsed,
		&r.Issues,
		&r.SafetyIncidents,
		&r.Notes,
		&r.SubmittedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func duplicateDate() error {
	return apperr.ValidationCode(apperr.CodeDuplicateDate, "a daily report already exists for this project on this date")
}

func (r *ReportRepo) Create(ctx context.Context, rep *model.DailyReport) error {
	r.logger.Debug("Inserting daily report",
		zap.String("id", rep.ID),
		zap.String("project_id", rep.ProjectID),
		zap.String("date", rep.Date.Format(model.DateLayout)),
	)

	query := `
		INSERT INTO daily_reports (id, project_id, report_date, weather, work_summary, workers_on_site,
			hours_worked, equipment, materials_used, issues, safety_incidents, notes, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rep.ID,
		rep.ProjectID,
		rep.Date,
		rep.Weather,
		rep.WorkSummary,
		rep.WorkersOnSite,
		rep.HoursWorked,
		rep.Equipment,
		rep.MaterialsUsed,
		rep.Issues,
		rep.SafetyIncidents,
		rep.Notes,
		rep.SubmittedBy,
	).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, reportDateIndex) {
			r.logger.Info("Duplicate daily report date",
				zap.String("project_id", rep.ProjectID),
				zap.String("date", rep.Date.Format(model.DateLayout)),
			)
			return duplicateDate()
		}
		r.logger.Error("Failed to insert daily report", zap.String("id", rep.ID), zap.Error(err))
		return fmt.Errorf("insert daily report: %w", err)
	}

	r.logger.Info("Daily report inserted successfully",
		zap.String("id", rep.ID),
		zap.String("project_id", rep.ProjectID),
	)
	return nil
}

func (r *ReportRepo) Get(ctx context.Context, id string) (*model.DailyReport, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM daily_reports WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "daily report")
	}
	return rep, nil
}

func (r *ReportRepo) ExistsForDate(ctx context.Context, projectID string, date time.Time, excludeID string) (bool, error) {
	w := &where{}
	w.add("project_id = ?", projectID)
	w.add("report_date = ?", date)
	if excludeID != "" {
		w.add("id <> ?", excludeID)
	}

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM daily_reports`+w.String()+`)`, w.args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check daily report date: %w", err)
	}
	return exists, nil
}

func reportWhere(f model.ReportFilter) *where {
	w := &where{}
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.SubmittedBy != "" {
		w.add("submitted_by = ?", f.SubmittedBy)
	}
	if !f.From.IsZero() {
		w.add("report_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("report_date <= ?", f.To)
	}
	return w
}

func (r *ReportRepo) List(ctx context.Context, f model.ReportFilter) ([]*model.DailyReport, int, error) {
	w := reportWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM daily_reports`+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count daily reports", zap.Error(err))
		return nil, 0, fmt.Errorf("count daily reports: %w", err)
	}

	query := `SELECT ` + reportColumns + ` FROM daily_reports` + w.String() + ` ORDER BY report_date DESC`
	if f.Page.Size > 0 {
		query += ` LIMIT ` + w.arg(f.Page.Size) + ` OFFSET ` + w.arg(f.Page.Offset())
	}
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to list daily reports", zap.Error(err))
		return nil, 0, fmt.Errorf("list daily reports: %w", err)
	}
	defer rows.Close()

	reports := []*model.DailyReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan daily report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *ReportRepo) Count(ctx context.Context, projectID string, since time.Time) (int, error) {
	w := &where{}
	w.add("project_id = ?", projectID)
	if !since.IsZero() {
		w.add("report_date >= ?", since)
	}

	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM daily_reports`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count daily reports: %w", err)
	}
	return n, nil
}

func (r *ReportRepo) Update(ctx context.Context, rep *model.DailyReport) error {
	query := `
		UPDATE daily_reports
		SET report_date = $2, weather = $3, work_summary = $4, workers_on_site = $5, hours_worked = $6,
			equipment = $7, materials_used = $8, issues = $9, safety_incidents = $10, notes = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rep.ID,
		rep.Date,
		rep.Weather,
		rep.WorkSummary,
		rep.WorkersOnSite,
		rep.HoursWorked,
		rep.Equipment,
		rep.MaterialsUsed,
		rep.Issues,
		rep.SafetyIncidents,
		rep.Notes,
	).Scan(&rep.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, reportDateIndex) {
			return duplicateDate()
		}
		r.logger.Error("Failed to update daily report", zap.String("id", rep.ID), zap.Error(err))
		return notFound(err, "daily report")
	}
	return nil
}

func (r *ReportRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM daily_reports WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete daily report", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete daily report: %w", err)
	}
	return affectedOrNotFound(tag, "daily report")
}
