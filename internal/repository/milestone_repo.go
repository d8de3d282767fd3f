package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/db"
)

type MilestoneRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewMilestoneRepo(conn db.DBTX, logger *zap.Logger) *MilestoneRepo {
	return &MilestoneRepo{
		db:     conn,
		logger: logger,
	}
}

const milestoneColumns = `id, project_id, title, description, status, start_date, due_date, completed_date,
	progress, COALESCE(assigned_to, ''), approval_status, COALESCE(approved_by, ''), approved_at,
	approval_comments, dependencies, sort_order, created_by, created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.Description,
		&m.Status,
		&m.StartDate,
		&m.DueDate,
		&m.CompletedDate,
		&m.Progress,
		&m.AssignedTo,
		&m.Approval.Status,
		&m.Approval.ApprovedBy,
		&m.Approval.ApprovedAt,
		&m.Approval.Comments,
		&m.Dependencies,
		&m.Order,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMilestones(rows pgx.Rows) ([]*model.Milestone, error) {
	defer rows.Close()

	milestones := []*model.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

func (r *MilestoneRepo) Create(ctx context.Context, m *model.Milestone) error {
	r.logger.Debug("Inserting milestone",
		zap.String("id", m.ID),
		zap.String("project_id", m.ProjectID),
		zap.String("status", string(m.Status)),
	)

	query := `
		INSERT INTO milestones (id, project_id, title, description, status, start_date, due_date,
			completed_date, progress, assigned_to, approval_status, approved_by, approved_at,
			approval_comments, dependencies, sort_order, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.ProjectID,
		m.Title,
		m.Description,
		m.Status,
		m.StartDate,
		m.DueDate,
		m.CompletedDate,
		m.Progress,
		m.AssignedTo,
		m.Approval.Status,
		m.Approval.ApprovedBy,
		m.Approval.ApprovedAt,
		m.Approval.Comments,
		m.Dependencies,
		m.Order,
		m.CreatedBy,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert milestone", zap.String("id", m.ID), zap.Error(err))
		return fmt.Errorf("insert milestone: %w", err)
	}

	r.logger.Info("Milestone inserted successfully",
		zap.String("id", m.ID),
		zap.String("project_id", m.ProjectID),
	)
	return nil
}

func (r *MilestoneRepo) Get(ctx context.Context, id string) (*model.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "milestone")
	}
	return m, nil
}

func (r *MilestoneRepo) GetForUpdate(ctx context.Context, id string) (*model.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "milestone")
	}
	return m, nil
}

func (r *MilestoneRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Milestone, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 ORDER BY sort_order ASC, created_at ASC`,
		projectID,
	)
	if err != nil {
		r.logger.Error("Failed to list milestones", zap.String("project_id", projectID), zap.Error(err))
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return collectMilestones(rows)
}

func (r *MilestoneRepo) ListByStatus(ctx context.Context, projectIDs []string, status model.MilestoneStatus) ([]*model.Milestone, error) {
	w := &where{}
	w.add("status = ?", status)
	if projectIDs != nil {
		w.add("project_id::text = ANY(?)", projectIDs)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones`+w.String()+` ORDER BY due_date ASC`,
		w.args...,
	)
	if err != nil {
		r.logger.Error("Failed to list milestones by status", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("list milestones by status: %w", err)
	}
	return collectMilestones(rows)
}

func (r *MilestoneRepo) StatusesByProject(ctx context.Context, projectID string) ([]model.MilestoneStatus, error) {
	rows, err := r.db.Query(ctx, `SELECT status FROM milestones WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestone statuses: %w", err)
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowTo[model.MilestoneStatus])
	if err != nil {
		return nil, fmt.Errorf("scan milestone statuses: %w", err)
	}
	return statuses, nil
}

func (r *MilestoneRepo) CountInProject(ctx context.Context, projectID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND id::text = ANY($2)`,
		projectID, ids,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count milestones: %w", err)
	}
	return n, nil
}

func (r *MilestoneRepo) Update(ctx context.Context, m *model.Milestone) error {
	r.logger.Debug("Updating milestone",
		zap.String("id", m.ID),
		zap.String("status", string(m.Status)),
		zap.String("approval_status", string(m.Approval.Status)),
	)

	query := `
		UPDATE milestones
		SET title = $2, description = $3, status = $4, start_date = $5, due_date = $6,
			completed_date = $7, progress = $8, assigned_to = NULLIF($9, ''), approval_status = $10,
			approved_by = NULLIF($11, ''), approved_at = $12, approval_comments = $13,
			dependencies = $14, sort_order = $15, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.Title,
		m.Description,
		m.Status,
		m.StartDate,
		m.DueDate,
		m.CompletedDate,
		m.Progress,
		m.AssignedTo,
		m.Approval.Status,
		m.Approval.ApprovedBy,
		m.Approval.ApprovedAt,
		m.Approval.Comments,
		m.Dependencies,
		m.Order,
	).Scan(&m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update milestone", zap.String("id", m.ID), zap.Error(err))
		return notFound(err, "milestone")
	}
	return nil
}

func (r *MilestoneRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete milestone", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete milestone: %w", err)
	}
	return affectedOrNotFound(tag, "milestone")
}
