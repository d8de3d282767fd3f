package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/db"
)

type ProjectRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewProjectRepo(conn db.DBTX, logger *zap.Logger) *ProjectRepo {
	return &ProjectRepo{
		db:     conn,
		logger: logger,
	}
}

const projectColumns = `id, name, description, status, start_date, end_date, actual_end_date,
	location, budget, progress, priority, tags, client_id,
	COALESCE(contractor_id, ''), COALESCE(architect_id, ''), created_by, version, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.StartDate,
		&p.EndDate,
		&p.ActualEndDate,
		&p.Location,
		&p.Budget,
		&p.Progress,
		&p.Priority,
		&p.Tags,
		&p.ClientID,
		&p.ContractorID,
		&p.ArchitectID,
		&p.CreatedBy,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("id", p.ID),
		zap.String("name", p.Name),
		zap.String("created_by", p.CreatedBy),
	)

	query := `
		INSERT INTO projects (id, name, description, status, start_date, end_date, actual_end_date,
			location, budget, progress, priority, tags, client_id, contractor_id, architect_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), NULLIF($15, ''), $16)
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Status,
		p.StartDate,
		p.EndDate,
		p.ActualEndDate,
		p.Location,
		p.Budget,
		p.Progress,
		p.Priority,
		p.Tags,
		p.ClientID,
		p.ContractorID,
		p.ArchitectID,
		p.CreatedBy,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.String("id", p.ID), zap.Error(err))
		return fmt.Errorf("insert project: %w", err)
	}

	r.logger.Info("Project inserted successfully", zap.String("id", p.ID))
	return nil
}

func (r *ProjectRepo) Get(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

func (r *ProjectRepo) GetForUpdate(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

func projectWhere(f model.ProjectFilter) *where {
	w := &where{}
	if f.MemberID != "" {
		w.add("(client_id = ? OR contractor_id = ? OR architect_id = ? OR created_by = ?)",
			f.MemberID, f.MemberID, f.MemberID, f.MemberID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Priority != "" {
		w.add("priority = ?", f.Priority)
	}
	if f.Search != "" {
		w.add("name ILIKE '%' || ? || '%'", f.Search)
	}
	return w
}

func (r *ProjectRepo) List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, int, error) {
	w := projectWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count projects", zap.Error(err))
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + w.String() + ` ORDER BY created_at DESC`
	if f.Page.Size > 0 {
		query += ` LIMIT ` + w.arg(f.Page.Size) + ` OFFSET ` + w.arg(f.Page.Offset())
	}

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []*model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

func (r *ProjectRepo) MemberProjectIDs(ctx context.Context, userID string) ([]string, error) {
	w := projectWhere(model.ProjectFilter{MemberID: userID})

	rows, err := r.db.Query(ctx, `SELECT id FROM projects`+w.String(), w.args...)
	if err != nil {
		return nil, fmt.Errorf("list member projects: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan member projects: %w", err)
	}
	return ids, nil
}

func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Updating project",
		zap.String("id", p.ID),
		zap.Int64("version", p.Version),
	)

	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, start_date = $5, end_date = $6,
			actual_end_date = $7, location = $8, budget = $9, priority = $10, tags = $11,
			client_id = $12, contractor_id = NULLIF($13, ''), architect_id = NULLIF($14, ''),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $15
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Status,
		p.StartDate,
		p.EndDate,
		p.ActualEndDate,
		p.Location,
		p.Budget,
		p.Priority,
		p.Tags,
		p.ClientID,
		p.ContractorID,
		p.ArchitectID,
		p.Version,
	).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict(apperr.CodeVersionConflict, "project was modified by another request")
	}
	if err != nil {
		r.logger.Error("Failed to update project", zap.String("id", p.ID), zap.Error(err))
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (r *ProjectRepo) UpdateProgress(ctx context.Context, p *model.Project) error {
	query := `
		UPDATE projects
		SET progress = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.Progress).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update project progress",
			zap.String("id", p.ID),
			zap.Int("progress", p.Progress),
			zap.Error(err),
		)
		return notFound(err, "project")
	}

	r.logger.Debug("Project progress persisted",
		zap.String("id", p.ID),
		zap.Int("progress", p.Progress),
	)
	return nil
}

func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete project: %w", err)
	}
	if err := affectedOrNotFound(tag, "project"); err != nil {
		return err
	}
	r.logger.Info("Project deleted", zap.String("id", id))
	return nil
}
