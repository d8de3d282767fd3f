package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/db"
)

type PhotoRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPhotoRepo(conn db.DBTX, logger *zap.Logger) *PhotoRepo {
	return &PhotoRepo{
		db:     conn,
		logger: logger,
	}
}

const photoColumns = `id, project_id, object_key, original_name, mime_type, size, caption, category, tags,
	COALESCE(milestone_id::text, ''), COALESCE(daily_report_id::text, ''), uploaded_by, taken_at, created_at, updated_at`

func scanPhoto(row pgx.Row) (*model.Photo, error) {
	var p model.Photo
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.ObjectKey,
		&p.OriginalName,
		&p.MimeType,
		&p.Size,
		&p.Caption,
		&p.Category,
		&p.Tags,
		&p.MilestoneID,
		&p.DailyReportID,
		&p.UploadedBy,
		&p.TakenAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	query := `
		INSERT INTO photos (id, project_id, object_key, original_name, mime_type, size, caption, category,
			tags, milestone_id, daily_report_id, uploaded_by, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, NULLIF($11, '')::uuid, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.ProjectID,
		p.ObjectKey,
		p.OriginalName,
		p.MimeType,
		p.Size,
		p.Caption,
		p.Category,
		p.Tags,
		p.MilestoneID,
		p.DailyReportID,
		p.UploadedBy,
		p.TakenAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert photo", zap.String("id", p.ID), zap.Error(err))
		return fmt.Errorf("insert photo: %w", err)
	}

	r.logger.Info("Photo inserted",
		zap.String("id", p.ID),
		zap.String("project_id", p.ProjectID),
		zap.String("object_key", p.ObjectKey),
	)
	return nil
}

func (r *PhotoRepo) Get(ctx context.Context, id string) (*model.Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "photo")
	}
	return p, nil
}

func (r *PhotoRepo) List(ctx context.Context, f model.PhotoFilter) ([]*model.Photo, error) {
	w := &where{}
	w.add("project_id = ?", f.ProjectID)
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if !f.From.IsZero() {
		w.add("taken_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("taken_at <= ?", f.To)
	}

	rows, err := r.db.Query(ctx, `SELECT `+photoColumns+` FROM photos`+w.String()+` ORDER BY taken_at DESC`, w.args...)
	if err != nil {
		r.logger.Error("Failed to list photos", zap.String("project_id", f.ProjectID), zap.Error(err))
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []*model.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *PhotoRepo) Update(ctx context.Context, p *model.Photo) error {
	err := r.db.QueryRow(ctx,
		`UPDATE photos SET caption = $2, category = $3, tags = $4, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		p.ID, p.Caption, p.Category, p.Tags,
	).Scan(&p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update photo", zap.String("id", p.ID), zap.Error(err))
		return notFound(err, "photo")
	}
	return nil
}

func (r *PhotoRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete photo", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete photo: %w", err)
	}
	return affectedOrNotFound(tag, "photo")
}
