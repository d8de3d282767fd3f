package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/rbac"
)

const (
	MaxPhotosPerUpload = 10
	uploadConcurrency  = 4
	presignConcurrency = 8
)

type PhotoService struct {
	store   repository.Store
	access  *Access
	objects ObjectStore
	now     func() time.Time
	logger  *zap.Logger
}

func NewPhotoService(store repository.Store, access *Access, objects ObjectStore, logger *zap.Logger) *PhotoService {
	return &PhotoService{
		store:   store,
		access:  access,
		objects: objects,
		now:     utcNow,
		logger:  logger,
	}
}

// PhotoUpload 一个待上传的文件，Open 每次返回新的读取器
type PhotoUpload struct {
	Filename string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// UploadPhotosInput 同一批文件共享的元数据
type UploadPhotosInput struct {
	ProjectID     string
	Caption       string
	Category      model.PhotoCategory
	Tags          []string
	MilestoneID   string
	DailyReportID string
	TakenAt       string
}

type UpdatePhotoInput struct {
	Caption  *string              `json:"caption"`
	Category *model.PhotoCategory `json:"category"`
	Tags     []string             `json:"tags"`
}

type PhotoQuery struct {
	Category model.PhotoCategory
	From     string
	To       string
}

func objectKey(projectID, photoID, ext string) string {
	return fmt.Sprintf("projects/%s/%s%s", projectID, photoID, ext)
}

// Upload 先写对象存储再落库；落库失败时删除已上传的对象
func (s *PhotoService) Upload(ctx context.Context, actor model.Actor, in UploadPhotosInput, files []PhotoUpload) ([]*model.Photo, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := s.access.Require(actor, rbac.ResourcePhoto, rbac.ActionCreate); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.Validation("at least one photo is required")
	}
	if len(files) > MaxPhotosPerUpload {
		return nil, apperr.Validation("at most %d photos can be uploaded at once", MaxPhotosPerUpload)
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, in.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkLinks(ctx, in); err != nil {
		return nil, err
	}

	takenAt := s.now()
	if in.TakenAt != "" {
		t, err := parseTime("taken_at", in.TakenAt)
		if err != nil {
			return nil, err
		}
		takenAt = t
	}

	photos := make([]*model.Photo, len(files))
	for i, f := range files {
		ext, _ := model.PhotoExtension(f.MimeType)
		id := uuid.NewString()
		p := &model.Photo{
			ID:            id,
			ProjectID:     in.ProjectID,
			ObjectKey:     objectKey(in.ProjectID, id, ext),
			OriginalName:  f.Filename,
			MimeType:      f.MimeType,
			Size:          f.Size,
			Caption:       in.Caption,
			Category:      in.Category,
			Tags:          in.Tags,
			MilestoneID:   in.MilestoneID,
			DailyReportID: in.DailyReportID,
			UploadedBy:    actor.UserID,
			TakenAt:       takenAt,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Filename, err)
		}
		photos[i] = p
	}

	uploaded := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := s.put(gctx, photos[i], files[i]); err != nil {
				return err
			}
			uploaded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cleanup(ctx, photos, uploaded)
		log.Error("Photo upload to object store failed", zap.Error(err))
		return nil, err
	}

	err := s.store.InTx(ctx, func(r repository.Repos) error {
		for _, p := range photos {
			if err := r.Photos().Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.cleanup(ctx, photos, uploaded)
		return nil, err
	}

	s.presignAll(ctx, photos)
	log.Info("Photos uploaded",
		zap.String("project_id", in.ProjectID),
		zap.Int("count", len(photos)),
		zap.String("uploaded_by", actor.UserID),
	)
	return photos, nil
}

// checkLinks 关联的里程碑和日报必须属于同一项目
func (s *PhotoService) checkLinks(ctx context.Context, in UploadPhotosInput) error {
	if in.MilestoneID != "" {
		n, err := s.store.Milestones().CountInProject(ctx, in.ProjectID, []string{in.MilestoneID})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Validation("milestone_id does not belong to this project")
		}
	}
	if in.DailyReportID != "" {
		rep, err := s.store.Reports().Get(ctx, in.DailyReportID)
		if err != nil || rep.ProjectID != in.ProjectID {
			return apperr.Validation("daily_report_id does not belong to this project")
		}
	}
	return nil
}

func (s *PhotoService) put(ctx context.Context, p *model.Photo, f PhotoUpload) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer rc.Close()

	if err := s.objects.Put(ctx, p.ObjectKey, rc, p.Size, p.MimeType); err != nil {
		return fmt.Errorf("store %s: %w", f.Filename, err)
	}
	return nil
}

func (s *PhotoService) cleanup(ctx context.Context, photos []*model.Photo, uploaded []bool) {
	for i, p := range photos {
		if !uploaded[i] {
			continue
		}
		if err := s.objects.Remove(ctx, p.ObjectKey); err != nil {
			s.logger.Warn("Failed to remove orphaned photo object",
				zap.String("object_key", p.ObjectKey),
				zap.Error(err),
			)
		}
	}
}

// presignAll 并发生成访问链接，单张失败只留空 URL
func (s *PhotoService) presignAll(ctx context.Context, photos []*model.Photo) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for _, p := range photos {
		p := p
		g.Go(func() error {
			s.presign(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *PhotoService) presign(ctx context.Context, p *model.Photo) {
	url, err := s.objects.PresignedURL(ctx, p.ObjectKey)
	if err != nil {
		s.logger.Warn("Failed to presign photo url",
			zap.String("photo_id", p.ID),
			zap.String("object_key", p.ObjectKey),
			zap.Error(err),
		)
		return
	}
	p.URL = url
}

func (s *PhotoService) List(ctx context.Context, actor model.Actor, projectID string, q PhotoQuery) ([]*model.Photo, error) {
	if err := s.access.Require(actor, rbac.ResourcePhoto, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, projectID); err != nil {
		return nil, err
	}

	f := model.PhotoFilter{ProjectID: projectID, Category: q.Category}
	if q.From != "" {
		t, err := parseTime("startDate", q.From)
		if err != nil {
			return nil, err
		}
		f.From = t
	}
	if q.To != "" {
		t, err := parseTime("endDate", q.To)
		if err != nil {
			return nil, err
		}
		f.To = t
	}

	photos, err := s.store.Photos().List(ctx, f)
	if err != nil {
		return nil, err
	}
	s.presignAll(ctx, photos)
	return photos, nil
}

func (s *PhotoService) Get(ctx context.Context, actor model.Actor, photoID string) (*model.Photo, error) {
	if err := s.access.Require(actor, rbac.ResourcePhoto, rbac.ActionRead); err != nil {
		return nil, err
	}
	p, err := s.store.Photos().Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Project(ctx, s.store.Projects(), actor, p.ProjectID); err != nil {
		return nil, err
	}
	s.presign(ctx, p)
	return p, nil
}

func (s *PhotoService) Update(ctx context.Context, actor model.Actor, photoID string, in UpdatePhotoInput) (*model.Photo, error) {
	if err := s.access.Require(actor, rbac.ResourcePhoto, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var out *model.Photo
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		p, err := r.Photos().Get(ctx, photoID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, p.ProjectID); err != nil {
			return err
		}
		if in.Caption != nil {
			p.Caption = *in.Caption
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Tags != nil {
			p.Tags = in.Tags
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := r.Photos().Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.presign(ctx, out)
	return out, nil
}

// Delete 先删记录再删对象，对象删除失败只记日志
func (s *PhotoService) Delete(ctx context.Context, actor model.Actor, photoID string) error {
	if err := s.access.Require(actor, rbac.ResourcePhoto, rbac.ActionDelete); err != nil {
		return err
	}

	var key string
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		p, err := r.Photos().Get(ctx, photoID)
		if err != nil {
			return err
		}
		if _, err := s.access.Project(ctx, r.Projects(), actor, p.ProjectID); err != nil {
			return err
		}
		key = p.ObjectKey
		return r.Photos().Delete(ctx, photoID)
	})
	if err != nil {
		return err
	}

	if err := s.objects.Remove(ctx, key); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to remove photo object",
			zap.String("photo_id", photoID),
			zap.String("object_key", key),
			zap.Error(err),
		)
	}
	return nil
}
