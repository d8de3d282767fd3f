package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/internal/service"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
)

// 单次请求体上限：10 个文件各 10MB，外加表单字段
const maxUploadBody = service.MaxPhotosPerUpload*model.MaxPhotoSize + 1<<20

type PhotoHandler struct {
	photos *service.PhotoService
	logger *zap.Logger
}

func NewPhotoHandler(photos *service.PhotoService, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, logger: logger}
}

// Upload POST /api/photos，multipart 字段 photos 可重复
func (h *PhotoHandler) Upload(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("invalid multipart form: %v", err))
		return
	}
	defer form.RemoveAll()

	headers := form.File["photos"]
	files := make([]service.PhotoUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadOf(fh))
	}

	in := service.UploadPhotosInput{
		ProjectID:     c.PostForm("project_id"),
		Caption:       c.PostForm("caption"),
		Category:      model.PhotoCategory(c.PostForm("category")),
		Tags:          splitTags(c.PostForm("tags")),
		MilestoneID:   c.PostForm("milestone_id"),
		DailyReportID: c.PostForm("daily_report_id"),
		TakenAt:       c.PostForm("taken_at"),
	}
	if in.ProjectID == "" {
		respondError(c, h.logger, apperr.Validation("project_id is required"))
		return
	}

	log.Info("Photo upload request received",
		zap.String("project_id", in.ProjectID),
		zap.Int("files", len(files)),
	)
	photos, err := h.photos.Upload(c.Request.Context(), actorOf(c), in, files)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, photos)
}

// uploadOf 客户端没给类型时按内容嗅探
func uploadOf(fh *multipart.FileHeader) service.PhotoUpload {
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = sniff(fh)
	}
	return service.PhotoUpload{
		Filename: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func sniff(fh *multipart.FileHeader) string {
	f, err := fh.Open()
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	return http.DetectContentType(buf[:n])
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ListByProject GET /api/photos/project/:projectId?category=&startDate=&endDate=
func (h *PhotoHandler) ListByProject(c *gin.Context) {
	q := service.PhotoQuery{
		Category: model.PhotoCategory(c.Query("category")),
		From:     c.Query("startDate"),
		To:       c.Query("endDate"),
	}
	photos, err := h.photos.List(c.Request.Context(), actorOf(c), c.Param("projectId"), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, photos)
}

func (h *PhotoHandler) Get(c *gin.Context) {
	p, err := h.photos.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

func (h *PhotoHandler) Update(c *gin.Context) {
	var req service.UpdatePhotoInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.photos.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	if err := h.photos.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "photo deleted")
}
