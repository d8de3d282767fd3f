package model

import (
	"strings"
	"time"

	"buildtrack/pkg/apperr"
)

type PhotoCategory string

const (
	PhotoProgress  PhotoCategory = "progress"
	PhotoIssue     PhotoCategory = "issue"
	PhotoMilestone PhotoCategory = "milestone"
	PhotoSafety    PhotoCategory = "safety"
	PhotoGeneral   PhotoCategory = "general"
)

func (c PhotoCategory) Valid() bool {
	switch c {
	case PhotoProgress, PhotoIssue, PhotoMilestone, PhotoSafety, PhotoGeneral:
		return true
	}
	return false
}

const MaxPhotoSize = 10 << 20

var allowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoExtension 不支持的类型返回 false
func PhotoExtension(mimeType string) (string, bool) {
	ext, ok := allowedPhotoTypes[strings.ToLower(mimeType)]
	return ext, ok
}

type Photo struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	ObjectKey     string        `json:"object_key"`
	OriginalName  string        `json:"original_name"`
	MimeType      string        `json:"mime_type"`
	Size          int64         `json:"size"`
	Caption       string        `json:"caption"`
	Category      PhotoCategory `json:"category"`
	Tags          []string      `json:"tags"`
	MilestoneID   string        `json:"milestone_id,omitempty"`
	DailyReportID string        `json:"daily_report_id,omitempty"`
	UploadedBy    string        `json:"uploaded_by"`
	TakenAt       time.Time     `json:"taken_at"`
	URL           string        `json:"url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (p *Photo) Validate() error {
	if p.Category == "" {
		p.Category = PhotoGeneral
	}
	if !p.Category.Valid() {
		return apperr.Validation("invalid photo category %q", p.Category)
	}
	if _, ok := PhotoExtension(p.MimeType); !ok {
		return apperr.Validation("only image files (jpeg, png, gif, webp) are allowed")
	}
	if p.Size <= 0 || p.Size > MaxPhotoSize {
		return apperr.Validation("photo size must be between 1 byte and 10MB")
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return nil
}

type PhotoFilter struct {
	ProjectID string
	Category  PhotoCategory
	From      time.Time
	To        time.Time
}
