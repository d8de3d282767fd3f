package mq

import "time"

// 路由键，exchange 为 events
const (
	RoutingMilestoneSubmitted     = "milestone.submitted"
	RoutingMilestoneReviewed      = "milestone.reviewed"
	RoutingReportCreated          = "report.created"
	RoutingProjectProgressUpdated = "project.progress_updated"
	RoutingProjectRecalculate     = "project.recalculate"
	RoutingInventoryLowStock      = "inventory.low_stock"
)

// Envelope 所有事件共有的字段，EventID 即 outbox 主键
type Envelope struct {
	EventID string `json:"event_id"`
	TraceID string `json:"trace_id,omitempty"`
}

// Stamp 写入事件 ID 与 trace_id，写 outbox 前调用
func (e *Envelope) Stamp(eventID, traceID string) {
	e.EventID = eventID
	e.TraceID = traceID
}

type MilestoneSubmittedPayload struct {
	Envelope
	MilestoneID string    `json:"milestone_id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type MilestoneReviewedPayload struct {
	Envelope
	MilestoneID     string    `json:"milestone_id"`
	ProjectID       string    `json:"project_id"`
	Title           string    `json:"title"`
	Decision        string    `json:"decision"` // approved / rejected
	Comments        string    `json:"comments,omitempty"`
	ReviewedBy      string    `json:"reviewed_by"`
	ReviewedAt      time.Time `json:"reviewed_at"`
	ProjectProgress int       `json:"project_progress"`
}

type ReportCreatedPayload struct {
	Envelope
	ReportID    string `json:"report_id"`
	ProjectID   string `json:"project_id"`
	ReportDate  string `json:"report_date"` // YYYY-MM-DD
	SubmittedBy string `json:"submitted_by"`
}

type ProjectProgressUpdatedPayload struct {
	Envelope
	ProjectID string `json:"project_id"`
	Previous  int    `json:"previous"`
	Progress  int    `json:"progress"`
	Trigger   string `json:"trigger"`
}

// ProjectRecalculatePayload 命令：要求 worker 重算某项目进度
type ProjectRecalculatePayload struct {
	Envelope
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"` // milestone.created / milestone.updated / ...
}

type InventoryLowStockPayload struct {
	Envelope
	ItemID      string  `json:"item_id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"min_quantity"`
}
