// Package repository 定义仓储接口及其 PostgreSQL 实现
package repository

import (
	"context"
	"time"

	"buildtrack/internal/model"
	"buildtrack/pkg/outbox"
)

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id string) (*model.Project, error)
	// GetForUpdate 在事务内加行锁，重算进度前调用
	GetForUpdate(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, int, error)
	// MemberProjectIDs userID 为空时返回全部项目
	MemberProjectIDs(ctx context.Context, userID string) ([]string, error)
	// Update 以 p.Version 为前提更新，成功后 Version 加一
	Update(ctx context.Context, p *model.Project) error
	UpdateProgress(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id string) error
}

type MilestoneRepository interface {
	Create(ctx context.Context, m *model.Milestone) error
	Get(ctx context.Context, id string) (*model.Milestone, error)
	GetForUpdate(ctx context.Context, id string) (*model.Milestone, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Milestone, error)
	// ListByStatus projectIDs 为 nil 表示不限项目
	ListByStatus(ctx context.Context, projectIDs []string, status model.MilestoneStatus) ([]*model.Milestone, error)
	StatusesByProject(ctx context.Context, projectID string) ([]model.MilestoneStatus, error)
	// CountInProject 统计 ids 中属于该项目的里程碑数
	CountInProject(ctx context.Context, projectID string, ids []string) (int, error)
	Update(ctx context.Context, m *model.Milestone) error
	Delete(ctx context.Context, id string) error
}

type ReportRepository interface {
	// Create 同一项目同一天已有日报时返回 DUPLICATE_DATE_FOR_PROJECT
	Create(ctx context.Context, r *model.DailyReport) error
	Get(ctx context.Context, id string) (*model.DailyReport, error)
	// ExistsForDate excludeID 非空时忽略该日报本身
	ExistsForDate(ctx context.Context, projectID string, date time.Time, excludeID string) (bool, error)
	List(ctx context.Context, f model.ReportFilter) ([]*model.DailyReport, int, error)
	// Count since 为零值时统计全部
	Count(ctx context.Context, projectID string, since time.Time) (int, error)
	Update(ctx context.Context, r *model.DailyReport) error
	Delete(ctx context.Context, id string) error
}

type InventoryRepository interface {
	Create(ctx context.Context, item *model.InventoryItem) error
	Get(ctx context.Context, id string) (*model.InventoryItem, error)
	GetForUpdate(ctx context.Context, id string) (*model.InventoryItem, error)
	List(ctx context.Context, f model.InventoryFilter) ([]*model.InventoryItem, error)
	Update(ctx context.Context, item *model.InventoryItem) error
	Delete(ctx context.Context, id string) error
}

type PhotoRepository interface {
	Create(ctx context.Context, p *model.Photo) error
	Get(ctx context.Context, id string) (*model.Photo, error)
	List(ctx context.Context, f model.PhotoFilter) ([]*model.Photo, error)
	Update(ctx context.Context, p *model.Photo) error
	Delete(ctx context.Context, id string) error
}

// EventRepository 事件与业务写入同事务落库，提交后才会被投递
type EventRepository interface {
	Append(ctx context.Context, e *outbox.Event) error
}

// Repos 一组绑定到同一连接或事务的仓储
type Repos interface {
	Projects() ProjectRepository
	Milestones() MilestoneRepository
	Reports() ReportRepository
	Inventory() InventoryRepository
	Photos() PhotoRepository
	Events() EventRepository
}

// Store fn 返回错误时整个事务回滚
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}
