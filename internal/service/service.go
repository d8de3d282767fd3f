// Package service 业务编排：权限、事务、重算与事件
package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/outbox"
	"buildtrack/pkg/trace"
)

// ObjectStore 照片二进制的存放位置，由 storage.MinioStore 或 storage.MemoryStore 实现
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// 事件聚合类型
const (
	aggregateProject   = "project"
	aggregateMilestone = "milestone"
	aggregateReport    = "daily_report"
	aggregateInventory = "inventory_item"
)

type stamper interface {
	Stamp(eventID, traceID string)
}

// enqueue 把事件写进当前事务的 outbox，事件 ID 同时写入 payload 供消费端去重
func enqueue(ctx context.Context, r repository.Repos, aggregateType, aggregateID, routingKey string, payload stamper) error {
	id := uuid.NewString()
	payload.Stamp(id, trace.FromContext(ctx))

	event, err := outbox.NewEvent(id, aggregateType, aggregateID, routingKey, payload)
	if err != nil {
		return err
	}
	return r.Events().Append(ctx, event)
}

// requestRecalculation 其它写操作不直接重算，而是发出 project.recalculate 命令
func requestRecalculation(ctx context.Context, r repository.Repos, projectID, reason string) error {
	payload := &mqcontracts.ProjectRecalculatePayload{ProjectID: projectID, Reason: reason}
	return enqueue(ctx, r, aggregateProject, projectID, mqcontracts.RoutingProjectRecalculate, payload)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// parseTime 接受 YYYY-MM-DD 或 RFC3339
func parseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(model.DateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid %s %q, expected YYYY-MM-DD or RFC3339", field, s)
	}
	return t.UTC(), nil
}

// parseOptionalTime 空串返回 nil
func parseOptionalTime(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseTime(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// memberScope 管理员不受成员资格限制
func memberScope(actor model.Actor) string {
	if actor.IsAdmin() {
		return ""
	}
	return actor.UserID
}

// memberProjectIDs 管理员返回 nil，表示不限项目
func memberProjectIDs(ctx context.Context, projects repository.ProjectRepository, actor model.Actor) ([]string, error) {
	if actor.IsAdmin() {
		return nil, nil
	}
	return projects.MemberProjectIDs(ctx, actor.UserID)
}
