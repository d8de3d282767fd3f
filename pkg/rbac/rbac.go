package rbac

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/casbin/casbin/v3"

	"buildtrack/pkg/apperr"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

// 角色常量，与令牌中的 role 声明一致
const (
	RoleContractor = "contractor"
	RoleArchitect  = "architect"
	RoleClient     = "client"
	RoleAdmin      = "admin"
)

// 资源
const (
	ResourceProject   = "project"
	ResourceMilestone = "milestone"
	ResourceReport    = "report"
	ResourceInventory = "inventory"
	ResourcePhoto     = "photo"
	ResourceOutbox    = "outbox"
)

// 操作
const (
	ActionCreate           = "create"
	ActionRead             = "read"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionBudget           = "budget"
	ActionOverrideProgress = "override_progress"
	ActionRecalculate      = "recalculate"
	ActionSubmit           = "submit"
	ActionReview           = "review"
	ActionAdjust           = "adjust"
	ActionReplay           = "replay"
)

var knownRoles = map[string]bool{
	RoleContractor: true,
	RoleArchitect:  true,
	RoleClient:     true,
	RoleAdmin:      true,
}

// IsKnownRole 令牌中的角色必须是四种之一
func IsKnownRole(role string) bool {
	return knownRoles[role]
}

// Enforcer 基于 casbin 的角色能力判定，只回答"某角色能否对某类资源做某操作"
// 项目成员关系由 service 层判定
type Enforcer struct {
	enforcer *casbin.Enforcer
}

// NewEnforcer 加载内嵌的模型与策略
func NewEnforcer() (*Enforcer, error) {
	dir, err := os.MkdirTemp("", "buildtrack-casbin-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"model.conf", "policy.csv"} {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return nil, err
		}
	}

	e, err := casbin.NewEnforcer(
		filepath.Join(dir, "model.conf"),
		filepath.Join(dir, "policy.csv"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin policy: %w", err)
	}
	return &Enforcer{enforcer: e}, nil
}

// Can 判定失败（包括 casbin 内部错误）一律视为无权限
func (e *Enforcer) Can(role, resource, action string) bool {
	if !IsKnownRole(role) {
		return false
	}
	ok, err := e.enforcer.Enforce(role, resource, action)
	if err != nil {
		return false
	}
	return ok
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func (e *Enforcer) CheckPermission(role, resource, action string) error {
	if !e.Can(role, resource, action) {
		return apperr.Forbidden("role %q is not allowed to %s %s", role, action, resource)
	}
	return nil
}
