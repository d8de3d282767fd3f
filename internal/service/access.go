package service

import (
	"context"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/rbac"
)

// Access 角色能力由 casbin 判定，项目成员资格由项目行判定
type Access struct {
	enforcer *rbac.Enforcer
}

func NewAccess(enforcer *rbac.Enforcer) *Access {
	return &Access{enforcer: enforcer}
}

// Require 角色不具备该能力时返回 Forbidden
func (a *Access) Require(actor model.Actor, resource, action string) error {
	return a.enforcer.CheckPermission(actor.Role, resource, action)
}

// Project 先解析项目再校验成员资格：不存在为 NotFound，非成员为 NOT_PROJECT_MEMBER
func (a *Access) Project(ctx context.Context, projects repository.ProjectRepository, actor model.Actor, projectID string) (*model.Project, error) {
	p, err := projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := a.Member(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProjectForUpdate 同 Project，但在事务内锁住项目行
func (a *Access) ProjectForUpdate(ctx context.Context, projects repository.ProjectRepository, actor model.Actor, projectID string) (*model.Project, error) {
	p, err := projects.GetForUpdate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := a.Member(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Access) Member(actor model.Actor, p *model.Project) error {
	if actor.IsAdmin() || p.IsMember(actor.UserID) {
		return nil
	}
	return apperr.ForbiddenCode(apperr.CodeNotProjectMember, "you are not a member of this project")
}
