package model

import "buildtrack/pkg/rbac"

// Actor 已认证的调用者，来自令牌
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == rbac.RoleAdmin
}
