package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/handler"
	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/rbac"
	"buildtrack/pkg/util"
)

// AuthMiddleware 校验 Bearer 令牌，把 model.Actor 放进上下文
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			handler.Abort(c, http.StatusUnauthorized, handler.CodeUnauthorized, "missing token")
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			msg := "invalid token"
			if util.IsTokenExpired(err) {
				msg = "token expired"
			}
			handler.Abort(c, http.StatusUnauthorized, handler.CodeUnauthorized, msg)
			return
		}
		if !rbac.IsKnownRole(claims.Role) {
			handler.Abort(c, http.StatusUnauthorized, handler.CodeUnauthorized, "unknown role")
			return
		}

		c.Set(handler.ActorKey, model.Actor{UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequirePermission 中间件：要求角色具有 resource 上的 action 能力
func RequirePermission(enforcer *rbac.Enforcer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(handler.ActorKey)
		actor, ok := v.(model.Actor)
		if !exists || !ok {
			handler.Abort(c, http.StatusUnauthorized, handler.CodeUnauthorized, "user not authenticated")
			return
		}

		if err := enforcer.CheckPermission(actor.Role, resource, action); err != nil {
			handler.Abort(c, http.StatusForbidden, apperr.CodeForbidden, err.Error())
			return
		}
		c.Next()
	}
}
