// Package handler gin 处理函数：解析请求、调用 service、统一响应格式
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
)

// ActorKey 认证中间件把 model.Actor 存在 gin.Context 的这个键下
const ActorKey = "actor"

const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
	Message    string            `json:"message,omitempty"`
	Error      *errorBody        `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondList(c *gin.Context, data any, page model.Pagination) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Pagination: &page})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message})
}

// Abort 中间件使用，直接写错误响应并终止链路
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, envelope{Error: &errorBody{Code: code, Message: message}})
}

// StatusOf 业务错误类别到 HTTP 状态码
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError 业务错误原样返回码和消息，其它错误只记录日志
func respondError(c *gin.Context, log *zap.Logger, err error) {
	log = logger.WithTrace(c.Request.Context(), log)
	status := StatusOf(err)

	if e, ok := apperr.As(err); ok && status != http.StatusInternalServerError {
		log.Info("Request rejected",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.String("code", e.Code),
			zap.String("message", e.Message),
		)
		c.JSON(status, envelope{Error: &errorBody{Code: e.Code, Message: e.Message}})
		return
	}

	log.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, envelope{Error: &errorBody{Code: CodeInternal, Message: "internal server error"}})
}

// bindJSON 未知字段视为错误，之后再跑 binding 标签校验
func bindJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// actorOf 认证中间件之后调用，拿不到说明路由没挂中间件
func actorOf(c *gin.Context) model.Actor {
	v, _ := c.Get(ActorKey)
	actor, _ := v.(model.Actor)
	return actor
}

// pageOf page / limit 非法时回落到默认值
func pageOf(c *gin.Context) model.Page {
	number, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(model.DefaultPageSize)))
	return model.NewPage(number, size)
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
