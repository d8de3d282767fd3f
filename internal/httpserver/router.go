package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"buildtrack/internal/handler"
	"buildtrack/pkg/rbac"
)

// Pinger 就绪检查依赖的存储
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker 就绪检查依赖的消息队列连接，memory 驱动下为 nil
type ConnChecker interface {
	IsConnected() bool
}

type Handlers struct {
	Projects   *handler.ProjectHandler
	Milestones *handler.MilestoneHandler
	Reports    *handler.ReportHandler
	Inventory  *handler.InventoryHandler
	Photos     *handler.PhotoHandler
	Admin      *handler.AdminHandler
}

type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	RateLimitBurst  int
	Enforcer        *rbac.Enforcer
	Store           Pinger
	MQ              ConnChecker
	Logger          *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, opts Options) *Router {
	r := gin.New()
	r.Use(
		TraceMiddleware(),
		RequestIDMiddleware(),
		LoggerMiddleware(opts.Logger),
		MetricsMiddleware(),
		RecoveryMiddleware(opts.Logger),
	)

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyz(opts))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(RateLimitMiddleware(opts.RateLimitPerMin, opts.RateLimitBurst), AuthMiddleware(opts.JWTSecret))

	e := opts.Enforcer
	can := func(resource, action string) gin.HandlerFunc {
		return RequirePermission(e, resource, action)
	}

	projects := api.Group("/projects")
	{
		projects.GET("", can(rbac.ResourceProject, rbac.ActionRead), h.Projects.List)
		projects.POST("", can(rbac.ResourceProject, rbac.ActionCreate), h.Projects.Create)
		projects.GET("/:id", can(rbac.ResourceProject, rbac.ActionRead), h.Projects.Get)
		projects.PUT("/:id", can(rbac.ResourceProject, rbac.ActionUpdate), h.Projects.Update)
		projects.DELETE("/:id", can(rbac.ResourceProject, rbac.ActionDelete), h.Projects.Delete)
		projects.PUT("/:id/budget", can(rbac.ResourceProject, rbac.ActionBudget), h.Projects.UpdateBudget)
		projects.PUT("/:id/progress", can(rbac.ResourceProject, rbac.ActionOverrideProgress), h.Projects.OverrideProgress)
		projects.POST("/:id/calculate-progress", can(rbac.ResourceProject, rbac.ActionRecalculate), h.Projects.Recalculate)
	}

	milestones := api.Group("/milestones")
	{
		milestones.GET("/project/:projectId", can(rbac.ResourceMilestone, rbac.ActionRead), h.Milestones.ListByProject)
		milestones.GET("/status/pending-approval", can(rbac.ResourceMilestone, rbac.ActionReview), h.Milestones.PendingApprovals)
		milestones.GET("/:id", can(rbac.ResourceMilestone, rbac.ActionRead), h.Milestones.Get)
		milestones.POST("", can(rbac.ResourceMilestone, rbac.ActionCreate), h.Milestones.Create)
		milestones.PUT("/:id", can(rbac.ResourceMilestone, rbac.ActionUpdate), h.Milestones.Update)
		milestones.DELETE("/:id", can(rbac.ResourceMilestone, rbac.ActionDelete), h.Milestones.Delete)
		milestones.PUT("/:id/submit", can(rbac.ResourceMilestone, rbac.ActionSubmit), h.Milestones.Submit)
		milestones.PUT("/:id/approve", can(rbac.ResourceMilestone, rbac.ActionReview), h.Milestones.Review)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/project/:projectId", can(rbac.ResourceReport, rbac.ActionRead), h.Reports.ListByProject)
		reports.GET("/user/my-reports", can(rbac.ResourceReport, rbac.ActionRead), h.Reports.Mine)
		reports.GET("/:id", can(rbac.ResourceReport, rbac.ActionRead), h.Reports.Get)
		reports.POST("", can(rbac.ResourceReport, rbac.ActionCreate), h.Reports.Create)
		reports.PUT("/:id", can(rbac.ResourceReport, rbac.ActionUpdate), h.Reports.Update)
		reports.DELETE("/:id", can(rbac.ResourceReport, rbac.ActionDelete), h.Reports.Delete)
	}

	inventory := api.Group("/inventory")
	{
		inventory.GET("/project/:projectId", can(rbac.ResourceInventory, rbac.ActionRead), h.Inventory.ListByProject)
		inventory.GET("/alerts/low-stock", can(rbac.ResourceInventory, rbac.ActionRead), h.Inventory.LowStock)
		inventory.GET("/:id", can(rbac.ResourceInventory, rbac.ActionRead), h.Inventory.Get)
		inventory.POST("", can(rbac.ResourceInventory, rbac.ActionCreate), h.Inventory.Create)
		inventory.PUT("/:id", can(rbac.ResourceInventory, rbac.ActionUpdate), h.Inventory.Update)
		inventory.DELETE("/:id", can(rbac.ResourceInventory, rbac.ActionDelete), h.Inventory.Delete)
		inventory.PUT("/:id/quantity", can(rbac.ResourceInventory, rbac.ActionAdjust), h.Inventory.AdjustQuantity)
	}

	photos := api.Group("/photos")
	{
		photos.GET("/project/:projectId", can(rbac.ResourcePhoto, rbac.ActionRead), h.Photos.ListByProject)
		photos.GET("/:id", can(rbac.ResourcePhoto, rbac.ActionRead), h.Photos.Get)
		photos.POST("", can(rbac.ResourcePhoto, rbac.ActionCreate), h.Photos.Upload)
		photos.PUT("/:id", can(rbac.ResourcePhoto, rbac.ActionUpdate), h.Photos.Update)
		photos.DELETE("/:id", can(rbac.ResourcePhoto, rbac.ActionDelete), h.Photos.Delete)
	}

	if h.Admin != nil {
		admin := api.Group("/admin/outbox")
		admin.GET("/failed", can(rbac.ResourceOutbox, rbac.ActionRead), h.Admin.FailedEvents)
		admin.POST("/replay-failed", can(rbac.ResourceOutbox, rbac.ActionReplay), h.Admin.ReplayFailed)
		admin.POST("/:id/replay", can(rbac.ResourceOutbox, rbac.ActionReplay), h.Admin.Replay)
	}

	return &Router{Engine: r}
}

func readyz(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := opts.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if opts.MQ != nil && !opts.MQ.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
