package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildtrack/internal/config"
	"buildtrack/internal/handler"
	"buildtrack/internal/httpserver"
	"buildtrack/internal/mqhandler"
	"buildtrack/internal/repository"
	"buildtrack/internal/repository/memory"
	"buildtrack/internal/service"
	"buildtrack/pkg/db"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/mq"
	"buildtrack/pkg/outbox"
	"buildtrack/pkg/rbac"
	"buildtrack/pkg/storage"
)

// eventStore outbox 的读写端，postgres 下是 *outbox.Repository，memory 下是 *memory.Store
type eventStore interface {
	outbox.Source
	outbox.ReplayStore
}

func main() {
	// 1. Load config
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid app config", zap.Error(err))
	}
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		log.Fatal("RBAC policy load failed", zap.Error(err))
	}

	// 2. Storage
	var (
		store  repository.Store
		events eventStore
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		mem := memory.NewStore(log)
		store, events = mem, mem
		log.Warn("Using in-memory storage, data is lost on restart")
	default:
		if err := db.Migrate(cfg.DB, log); err != nil {
			log.Fatal("DB migration failed", zap.Error(err))
		}
		pool, err := db.NewConnection(cfg.DB, log)
		if err != nil {
			log.Fatal("DB initialization failed", zap.Error(err))
		}
		defer pool.Close()
		store, events = repository.NewPgStore(pool, log), outbox.NewRepository(pool)
	}

	var objects service.ObjectStore
	if cfg.Minio.Endpoint == "" {
		objects = storage.NewMemoryStore()
		log.Warn("MinIO endpoint not configured, photos are kept in memory")
	} else {
		minioStore, err := storage.NewMinioStore(ctx, cfg.Minio, log)
		if err != nil {
			log.Fatal("MinIO initialization failed", zap.Error(err))
		}
		objects = minioStore
	}

	// 3. Services
	access := service.NewAccess(enforcer)
	recalculator := service.NewRecalculator(store, loc, log)
	projects := service.NewProjectService(store, access, recalculator, log)
	milestones := service.NewMilestoneService(store, access, recalculator, log)
	reports := service.NewReportService(store, access, recalculator, loc, log)
	inventory := service.NewInventoryService(store, access, log)
	photos := service.NewPhotoService(store, access, objects, log)

	// 4. Event delivery：postgres 走 RabbitMQ，memory 在进程内处理
	var (
		publisher outbox.Publisher
		mqCheck   httpserver.ConnChecker
	)
	if cfg.Storage.Driver == config.DriverMemory {
		guard := mqhandler.NewGuard(nil, nil, nil, cfg.App.RecalcRetryMax, log)
		bus := mqhandler.NewLocalBus(log)
		bus.SubscribeAll(mqhandler.Routes(
			mqhandler.NewProjectRecalculateHandler(recalculator, guard, log),
			mqhandler.NewNotificationHandler(guard, log),
		))
		publisher = bus
	} else {
		pub, err := mq.NewPublisher(cfg.MQ.URL, "buildtrack-server")
		if err != nil {
			log.Fatal("MQ publisher initialization failed", zap.Error(err))
		}
		defer pub.Close()
		publisher, mqCheck = pub, pub
	}
	dispatcher := outbox.NewDispatcher(events, publisher, log).WithInterval(cfg.App.OutboxInterval())
	replay := outbox.NewReplayService(events, publisher, log)

	// 5. Router
	router := httpserver.NewRouter(httpserver.Handlers{
		Projects:   handler.NewProjectHandler(projects, log),
		Milestones: handler.NewMilestoneHandler(milestones, log),
		Reports:    handler.NewReportHandler(reports, log),
		Inventory:  handler.NewInventoryHandler(inventory, log),
		Photos:     handler.NewPhotoHandler(photos, log),
		Admin:      handler.NewAdminHandler(replay, log),
	}, httpserver.Options{
		JWTSecret:       cfg.JWT.Secret,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		Enforcer:        enforcer,
		Store:           store,
		MQ:              mqCheck,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Run until signal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("HTTP server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
	}
}
