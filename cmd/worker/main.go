package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildtrack/internal/config"
	"buildtrack/internal/mqhandler"
	"buildtrack/internal/repository"
	"buildtrack/internal/service"
	"buildtrack/pkg/db"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/mq"
	"buildtrack/pkg/redis"
	"buildtrack/pkg/util"
)

const (
	dedupTTL = 24 * time.Hour
	retryTTL = time.Hour
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting worker...")
	if cfg.Storage.Driver == config.DriverMemory {
		log.Fatal("Worker requires the postgres storage driver; memory mode handles events in the server process")
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid app config", zap.Error(err))
	}

	// Redis
	rdb, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, dedupTTL, log)
	retryCounter := util.NewRetryCounter(rdb, retryTTL)

	// DB
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer pool.Close()
	log.Info("DB ready")

	// DLQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, "buildtrack-worker")
	if err != nil {
		log.Fatal("MQ publisher initialization failed", zap.Error(err))
	}
	defer publisher.Close()

	store := repository.NewPgStore(pool, log)
	guard := mqhandler.NewGuard(deduper, retryCounter, publisher, cfg.App.RecalcRetryMax, log)
	routes := mqhandler.Routes(
		mqhandler.NewProjectRecalculateHandler(service.NewRecalculator(store, loc, log), guard, log),
		mqhandler.NewNotificationHandler(guard, log),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range routes {
		log.Info("Init consumer", zap.String("queue", r.Queue), zap.String("routing_key", r.RoutingKey))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, r.Queue, r.RoutingKey, log)
		if err != nil {
			log.Fatal("Consumer init failed", zap.String("queue", r.Queue), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(r.Handler)

		g.Go(func() error {
			return consumer.StartConsuming(gctx)
		})
	}

	metricsEngine := gin.New()
	metricsEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	metricsSrv := &http.Server{Addr: cfg.App.WorkerMetrics, Handler: metricsEngine, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	log.Info("Worker running", zap.Int("consumers", len(routes)))
	if err := g.Wait(); err != nil {
		log.Error("Worker exited with error", zap.Error(err))
	}
}
