package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"buildtrack/pkg/db"
	"buildtrack/pkg/outbox"
)

// PgStore 基于 pgxpool 的 Store 实现
type PgStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	*pgRepos
}

// NewPgStore 非事务调用直接走连接池
func NewPgStore(pool *pgxpool.Pool, logger *zap.Logger) *PgStore {
	return &PgStore{
		pool:    pool,
		logger:  logger,
		pgRepos: newPgRepos(pool, logger),
	}
}

// InTx fn 内的仓储全部绑定到同一个事务
func (s *PgStore) InTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("Failed to rollback tx", zap.Error(err))
		}
	}()

	if err := fn(newPgRepos(tx, s.logger)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgRepos struct {
	projects   *ProjectRepo
	milestones *MilestoneRepo
	reports    *ReportRepo
	inventory  *InventoryRepo
	photos     *PhotoRepo
	events     *EventRepo
}

func newPgRepos(conn db.DBTX, logger *zap.Logger) *pgRepos {
	return &pgRepos{
		projects:   NewProjectRepo(conn, logger),
		milestones: NewMilestoneRepo(conn, logger),
		reports:    NewReportRepo(conn, logger),
		inventory:  NewInventoryRepo(conn, logger),
		photos:     NewPhotoRepo(conn, logger),
		events:     NewEventRepo(conn, logger),
	}
}

func (r *pgRepos) Projects() ProjectRepository     { return r.projects }
func (r *pgRepos) Milestones() MilestoneRepository { return r.milestones }
func (r *pgRepos) Reports() ReportRepository       { return r.reports }
func (r *pgRepos) Inventory() InventoryRepository  { return r.inventory }
func (r *pgRepos) Photos() PhotoRepository         { return r.photos }
func (r *pgRepos) Events() EventRepository         { return r.events }

// EventRepo 通过 outbox.Repository 写入当前事务
type EventRepo struct {
	db     db.DBTX
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewEventRepo(conn db.DBTX, logger *zap.Logger) *EventRepo {
	return &EventRepo{db: conn, outbox: outbox.NewRepository(conn), logger: logger}
}

func (r *EventRepo) Append(ctx context.Context, e *outbox.Event) error {
	if err := r.outbox.InsertEvent(ctx, r.db, e); err != nil {
		r.logger.Error("Failed to append outbox event",
			zap.String("event_id", e.ID),
			zap.String("routing_key", e.RoutingKey),
			zap.Error(err),
		)
		return err
	}
	r.logger.Debug("Outbox event appended",
		zap.String("event_id", e.ID),
		zap.String("routing_key", e.RoutingKey),
	)
	return nil
}
