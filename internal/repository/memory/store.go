// Package memory 单进程内存 Store，供 memory 驱动和服务层测试使用
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/pkg/outbox"
)

type tables struct {
	projects   *table[model.Project]
	milestones *table[model.Milestone]
	reports    *table[model.DailyReport]
	inventory  *table[model.InventoryItem]
	photos     *table[model.Photo]
	events     *table[outbox.Event]
}

func newTables() *tables {
	return &tables{
		projects:   newTable[model.Project](),
		milestones: newTable[model.Milestone](),
		reports:    newTable[model.DailyReport](),
		inventory:  newTable[model.InventoryItem](),
		photos:     newTable[model.Photo](),
		events:     newTable[outbox.Event](),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		projects:   t.projects.clone(cloneProject),
		milestones: t.milestones.clone(cloneMilestone),
		reports:    t.reports.clone(cloneReport),
		inventory:  t.inventory.clone(cloneItem),
		photos:     t.photos.clone(clonePhoto),
		events:     t.events.clone(cloneEvent),
	}
}

// Store 一把全局锁串行化所有访问
// InTx 在快照上执行 fn，成功才替换当前数据；fn 内只能使用传入的 Repos
type Store struct {
	mu     sync.Mutex
	data   *tables
	now    func() time.Time
	logger *zap.Logger
	*repos
}

var (
	_ repository.Store   = (*Store)(nil)
	_ outbox.Source      = (*Store)(nil)
	_ outbox.ReplayStore = (*Store)(nil)
)

func NewStore(logger *zap.Logger) *Store {
	s := &Store{
		data:   newTables(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	s.repos = &repos{s: s}
	return s
}

// SetClock 测试用，固定时间戳
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) InTx(ctx context.Context, fn func(r repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&repos{s: s, tx: snapshot}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.data = snapshot
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// repos tx 非空时绑定事务快照（锁已由 InTx 持有），否则每次调用单独加锁
type repos struct {
	s  *Store
	tx *tables
}

func (r *repos) view(fn func(t *tables) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.data)
}

func (r *repos) Projects() repository.ProjectRepository     { return &projectRepo{r} }
func (r *repos) Milestones() repository.MilestoneRepository { return &milestoneRepo{r} }
func (r *repos) Reports() repository.ReportRepository       { return &reportRepo{r} }
func (r *repos) Inventory() repository.InventoryRepository  { return &inventoryRepo{r} }
func (r *repos) Photos() repository.PhotoRepository         { return &photoRepo{r} }
func (r *repos) Events() repository.EventRepository         { return &eventRepo{r} }

type eventRepo struct{ *repos }

func (r *eventRepo) Append(_ context.Context, e *outbox.Event) error {
	return r.view(func(t *tables) error {
		if _, ok := t.events.get(e.ID); ok {
			return fmt.Errorf("outbox event %s already exists", e.ID)
		}
		now := r.s.now()
		if e.Status == "" {
			e.Status = outbox.StatusPending
		}
		e.CreatedAt, e.UpdatedAt = now, now
		t.events.put(e.ID, cloneEvent(e))
		return nil
	})
}

// 以下实现 outbox.Source 与 outbox.ReplayStore，memory 驱动下由同一个 Dispatcher 投递

func (s *Store) GetPendingEvents(_ context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*outbox.Event
	for _, e := range s.data.events.all() {
		if len(out) >= limit {
			break
		}
		if e.Status != outbox.StatusPending {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (s *Store) MarkAsSent(_ context.Context, eventID string) error {
	return s.updateEvent(eventID, func(e *outbox.Event) {
		e.Status = outbox.StatusSent
	})
}

func (s *Store) MarkAsFailed(_ context.Context, eventID string, maxRetries int) error {
	return s.updateEvent(eventID, func(e *outbox.Event) {
		e.RetryCount++
		e.Status, e.NextRetryAt = outbox.NextAttempt(e.RetryCount, maxRetries, s.now())
	})
}

func (s *Store) GetEventByID(_ context.Context, eventID string) (*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data.events.get(eventID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", outbox.ErrEventNotFound, eventID)
	}
	return cloneEvent(e), nil
}

func (s *Store) GetFailedEvents(_ context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.data.events.all()
	var out []*outbox.Event
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].Status == outbox.StatusFailed {
			out = append(out, cloneEvent(all[i]))
		}
	}
	return out, nil
}

// EventsByRoutingKey 按写入顺序返回某一路由键的全部事件
func (s *Store) EventsByRoutingKey(routingKey string) []*outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*outbox.Event
	for _, e := range s.data.events.all() {
		if e.RoutingKey == routingKey {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

func (s *Store) updateEvent(eventID string, fn func(e *outbox.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data.events.get(eventID)
	if !ok {
		return fmt.Errorf("%w: %s", outbox.ErrEventNotFound, eventID)
	}
	fn(e)
	e.UpdatedAt = s.now()
	return nil
}

// sortStable 稳定排序，相等元素保持插入顺序
func sortStable[T any](items []*T, less func(a, b *T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
