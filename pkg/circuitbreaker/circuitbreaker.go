// Package circuitbreaker 保护对外部依赖（对象存储）的调用
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen 熔断期间直接返回，不调用下游
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	FailureThreshold int           // 连续失败次数达到后打开
	SuccessThreshold int           // 半开时连续成功次数达到后关闭
	Cooldown         time.Duration // 打开后多久允许探测
	MaxProbes        int           // 半开时同时在途的探测请求上限

	// OnStateChange 在持锁外调用
	OnStateChange func(name string, from, to State)
}

// DefaultConfig 对象存储使用
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxProbes:        3,
	}
}

type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

func New(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}
	return &Breaker{name: name, config: config, now: time.Now}
}

func (b *Breaker) Name() string { return b.name }

// Execute 调用 fn。调用方取消（ctx 已结束）导致的错误不计为下游失败
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	switch {
	case err == nil:
		b.record(true)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release()
	default:
		b.record(false)
	}
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	from := b.state
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.state = StateHalfOpen
		b.probes = 0
		b.successes = 0
	}
	to := b.state

	var err error
	switch b.state {
	case StateOpen:
		err = ErrOpen
	case StateHalfOpen:
		if b.probes >= b.config.MaxProbes {
			err = ErrOpen
		} else {
			b.probes++
		}
	}
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	from := b.state
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	if ok {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.state = StateClosed
				b.successes = 0
				b.probes = 0
			}
		}
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.trip()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// release 归还半开探测名额，不改变计数
func (b *Breaker) release() {
	b.mu.Lock()
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
	b.mu.Unlock()
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	b.probes = 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probes = 0
	b.mu.Unlock()

	b.notify(from, StateClosed)
}
