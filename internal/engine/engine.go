// Package engine 提供驱动策略的时钟引擎：按固定间隔触发策略周期，
// 按较长间隔输出状态报告，支持暂停/恢复与优雅停止。
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mmaker-go/infrastructure/logger"
	"mmaker-go/strategy/pmm"
)

// State 引擎状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 引擎配置
type Config struct {
	TickInterval         time.Duration // 策略周期间隔
	StatusReportInterval time.Duration // 状态报告间隔
}

// Engine 时钟引擎。串行驱动策略的 Tick，保证策略内部无并发周期。
type Engine struct {
	config   Config
	strategy *pmm.Strategy
	logger   *logger.Logger

	state State
	mu    sync.RWMutex

	stopChan chan struct{}
	doneChan chan struct{}

	stats Statistics
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime    time.Time
	TotalTicks   int64
	LastTickTime time.Time
	mu           sync.RWMutex
}

// New 创建引擎。
func New(cfg Config, s *pmm.Strategy, log *logger.Logger) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.StatusReportInterval <= 0 {
		cfg.StatusReportInterval = 15 * time.Minute
	}
	return &Engine{
		config:   cfg,
		strategy: s,
		logger:   log,
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 启动引擎主循环。
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle && e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	if e.state == StateStopped {
		e.stopChan = make(chan struct{})
		e.doneChan = make(chan struct{})
	}
	e.state = StateRunning
	e.stats.mu.Lock()
	e.stats.StartTime = time.Now()
	e.stats.mu.Unlock()
	e.mu.Unlock()

	e.logger.Info("engine starting",
		zap.Duration("tick_interval", e.config.TickInterval),
		zap.Duration("status_report_interval", e.config.StatusReportInterval))

	e.strategy.Start()
	go e.run(ctx)
	return nil
}

// Stop 停止引擎并撤掉全部挂单。幂等。
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning && e.state != StatePaused {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.mu.Unlock()

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.logger.Warn("timeout waiting for engine loop to stop")
	}

	e.strategy.Stop()

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	e.logger.Info("engine stopped")
	return nil
}

// Pause 暂停策略周期，挂单保持不动。
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.state = StatePaused
	e.logger.Info("engine paused")
	return nil
}

// Resume 恢复策略周期。
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("engine not paused (state: %s)", e.state)
	}
	e.state = StateRunning
	e.logger.Info("engine resumed")
	return nil
}

// GetState 返回当前状态。
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 返回统计快照。
func (e *Engine) GetStatistics() Statistics {
	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()
	return Statistics{
		StartTime:    e.stats.StartTime,
		TotalTicks:   e.stats.TotalTicks,
		LastTickTime: e.stats.LastTickTime,
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()
	statusTicker := time.NewTicker(e.config.StatusReportInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("context done, stopping engine loop")
			return
		case <-e.stopChan:
			return
		case now := <-ticker.C:
			e.onTick(now)
		case now := <-statusTicker.C:
			e.onStatusReport(now)
		}
	}
}

func (e *Engine) onTick(now time.Time) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	if state != StateRunning {
		return
	}

	e.stats.mu.Lock()
	e.stats.TotalTicks++
	e.stats.LastTickTime = now
	e.stats.mu.Unlock()

	e.strategy.Tick(now)
}

func (e *Engine) onStatusReport(now time.Time) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	if state != StateRunning {
		return
	}
	fmt.Println(e.strategy.FormatStatus(now))
}
