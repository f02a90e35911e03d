// Package alert 提供注入式的告警通知：策略不直接依赖任何宿主应用，
// 通过 Manager 把告警分发到若干通道，相同告警在限流窗口内只投递一次。
package alert

import (
	"fmt"
	"sync"
	"time"
)

// Alert 一条告警。
type Alert struct {
	Level     string // "INFO", "WARNING", "ERROR"
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 告警投递通道。
type Channel interface {
	Send(Alert) error
	Name() string
}

// Manager 告警分发器。同一 level+message 的告警按限流间隔去重，
// 任一通道投递成功即视为送达。
type Manager struct {
	channels []Channel
	throttle *Throttler
}

// NewManager 创建分发器。
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{channels: channels, throttle: NewThrottler(throttleInterval)}
}

// Send 分发一条告警。被限流的告警静默丢弃；全部通道失败才返回错误。
func (m *Manager) Send(a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if !m.throttle.Allow(a.Level + ":" + a.Message) {
		return nil
	}

	var lastErr error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			lastErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// SendInfo 发送 INFO 级别告警（交易启动、成交等事件）。
func (m *Manager) SendInfo(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "INFO", Message: message, Fields: fields})
}

// SendWarning 发送 WARNING 级别告警（行情缺失、市场跳过等）。
func (m *Manager) SendWarning(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "WARNING", Message: message, Fields: fields})
}

// SendError 发送 ERROR 级别告警（下单被拒等需要关注的失败）。
func (m *Manager) SendError(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "ERROR", Message: message, Fields: fields})
}

// Throttler 按 key 控制最小重发间隔。
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	lastSent map[string]time.Time
}

// NewThrottler 创建限流器。
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{interval: interval, lastSent: make(map[string]time.Time)}
}

// Allow 判断该 key 当前是否可发送，可发送则记录本次时间。
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastSent[key]; ok && time.Since(last) < t.interval {
		return false
	}
	t.lastSent[key] = time.Now()
	return true
}
