package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mmaker-go/infrastructure/logger"
)

// LogChannel 把告警写入结构化日志。
type LogChannel struct {
	log  *logger.Logger
	name string
}

// NewLogChannel 创建日志告警通道。
func NewLogChannel(name string, log *logger.Logger) *LogChannel {
	return &LogChannel{log: log, name: name}
}

// Send 按级别写入日志。
func (c *LogChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+1)
	fields = append(fields, zap.Time("alert_ts", alert.Timestamp))
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch alert.Level {
	case "ERROR":
		c.log.Error(alert.Message, fields...)
	case "WARNING":
		c.log.Warn(alert.Message, fields...)
	default:
		c.log.Info(alert.Message, fields...)
	}
	return nil
}

// Name 返回通道名称。
func (c *LogChannel) Name() string { return c.name }

// WebhookChannel 把告警以 JSON POST 到外部 webhook。
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookChannel 创建 webhook 告警通道。
func NewWebhookChannel(name, url string) *WebhookChannel {
	return &WebhookChannel{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Send 发送告警，非 2xx 响应视为失败。
func (c *WebhookChannel) Send(alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Level:     alert.Level,
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
		Fields:    alert.Fields,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Name 返回通道名称。
func (c *WebhookChannel) Name() string { return c.name }

// MockChannel 模拟告警通道（用于测试）。
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟告警通道。
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name, alerts: make([]Alert, 0)}
}

// Send 记录告警。
func (c *MockChannel) Send(alert Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name 返回通道名称。
func (c *MockChannel) Name() string { return c.name }

// GetAlerts 获取所有接收到的告警。
func (c *MockChannel) GetAlerts() []Alert { return c.alerts }

// SetShouldError 设置是否返回错误。
func (c *MockChannel) SetShouldError(shouldErr bool) { c.shouldErr = shouldErr }

// Clear 清空告警记录。
func (c *MockChannel) Clear() { c.alerts = make([]Alert, 0) }

// Count 返回接收到的告警数量。
func (c *MockChannel) Count() int { return len(c.alerts) }
