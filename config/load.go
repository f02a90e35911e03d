// Package config 负责 YAML 配置的加载、校验与热更新监听。
// 百分比字段按百分数填写（1 表示 1%），加载后换算为小数供策略使用。
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"mmaker-go/exchange"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/strategy/pmm"
)

// AppConfig 运行时主配置。
type AppConfig struct {
	Env      string         `yaml:"env"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Strategy StrategyConfig `yaml:"strategy"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  logger.Config  `yaml:"logging"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ExchangeConfig struct {
	Name       string                `yaml:"name"`
	BuyFeePct  float64               `yaml:"buyFeePct"`  // 百分数
	SellFeePct float64               `yaml:"sellFeePct"` // 百分数
	Pairs      map[string]PairConfig `yaml:"pairs"`
	Balances   map[string]float64    `yaml:"balances"` // 纸面模式初始余额
	Feed       FeedConfig            `yaml:"feed"`     // 纸面模式模拟行情
}

// PairConfig 交易对精度规则（对应 exchangeInfo）与模拟行情起点。
type PairConfig struct {
	TickSize   float64 `yaml:"tickSize"`
	StepSize   float64 `yaml:"stepSize"`
	InitialMid float64 `yaml:"initialMid"` // 纸面模式初始中间价
}

// FeedConfig 模拟行情参数。
type FeedConfig struct {
	Interval      time.Duration `yaml:"interval"`
	VolatilityPct float64       `yaml:"volatilityPct"` // 百分数
	Seed          int64         `yaml:"seed"`
	Levels        int           `yaml:"levels"`
}

type StrategyConfig struct {
	Token       string   `yaml:"token"`
	Markets     []string `yaml:"markets"`
	OrderAmount float64  `yaml:"orderAmount"`

	SpreadPct    float64 `yaml:"spreadPct"`
	MaxSpreadPct float64 `yaml:"maxSpreadPct"` // <=0 不限制

	OrderRefreshTime         time.Duration `yaml:"orderRefreshTime"`
	OrderRefreshTolerancePct float64       `yaml:"orderRefreshTolerancePct"` // 负值禁用
	MaxOrderAge              time.Duration `yaml:"maxOrderAge"`

	InventorySkew     InventorySkewConfig     `yaml:"inventorySkew"`
	OrderOptimization OrderOptimizationConfig `yaml:"orderOptimization"`

	MaxAvailableTokenAmount float64 `yaml:"maxAvailableTokenAmount"` // 负值不限制
}

type InventorySkewConfig struct {
	Enabled         bool    `yaml:"enabled"`
	TargetBasePct   float64 `yaml:"targetBasePct"` // 百分数
	RangeMultiplier float64 `yaml:"rangeMultiplier"`
}

type OrderOptimizationConfig struct {
	Enabled  bool    `yaml:"enabled"`
	DepthPct float64 `yaml:"depthPct"` // 百分数
	Failsafe bool    `yaml:"failsafe"`
}

type EngineConfig struct {
	TickInterval         time.Duration `yaml:"tickInterval"`
	StatusReportInterval time.Duration `yaml:"statusReportInterval"`
}

type AlertConfig struct {
	Enabled          bool          `yaml:"enabled"`
	ThrottleInterval time.Duration `yaml:"throttleInterval"`
	WebhookURL       string        `yaml:"webhookURL"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load 从文件读取并校验配置。
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides 加载配置后用环境变量覆盖部分字段。
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MM_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Engine.TickInterval <= 0 {
		cfg.Engine.TickInterval = time.Second
	}
	if cfg.Engine.StatusReportInterval <= 0 {
		cfg.Engine.StatusReportInterval = 15 * time.Minute
	}
	if cfg.Strategy.OrderRefreshTime <= 0 {
		cfg.Strategy.OrderRefreshTime = 30 * time.Second
	}
	if cfg.Strategy.MaxOrderAge <= 0 {
		cfg.Strategy.MaxOrderAge = 30 * time.Minute
	}
	if cfg.Alerts.ThrottleInterval <= 0 {
		cfg.Alerts.ThrottleInterval = time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging = logger.DefaultConfig()
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Exchange.Name == "" {
		cfg.Exchange.Name = "paper"
	}
}

// StrategyParams 将配置换算成策略参数（百分数转小数）。
func (c AppConfig) StrategyParams() pmm.Config {
	s := c.Strategy
	return pmm.Config{
		Token:                     s.Token,
		OrderAmount:               decimal.NewFromFloat(s.OrderAmount),
		Spread:                    pctToFraction(s.SpreadPct),
		MaxSpread:                 pctToFraction(s.MaxSpreadPct),
		OrderRefreshTime:          s.OrderRefreshTime,
		OrderRefreshTolerancePct:  pctToFraction(s.OrderRefreshTolerancePct),
		MaxOrderAge:               s.MaxOrderAge,
		InventorySkewEnabled:      s.InventorySkew.Enabled,
		InventoryTargetBasePct:    pctToFraction(s.InventorySkew.TargetBasePct),
		InventoryRangeMultiplier:  decimal.NewFromFloat(s.InventorySkew.RangeMultiplier),
		OrderOptimizationEnabled:  s.OrderOptimization.Enabled,
		OrderOptimizationDepthPct: pctToFraction(s.OrderOptimization.DepthPct),
		OrderOptimizationFailsafe: s.OrderOptimization.Failsafe,
		MaxAvailableTokenAmount:   decimal.NewFromFloat(s.MaxAvailableTokenAmount),
	}
}

// PaperConfig 换算纸面交易所配置。
func (c AppConfig) PaperConfig() exchange.PaperConfig {
	rules := make(map[string]exchange.PairRule, len(c.Exchange.Pairs))
	for pair, pc := range c.Exchange.Pairs {
		rules[pair] = exchange.PairRule{
			TickSize: decimal.NewFromFloat(pc.TickSize),
			StepSize: decimal.NewFromFloat(pc.StepSize),
		}
	}
	return exchange.PaperConfig{
		Name:    c.Exchange.Name,
		Rules:   rules,
		BuyFee:  pctToFraction(c.Exchange.BuyFeePct),
		SellFee: pctToFraction(c.Exchange.SellFeePct),
	}
}

func pctToFraction(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(pct).Div(decimal.New(100, 0))
}
