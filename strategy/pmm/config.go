package pmm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config 做市策略参数。百分比字段均为小数形式（0.01 = 1%），
// 由配置层负责从百分比输入换算。
type Config struct {
	Token       string          // 统一计价 token，必须是所有市场的统一 quote 或统一 base
	OrderAmount decimal.Decimal // 每侧下单量，以 Token 计

	Spread    decimal.Decimal // 挂单相对中间价的偏移
	MaxSpread decimal.Decimal // 价差上限，<=0 表示不限制

	OrderRefreshTime         time.Duration   // 挂单刷新周期
	OrderRefreshTolerancePct decimal.Decimal // 价格容忍带，带内不刷新；负值禁用
	MaxOrderAge              time.Duration   // 挂单最大年龄，超过强制重挂

	InventorySkewEnabled     bool
	InventoryTargetBasePct   decimal.Decimal // 目标 base 价值占比
	InventoryRangeMultiplier decimal.Decimal // 容忍区间 = 双边总量 × 乘数

	OrderOptimizationEnabled  bool
	OrderOptimizationDepthPct decimal.Decimal // 计算盘口内侧价时忽略的深度占单量比例
	OrderOptimizationFailsafe bool            // 内侧价不优于基准价时退而贴合盘口档位

	MaxAvailableTokenAmount decimal.Decimal // Token 可用余额上限，负值不限制
}

var one = decimal.New(1, 0)

// Validate 检查参数范围，范围与含义保持与配置文档一致。
func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.OrderAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("order_amount must be positive, got %s", c.OrderAmount)
	}
	if c.Spread.LessThanOrEqual(decimal.Zero) || c.Spread.GreaterThanOrEqual(one) {
		return fmt.Errorf("spread must be in (0, 1), got %s", c.Spread)
	}
	if c.MaxSpread.IsPositive() && c.MaxSpread.GreaterThanOrEqual(one) {
		return fmt.Errorf("max_spread must be below 1, got %s", c.MaxSpread)
	}
	if c.OrderRefreshTime <= 0 {
		return fmt.Errorf("order_refresh_time must be positive, got %s", c.OrderRefreshTime)
	}
	if c.OrderRefreshTolerancePct.GreaterThan(one) {
		return fmt.Errorf("order_refresh_tolerance_pct must not exceed 1, got %s", c.OrderRefreshTolerancePct)
	}
	if c.MaxOrderAge <= 0 {
		return fmt.Errorf("max_order_age must be positive, got %s", c.MaxOrderAge)
	}
	if c.InventorySkewEnabled {
		if c.InventoryTargetBasePct.IsNegative() || c.InventoryTargetBasePct.GreaterThan(one) {
			return fmt.Errorf("inventory_target_base_pct must be in [0, 1], got %s", c.InventoryTargetBasePct)
		}
		if c.InventoryRangeMultiplier.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("inventory_range_multiplier must be positive, got %s", c.InventoryRangeMultiplier)
		}
	}
	if c.OrderOptimizationEnabled {
		if c.OrderOptimizationDepthPct.IsNegative() {
			return fmt.Errorf("order_optimization_depth_pct must not be negative, got %s", c.OrderOptimizationDepthPct)
		}
	}
	return nil
}

// effectiveSpread 应用 max_spread 上限后的实际价差。
func (c Config) effectiveSpread() decimal.Decimal {
	if c.MaxSpread.IsPositive() && c.MaxSpread.LessThan(c.Spread) {
		return c.MaxSpread
	}
	return c.Spread
}
