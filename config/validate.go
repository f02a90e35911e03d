package config

import (
	"errors"
	"fmt"
)

// Validate 校验配置的必填项与取值范围。
// 策略参数的细化范围由 pmm.Config.Validate 把关，这里拦截结构性错误，
// 保证后续换算不会产生无意义的参数。
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Strategy.Token == "" {
		return errors.New("strategy.token is required")
	}
	if len(cfg.Strategy.Markets) == 0 {
		return errors.New("strategy.markets is required")
	}
	if cfg.Strategy.OrderAmount <= 0 {
		return errors.New("strategy.orderAmount must be > 0")
	}
	if cfg.Strategy.SpreadPct <= 0 || cfg.Strategy.SpreadPct >= 100 {
		return fmt.Errorf("strategy.spreadPct must be in (0, 100), got %v", cfg.Strategy.SpreadPct)
	}
	if cfg.Strategy.MaxSpreadPct >= 100 {
		return fmt.Errorf("strategy.maxSpreadPct must be below 100, got %v", cfg.Strategy.MaxSpreadPct)
	}
	if p := cfg.Strategy.OrderRefreshTolerancePct; p < -10 || p > 10 {
		return fmt.Errorf("strategy.orderRefreshTolerancePct must be in [-10, 10], got %v", p)
	}
	if cfg.Strategy.InventorySkew.Enabled {
		if p := cfg.Strategy.InventorySkew.TargetBasePct; p < 0 || p > 100 {
			return fmt.Errorf("strategy.inventorySkew.targetBasePct must be in [0, 100], got %v", p)
		}
		if cfg.Strategy.InventorySkew.RangeMultiplier <= 0 {
			return errors.New("strategy.inventorySkew.rangeMultiplier must be > 0")
		}
	}
	if cfg.Strategy.OrderOptimization.Enabled {
		if p := cfg.Strategy.OrderOptimization.DepthPct; p < 0 || p > 100 {
			return fmt.Errorf("strategy.orderOptimization.depthPct must be in [0, 100], got %v", p)
		}
	}
	if len(cfg.Exchange.Pairs) == 0 {
		return errors.New("exchange.pairs is required")
	}
	for _, pair := range cfg.Strategy.Markets {
		if _, ok := cfg.Exchange.Pairs[pair]; !ok {
			return fmt.Errorf("market %s has no exchange.pairs entry", pair)
		}
	}
	for pair, pc := range cfg.Exchange.Pairs {
		if pc.TickSize <= 0 {
			return fmt.Errorf("pair %s tickSize must be > 0", pair)
		}
		if pc.StepSize <= 0 {
			return fmt.Errorf("pair %s stepSize must be > 0", pair)
		}
	}
	if cfg.Exchange.BuyFeePct < 0 || cfg.Exchange.SellFeePct < 0 {
		return errors.New("exchange fees must be >= 0")
	}
	return nil
}
