// Package pmm 实现多市场对称做市决策引擎：每个时钟周期读取行情与余额，
// 经过 报价生成 → 盘口优化 → 库存倾斜 → 预算约束 → 撤单 → 下单 的
// 流水线产出订单动作。所有资金量用 decimal 计算。
package pmm

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mmaker-go/exchange"
	"mmaker-go/infrastructure/alert"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/market"
	"mmaker-go/metrics"
)

// 撤单后等待交易所确认的短暂间隔，到期后才允许重新下单。
const cancelSettleDelay = 100 * time.Millisecond

// Strategy 做市策略实例。一个实例服务一组市场，全部状态由 mu 保护；
// Tick 由引擎时钟串行驱动，成交回调可能来自其他 goroutine。
type Strategy struct {
	cfg      Config
	exchange exchange.Exchange
	registry *market.Registry
	log      *logger.Logger
	alerts   *alert.Manager
	metrics  *metrics.Metrics

	tokenIsQuote bool

	mu            sync.Mutex
	ready         bool
	sellBudgets   map[string]decimal.Decimal // base 单位
	buyBudgets    map[string]decimal.Decimal // quote 单位
	tokenBalances map[string]decimal.Decimal // 本周期预算约束用的可用余额快照
	refreshTimes  map[string]time.Time
	pendingRedo   map[string]bool // 已撤单待重挂的市场
	lastMids      map[string]decimal.Decimal
}

// New 创建策略。token 的方向（统一 quote 或统一 base）在此校验，
// 不满足视为配置错误。
func New(cfg Config, ex exchange.Exchange, reg *market.Registry, log *logger.Logger, alerts *alert.Manager, m *metrics.Metrics) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokenIsQuote, err := reg.TokenIsQuote(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &Strategy{
		cfg:           cfg,
		exchange:      ex,
		registry:      reg,
		log:           log,
		alerts:        alerts,
		metrics:       m,
		tokenIsQuote:  tokenIsQuote,
		sellBudgets:   make(map[string]decimal.Decimal),
		buyBudgets:    make(map[string]decimal.Decimal),
		tokenBalances: make(map[string]decimal.Decimal),
		refreshTimes:  make(map[string]time.Time),
		pendingRedo:   make(map[string]bool),
		lastMids:      make(map[string]decimal.Decimal),
	}, nil
}

// Start 启动前清理上一会话遗留的挂单，避免其占用余额干扰预算分配。
func (s *Strategy) Start() {
	for _, o := range s.exchange.OpenOrders() {
		if err := s.exchange.Cancel(o.Market, o.ID); err != nil {
			s.log.Warn("cancel restored order failed",
				zap.String("market", o.Market), zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		s.log.Info("cancelled restored order",
			zap.String("market", o.Market), zap.String("order_id", o.ID))
	}
}

// Stop 撤掉当前全部挂单。
func (s *Strategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.exchange.OpenOrders() {
		if err := s.exchange.Cancel(o.Market, o.ID); err != nil {
			s.log.Warn("cancel on stop failed",
				zap.String("market", o.Market), zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	s.ready = false
}

// Ready 返回策略是否已完成预算分配进入交易状态。
func (s *Strategy) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Tick 执行一个决策周期。由引擎串行调用。
func (s *Strategy) Tick(now time.Time) {
	start := time.Now()
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.metrics.TickProcessed(time.Since(start).Seconds())
	}()

	if !s.ready {
		if !s.exchange.Ready() {
			s.log.Warn("exchange not ready, skip tick", zap.String("exchange", s.exchange.Name()))
			return
		}
		// 等遗留挂单撤干净后再做一次性预算分配
		if len(s.exchange.OpenOrders()) > 0 {
			return
		}
		if err := s.createBudgetAllocation(); err != nil {
			s.log.Warn("budget allocation deferred", zap.Error(err))
			return
		}
		s.ready = true
		s.log.Info("strategy ready, trading started", zap.String("exchange", s.exchange.Name()))
		if s.alerts != nil {
			_ = s.alerts.SendInfo("trading started", map[string]interface{}{
				"exchange": s.exchange.Name(),
				"markets":  s.registry.Pairs(),
			})
		}
	}

	proposals := s.createBaseProposals()
	s.metrics.ProposalsCreated(len(proposals))
	s.tokenBalances = s.adjustedAvailableBalances()
	if s.cfg.OrderOptimizationEnabled {
		s.applyOrderOptimization(proposals)
	}
	if s.cfg.InventorySkewEnabled {
		s.applyInventorySkew(proposals)
	}
	s.applyBudgetConstraint(proposals)
	s.cancelActiveOrders(proposals, now)
	s.executeOrdersProposal(proposals, now)
	s.exportBudgetMetrics()
}

// OnOrderFilled 成交回报：在市场内部做预算迁移，买入消耗 quote 预算、
// 增加 base 预算，卖出反之。预算不会为负。
func (s *Strategy) OnOrderFilled(f exchange.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	side := "sell"
	if f.IsBuy {
		side = "buy"
		s.buyBudgets[f.Market] = clampZero(s.budget(s.buyBudgets, f.Market).Sub(f.Amount.Mul(f.Price)))
		s.sellBudgets[f.Market] = s.budget(s.sellBudgets, f.Market).Add(f.Amount)
	} else {
		s.sellBudgets[f.Market] = clampZero(s.budget(s.sellBudgets, f.Market).Sub(f.Amount))
		s.buyBudgets[f.Market] = s.budget(s.buyBudgets, f.Market).Add(f.Amount.Mul(f.Price))
	}
	s.metrics.OrderFilled(side)
	s.log.LogTrade("filled", map[string]interface{}{
		"order_id": f.OrderID,
		"market":   f.Market,
		"side":     side,
		"price":    f.Price.String(),
		"amount":   f.Amount.String(),
	})
	if s.alerts != nil {
		_ = s.alerts.SendInfo("order filled", map[string]interface{}{
			"market": f.Market,
			"side":   side,
			"price":  f.Price.String(),
			"amount": f.Amount.String(),
		})
	}
}

// UpdateQuotingParams 热更新报价参数（价差、上限、容忍带）。
func (s *Strategy) UpdateQuotingParams(spread, maxSpread, tolerance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Spread = spread
	s.cfg.MaxSpread = maxSpread
	s.cfg.OrderRefreshTolerancePct = tolerance
	s.log.Info("quoting params updated",
		zap.String("spread", spread.String()),
		zap.String("max_spread", maxSpread.String()),
		zap.String("tolerance", tolerance.String()))
}

// budget 读取预算，缺省为零。
func (s *Strategy) budget(m map[string]decimal.Decimal, pair string) decimal.Decimal {
	if v, ok := m[pair]; ok {
		return v
	}
	return decimal.Zero
}

// activeOrders 返回指定市场的当前挂单。
func (s *Strategy) activeOrders(pair string) []exchange.Order {
	var out []exchange.Order
	for _, o := range s.exchange.OpenOrders() {
		if o.Market == pair {
			out = append(out, o)
		}
	}
	return out
}

func (s *Strategy) exportBudgetMetrics() {
	for _, pair := range s.registry.Pairs() {
		buy, _ := s.buyBudgets[pair].Float64()
		sell, _ := s.sellBudgets[pair].Float64()
		s.metrics.SetBudgets(pair, buy, sell)
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
