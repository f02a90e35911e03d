package pmm

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mmaker-go/exchange"
	"mmaker-go/infrastructure/alert"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testConfig() Config {
	return Config{
		Token:                    "USDT",
		OrderAmount:              dec("100"),
		Spread:                   dec("0.01"),
		OrderRefreshTime:         30 * time.Second,
		OrderRefreshTolerancePct: dec("0.002"),
		MaxOrderAge:              30 * time.Minute,
		MaxAvailableTokenAmount:  dec("-1"),
	}
}

// newTestStrategy 构建单市场 ETH-USDT 策略：中间价 2000，
// 余额 10000 USDT + 2 ETH。
func newTestStrategy(t *testing.T, cfg Config) (*Strategy, *exchange.PaperExchange) {
	t.Helper()
	paper := exchange.NewPaper(exchange.PaperConfig{
		Name: "paper",
		Rules: map[string]exchange.PairRule{
			"ETH-USDT": {TickSize: dec("0.01"), StepSize: dec("0.001")},
		},
	})
	setBook(t, paper, "2000")
	paper.SeedBalance("USDT", dec("10000"))
	paper.SeedBalance("ETH", dec("2"))
	paper.SetReady(true)

	reg, err := market.NewRegistry([]string{"ETH-USDT"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	s, err := New(cfg, paper, reg, testLogger(t), nil, nil)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	paper.SetFillHandler(s.OnOrderFilled)
	return s, paper
}

// setBook 以给定中间价铺一个不会穿过 ±1% 报价的盘口。
func setBook(t *testing.T, p *exchange.PaperExchange, mid string) {
	t.Helper()
	m := dec(mid)
	err := p.UpdateBook("ETH-USDT",
		[]exchange.Level{
			{Price: m.Sub(dec("1")), Size: dec("2")},
			{Price: m.Sub(dec("2")), Size: dec("5")},
			{Price: m.Sub(dec("5")), Size: dec("10")},
		},
		[]exchange.Level{
			{Price: m.Add(dec("1")), Size: dec("2")},
			{Price: m.Add(dec("2")), Size: dec("5")},
			{Price: m.Add(dec("5")), Size: dec("10")},
		})
	if err != nil {
		t.Fatalf("update book: %v", err)
	}
}

func ordersBySide(orders []exchange.Order) (buy, sell *exchange.Order) {
	for i := range orders {
		if orders[i].IsBuy {
			buy = &orders[i]
		} else {
			sell = &orders[i]
		}
	}
	return buy, sell
}

func TestFirstTickPlacesSymmetricQuotes(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	now := time.Now()
	s.Tick(now)

	if !s.Ready() {
		t.Fatal("strategy must be ready after first tick")
	}
	orders := paper.OpenOrders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	buy, sell := ordersBySide(orders)
	if buy == nil || sell == nil {
		t.Fatalf("expected one order per side, got %+v", orders)
	}
	if !buy.Price.Equal(dec("1980")) {
		t.Fatalf("expected buy at 1980, got %s", buy.Price)
	}
	if !sell.Price.Equal(dec("2020")) {
		t.Fatalf("expected sell at 2020, got %s", sell.Price)
	}
	// 100 USDT 折算后向下取整到 step
	if !buy.Size.Equal(dec("0.05")) {
		t.Fatalf("expected buy size 0.050, got %s", buy.Size)
	}
	if !sell.Size.Equal(dec("0.049")) {
		t.Fatalf("expected sell size 0.049, got %s", sell.Size)
	}
}

func TestBudgetAllocationSplitsPortfolio(t *testing.T) {
	s, _ := newTestStrategy(t, testConfig())
	s.Tick(time.Now())

	// 组合总值 10000 + 2*2000 = 14000，单市场独占份额
	if got := s.budget(s.sellBudgets, "ETH-USDT"); !got.Equal(dec("2")) {
		t.Fatalf("expected sell budget 2, got %s", got)
	}
	if got := s.budget(s.buyBudgets, "ETH-USDT"); !got.Equal(dec("10000")) {
		t.Fatalf("expected buy budget 10000, got %s", got)
	}
}

func TestQuotesKeptWithinTolerance(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	now := time.Now()
	s.Tick(now)
	before := paper.OpenOrders()

	// 中间价微移，新报价仍在 0.2% 容忍带内
	setBook(t, paper, "2001")
	s.Tick(now.Add(31 * time.Second))

	after := paper.OpenOrders()
	if len(after) != 2 {
		t.Fatalf("expected orders kept, got %d", len(after))
	}
	ids := map[string]bool{}
	for _, o := range before {
		ids[o.ID] = true
	}
	for _, o := range after {
		if !ids[o.ID] {
			t.Fatalf("order %s was replaced inside tolerance band", o.ID)
		}
	}
}

func TestQuotesRefreshedOutsideTolerance(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	now := time.Now()
	s.Tick(now)

	// 中间价大幅上移，撤单并在结算延迟后重挂
	setBook(t, paper, "2010")
	t1 := now.Add(31 * time.Second)
	s.Tick(t1)
	if n := len(paper.OpenOrders()); n != 0 {
		t.Fatalf("expected all orders cancelled, got %d", n)
	}

	s.Tick(t1.Add(50 * time.Millisecond))
	if n := len(paper.OpenOrders()); n != 0 {
		t.Fatalf("must not re-place before settle delay, got %d", n)
	}

	s.Tick(t1.Add(200 * time.Millisecond))
	orders := paper.OpenOrders()
	if len(orders) != 2 {
		t.Fatalf("expected re-placed orders, got %d", len(orders))
	}
	buy, sell := ordersBySide(orders)
	if !buy.Price.Equal(dec("1989.9")) {
		t.Fatalf("expected buy at 1989.9, got %s", buy.Price)
	}
	if !sell.Price.Equal(dec("2030.1")) {
		t.Fatalf("expected sell at 2030.1, got %s", sell.Price)
	}
}

func TestMaxOrderAgeOverridesTolerance(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	now := time.Now()
	s.Tick(now)
	before := paper.OpenOrders()
	if len(before) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(before))
	}

	// 行情未变（容忍带内），但订单年龄超限必须重挂
	t1 := now.Add(31 * time.Minute)
	s.Tick(t1)
	if n := len(paper.OpenOrders()); n != 0 {
		t.Fatalf("expected aged orders cancelled, got %d", n)
	}
	s.Tick(t1.Add(200 * time.Millisecond))
	after := paper.OpenOrders()
	if len(after) != 2 {
		t.Fatalf("expected fresh orders, got %d", len(after))
	}
	for _, o := range after {
		for _, old := range before {
			if o.ID == old.ID {
				t.Fatalf("order %s survived past max age", o.ID)
			}
		}
	}
}

func TestFillMovesBudgetsBetweenSides(t *testing.T) {
	s, _ := newTestStrategy(t, testConfig())
	s.Tick(time.Now())

	s.OnOrderFilled(exchange.Fill{
		Market: "ETH-USDT", OrderID: "x", IsBuy: true,
		Price: dec("1980"), Amount: dec("0.05"),
	})
	// 买入：quote 预算减少名义额，base 预算增加成交量
	if got := s.budget(s.buyBudgets, "ETH-USDT"); !got.Equal(dec("9901")) {
		t.Fatalf("expected buy budget 9901, got %s", got)
	}
	if got := s.budget(s.sellBudgets, "ETH-USDT"); !got.Equal(dec("2.05")) {
		t.Fatalf("expected sell budget 2.05, got %s", got)
	}

	s.OnOrderFilled(exchange.Fill{
		Market: "ETH-USDT", OrderID: "y", IsBuy: false,
		Price: dec("2020"), Amount: dec("0.05"),
	})
	if got := s.budget(s.sellBudgets, "ETH-USDT"); !got.Equal(dec("2")) {
		t.Fatalf("expected sell budget back to 2, got %s", got)
	}
	if got := s.budget(s.buyBudgets, "ETH-USDT"); !got.Equal(dec("10002")) {
		t.Fatalf("expected buy budget 10002, got %s", got)
	}
}

func TestRestoredOrdersCancelledBeforeTrading(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	paper.RestoreOrder(exchange.Order{
		Market: "ETH-USDT", IsBuy: true, Price: dec("1900"), Size: dec("0.1"),
	})

	s.Start()
	if n := len(paper.OpenOrders()); n != 0 {
		t.Fatalf("expected restored orders cancelled on start, got %d", n)
	}
	s.Tick(time.Now())
	if !s.Ready() {
		t.Fatal("strategy must become ready after cleanup")
	}
}

func TestBudgetConstraintClampsAndIsIdempotent(t *testing.T) {
	s, _ := newTestStrategy(t, testConfig())
	s.tokenBalances = map[string]decimal.Decimal{
		"USDT": dec("50"),
		"ETH":  dec("0.01"),
	}
	m, _ := s.registry.Get("ETH-USDT")
	proposals := []*Proposal{{
		Market: m,
		Buy:    PriceSize{Price: dec("1980"), Size: dec("0.05")},
		Sell:   PriceSize{Price: dec("2020"), Size: dec("0.049")},
	}}

	s.applyBudgetConstraint(proposals)
	if !proposals[0].Sell.Size.Equal(dec("0.01")) {
		t.Fatalf("expected sell clamped to 0.01, got %s", proposals[0].Sell.Size)
	}
	// 50 / (1980 * 1.001) = 0.02522... 取整到 0.025
	if !proposals[0].Buy.Size.Equal(dec("0.025")) {
		t.Fatalf("expected buy clamped to 0.025, got %s", proposals[0].Buy.Size)
	}

	before := *proposals[0]
	s.applyBudgetConstraint(proposals)
	if !proposals[0].Buy.Size.Equal(before.Buy.Size) || !proposals[0].Sell.Size.Equal(before.Sell.Size) {
		t.Fatalf("constraint not idempotent: %+v vs %+v", before, *proposals[0])
	}
}

func TestOptimizerNoopWithZeroDepthAndNoFailsafe(t *testing.T) {
	cfg := testConfig()
	cfg.OrderOptimizationEnabled = true
	cfg.OrderOptimizationDepthPct = decimal.Zero
	s, _ := newTestStrategy(t, cfg)
	s.lastMids["ETH-USDT"] = dec("2000")

	m, _ := s.registry.Get("ETH-USDT")
	proposals := []*Proposal{{
		Market: m,
		Buy:    PriceSize{Price: dec("1980"), Size: dec("0.05")},
		Sell:   PriceSize{Price: dec("2020"), Size: dec("0.049")},
	}}
	s.applyOrderOptimization(proposals)
	if !proposals[0].Buy.Price.Equal(dec("1980")) || !proposals[0].Sell.Price.Equal(dec("2020")) {
		t.Fatalf("optimizer must be a no-op, got %+v", *proposals[0])
	}
}

func TestOptimizerJoinsBookBeyondIgnoredDepth(t *testing.T) {
	cfg := testConfig()
	cfg.OrderOptimizationEnabled = true
	// baseOrderSize(2000) = 0.05，深度 0.05*400 = 20 个 base
	cfg.OrderOptimizationDepthPct = dec("400")
	s, paper := newTestStrategy(t, cfg)
	s.lastMids["ETH-USDT"] = dec("2000")

	// 铺一个在 1970/2035 有足够深度的盘口
	if err := paper.UpdateBook("ETH-USDT",
		[]exchange.Level{
			{Price: dec("1999"), Size: dec("2")},
			{Price: dec("1998"), Size: dec("5")},
			{Price: dec("1995"), Size: dec("10")},
			{Price: dec("1970"), Size: dec("20")},
		},
		[]exchange.Level{
			{Price: dec("2001"), Size: dec("2")},
			{Price: dec("2002"), Size: dec("5")},
			{Price: dec("2005"), Size: dec("10")},
			{Price: dec("2035"), Size: dec("20")},
		}); err != nil {
		t.Fatalf("update book: %v", err)
	}

	m, _ := s.registry.Get("ETH-USDT")
	proposals := []*Proposal{{
		Market: m,
		Buy:    PriceSize{Price: dec("1980"), Size: dec("0.05")},
		Sell:   PriceSize{Price: dec("2020"), Size: dec("0.049")},
	}}
	s.applyOrderOptimization(proposals)
	// 越过 17 个量后的档位是 1970/2035，贴到其内侧一个 tick
	if !proposals[0].Buy.Price.Equal(dec("1970.01")) {
		t.Fatalf("expected buy at 1970.01, got %s", proposals[0].Buy.Price)
	}
	if !proposals[0].Sell.Price.Equal(dec("2034.99")) {
		t.Fatalf("expected sell at 2034.99, got %s", proposals[0].Sell.Price)
	}
}

func TestOptimizerCrossingGuardOnTightBook(t *testing.T) {
	cfg := testConfig()
	cfg.OrderOptimizationEnabled = true
	cfg.OrderOptimizationDepthPct = dec("1000")
	cfg.OrderOptimizationFailsafe = true
	s, paper := newTestStrategy(t, cfg)
	s.lastMids["ETH-USDT"] = dec("2000.01")

	// 两侧只剩一档的极窄盘口：买卖 failsafe 都会落到 2000.01
	if err := paper.UpdateBook("ETH-USDT",
		[]exchange.Level{{Price: dec("2000"), Size: dec("1")}},
		[]exchange.Level{{Price: dec("2000.02"), Size: dec("1")}}); err != nil {
		t.Fatalf("update book: %v", err)
	}

	m, _ := s.registry.Get("ETH-USDT")
	proposals := []*Proposal{{
		Market: m,
		Buy:    PriceSize{Price: dec("1980"), Size: dec("0.05")},
		Sell:   PriceSize{Price: dec("2020"), Size: dec("0.049")},
	}}
	s.applyOrderOptimization(proposals)

	if !proposals[0].Buy.Price.LessThan(proposals[0].Sell.Price) {
		t.Fatalf("buy %s must stay below sell %s",
			proposals[0].Buy.Price, proposals[0].Sell.Price)
	}
	if !proposals[0].Sell.Price.Equal(dec("2000.01")) {
		t.Fatalf("expected sell at 2000.01, got %s", proposals[0].Sell.Price)
	}
	if !proposals[0].Buy.Price.Equal(dec("2000")) {
		t.Fatalf("expected buy stepped back one tick to 2000, got %s", proposals[0].Buy.Price)
	}
}

func TestAlertOnSkippedMarket(t *testing.T) {
	s, paper := newTestStrategy(t, testConfig())
	mock := alert.NewMockChannel("mock")
	s.alerts = alert.NewManager([]alert.Channel{mock}, time.Minute)

	now := time.Now()
	s.Tick(now)

	// 清空盘口后该市场本周期被跳过并触发告警
	if err := paper.UpdateBook("ETH-USDT", nil, nil); err != nil {
		t.Fatalf("update book: %v", err)
	}
	s.Tick(now.Add(time.Second))

	warned := false
	for _, a := range mock.GetAlerts() {
		if a.Level == "WARNING" && strings.Contains(a.Message, "ETH-USDT") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning for the skipped market, got %+v", mock.GetAlerts())
	}
}

func TestAlertOnRejectedOrder(t *testing.T) {
	s, _ := newTestStrategy(t, testConfig())
	mock := alert.NewMockChannel("mock")
	s.alerts = alert.NewManager([]alert.Channel{mock}, time.Minute)

	// 交易所不认识的市场，下单必然被拒
	proposals := []*Proposal{{
		Market: market.Market{Pair: "FOO-BAR", BaseAsset: "FOO", QuoteAsset: "BAR"},
		Buy:    PriceSize{Price: dec("10"), Size: dec("1")},
	}}
	s.pendingRedo["FOO-BAR"] = true
	s.executeOrdersProposal(proposals, time.Now())

	alerts := mock.GetAlerts()
	if len(alerts) != 1 || alerts[0].Level != "ERROR" {
		t.Fatalf("expected one ERROR alert for the rejected order, got %+v", alerts)
	}
	if alerts[0].Fields["market"] != "FOO-BAR" || alerts[0].Fields["side"] != "buy" {
		t.Fatalf("unexpected alert fields %+v", alerts[0].Fields)
	}
}

func TestInventorySkewShiftsSizes(t *testing.T) {
	cfg := testConfig()
	cfg.InventorySkewEnabled = true
	cfg.InventoryTargetBasePct = dec("0.5")
	cfg.InventoryRangeMultiplier = dec("1")
	s, _ := newTestStrategy(t, cfg)
	s.lastMids["ETH-USDT"] = dec("2000")
	// base 价值 4000 vs 总值 14000：远低于 50% 目标
	s.sellBudgets["ETH-USDT"] = dec("2")
	s.buyBudgets["ETH-USDT"] = dec("10000")

	m, _ := s.registry.Get("ETH-USDT")
	proposals := []*Proposal{{
		Market: m,
		Buy:    PriceSize{Price: dec("1980"), Size: dec("0.05")},
		Sell:   PriceSize{Price: dec("2020"), Size: dec("0.049")},
	}}
	s.applyInventorySkew(proposals)
	if !proposals[0].Buy.Size.GreaterThan(dec("0.05")) {
		t.Fatalf("expected buy size amplified, got %s", proposals[0].Buy.Size)
	}
	if !proposals[0].Sell.Size.LessThan(dec("0.049")) {
		t.Fatalf("expected sell size compressed, got %s", proposals[0].Sell.Size)
	}
}

func TestTokenOrientationRejected(t *testing.T) {
	reg, err := market.NewRegistry([]string{"ETH-USDT", "ETH-BTC"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := testConfig()
	cfg.Token = "USDT" // 既不是统一 quote 也不是统一 base
	paper := exchange.NewPaper(exchange.PaperConfig{Rules: map[string]exchange.PairRule{
		"ETH-USDT": {}, "ETH-BTC": {},
	}})
	if _, err := New(cfg, paper, reg, testLogger(t), nil, nil); err == nil {
		t.Fatal("expected orientation error")
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Token = "" },
		func(c *Config) { c.OrderAmount = decimal.Zero },
		func(c *Config) { c.Spread = decimal.Zero },
		func(c *Config) { c.Spread = dec("1") },
		func(c *Config) { c.MaxSpread = dec("1.5") },
		func(c *Config) { c.OrderRefreshTime = 0 },
		func(c *Config) { c.MaxOrderAge = 0 },
		func(c *Config) { c.InventorySkewEnabled = true; c.InventoryTargetBasePct = dec("1.2") },
		func(c *Config) {
			c.InventorySkewEnabled = true
			c.InventoryTargetBasePct = dec("0.5")
			c.InventoryRangeMultiplier = decimal.Zero
		},
		func(c *Config) { c.OrderOptimizationEnabled = true; c.OrderOptimizationDepthPct = dec("-1") },
	}
	for i, mutate := range bad {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
