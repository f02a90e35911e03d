// sim 离线回放工具：用随机游走行情驱动策略若干周期，
// 结束后输出成交统计与最终状态，便于快速验证参数。
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"mmaker-go/config"
	"mmaker-go/exchange"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/market"
	"mmaker-go/sim"
	"mmaker-go/strategy/pmm"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	steps := flag.Int("steps", 1000, "模拟周期数")
	seed := flag.Int64("seed", 1, "随机种子")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logg, err := logger.New(logger.Config{Level: "warn", Outputs: []string{"stdout"}, Format: "console"})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = logg.Close() }()

	reg, err := market.NewRegistry(cfg.Strategy.Markets)
	if err != nil {
		log.Fatalf("解析市场配置失败: %v", err)
	}
	paper := exchange.NewPaper(cfg.PaperConfig())
	for asset, amount := range cfg.Exchange.Balances {
		paper.SeedBalance(asset, decimal.NewFromFloat(amount))
	}

	strat, err := pmm.New(cfg.StrategyParams(), paper, reg, logg, nil, nil)
	if err != nil {
		log.Fatalf("初始化策略失败: %v", err)
	}

	var fills int
	var volume decimal.Decimal
	paper.SetFillHandler(func(f exchange.Fill) {
		fills++
		volume = volume.Add(f.Amount.Mul(f.Price))
		strat.OnOrderFilled(f)
	})

	mids := make(map[string]float64, len(cfg.Exchange.Pairs))
	for pair, pc := range cfg.Exchange.Pairs {
		mids[pair] = pc.InitialMid
	}
	feed, err := sim.NewFeed(sim.FeedConfig{
		VolatilityPct: cfg.Exchange.Feed.VolatilityPct / 100,
		Seed:          *seed,
		Levels:        cfg.Exchange.Feed.Levels,
		InitialMids:   mids,
	}, paper, reg, logg)
	if err != nil {
		log.Fatalf("初始化行情源失败: %v", err)
	}

	feed.Step()
	paper.SetReady(true)
	strat.Start()

	tick := cfg.Engine.TickInterval
	now := time.Now()
	for i := 0; i < *steps; i++ {
		feed.Step()
		strat.Tick(now)
		now = now.Add(tick)
	}
	strat.Stop()

	fmt.Printf("simulated %d steps (%s per step)\n", *steps, tick)
	fmt.Printf("fills: %d, traded notional: %s\n", fills, volume.StringFixed(2))
	fmt.Println()
	fmt.Println(strat.FormatStatus(now))
	fmt.Println("final balances:")
	for asset, amount := range paper.GetAllBalances() {
		fmt.Printf("  %-8s %s\n", asset, amount.StringFixed(6))
	}
}
