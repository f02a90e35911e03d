// mmaker 是做市引擎的主入口：加载配置，装配交易所、策略与时钟引擎，
// 并负责信号处理、配置热更新与优雅退出。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mmaker-go/config"
	"mmaker-go/exchange"
	"mmaker-go/infrastructure/alert"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/internal/engine"
	"mmaker-go/market"
	"mmaker-go/metrics"
	"mmaker-go/sim"
	"mmaker-go/strategy/pmm"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logg, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = logg.Close() }()

	var mtr *metrics.Metrics
	if cfg.Metrics.Enabled {
		mtr = metrics.New("mmaker")
		srv := mtr.StartServer(cfg.Metrics.Addr)
		defer func() { _ = srv.Close() }()
		logg.Info("metrics server started", zap.String("addr", cfg.Metrics.Addr))
	}

	var alerts *alert.Manager
	if cfg.Alerts.Enabled {
		channels := []alert.Channel{alert.NewLogChannel("log", logg)}
		if cfg.Alerts.WebhookURL != "" {
			channels = append(channels, alert.NewWebhookChannel("webhook", cfg.Alerts.WebhookURL))
		}
		alerts = alert.NewManager(channels, cfg.Alerts.ThrottleInterval)
	}

	reg, err := market.NewRegistry(cfg.Strategy.Markets)
	if err != nil {
		logg.Fatal("解析市场配置失败", zap.Error(err))
	}

	paper := newPaperExchange(cfg)
	strat, err := pmm.New(cfg.StrategyParams(), paper, reg, logg, alerts, mtr)
	if err != nil {
		logg.Fatal("初始化策略失败", zap.Error(err))
	}
	paper.SetFillHandler(strat.OnOrderFilled)

	eng, err := engine.New(engine.Config{
		TickInterval:         cfg.Engine.TickInterval,
		StatusReportInterval: cfg.Engine.StatusReportInterval,
	}, strat, logg)
	if err != nil {
		logg.Fatal("初始化引擎失败", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 模拟行情源：首次推送后交易所转入就绪
	feed, err := sim.NewFeed(sim.FeedConfig{
		Interval:      cfg.Exchange.Feed.Interval,
		VolatilityPct: cfg.Exchange.Feed.VolatilityPct / 100,
		Seed:          cfg.Exchange.Feed.Seed,
		Levels:        cfg.Exchange.Feed.Levels,
		InitialMids:   initialMids(cfg),
	}, paper, reg, logg)
	if err != nil {
		logg.Fatal("初始化行情源失败", zap.Error(err))
	}
	go feed.Run(ctx)

	if err := eng.Start(ctx); err != nil {
		logg.Fatal("启动引擎失败", zap.Error(err))
	}

	// 配置热更新：只应用可变的报价参数
	watcher := &config.Watcher{Path: *cfgPath, Cooldown: 2 * time.Second}
	go func() {
		err := watcher.Start(ctx, func(newCfg config.AppConfig) {
			params := newCfg.StrategyParams()
			if err := params.Validate(); err != nil {
				logg.Warn("忽略非法的新配置", zap.Error(err))
				return
			}
			strat.UpdateQuotingParams(params.Spread, params.MaxSpread, params.OrderRefreshTolerancePct)
		})
		if err != nil && ctx.Err() == nil {
			logg.Warn("配置监听退出", zap.Error(err))
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logg.Debug("systemd notify skipped", zap.Error(err))
	}
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logg.Info("收到退出信号", zap.String("signal", sig.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if err := eng.Stop(); err != nil {
		logg.Error("停止引擎失败", zap.Error(err))
	}
}

func newPaperExchange(cfg config.AppConfig) *exchange.PaperExchange {
	paper := exchange.NewPaper(cfg.PaperConfig())
	for asset, amount := range cfg.Exchange.Balances {
		paper.SeedBalance(asset, decimal.NewFromFloat(amount))
	}
	return paper
}

func initialMids(cfg config.AppConfig) map[string]float64 {
	mids := make(map[string]float64, len(cfg.Exchange.Pairs))
	for pair, pc := range cfg.Exchange.Pairs {
		mids[pair] = pc.InitialMid
	}
	return mids
}
