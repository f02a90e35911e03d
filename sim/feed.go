// Package sim 提供纸面交易所的模拟行情源：中间价按随机游走演化，
// 每步重建一个对称的多档盘口。用于离线运行与联调。
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mmaker-go/exchange"
	"mmaker-go/infrastructure/logger"
	"mmaker-go/market"
)

// FeedConfig 模拟行情配置。
type FeedConfig struct {
	Interval      time.Duration      // 行情推送间隔
	VolatilityPct float64            // 每步价格变动幅度（小数，0.001 = 0.1%）
	Seed          int64              // 随机种子，0 用当前时间
	InitialMids   map[string]float64 // 每个市场的初始中间价
	Levels        int                // 每侧档位数
}

// Feed 随机游走行情源。
type Feed struct {
	cfg   FeedConfig
	paper *exchange.PaperExchange
	reg   *market.Registry
	log   *logger.Logger
	rng   *rand.Rand
	mids  map[string]float64
}

// NewFeed 创建行情源，要求每个市场都有正的初始中间价。
func NewFeed(cfg FeedConfig, paper *exchange.PaperExchange, reg *market.Registry, log *logger.Logger) (*Feed, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.VolatilityPct <= 0 {
		cfg.VolatilityPct = 0.0005
	}
	if cfg.Levels <= 0 {
		cfg.Levels = 5
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mids := make(map[string]float64, reg.Len())
	for _, pair := range reg.Pairs() {
		mid := cfg.InitialMids[pair]
		if mid <= 0 {
			return nil, fmt.Errorf("market %s needs a positive initial mid", pair)
		}
		mids[pair] = mid
	}
	return &Feed{
		cfg:   cfg,
		paper: paper,
		reg:   reg,
		log:   log,
		rng:   rand.New(rand.NewSource(seed)),
		mids:  mids,
	}, nil
}

// Run 推送行情直到 ctx 取消。首次推送后标记交易所就绪。
func (f *Feed) Run(ctx context.Context) {
	f.Step()
	f.paper.SetReady(true)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Step()
		}
	}
}

// Step 演化一步并重建所有市场的盘口。
func (f *Feed) Step() {
	for _, pair := range f.reg.Pairs() {
		mid := f.mids[pair] * (1 + f.cfg.VolatilityPct*f.rng.NormFloat64())
		if mid <= 0 {
			mid = f.mids[pair]
		}
		f.mids[pair] = mid

		bids := make([]exchange.Level, 0, f.cfg.Levels)
		asks := make([]exchange.Level, 0, f.cfg.Levels)
		for i := 1; i <= f.cfg.Levels; i++ {
			offset := mid * 0.0002 * float64(i)
			size := decimal.NewFromFloat(0.5 + f.rng.Float64()*4)
			bids = append(bids, exchange.Level{Price: decimal.NewFromFloat(mid - offset), Size: size})
			asks = append(asks, exchange.Level{Price: decimal.NewFromFloat(mid + offset), Size: size})
		}
		if err := f.paper.UpdateBook(pair, bids, asks); err != nil {
			f.log.Warn("update simulated book failed", zap.String("market", pair), zap.Error(err))
		}
	}
}

// Mid 返回某市场当前模拟中间价。
func (f *Feed) Mid(pair string) float64 { return f.mids[pair] }
