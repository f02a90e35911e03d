package exchange

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Level 单个价格档位。
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// depthBook 维护排序后的买卖档位：bids 降序，asks 升序。
type depthBook struct {
	bids []Level
	asks []Level
}

func newDepthBook(bids, asks []Level) *depthBook {
	b := &depthBook{}
	b.replace(bids, asks)
	return b
}

func (b *depthBook) replace(bids, asks []Level) {
	b.bids = compact(bids)
	b.asks = compact(asks)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price.GreaterThan(b.bids[j].Price) })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price.LessThan(b.asks[j].Price) })
}

func compact(levels []Level) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if l.Price.IsPositive() && l.Size.IsPositive() {
			out = append(out, l)
		}
	}
	return out
}

func (b *depthBook) bestBid() (decimal.Decimal, bool) {
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price, true
}

func (b *depthBook) bestAsk() (decimal.Decimal, bool) {
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price, true
}

func (b *depthBook) mid() (decimal.Decimal, bool) {
	bid, okB := b.bestBid()
	ask, okA := b.bestAsk()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// priceForVolume 从盘口顶部按累计数量走 volume 后到达的档位价格。
// isBuy=true 沿 ask 侧向上走，false 沿 bid 侧向下走。
// volume 为零或为负时直接返回最优档。
func (b *depthBook) priceForVolume(isBuy bool, volume decimal.Decimal) (decimal.Decimal, bool) {
	side := b.bids
	if isBuy {
		side = b.asks
	}
	if len(side) == 0 {
		return decimal.Zero, false
	}
	cum := decimal.Zero
	for _, l := range side {
		cum = cum.Add(l.Size)
		if cum.GreaterThanOrEqual(volume) {
			return l.Price, true
		}
	}
	// 深度不足时返回最深一档
	return side[len(side)-1].Price, true
}

// nextPrice 返回给定价格旁边最近的真实档位：
// isBuy=false 为不高于 price 的最高 bid，isBuy=true 为不低于 price 的最低 ask。
// 不存在这样的档位时返回该侧最优档。
func (b *depthBook) nextPrice(isBuy bool, price decimal.Decimal) (decimal.Decimal, bool) {
	if isBuy {
		if len(b.asks) == 0 {
			return decimal.Zero, false
		}
		for _, l := range b.asks {
			if l.Price.GreaterThanOrEqual(price) {
				return l.Price, true
			}
		}
		return b.asks[0].Price, true
	}
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	for _, l := range b.bids {
		if l.Price.LessThanOrEqual(price) {
			return l.Price, true
		}
	}
	return b.bids[0].Price, true
}
