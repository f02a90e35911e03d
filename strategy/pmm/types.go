package pmm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mmaker-go/market"
)

// PriceSize 一侧报价的价格与数量。
type PriceSize struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func (ps PriceSize) String() string {
	return fmt.Sprintf("%s @ %s", ps.Size, ps.Price)
}

// Proposal 单个市场在一个周期内的候选买卖报价。
// 每周期新建，逐阶段就地修改，周期结束即丢弃。
type Proposal struct {
	Market market.Market
	Buy    PriceSize
	Sell   PriceSize
}

func (p *Proposal) Base() string  { return p.Market.BaseAsset }
func (p *Proposal) Quote() string { return p.Market.QuoteAsset }

func (p *Proposal) String() string {
	return fmt.Sprintf("%s buy[%s] sell[%s]", p.Market.Pair, p.Buy, p.Sell)
}
