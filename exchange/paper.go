package exchange

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PairRule 交易对的量化规则（来自 exchangeInfo 的精度约束）。
type PairRule struct {
	TickSize decimal.Decimal // 价格最小增量
	StepSize decimal.Decimal // 数量最小增量
}

// PaperConfig 纸面交易所配置。
type PaperConfig struct {
	Name    string
	Rules   map[string]PairRule
	BuyFee  decimal.Decimal // 买侧费率（小数，0.001 = 0.1%），零值用默认
	SellFee decimal.Decimal
}

var defaultFeePct = decimal.NewFromFloat(0.001)

// PaperExchange 实现 Exchange：内存盘口 + 余额 + 挂单撮合。
// 用于测试与离线模拟；撮合规则刻意简单——盘口更新后穿价的挂单
// 以其挂单价全额成交。
type PaperExchange struct {
	name    string
	buyFee  decimal.Decimal
	sellFee decimal.Decimal

	mu       sync.RWMutex
	ready    bool
	rules    map[string]PairRule
	books    map[string]*depthBook
	balances map[string]decimal.Decimal // 总余额
	orders   map[string]Order
	onFill   FillHandler
}

// NewPaper 创建纸面交易所。
func NewPaper(cfg PaperConfig) *PaperExchange {
	name := cfg.Name
	if name == "" {
		name = "paper"
	}
	buyFee, sellFee := cfg.BuyFee, cfg.SellFee
	if buyFee.LessThanOrEqual(decimal.Zero) {
		buyFee = defaultFeePct
	}
	if sellFee.LessThanOrEqual(decimal.Zero) {
		sellFee = defaultFeePct
	}
	rules := make(map[string]PairRule, len(cfg.Rules))
	books := make(map[string]*depthBook, len(cfg.Rules))
	for pair, rule := range cfg.Rules {
		rules[pair] = rule
		books[pair] = newDepthBook(nil, nil)
	}
	return &PaperExchange{
		name:     name,
		buyFee:   buyFee,
		sellFee:  sellFee,
		rules:    rules,
		books:    books,
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]Order),
	}
}

func (p *PaperExchange) Name() string { return p.name }

func (p *PaperExchange) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// SetReady 标记交易所就绪。
func (p *PaperExchange) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
}

// SetFillHandler 注册成交回调。
func (p *PaperExchange) SetFillHandler(h FillHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill = h
}

// SeedBalance 设置某资产总余额。
func (p *PaperExchange) SeedBalance(asset string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[strings.ToUpper(asset)] = amount
}

// RestoreOrder 注入一笔历史会话遗留的挂单（用于启动清理路径）。
func (p *PaperExchange) RestoreOrder(o Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.ID == "" {
		o.ID = p.newOrderID()
	}
	p.orders[o.ID] = o
}

// UpdateBook 整体替换某市场盘口并撮合穿价挂单。
func (p *PaperExchange) UpdateBook(market string, bids, asks []Level) error {
	p.mu.Lock()
	book, ok := p.books[market]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownPair
	}
	book.replace(bids, asks)
	fills := p.matchLocked(market)
	handler := p.onFill
	p.mu.Unlock()

	if handler != nil {
		for _, f := range fills {
			handler(f)
		}
	}
	return nil
}

// matchLocked 以挂单价成交所有穿价订单，返回成交列表。调用方持有 p.mu。
func (p *PaperExchange) matchLocked(market string) []Fill {
	book := p.books[market]
	bestBid, okB := book.bestBid()
	bestAsk, okA := book.bestAsk()
	var fills []Fill
	for id, o := range p.orders {
		if o.Market != market {
			continue
		}
		crossed := (o.IsBuy && okA && o.Price.GreaterThanOrEqual(bestAsk)) ||
			(!o.IsBuy && okB && o.Price.LessThanOrEqual(bestBid))
		if !crossed {
			continue
		}
		delete(p.orders, id)
		p.settleLocked(o)
		fills = append(fills, Fill{
			Market:  o.Market,
			OrderID: o.ID,
			IsBuy:   o.IsBuy,
			Price:   o.Price,
			Amount:  o.Size,
		})
	}
	return fills
}

// settleLocked 按成交调整总余额，费用从收到的资产中扣除。
func (p *PaperExchange) settleLocked(o Order) {
	base, quote := splitPair(o.Market)
	notional := o.Size.Mul(o.Price)
	if o.IsBuy {
		fee := o.Size.Mul(p.buyFee)
		p.balances[quote] = p.balance(quote).Sub(notional)
		p.balances[base] = p.balance(base).Add(o.Size.Sub(fee))
	} else {
		fee := notional.Mul(p.sellFee)
		p.balances[base] = p.balance(base).Sub(o.Size)
		p.balances[quote] = p.balance(quote).Add(notional.Sub(fee))
	}
}

func (p *PaperExchange) balance(asset string) decimal.Decimal {
	if b, ok := p.balances[asset]; ok {
		return b
	}
	return decimal.Zero
}

func (p *PaperExchange) GetMidPrice(market string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	book, ok := p.books[market]
	if !ok {
		return decimal.Zero, ErrUnknownPair
	}
	mid, ok := book.mid()
	if !ok {
		return decimal.Zero, ErrNoLiquidity
	}
	return mid, nil
}

func (p *PaperExchange) GetPrice(market string, isBuy bool) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	book, ok := p.books[market]
	if !ok {
		return decimal.Zero, ErrUnknownPair
	}
	var price decimal.Decimal
	var have bool
	if isBuy {
		price, have = book.bestAsk()
	} else {
		price, have = book.bestBid()
	}
	if !have {
		return decimal.Zero, ErrNoLiquidity
	}
	return price, nil
}

func (p *PaperExchange) GetPriceForVolume(market string, isBuy bool, volume decimal.Decimal) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	book, ok := p.books[market]
	if !ok {
		return decimal.Zero, ErrUnknownPair
	}
	price, have := book.priceForVolume(isBuy, volume)
	if !have {
		return decimal.Zero, ErrNoLiquidity
	}
	return price, nil
}

func (p *PaperExchange) GetNextPrice(market string, isBuy bool, price decimal.Decimal) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	book, ok := p.books[market]
	if !ok {
		return decimal.Zero, ErrUnknownPair
	}
	next, have := book.nextPrice(isBuy, price)
	if !have {
		return decimal.Zero, ErrNoLiquidity
	}
	return next, nil
}

// QuantizeOrderPrice 将价格向下取整到 tick。
func (p *PaperExchange) QuantizeOrderPrice(market string, price decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	rule, ok := p.rules[market]
	p.mu.RUnlock()
	if !ok || rule.TickSize.LessThanOrEqual(decimal.Zero) {
		return price
	}
	return price.Div(rule.TickSize).Floor().Mul(rule.TickSize)
}

// QuantizeOrderAmount 将数量向下取整到 step。
func (p *PaperExchange) QuantizeOrderAmount(market string, amount decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	rule, ok := p.rules[market]
	p.mu.RUnlock()
	if !ok || rule.StepSize.LessThanOrEqual(decimal.Zero) {
		return amount
	}
	return amount.Div(rule.StepSize).Floor().Mul(rule.StepSize)
}

// OrderPriceQuantum 返回该市场的价格增量。price 参数保留给按价格分档的交易所。
func (p *PaperExchange) OrderPriceQuantum(market string, _ decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if rule, ok := p.rules[market]; ok && rule.TickSize.IsPositive() {
		return rule.TickSize
	}
	return decimal.New(1, -8)
}

// GetAvailableBalance 返回扣除挂单占用后的可用余额。
func (p *PaperExchange) GetAvailableBalance(asset string) decimal.Decimal {
	asset = strings.ToUpper(asset)
	p.mu.RLock()
	defer p.mu.RUnlock()
	avail := p.balance(asset)
	for _, o := range p.orders {
		base, quote := splitPair(o.Market)
		if o.IsBuy && quote == asset {
			avail = avail.Sub(o.Size.Mul(o.Price))
		} else if !o.IsBuy && base == asset {
			avail = avail.Sub(o.Size)
		}
	}
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// GetAllBalances 返回全部总余额（拷贝）。
func (p *PaperExchange) GetAllBalances() map[string]decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out
}

// OpenOrders 返回当前挂单（拷贝）。
func (p *PaperExchange) OpenOrders() []Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	return out
}

func (p *PaperExchange) Buy(market string, size, price decimal.Decimal) (string, error) {
	return p.place(market, true, size, price)
}

func (p *PaperExchange) Sell(market string, size, price decimal.Decimal) (string, error) {
	return p.place(market, false, size, price)
}

func (p *PaperExchange) place(market string, isBuy bool, size, price decimal.Decimal) (string, error) {
	if size.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("invalid order size=%s price=%s", size, price)
	}
	p.mu.Lock()
	if _, ok := p.books[market]; !ok {
		p.mu.Unlock()
		return "", ErrUnknownPair
	}
	o := Order{
		ID:        p.newOrderID(),
		Market:    market,
		IsBuy:     isBuy,
		Price:     price,
		Size:      size,
		CreatedAt: time.Now(),
	}
	p.orders[o.ID] = o
	fills := p.matchLocked(market)
	handler := p.onFill
	p.mu.Unlock()

	// 下单瞬时穿价的成交异步回调，调用方可能正持有自己的锁
	if handler != nil && len(fills) > 0 {
		go func() {
			for _, f := range fills {
				handler(f)
			}
		}()
	}
	return o.ID, nil
}

func (p *PaperExchange) Cancel(market, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok || o.Market != market {
		return ErrUnknownOrder
	}
	delete(p.orders, orderID)
	return nil
}

func (p *PaperExchange) EstimateFeePct(isBuy bool) decimal.Decimal {
	if isBuy {
		return p.buyFee
	}
	return p.sellFee
}

// newOrderID 生成带微秒时间戳后缀的订单 ID，订单年龄可从 ID 恢复。
func (p *PaperExchange) newOrderID() string {
	return fmt.Sprintf("%s-%s-%016d", p.name, uuid.NewString()[:8], time.Now().UnixMicro())
}

func splitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "-", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}
