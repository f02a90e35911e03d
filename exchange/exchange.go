// Package exchange 定义策略核心与交易所连接层之间的边界接口。
// 真实的 REST/WebSocket 连接器在本仓库之外实现；这里只约定策略每个
// 周期需要的同步查询与订单动作，并提供一个可用于测试/模拟的纸面实现。
package exchange

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Order 交易所侧报告的挂单。对策略核心只读。
type Order struct {
	ID        string
	Market    string
	IsBuy     bool
	Price     decimal.Decimal
	Size      decimal.Decimal
	CreatedAt time.Time // 恢复的历史订单可能为零值
}

// Age 返回订单已存在的时长；创建时间未知时返回 -1。
func (o Order) Age(now time.Time) time.Duration {
	if o.CreatedAt.IsZero() {
		return -1
	}
	return now.Sub(o.CreatedAt)
}

// Fill 成交回报。
type Fill struct {
	Market  string
	OrderID string
	IsBuy   bool
	Price   decimal.Decimal
	Amount  decimal.Decimal
}

// FillHandler 成交回调，可能在任意 goroutine 上触发。
type FillHandler func(Fill)

var (
	ErrNoLiquidity  = errors.New("no liquidity on requested side")
	ErrUnknownPair  = errors.New("unknown trading pair")
	ErrUnknownOrder = errors.New("unknown order")
)

// Exchange 是策略消费的连接器接口（每市场行情 + 量化规则 + 余额 + 订单动作）。
// 所有调用从策略角度都是同步的；超时与重试属于连接器层。
type Exchange interface {
	Name() string
	Ready() bool

	// 行情
	GetMidPrice(market string) (decimal.Decimal, error)
	GetPrice(market string, isBuy bool) (decimal.Decimal, error)
	GetPriceForVolume(market string, isBuy bool, volume decimal.Decimal) (decimal.Decimal, error)
	GetNextPrice(market string, isBuy bool, price decimal.Decimal) (decimal.Decimal, error)

	// 量化规则
	QuantizeOrderPrice(market string, price decimal.Decimal) decimal.Decimal
	QuantizeOrderAmount(market string, amount decimal.Decimal) decimal.Decimal
	OrderPriceQuantum(market string, price decimal.Decimal) decimal.Decimal

	// 余额
	GetAvailableBalance(asset string) decimal.Decimal
	GetAllBalances() map[string]decimal.Decimal

	// 订单
	OpenOrders() []Order
	Buy(market string, size, price decimal.Decimal) (string, error)
	Sell(market string, size, price decimal.Decimal) (string, error)
	Cancel(market, orderID string) error

	// 费率
	EstimateFeePct(isBuy bool) decimal.Decimal
}
