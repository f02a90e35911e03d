package pmm

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mmaker-go/exchange"
)

// cancelActiveOrders 判定每个市场是否需要撤掉现有挂单：
// 任一挂单超过最大年龄立即撤（不看容忍带）；否则在刷新时点到期且
// 新报价落在容忍带外时撤。撤单后标记待重挂并给一个短结算延迟。
func (s *Strategy) cancelActiveOrders(proposals []*Proposal, now time.Time) {
	for _, p := range proposals {
		pair := p.Market.Pair
		orders := s.activeOrders(pair)
		if len(orders) == 0 {
			continue
		}

		reason := ""
		for _, o := range orders {
			if age := orderAge(o, now); age >= 0 && age > s.cfg.MaxOrderAge {
				reason = "max_age"
				break
			}
		}
		if reason == "" {
			if s.refreshTimes[pair].After(now) {
				continue
			}
			if s.withinTolerance(orders, p) {
				continue
			}
			reason = "refresh"
		}

		for _, o := range orders {
			if err := s.exchange.Cancel(pair, o.ID); err != nil {
				s.log.Warn("cancel order failed",
					zap.String("market", pair), zap.String("order_id", o.ID), zap.Error(err))
				continue
			}
			s.metrics.OrderCancelled()
			s.log.LogOrder("cancelled", o.ID, map[string]interface{}{
				"market": pair,
				"reason": reason,
			})
		}
		s.pendingRedo[pair] = true
		s.refreshTimes[pair] = now.Add(cancelSettleDelay)
	}
}

// withinTolerance 判断现有挂单与新报价是否足够接近。任一侧新报价
// 数量归零、或价格偏离超过容忍带都视为不在带内。容忍带为负表示禁用。
func (s *Strategy) withinTolerance(orders []exchange.Order, p *Proposal) bool {
	if s.cfg.OrderRefreshTolerancePct.IsNegative() {
		return false
	}
	for _, o := range orders {
		want := p.Sell
		if o.IsBuy {
			want = p.Buy
		}
		if !want.Size.IsPositive() || !o.Price.IsPositive() {
			return false
		}
		deviation := want.Price.Sub(o.Price).Abs().Div(o.Price)
		if deviation.GreaterThan(s.cfg.OrderRefreshTolerancePct) {
			return false
		}
	}
	return true
}

// executeOrdersProposal 对刷新时点已到、且处于待重挂或空仓状态的市场
// 下出新报价，成功后推进刷新时点。数量为零的一侧跳过。
func (s *Strategy) executeOrdersProposal(proposals []*Proposal, now time.Time) {
	for _, p := range proposals {
		pair := p.Market.Pair
		if s.refreshTimes[pair].After(now) {
			continue
		}
		if !s.pendingRedo[pair] && len(s.activeOrders(pair)) > 0 {
			continue
		}
		delete(s.pendingRedo, pair)

		placed := false
		if p.Buy.Size.IsPositive() && p.Buy.Price.IsPositive() {
			if id, err := s.exchange.Buy(pair, p.Buy.Size, p.Buy.Price); err != nil {
				s.log.Error("place buy order failed", zap.String("market", pair), zap.Error(err))
				s.alertRejected(pair, "buy", err)
			} else {
				placed = true
				s.metrics.OrderPlaced("buy")
				s.logPlaced(pair, id, true, p.Buy)
			}
		}
		if p.Sell.Size.IsPositive() && p.Sell.Price.IsPositive() {
			if id, err := s.exchange.Sell(pair, p.Sell.Size, p.Sell.Price); err != nil {
				s.log.Error("place sell order failed", zap.String("market", pair), zap.Error(err))
				s.alertRejected(pair, "sell", err)
			} else {
				placed = true
				s.metrics.OrderPlaced("sell")
				s.logPlaced(pair, id, false, p.Sell)
			}
		}
		if placed {
			s.refreshTimes[pair] = now.Add(s.cfg.OrderRefreshTime)
		}
	}
}

func (s *Strategy) alertRejected(pair, side string, err error) {
	if s.alerts == nil {
		return
	}
	_ = s.alerts.SendError("order rejected", map[string]interface{}{
		"market": pair,
		"side":   side,
		"error":  err.Error(),
	})
}

func (s *Strategy) logPlaced(pair, id string, isBuy bool, ps PriceSize) {
	side := "sell"
	if isBuy {
		side = "buy"
	}
	fields := map[string]interface{}{
		"market": pair,
		"side":   side,
		"price":  ps.Price.String(),
		"size":   ps.Size.String(),
	}
	if mid, ok := s.lastMids[pair]; ok && mid.IsPositive() {
		fields["spread"] = mid.Sub(ps.Price).Abs().Div(mid).StringFixed(6)
	}
	s.log.LogOrder("placed", id, fields)
}

// orderAge 返回挂单年龄。创建时间未知时尝试解析 ID 末段的微秒时间戳，
// 仍无法判定则返回 -1，该挂单不会因年龄被撤。
func orderAge(o exchange.Order, now time.Time) time.Duration {
	if age := o.Age(now); age >= 0 {
		return age
	}
	idx := strings.LastIndexByte(o.ID, '-')
	if idx < 0 || idx+1 >= len(o.ID) {
		return -1
	}
	us, err := strconv.ParseInt(o.ID[idx+1:], 10, 64)
	if err != nil || us <= 0 {
		return -1
	}
	created := time.UnixMicro(us)
	if created.After(now) {
		return -1
	}
	return now.Sub(created)
}
