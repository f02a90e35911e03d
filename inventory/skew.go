// Package inventory 提供库存倾斜比例计算：根据 base 资产占比相对目标的
// 偏离，给出买/卖双边的数量乘数。
package inventory

// BidAskRatios 买卖双边的数量乘数，二者之和恒为 2（饱和区间内）。
type BidAskRatios struct {
	BidRatio float64
	AskRatio float64
}

// CalculateBidAskRatios 由当前 base/quote 持仓、价格、目标 base 占比和
// 容忍区间（base 数量）计算倾斜乘数。超配一侧被压缩、低配一侧被放大，
// 在区间边界处饱和到 [0, 2]。
//
// baseRange 必须为正；组合总值或 baseRange 非正时返回 {0, 0}。
func CalculateBidAskRatios(baseAmount, quoteAmount, price, targetBasePct, baseRange float64) BidAskRatios {
	totalValue := baseAmount*price + quoteAmount
	if totalValue <= 0 || baseRange <= 0 {
		return BidAskRatios{}
	}

	baseValue := baseAmount * price
	rangeValue := baseRange * price
	if half := totalValue * 0.5; rangeValue > half {
		rangeValue = half
	}
	targetValue := totalValue * targetBasePct
	leftLimit := targetValue - rangeValue
	if leftLimit < 0 {
		leftLimit = 0
	}
	rightLimit := targetValue + rangeValue

	var bid float64
	if baseValue < targetValue {
		// 低于目标：bid 在 [1, 2] 区间内随缺口放大
		left := interpolate(leftLimit, 0, targetValue, 0.5, baseValue)
		bid = interpolate(0, 2, 0.5, 1, left)
	} else {
		// 高于目标：bid 在 [0, 1] 区间内随超配压缩
		right := interpolate(targetValue, 0.5, rightLimit, 1, baseValue)
		bid = interpolate(0.5, 1, 1, 0, right)
	}
	return BidAskRatios{BidRatio: bid, AskRatio: 2 - bid}
}

// interpolate 两点线性插值，x 超出 [x1, x2] 时在端点饱和。
func interpolate(x1, y1, x2, y2, x float64) float64 {
	if x <= x1 {
		return y1
	}
	if x >= x2 {
		return y2
	}
	return y1 + (x-x1)*(y2-y1)/(x2-x1)
}
