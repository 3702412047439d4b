package market

// MaxDrawdown 计算因果口径下的最大回撤：对每一天，
// 回撤 =（截至当日的最高价滚动峰值 − 当日最低价）/ 峰值，取全窗口最大值。
// 不使用"全局最低在全局最高之后"的事后口径，因为价格只能相对已出现的高点回落。
func MaxDrawdown(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}

	rollingMax := bars[0].High
	maxDD := 0.0
	for _, bar := range bars {
		if bar.High > rollingMax {
			rollingMax = bar.High
		}
		if rollingMax <= 0 {
			continue
		}
		dd := (rollingMax - bar.Low) / rollingMax
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// PassesDrawdown 检查涨停前的历史回撤是否可接受。
// history 为包含最近涨停日在内的日线序列；涨停日本身不参与回撤计算。
// 剔除涨停日后不足 minBars 根时视为风险未知，直接拒绝（fail closed）。
// 边界策略固定为：回撤严格小于 limit 通过，等于或大于均拒绝。
func PassesDrawdown(history []Bar, limit float64, minBars int) bool {
	if len(history) < 2 {
		return false
	}

	trailing := history[:len(history)-1]
	if len(trailing) < minBars {
		return false
	}

	return MaxDrawdown(trailing) < limit
}
