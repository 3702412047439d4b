package market

import "math"

// LimitParams 集中管理涨停判定相关阈值，全部来自配置。
type LimitParams struct {
	RatioMain    float64 // 主板涨停幅度
	RatioGrowth  float64 // 创业板/科创板涨停幅度
	RatioBeijing float64 // 北交所涨停幅度
	RatioST      float64 // ST股涨停幅度
	TolClosed    float64 // 已收盘K线的容差
	TolIntraday  float64 // 盘中未完成K线的容差
}

// LimitRatio 返回指定股票适用的涨停幅度。ST 标记由调用方依据名称判断后传入。
func (p LimitParams) LimitRatio(code string, st bool) float64 {
	if st {
		return p.RatioST
	}
	switch BoardOf(code) {
	case BoardGrowth:
		return p.RatioGrowth
	case BoardBeijing:
		return p.RatioBeijing
	default:
		return p.RatioMain
	}
}

// IsLimitUp 判断一根K线是否收于涨停。
// intraday 为 true 表示K线尚未走完，跳过收盘价==最高价的封板检查并放宽容差，
// 因为盘中价格仍在变动，未必恰好落在交易所四舍五入后的理论涨停价上。
func (p LimitParams) IsLimitUp(code string, st bool, bar Bar, intraday bool) bool {
	if bar.PreClose <= 0 {
		return false
	}

	if !intraday && math.Abs(bar.Close-bar.High) > 0.01 {
		return false
	}

	tol := p.TolClosed
	if intraday {
		tol = p.TolIntraday
	}

	pct := (bar.Close - bar.PreClose) / bar.PreClose
	return pct >= p.LimitRatio(code, st)-tol
}

// IsLimitUpQuote 依据实时行情判断当前是否封板，用于止盈时的"涨停不卖"判定。
func (p LimitParams) IsLimitUpQuote(code string, st bool, q Quote) bool {
	if q.Last <= 0 || q.PreClose <= 0 {
		return false
	}
	bar := Bar{
		Close:    q.Last,
		High:     q.High,
		PreClose: q.PreClose,
	}
	return p.IsLimitUp(code, st, bar, true)
}

// NextLimitPrice 计算次日涨停价：昨收 ×（1+涨停幅度），保留两位小数。
func (p LimitParams) NextLimitPrice(code string, st bool, lastClose float64) float64 {
	if lastClose <= 0 {
		return 0
	}
	price := lastClose * (1 + p.LimitRatio(code, st))
	return math.Round(price*100) / 100
}
