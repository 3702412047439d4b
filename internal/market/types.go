package market

import "time"

// Bar 代表一根已落地的日线K线，写入后不再变更。
type Bar struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	PreClose float64
	Amount   float64
}

// Quote 为单只股票的实时行情切片（经适配层归一化）。
type Quote struct {
	Code      string
	Last      float64
	High      float64
	PreClose  float64
	Turnover  float64
	BidPrices []float64
	BidVolume []float64
	Time      time.Time
}

// Bid1Amount 返回买一档封单金额（买一价 × 买一量 × 每手股数）。
// 任一字段缺失时返回 0，由调用方决定放行或剔除。
func (q Quote) Bid1Amount(lotSize int) float64 {
	if len(q.BidPrices) == 0 || len(q.BidVolume) == 0 {
		return 0
	}
	if q.BidPrices[0] <= 0 || q.BidVolume[0] <= 0 {
		return 0
	}
	return q.BidPrices[0] * q.BidVolume[0] * float64(lotSize)
}
