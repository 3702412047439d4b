package broker

import "strings"

// Instrument 为证券基础信息。
type Instrument struct {
	Code string
	Name string
}

// IsST 依据证券简称判断是否为ST/风险警示股。
func (i Instrument) IsST() bool {
	return strings.Contains(strings.ToUpper(i.Name), "ST")
}

// Position 为归一化后的持仓。外部终端返回的字段名随版本漂移，
// 适配层在边界处一次性转换，核心逻辑只认这个结构。
type Position struct {
	Code         string
	Volume       int64
	UsableVolume int64
	AvgCost      float64
}

// Asset 为资金账户快照。
type Asset struct {
	Cash       float64
	TotalAsset float64
}

// OrderSide 表示委托方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderRequest 描述一笔限价委托。
type OrderRequest struct {
	Code   string
	Side   OrderSide
	Price  float64
	Volume int64
	Remark string
}
