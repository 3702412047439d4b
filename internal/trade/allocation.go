package trade

import (
	"errors"
	"math"

	"firstboard/internal/config"
)

// ErrInsufficientCash 表示扣除持仓占用与预留后已无可分配资金，
// 本轮计划整体放弃，不做部分下单。
var ErrInsufficientCash = errors.New("trade: 可用资金不足")

// Allocation 描述一次等权资金分配。
type Allocation struct {
	UsableCash float64
	PerStock   float64
	Count      int
}

// PlanAllocation 计算候选股的等权买入预算：
// 先从账户现金中扣除非候选持仓占用的市值，再预留安全垫与预估佣金，
// 剩余部分在 n 只候选之间平分。不做任何加权。
func PlanAllocation(cash, nonCandidateValue float64, n int, cfg config.TradingConfig) (Allocation, error) {
	if n <= 0 {
		return Allocation{}, errors.New("trade: 候选数量必须大于0")
	}

	usable := (cash - nonCandidateValue) * (1 - cfg.SafetyMargin - cfg.TransactionCostRate)
	if usable <= 0 {
		return Allocation{}, ErrInsufficientCash
	}

	return Allocation{
		UsableCash: usable,
		PerStock:   usable / float64(n),
		Count:      n,
	}, nil
}

// VolumeFor 把单股预算换算成手数取整后的股数。
// 预算或价格无效、或不足一手时返回 0。
func VolumeFor(budget, price float64, lotSize int) int64 {
	if budget <= 0 || price <= 0 || lotSize <= 0 {
		return 0
	}
	lots := math.Floor(budget / price / float64(lotSize))
	return int64(lots) * int64(lotSize)
}
