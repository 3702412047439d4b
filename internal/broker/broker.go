package broker

import (
	"context"
	"errors"

	"firstboard/internal/market"
)

var (
	// ErrDisconnected 表示终端链路中断，所有交易与查询操作应暂停，
	// 等待重连窗口。调用方必须将其与"空结果"区分开。
	ErrDisconnected = errors.New("broker: 终端连接中断")

	// ErrOrderRejected 表示终端受理了请求但拒绝了委托。
	ErrOrderRejected = errors.New("broker: 委托被拒绝")
)

// Broker 抽象行情/交易终端。全部调用可失败，实现方负责超时与单次重试。
type Broker interface {
	// ListSector 返回板块内全部证券（含名称，用于ST剔除）。
	ListSector(ctx context.Context, sector string) ([]Instrument, error)
	// Suspensions 批量查询最近交易日的停牌标记。
	Suspensions(ctx context.Context, codes []string) (map[string]bool, error)
	// History 返回最近 count 根日线，按时间升序。
	History(ctx context.Context, code string, count int) ([]market.Bar, error)
	// LastClose 返回最近一个交易日收盘价。
	LastClose(ctx context.Context, code string) (float64, error)
	// FullTick 批量获取实时行情切片。
	FullTick(ctx context.Context, codes []string) (map[string]market.Quote, error)
	// FloatMarketCap 返回流通市值；数据缺失返回错误，由调用方决定放行策略。
	FloatMarketCap(ctx context.Context, code string) (float64, error)
	// Asset 返回资金账户快照。
	Asset(ctx context.Context) (Asset, error)
	// Positions 返回当前全部持仓。
	Positions(ctx context.Context) ([]Position, error)
	// PlaceOrder 提交限价委托，返回终端委托号；只有返回成功才算受理。
	PlaceOrder(ctx context.Context, req OrderRequest) (int64, error)
	// Connected 报告当前链路状态。
	Connected() bool
}
