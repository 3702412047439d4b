package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"firstboard/internal/broker"
	"firstboard/internal/config"
	"firstboard/internal/journal"
	"firstboard/internal/market"
)

// Watcher 盘中按固定节奏轮询持仓并执行止盈止损。
// 止损无条件触发；止盈在当前封板时暂不卖出，等待开板或次日。
// 订阅集合 = 当日候选 ∪ 当前持仓，由调度器在盘中定期刷新。
type Watcher struct {
	broker  broker.Broker
	journal *journal.Service
	limits  market.LimitParams
	cfg     config.TradingConfig
	logger  *zap.Logger

	mu         sync.Mutex
	candidates map[string]bool
}

// New 构建持仓监控器。journal 允许为 nil。
func New(
	b broker.Broker,
	jnl *journal.Service,
	limits market.LimitParams,
	cfg config.TradingConfig,
	logger *zap.Logger,
) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		broker:     b,
		journal:    jnl,
		limits:     limits,
		cfg:        cfg,
		logger:     logger,
		candidates: make(map[string]bool),
	}
}

// SetCandidates 更新当日候选集合，与持仓合并成订阅列表。
func (w *Watcher) SetCandidates(codes []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.candidates = make(map[string]bool, len(codes))
	for _, code := range codes {
		w.candidates[code] = true
	}
}

// Run 以 interval 为周期执行检查，直到 ctx 取消。
// 链路中断时静默跳过该轮，重连由 broker 层节流。
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("持仓监控启动", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("持仓监控退出")
			return
		case <-ticker.C:
			if err := w.CheckOnce(ctx); err != nil {
				if errors.Is(err, broker.ErrDisconnected) {
					continue
				}
				w.logger.Warn("持仓检查失败", zap.Error(err))
			}
		}
	}
}

// CheckOnce 执行一轮止盈止损检查。
func (w *Watcher) CheckOnce(ctx context.Context) error {
	positions, err := w.broker.Positions(ctx)
	if err != nil {
		return err
	}

	actionable := positions[:0]
	for _, pos := range positions {
		if pos.UsableVolume > 0 && pos.AvgCost > 0 {
			actionable = append(actionable, pos)
		}
	}
	if len(actionable) == 0 {
		return nil
	}

	quotes, err := w.broker.FullTick(ctx, w.subscription(actionable))
	if err != nil {
		return err
	}

	for _, pos := range actionable {
		quote, ok := quotes[pos.Code]
		if !ok || quote.Last <= 0 {
			continue
		}
		w.checkPosition(ctx, pos, quote)
	}
	return nil
}

// subscription 合并候选与持仓代码，排序保证批量行情请求稳定。
func (w *Watcher) subscription(positions []broker.Position) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := make(map[string]bool, len(w.candidates)+len(positions))
	for code := range w.candidates {
		set[code] = true
	}
	for _, pos := range positions {
		set[pos.Code] = true
	}

	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (w *Watcher) checkPosition(ctx context.Context, pos broker.Position, quote market.Quote) {
	profitRate := (quote.Last - pos.AvgCost) / pos.AvgCost

	switch {
	case profitRate <= w.cfg.StopLoss:
		w.sell(ctx, pos, quote.Last, profitRate, "stop_loss")
	case profitRate >= w.cfg.StopProfit:
		if w.limits.IsLimitUpQuote(pos.Code, false, quote) {
			w.logger.Info("触发止盈线但当前涨停，暂不卖出",
				zap.String("code", pos.Code),
				zap.Float64("profit_rate", profitRate),
			)
			return
		}
		w.sell(ctx, pos, quote.Last, profitRate, "stop_profit")
	}
}

// sell 以当前价限价卖出全部可用持仓。
func (w *Watcher) sell(ctx context.Context, pos broker.Position, price, profitRate float64, reason string) {
	w.logger.Info("触发卖出",
		zap.String("code", pos.Code),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Int64("volume", pos.UsableVolume),
		zap.Float64("profit_rate", profitRate),
	)

	orderID, err := w.broker.PlaceOrder(ctx, broker.OrderRequest{
		Code:   pos.Code,
		Side:   broker.OrderSideSell,
		Price:  price,
		Volume: pos.UsableVolume,
		Remark: "firstboard-" + reason,
	})
	if err != nil {
		w.logger.Error("卖出委托失败", zap.String("code", pos.Code), zap.Error(err))
		if w.journal != nil {
			w.journal.RecordError(ctx, "卖出委托失败", err, map[string]interface{}{
				"code": pos.Code, "reason": reason,
			})
		}
		return
	}

	if w.journal != nil {
		w.journal.RecordSell(ctx, pos.Code, reason, price, pos.UsableVolume, profitRate, orderID)
	}
}
