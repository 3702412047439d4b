package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"firstboard/internal/broker"
	"firstboard/internal/candidate"
	"firstboard/internal/config"
	"firstboard/internal/journal"
	"firstboard/internal/market"
	"firstboard/internal/ordercache"
)

// Planner 负责夜间委托与早盘补单两段式买入。
// 夜间一次性按涨停价挂单，不在本轮内重试；
// 失败的票留给次日早盘核对补单，以持仓为准重新分配资金。
type Planner struct {
	broker  broker.Broker
	cache   *ordercache.Cache
	journal *journal.Service
	limits  market.LimitParams
	cfg     config.TradingConfig
	logger  *zap.Logger
}

// Result 汇总一轮买入的处理计数。
type Result struct {
	Submitted int
	Skipped   int
	Failed    int
}

// timeNowUTC 便于测试固定时钟。
var timeNowUTC = func() time.Time { return time.Now().UTC() }

// NewPlanner 构建买入计划器。journal 允许为 nil（纯选股模式）。
func NewPlanner(
	b broker.Broker,
	cache *ordercache.Cache,
	jnl *journal.Service,
	limits market.LimitParams,
	cfg config.TradingConfig,
	logger *zap.Logger,
) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		broker:  b,
		cache:   cache,
		journal: jnl,
		limits:  limits,
		cfg:     cfg,
		logger:  logger,
	}
}

// PlaceNightOrders 对当日候选执行夜间挂单。
// 每只候选按前收盘价推算次日涨停价，等权预算取整到一手后提交限价买单。
// 单票失败只影响该票，整轮资金不足才整体放弃。
func (p *Planner) PlaceNightOrders(ctx context.Context, list candidate.List) (Result, error) {
	if len(list.Codes) == 0 {
		p.logger.Info("今日无候选，跳过夜间挂单", zap.String("date", list.Date))
		return Result{}, nil
	}

	alloc, err := p.allocate(ctx, list.Codes)
	if err != nil {
		return Result{}, err
	}

	p.logger.Info("夜间挂单开始",
		zap.String("date", list.Date),
		zap.Int("candidates", len(list.Codes)),
		zap.Float64("usable_cash", alloc.UsableCash),
		zap.Float64("per_stock", alloc.PerStock),
	)

	return p.submitBuys(ctx, "night", list.Date, list.Codes, alloc.PerStock), nil
}

// Reconcile 早盘核对：以终端持仓为准找出未成交候选，
// 对缺口重新等权分配并补单。已成交或已在缓存中的票不再重复提交。
func (p *Planner) Reconcile(ctx context.Context, list candidate.List) (Result, error) {
	if len(list.Codes) == 0 {
		return Result{}, nil
	}

	positions, err := p.broker.Positions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("查询持仓失败: %w", err)
	}

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		if pos.Volume > 0 {
			held[pos.Code] = true
		}
	}

	unfilled := make([]string, 0, len(list.Codes))
	for _, code := range list.Codes {
		if !held[code] {
			unfilled = append(unfilled, code)
		}
	}

	filled := len(list.Codes) - len(unfilled)
	if len(unfilled) == 0 {
		p.logger.Info("候选已全部成交，早盘无需补单",
			zap.String("date", list.Date),
			zap.Int("filled", filled),
		)
		if p.journal != nil {
			p.journal.RecordMorningCheck(ctx, list.Date, len(list.Codes), nil, 0)
		}
		return Result{}, nil
	}

	alloc, err := p.allocate(ctx, list.Codes)
	if err != nil {
		return Result{}, err
	}
	// 缺口重新平分，不沿用夜间的单股预算
	perStock := alloc.UsableCash / float64(len(unfilled))

	p.logger.Info("早盘补单开始",
		zap.String("date", list.Date),
		zap.Int("filled", filled),
		zap.Strings("unfilled", unfilled),
		zap.Float64("per_stock", perStock),
	)

	result := p.submitBuys(ctx, "morning", list.Date, unfilled, perStock)
	if p.journal != nil {
		p.journal.RecordMorningCheck(ctx, list.Date, len(list.Codes), unfilled, result.Submitted)
	}
	return result, nil
}

// allocate 获取资金与持仓快照并计算等权预算。
// 非候选持仓按成本价估值，成本未知的仓位不计占用。
func (p *Planner) allocate(ctx context.Context, codes []string) (Allocation, error) {
	asset, err := p.broker.Asset(ctx)
	if err != nil {
		return Allocation{}, fmt.Errorf("查询资金失败: %w", err)
	}

	positions, err := p.broker.Positions(ctx)
	if err != nil {
		return Allocation{}, fmt.Errorf("查询持仓失败: %w", err)
	}

	isCandidate := make(map[string]bool, len(codes))
	for _, code := range codes {
		isCandidate[code] = true
	}

	var nonCandidateValue float64
	for _, pos := range positions {
		if pos.Volume <= 0 || pos.AvgCost <= 0 || isCandidate[pos.Code] {
			continue
		}
		nonCandidateValue += pos.AvgCost * float64(pos.Volume)
	}

	alloc, err := PlanAllocation(asset.Cash, nonCandidateValue, len(codes), p.cfg)
	if err != nil {
		if errors.Is(err, ErrInsufficientCash) {
			p.logger.Warn("扣除预留后无可用资金，放弃本轮买入",
				zap.Float64("cash", asset.Cash),
				zap.Float64("non_candidate_value", nonCandidateValue),
			)
		}
		return Allocation{}, err
	}
	return alloc, nil
}

// submitBuys 单遍提交买单：缓存拦截、取价、算量、下单、确认后记缓存。
func (p *Planner) submitBuys(ctx context.Context, stage, date string, codes []string, perStock float64) Result {
	var result Result

	for _, code := range codes {
		placed, err := p.cache.AlreadyPlaced(code, date)
		if err != nil {
			p.logger.Error("查询委托缓存失败，跳过该票", zap.String("code", code), zap.Error(err))
			result.Failed++
			continue
		}
		if placed {
			p.logger.Debug("当日已下过单，跳过", zap.String("code", code))
			result.Skipped++
			continue
		}

		close, err := p.broker.LastClose(ctx, code)
		if err != nil || close <= 0 {
			p.logger.Warn("取前收盘价失败，跳过该票", zap.String("code", code), zap.Error(err))
			result.Failed++
			continue
		}

		price := p.limits.NextLimitPrice(code, false, close)
		volume := VolumeFor(perStock, price, p.cfg.LotSize)
		if volume == 0 {
			p.logger.Info("预算不足一手，跳过",
				zap.String("code", code),
				zap.Float64("budget", perStock),
				zap.Float64("price", price),
			)
			result.Skipped++
			continue
		}

		orderID, err := p.broker.PlaceOrder(ctx, broker.OrderRequest{
			Code:   code,
			Side:   broker.OrderSideBuy,
			Price:  price,
			Volume: volume,
			Remark: "firstboard-" + stage,
		})
		if err != nil {
			p.logger.Error("买入委托失败",
				zap.String("code", code),
				zap.Float64("price", price),
				zap.Int64("volume", volume),
				zap.Error(err),
			)
			if p.journal != nil {
				p.journal.RecordError(ctx, "买入委托失败", err, map[string]interface{}{
					"code": code, "stage": stage,
				})
			}
			result.Failed++
			continue
		}

		// 只有终端确认受理才写缓存，失败的票次日仍可补单
		if err := p.cache.MarkPlaced(code, date, timeNowUTC()); err != nil {
			p.logger.Error("写入委托缓存失败", zap.String("code", code), zap.Error(err))
		}
		if p.journal != nil {
			p.journal.RecordOrderPlaced(ctx, stage, code, price, volume, orderID)
		}

		p.logger.Info("买入委托已受理",
			zap.String("stage", stage),
			zap.String("code", code),
			zap.Float64("price", price),
			zap.Int64("volume", volume),
			zap.Int64("order_id", orderID),
		)
		result.Submitted++
	}

	return result
}
