package selector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"firstboard/internal/broker"
	"firstboard/internal/candidate"
	"firstboard/internal/config"
	"firstboard/internal/market"
)

// Selector 实现"首板涨停"选股流水线：
// 基础过滤 → 停牌剔除 → 首板判定 → 回撤检查 → 可选封单/量比筛选。
// 单票失败只剔除该票不中止整轮，整轮级错误（股票池拿不到）才向上返回，
// 由调度器在下个周期重试。
type Selector struct {
	broker   broker.Broker
	limits   market.LimitParams
	universe config.UniverseConfig
	sel      config.SelectionConfig
	lotSize  int
	logger   *zap.Logger
}

// Stats 记录各阶段的筛选计数，用于日志与事件流水。
type Stats struct {
	Universe   int
	BasicPool  int
	FirstBoard int
	Selected   int
}

// New 构建选股器。
func New(
	b broker.Broker,
	limits market.LimitParams,
	universe config.UniverseConfig,
	sel config.SelectionConfig,
	lotSize int,
	logger *zap.Logger,
) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		broker:   b,
		limits:   limits,
		universe: universe,
		sel:      sel,
		lotSize:  lotSize,
		logger:   logger,
	}
}

// Run 执行一轮完整选股并返回当日候选列表。
func (s *Selector) Run(ctx context.Context, date string, now time.Time) (candidate.List, Stats, error) {
	start := time.Now()
	var stats Stats

	instruments, err := s.broker.ListSector(ctx, s.universe.Sector)
	if err != nil {
		return candidate.List{}, stats, fmt.Errorf("获取股票池失败: %w", err)
	}
	stats.Universe = len(instruments)

	pool, stNames := s.filterBasic(instruments)
	stats.BasicPool = len(pool)
	s.logger.Info("基础过滤完成",
		zap.Int("universe", stats.Universe),
		zap.Int("pool", stats.BasicPool),
	)
	if len(pool) == 0 {
		return candidate.NewList(date, nil, now), stats, nil
	}

	pool, err = s.dropSuspended(ctx, pool)
	if err != nil {
		return candidate.List{}, stats, err
	}

	firstBoard, err := s.screenFirstBoard(ctx, pool, stNames)
	if err != nil {
		return candidate.List{}, stats, err
	}
	stats.FirstBoard = len(firstBoard)
	s.logger.Info("首板初筛完成", zap.Int("first_board", stats.FirstBoard))
	if len(firstBoard) == 0 {
		return candidate.NewList(date, nil, now), stats, nil
	}

	selected, histories, err := s.screenDrawdown(ctx, firstBoard, stNames)
	if err != nil {
		return candidate.List{}, stats, err
	}

	if s.sel.EnableSealFilter && len(selected) > 0 {
		selected = s.filterSeal(ctx, selected)
	}
	if s.sel.EnableVolumeRatio && len(selected) > 0 {
		selected = s.filterVolumeRatio(selected, histories)
	}

	sort.Strings(selected)
	stats.Selected = len(selected)

	s.logger.Info("选股完成",
		zap.String("date", date),
		zap.Int("universe", stats.Universe),
		zap.Int("first_board", stats.FirstBoard),
		zap.Int("selected", stats.Selected),
		zap.Strings("codes", selected),
		zap.Duration("elapsed", time.Since(start)),
	)

	return candidate.NewList(date, selected, now), stats, nil
}

// filterBasic 按板块与ST规则剔除，返回保留代码及其ST标记。
func (s *Selector) filterBasic(instruments []broker.Instrument) ([]string, map[string]bool) {
	pool := make([]string, 0, len(instruments))
	stNames := make(map[string]bool)

	for _, inst := range instruments {
		st := inst.IsST()
		if s.universe.ExcludeST && st {
			continue
		}
		switch market.BoardOf(inst.Code) {
		case market.BoardGrowth:
			if s.universe.ExcludeGrowth {
				continue
			}
		case market.BoardBeijing:
			if s.universe.ExcludeBeijing {
				continue
			}
		}
		pool = append(pool, inst.Code)
		stNames[inst.Code] = st
	}
	return pool, stNames
}

func (s *Selector) dropSuspended(ctx context.Context, pool []string) ([]string, error) {
	suspended, err := s.broker.Suspensions(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("查询停牌信息失败: %w", err)
	}

	kept := pool[:0]
	for _, code := range pool {
		if suspended[code] {
			continue
		}
		kept = append(kept, code)
	}
	return kept, nil
}

// screenFirstBoard 并发拉取近3根日线，挑出"T日涨停且T-1日未涨停"的首板股。
// 单票拉取失败只跳过该票。
func (s *Selector) screenFirstBoard(ctx context.Context, pool []string, stNames map[string]bool) ([]string, error) {
	var (
		mu      sync.Mutex
		matched []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sel.Concurrency)

	for _, code := range pool {
		code := code
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bars, err := s.broker.History(gctx, code, 3)
			if err != nil {
				s.logger.Debug("拉取3日行情失败，跳过", zap.String("code", code), zap.Error(err))
				return nil
			}
			if len(bars) < 3 {
				return nil
			}

			st := stNames[code]
			barT := bars[len(bars)-1]
			barPrev := bars[len(bars)-2]
			if s.limits.IsLimitUp(code, st, barT, false) && !s.limits.IsLimitUp(code, st, barPrev, false) {
				mu.Lock()
				matched = append(matched, code)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matched, nil
}

// screenDrawdown 对首板股拉取长周期日线做回撤检查，
// 同时把历史留给后续量比筛选复用。
func (s *Selector) screenDrawdown(ctx context.Context, codes []string, stNames map[string]bool) ([]string, map[string][]market.Bar, error) {
	var (
		mu        sync.Mutex
		passed    []string
		histories = make(map[string][]market.Bar, len(codes))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sel.Concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bars, err := s.broker.History(gctx, code, s.sel.HistoryCount)
			if err != nil {
				s.logger.Warn("拉取回撤历史失败，剔除", zap.String("code", code), zap.Error(err))
				return nil
			}

			if !market.PassesDrawdown(bars, s.sel.DrawdownLimit, s.sel.DrawdownWindow) {
				s.logger.Debug("回撤超限，剔除", zap.String("code", code))
				return nil
			}

			mu.Lock()
			passed = append(passed, code)
			histories[code] = bars
			mu.Unlock()

			s.logger.Info("入选", zap.String("code", code), zap.Bool("st", stNames[code]))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return passed, histories, nil
}

// filterSeal 检查封单强度：买一封单金额需同时达到流通市值占比阈值
// 与当日成交额倍数阈值。行情或市值数据缺失时放行（fail open），
// 宁可多留一只候选也不因数据缺口漏掉真首板。
func (s *Selector) filterSeal(ctx context.Context, codes []string) []string {
	quotes, err := s.broker.FullTick(ctx, codes)
	if err != nil {
		s.logger.Warn("封单筛选取行情失败，跳过该筛选", zap.Error(err))
		return codes
	}

	kept := make([]string, 0, len(codes))
	for _, code := range codes {
		quote, ok := quotes[code]
		if !ok {
			kept = append(kept, code)
			continue
		}

		sealAmount := quote.Bid1Amount(s.lotSize)
		if sealAmount <= 0 {
			kept = append(kept, code)
			continue
		}

		floatCap, err := s.broker.FloatMarketCap(ctx, code)
		if err != nil || floatCap <= 0 {
			kept = append(kept, code)
			continue
		}

		if sealAmount < s.sel.SealCircRatio*floatCap {
			s.logger.Debug("封单占流通市值不足，剔除", zap.String("code", code))
			continue
		}
		if quote.Turnover > 0 && sealAmount < s.sel.SealTurnoverRatio*quote.Turnover {
			s.logger.Debug("封单占成交额倍数不足，剔除", zap.String("code", code))
			continue
		}
		kept = append(kept, code)
	}
	return kept
}

// filterVolumeRatio 量比筛选：涨停日成交额需达到此前5日均额的倍数阈值。
// 历史不足时放行。
func (s *Selector) filterVolumeRatio(codes []string, histories map[string][]market.Bar) []string {
	const smaPeriod = 5

	kept := make([]string, 0, len(codes))
	for _, code := range codes {
		bars := histories[code]
		if len(bars) < smaPeriod+1 {
			kept = append(kept, code)
			continue
		}

		amounts := make([]float64, 0, len(bars)-1)
		for _, bar := range bars[:len(bars)-1] {
			amounts = append(amounts, bar.Amount)
		}

		sma := talib.Sma(amounts, smaPeriod)
		avg := sma[len(sma)-1]
		today := bars[len(bars)-1].Amount
		if avg > 0 && today < s.sel.MinVolumeRatio*avg {
			s.logger.Debug("量比不足，剔除",
				zap.String("code", code),
				zap.Float64("today", today),
				zap.Float64("avg5", avg),
			)
			continue
		}
		kept = append(kept, code)
	}
	return kept
}
