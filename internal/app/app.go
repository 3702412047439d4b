package app

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
	"firstboard/internal/monitor"
	"firstboard/internal/ordercache"
	"firstboard/internal/selector"
	"firstboard/internal/store"
	"firstboard/internal/trade"
)

// App 聚合核心依赖并驱动系统生命周期：
// 收盘后选股、夜间挂单、早盘补单三个定时任务由调度器触发，
// 盘中止盈止损监控在独立 goroutine 中按秒级节奏运行。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store

	broker   broker.Broker
	selector *selector.Selector
	planner  *trade.Planner
	watcher  *monitor.Watcher
	cache    *ordercache.Cache
	journal  *journal.Service

	tradingEnabled bool
}

// New 创建 App 实例并完成依赖装配。
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	accountID := config.ResolveAccountID(cfg.Trading)
	tradingEnabled := accountID != ""
	if !tradingEnabled {
		logger.Warn("未配置资金账号，交易动作已禁用，仅执行选股")
	}

	var b broker.Broker
	switch cfg.Gateway.DataSource {
	case "synthetic":
		logger.Info("使用离线模拟数据源")
		b = broker.NewSynthetic(1, logger)
	default:
		b = broker.NewGateway(cfg.Gateway, accountID, logger)
	}

	limits := market.LimitParams{
		RatioMain:    cfg.Limit.RatioMain,
		RatioGrowth:  cfg.Limit.RatioGrowth,
		RatioBeijing: cfg.Limit.RatioBeijing,
		RatioST:      cfg.Limit.RatioST,
		TolClosed:    cfg.Limit.TolClosed,
		TolIntraday:  cfg.Limit.TolIntraday,
	}

	jnl, err := journal.NewService(st, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化事件流水失败: %w", err)
	}

	cache, err := ordercache.New(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化委托缓存失败: %w", err)
	}

	sel := selector.New(b, limits, cfg.Universe, cfg.Selection, cfg.Trading.LotSize, logger)
	planner := trade.NewPlanner(b, cache, jnl, limits, cfg.Trading, logger)
	watcher := monitor.New(b, jnl, limits, cfg.Trading, logger)

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		broker:         b,
		selector:       sel,
		planner:        planner,
		watcher:        watcher,
		cache:          cache,
		journal:        jnl,
		tradingEnabled: tradingEnabled,
	}, nil
}

// Run 启动调度循环，阻塞至 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("首板策略系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("data_source", a.cfg.Gateway.DataSource),
		zap.Bool("trading_enabled", a.tradingEnabled),
	)

	sched, err := newScheduler(a.cfg.Scheduler.Timezone, a.logger)
	if err != nil {
		return err
	}

	if err := sched.add("选股", a.cfg.Scheduler.SelectionAt, a.runSelection); err != nil {
		return err
	}
	if a.tradingEnabled {
		if err := sched.add("夜间挂单", a.cfg.Scheduler.NightOrderAt, a.runNightOrders); err != nil {
			return err
		}
		if err := sched.add("早盘补单", a.cfg.Scheduler.MorningCheckAt, a.runMorningCheck); err != nil {
			return err
		}
	}

	// 启动时清一次过期缓存，之后随每日选股任务清理
	maxAge := time.Duration(a.cfg.Trading.OrderCacheMaxAge) * 24 * time.Hour
	if _, err := a.cache.Prune(maxAge, time.Now()); err != nil {
		a.logger.Warn("启动清理委托缓存失败", zap.Error(err))
	}

	a.loadCandidatesIntoWatcher()

	if a.tradingEnabled {
		go a.watcher.Run(ctx, a.cfg.Scheduler.MonitorInterval)
		go a.refreshLoop(ctx)
	}

	if a.cfg.App.StatusPort > 0 {
		if err := startStatusServer(ctx, a.journal, a.cfg.App.StatusPort, a.logger); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(a.cfg.Scheduler.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case now := <-ticker.C:
			sched.tick(ctx, now)
		}
	}
}

// runSelection 收盘后选股：跑完整流水线、落盘候选文件、刷新监控订阅。
func (a *App) runSelection(ctx context.Context, date string) error {
	list, stats, err := a.selector.Run(ctx, date, time.Now())
	if err != nil {
		a.journal.RecordError(ctx, "选股失败", err, map[string]interface{}{"date": date})
		return err
	}

	if err := candidate.Save(a.cfg.Candidate.Path, list); err != nil {
		a.journal.RecordError(ctx, "保存候选失败", err, map[string]interface{}{"date": date})
		return err
	}

	a.journal.RecordSelection(ctx, date, stats.Universe, list.Codes)
	a.watcher.SetCandidates(list.Codes)

	maxAge := time.Duration(a.cfg.Trading.OrderCacheMaxAge) * 24 * time.Hour
	if _, err := a.cache.Prune(maxAge, time.Now()); err != nil {
		a.logger.Warn("清理委托缓存失败", zap.Error(err))
	}
	return nil
}

// runNightOrders 夜间按候选列表挂次日涨停价买单。
func (a *App) runNightOrders(ctx context.Context, date string) error {
	list, err := candidate.Load(a.cfg.Candidate.Path)
	if err != nil {
		if errors.Is(err, candidate.ErrNotFound) {
			a.logger.Info("无候选文件，跳过夜间挂单")
			return nil
		}
		return err
	}

	result, err := a.planner.PlaceNightOrders(ctx, list)
	if err != nil {
		if errors.Is(err, trade.ErrInsufficientCash) {
			return nil
		}
		return err
	}

	a.logger.Info("夜间挂单完成",
		zap.Int("submitted", result.Submitted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}

// runMorningCheck 早盘以持仓为准核对夜间挂单，对缺口补单。
func (a *App) runMorningCheck(ctx context.Context, date string) error {
	list, err := candidate.Load(a.cfg.Candidate.Path)
	if err != nil {
		if errors.Is(err, candidate.ErrNotFound) {
			a.logger.Info("无候选文件，跳过早盘补单")
			return nil
		}
		return err
	}

	result, err := a.planner.Reconcile(ctx, list)
	if err != nil {
		if errors.Is(err, trade.ErrInsufficientCash) {
			return nil
		}
		return err
	}

	a.logger.Info("早盘补单完成",
		zap.Int("submitted", result.Submitted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}

// refreshLoop 定期重读候选文件刷新监控订阅，兼容外部手工修改候选。
func (a *App) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Scheduler.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.loadCandidatesIntoWatcher()
		}
	}
}

func (a *App) loadCandidatesIntoWatcher() {
	list, err := candidate.Load(a.cfg.Candidate.Path)
	if err != nil {
		if !errors.Is(err, candidate.ErrNotFound) {
			a.logger.Warn("读取候选文件失败", zap.Error(err))
		}
		return
	}
	a.watcher.SetCandidates(list.Codes)
}
