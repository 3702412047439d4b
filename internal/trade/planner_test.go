package trade

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"firstboard/internal/broker"
	"firstboard/internal/candidate"
	"firstboard/internal/config"
	"firstboard/internal/market"
	"firstboard/internal/ordercache"
	"firstboard/internal/store"
)

type fakeBroker struct {
	asset      broker.Asset
	positions  []broker.Position
	lastCloses map[string]float64
	orders     []broker.OrderRequest
	rejectCode string
	nextID     int64
}

func (f *fakeBroker) ListSector(context.Context, string) ([]broker.Instrument, error) {
	return nil, nil
}

func (f *fakeBroker) Suspensions(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeBroker) History(context.Context, string, int) ([]market.Bar, error) {
	return nil, nil
}

func (f *fakeBroker) LastClose(_ context.Context, code string) (float64, error) {
	close, ok := f.lastCloses[code]
	if !ok {
		return 0, errors.New("无此代码")
	}
	return close, nil
}

func (f *fakeBroker) FullTick(context.Context, []string) (map[string]market.Quote, error) {
	return map[string]market.Quote{}, nil
}

func (f *fakeBroker) FloatMarketCap(context.Context, string) (float64, error) {
	return 0, errors.New("未实现")
}

func (f *fakeBroker) Asset(context.Context) (broker.Asset, error) {
	return f.asset, nil
}

func (f *fakeBroker) Positions(context.Context) ([]broker.Position, error) {
	return f.positions, nil
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req broker.OrderRequest) (int64, error) {
	if req.Code == f.rejectCode {
		return 0, broker.ErrOrderRejected
	}
	f.orders = append(f.orders, req)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeBroker) Connected() bool { return true }

func testLimits() market.LimitParams {
	return market.LimitParams{
		RatioMain:    0.10,
		RatioGrowth:  0.20,
		RatioBeijing: 0.30,
		RatioST:      0.05,
		TolClosed:    0.015,
		TolIntraday:  0.02,
	}
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		SafetyMargin:        0.05,
		TransactionCostRate: 0.003,
		LotSize:             100,
		StopProfit:          0.10,
		StopLoss:            -0.02,
		OrderCacheMaxAge:    7,
	}
}

func newTestCache(t *testing.T) *ordercache.Cache {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cache, err := ordercache.New(st.DB(), nil)
	if err != nil {
		t.Fatalf("初始化委托缓存失败: %v", err)
	}
	return cache
}

func TestPlanAllocationScenario(t *testing.T) {
	// 现金10万，非候选持仓2万，两只候选
	alloc, err := PlanAllocation(100_000, 20_000, 2, testTradingConfig())
	if err != nil {
		t.Fatalf("分配失败: %v", err)
	}

	// 80000 × (1 − 0.05 − 0.003) = 75760
	if math.Abs(alloc.UsableCash-75_760) > 1e-6 {
		t.Errorf("可用资金应为75760: got %f", alloc.UsableCash)
	}
	if math.Abs(alloc.PerStock-37_880) > 1e-6 {
		t.Errorf("单股预算应为37880: got %f", alloc.PerStock)
	}
}

func TestPlanAllocationInsufficient(t *testing.T) {
	if _, err := PlanAllocation(20_000, 30_000, 2, testTradingConfig()); !errors.Is(err, ErrInsufficientCash) {
		t.Errorf("资金不足应返回 ErrInsufficientCash: got %v", err)
	}
}

func TestVolumeFor(t *testing.T) {
	cases := []struct {
		budget, price float64
		want          int64
	}{
		{37_730, 13.2, 2800},
		{1_000, 13.2, 0},
		{37_730, 0, 0},
		{0, 13.2, 0},
	}
	for _, tc := range cases {
		if got := VolumeFor(tc.budget, tc.price, 100); got != tc.want {
			t.Errorf("VolumeFor(%f, %f) = %d, want %d", tc.budget, tc.price, got, tc.want)
		}
	}
}

func TestPlaceNightOrders(t *testing.T) {
	fb := &fakeBroker{
		asset: broker.Asset{Cash: 100_000},
		positions: []broker.Position{
			{Code: "601398.SH", Volume: 2000, AvgCost: 10.0}, // 非候选占用 20000
		},
		lastCloses: map[string]float64{
			"300001.SZ": 12.0,
			"600519.SH": 100.0,
		},
	}
	planner := NewPlanner(fb, newTestCache(t), nil, testLimits(), testTradingConfig(), nil)

	list := candidate.NewList("2026-08-21", []string{"300001.SZ", "600519.SH"}, time.Now())
	result, err := planner.PlaceNightOrders(context.Background(), list)
	if err != nil {
		t.Fatalf("夜间挂单失败: %v", err)
	}
	if result.Submitted != 2 || result.Failed != 0 {
		t.Fatalf("应提交2笔: %+v", result)
	}

	byCode := make(map[string]broker.OrderRequest)
	for _, ord := range fb.orders {
		byCode[ord.Code] = ord
	}

	// 创业板 12.0 × 1.20 = 14.40，预算 37880 → 2600股
	if ord := byCode["300001.SZ"]; ord.Price != 14.40 || ord.Volume != 2600 {
		t.Errorf("300001.SZ 委托错误: %+v", ord)
	}
	// 主板 100.0 × 1.10 = 110.00，预算 37880 → 300股
	if ord := byCode["600519.SH"]; ord.Price != 110.00 || ord.Volume != 300 {
		t.Errorf("600519.SH 委托错误: %+v", ord)
	}
}

func TestPlaceNightOrdersIdempotent(t *testing.T) {
	fb := &fakeBroker{
		asset:      broker.Asset{Cash: 100_000},
		lastCloses: map[string]float64{"300001.SZ": 12.0},
	}
	planner := NewPlanner(fb, newTestCache(t), nil, testLimits(), testTradingConfig(), nil)
	list := candidate.NewList("2026-08-21", []string{"300001.SZ"}, time.Now())

	if _, err := planner.PlaceNightOrders(context.Background(), list); err != nil {
		t.Fatalf("第一轮挂单失败: %v", err)
	}
	result, err := planner.PlaceNightOrders(context.Background(), list)
	if err != nil {
		t.Fatalf("第二轮挂单失败: %v", err)
	}

	if result.Submitted != 0 || result.Skipped != 1 {
		t.Errorf("重复执行不应再次提交: %+v", result)
	}
	if len(fb.orders) != 1 {
		t.Errorf("终端只应收到1笔委托: got %d", len(fb.orders))
	}
}

func TestRejectedOrderNotCached(t *testing.T) {
	fb := &fakeBroker{
		asset:      broker.Asset{Cash: 100_000},
		lastCloses: map[string]float64{"300001.SZ": 12.0},
		rejectCode: "300001.SZ",
	}
	cache := newTestCache(t)
	planner := NewPlanner(fb, cache, nil, testLimits(), testTradingConfig(), nil)
	list := candidate.NewList("2026-08-21", []string{"300001.SZ"}, time.Now())

	result, err := planner.PlaceNightOrders(context.Background(), list)
	if err != nil {
		t.Fatalf("挂单流程不应整体失败: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("被拒委托应计入失败: %+v", result)
	}

	placed, err := cache.AlreadyPlaced("300001.SZ", "2026-08-21")
	if err != nil {
		t.Fatalf("查询缓存失败: %v", err)
	}
	if placed {
		t.Error("被拒的委托不应写入缓存，否则早盘无法补单")
	}
}

func TestReconcileOnlyUnfilled(t *testing.T) {
	fb := &fakeBroker{
		asset: broker.Asset{Cash: 60_000},
		positions: []broker.Position{
			{Code: "300001.SZ", Volume: 2600, AvgCost: 14.40}, // 夜间已成交
		},
		lastCloses: map[string]float64{
			"300001.SZ": 12.0,
			"600519.SH": 100.0,
		},
	}
	planner := NewPlanner(fb, newTestCache(t), nil, testLimits(), testTradingConfig(), nil)
	list := candidate.NewList("2026-08-21", []string{"300001.SZ", "600519.SH"}, time.Now())

	result, err := planner.Reconcile(context.Background(), list)
	if err != nil {
		t.Fatalf("早盘补单失败: %v", err)
	}
	if result.Submitted != 1 {
		t.Fatalf("只应补1笔: %+v", result)
	}
	if fb.orders[0].Code != "600519.SH" {
		t.Errorf("应只对未成交候选补单: got %s", fb.orders[0].Code)
	}

	// 候选持仓不占用资金：60000 × 0.947 = 56820 全部给缺口
	wantVolume := VolumeFor(56_820, 110.00, 100)
	if fb.orders[0].Volume != wantVolume {
		t.Errorf("补单数量错误: got %d want %d", fb.orders[0].Volume, wantVolume)
	}
}

func TestReconcileAllFilled(t *testing.T) {
	fb := &fakeBroker{
		asset: broker.Asset{Cash: 10_000},
		positions: []broker.Position{
			{Code: "300001.SZ", Volume: 2600, AvgCost: 14.40},
		},
		lastCloses: map[string]float64{"300001.SZ": 12.0},
	}
	planner := NewPlanner(fb, newTestCache(t), nil, testLimits(), testTradingConfig(), nil)
	list := candidate.NewList("2026-08-21", []string{"300001.SZ"}, time.Now())

	result, err := planner.Reconcile(context.Background(), list)
	if err != nil {
		t.Fatalf("早盘核对失败: %v", err)
	}
	if result.Submitted != 0 || len(fb.orders) != 0 {
		t.Errorf("全部成交时不应有补单: %+v", result)
	}
}
