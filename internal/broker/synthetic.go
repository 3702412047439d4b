package broker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"firstboard/internal/market"
)

// Synthetic 是离线数据源：不依赖任何外部终端，用固定种子生成
// 可复现的行情与账户状态。用于无终端环境下跑通完整流程，
// 以及联调定时任务。数据源在启动时一次性选定，运行期不切换。
type Synthetic struct {
	logger *zap.Logger

	mu        sync.Mutex
	cash      float64
	positions map[string]*Position
	nextOrder int64

	instruments []Instrument
	histories   map[string][]market.Bar
}

var _ Broker = (*Synthetic)(nil)

// NewSynthetic 构建离线数据源。股票池和K线由种子唯一决定，
// 同一种子下每次运行结果一致。
func NewSynthetic(seed int64, logger *zap.Logger) *Synthetic {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Synthetic{
		logger:    logger,
		cash:      1_000_000,
		positions: make(map[string]*Position),
		nextOrder: 1,
		histories: make(map[string][]market.Bar),
	}

	rng := rand.New(rand.NewSource(seed))
	prefixes := []string{"600", "000", "002", "300", "688"}
	for i := 0; i < 40; i++ {
		prefix := prefixes[i%len(prefixes)]
		suffix := ".SZ"
		if prefix == "600" || prefix == "688" {
			suffix = ".SH"
		}
		code := fmt.Sprintf("%s%03d%s", prefix, i, suffix)
		name := fmt.Sprintf("模拟股%02d", i)
		s.instruments = append(s.instruments, Instrument{Code: code, Name: name})
		s.histories[code] = syntheticHistory(rng, code, 80)
	}

	return s
}

// syntheticHistory 生成带随机游走的日线序列，约一成概率把最后
// 一根做成涨停板，保证选股流水线偶有产出。
func syntheticHistory(rng *rand.Rand, code string, count int) []market.Bar {
	bars := make([]market.Bar, 0, count)
	price := 5 + rng.Float64()*20
	day := time.Now().AddDate(0, 0, -count)

	for i := 0; i < count; i++ {
		preClose := price
		change := (rng.Float64() - 0.48) * 0.06
		close := math.Round(preClose*(1+change)*100) / 100
		high := math.Max(preClose, close) * (1 + rng.Float64()*0.01)
		low := math.Min(preClose, close) * (1 - rng.Float64()*0.01)

		if i == count-1 && rng.Float64() < 0.1 {
			ratio := 0.10
			if market.BoardOf(code) == market.BoardGrowth {
				ratio = 0.20
			}
			close = math.Round(preClose*(1+ratio)*100) / 100
			high = close
		}

		bars = append(bars, market.Bar{
			Time:     day.AddDate(0, 0, i),
			Open:     preClose,
			High:     math.Round(high*100) / 100,
			Low:      math.Round(low*100) / 100,
			Close:    close,
			PreClose: preClose,
			Amount:   1e7 + rng.Float64()*5e7,
		})
		price = close
	}
	return bars
}

// Connected 离线数据源永远在线。
func (s *Synthetic) Connected() bool { return true }

// ListSector 返回全部模拟证券，sector 参数仅做记录。
func (s *Synthetic) ListSector(_ context.Context, sector string) ([]Instrument, error) {
	s.logger.Debug("离线数据源返回模拟股票池", zap.String("sector", sector))
	out := make([]Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out, nil
}

// Suspensions 模拟环境中不存在停牌。
func (s *Synthetic) Suspensions(_ context.Context, codes []string) (map[string]bool, error) {
	suspended := make(map[string]bool, len(codes))
	for _, code := range codes {
		suspended[code] = false
	}
	return suspended, nil
}

// History 返回最近 count 根模拟日线。
func (s *Synthetic) History(_ context.Context, code string, count int) ([]market.Bar, error) {
	bars, ok := s.histories[code]
	if !ok {
		return nil, fmt.Errorf("未知代码 %s", code)
	}
	if count > len(bars) {
		count = len(bars)
	}
	out := make([]market.Bar, count)
	copy(out, bars[len(bars)-count:])
	return out, nil
}

// LastClose 返回最后一根模拟日线的收盘价。
func (s *Synthetic) LastClose(_ context.Context, code string) (float64, error) {
	bars, ok := s.histories[code]
	if !ok || len(bars) == 0 {
		return 0, fmt.Errorf("未知代码 %s", code)
	}
	return bars[len(bars)-1].Close, nil
}

// FullTick 用最后一根日线合成实时切片。
func (s *Synthetic) FullTick(_ context.Context, codes []string) (map[string]market.Quote, error) {
	quotes := make(map[string]market.Quote, len(codes))
	for _, code := range codes {
		bars, ok := s.histories[code]
		if !ok || len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		quotes[code] = market.Quote{
			Code:      code,
			Last:      last.Close,
			High:      last.High,
			PreClose:  last.PreClose,
			Turnover:  last.Amount,
			BidPrices: []float64{last.Close},
			BidVolume: []float64{10000},
			Time:      time.Now(),
		}
	}
	return quotes, nil
}

// FloatMarketCap 按最新价虚拟一个流通市值。
func (s *Synthetic) FloatMarketCap(ctx context.Context, code string) (float64, error) {
	close, err := s.LastClose(ctx, code)
	if err != nil {
		return 0, err
	}
	return close * 1e8, nil
}

// Asset 返回模拟资金账户。
func (s *Synthetic) Asset(_ context.Context) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.cash
	for code, pos := range s.positions {
		if bars := s.histories[code]; len(bars) > 0 {
			total += float64(pos.Volume) * bars[len(bars)-1].Close
		}
	}
	return Asset{Cash: s.cash, TotalAsset: total}, nil
}

// Positions 返回模拟持仓。
func (s *Synthetic) Positions(_ context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}
	return out, nil
}

// PlaceOrder 即时全成：买入扣减现金并建仓，卖出清减持仓。
func (s *Synthetic) PlaceOrder(_ context.Context, req OrderRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cost := req.Price * float64(req.Volume)

	switch req.Side {
	case OrderSideBuy:
		if cost > s.cash {
			return 0, fmt.Errorf("%w: 资金不足", ErrOrderRejected)
		}
		s.cash -= cost
		pos, ok := s.positions[req.Code]
		if !ok {
			pos = &Position{Code: req.Code}
			s.positions[req.Code] = pos
		}
		totalCost := pos.AvgCost*float64(pos.Volume) + cost
		pos.Volume += req.Volume
		pos.UsableVolume += req.Volume
		pos.AvgCost = totalCost / float64(pos.Volume)
	case OrderSideSell:
		pos, ok := s.positions[req.Code]
		if !ok || pos.UsableVolume < req.Volume {
			return 0, fmt.Errorf("%w: 可用持仓不足", ErrOrderRejected)
		}
		pos.Volume -= req.Volume
		pos.UsableVolume -= req.Volume
		s.cash += cost
		if pos.Volume == 0 {
			delete(s.positions, req.Code)
		}
	default:
		return 0, fmt.Errorf("%w: 未知方向 %s", ErrOrderRejected, req.Side)
	}

	id := s.nextOrder
	s.nextOrder++
	s.logger.Info("模拟委托已成交",
		zap.String("code", req.Code),
		zap.String("side", string(req.Side)),
		zap.Float64("price", req.Price),
		zap.Int64("volume", req.Volume),
		zap.Int64("order_id", id),
	)
	return id, nil
}
