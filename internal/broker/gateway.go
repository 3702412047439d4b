package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"firstboard/internal/config"
	"firstboard/internal/market"
)

// Gateway 通过本机 HTTP 网关访问量化交易终端。
// 终端本身是黑盒外部服务，这里只做三件事：超时与单次重试、
// 断线探测与最小间隔重连、以及把松散的应答字段归一化成内部类型。
type Gateway struct {
	cfg     config.GatewayConfig
	account string
	logger  *zap.Logger
	client  *http.Client

	mu          sync.Mutex
	connected   bool
	lastAttempt time.Time
}

var _ Broker = (*Gateway)(nil)

// NewGateway 创建终端网关客户端。account 为空时交易类接口返回错误。
func NewGateway(cfg config.GatewayConfig, account string, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:     cfg,
		account: account,
		logger:  logger,
		// 单次调用的超时由 context 控制，这里不再额外设置
		client:    &http.Client{},
		connected: true,
	}
}

// Connected 报告链路状态。
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// ensureConnected 在链路中断后控制重连节奏：两次探测之间至少间隔
// reconnect_interval，避免对终端高频重试。
func (g *Gateway) ensureConnected(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	if time.Since(g.lastAttempt) < g.cfg.ReconnectInterval {
		g.mu.Unlock()
		return ErrDisconnected
	}
	g.lastAttempt = time.Now()
	g.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if _, err := g.doRequest(pingCtx, http.MethodGet, "/api/health", nil, nil); err != nil {
		g.logger.Warn("终端重连探测失败", zap.Error(err))
		return ErrDisconnected
	}

	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	g.logger.Info("终端链路已恢复")
	return nil
}

func (g *Gateway) markDisconnected(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connected {
		g.logger.Warn("终端链路中断，暂停交易与查询", zap.Error(err))
	}
	g.connected = false
}

// call 执行一次网关调用：短超时首次尝试，失败后用长超时再试一次，
// 仍失败则只让这个子操作失败，不中止外层批处理。
func (g *Gateway) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := g.ensureConnected(ctx); err != nil {
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	err := fn(attemptCtx)
	cancel()
	if err == nil {
		return nil
	}

	if !isRetryable(err) {
		return err
	}

	g.logger.Warn("终端调用失败，延长超时后重试一次",
		zap.String("operation", operation),
		zap.Error(err),
	)

	retryCtx, cancel := context.WithTimeout(ctx, g.cfg.RetryTimeout)
	err = fn(retryCtx)
	cancel()
	if err == nil {
		return nil
	}

	if isNetworkErr(err) {
		g.markDisconnected(err)
	}
	return fmt.Errorf("%s: 重试后仍失败: %w", operation, err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return isNetworkErr(err) || errors.Is(err, context.DeadlineExceeded)
}

func isNetworkErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// doRequest 发送请求并剥掉 {"code":..,"message":..,"data":..} 应答信封。
func (g *Gateway) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (gjson.Result, error) {
	target := g.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return gjson.Result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("网关返回 HTTP %d", resp.StatusCode)
	}

	envelope := gjson.ParseBytes(raw)
	if code := envelope.Get("code"); code.Exists() && code.Int() != 0 {
		return gjson.Result{}, fmt.Errorf("网关错误 code=%d msg=%s", code.Int(), envelope.Get("message").String())
	}

	return envelope.Get("data"), nil
}

// ListSector 返回板块内全部证券。
func (g *Gateway) ListSector(ctx context.Context, sector string) ([]Instrument, error) {
	var data gjson.Result
	err := g.call(ctx, "list_sector", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/sector/list", url.Values{"name": {sector}}, nil)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	instruments := make([]Instrument, 0, 5000)
	data.ForEach(func(_, item gjson.Result) bool {
		code := item.Get("code").String()
		if code == "" {
			return true
		}
		instruments = append(instruments, Instrument{
			Code: code,
			Name: item.Get("name").String(),
		})
		return true
	})
	return instruments, nil
}

// Suspensions 批量查询停牌标记。
func (g *Gateway) Suspensions(ctx context.Context, codes []string) (map[string]bool, error) {
	var data gjson.Result
	err := g.call(ctx, "suspensions", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodPost, "/api/market/suspensions",
			nil, map[string]interface{}{"codes": codes})
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	suspended := make(map[string]bool, len(codes))
	data.ForEach(func(key, value gjson.Result) bool {
		suspended[key.String()] = value.Bool()
		return true
	})
	return suspended, nil
}

// History 返回最近 count 根日线。
func (g *Gateway) History(ctx context.Context, code string, count int) ([]market.Bar, error) {
	query := url.Values{"code": {code}, "count": {fmt.Sprintf("%d", count)}}

	var data gjson.Result
	err := g.call(ctx, "history", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/market/history", query, nil)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, count)
	data.ForEach(func(_, item gjson.Result) bool {
		bars = append(bars, market.Bar{
			Time:     time.UnixMilli(item.Get("time").Int()),
			Open:     item.Get("open").Float(),
			High:     item.Get("high").Float(),
			Low:      item.Get("low").Float(),
			Close:    item.Get("close").Float(),
			PreClose: item.Get("preClose").Float(),
			Amount:   item.Get("amount").Float(),
		})
		return true
	})
	return bars, nil
}

// LastClose 返回最近一个交易日收盘价。
func (g *Gateway) LastClose(ctx context.Context, code string) (float64, error) {
	var data gjson.Result
	err := g.call(ctx, "last_close", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/market/last_close", url.Values{"code": {code}}, nil)
		return reqErr
	})
	if err != nil {
		return 0, err
	}
	return data.Float(), nil
}

// FullTick 批量获取实时行情切片。
func (g *Gateway) FullTick(ctx context.Context, codes []string) (map[string]market.Quote, error) {
	var data gjson.Result
	err := g.call(ctx, "full_tick", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodPost, "/api/market/full_tick",
			nil, map[string]interface{}{"codes": codes})
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]market.Quote, len(codes))
	data.ForEach(func(key, item gjson.Result) bool {
		quotes[key.String()] = market.Quote{
			Code:      key.String(),
			Last:      item.Get("lastPrice").Float(),
			High:      item.Get("high").Float(),
			PreClose:  item.Get("preClose").Float(),
			Turnover:  item.Get("amount").Float(),
			BidPrices: floatSlice(item.Get("bidPrice")),
			BidVolume: floatSlice(item.Get("bidVol")),
			Time:      time.UnixMilli(item.Get("time").Int()),
		}
		return true
	})
	return quotes, nil
}

// FloatMarketCap 返回流通市值。
func (g *Gateway) FloatMarketCap(ctx context.Context, code string) (float64, error) {
	var data gjson.Result
	err := g.call(ctx, "float_market_cap", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/market/float_cap", url.Values{"code": {code}}, nil)
		return reqErr
	})
	if err != nil {
		return 0, err
	}
	return data.Float(), nil
}

// Asset 返回资金账户快照。
func (g *Gateway) Asset(ctx context.Context) (Asset, error) {
	if g.account == "" {
		return Asset{}, errors.New("broker: 未配置资金账号")
	}

	var data gjson.Result
	err := g.call(ctx, "asset", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/trade/asset", url.Values{"account": {g.account}}, nil)
		return reqErr
	})
	if err != nil {
		return Asset{}, err
	}

	return Asset{
		Cash:       pickFloat(data, "cash", "m_dAvailable", "available"),
		TotalAsset: pickFloat(data, "totalAsset", "m_dBalance", "total_asset"),
	}, nil
}

// Positions 返回当前全部持仓，字段名随终端版本漂移，在这里一次性归一化。
func (g *Gateway) Positions(ctx context.Context) ([]Position, error) {
	if g.account == "" {
		return nil, errors.New("broker: 未配置资金账号")
	}

	var data gjson.Result
	err := g.call(ctx, "positions", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodGet, "/api/trade/positions", url.Values{"account": {g.account}}, nil)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0)
	data.ForEach(func(_, item gjson.Result) bool {
		code := pickString(item, "code", "stockCode", "m_strInstrumentID")
		if code == "" {
			return true
		}
		positions = append(positions, Position{
			Code:         code,
			Volume:       pickInt(item, "volume", "m_nVolume"),
			UsableVolume: pickInt(item, "canUseVolume", "usableVolume", "m_nCanUseVolume"),
			AvgCost:      pickFloat(item, "avgPrice", "openPrice", "m_dOpenPrice"),
		})
		return true
	})
	return positions, nil
}

// PlaceOrder 提交限价委托。
func (g *Gateway) PlaceOrder(ctx context.Context, req OrderRequest) (int64, error) {
	if g.account == "" {
		return 0, errors.New("broker: 未配置资金账号")
	}

	payload := map[string]interface{}{
		"account": g.account,
		"code":    req.Code,
		"side":    string(req.Side),
		"price":   req.Price,
		"volume":  req.Volume,
		"remark":  req.Remark,
	}

	var data gjson.Result
	err := g.call(ctx, "place_order", func(ctx context.Context) error {
		var reqErr error
		data, reqErr = g.doRequest(ctx, http.MethodPost, "/api/trade/order", nil, payload)
		return reqErr
	})
	if err != nil {
		return 0, err
	}

	orderID := data.Get("orderId").Int()
	if orderID <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrOrderRejected, data.Get("reason").String())
	}
	return orderID, nil
}

func floatSlice(r gjson.Result) []float64 {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]float64, 0, len(items))
	for _, item := range items {
		out = append(out, item.Float())
	}
	return out
}

func pickFloat(r gjson.Result, keys ...string) float64 {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.Float()
		}
	}
	return 0
}

func pickInt(r gjson.Result, keys ...string) int64 {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.Int()
		}
	}
	return 0
}

func pickString(r gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.String()
		}
	}
	return ""
}
