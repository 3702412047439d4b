package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Universe  UniverseConfig  `mapstructure:"universe"`
	Limit     LimitConfig     `mapstructure:"limit"`
	Selection SelectionConfig `mapstructure:"selection"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Candidate CandidateConfig `mapstructure:"candidate"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。StatusPort 为事件查询接口端口，0 表示关闭。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	StatusPort  int    `mapstructure:"status_port"`
}

// GatewayConfig 描述行情/交易终端网关的连接信息。
type GatewayConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	DataSource        string        `mapstructure:"data_source"` // live | synthetic
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryTimeout      time.Duration `mapstructure:"retry_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// UniverseConfig 控制股票池与基础剔除规则。
type UniverseConfig struct {
	Sector         string `mapstructure:"sector"`
	ExcludeST      bool   `mapstructure:"exclude_st"`
	ExcludeGrowth  bool   `mapstructure:"exclude_growth"`
	ExcludeBeijing bool   `mapstructure:"exclude_beijing"`
}

// LimitConfig 管理涨停判定阈值。规则在历史版本中多次变动，
// 因此全部做成配置而非硬编码。
type LimitConfig struct {
	RatioMain    float64 `mapstructure:"ratio_main"`
	RatioGrowth  float64 `mapstructure:"ratio_growth"`
	RatioBeijing float64 `mapstructure:"ratio_beijing"`
	RatioST      float64 `mapstructure:"ratio_st"`
	TolClosed    float64 `mapstructure:"tolerance_closed"`
	TolIntraday  float64 `mapstructure:"tolerance_intraday"`
}

// SelectionConfig 控制选股流水线。
type SelectionConfig struct {
	HistoryCount      int     `mapstructure:"history_count"`
	DrawdownWindow    int     `mapstructure:"drawdown_window"`
	DrawdownLimit     float64 `mapstructure:"drawdown_limit"`
	EnableSealFilter  bool    `mapstructure:"enable_seal_filter"`
	SealCircRatio     float64 `mapstructure:"seal_circ_ratio"`
	SealTurnoverRatio float64 `mapstructure:"seal_turnover_ratio"`
	EnableVolumeRatio bool    `mapstructure:"enable_volume_ratio"`
	MinVolumeRatio    float64 `mapstructure:"min_volume_ratio"`
	Concurrency       int     `mapstructure:"concurrency"`
}

// TradingConfig 控制下单与持仓监控。
type TradingConfig struct {
	AccountID           string  `mapstructure:"account_id"`
	AccountFile         string  `mapstructure:"account_file"`
	SafetyMargin        float64 `mapstructure:"safety_margin"`
	TransactionCostRate float64 `mapstructure:"transaction_cost_rate"`
	LotSize             int     `mapstructure:"lot_size"`
	StopProfit          float64 `mapstructure:"stop_profit"`
	StopLoss            float64 `mapstructure:"stop_loss"`
	OrderCacheMaxAge    int     `mapstructure:"order_cache_max_age_days"`
}

// SchedulerConfig 控制各定时任务的触发时刻与监控节奏。
type SchedulerConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	SelectionAt     string        `mapstructure:"selection_at"`
	NightOrderAt    string        `mapstructure:"night_order_at"`
	MorningCheckAt  string        `mapstructure:"morning_check_at"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// CandidateConfig 控制候选列表文件位置。
type CandidateConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.App.StatusPort < 0 || c.App.StatusPort > 65535 {
		err = multierr.Append(err, errors.New("app.status_port 必须位于[0,65535]"))
	}
	if c.Gateway.DataSource != "live" && c.Gateway.DataSource != "synthetic" {
		err = multierr.Append(err, errors.New("gateway.data_source 必须为 live 或 synthetic"))
	}
	if c.Gateway.DataSource == "live" && c.Gateway.BaseURL == "" {
		err = multierr.Append(err, errors.New("gateway.base_url 不能为空"))
	}
	if c.Gateway.Timeout <= 0 || c.Gateway.RetryTimeout <= 0 {
		err = multierr.Append(err, errors.New("gateway.timeout 必须为正"))
	}
	if c.Gateway.Timeout > c.Gateway.RetryTimeout {
		err = multierr.Append(err, errors.New("gateway.retry_timeout 不应小于首次超时"))
	}
	if c.Gateway.ReconnectInterval <= 0 {
		err = multierr.Append(err, errors.New("gateway.reconnect_interval 必须为正"))
	}
	if c.Universe.Sector == "" {
		err = multierr.Append(err, errors.New("universe.sector 不能为空"))
	}
	if c.Limit.RatioMain <= 0 || c.Limit.RatioMain > 1 {
		err = multierr.Append(err, errors.New("limit.ratio_main 必须位于(0,1]"))
	}
	if c.Limit.RatioGrowth <= 0 || c.Limit.RatioGrowth > 1 {
		err = multierr.Append(err, errors.New("limit.ratio_growth 必须位于(0,1]"))
	}
	if c.Limit.RatioBeijing <= 0 || c.Limit.RatioBeijing > 1 {
		err = multierr.Append(err, errors.New("limit.ratio_beijing 必须位于(0,1]"))
	}
	if c.Limit.RatioST <= 0 || c.Limit.RatioST > 1 {
		err = multierr.Append(err, errors.New("limit.ratio_st 必须位于(0,1]"))
	}
	if c.Limit.TolClosed < 0 || c.Limit.TolIntraday < 0 {
		err = multierr.Append(err, errors.New("limit.tolerance 不能为负"))
	}
	if c.Selection.DrawdownWindow <= 0 {
		err = multierr.Append(err, errors.New("selection.drawdown_window 必须大于0"))
	}
	if c.Selection.HistoryCount <= c.Selection.DrawdownWindow {
		err = multierr.Append(err, errors.New("selection.history_count 必须大于 drawdown_window"))
	}
	if c.Selection.DrawdownLimit <= 0 || c.Selection.DrawdownLimit > 1 {
		err = multierr.Append(err, errors.New("selection.drawdown_limit 必须位于(0,1]"))
	}
	if c.Selection.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("selection.concurrency 必须大于0"))
	}
	if c.Trading.SafetyMargin < 0 || c.Trading.SafetyMargin >= 1 {
		err = multierr.Append(err, errors.New("trading.safety_margin 必须位于[0,1)"))
	}
	if c.Trading.TransactionCostRate < 0 || c.Trading.TransactionCostRate >= 1 {
		err = multierr.Append(err, errors.New("trading.transaction_cost_rate 必须位于[0,1)"))
	}
	if c.Trading.SafetyMargin+c.Trading.TransactionCostRate >= 1 {
		err = multierr.Append(err, errors.New("trading 预留比例之和必须小于1"))
	}
	if c.Trading.LotSize <= 0 {
		err = multierr.Append(err, errors.New("trading.lot_size 必须大于0"))
	}
	if c.Trading.StopProfit <= 0 {
		err = multierr.Append(err, errors.New("trading.stop_profit 必须大于0"))
	}
	if c.Trading.StopLoss >= 0 {
		err = multierr.Append(err, errors.New("trading.stop_loss 必须为负"))
	}
	if c.Trading.OrderCacheMaxAge <= 0 {
		err = multierr.Append(err, errors.New("trading.order_cache_max_age_days 必须大于0"))
	}
	if c.Scheduler.Timezone == "" {
		err = multierr.Append(err, errors.New("scheduler.timezone 不能为空"))
	}
	for key, at := range map[string]string{
		"scheduler.selection_at":     c.Scheduler.SelectionAt,
		"scheduler.night_order_at":   c.Scheduler.NightOrderAt,
		"scheduler.morning_check_at": c.Scheduler.MorningCheckAt,
	} {
		if _, parseErr := time.Parse("15:04", at); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s 必须为 HH:MM 格式: %w", key, parseErr))
		}
	}
	if c.Scheduler.TickInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.tick_interval 必须大于0"))
	}
	if c.Scheduler.MonitorInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.monitor_interval 必须大于0"))
	}
	if c.Scheduler.RefreshInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.refresh_interval 必须大于0"))
	}
	if c.Candidate.Path == "" {
		err = multierr.Append(err, errors.New("candidate.path 不能为空"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
