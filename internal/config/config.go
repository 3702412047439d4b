package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "firstboard"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.status_port", 8710)

	v.SetDefault("gateway.base_url", "http://127.0.0.1:58610")
	v.SetDefault("gateway.data_source", "live")
	v.SetDefault("gateway.timeout", "3s")
	v.SetDefault("gateway.retry_timeout", "10s")
	v.SetDefault("gateway.reconnect_interval", "30s")

	v.SetDefault("universe.sector", "沪深A股")
	v.SetDefault("universe.exclude_st", true)
	v.SetDefault("universe.exclude_growth", true)
	v.SetDefault("universe.exclude_beijing", true)

	v.SetDefault("limit.ratio_main", 0.10)
	v.SetDefault("limit.ratio_growth", 0.20)
	v.SetDefault("limit.ratio_beijing", 0.30)
	v.SetDefault("limit.ratio_st", 0.05)
	v.SetDefault("limit.tolerance_closed", 0.015)
	v.SetDefault("limit.tolerance_intraday", 0.02)

	v.SetDefault("selection.history_count", 63)
	v.SetDefault("selection.drawdown_window", 60)
	v.SetDefault("selection.drawdown_limit", 0.20)
	v.SetDefault("selection.enable_seal_filter", false)
	v.SetDefault("selection.seal_circ_ratio", 0.03)
	v.SetDefault("selection.seal_turnover_ratio", 2.0)
	v.SetDefault("selection.enable_volume_ratio", false)
	v.SetDefault("selection.min_volume_ratio", 2.0)
	v.SetDefault("selection.concurrency", 8)

	v.SetDefault("trading.account_id", "")
	v.SetDefault("trading.account_file", "account_id.txt")
	v.SetDefault("trading.safety_margin", 0.05)
	v.SetDefault("trading.transaction_cost_rate", 0.003)
	v.SetDefault("trading.lot_size", 100)
	v.SetDefault("trading.stop_profit", 0.10)
	v.SetDefault("trading.stop_loss", -0.02)
	v.SetDefault("trading.order_cache_max_age_days", 7)

	v.SetDefault("scheduler.timezone", "Asia/Shanghai")
	v.SetDefault("scheduler.selection_at", "15:38")
	v.SetDefault("scheduler.night_order_at", "21:00")
	v.SetDefault("scheduler.morning_check_at", "09:25")
	v.SetDefault("scheduler.tick_interval", "10s")
	v.SetDefault("scheduler.monitor_interval", "1s")
	v.SetDefault("scheduler.refresh_interval", "1m")

	v.SetDefault("candidate.path", "data/candidate.json")

	v.SetDefault("database.path", "data/firstboard.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
