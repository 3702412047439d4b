package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Limit.RatioMain != 0.10 || cfg.Limit.RatioGrowth != 0.20 {
		t.Errorf("涨停幅度默认值错误: %+v", cfg.Limit)
	}
	if cfg.Scheduler.Timezone != "Asia/Shanghai" {
		t.Errorf("时区默认值错误: %s", cfg.Scheduler.Timezone)
	}
	if cfg.Scheduler.MonitorInterval != time.Second {
		t.Errorf("监控周期默认值错误: %v", cfg.Scheduler.MonitorInterval)
	}
	if cfg.Trading.SafetyMargin != 0.05 || cfg.Trading.TransactionCostRate != 0.003 {
		t.Errorf("资金预留默认值错误: %+v", cfg.Trading)
	}
}

func TestLoadOverridesAndValidates(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
gateway:
  data_source: synthetic
selection:
  drawdown_limit: 0.15
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Gateway.DataSource != "synthetic" {
		t.Errorf("数据源覆盖失败: %s", cfg.Gateway.DataSource)
	}
	if cfg.Selection.DrawdownLimit != 0.15 {
		t.Errorf("回撤阈值覆盖失败: %v", cfg.Selection.DrawdownLimit)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  data_source: csv
trading:
  stop_loss: 0.02
`)

	if _, err := Load(path); err == nil {
		t.Error("非法配置应被校验拒绝")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("缺失配置文件应报错")
	}
}
