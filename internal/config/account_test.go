package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAccountID_ConfigWins(t *testing.T) {
	t.Setenv(accountEnvKey, "env-acct")

	cfg := TradingConfig{AccountID: " 10086 ", AccountFile: "no-such-file"}
	if got := ResolveAccountID(cfg); got != "10086" {
		t.Errorf("配置项应优先生效: got %q", got)
	}
}

func TestResolveAccountID_FileFallback(t *testing.T) {
	t.Setenv(accountEnvKey, "env-acct")

	path := filepath.Join(t.TempDir(), "account_id.txt")
	if err := os.WriteFile(path, []byte("  file-acct\n"), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	cfg := TradingConfig{AccountFile: path}
	if got := ResolveAccountID(cfg); got != "file-acct" {
		t.Errorf("文件回退应生效: got %q", got)
	}
}

func TestResolveAccountID_EnvFallback(t *testing.T) {
	t.Setenv(accountEnvKey, "env-acct")

	cfg := TradingConfig{AccountFile: filepath.Join(t.TempDir(), "missing.txt")}
	if got := ResolveAccountID(cfg); got != "env-acct" {
		t.Errorf("环境变量回退应生效: got %q", got)
	}
}

func TestResolveAccountID_AbsentIsEmpty(t *testing.T) {
	t.Setenv(accountEnvKey, "")

	cfg := TradingConfig{AccountFile: filepath.Join(t.TempDir(), "missing.txt")}
	if got := ResolveAccountID(cfg); got != "" {
		t.Errorf("全部缺失时应返回空串: got %q", got)
	}
}
