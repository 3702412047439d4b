package config

import (
	"os"
	"strings"
)

const accountEnvKey = "ACCOUNT_ID"

// ResolveAccountID 按优先级解析资金账号：
// 配置项 trading.account_id → 账号文件（默认 account_id.txt）→ 环境变量 ACCOUNT_ID。
// 第一个非空值生效；全部缺失时返回空串，由调用方禁用交易动作。
func ResolveAccountID(cfg TradingConfig) string {
	if id := strings.TrimSpace(cfg.AccountID); id != "" {
		return id
	}

	if cfg.AccountFile != "" {
		if raw, err := os.ReadFile(cfg.AccountFile); err == nil {
			if id := strings.TrimSpace(string(raw)); id != "" {
				return id
			}
		}
	}

	return strings.TrimSpace(os.Getenv(accountEnvKey))
}
