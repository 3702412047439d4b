package ordercache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache 记录每只股票最近一次受理的买入委托，用于防止重复下单。
// 同一进程内用互斥锁串行化，进程重启依赖 SQLite 恢复。
// 只有终端确认受理后才写入，下单失败不留痕。
type Cache struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS placed_orders (
	code       TEXT PRIMARY KEY,
	trade_date TEXT NOT NULL,
	placed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_placed_orders_placed_at ON placed_orders(placed_at);
`

// New 初始化委托缓存表。
func New(db *sql.DB, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("初始化委托缓存表失败: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// AlreadyPlaced 查询指定交易日内是否已为该股票下过单。
func (c *Cache) AlreadyPlaced(code, tradeDate string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var got string
	err := c.db.QueryRow(
		"SELECT trade_date FROM placed_orders WHERE code = ?", code,
	).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询委托缓存失败: %w", err)
	}
	return got == tradeDate, nil
}

// MarkPlaced 记录一次已受理的委托，同代码覆盖旧记录。
func (c *Cache) MarkPlaced(code, tradeDate string, placedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT INTO placed_orders(code, trade_date, placed_at) VALUES(?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET trade_date=excluded.trade_date, placed_at=excluded.placed_at`,
		code, tradeDate, placedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("写入委托缓存失败: %w", err)
	}

	c.logger.Debug("委托缓存已更新",
		zap.String("code", code),
		zap.String("trade_date", tradeDate),
	)
	return nil
}

// Prune 清除超过 maxAge 的记录，防止缓存无限增长。
func (c *Cache) Prune(maxAge time.Duration, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-maxAge).Unix()
	res, err := c.db.Exec("DELETE FROM placed_orders WHERE placed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("清理委托缓存失败: %w", err)
	}

	removed, _ := res.RowsAffected()
	if removed > 0 {
		c.logger.Info("已清理过期委托缓存", zap.Int64("removed", removed))
	}
	return removed, nil
}
