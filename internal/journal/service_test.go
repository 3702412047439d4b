package journal

import (
	"context"
	"testing"

	"firstboard/internal/config"
	"firstboard/internal/store"
)

func newTestService(t *testing.T) *Service {
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

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("初始化事件流水失败: %v", err)
	}
	return svc
}

func TestRecordAndListByType(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordSelection(ctx, "2026-08-21", 5000, []string{"300001.SZ"})
	svc.RecordOrderPlaced(ctx, "night", "300001.SZ", 14.40, 2600, 42)
	svc.RecordSell(ctx, "300001.SZ", "stop_loss", 13.0, 2600, -0.03, 43)

	orders, err := svc.ListEvents(ctx, EventOrderPlaced, 10)
	if err != nil {
		t.Fatalf("查询事件失败: %v", err)
	}
	if len(orders) != 1 || orders[0].Type != EventOrderPlaced {
		t.Errorf("应只有1条委托事件: got %d", len(orders))
	}

	all, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("查询全部事件失败: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("应有3条事件: got %d", len(all))
	}
	// 按写入倒序返回
	if all[0].Type != EventSell {
		t.Errorf("最新事件应排在最前: got %s", all[0].Type)
	}
}
