package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"firstboard/internal/store"
)

// Service 负责持久化运行事件，作为选股、下单与风控动作的审计流水。
// 写入失败只记日志不回传，事件流水不能反过来阻断交易主流程。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化事件流水，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS journal_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_events_type ON journal_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSelection 记录一次选股结果。
func (s *Service) RecordSelection(ctx context.Context, date string, universe int, codes []string) {
	if err := s.Record(ctx, Event{
		Type:      EventSelection,
		Timestamp: time.Now().UTC(),
		Payload:   SelectionPayload{Date: date, Universe: universe, Codes: codes},
	}); err != nil {
		s.logger.Warn("记录选股事件失败", zap.Error(err))
	}
}

// RecordOrderPlaced 记录一笔已受理的买入委托。
func (s *Service) RecordOrderPlaced(ctx context.Context, stage, code string, price float64, volume, orderID int64) {
	if err := s.Record(ctx, Event{
		Type:      EventOrderPlaced,
		Timestamp: time.Now().UTC(),
		Payload: OrderPlacedPayload{
			Code:    code,
			Price:   price,
			Volume:  volume,
			OrderID: orderID,
			Stage:   stage,
		},
	}); err != nil {
		s.logger.Warn("记录委托事件失败", zap.Error(err))
	}
}

// RecordMorningCheck 记录早盘补单核对。
func (s *Service) RecordMorningCheck(ctx context.Context, date string, candidates int, unfilled []string, submitted int) {
	if err := s.Record(ctx, Event{
		Type:      EventMorningCheck,
		Timestamp: time.Now().UTC(),
		Payload: MorningCheckPayload{
			Date:       date,
			Candidates: candidates,
			Unfilled:   unfilled,
			Submitted:  submitted,
		},
	}); err != nil {
		s.logger.Warn("记录早盘核对事件失败", zap.Error(err))
	}
}

// RecordSell 记录一笔止盈止损卖出。
func (s *Service) RecordSell(ctx context.Context, code, reason string, price float64, volume int64, pnlRate float64, orderID int64) {
	if err := s.Record(ctx, Event{
		Type:      EventSell,
		Timestamp: time.Now().UTC(),
		Payload: SellPayload{
			Code:    code,
			Reason:  reason,
			Price:   price,
			Volume:  volume,
			PnLRate: pnlRate,
			OrderID: orderID,
		},
	}); err != nil {
		s.logger.Warn("记录卖出事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM journal_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}
