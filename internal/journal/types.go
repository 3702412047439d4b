package journal

import "time"

// EventType 表示运行日志事件类型。
type EventType string

const (
	EventSelection    EventType = "selection"
	EventOrderPlaced  EventType = "order_placed"
	EventMorningCheck EventType = "morning_check"
	EventSell         EventType = "sell"
	EventError        EventType = "error"
)

// Event 封装通用运行事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SelectionPayload 记录一次选股结果。
type SelectionPayload struct {
	Date     string   `json:"date"`
	Universe int      `json:"universe"`
	Codes    []string `json:"codes"`
}

// OrderPlacedPayload 记录一笔已受理的买入委托。
type OrderPlacedPayload struct {
	Code    string  `json:"code"`
	Price   float64 `json:"price"`
	Volume  int64   `json:"volume"`
	OrderID int64   `json:"order_id"`
	Stage   string  `json:"stage"` // night | morning
}

// MorningCheckPayload 记录早盘补单核对结果。
type MorningCheckPayload struct {
	Date       string   `json:"date"`
	Candidates int      `json:"candidates"`
	Unfilled   []string `json:"unfilled"`
	Submitted  int      `json:"submitted"`
}

// SellPayload 记录一笔止盈止损卖出。
type SellPayload struct {
	Code    string  `json:"code"`
	Reason  string  `json:"reason"` // stop_profit | stop_loss
	Price   float64 `json:"price"`
	Volume  int64   `json:"volume"`
	PnLRate float64 `json:"pnl_rate"`
	OrderID int64   `json:"order_id"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
