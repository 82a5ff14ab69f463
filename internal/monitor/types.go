package monitor

import (
	"encoding/json"
	"time"

	"hft-terminal/internal/order"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventAuth         EventType = "auth"
	EventTrade        EventType = "trade"
	EventBalanceError EventType = "balance_error"
	EventSession      EventType = "session"
	EventError        EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AuthPayload 记录登录/注册尝试。
type AuthPayload struct {
	Mode     string `json:"mode"`
	Username string `json:"username"`
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TradePayload 记录交易提交及服务端原始响应。
type TradePayload struct {
	Request  order.Request   `json:"request"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// BalanceErrorPayload 记录余额拉取失败。
type BalanceErrorPayload struct {
	Username string `json:"username"`
	Error    string `json:"error"`
}

// SessionPayload 记录会话开始与结束。
type SessionPayload struct {
	Username string `json:"username,omitempty"`
	Action   string `json:"action"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
