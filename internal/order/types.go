package order

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Action 表示用户在终端发起的操作。
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionDeposit  Action = "DEPOSIT"
	ActionWithdraw Action = "WITHDRAW"
)

// Request 为规范化后的交易指令，即 /trade 的请求体。
// Amount 为有符号数量：正数流入用户（买入、入金），负数流出（卖出、出金）。
type Request struct {
	Username string  `json:"username"`
	SymbolID float64 `json:"symbol_id"`
	Amount   float64 `json:"amount"`
	IsCash   bool    `json:"is_cash"`
}

// MarshalJSON 把非有限数值写成 null，数值是否有效交给服务端判定。
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Username string   `json:"username"`
		SymbolID *float64 `json:"symbol_id"`
		Amount   *float64 `json:"amount"`
		IsCash   bool     `json:"is_cash"`
	}{
		Username: r.Username,
		SymbolID: finite(r.SymbolID),
		Amount:   finite(r.Amount),
		IsCash:   r.IsCash,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if v == 0 {
		v = 0
	}
	return &v
}

// ParseAction 解析界面输入的操作名，大小写不敏感。
func ParseAction(s string) (Action, error) {
	if a := Action(strings.ToUpper(strings.TrimSpace(s))); a.valid() {
		return a, nil
	}
	return "", fmt.Errorf("order: 未知操作 %q", s)
}

func (a Action) valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionDeposit, ActionWithdraw:
		return true
	}
	return false
}

// IsCash 表示该操作是否为纯资金划转。
func (a Action) IsCash() bool {
	return a == ActionDeposit || a == ActionWithdraw
}

// Inbound 表示该操作是否流入用户。
func (a Action) Inbound() bool {
	return a == ActionBuy || a == ActionDeposit
}
