package order

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Translate 把界面操作映射为有符号的交易指令。纯函数，不做任何数值校验，
// 数量、资金是否充足、symbol 是否有效均由服务端判定。
//
// 未知 Action 属于编程错误，直接 panic。
func Translate(action Action, symbolID, rawAmount float64, identity string) Request {
	if !action.valid() {
		panic(fmt.Sprintf("order: unreachable action %q", string(action)))
	}

	amount := math.Abs(rawAmount)
	if !action.Inbound() {
		amount = -amount
	}
	// -0 与 0 在线上格式中保持一致
	if amount == 0 {
		amount = 0
	}

	return Request{
		Username: identity,
		SymbolID: symbolID,
		Amount:   amount,
		IsCash:   action.IsCash(),
	}
}

// Coerce 把表单原始输入转成数值：空白视为 0，无法解析的值为 NaN 并原样透传。
func Coerce(symbolRaw, amountRaw interface{}) (float64, float64) {
	return toNumber(symbolRaw), toNumber(amountRaw)
}

func toNumber(v interface{}) float64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0
		}
		v = s
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return n
}
