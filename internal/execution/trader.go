package execution

import (
	"context"

	"hft-terminal/internal/order"
)

// Trader 抽象交易执行，便于界面层替换实现。
type Trader interface {
	Execute(ctx context.Context, req order.Request) (Result, error)
	Submit(ctx context.Context, action order.Action, symbolID, amount float64) (Result, error)
}

var _ Trader = (*Executor)(nil)
