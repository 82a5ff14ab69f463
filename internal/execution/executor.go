package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hft-terminal/internal/balance"
	"hft-terminal/internal/order"
)

const statusTradeFailed = "Trade failed"

// ErrNoSession 表示没有有效会话，拒绝提交。
var ErrNoSession = errors.New("execution: no active session")

type tradeClient interface {
	Trade(ctx context.Context, req order.Request) (json.RawMessage, error)
}

type identitySource interface {
	Identity() (string, bool)
}

type refresher interface {
	RefreshNow(ctx context.Context) (balance.Snapshot, error)
}

type statusWriter interface {
	Set(msg string)
}

// Recorder 记录交易事件，可为空。
type Recorder interface {
	RecordTrade(ctx context.Context, req order.Request, response json.RawMessage, tradeErr error)
}

// Executor 提交交易指令，并在每次提交后强制刷新余额。
// 本地从不根据提交结果修改余额，一切以服务端刷新为准。
type Executor struct {
	client   tradeClient
	session  identitySource
	balances refresher
	status   statusWriter
	recorder Recorder
	logger   *zap.Logger
}

// NewExecutor 创建执行器。
func NewExecutor(client tradeClient, session identitySource, balances refresher, status statusWriter, recorder Recorder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:   client,
		session:  session,
		balances: balances,
		status:   status,
		recorder: recorder,
		logger:   logger,
	}
}

// Submit 使用当前身份翻译界面操作后提交。
func (e *Executor) Submit(ctx context.Context, action order.Action, symbolID, amount float64) (Result, error) {
	identity, ok := e.session.Identity()
	if !ok {
		return Result{}, ErrNoSession
	}
	return e.Execute(ctx, order.Translate(action, symbolID, amount, identity))
}

// Execute 提交一条交易指令。
//
// 只要响应体是合法 JSON（即便带 error 字段）都视为调用成功，原样显示在状态栏；
// 传输失败显示通用失败信息。两种情况都会立即刷新一次余额。
func (e *Executor) Execute(ctx context.Context, req order.Request) (Result, error) {
	if _, ok := e.session.Identity(); !ok {
		return Result{}, ErrNoSession
	}

	result := Result{
		Request:     req,
		SubmittedAt: time.Now().UTC(),
	}

	raw, err := e.client.Trade(ctx, req)
	if e.recorder != nil {
		e.recorder.RecordTrade(ctx, req, raw, err)
	}

	if err != nil {
		result.Status = statusTradeFailed
		e.logger.Warn("交易提交失败",
			zap.String("username", req.Username),
			zap.Float64("symbol_id", req.SymbolID),
			zap.Float64("amount", req.Amount),
			zap.Bool("is_cash", req.IsCash),
			zap.Error(err),
		)
	} else {
		result.Response = raw
		result.Status = string(raw)
		e.logger.Info("交易已提交",
			zap.String("username", req.Username),
			zap.Float64("symbol_id", req.SymbolID),
			zap.Float64("amount", req.Amount),
			zap.Bool("is_cash", req.IsCash),
			zap.ByteString("response", raw),
		)
	}
	e.status.Set(result.Status)

	result.Refreshed = e.refresh(ctx)

	if err != nil {
		return result, fmt.Errorf("execution: 提交交易失败: %w", err)
	}
	return result, nil
}

func (e *Executor) refresh(ctx context.Context) bool {
	if _, err := e.balances.RefreshNow(ctx); err != nil {
		e.logger.Debug("交易后刷新余额未生效", zap.Error(err))
		return false
	}
	return true
}
