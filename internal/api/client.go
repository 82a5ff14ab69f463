package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"hft-terminal/internal/config"
	"hft-terminal/internal/order"
)

// Client 负责与账户服务交互。请求失败即终止，不做自动重试。
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient 根据配置创建账户服务客户端。
func NewClient(cfg config.APIConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api: base_url 不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   client,
		logger: logger,
	}, nil
}

// Authenticate 调用 /login 或 /register。
func (c *Client) Authenticate(ctx context.Context, path string, creds Credentials) (AuthResponse, error) {
	if path != PathLogin && path != PathRegister {
		return AuthResponse{}, fmt.Errorf("api: 不支持的认证接口 %s", path)
	}

	raw, status, err := c.do(ctx, http.MethodPost, path, nil, creds)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := checkServerError(raw, status); err != nil {
		return AuthResponse{}, err
	}

	var body struct {
		UserID json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return AuthResponse{}, fmt.Errorf("%w: 解析认证响应失败: %w", ErrConnection, err)
	}

	return AuthResponse{UserID: renderScalar(body.UserID)}, nil
}

// Balance 查询指定用户的余额快照。
func (c *Client) Balance(ctx context.Context, username string) (BalanceResponse, error) {
	raw, status, err := c.do(ctx, http.MethodGet, PathBalance, map[string]string{"username": username}, nil)
	if err != nil {
		return BalanceResponse{}, err
	}
	if err := checkServerError(raw, status); err != nil {
		return BalanceResponse{}, err
	}

	var body BalanceResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return BalanceResponse{}, fmt.Errorf("%w: 解析余额响应失败: %w", ErrConnection, err)
	}
	if body.Stocks == nil {
		body.Stocks = map[string]float64{}
	}
	return body, nil
}

// Trade 提交交易指令，返回紧凑化后的原始 JSON 响应体。
// 响应中的 error 字段不视为传输失败，由调用方原样展示。
func (c *Client) Trade(ctx context.Context, req order.Request) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, http.MethodPost, PathTrade, nil, req)
	if err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("%w: 压缩交易响应失败: %w", ErrConnection, err)
	}
	return json.RawMessage(compact.Bytes()), nil
}

// do 执行一次请求，仅当响应体为合法 JSON 时返回。
func (c *Client) do(ctx context.Context, method, path string, pathParams map[string]string, body interface{}) ([]byte, int, error) {
	req := c.http.R().SetContext(ctx)
	if len(pathParams) > 0 {
		req.SetPathParams(pathParams)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("账户服务请求失败",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.Bool("timeout", IsTimeout(err)),
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("%w: %s %s: %w", ErrConnection, method, path, err)
	}

	raw := bytes.TrimSpace(resp.Body())
	if !json.Valid(raw) {
		c.logger.Warn("账户服务响应不是合法 JSON",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.Int("body_size", len(raw)),
		)
		return nil, resp.StatusCode(), fmt.Errorf("%w: %s %s 返回非 JSON 响应 (status=%d)", ErrConnection, method, path, resp.StatusCode())
	}

	c.logger.Debug("账户服务请求完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", latency),
	)

	return raw, resp.StatusCode(), nil
}

// checkServerError 按照"error 字段优先于状态码"的规则判定应用级失败。
func checkServerError(raw []byte, status int) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if msg, ok := envelope["error"]; ok && truthy(msg) {
			return &ServerError{StatusCode: status, Message: renderScalar(msg)}
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: 服务端返回状态码 %d", ErrConnection, status)
	}
	return nil
}

// truthy 对齐 JS 的真值判断：null、空串、false、0 都视为未携带错误。
func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "false", "0":
		return false
	}
	return true
}

// renderScalar 字符串去掉引号，其余类型保留 JSON 文本。
func renderScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
