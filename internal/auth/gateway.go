package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hft-terminal/internal/api"
	"hft-terminal/internal/config"
)

// Mode 区分登录与注册。
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

const (
	statusConnectionFailed = "Connection failed"
	statusUsernameRequired = "Username required"
)

// ErrUsernameRequired 表示用户名为空，请求未发出。
var ErrUsernameRequired = errors.New("auth: username required")

type authClient interface {
	Authenticate(ctx context.Context, path string, creds api.Credentials) (api.AuthResponse, error)
}

type sessionWriter interface {
	Set(ctx context.Context, identity string)
}

type statusWriter interface {
	Set(msg string)
}

// Recorder 记录认证事件，可为空。
type Recorder interface {
	RecordAuth(ctx context.Context, mode, username, userID string, authErr error)
}

// Result 为认证成功的结果。
type Result struct {
	Identity     string
	ServerUserID string
}

// Gateway 提交登录/注册请求，并据此建立或拒绝会话。
type Gateway struct {
	client   authClient
	session  sessionWriter
	status   statusWriter
	recorder Recorder
	creds    config.AuthConfig
	logger   *zap.Logger
}

// NewGateway 创建认证网关。
func NewGateway(client authClient, session sessionWriter, status statusWriter, recorder Recorder, creds config.AuthConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		client:   client,
		session:  session,
		status:   status,
		recorder: recorder,
		creds:    creds,
		logger:   logger,
	}
}

// Authenticate 登录或注册。成功时激活会话；失败时不改变身份，
// 状态栏显示服务端原始错误文本，或在请求未完成时显示通用连接失败。
func (g *Gateway) Authenticate(ctx context.Context, username string, mode Mode) (Result, error) {
	path, err := pathFor(mode)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(username) == "" {
		g.status.Set(statusUsernameRequired)
		return Result{}, ErrUsernameRequired
	}

	resp, err := g.client.Authenticate(ctx, path, api.Credentials{
		Username: username,
		Password: g.creds.Password,
		Email:    g.creds.Email,
	})
	g.record(ctx, mode, username, resp.UserID, err)
	if err != nil {
		if msg, ok := api.IsServerError(err); ok {
			g.status.Set(msg)
			g.logger.Info("认证被服务端拒绝",
				zap.String("mode", string(mode)),
				zap.String("username", username),
				zap.String("reason", msg),
			)
			return Result{}, fmt.Errorf("auth: %s 失败: %w", mode, err)
		}
		g.status.Set(statusConnectionFailed)
		g.logger.Warn("认证请求失败",
			zap.String("mode", string(mode)),
			zap.String("username", username),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("auth: %s 请求失败: %w", mode, err)
	}

	g.session.Set(ctx, username)
	g.status.Set(fmt.Sprintf("Success! ID: %s", resp.UserID))
	g.logger.Info("认证成功",
		zap.String("mode", string(mode)),
		zap.String("username", username),
		zap.String("user_id", resp.UserID),
	)

	return Result{Identity: username, ServerUserID: resp.UserID}, nil
}

func (g *Gateway) record(ctx context.Context, mode Mode, username, userID string, err error) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordAuth(ctx, string(mode), username, userID, err)
}

func pathFor(mode Mode) (string, error) {
	switch mode {
	case ModeLogin:
		return api.PathLogin, nil
	case ModeRegister:
		return api.PathRegister, nil
	default:
		return "", fmt.Errorf("auth: 未知模式 %q", mode)
	}
}
