package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hft-terminal/internal/api"
	"hft-terminal/internal/auth"
	"hft-terminal/internal/balance"
	"hft-terminal/internal/config"
	"hft-terminal/internal/console"
	"hft-terminal/internal/execution"
	"hft-terminal/internal/monitor"
	"hft-terminal/internal/session"
	"hft-terminal/internal/store"
)

// App 聚合核心依赖并驱动终端生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

type components struct {
	session  *session.Store
	status   *session.Status
	balances *balance.Sync
	gateway  *auth.Gateway
	executor *execution.Executor
	monitor  *monitor.Service
}

func newComponents(cfg *config.Config, logger *zap.Logger, st *store.Store) (*components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := api.NewClient(cfg.API, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("初始化账户服务客户端失败: %w", err)
	}

	monitorSvc, err := monitor.NewService(st, logger.Named("monitor"))
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	sessionStore := session.NewStore(st, logger.Named("session"))
	status := &session.Status{}
	balances := balance.NewSync(client, cfg.Balance.PollInterval, monitorSvc, logger.Named("balance"))

	sessionStore.Observe(balances)
	sessionStore.Observe(monitorSvc)

	return &components{
		session:  sessionStore,
		status:   status,
		balances: balances,
		gateway:  auth.NewGateway(client, sessionStore, status, monitorSvc, cfg.Auth, logger.Named("auth")),
		executor: execution.NewExecutor(client, sessionStore, balances, status, monitorSvc, logger.Named("execution")),
		monitor:  monitorSvc,
	}, nil
}

// Run 恢复会话并运行终端界面，界面退出或收到信号后返回。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易终端已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("api", a.cfg.API.BaseURL),
		zap.Duration("poll_interval", a.cfg.Balance.PollInterval),
	)

	comps, err := newComponents(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	defer comps.balances.Stop()

	if identity, ok := comps.session.Restore(ctx); ok {
		a.logger.Info("使用已保存的身份进入终端", zap.String("username", identity))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)

	if a.cfg.Monitor.Port > 0 {
		group.Go(func() error {
			return serveMonitor(groupCtx, comps.monitor, a.cfg.Monitor.Port, a.logger)
		})
	}

	group.Go(func() error {
		defer cancel()
		return console.Run(groupCtx, console.Deps{
			Session:  comps.session,
			Status:   comps.status,
			Auth:     comps.gateway,
			Trader:   comps.executor,
			Balances: comps.balances,
			Logger:   a.logger.Named("console"),
		})
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		comps.monitor.RecordError(context.WithoutCancel(ctx), "终端异常退出", err, nil)
		return fmt.Errorf("终端异常退出: %w", err)
	}

	a.logger.Info("终端收到退出信号，正在停止")
	return nil
}
