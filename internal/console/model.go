package console

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"hft-terminal/internal/auth"
	"hft-terminal/internal/balance"
	"hft-terminal/internal/execution"
	"hft-terminal/internal/order"
	"hft-terminal/internal/position"
)

type sessionControl interface {
	Identity() (string, bool)
	Clear(ctx context.Context)
}

type statusReader interface {
	Get() (string, time.Time)
}

type authenticator interface {
	Authenticate(ctx context.Context, username string, mode auth.Mode) (auth.Result, error)
}

type balanceView interface {
	Snapshot() (balance.Snapshot, bool)
	Subscribe() (<-chan struct{}, func())
	RefreshNow(ctx context.Context) (balance.Snapshot, error)
}

// Deps 为界面所需的全部组件，均可替换为测试实现。
type Deps struct {
	Session  sessionControl
	Status   statusReader
	Auth     authenticator
	Trader   execution.Trader
	Balances balanceView
	Logger   *zap.Logger
}

type snapshotMsg struct{}

type actionDoneMsg struct {
	err error
}

type model struct {
	ctx     context.Context
	deps    Deps
	updates <-chan struct{}

	input    []rune
	symbol   string
	amount   string
	hint     string
	busy     bool
	identity string
	summary  position.Summary
	status   string
	width    int
}

func newModel(ctx context.Context, deps Deps, updates <-chan struct{}) model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := model{
		ctx:     ctx,
		deps:    deps,
		updates: updates,
		symbol:  "1",
		amount:  "10",
		hint:    helpText,
	}
	return m.sync()
}

func (m model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := string(m.input)
			m.input = m.input[:0]
			return m.execute(line)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case snapshotMsg:
		return m.sync(), m.waitForUpdate()
	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.deps.Logger.Debug("终端操作返回错误", zap.Error(msg.err))
		}
		return m.sync(), nil
	}
	return m, nil
}

func (m model) execute(line string) (tea.Model, tea.Cmd) {
	c, err := parseCommand(line)
	if err != nil {
		m.hint = err.Error()
		return m, nil
	}

	switch c.kind {
	case cmdNone:
		return m, nil
	case cmdHelp:
		m.hint = helpText
		return m, nil
	case cmdQuit:
		return m, tea.Quit
	case cmdSetSymbol:
		m.symbol = *c.symbol
		return m, nil
	case cmdSetAmount:
		m.amount = *c.amount
		return m, nil
	}

	if m.busy {
		m.hint = "request in flight"
		return m, nil
	}

	_, active := m.deps.Session.Identity()
	switch c.kind {
	case cmdAuth:
		if active {
			m.hint = "already logged in, logout first"
			return m, nil
		}
		m.busy = true
		return m, m.run(func(ctx context.Context) error {
			_, err := m.deps.Auth.Authenticate(ctx, c.username, c.mode)
			return err
		})
	case cmdTrade, cmdRefresh, cmdLogout:
		if !active {
			m.hint = "login required"
			return m, nil
		}
	}

	switch c.kind {
	case cmdTrade:
		if c.symbol != nil {
			m.symbol = *c.symbol
		}
		if c.amount != nil {
			m.amount = *c.amount
		}
		symbolID, amount := order.Coerce(m.symbol, m.amount)
		action := c.action
		m.busy = true
		return m, m.run(func(ctx context.Context) error {
			_, err := m.deps.Trader.Submit(ctx, action, symbolID, amount)
			return err
		})
	case cmdRefresh:
		m.busy = true
		return m, m.run(func(ctx context.Context) error {
			_, err := m.deps.Balances.RefreshNow(ctx)
			return err
		})
	case cmdLogout:
		m.busy = true
		return m, m.run(func(ctx context.Context) error {
			m.deps.Session.Clear(ctx)
			return nil
		})
	}
	return m, nil
}

func (m model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	}
}

func (m model) waitForUpdate() tea.Cmd {
	updates := m.updates
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-updates:
			return snapshotMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// sync 从组件读取最新状态，界面本身不保存任何权威数据。
func (m model) sync() model {
	m.identity, _ = m.deps.Session.Identity()
	m.summary = position.Summarize(m.deps.Balances.Snapshot())
	m.status, _ = m.deps.Status.Get()
	return m
}
