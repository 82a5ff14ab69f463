package console

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run 启动终端界面，直到用户退出或 ctx 结束。
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	updates, unsubscribe := deps.Balances.Subscribe()
	defer unsubscribe()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(newModel(ctx, deps, updates), opts...)
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("console: 终端界面异常退出: %w", err)
	}
	return nil
}
