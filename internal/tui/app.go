package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/service"
)

// App wraps the bubbletea program.
type App struct {
	ctrl Controller
	bus  domain.SignalBus
	opts Options
}

// New creates a terminal front end over ctrl that follows updates on bus.
func New(ctrl Controller, bus domain.SignalBus, opts Options) *App {
	return &App{ctrl: ctrl, bus: bus, opts: opts}
}

// Run starts the program and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := a.bus.Subscribe(ctx, service.SaleChannel)
	if err != nil {
		return fmt.Errorf("tui: subscribe: %w", err)
	}

	p := tea.NewProgram(
		NewModel(ctx, a.ctrl, updates, a.opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
