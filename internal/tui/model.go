// Package tui renders the sale intent in the terminal and binds its actions
// to keys.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/sale"
	"github.com/alanyoungcy/presalebot/internal/service"
)

// Controller is the part of the sale service the terminal drives.
type Controller interface {
	Update(event string) service.SaleUpdate
	Dispatch(ctx context.Context, action domain.Action) (domain.Receipt, error)
}

// Options configures the rendered model.
type Options struct {
	Collection string
	MaxTokens  int
	// Tick re-derives the view so the presale end is noticed without a poll.
	Tick time.Duration
}

var keyActions = map[string]domain.Action{
	"c": domain.ActionConnect,
	"s": domain.ActionStartPresale,
	"p": domain.ActionPresaleMint,
	"m": domain.ActionPublicMint,
}

// actionKey is the inverse of keyActions.
func actionKey(a domain.Action) string {
	for k, v := range keyActions {
		if v == a {
			return k
		}
	}
	return "?"
}

// Messages

type updateMsg service.SaleUpdate

type tickMsg time.Time

type actionDoneMsg struct {
	action  domain.Action
	receipt domain.Receipt
	err     error
}

// Model is the bubbletea model of the sale screen.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	updates <-chan []byte
	opts    Options

	current service.SaleUpdate
	// pending is the action this terminal dispatched and is waiting on.
	pending domain.Action
	notice  string
	failed  bool
	width   int
}

// NewModel creates a Model. updates carries JSON encoded service.SaleUpdate
// messages and may be nil.
func NewModel(ctx context.Context, ctrl Controller, updates <-chan []byte, opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Collection == "" {
		opts.Collection = "NFT"
	}
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		updates: updates,
		opts:    opts,
		current: ctrl.Update(""),
	}
}

// Init starts listening for status updates and the view tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tick(m.opts.Tick))
}

func waitForUpdate(updates <-chan []byte) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		for payload := range updates {
			var u service.SaleUpdate
			if err := json.Unmarshal(payload, &u); err == nil {
				return updateMsg(u)
			}
		}
		return nil
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) dispatch(action domain.Action) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		receipt, err := ctrl.Dispatch(ctx, action)
		return actionDoneMsg{action: action, receipt: receipt, err: err}
	}
}

// Update handles key presses, status updates and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case updateMsg:
		m.current = service.SaleUpdate(msg)
		return m, waitForUpdate(m.updates)

	case tickMsg:
		m.current = m.ctrl.Update("")
		return m, tick(m.opts.Tick)

	case actionDoneMsg:
		m.pending = ""
		m.current = m.ctrl.Update("")
		if msg.err != nil {
			m.failed = true
			m.notice = describeError(msg.action, msg.err)
			return m, nil
		}
		m.failed = false
		switch {
		case msg.action == domain.ActionConnect:
			m.notice = "Wallet connected"
		case msg.receipt.TxHash != "":
			m.notice = fmt.Sprintf("%s confirmed in block %d (%s)",
				sale.ActionLabel(msg.action), msg.receipt.BlockNumber, msg.receipt.TxHash)
		default:
			m.notice = sale.ActionLabel(msg.action) + " done"
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" {
		return m, tea.Quit
	}
	action, ok := keyActions[key]
	if !ok {
		return m, nil
	}
	if m.pending != "" {
		m.notice = "Waiting for the current transaction"
		m.failed = false
		return m, nil
	}
	if !m.current.View.Intent.Offers(action) {
		m.notice = fmt.Sprintf("%s is not available right now", sale.ActionLabel(action))
		m.failed = false
		return m, nil
	}
	m.pending = action
	m.notice = ""
	m.failed = false
	return m, m.dispatch(action)
}

func describeError(action domain.Action, err error) string {
	switch {
	case errors.Is(err, domain.ErrNetworkMismatch):
		return "Wrong network: " + err.Error()
	case errors.Is(err, domain.ErrTxReverted):
		return sale.ActionLabel(action) + " reverted"
	case errors.Is(err, domain.ErrTxFailed):
		return sale.ActionLabel(action) + " failed: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Transaction submitted, confirmation still pending"
	default:
		return err.Error()
	}
}

// View renders the screen.
func (m Model) View() string {
	u := m.current
	st := u.Status

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s presale", m.opts.Collection)))
	b.WriteString("\n")

	rows := []string{
		row("Wallet", walletLabel(st)),
		row("Phase", string(u.Phase)),
		row("Minted", m.mintedLabel(st.MintedCount)),
	}
	if st.PresaleStarted && !st.PresaleEndTime.IsZero() {
		rows = append(rows, row("Ends", endLabel(st.PresaleEndTime, u.At)))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n\n")

	if u.View.Intent == domain.IntentBusy || m.pending != "" {
		b.WriteString(busyStyle.Render(sale.Describe(domain.IntentBusy).Title))
	} else {
		b.WriteString(intentStyle.Render(u.View.Title))
	}
	b.WriteString("\n")
	if u.View.Message != "" {
		b.WriteString(messageStyle.Render(u.View.Message))
		b.WriteString("\n")
	}
	if m.pending == "" {
		for _, a := range u.View.Actions {
			b.WriteString(buttonStyle.Render(fmt.Sprintf("[%s] %s", actionKey(a), sale.ActionLabel(a))))
			b.WriteString("\n")
		}
	}

	if m.notice != "" {
		style := okStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("c connect · s start presale · p presale mint · m public mint · q quit"))
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func walletLabel(st domain.SaleStatus) string {
	if !st.WalletConnected {
		return "not connected"
	}
	if st.IsOwner {
		return st.Wallet + " (owner)"
	}
	return st.Wallet
}

func (m Model) mintedLabel(n uint64) string {
	if m.opts.MaxTokens > 0 {
		return fmt.Sprintf("%d/%d", n, m.opts.MaxTokens)
	}
	return fmt.Sprintf("%d", n)
}

func endLabel(end, now time.Time) string {
	if now.IsZero() || !now.Before(end) {
		return end.Format(time.RFC1123) + " (ended)"
	}
	return fmt.Sprintf("%s (in %s)", end.Format(time.RFC1123), end.Sub(now).Truncate(time.Second))
}
