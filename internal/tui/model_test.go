package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/sale"
	"github.com/alanyoungcy/presalebot/internal/service"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubController struct {
	status  domain.SaleStatus
	receipt domain.Receipt
	err     error
	calls   []domain.Action
}

func (s *stubController) Update(event string) service.SaleUpdate {
	return service.SaleUpdate{
		Event:  event,
		Status: s.status,
		Phase:  s.status.Phase(testNow),
		View:   sale.Describe(sale.Derive(s.status, testNow)),
		At:     testNow,
	}
}

func (s *stubController) Dispatch(_ context.Context, a domain.Action) (domain.Receipt, error) {
	s.calls = append(s.calls, a)
	return s.receipt, s.err
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(t *testing.T, m Model, r rune) (Model, tea.Cmd) {
	t.Helper()
	result, cmd := m.Update(key(r))
	return result.(Model), cmd
}

func TestModel_ConnectKey(t *testing.T) {
	ctrl := &stubController{}
	m := NewModel(context.Background(), ctrl, nil, Options{Collection: "JohnnyTime", MaxTokens: 20})

	if !strings.Contains(m.View(), "[c] Connect your wallet") {
		t.Fatalf("View() missing connect button:\n%s", m.View())
	}

	m, cmd := press(t, m, 'c')
	if cmd == nil {
		t.Fatal("connect key returned no command")
	}
	if m.pending != domain.ActionConnect {
		t.Errorf("pending = %q, want connect", m.pending)
	}
	if !strings.Contains(m.View(), "Loading...") {
		t.Errorf("View() while pending should show Loading...:\n%s", m.View())
	}

	ctrl.status = domain.SaleStatus{WalletConnected: true, Wallet: "0xabc", IsOwner: true}
	result, _ := m.Update(cmd())
	m = result.(Model)

	if len(ctrl.calls) != 1 || ctrl.calls[0] != domain.ActionConnect {
		t.Errorf("dispatched %v, want [connect]", ctrl.calls)
	}
	view := m.View()
	for _, want := range []string{"Start presale", "[s] Start presale!", "0xabc (owner)", "Wallet connected"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_KeyNotOffered(t *testing.T) {
	ctrl := &stubController{status: domain.SaleStatus{WalletConnected: true, Wallet: "0xabc"}}
	m := NewModel(context.Background(), ctrl, nil, Options{})

	tests := []rune{'s', 'p', 'm'}
	for _, r := range tests {
		t.Run(string(r), func(t *testing.T) {
			got, cmd := press(t, m, r)
			if cmd != nil {
				t.Errorf("key %q dispatched while presale has not started", r)
			}
			if !strings.Contains(got.notice, "not available") {
				t.Errorf("notice = %q", got.notice)
			}
		})
	}
	if !strings.Contains(m.View(), "Presale hasn't started") {
		t.Errorf("View() missing not-started title:\n%s", m.View())
	}
}

func TestModel_IgnoresKeysWhilePending(t *testing.T) {
	ctrl := &stubController{status: domain.SaleStatus{
		WalletConnected: true, Wallet: "0xabc",
		PresaleStarted: true, PresaleEndTime: testNow.Add(-time.Minute),
	}}
	m := NewModel(context.Background(), ctrl, nil, Options{})

	m, cmd := press(t, m, 'm')
	if cmd == nil {
		t.Fatal("public mint key returned no command")
	}
	m, cmd = press(t, m, 'm')
	if cmd != nil {
		t.Error("second press dispatched while the first is pending")
	}
	if !strings.Contains(m.notice, "Waiting") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestModel_ActionResult(t *testing.T) {
	tests := []struct {
		name       string
		receipt    domain.Receipt
		err        error
		wantFailed bool
		want       string
	}{
		{"confirmed", domain.Receipt{TxHash: "0xfeed", BlockNumber: 7}, nil, false, "confirmed in block 7"},
		{"reverted", domain.Receipt{}, fmt.Errorf("x: %w: %w", domain.ErrTxFailed, domain.ErrTxReverted), true, "reverted"},
		{"mismatch", domain.Receipt{}, fmt.Errorf("x: %w", domain.ErrNetworkMismatch), true, "Wrong network"},
		{"pending", domain.Receipt{}, fmt.Errorf("x: %w", context.DeadlineExceeded), true, "still pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(context.Background(), &stubController{}, nil, Options{})
			m.pending = domain.ActionPresaleMint
			result, _ := m.Update(actionDoneMsg{action: domain.ActionPresaleMint, receipt: tt.receipt, err: tt.err})
			got := result.(Model)
			if got.pending != "" {
				t.Error("pending not cleared")
			}
			if got.failed != tt.wantFailed {
				t.Errorf("failed = %v, want %v", got.failed, tt.wantFailed)
			}
			if !strings.Contains(got.notice, tt.want) {
				t.Errorf("notice = %q, want it to contain %q", got.notice, tt.want)
			}
		})
	}
}

func TestModel_StatusUpdateFromBus(t *testing.T) {
	ctrl := &stubController{}
	updates := make(chan []byte, 1)
	m := NewModel(context.Background(), ctrl, updates, Options{MaxTokens: 20})

	st := domain.SaleStatus{
		WalletConnected: true, Wallet: "0xabc",
		PresaleStarted: true, PresaleEndTime: testNow.Add(5 * time.Minute),
		MintedCount: 4,
	}
	payload, err := json.Marshal(service.SaleUpdate{
		Status: st,
		Phase:  st.Phase(testNow),
		View:   sale.Describe(sale.Derive(st, testNow)),
		At:     testNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	updates <- payload

	msg := waitForUpdate(updates)()
	result, next := m.Update(msg)
	m = result.(Model)
	if next == nil {
		t.Error("no follow-up wait after an update")
	}

	view := m.View()
	for _, want := range []string{"4/20", "Presale mint", "[p] Presale mint", "in 5m0s"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(context.Background(), &stubController{}, nil, Options{})
	_, cmd := press(t, m, 'q')
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
