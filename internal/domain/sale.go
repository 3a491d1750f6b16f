package domain

import "time"

// SaleStatus is the read model the front ends render from. It is rebuilt from
// chain observations and always handed out by value.
type SaleStatus struct {
	WalletConnected bool      `json:"wallet_connected"`
	Wallet          string    `json:"wallet,omitempty"`
	IsOwner         bool      `json:"is_owner"`
	PresaleStarted  bool      `json:"presale_started"`
	PresaleEndTime  time.Time `json:"presale_end_time"`
	MintedCount     uint64    `json:"minted_count"`
	IsLoading       bool      `json:"is_loading"`
	Seq             uint64    `json:"seq"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PresaleEnded reports whether the presale window has closed at now. The end
// time only counts once the presale has started and the end time has been
// read; equality counts as ended.
func (s SaleStatus) PresaleEnded(now time.Time) bool {
	return s.PresaleStarted && s.EndTimeKnown() && !now.Before(s.PresaleEndTime)
}

// EndTimeKnown reports whether a presaleEnded() read has been applied.
func (s SaleStatus) EndTimeKnown() bool {
	return !s.PresaleEndTime.IsZero()
}

// Phase derives the coarse sale phase at now.
func (s SaleStatus) Phase(now time.Time) Phase {
	switch {
	case !s.WalletConnected:
		return PhaseDisconnected
	case !s.PresaleStarted:
		return PhaseNotStarted
	case !s.PresaleEnded(now):
		return PhasePresaleActive
	default:
		return PhasePresaleEnded
	}
}

// Phase is the coarse position of the sale as seen by a connected wallet.
type Phase string

const (
	PhaseDisconnected  Phase = "disconnected"
	PhaseNotStarted    Phase = "not_started"
	PhasePresaleActive Phase = "presale_active"
	PhasePresaleEnded  Phase = "presale_ended"
)

// Intent is the single control set a front end should present.
type Intent string

const (
	IntentConnectWallet     Intent = "connect_wallet"
	IntentBusy              Intent = "busy"
	IntentStartPresale      Intent = "start_presale"
	IntentPresaleNotStarted Intent = "presale_not_started"
	IntentPresaleMint       Intent = "presale_mint"
	IntentPublicMint        Intent = "public_mint"
)

// Action is a user-triggered operation dispatched against the wallet or the
// sale contract.
type Action string

const (
	ActionConnect      Action = "connect"
	ActionStartPresale Action = "start_presale"
	ActionPresaleMint  Action = "presale_mint"
	ActionPublicMint   Action = "public_mint"
)

// ParseAction maps a wire name onto an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionConnect, ActionStartPresale, ActionPresaleMint, ActionPublicMint:
		return a, true
	}
	return "", false
}

// Actions lists the actions an intent offers.
func (i Intent) Actions() []Action {
	switch i {
	case IntentConnectWallet:
		return []Action{ActionConnect}
	case IntentStartPresale:
		return []Action{ActionStartPresale}
	case IntentPresaleMint:
		return []Action{ActionPresaleMint}
	case IntentPublicMint:
		return []Action{ActionPublicMint}
	default:
		return nil
	}
}

// Offers reports whether a is one of the intent's actions.
func (i Intent) Offers(a Action) bool {
	for _, x := range i.Actions() {
		if x == a {
			return true
		}
	}
	return false
}
