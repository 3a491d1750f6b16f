// Package sale derives what a front end should offer from a SaleStatus and
// owns the guarded state machine that folds chain observations into one.
package sale

import (
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// Derive maps a status onto exactly one intent. Rules are evaluated top to
// bottom and the first match wins, so connection gates ownership and an
// in-flight action pre-empts every sale-phase branch.
func Derive(s domain.SaleStatus, now time.Time) domain.Intent {
	if !s.WalletConnected {
		return domain.IntentConnectWallet
	}
	if s.IsLoading {
		return domain.IntentBusy
	}
	if s.IsOwner && !s.PresaleStarted {
		return domain.IntentStartPresale
	}
	if !s.PresaleStarted {
		return domain.IntentPresaleNotStarted
	}
	if !s.PresaleEnded(now) {
		return domain.IntentPresaleMint
	}
	return domain.IntentPublicMint
}

// Presentation is the text and controls rendered for an intent.
type Presentation struct {
	Intent  domain.Intent   `json:"intent"`
	Title   string          `json:"title"`
	Message string          `json:"message,omitempty"`
	Actions []domain.Action `json:"actions"`
}

// Describe returns the presentation for an intent.
func Describe(i domain.Intent) Presentation {
	p := Presentation{Intent: i, Actions: i.Actions()}
	if p.Actions == nil {
		p.Actions = []domain.Action{}
	}
	switch i {
	case domain.IntentConnectWallet:
		p.Title = "Connect wallet"
	case domain.IntentBusy:
		p.Title = "Loading..."
	case domain.IntentStartPresale:
		p.Title = "Start presale"
	case domain.IntentPresaleNotStarted:
		p.Title = "Presale hasn't started"
		p.Message = "Check back once the owner opens the presale."
	case domain.IntentPresaleMint:
		p.Title = "Presale mint"
		p.Message = "Presale is live. Whitelisted addresses can mint now."
	case domain.IntentPublicMint:
		p.Title = "Public mint"
	}
	return p
}

// ActionLabel is the button text for an action.
func ActionLabel(a domain.Action) string {
	switch a {
	case domain.ActionConnect:
		return "Connect your wallet"
	case domain.ActionStartPresale:
		return "Start presale!"
	case domain.ActionPresaleMint:
		return "Presale mint 🚀"
	case domain.ActionPublicMint:
		return "Public mint 🚀"
	}
	return string(a)
}
