package sale

import (
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// Machine owns the current SaleStatus and applies chain observations under
// guarded transitions:
//
//   - every observation carries a sequence number issued by NextSeq before the
//     chain read started; a read that started before the last applied read of
//     the same field is dropped, so a slow tick cannot overwrite a fresher one
//   - PresaleStarted never regresses from true to false
//   - MintedCount never decreases
//   - at most one action is in flight (IsLoading)
//
// All methods are safe for concurrent use and return snapshots by value.
type Machine struct {
	mu     sync.Mutex
	status domain.SaleStatus
	now    func() time.Time

	issued     uint64
	startedSeq uint64
	endSeq     uint64
	ownerSeq   uint64
	mintedSeq  uint64
}

// NewMachine returns a Machine in the disconnected state. A nil clock uses
// time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{now: now}
}

// NextSeq issues the sequence number for a chain read that is about to start.
func (m *Machine) NextSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return m.issued
}

// Snapshot returns a copy of the current status.
func (m *Machine) Snapshot() domain.SaleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected marks the wallet as connected. Switching to a different address
// clears the ownership flag until it is observed again.
func (m *Machine) Connected(wallet string) domain.SaleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.EqualFold(m.status.Wallet, wallet) {
		m.status.IsOwner = false
		m.ownerSeq = 0
	}
	m.status.WalletConnected = true
	m.status.Wallet = wallet
	m.touch(0)
	return m.status
}

// Disconnected clears the wallet-scoped fields. Chain-scoped fields are kept.
func (m *Machine) Disconnected() domain.SaleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.WalletConnected = false
	m.status.Wallet = ""
	m.status.IsOwner = false
	m.status.IsLoading = false
	m.ownerSeq = 0
	m.touch(0)
	return m.status
}

// ObserveStarted applies a presaleStarted() read.
func (m *Machine) ObserveStarted(seq uint64, started bool) (domain.SaleStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.startedSeq {
		return m.status, false
	}
	m.startedSeq = seq
	if m.status.PresaleStarted && !started {
		return m.status, false
	}
	changed := m.status.PresaleStarted != started
	m.status.PresaleStarted = started
	m.touch(seq)
	return m.status, changed
}

// ObserveEndTime applies a presaleEnded() read.
func (m *Machine) ObserveEndTime(seq uint64, end time.Time) (domain.SaleStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.endSeq {
		return m.status, false
	}
	m.endSeq = seq
	changed := !m.status.PresaleEndTime.Equal(end)
	m.status.PresaleEndTime = end
	m.touch(seq)
	return m.status, changed
}

// ObserveOwner applies an owner() comparison. It is ignored while no wallet
// is connected.
func (m *Machine) ObserveOwner(seq uint64, isOwner bool) (domain.SaleStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.WalletConnected || seq < m.ownerSeq {
		return m.status, false
	}
	m.ownerSeq = seq
	changed := m.status.IsOwner != isOwner
	m.status.IsOwner = isOwner
	m.touch(seq)
	return m.status, changed
}

// ObserveMinted applies a tokenIds() read.
func (m *Machine) ObserveMinted(seq uint64, count uint64) (domain.SaleStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.mintedSeq || count < m.status.MintedCount {
		return m.status, false
	}
	m.mintedSeq = seq
	changed := m.status.MintedCount != count
	m.status.MintedCount = count
	m.touch(seq)
	return m.status, changed
}

// BeginAction marks an action as in flight.
func (m *Machine) BeginAction() (domain.SaleStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.IsLoading {
		return m.status, domain.ErrActionInFlight
	}
	m.status.IsLoading = true
	m.touch(0)
	return m.status, nil
}

// EndAction clears the in-flight marker.
func (m *Machine) EndAction() domain.SaleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.IsLoading = false
	m.touch(0)
	return m.status
}

// Restore seeds the chain-scoped fields from a cached status. It only fills
// a machine that has not applied any observation yet.
func (m *Machine) Restore(s domain.SaleStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedSeq != 0 || m.mintedSeq != 0 || m.endSeq != 0 {
		return
	}
	m.status.PresaleStarted = s.PresaleStarted
	m.status.PresaleEndTime = s.PresaleEndTime
	m.status.MintedCount = s.MintedCount
	m.status.UpdatedAt = s.UpdatedAt
}

func (m *Machine) touch(seq uint64) {
	if seq > m.status.Seq {
		m.status.Seq = seq
	}
	m.status.UpdatedAt = m.now()
}
