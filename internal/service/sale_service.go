package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/notify"
	"github.com/alanyoungcy/presalebot/internal/sale"
)

// SaleChannel is the bus channel status updates are published on.
const SaleChannel = "ch:sale"

// Notifier delivers operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SaleConfig holds the tunables of a SaleService.
type SaleConfig struct {
	// Contract is the sale contract address; it keys the status cache.
	Contract string
	// MintPrice is attached to presale and public mints.
	MintPrice *big.Int
	// NetworkName is shown in network mismatch alerts.
	NetworkName string
	ConfirmWait time.Duration
	CallTimeout time.Duration
	LockTTL     time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// SaleDeps are the optional collaborators of a SaleService. Nil fields are
// skipped, except Bus which defaults to an in-process MemoryBus.
type SaleDeps struct {
	Mints    domain.MintStore
	Audit    domain.AuditStore
	Cache    domain.StatusCache
	Bus      domain.SignalBus
	Locks    domain.LockManager
	Notifier Notifier
}

// SaleUpdate is the message published on SaleChannel.
type SaleUpdate struct {
	Event  string            `json:"event,omitempty"`
	Status domain.SaleStatus `json:"status"`
	Phase  domain.Phase      `json:"phase"`
	View   sale.Presentation `json:"view"`
	At     time.Time         `json:"at"`
}

// SaleService connects the wallet, keeps the sale status fresh from chain
// reads and dispatches the actions the current intent offers.
type SaleService struct {
	contract domain.ContractClient
	wallet   domain.WalletSession
	machine  *sale.Machine
	cfg      SaleConfig
	deps     SaleDeps
	logger   *slog.Logger
	newID    func() string

	endNotified atomic.Bool
}

// NewSaleService creates a SaleService over contract and wallet.
func NewSaleService(
	contract domain.ContractClient,
	wallet domain.WalletSession,
	cfg SaleConfig,
	deps SaleDeps,
	logger *slog.Logger,
) *SaleService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MintPrice == nil {
		cfg.MintPrice = big.NewInt(10_000_000_000_000_000) // 0.01 ether
	}
	if cfg.ConfirmWait <= 0 {
		cfg.ConfirmWait = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ConfirmWait + time.Minute
	}
	if deps.Bus == nil {
		deps.Bus = NewMemoryBus()
	}
	return &SaleService{
		contract: contract,
		wallet:   wallet,
		machine:  sale.NewMachine(cfg.Now),
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With(slog.String("component", "sale_service")),
		newID:    uuid.NewString,
	}
}

// Bus returns the bus status updates are published on.
func (s *SaleService) Bus() domain.SignalBus {
	return s.deps.Bus
}

// Status returns a snapshot of the sale status.
func (s *SaleService) Status() domain.SaleStatus {
	return s.machine.Snapshot()
}

// Intent derives what the front end should offer right now.
func (s *SaleService) Intent() domain.Intent {
	return sale.Derive(s.machine.Snapshot(), s.cfg.Now())
}

// Update builds the message describing the current status.
func (s *SaleService) Update(event string) SaleUpdate {
	return s.updateFor(s.machine.Snapshot(), event)
}

func (s *SaleService) updateFor(st domain.SaleStatus, event string) SaleUpdate {
	now := s.cfg.Now()
	return SaleUpdate{
		Event:  event,
		Status: st,
		Phase:  st.Phase(now),
		View:   sale.Describe(sale.Derive(st, now)),
		At:     now,
	}
}

// Restore seeds the status from the cache so the first answers after a
// restart are not blank. A missing entry is not an error.
func (s *SaleService) Restore(ctx context.Context) error {
	if s.deps.Cache == nil {
		return nil
	}
	st, err := s.deps.Cache.Get(ctx, s.cfg.Contract)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service: restore status: %w", err)
	}
	s.machine.Restore(st)
	s.logger.InfoContext(ctx, "status restored from cache",
		slog.Bool("presale_started", st.PresaleStarted),
		slog.Uint64("minted_count", st.MintedCount),
	)
	return nil
}

// Connect connects the wallet and refreshes the chain view for it. A node
// on the wrong chain fails with domain.ErrNetworkMismatch and raises an
// alert; the status stays disconnected.
func (s *SaleService) Connect(ctx context.Context) (domain.WalletInfo, error) {
	info, err := s.wallet.Connect(ctx)
	if err != nil {
		s.machine.Disconnected()
		s.publish(ctx, "")
		if errors.Is(err, domain.ErrNetworkMismatch) {
			msg := fmt.Sprintf("Change the network to %s", s.cfg.NetworkName)
			s.logger.ErrorContext(ctx, "network mismatch", slog.String("error", err.Error()))
			s.notify(ctx, notify.EventNetworkMismatch, "Wrong network", msg)
			s.audit(ctx, notify.EventNetworkMismatch, map[string]any{"error": err.Error()})
		}
		return domain.WalletInfo{}, fmt.Errorf("service: connect: %w", err)
	}

	s.machine.Connected(info.Address)
	s.audit(ctx, "wallet_connected", map[string]any{
		"wallet":   info.Address,
		"chain_id": info.ChainID,
	})
	s.publish(ctx, "wallet_connected")

	s.RefreshPhase(ctx)
	s.RefreshMinted(ctx)
	return info, nil
}

func (s *SaleService) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// RefreshPhase reads presaleStarted and then either the owner (before the
// presale) or the end time (after it). A failed read is logged and leaves
// the field at its last value. It reports whether the presale has ended.
func (s *SaleService) RefreshPhase(ctx context.Context) bool {
	seq := s.machine.NextSeq()
	before := s.machine.Snapshot()

	rctx, cancel := s.readCtx(ctx)
	defer cancel()

	started, err := s.contract.PresaleStarted(rctx)
	if err != nil {
		s.logger.WarnContext(ctx, "read presaleStarted failed", slog.String("error", err.Error()))
		return before.PresaleEnded(s.cfg.Now())
	}
	st, changed := s.machine.ObserveStarted(seq, started)

	if !st.PresaleStarted {
		if st.WalletConnected {
			owner, err := s.contract.Owner(rctx)
			if err != nil {
				s.logger.WarnContext(ctx, "read owner failed", slog.String("error", err.Error()))
			} else {
				var ownerChanged bool
				st, ownerChanged = s.machine.ObserveOwner(seq, strings.EqualFold(owner, st.Wallet))
				changed = changed || ownerChanged
			}
		}
	} else {
		end, err := s.contract.PresaleEndTime(rctx)
		if err != nil {
			s.logger.WarnContext(ctx, "read presaleEnded failed", slog.String("error", err.Error()))
		} else {
			var endChanged bool
			st, endChanged = s.machine.ObserveEndTime(seq, end)
			changed = changed || endChanged
		}
	}

	event := ""
	if st.PresaleStarted && !before.PresaleStarted {
		event = notify.EventPresaleStarted
		s.logger.InfoContext(ctx, "presale started", slog.Time("ends_at", st.PresaleEndTime))
		msg := "Whitelisted wallets can mint now."
		if st.EndTimeKnown() {
			msg = fmt.Sprintf("Whitelisted wallets can mint until %s.", st.PresaleEndTime.Format(time.RFC1123))
		}
		s.notify(ctx, event, "Presale started", msg)
	}

	ended := st.PresaleEnded(s.cfg.Now())
	if ended && s.endNotified.CompareAndSwap(false, true) {
		if event == "" {
			event = notify.EventPresaleEnded
		}
		s.logger.InfoContext(ctx, "presale ended")
		s.notify(ctx, notify.EventPresaleEnded, "Presale ended", "Public mint is open.")
		changed = true
	}

	if changed || event != "" {
		s.publish(ctx, event)
	}
	return ended
}

// RefreshMinted reads tokenIds. A failed read is logged and the count kept.
func (s *SaleService) RefreshMinted(ctx context.Context) {
	seq := s.machine.NextSeq()

	rctx, cancel := s.readCtx(ctx)
	defer cancel()

	count, err := s.contract.TokenIDs(rctx)
	if err != nil {
		s.logger.WarnContext(ctx, "read tokenIds failed", slog.String("error", err.Error()))
		return
	}
	if _, changed := s.machine.ObserveMinted(seq, count); changed {
		s.publish(ctx, "")
	}
}

var mintKinds = map[domain.Action]domain.MintKind{
	domain.ActionPresaleMint:  domain.MintKindPresale,
	domain.ActionPublicMint:   domain.MintKindPublic,
	domain.ActionStartPresale: domain.MintKindStartPresale,
}

// Dispatch performs action if the current intent offers it. Contract writes
// hold the wallet lock and the loading flag until the transaction is
// confirmed or failed. A rejected or reverted transaction returns an error
// wrapping domain.ErrTxFailed and leaves the chain view unchanged.
func (s *SaleService) Dispatch(ctx context.Context, action domain.Action) (domain.Receipt, error) {
	if action == domain.ActionConnect {
		_, err := s.Connect(ctx)
		return domain.Receipt{}, err
	}
	kind, ok := mintKinds[action]
	if !ok {
		return domain.Receipt{}, fmt.Errorf("service: dispatch %q: %w", action, domain.ErrActionNotOffered)
	}

	st := s.machine.Snapshot()
	intent := sale.Derive(st, s.cfg.Now())
	if intent == domain.IntentBusy {
		return domain.Receipt{}, fmt.Errorf("service: dispatch %s: %w", action, domain.ErrActionInFlight)
	}
	if !intent.Offers(action) {
		return domain.Receipt{}, fmt.Errorf("service: dispatch %s while %s: %w", action, intent, domain.ErrActionNotOffered)
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, "sale:"+strings.ToLower(st.Wallet), s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.Receipt{}, fmt.Errorf("service: dispatch %s: %w: %w", action, domain.ErrActionInFlight, err)
			}
			return domain.Receipt{}, fmt.Errorf("service: dispatch %s: lock: %w", action, err)
		}
		defer unlock()
	}

	if _, err := s.machine.BeginAction(); err != nil {
		return domain.Receipt{}, fmt.Errorf("service: dispatch %s: %w", action, err)
	}
	s.publish(ctx, "")
	// Bookkeeping after submission must survive a cancelled caller.
	bg := context.WithoutCancel(ctx)
	defer func() {
		s.machine.EndAction()
		s.publish(bg, "")
	}()

	value := s.cfg.MintPrice
	if action == domain.ActionStartPresale {
		value = nil
	}
	rec := domain.MintRecord{
		ID:        s.newID(),
		Wallet:    st.Wallet,
		Kind:      kind,
		ValueWei:  "0",
		Status:    domain.MintPending,
		CreatedAt: s.cfg.Now().UTC(),
	}
	if value != nil {
		rec.ValueWei = value.String()
	}
	log := s.logger.With(slog.String("action", string(action)), slog.String("mint_id", rec.ID))

	tx, err := s.submit(ctx, action, value)
	if err != nil {
		err = asTxFailed(err)
		rec.Status = domain.MintFailed
		rec.Error = err.Error()
		s.createMint(bg, rec)
		s.failed(bg, log, rec, err)
		return domain.Receipt{}, fmt.Errorf("service: dispatch %s: %w", action, err)
	}
	rec.TxHash = tx.Hash()
	s.createMint(bg, rec)
	log.InfoContext(ctx, "transaction submitted", slog.String("tx_hash", rec.TxHash))

	wctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmWait)
	defer cancel()
	receipt, err := tx.Wait(wctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.WarnContext(bg, "confirmation not observed, mint left pending",
				slog.String("tx_hash", rec.TxHash),
				slog.String("error", err.Error()),
			)
			return receipt, fmt.Errorf("service: dispatch %s: await %s: %w", action, rec.TxHash, err)
		}
		err = asTxFailed(err)
		rec.Error = err.Error()
		s.updateMint(bg, rec.ID, domain.MintFailed, receipt.BlockNumber, rec.Error)
		s.failed(bg, log, rec, err)
		return receipt, fmt.Errorf("service: dispatch %s: %w", action, err)
	}

	s.updateMint(bg, rec.ID, domain.MintConfirmed, receipt.BlockNumber, "")
	log.InfoContext(bg, "transaction confirmed",
		slog.String("tx_hash", receipt.TxHash),
		slog.Uint64("block", receipt.BlockNumber),
	)
	s.audit(bg, "action_confirmed", map[string]any{
		"action":  string(action),
		"wallet":  rec.Wallet,
		"tx_hash": receipt.TxHash,
		"block":   receipt.BlockNumber,
		"tokens":  receipt.MintedTokenIDs,
	})

	if action == domain.ActionStartPresale {
		s.RefreshPhase(bg)
	} else {
		s.notify(bg, notify.EventMintConfirmed, "Mint confirmed",
			fmt.Sprintf("%s minted %s in tx %s", rec.Wallet, tokenList(receipt.MintedTokenIDs), receipt.TxHash))
		s.RefreshMinted(bg)
	}
	return receipt, nil
}

func (s *SaleService) submit(ctx context.Context, action domain.Action, value *big.Int) (domain.TxHandle, error) {
	switch action {
	case domain.ActionStartPresale:
		return s.contract.StartPresale(ctx)
	case domain.ActionPresaleMint:
		return s.contract.PresaleMint(ctx, value)
	case domain.ActionPublicMint:
		return s.contract.Mint(ctx, value)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrActionNotOffered, action)
}

func asTxFailed(err error) error {
	if errors.Is(err, domain.ErrTxFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTxFailed, err)
}

func tokenList(ids []uint64) string {
	if len(ids) == 0 {
		return "a token"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return "token " + strings.Join(parts, ", ")
}

func (s *SaleService) failed(ctx context.Context, log *slog.Logger, rec domain.MintRecord, err error) {
	log.ErrorContext(ctx, "transaction failed",
		slog.String("tx_hash", rec.TxHash),
		slog.String("error", err.Error()),
	)
	s.audit(ctx, "action_failed", map[string]any{
		"kind":    string(rec.Kind),
		"wallet":  rec.Wallet,
		"tx_hash": rec.TxHash,
		"error":   err.Error(),
	})
	s.notify(ctx, notify.EventMintFailed, "Transaction failed",
		fmt.Sprintf("%s for %s: %v", rec.Kind, rec.Wallet, err))
}

func (s *SaleService) createMint(ctx context.Context, rec domain.MintRecord) {
	if s.deps.Mints == nil {
		return
	}
	if err := s.deps.Mints.Create(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "record mint failed", slog.String("mint_id", rec.ID), slog.String("error", err.Error()))
	}
}

func (s *SaleService) updateMint(ctx context.Context, id string, status domain.MintStatus, block uint64, errMsg string) {
	if s.deps.Mints == nil {
		return
	}
	if err := s.deps.Mints.UpdateStatus(ctx, id, status, block, errMsg); err != nil {
		s.logger.WarnContext(ctx, "update mint failed", slog.String("mint_id", id), slog.String("error", err.Error()))
	}
}

func (s *SaleService) audit(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *SaleService) notify(ctx context.Context, event, title, message string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// publish caches the current status and fans it out on SaleChannel.
func (s *SaleService) publish(ctx context.Context, event string) {
	st := s.machine.Snapshot()
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, s.cfg.Contract, st); err != nil {
			s.logger.WarnContext(ctx, "cache status failed", slog.String("error", err.Error()))
		}
	}
	payload, err := json.Marshal(s.updateFor(st, event))
	if err != nil {
		s.logger.ErrorContext(ctx, "encode status update failed", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Bus.Publish(ctx, SaleChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish status failed", slog.String("error", err.Error()))
	}
}
