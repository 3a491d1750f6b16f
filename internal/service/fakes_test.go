package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

const (
	testWallet  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testOther   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTx struct {
	hash    string
	receipt domain.Receipt
	err     error
	release chan struct{}
	onMined func()
}

func (f *fakeTx) Hash() string { return f.hash }

func (f *fakeTx) Wait(ctx context.Context) (domain.Receipt, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.Receipt{TxHash: f.hash}, ctx.Err()
		}
	}
	if f.err == nil && f.onMined != nil {
		f.onMined()
	}
	return f.receipt, f.err
}

// fakeContract is an in-memory sale contract.
type fakeContract struct {
	mu        sync.Mutex
	started   bool
	end       time.Time
	owner     string
	minted    uint64
	readErr   map[string]error
	submitErr error
	tx        *fakeTx
	sent      []string
	values    []*big.Int
}

func newFakeContract(owner string) *fakeContract {
	return &fakeContract{owner: owner, readErr: map[string]error{}}
}

func (f *fakeContract) fail(method string, err error) {
	f.mu.Lock()
	f.readErr[method] = err
	f.mu.Unlock()
}

func (f *fakeContract) PresaleStarted(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.readErr["presaleStarted"]
}

func (f *fakeContract) PresaleEndTime(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.end, f.readErr["presaleEnded"]
}

func (f *fakeContract) Owner(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owner, f.readErr["owner"]
}

func (f *fakeContract) TokenIDs(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minted, f.readErr["tokenIds"]
}

func (f *fakeContract) send(method string, value *big.Int) (domain.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, method)
	f.values = append(f.values, value)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.tx == nil {
		return &fakeTx{hash: "0xabc", receipt: domain.Receipt{TxHash: "0xabc", BlockNumber: 1, Success: true}}, nil
	}
	return f.tx, nil
}

func (f *fakeContract) PresaleMint(_ context.Context, value *big.Int) (domain.TxHandle, error) {
	return f.send("presaleMint", value)
}

func (f *fakeContract) Mint(_ context.Context, value *big.Int) (domain.TxHandle, error) {
	return f.send("mint", value)
}

func (f *fakeContract) StartPresale(context.Context) (domain.TxHandle, error) {
	return f.send("startPresale", nil)
}

type fakeWallet struct {
	address string
	err     error
}

func (f *fakeWallet) Connect(context.Context) (domain.WalletInfo, error) {
	if f.err != nil {
		return domain.WalletInfo{}, f.err
	}
	return domain.WalletInfo{Address: f.address, ChainID: 3}, nil
}

func (f *fakeWallet) Address() string { return f.address }

type sentNote struct {
	event, title, message string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []sentNote
}

func (f *fakeNotifier) Notify(_ context.Context, event, title, message string) error {
	f.mu.Lock()
	f.notes = append(f.notes, sentNote{event, title, message})
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notes {
		out = append(out, n.event)
	}
	return out
}

type fakeMints struct {
	mu   sync.Mutex
	recs map[string]domain.MintRecord
}

func newFakeMints() *fakeMints {
	return &fakeMints{recs: map[string]domain.MintRecord{}}
}

func (f *fakeMints) Create(_ context.Context, rec domain.MintRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeMints) UpdateStatus(_ context.Context, id string, status domain.MintStatus, block uint64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status, rec.BlockNumber, rec.Error = status, block, errMsg
	f.recs[id] = rec
	return nil
}

func (f *fakeMints) GetByID(_ context.Context, id string) (domain.MintRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return domain.MintRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeMints) ListByWallet(context.Context, string, domain.ListOpts) ([]domain.MintRecord, error) {
	return nil, nil
}

func (f *fakeMints) only() (domain.MintRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recs) != 1 {
		return domain.MintRecord{}, false
	}
	for _, r := range f.recs {
		return r, true
	}
	return domain.MintRecord{}, false
}

type fakeLocks struct {
	held bool
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.held = true
	return func() { f.held = false }, nil
}

type fakeCache struct {
	mu     sync.Mutex
	status map[string]domain.SaleStatus
}

func (f *fakeCache) Set(_ context.Context, contract string, s domain.SaleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = map[string]domain.SaleStatus{}
	}
	f.status[contract] = s
	return nil
}

func (f *fakeCache) Get(_ context.Context, contract string) (domain.SaleStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.status[contract]
	if !ok {
		return domain.SaleStatus{}, domain.ErrNotFound
	}
	return s, nil
}

var errRPC = errors.New("rpc: connection reset")
