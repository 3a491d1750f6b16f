// Package ethereum connects presalebot to the sale contract through
// go-ethereum: a wallet session, typed contract calls and deployment.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/presalebot/internal/crypto"
	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the node API the contract wrapper needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Contract is a typed wrapper around the deployed sale contract. It
// implements domain.ContractClient.
type Contract struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	backend  Backend
	signer   *crypto.Signer
}

var _ domain.ContractClient = (*Contract)(nil)

// NewContract binds the sale contract at address. Reads are issued from the
// signer's address and writes are signed by it.
func NewContract(address string, backend Backend, signer *crypto.Signer) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("ethereum: contract address %q is not a hex address", address)
	}
	parsed, err := ParsedSaleABI()
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(address)
	return &Contract{
		abi:      parsed,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
		backend:  backend,
		signer:   signer,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() string {
	return c.address.Hex()
}

// ──────────────────────────────────────────────
//  Read methods
// ──────────────────────────────────────────────

func (c *Contract) call(ctx context.Context, method string) (any, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: c.signer.Address()}
	if err := c.contract.Call(opts, &out, method); err != nil {
		return nil, fmt.Errorf("ethereum: call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ethereum: call %s: empty result", method)
	}
	return out[0], nil
}

func (c *Contract) callUint(ctx context.Context, method string) (*big.Int, error) {
	v, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("ethereum: call %s: unexpected result type %T", method, v)
	}
	return n, nil
}

// callUint64 reads a uint256 counter. Values that do not fit are rejected
// instead of truncated.
func (c *Contract) callUint64(ctx context.Context, method string) (uint64, error) {
	n, err := c.callUint(ctx, method)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("ethereum: call %s: value %s out of range", method, n)
	}
	return n.Uint64(), nil
}

// PresaleStarted reports whether the owner has started the presale.
func (c *Contract) PresaleStarted(ctx context.Context) (bool, error) {
	v, err := c.call(ctx, "presaleStarted")
	if err != nil {
		return false, err
	}
	started, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("ethereum: call presaleStarted: unexpected result type %T", v)
	}
	return started, nil
}

// PresaleEndTime returns the presale end timestamp. It is only meaningful
// once the presale has started.
func (c *Contract) PresaleEndTime(ctx context.Context) (time.Time, error) {
	n, err := c.callUint(ctx, "presaleEnded")
	if err != nil {
		return time.Time{}, err
	}
	if !n.IsInt64() {
		return time.Time{}, fmt.Errorf("ethereum: call presaleEnded: timestamp %s out of range", n)
	}
	return time.Unix(n.Int64(), 0).UTC(), nil
}

// Owner returns the checksummed owner address.
func (c *Contract) Owner(ctx context.Context) (string, error) {
	v, err := c.call(ctx, "owner")
	if err != nil {
		return "", err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return "", fmt.Errorf("ethereum: call owner: unexpected result type %T", v)
	}
	return addr.Hex(), nil
}

// TokenIDs returns the number of tokens minted so far.
func (c *Contract) TokenIDs(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "tokenIds")
}

// MaxTokenIDs returns the collection size.
func (c *Contract) MaxTokenIDs(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "maxTokenIds")
}

// ──────────────────────────────────────────────
//  Write methods
// ──────────────────────────────────────────────

func (c *Contract) transact(ctx context.Context, value *big.Int, method string, params ...any) (domain.TxHandle, error) {
	opts, err := c.signer.TransactOpts(ctx, value)
	if err != nil {
		return nil, err
	}
	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("ethereum: send %s: %w: %w", method, domain.ErrTxFailed, err)
	}
	return &txHandle{tx: tx, backend: c.backend, transfer: c.abi.Events["Transfer"].ID}, nil
}

// PresaleMint mints one token for a whitelisted wallet during the presale.
func (c *Contract) PresaleMint(ctx context.Context, value *big.Int) (domain.TxHandle, error) {
	return c.transact(ctx, value, "presaleMint")
}

// Mint mints one token after the presale has ended.
func (c *Contract) Mint(ctx context.Context, value *big.Int) (domain.TxHandle, error) {
	return c.transact(ctx, value, "mint")
}

// StartPresale starts the presale window (owner only).
func (c *Contract) StartPresale(ctx context.Context) (domain.TxHandle, error) {
	return c.transact(ctx, nil, "startPresale")
}

// txHandle awaits a submitted transaction.
type txHandle struct {
	tx       *types.Transaction
	backend  bind.DeployBackend
	transfer common.Hash
}

func (h *txHandle) Hash() string {
	return h.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined or ctx is done. A mined but
// reverted transaction returns its receipt together with
// domain.ErrTxReverted.
func (h *txHandle) Wait(ctx context.Context) (domain.Receipt, error) {
	r, err := bind.WaitMined(ctx, h.backend, h.tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Receipt{TxHash: h.Hash()}, fmt.Errorf("ethereum: wait %s: %w", h.Hash(), err)
		}
		return domain.Receipt{TxHash: h.Hash()}, fmt.Errorf("ethereum: wait %s: %w: %w", h.Hash(), domain.ErrTxFailed, err)
	}
	receipt := toReceipt(r, h.transfer)
	if !receipt.Success {
		return receipt, fmt.Errorf("ethereum: tx %s: %w: %w", receipt.TxHash, domain.ErrTxFailed, domain.ErrTxReverted)
	}
	return receipt, nil
}

// toReceipt converts a node receipt, collecting token ids minted by
// Transfer(0x0, to, id) logs.
func toReceipt(r *types.Receipt, transferID common.Hash) domain.Receipt {
	out := domain.Receipt{
		TxHash:  r.TxHash.Hex(),
		GasUsed: r.GasUsed,
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	for _, l := range r.Logs {
		if l == nil || len(l.Topics) != 4 || l.Topics[0] != transferID {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		out.MintedTokenIDs = append(out.MintedTokenIDs, new(big.Int).SetBytes(l.Topics[3].Bytes()).Uint64())
	}
	return out
}
