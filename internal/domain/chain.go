package domain

import (
	"context"
	"math/big"
	"time"
)

// Receipt is the confirmation outcome of a submitted transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
	// MintedTokenIDs lists tokens the transaction minted (Transfer from the
	// zero address).
	MintedTokenIDs []uint64
}

// TxHandle is a submitted transaction that can be awaited.
type TxHandle interface {
	Hash() string
	Wait(ctx context.Context) (Receipt, error)
}

// ContractClient is the typed surface of the NFT sale contract.
type ContractClient interface {
	PresaleStarted(ctx context.Context) (bool, error)
	PresaleEndTime(ctx context.Context) (time.Time, error)
	Owner(ctx context.Context) (string, error)
	TokenIDs(ctx context.Context) (uint64, error)
	PresaleMint(ctx context.Context, value *big.Int) (TxHandle, error)
	Mint(ctx context.Context, value *big.Int) (TxHandle, error)
	StartPresale(ctx context.Context) (TxHandle, error)
}

// WalletInfo describes a connected wallet.
type WalletInfo struct {
	Address string
	ChainID int64
}

// WalletSession connects a signing wallet to the chain. Connect fails with
// ErrNetworkMismatch when the node is not on the expected chain.
type WalletSession interface {
	Connect(ctx context.Context) (WalletInfo, error)
	Address() string
}
