package ethereum

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/alanyoungcy/presalebot/internal/crypto"
	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/ethereum/go-ethereum/ethclient"
)

// chainIDReader is the part of the node API a session needs to verify the
// network.
type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Session is a signing wallet attached to a JSON-RPC node. It implements
// domain.WalletSession.
type Session struct {
	node    chainIDReader
	signer  *crypto.Signer
	chainID int64
	network string
	logger  *slog.Logger

	mu        sync.RWMutex
	connected bool
}

// NewSession binds signer to node. The node must report chainID when
// Connect is called; network is the human name used in mismatch errors.
func NewSession(node chainIDReader, signer *crypto.Signer, chainID int64, network string, logger *slog.Logger) *Session {
	return &Session{
		node:    node,
		signer:  signer,
		chainID: chainID,
		network: network,
		logger:  logger.With(slog.String("component", "wallet_session")),
	}
}

// Dial opens an RPC client for rawURL. The caller closes it.
func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", rawURL, err)
	}
	return client, nil
}

// Connect checks that the node is on the configured chain and marks the
// wallet as connected. A different chain yields domain.ErrNetworkMismatch.
func (s *Session) Connect(ctx context.Context) (domain.WalletInfo, error) {
	id, err := s.node.ChainID(ctx)
	if err != nil {
		return domain.WalletInfo{}, fmt.Errorf("ethereum: connect: chain id: %w", err)
	}
	if id.Int64() != s.chainID {
		s.setConnected(false)
		s.logger.WarnContext(ctx, "wrong network",
			slog.Int64("chain_id", id.Int64()),
			slog.Int64("want_chain_id", s.chainID),
		)
		return domain.WalletInfo{}, fmt.Errorf("ethereum: connect: chain %d, change the network to %s (%d): %w",
			id.Int64(), s.network, s.chainID, domain.ErrNetworkMismatch)
	}

	s.setConnected(true)
	info := domain.WalletInfo{Address: s.Address(), ChainID: id.Int64()}
	s.logger.InfoContext(ctx, "wallet connected",
		slog.String("address", info.Address),
		slog.Int64("chain_id", info.ChainID),
	)
	return info, nil
}

// Address returns the checksummed signer address.
func (s *Session) Address() string {
	return s.signer.Address().Hex()
}

// Connected reports whether the last Connect succeeded.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
