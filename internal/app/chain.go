package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/presalebot/internal/crypto"
	"github.com/alanyoungcy/presalebot/internal/platform/ethereum"
)

// chainDeps is the wallet side of the application: the RPC client, the
// signer loaded from configuration and the session binding them.
type chainDeps struct {
	client  *ethclient.Client
	signer  *crypto.Signer
	session *ethereum.Session
}

func (c *chainDeps) close() {
	c.client.Close()
}

// contract binds the configured sale contract to the session's signer.
func (c *chainDeps) contract(address string) (*ethereum.Contract, error) {
	return ethereum.NewContract(address, c.client, c.signer)
}

func (a *App) dialChain(ctx context.Context) (*chainDeps, error) {
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, a.cfg.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("wallet signer: %w", err)
	}

	client, err := ethereum.Dial(ctx, a.cfg.Chain.RPCURL)
	if err != nil {
		return nil, err
	}
	session := ethereum.NewSession(client, signer, a.cfg.Chain.ChainID, a.cfg.Chain.NetworkName, a.logger)
	return &chainDeps{client: client, signer: signer, session: session}, nil
}
