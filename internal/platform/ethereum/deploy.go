package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/presalebot/internal/crypto"
	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract as written by hardhat
// (artifacts/contracts/<Name>.sol/<Name>.json).
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// LoadArtifact reads and decodes a hardhat artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ethereum: read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes a hardhat artifact document.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ethereum: decode artifact: %w", err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("ethereum: artifact %q has no abi", raw.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("ethereum: parse artifact abi: %w", err)
	}
	code := strings.TrimSpace(raw.Bytecode)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("ethereum: artifact %q has no bytecode", raw.ContractName)
	}
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("ethereum: decode artifact bytecode: %w", err)
	}
	return &Artifact{ContractName: raw.ContractName, ABI: parsed, Bytecode: bytecode}, nil
}

// Deployer creates sale contracts from compiled artifacts.
type Deployer struct {
	backend Backend
	signer  *crypto.Signer
	logger  *slog.Logger
}

// NewDeployer returns a Deployer signing with signer.
func NewDeployer(backend Backend, signer *crypto.Signer, logger *slog.Logger) *Deployer {
	return &Deployer{
		backend: backend,
		signer:  signer,
		logger:  logger.With(slog.String("component", "deployer")),
	}
}

// Deploy submits the contract creation with (baseURI, whitelist) constructor
// arguments and waits until the code is on chain. There is no retry: a
// failed deployment is returned to the caller.
func (d *Deployer) Deploy(ctx context.Context, art *Artifact, baseURI, whitelist string) (domain.Deployment, error) {
	if !common.IsHexAddress(whitelist) {
		return domain.Deployment{}, fmt.Errorf("ethereum: deploy: whitelist %q is not a hex address", whitelist)
	}
	opts, err := d.signer.TransactOpts(ctx, nil)
	if err != nil {
		return domain.Deployment{}, err
	}

	addr, tx, _, err := bind.DeployContract(opts, art.ABI, art.Bytecode, d.backend, baseURI, common.HexToAddress(whitelist))
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("ethereum: deploy %s: %w: %w", art.ContractName, domain.ErrTxFailed, err)
	}
	d.logger.InfoContext(ctx, "deployment submitted",
		slog.String("contract", art.ContractName),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("address", addr.Hex()),
	)

	if _, err := bind.WaitDeployed(ctx, d.backend, tx); err != nil {
		return domain.Deployment{}, fmt.Errorf("ethereum: wait deployed %s: %w: %w", tx.Hash().Hex(), domain.ErrTxFailed, err)
	}

	return domain.Deployment{
		Address:   addr.Hex(),
		TxHash:    tx.Hash().Hex(),
		ChainID:   d.signer.ChainID(),
		BaseURI:   baseURI,
		Whitelist: common.HexToAddress(whitelist).Hex(),
	}, nil
}
