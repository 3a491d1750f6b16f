package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// DeploymentStore implements domain.DeploymentStore.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

// NewDeploymentStore creates a new DeploymentStore backed by the given
// connection pool.
func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Insert records a deployment. A second row for the same chain and address
// yields domain.ErrAlreadyExists.
func (s *DeploymentStore) Insert(ctx context.Context, d domain.Deployment) error {
	const query = `
		INSERT INTO deployments (id, address, tx_hash, chain_id, base_uri, whitelist, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, address) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		d.ID, d.Address, d.TxHash, d.ChainID, d.BaseURI, d.Whitelist, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert deployment %s: %w", d.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: insert deployment %s: %w", d.Address, domain.ErrAlreadyExists)
	}
	return nil
}

// Latest returns the most recent deployment on chainID or domain.ErrNotFound.
func (s *DeploymentStore) Latest(ctx context.Context, chainID int64) (domain.Deployment, error) {
	const query = `
		SELECT id, address, tx_hash, chain_id, base_uri, whitelist, created_at
		FROM deployments
		WHERE chain_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var d domain.Deployment
	err := s.pool.QueryRow(ctx, query, chainID).Scan(
		&d.ID, &d.Address, &d.TxHash, &d.ChainID, &d.BaseURI, &d.Whitelist, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deployment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("postgres: latest deployment %d: %w", chainID, err)
	}
	return d, nil
}

var _ domain.DeploymentStore = (*DeploymentStore)(nil)
