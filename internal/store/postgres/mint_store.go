package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// MintStore implements domain.MintStore.
type MintStore struct {
	pool *pgxpool.Pool
}

// NewMintStore creates a new MintStore backed by the given connection pool.
func NewMintStore(pool *pgxpool.Pool) *MintStore {
	return &MintStore{pool: pool}
}

// Create inserts a dispatched write, normally in the pending state.
func (s *MintStore) Create(ctx context.Context, rec domain.MintRecord) error {
	value := rec.ValueWei
	if value == "" {
		value = "0"
	}

	const query = `
		INSERT INTO mints (
			id, wallet, kind, tx_hash, value_wei, status,
			block_number, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, NOW())`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Wallet, string(rec.Kind), rec.TxHash, value,
		string(rec.Status), int64(rec.BlockNumber), rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create mint %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus records the outcome of a mint. errMsg is stored for failed
// mints and cleared otherwise.
func (s *MintStore) UpdateStatus(ctx context.Context, id string, status domain.MintStatus, blockNumber uint64, errMsg string) error {
	const query = `
		UPDATE mints
		SET status = $1, block_number = $2, error = $3, updated_at = NOW()
		WHERE id = $4`

	tag, err := s.pool.Exec(ctx, query, string(status), int64(blockNumber), errMsg, id)
	if err != nil {
		return fmt.Errorf("postgres: update mint status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update mint status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

const mintSelectCols = `id, wallet, kind, tx_hash, value_wei::text, status,
	block_number, error, created_at, updated_at`

func scanMint(scanner interface{ Scan(dest ...any) error }) (domain.MintRecord, error) {
	var rec domain.MintRecord
	var kind, status string
	var block int64
	err := scanner.Scan(
		&rec.ID, &rec.Wallet, &kind, &rec.TxHash, &rec.ValueWei, &status,
		&block, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.MintRecord{}, err
	}
	rec.Kind = domain.MintKind(kind)
	rec.Status = domain.MintStatus(status)
	rec.BlockNumber = uint64(block)
	return rec, nil
}

// GetByID returns one mint record or domain.ErrNotFound.
func (s *MintStore) GetByID(ctx context.Context, id string) (domain.MintRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+mintSelectCols+` FROM mints WHERE id = $1`, id)
	rec, err := scanMint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MintRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MintRecord{}, fmt.Errorf("postgres: get mint %s: %w", id, err)
	}
	return rec, nil
}

// ListByWallet returns the wallet's mints, newest first. Wallets compare
// case-insensitively.
func (s *MintStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.MintRecord, error) {
	query, args := listQuery(
		`SELECT `+mintSelectCols+` FROM mints WHERE lower(wallet) = lower($1)`,
		[]any{wallet}, opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list mints %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.MintRecord
	for rows.Next() {
		rec, err := scanMint(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan mint: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list mints rows: %w", err)
	}
	return out, nil
}

var _ domain.MintStore = (*MintStore)(nil)
