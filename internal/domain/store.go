package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// MintStore persists dispatched contract writes.
type MintStore interface {
	Create(ctx context.Context, rec MintRecord) error
	UpdateStatus(ctx context.Context, id string, status MintStatus, blockNumber uint64, errMsg string) error
	GetByID(ctx context.Context, id string) (MintRecord, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]MintRecord, error)
}

// DeploymentStore persists contract deployments.
type DeploymentStore interface {
	Insert(ctx context.Context, d Deployment) error
	Latest(ctx context.Context, chainID int64) (Deployment, error)
}
