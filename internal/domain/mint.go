package domain

import "time"

// MintKind identifies which contract write a MintRecord tracks.
type MintKind string

const (
	MintKindPresale      MintKind = "presale"
	MintKindPublic       MintKind = "public"
	MintKindStartPresale MintKind = "start_presale"
)

// MintStatus is the lifecycle of a submitted transaction.
type MintStatus string

const (
	MintPending   MintStatus = "pending"
	MintConfirmed MintStatus = "confirmed"
	MintFailed    MintStatus = "failed"
)

// MintRecord is the persisted trace of one dispatched contract write.
type MintRecord struct {
	ID          string
	Wallet      string
	Kind        MintKind
	TxHash      string
	ValueWei    string
	Status      MintStatus
	BlockNumber uint64
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Deployment records a contract creation.
type Deployment struct {
	ID        string
	Address   string
	TxHash    string
	ChainID   int64
	BaseURI   string
	Whitelist string
	CreatedAt time.Time
}

// TokenMetadata is the JSON document served for a token id.
type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}
