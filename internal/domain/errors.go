package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrNetworkMismatch    = errors.New("wallet connected to the wrong network")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrActionInFlight     = errors.New("another action is in flight")
	ErrActionNotOffered   = errors.New("action not offered in the current sale phase")
	ErrTxFailed           = errors.New("transaction failed")
	ErrTxReverted         = errors.New("transaction reverted")
	ErrNotOwner           = errors.New("caller is not the contract owner")
	ErrInvalidTokenID     = errors.New("invalid token id")
)
