package storage

import "errors"

// Errors shared by the trade and detection ledgers.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key
	// already exists. The ledgers are append-only and never update.
	ErrDuplicateKey = errors.New("duplicate key: ledger is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
