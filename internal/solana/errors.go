package solana

import (
	"errors"
	"strings"
)

// Client errors surfaced to callers for retry classification.
var (
	// ErrRateLimited is returned when the RPC node responds with HTTP 429.
	ErrRateLimited = errors.New("rate limited (429)")

	// ErrBlockhashNotFound is returned when the node rejects a transaction
	// because its recent blockhash has expired or is unknown.
	ErrBlockhashNotFound = errors.New("blockhash not found")

	// ErrNodeUnavailable covers transport-level failures reaching the node.
	ErrNodeUnavailable = errors.New("rpc node unavailable")
)

// IsTransient reports whether an RPC error is worth retrying with a fresh
// blockhash: rate limits, expired blockhashes, timeouts, and node outages.
// Explicit on-chain program rejections are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBlockhashNotFound) || errors.Is(err, ErrNodeUnavailable) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"blockhash not found",
		"rate limited",
		"429",
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"node is behind",
		"unhealthy",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
