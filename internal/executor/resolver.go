package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-curve-sniper/internal/solana"
)

// ErrAccountNotSynced means the token account never became visible on
// the queried node within the polling budget.
var ErrAccountNotSynced = errors.New("token account not synced")

// AccountResolver waits for token accounts to become visible after a
// trade. RPC nodes can lag the cluster, so a freshly created account may
// not resolve immediately.
type AccountResolver struct {
	rpc          rpcAPI
	maxAttempts  int
	pollInterval time.Duration
}

// NewAccountResolver creates a resolver with the given polling budget.
func NewAccountResolver(rpc rpcAPI, maxAttempts int, pollInterval time.Duration) *AccountResolver {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &AccountResolver{rpc: rpc, maxAttempts: maxAttempts, pollInterval: pollInterval}
}

// WaitBalance polls until the token account resolves and returns its
// balance in base units.
func (r *AccountResolver) WaitBalance(ctx context.Context, tokenAccount solana.Pubkey) (uint64, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(r.pollInterval):
			}
		}

		amount, _, err := r.rpc.GetTokenAccountBalance(ctx, tokenAccount.String())
		if err == nil {
			return amount, nil
		}
		lastErr = err
	}

	return 0, fmt.Errorf("%w after %d attempts: %v", ErrAccountNotSynced, r.maxAttempts, lastErr)
}

// WaitVisible polls until the account exists on the queried node.
func (r *AccountResolver) WaitVisible(ctx context.Context, account solana.Pubkey) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.pollInterval):
			}
		}

		info, err := r.rpc.GetAccountInfo(ctx, account.String())
		if err == nil && info != nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrAccountNotSynced, account)
}
