package curve

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"solana-curve-sniper/internal/solana"
)

// ErrAccountNotFound is returned when the curve account does not exist yet.
var ErrAccountNotFound = errors.New("bonding curve account not found")

// Fetcher reads bonding curve state from the chain.
type Fetcher struct {
	rpc solana.RPCClient
}

// NewFetcher creates a Fetcher backed by the given RPC client.
func NewFetcher(rpc solana.RPCClient) *Fetcher {
	return &Fetcher{rpc: rpc}
}

// Fetch retrieves and decodes the curve account at the given address.
func (f *Fetcher) Fetch(ctx context.Context, bondingCurve solana.Pubkey) (*State, error) {
	info, err := f.rpc.GetAccountInfo(ctx, bondingCurve.String())
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", bondingCurve, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, bondingCurve)
	}

	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}

	state, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", bondingCurve, err)
	}
	return state, nil
}
