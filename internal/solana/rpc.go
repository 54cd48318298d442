package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface used by the bot.
type RPCClient interface {
	// GetHealth checks node health.
	GetHealth(ctx context.Context) error

	// GetLatestBlockhash retrieves a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SendTransaction submits a base64-encoded signed transaction.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses retrieves execution status for the given signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetAccountInfo retrieves account info by public key, nil if not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance retrieves the raw balance of a token account.
	GetTokenAccountBalance(ctx context.Context, tokenAccount string) (uint64, int, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)
