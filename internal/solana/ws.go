package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// SubscribeBlocks subscribes to full blocks mentioning the given program.
	SubscribeBlocks(ctx context.Context, program string) (<-chan BlockNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// BlockNotification represents a block subscription message.
type BlockNotification struct {
	Slot         int64
	BlockTime    *int64
	Transactions []BlockTransaction
}

// BlockTransaction is a single transaction within a block notification.
type BlockTransaction struct {
	Signature   string
	AccountKeys []string
	LogMessages []string
	Err         interface{}
}
