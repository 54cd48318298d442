// Package storage defines the append-only ledgers the bot writes to:
// executed trades and transport detection timings. Postgres and
// ClickHouse implementations live in subpackages, with in-memory
// fallbacks here for runs without a database.
package storage

import (
	"context"

	"solana-curve-sniper/internal/domain"
)

// TradeStore persists executed trades.
type TradeStore interface {
	RecordTrade(ctx context.Context, rec domain.TradeRecord) error
	TradesForMint(ctx context.Context, mint string) ([]domain.TradeRecord, error)
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// DetectionStore persists transport detection timings.
type DetectionStore interface {
	RecordDetection(ctx context.Context, rec domain.DetectionRecord) error
	DetectionsForMint(ctx context.Context, mint string) ([]domain.DetectionRecord, error)
}
