package postgres

import (
	"context"
	"fmt"

	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/storage"
)

// TradeStore is the Postgres-backed trade ledger.
type TradeStore struct {
	pool *Pool
}

var _ storage.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a TradeStore on an existing pool.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const insertTradeSQL = `
INSERT INTO trades (mint, side, signature, price, lamports, token_amount, exit_reason, attempts, executed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// RecordTrade appends one executed trade. Replays of the same
// transaction signature return storage.ErrDuplicateKey.
func (s *TradeStore) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	if rec.Mint == "" || rec.Signature == "" {
		return fmt.Errorf("%w: mint and signature are required", storage.ErrInvalidInput)
	}
	if rec.Side != "buy" && rec.Side != "sell" {
		return fmt.Errorf("%w: side must be buy or sell, got %q", storage.ErrInvalidInput, rec.Side)
	}

	_, err := s.pool.Exec(ctx, insertTradeSQL,
		rec.Mint, rec.Side, rec.Signature, rec.Price,
		int64(rec.Lamports), int64(rec.TokenAmount),
		rec.ExitReason, rec.Attempts, rec.ExecutedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: signature %s", storage.ErrDuplicateKey, rec.Signature)
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

const selectTradeColumns = `
SELECT mint, side, signature, price, lamports, token_amount, exit_reason, attempts, executed_at
FROM trades`

// TradesForMint returns all trades for a mint in execution order.
func (s *TradeStore) TradesForMint(ctx context.Context, mint string) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, selectTradeColumns+`
WHERE mint = $1
ORDER BY executed_at ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query trades for mint: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentTrades returns the newest trades first.
func (s *TradeStore) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectTradeColumns+`
ORDER BY executed_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var lamports, tokenAmount int64
		if err := rows.Scan(&rec.Mint, &rec.Side, &rec.Signature, &rec.Price,
			&lamports, &tokenAmount, &rec.ExitReason, &rec.Attempts, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Lamports = uint64(lamports)
		rec.TokenAmount = uint64(tokenAmount)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}
