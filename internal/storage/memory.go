package storage

import (
	"context"
	"fmt"
	"sync"

	"solana-curve-sniper/internal/domain"
)

// MemoryTradeStore is an in-process TradeStore used when no Postgres
// DSN is configured.
type MemoryTradeStore struct {
	mu     sync.Mutex
	trades []domain.TradeRecord
	seen   map[string]struct{} // by signature
}

var _ TradeStore = (*MemoryTradeStore)(nil)

// NewMemoryTradeStore creates an empty in-memory trade ledger.
func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{seen: make(map[string]struct{})}
}

func (s *MemoryTradeStore) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	if rec.Mint == "" || rec.Signature == "" {
		return fmt.Errorf("%w: mint and signature are required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[rec.Signature]; ok {
		return fmt.Errorf("%w: signature %s", ErrDuplicateKey, rec.Signature)
	}
	s.seen[rec.Signature] = struct{}{}
	s.trades = append(s.trades, rec)
	return nil
}

func (s *MemoryTradeStore) TradesForMint(ctx context.Context, mint string) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeRecord
	for _, rec := range s.trades {
		if rec.Mint == mint {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryTradeStore) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.TradeRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.trades[n-1-i]
	}
	return out, nil
}

// MemoryDetectionStore is an in-process DetectionStore used when no
// ClickHouse DSN is configured.
type MemoryDetectionStore struct {
	mu   sync.Mutex
	recs []domain.DetectionRecord
}

var _ DetectionStore = (*MemoryDetectionStore)(nil)

// NewMemoryDetectionStore creates an empty in-memory detection ledger.
func NewMemoryDetectionStore() *MemoryDetectionStore {
	return &MemoryDetectionStore{}
}

func (s *MemoryDetectionStore) RecordDetection(ctx context.Context, rec domain.DetectionRecord) error {
	if rec.Mint == "" || rec.Transport == "" {
		return fmt.Errorf("%w: mint and transport are required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *MemoryDetectionStore) DetectionsForMint(ctx context.Context, mint string) ([]domain.DetectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DetectionRecord
	for _, rec := range s.recs {
		if rec.Mint == mint {
			out = append(out, rec)
		}
	}
	return out, nil
}
