package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/storage"
)

// DetectionStore is the ClickHouse-backed detection ledger. Every
// transport sighting is recorded, duplicates included, so transports
// can be compared on first-seen latency afterwards.
type DetectionStore struct {
	conn *Conn
}

var _ storage.DetectionStore = (*DetectionStore)(nil)

// NewDetectionStore creates a DetectionStore on an existing connection.
func NewDetectionStore(conn *Conn) *DetectionStore {
	return &DetectionStore{conn: conn}
}

// RecordDetection appends one sighting.
func (s *DetectionStore) RecordDetection(ctx context.Context, rec domain.DetectionRecord) error {
	if rec.Mint == "" || rec.Transport == "" {
		return fmt.Errorf("%w: mint and transport are required", storage.ErrInvalidInput)
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO detections (mint, signature, transport, slot, observed_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Mint, rec.Signature, rec.Transport, uint64(rec.Slot), rec.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// DetectionsForMint returns all sightings of a mint in observation order.
func (s *DetectionStore) DetectionsForMint(ctx context.Context, mint string) ([]domain.DetectionRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, signature, transport, slot, observed_at
		FROM detections
		WHERE mint = ?
		ORDER BY observed_at ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query detections for mint: %w", err)
	}
	defer rows.Close()

	var out []domain.DetectionRecord
	for rows.Next() {
		var rec domain.DetectionRecord
		var slot uint64
		if err := rows.Scan(&rec.Mint, &rec.Signature, &rec.Transport, &slot, &rec.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		rec.Slot = int64(slot)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return out, nil
}

// TransportLead is the first-seen time of one transport for a mint.
type TransportLead struct {
	Transport string
	FirstSeen time.Time
	Sightings uint64
}

// FirstSeenByTransport aggregates the earliest sighting per transport
// for a mint, fastest first.
func (s *DetectionStore) FirstSeenByTransport(ctx context.Context, mint string) ([]TransportLead, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT transport, min(observed_at) AS first_seen, count() AS sightings
		FROM detections
		WHERE mint = ?
		GROUP BY transport
		ORDER BY first_seen ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query first seen: %w", err)
	}
	defer rows.Close()

	var out []TransportLead
	for rows.Next() {
		var lead TransportLead
		if err := rows.Scan(&lead.Transport, &lead.FirstSeen, &lead.Sightings); err != nil {
			return nil, fmt.Errorf("scan first seen: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate first seen: %w", err)
	}
	return out, nil
}
