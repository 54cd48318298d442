package main

import (
	"io"
	"log"
	"testing"
	"time"

	"solana-curve-sniper/internal/domain"
)

func rec(mint, transport string, at time.Time) domain.DetectionRecord {
	return domain.DetectionRecord{Mint: mint, Transport: transport, ObservedAt: at}
}

func TestRaceTracker_CompletedRaceIsDropped(t *testing.T) {
	r := newRaceTracker(2, log.New(io.Discard, "", 0))
	base := time.Now().UTC()

	r.observe(rec("mint-a", "logs", base))
	r.observe(rec("mint-a", "geyser", base.Add(50*time.Millisecond)))

	if len(r.byMint) != 0 || len(r.firstAt) != 0 {
		t.Errorf("completed race still tracked: %d mints", len(r.byMint))
	}
}

func TestRaceTracker_StaleMintsEvicted(t *testing.T) {
	r := newRaceTracker(2, log.New(io.Discard, "", 0))
	base := time.Now().UTC()

	// Only one of two transports ever reports this mint.
	r.observe(rec("mint-a", "logs", base))

	r.observe(rec("mint-b", "logs", base.Add(r.maxAge+time.Second)))

	if _, ok := r.byMint["mint-a"]; ok {
		t.Error("stale mint not evicted")
	}
	if _, ok := r.byMint["mint-b"]; !ok {
		t.Error("fresh mint missing")
	}
}

func TestRaceTracker_DuplicateTransportIgnored(t *testing.T) {
	r := newRaceTracker(2, log.New(io.Discard, "", 0))
	base := time.Now().UTC()

	r.observe(rec("mint-a", "logs", base))
	r.observe(rec("mint-a", "logs", base.Add(time.Second)))

	if got := r.byMint["mint-a"]["logs"]; !got.Equal(base) {
		t.Errorf("first sighting overwritten: %s", got)
	}
}
