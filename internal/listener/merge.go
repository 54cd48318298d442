package listener

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// DetectionSink receives every transport sighting, including duplicates,
// for latency comparison between transports.
type DetectionSink interface {
	RecordDetection(ctx context.Context, rec domain.DetectionRecord) error
}

// sighting is the winning transport and time for one mint.
type sighting struct {
	transport domain.Transport
	at        time.Time
}

// Merger fans in multiple listeners and deduplicates by mint: the first
// transport to report a token wins, later sightings are dropped.
type Merger struct {
	listeners []Listener
	sink      DetectionSink // optional
	logger    *log.Logger

	onDuplicate func(transport domain.Transport, lag time.Duration) // optional metrics hook
}

// NewMerger creates a merger over the given listeners.
func NewMerger(listeners []Listener, sink DetectionSink, logger *log.Logger) *Merger {
	return &Merger{listeners: listeners, sink: sink, logger: logger}
}

// OnDuplicate registers a hook invoked for every dropped duplicate with
// the sighting's lag behind the winning transport.
func (m *Merger) OnDuplicate(fn func(transport domain.Transport, lag time.Duration)) {
	m.onDuplicate = fn
}

// Listen starts every transport and returns the merged stream. The
// returned channel closes once all transports have stopped.
func (m *Merger) Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error) {
	out := make(chan domain.TokenCreationEvent, 256)

	var wg sync.WaitGroup
	var seenMu sync.Mutex
	seen := make(map[solana.Pubkey]sighting)

	for _, l := range m.listeners {
		ch, err := l.Listen(ctx)
		if err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(name string, ch <-chan domain.TokenCreationEvent) {
			defer wg.Done()
			for ev := range ch {
				m.record(ctx, ev)

				seenMu.Lock()
				first, dup := seen[ev.Mint]
				if !dup {
					seen[ev.Mint] = sighting{transport: ev.Transport, at: ev.ObservedAt}
				}
				seenMu.Unlock()

				if dup {
					lag := ev.ObservedAt.Sub(first.at)
					m.logger.Printf("[listener] dup %s via %s, first seen via %s %s earlier", ev.Mint, ev.Transport, first.transport, lag)
					if m.onDuplicate != nil {
						m.onDuplicate(ev.Transport, lag)
					}
					continue
				}

				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(l.Name(), ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// record writes the sighting to the detection sink when one is attached.
func (m *Merger) record(ctx context.Context, ev domain.TokenCreationEvent) {
	if m.sink == nil {
		return
	}
	rec := domain.DetectionRecord{
		Mint:       ev.Mint.String(),
		Signature:  ev.Signature,
		Transport:  string(ev.Transport),
		Slot:       ev.Slot,
		ObservedAt: ev.ObservedAt,
	}
	if err := m.sink.RecordDetection(ctx, rec); err != nil {
		m.logger.Printf("[listener] record detection: %v", err)
	}
}
