// Command monitor runs every configured transport side by side without
// trading and records who saw each token first. Sightings go to the
// detection ledger; per-mint latency deltas are logged as transports
// report in.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-curve-sniper/internal/config"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/listener"
	"solana-curve-sniper/internal/solana"
	"solana-curve-sniper/internal/storage"
	chstore "solana-curve-sniper/internal/storage/clickhouse"
	"solana-curve-sniper/internal/storage/migrations"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file with endpoints")
	flag.Parse()

	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags)

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.Fatalf("load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Fatalf("error: %v", err)
	}
	logger.Println("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	var store storage.DetectionStore = storage.NewMemoryDetectionStore()
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		store = chstore.NewDetectionStore(conn)
		logger.Println("detection ledger: clickhouse")
	}

	var listeners []listener.Listener
	for _, lt := range cfg.ListenerTypes {
		opts := listener.Options{
			GeyserWS: cfg.GeyserEndpoint,
			Logger:   log.New(os.Stdout, "[listener] ", log.LstdFlags),
		}
		if lt == "logs" || lt == "blocks" {
			ws, err := solana.NewWSClient(ctx, cfg.WSSEndpoint, nil)
			if err != nil {
				return fmt.Errorf("connect websocket for %s: %w", lt, err)
			}
			defer ws.Close()
			opts.WS = ws
		}
		l, err := listener.New(lt, opts)
		if err != nil {
			return err
		}
		listeners = append(listeners, l)
	}

	race := newRaceTracker(len(cfg.ListenerTypes), logger)
	merger := listener.NewMerger(listeners, racingSink{store: store, race: race}, logger)

	events, err := merger.Listen(ctx)
	if err != nil {
		return err
	}
	logger.Printf("comparing transports %v, press Ctrl-C to stop", cfg.ListenerTypes)

	for ev := range events {
		logger.Printf("new token %s %q first seen via %s", ev.Mint, ev.Symbol, ev.Transport)
	}
	return ctx.Err()
}

// racingSink forwards sightings to the ledger and the race tracker.
type racingSink struct {
	store storage.DetectionStore
	race  *raceTracker
}

func (s racingSink) RecordDetection(ctx context.Context, rec domain.DetectionRecord) error {
	s.race.observe(rec)
	return s.store.RecordDetection(ctx, rec)
}

// raceTracker collects per-mint first-seen times and logs the latency
// spread once every transport has reported. Mints a transport never
// reports are evicted after maxAge so the table stays bounded.
type raceTracker struct {
	mu         sync.Mutex
	transports int
	byMint     map[string]map[string]time.Time
	firstAt    map[string]time.Time
	maxAge     time.Duration
	logger     *log.Logger
}

func newRaceTracker(transports int, logger *log.Logger) *raceTracker {
	return &raceTracker{
		transports: transports,
		byMint:     make(map[string]map[string]time.Time),
		firstAt:    make(map[string]time.Time),
		maxAge:     10 * time.Minute,
		logger:     logger,
	}
}

func (r *raceTracker) observe(rec domain.DetectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for mint, at := range r.firstAt {
		if rec.ObservedAt.Sub(at) > r.maxAge {
			delete(r.byMint, mint)
			delete(r.firstAt, mint)
		}
	}

	seen, ok := r.byMint[rec.Mint]
	if !ok {
		seen = make(map[string]time.Time)
		r.byMint[rec.Mint] = seen
		r.firstAt[rec.Mint] = rec.ObservedAt
	}
	if _, dup := seen[rec.Transport]; dup {
		return
	}
	seen[rec.Transport] = rec.ObservedAt

	if len(seen) < r.transports {
		return
	}
	delete(r.byMint, rec.Mint)
	delete(r.firstAt, rec.Mint)

	type entry struct {
		transport string
		at        time.Time
	}
	order := make([]entry, 0, len(seen))
	for transport, at := range seen {
		order = append(order, entry{transport, at})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].at.Before(order[j].at) })

	line := fmt.Sprintf("race %s: %s first", rec.Mint, order[0].transport)
	for _, e := range order[1:] {
		line += fmt.Sprintf(", %s +%s", e.transport, e.at.Sub(order[0].at).Round(time.Millisecond))
	}
	r.logger.Println(line)
}
