// Package trader runs the detection to execution pipeline: it consumes
// token creation events, filters them against the configured criteria,
// buys the survivors and hands the resulting positions to the position
// manager.
package trader

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/executor"
	"solana-curve-sniper/internal/filter"
	"solana-curve-sniper/internal/solana"
)

// EventSource yields deduplicated token creation events.
type EventSource interface {
	Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error)
}

// CurveSource fetches the current bonding curve state.
type CurveSource interface {
	Fetch(ctx context.Context, bondingCurve solana.Pubkey) (*curve.State, error)
}

// Buyer executes buy transactions.
type Buyer interface {
	Buy(ctx context.Context, acct executor.TradeAccounts, state *curve.State, solLamports uint64, slippage float64) (*executor.BuyResult, error)
}

// PositionBook tracks positions through their lifecycle.
type PositionBook interface {
	Reserve(acct executor.TradeAccounts, tokenAccount solana.Pubkey) (*domain.Position, error)
	Open(ctx context.Context, acct executor.TradeAccounts, tokenAccount solana.Pubkey, buy *executor.BuyResult) (*domain.Position, error)
	FailPending(mint solana.Pubkey, detail string)
	ActiveCount() int
	Drain(ctx context.Context) error
}

// TokenAccounts derives the wallet's token account for a mint.
type TokenAccounts interface {
	AssociatedTokenAccount(mint solana.Pubkey) (solana.Pubkey, error)
}

type healthChecker interface {
	GetHealth(ctx context.Context) error
}

// Config are the pipeline knobs.
type Config struct {
	// BuyLamports is the buy size in lamports.
	BuyLamports uint64

	// BuySlippage is the accepted buy slippage fraction.
	BuySlippage float64

	// WaitAfterCreation delays the curve fetch so the snapshot reflects
	// any dev buy landing in the creation slot.
	WaitAfterCreation time.Duration

	// MaxPositions caps concurrently open positions. Zero means no cap.
	MaxPositions int

	// DrainTimeout bounds the shutdown drain of open positions.
	DrainTimeout time.Duration

	// HealthRetryDelay spaces warm-up health checks.
	HealthRetryDelay time.Duration
}

// Trader is the pipeline loop.
type Trader struct {
	source   EventSource
	curves   CurveSource
	buyer    Buyer
	book     PositionBook
	accounts TokenAccounts
	health   healthChecker
	criteria filter.Criteria
	cfg      Config
	logger   *log.Logger

	// inflight counts events being evaluated or bought, so the
	// position cap holds while earlier buys are still confirming.
	inflight atomic.Int32

	onResult func(filter.Result)
}

// New wires a Trader. health may be nil to skip the warm-up check.
func New(source EventSource, curves CurveSource, buyer Buyer, book PositionBook,
	accounts TokenAccounts, health healthChecker, criteria filter.Criteria,
	cfg Config, logger *log.Logger) *Trader {
	if logger == nil {
		logger = log.New(log.Writer(), "[trader] ", log.LstdFlags)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.HealthRetryDelay <= 0 {
		cfg.HealthRetryDelay = 2 * time.Second
	}
	return &Trader{
		source:   source,
		curves:   curves,
		buyer:    buyer,
		book:     book,
		accounts: accounts,
		health:   health,
		criteria: criteria,
		cfg:      cfg,
		logger:   logger,
	}
}

// OnResult registers a hook invoked with every filter verdict. Events
// are handled concurrently, so the hook must be safe for concurrent
// use.
func (t *Trader) OnResult(fn func(filter.Result)) {
	t.onResult = fn
}

// Run consumes events until ctx is cancelled or the source closes, then
// drains open positions. It returns the drain error, if any.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.waitHealthy(ctx); err != nil {
		return err
	}

	events, err := t.source.Listen(ctx)
	if err != nil {
		return err
	}
	t.logger.Printf("pipeline started, buy size %d lamports", t.cfg.BuyLamports)

	// One goroutine per event: a buy confirming for a minute must not
	// hold up fresher detections behind it.
	var wg sync.WaitGroup
	for ev := range events {
		if t.cfg.MaxPositions > 0 && t.book.ActiveCount()+int(t.inflight.Load()) >= t.cfg.MaxPositions {
			t.logger.Printf("skipping %s %q: %d positions already open",
				ev.Mint, ev.Symbol, t.book.ActiveCount())
			continue
		}

		t.inflight.Add(1)
		wg.Add(1)
		go func(ev domain.TokenCreationEvent) {
			defer wg.Done()
			defer t.inflight.Add(-1)
			t.handle(ctx, ev)
		}(ev)
	}
	wg.Wait()

	t.logger.Printf("event stream closed, draining positions")
	drainCtx, cancel := context.WithTimeout(context.Background(), t.cfg.DrainTimeout)
	defer cancel()
	return t.book.Drain(drainCtx)
}

// waitHealthy blocks until the RPC node reports healthy.
func (t *Trader) waitHealthy(ctx context.Context) error {
	if t.health == nil {
		return nil
	}
	for {
		err := t.health.GetHealth(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Printf("node not healthy, retrying: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.HealthRetryDelay):
		}
	}
}

func (t *Trader) handle(ctx context.Context, ev domain.TokenCreationEvent) {
	if t.criteria.MaxTokenAge > 0 && time.Since(ev.ObservedAt) > t.criteria.MaxTokenAge {
		t.report(filter.Result{Reason: "stale before processing"})
		t.logger.Printf("skipping %s %q: observed %s ago",
			ev.Mint, ev.Symbol, time.Since(ev.ObservedAt).Round(time.Millisecond))
		return
	}

	if t.cfg.WaitAfterCreation > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.cfg.WaitAfterCreation):
		}
	}

	state, err := t.curves.Fetch(ctx, ev.BondingCurve)
	if err != nil {
		t.logger.Printf("skipping %s %q: curve fetch failed: %v", ev.Mint, ev.Symbol, err)
		return
	}

	res := filter.Evaluate(ev, state, t.criteria, time.Now().UTC())
	t.report(res)
	if !res.Accepted {
		t.logger.Printf("rejected %s %q: %s", ev.Mint, ev.Symbol, res.Reason)
		return
	}

	tokenAccount, err := t.accounts.AssociatedTokenAccount(ev.Mint)
	if err != nil {
		t.logger.Printf("skipping %s: token account derivation failed: %v", ev.Mint, err)
		return
	}

	acct := executor.TradeAccounts{
		Mint:                   ev.Mint,
		BondingCurve:           ev.BondingCurve,
		AssociatedBondingCurve: ev.AssociatedBondingCurve,
	}

	if _, err := t.book.Reserve(acct, tokenAccount); err != nil {
		t.logger.Printf("skipping %s: %v", ev.Mint, err)
		return
	}

	t.logger.Printf("buying %s %q at price %.10f, progress %.2f%%",
		ev.Mint, ev.Symbol, state.Price(), state.Progress())
	buy, err := t.buyer.Buy(ctx, acct, state, t.cfg.BuyLamports, t.cfg.BuySlippage)
	if err != nil {
		t.logger.Printf("buy failed for %s: %v", ev.Mint, err)
		t.book.FailPending(ev.Mint, err.Error())
		return
	}

	if _, err := t.book.Open(ctx, acct, tokenAccount, buy); err != nil {
		t.logger.Printf("position open failed for %s: %v", ev.Mint, err)
	}
}

func (t *Trader) report(res filter.Result) {
	if t.onResult != nil {
		t.onResult(res)
	}
}
