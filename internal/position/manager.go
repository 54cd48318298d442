// Package position tracks open holdings and closes them when an exit
// condition fires.
package position

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/executor"
	"solana-curve-sniper/internal/solana"
)

// CurveSource reads current curve state. *curve.Fetcher satisfies it.
type CurveSource interface {
	Fetch(ctx context.Context, bondingCurve solana.Pubkey) (*curve.State, error)
}

// Trader closes positions. *executor.Executor satisfies it.
type Trader interface {
	Sell(ctx context.Context, acct executor.TradeAccounts, state *curve.State, tokenAmount uint64, slippage float64) (*executor.SellResult, error)
}

// TradeSink receives settled trades for the ledger. Optional.
type TradeSink interface {
	RecordTrade(ctx context.Context, rec domain.TradeRecord) error
}

// ExitRules configures when a position is closed.
type ExitRules struct {
	// TakeProfit closes when price reaches entry * (1 + TakeProfit).
	// Zero disables.
	TakeProfit float64

	// StopLoss closes when price falls to entry * (1 - StopLoss).
	// Zero disables.
	StopLoss float64

	// MaxProgress closes when curve progress reaches this percentage,
	// ahead of migration. Zero disables.
	MaxProgress float64

	// MaxHold closes the position after this duration regardless of
	// price. Zero disables.
	MaxHold time.Duration

	// PollInterval is the exit evaluation cadence.
	PollInterval time.Duration

	// SellSlippage is the tolerance applied to exit sells.
	SellSlippage float64

	// ShutdownSellTimeout bounds the final sell during drain.
	ShutdownSellTimeout time.Duration
}

// DefaultExitRules returns production defaults.
func DefaultExitRules() ExitRules {
	return ExitRules{
		TakeProfit:          0.5,
		StopLoss:            0.2,
		MaxProgress:         85,
		MaxHold:             2 * time.Minute,
		PollInterval:        5 * time.Second,
		SellSlippage:        0.25,
		ShutdownSellTimeout: 30 * time.Second,
	}
}

// Manager owns every open position. Each position gets one watcher
// goroutine; all status transitions happen under the manager lock.
type Manager struct {
	trader Trader
	curves CurveSource
	sink   TradeSink // optional
	rules  ExitRules
	logger *log.Logger

	mu        sync.RWMutex
	positions map[solana.Pubkey]*domain.Position

	wg       sync.WaitGroup
	onStatus func(pos domain.Position) // optional metrics hook
}

// NewManager creates a position manager.
func NewManager(trader Trader, curves CurveSource, sink TradeSink, rules ExitRules, logger *log.Logger) *Manager {
	return &Manager{
		trader:    trader,
		curves:    curves,
		sink:      sink,
		rules:     rules,
		logger:    logger,
		positions: make(map[solana.Pubkey]*domain.Position),
	}
}

// OnStatusChange registers a hook invoked with a snapshot after every
// transition.
func (m *Manager) OnStatusChange(fn func(domain.Position)) {
	m.onStatus = fn
}

// Reserve registers a pending position before the buy is submitted, so
// a mint cannot be bought twice and buy failures stay on the books. It
// rejects mints that are already tracked.
func (m *Manager) Reserve(acct executor.TradeAccounts, tokenAccount solana.Pubkey) (*domain.Position, error) {
	pos := &domain.Position{
		Mint:         acct.Mint,
		BondingCurve: acct.BondingCurve,
		TokenAccount: tokenAccount,
		Status:       domain.PositionPending,
	}

	m.mu.Lock()
	if _, exists := m.positions[acct.Mint]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("position for %s already tracked", acct.Mint)
	}
	m.positions[acct.Mint] = pos
	m.mu.Unlock()

	m.notify(*pos)
	return m.snapshot(acct.Mint), nil
}

// FailPending marks a reserved position failed after an unsuccessful
// buy.
func (m *Manager) FailPending(mint solana.Pubkey, detail string) {
	m.fail(mint, detail)
}

// Open registers a filled buy and starts watching for exits. The mint
// may have been reserved beforehand; opening an unreserved mint
// reserves it implicitly.
func (m *Manager) Open(ctx context.Context, acct executor.TradeAccounts, tokenAccount solana.Pubkey, buy *executor.BuyResult) (*domain.Position, error) {
	pos := &domain.Position{
		Mint:          acct.Mint,
		BondingCurve:  acct.BondingCurve,
		TokenAccount:  tokenAccount,
		Status:        domain.PositionOpen,
		EntryPrice:    buy.Price,
		EntryLamports: buy.Lamports,
		TokenAmount:   buy.TokenAmount,
		BuySignature:  buy.Signature,
		OpenedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	if p, exists := m.positions[acct.Mint]; exists {
		if p.Status != domain.PositionPending {
			m.mu.Unlock()
			return nil, fmt.Errorf("position for %s already open", acct.Mint)
		}
		*p = *pos
		pos = p
	} else {
		m.positions[acct.Mint] = pos
	}
	m.mu.Unlock()

	m.notify(*pos)
	m.recordTrade(ctx, domain.TradeRecord{
		Mint:        acct.Mint.String(),
		Side:        "buy",
		Signature:   buy.Signature,
		Price:       buy.Price,
		Lamports:    buy.Lamports,
		TokenAmount: buy.TokenAmount,
		Attempts:    buy.Attempts,
		ExecutedAt:  pos.OpenedAt,
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.watch(ctx, acct)
	}()

	return m.snapshot(acct.Mint), nil
}

// watch polls the curve and closes the position once a rule fires. On
// context cancellation it attempts a final sell so no tokens are left
// behind on shutdown.
func (m *Manager) watch(ctx context.Context, acct executor.TradeAccounts) {
	ticker := time.NewTicker(m.rules.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeOnShutdown(acct)
			return
		case <-ticker.C:
		}

		state, err := m.curves.Fetch(ctx, acct.BondingCurve)
		if err != nil {
			if ctx.Err() != nil {
				m.closeOnShutdown(acct)
				return
			}
			m.logger.Printf("[position] %s: fetch curve: %v", acct.Mint, err)
			continue
		}

		pos := m.snapshot(acct.Mint)
		if pos == nil || pos.Status != domain.PositionOpen {
			return
		}

		reason, exit := m.evaluateExit(pos, state, time.Now())
		if !exit {
			continue
		}

		m.logger.Printf("[position] %s: exit %s at price %.12f (entry %.12f, progress %.2f%%)",
			acct.Mint, reason, state.Price(), pos.EntryPrice, state.Progress())
		m.close(ctx, acct, state, reason)
		return
	}
}

// evaluateExit checks the rules in priority order: take-profit, stop-loss,
// curve progress, hold timeout.
func (m *Manager) evaluateExit(pos *domain.Position, state *curve.State, now time.Time) (domain.ExitReason, bool) {
	price := state.Price()

	if m.rules.TakeProfit > 0 && price >= pos.EntryPrice*(1+m.rules.TakeProfit) {
		return domain.ExitTakeProfit, true
	}
	if m.rules.StopLoss > 0 && price <= pos.EntryPrice*(1-m.rules.StopLoss) {
		return domain.ExitStopLoss, true
	}
	if m.rules.MaxProgress > 0 && state.Progress() >= m.rules.MaxProgress {
		return domain.ExitProgress, true
	}
	if m.rules.MaxHold > 0 && now.Sub(pos.OpenedAt) >= m.rules.MaxHold {
		return domain.ExitTimeout, true
	}
	return "", false
}

// close sells the position and settles its final status.
func (m *Manager) close(ctx context.Context, acct executor.TradeAccounts, state *curve.State, reason domain.ExitReason) {
	pos := m.transition(acct.Mint, domain.PositionClosing)
	if pos == nil {
		return
	}

	res, err := m.trader.Sell(ctx, acct, state, pos.TokenAmount, m.rules.SellSlippage)
	if err != nil {
		m.fail(acct.Mint, fmt.Sprintf("sell failed, %d token base units stranded: %v", pos.TokenAmount, err))
		return
	}

	now := time.Now().UTC()
	var cp domain.Position
	m.mu.Lock()
	if p, ok := m.positions[acct.Mint]; ok {
		p.Status = domain.PositionClosed
		p.ExitPrice = res.Price
		p.ExitLamports = uint64(float64(res.TokenAmount) / 1e6 * res.Price * curve.LamportsPerSOL)
		p.SellSignature = res.Signature
		p.ExitReason = reason
		p.ClosedAt = now
		cp = *p
	}
	m.mu.Unlock()

	m.notify(cp)
	m.recordTrade(context.WithoutCancel(ctx), domain.TradeRecord{
		Mint:        acct.Mint.String(),
		Side:        "sell",
		Signature:   res.Signature,
		Price:       res.Price,
		TokenAmount: res.TokenAmount,
		ExitReason:  string(reason),
		Attempts:    res.Attempts,
		ExecutedAt:  now,
	})
}

// closeOnShutdown makes a bounded final sell attempt for a still-open
// position when the watcher's context is cancelled.
func (m *Manager) closeOnShutdown(acct executor.TradeAccounts) {
	pos := m.snapshot(acct.Mint)
	if pos == nil || pos.Status != domain.PositionOpen {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.rules.ShutdownSellTimeout)
	defer cancel()

	state, err := m.curves.Fetch(ctx, acct.BondingCurve)
	if err != nil {
		m.fail(acct.Mint, fmt.Sprintf("shutdown sell aborted, %d token base units stranded: %v", pos.TokenAmount, err))
		return
	}
	m.close(ctx, acct, state, domain.ExitShutdown)
}

// fail marks a position failed with stranded tokens.
func (m *Manager) fail(mint solana.Pubkey, detail string) {
	var cp domain.Position
	m.mu.Lock()
	if p, ok := m.positions[mint]; ok {
		p.Status = domain.PositionFailed
		p.FailureDetail = detail
		cp = *p
	}
	m.mu.Unlock()
	m.notify(cp)
	m.logger.Printf("[position] %s: FAILED: %s", mint, detail)
}

func (m *Manager) transition(mint solana.Pubkey, status domain.PositionStatus) *domain.Position {
	m.mu.Lock()
	p, ok := m.positions[mint]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	p.Status = status
	cp := *p
	m.mu.Unlock()
	m.notify(cp)
	return &cp
}

// snapshot returns a copy of one position, nil when absent.
func (m *Manager) snapshot(mint solana.Pubkey) *domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[mint]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Get returns a copy of one position.
func (m *Manager) Get(mint solana.Pubkey) (*domain.Position, bool) {
	p := m.snapshot(mint)
	return p, p != nil
}

// Positions returns copies of all tracked positions.
func (m *Manager) Positions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// ActiveCount counts positions that still hold tokens.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.positions {
		if p.Status == domain.PositionOpen || p.Status == domain.PositionClosing {
			n++
		}
	}
	return n
}

// Drain blocks until every watcher has finished or the context expires.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

func (m *Manager) notify(pos domain.Position) {
	if m.onStatus != nil && !pos.Mint.IsZero() {
		m.onStatus(pos)
	}
}

func (m *Manager) recordTrade(ctx context.Context, rec domain.TradeRecord) {
	if m.sink == nil {
		return
	}
	if err := m.sink.RecordTrade(ctx, rec); err != nil {
		m.logger.Printf("[position] record trade %s %s: %v", rec.Side, rec.Mint, err)
	}
}
