package position

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/executor"
	"solana-curve-sniper/internal/solana"
)

var (
	testMint = solana.MustPubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	testBC   = solana.MustPubkey("4wTV1YmyGSsbPkEYu7hbqFyT4wBn6fBu3nAs1rMM1c4R")
	testATA  = solana.MustPubkey("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
)

func testAccounts() executor.TradeAccounts {
	return executor.TradeAccounts{Mint: testMint, BondingCurve: testBC}
}

// entryState prices the curve at 30 SOL / 1.073e9 tokens.
func entryState() *curve.State {
	return &curve.State{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    curve.InitialRealTokenReserves,
	}
}

// scaled returns entryState with the price multiplied by factor.
func scaled(factor float64) *curve.State {
	s := entryState()
	s.VirtualSolReserves = uint64(float64(s.VirtualSolReserves) * factor)
	return s
}

type fakeCurves struct {
	mu     sync.Mutex
	states []*curve.State // served in order, last repeats
	err    error
	calls  int
}

func (f *fakeCurves) Fetch(ctx context.Context, bc solana.Pubkey) (*curve.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.states[i], nil
}

type fakeTrader struct {
	mu    sync.Mutex
	err   error
	calls int
	last  uint64 // token amount of last sell
}

func (f *fakeTrader) Sell(ctx context.Context, acct executor.TradeAccounts, state *curve.State, tokenAmount uint64, slippage float64) (*executor.SellResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = tokenAmount
	if f.err != nil {
		return nil, f.err
	}
	return &executor.SellResult{
		Signature:   "sellsig",
		TokenAmount: tokenAmount,
		Price:       state.Price(),
		Attempts:    1,
	}, nil
}

type memSink struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (s *memSink) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func testRules() ExitRules {
	return ExitRules{
		TakeProfit:          0.5,
		StopLoss:            0.2,
		MaxProgress:         85,
		MaxHold:             time.Hour,
		PollInterval:        2 * time.Millisecond,
		SellSlippage:        0.25,
		ShutdownSellTimeout: time.Second,
	}
}

func testBuy() *executor.BuyResult {
	return &executor.BuyResult{
		Signature:   "buysig",
		TokenAmount: 35_000_000,
		Price:       entryState().Price(),
		Lamports:    100_000_000,
		Attempts:    1,
	}
}

func waitStatus(t *testing.T, m *Manager, want domain.PositionStatus) domain.Position {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := m.Get(testMint); ok && p.Status == want {
			return *p
		}
		time.Sleep(time.Millisecond)
	}
	p, _ := m.Get(testMint)
	t.Fatalf("position never reached %s, stuck at %+v", want, p)
	return domain.Position{}
}

func newTestManager(trader *fakeTrader, curves *fakeCurves, sink TradeSink) *Manager {
	return NewManager(trader, curves, sink, testRules(), log.New(io.Discard, "", 0))
}

func TestManager_TakeProfit(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{scaled(1.6)}}
	sink := &memSink{}
	m := newTestManager(trader, curves, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := waitStatus(t, m, domain.PositionClosed)
	if pos.ExitReason != domain.ExitTakeProfit {
		t.Errorf("exit reason = %s, want take_profit", pos.ExitReason)
	}
	if pos.SellSignature != "sellsig" {
		t.Errorf("sell signature = %s", pos.SellSignature)
	}
	if trader.calls != 1 {
		t.Errorf("sell calls = %d, want 1", trader.calls)
	}
	if sink.count() != 2 {
		t.Errorf("trade records = %d, want buy and sell", sink.count())
	}
}

func TestManager_StopLoss(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{scaled(0.7)}}
	m := newTestManager(trader, curves, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := waitStatus(t, m, domain.PositionClosed)
	if pos.ExitReason != domain.ExitStopLoss {
		t.Errorf("exit reason = %s, want stop_loss", pos.ExitReason)
	}
}

func TestManager_ProgressExit(t *testing.T) {
	trader := &fakeTrader{}
	near := entryState()
	near.RealTokenReserves = curve.InitialRealTokenReserves / 10 // 90% progress
	curves := &fakeCurves{states: []*curve.State{near}}
	m := newTestManager(trader, curves, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := waitStatus(t, m, domain.PositionClosed)
	if pos.ExitReason != domain.ExitProgress {
		t.Errorf("exit reason = %s, want curve_progress", pos.ExitReason)
	}
}

func TestManager_TimeoutExit(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{entryState()}}
	m := newTestManager(trader, curves, nil)
	m.rules.MaxHold = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := waitStatus(t, m, domain.PositionClosed)
	if pos.ExitReason != domain.ExitTimeout {
		t.Errorf("exit reason = %s, want max_hold_time", pos.ExitReason)
	}
}

func TestManager_SellFailureStrandsPosition(t *testing.T) {
	trader := &fakeTrader{err: errors.New("all attempts failed")}
	curves := &fakeCurves{states: []*curve.State{scaled(1.6)}}
	m := newTestManager(trader, curves, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := waitStatus(t, m, domain.PositionFailed)
	if pos.FailureDetail == "" {
		t.Error("failed positions must carry a failure detail")
	}
	if pos.TokenAmount != testBuy().TokenAmount {
		t.Error("stranded token amount must stay on the position")
	}
}

func TestManager_ShutdownSell(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{entryState()}}
	m := newTestManager(trader, curves, nil)
	m.rules.PollInterval = time.Hour // exits only via shutdown

	ctx, cancel := context.WithCancel(context.Background())

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	if err := m.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	pos, _ := m.Get(testMint)
	if pos.Status != domain.PositionClosed {
		t.Fatalf("status = %s, want closed", pos.Status)
	}
	if pos.ExitReason != domain.ExitShutdown {
		t.Errorf("exit reason = %s, want shutdown", pos.ExitReason)
	}
}

func TestManager_DuplicateOpenRejected(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{entryState()}}
	m := newTestManager(trader, curves, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m.Open(ctx, testAccounts(), testATA, testBuy()); err == nil {
		t.Error("second open for the same mint must fail")
	}

	if m.ActiveCount() != 1 {
		t.Errorf("active count = %d, want 1", m.ActiveCount())
	}
}

func TestManager_ReserveThenOpen(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{entryState()}}
	m := newTestManager(trader, curves, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pos, err := m.Reserve(testAccounts(), testATA)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if pos.Status != domain.PositionPending {
		t.Fatalf("status = %s, want pending", pos.Status)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("pending position counted as active")
	}

	if _, err := m.Reserve(testAccounts(), testATA); err == nil {
		t.Error("second reserve for the same mint must fail")
	}

	opened, err := m.Open(ctx, testAccounts(), testATA, testBuy())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Status != domain.PositionOpen {
		t.Fatalf("status = %s, want open", opened.Status)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("active count = %d, want 1", m.ActiveCount())
	}
}

func TestManager_FailPending(t *testing.T) {
	trader := &fakeTrader{}
	curves := &fakeCurves{states: []*curve.State{entryState()}}
	m := newTestManager(trader, curves, nil)

	if _, err := m.Reserve(testAccounts(), testATA); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	m.FailPending(testMint, "buy attempts exhausted")

	pos, ok := m.Get(testMint)
	if !ok {
		t.Fatal("position not tracked")
	}
	if pos.Status != domain.PositionFailed {
		t.Fatalf("status = %s, want failed", pos.Status)
	}
	if pos.FailureDetail != "buy attempts exhausted" {
		t.Errorf("detail = %q", pos.FailureDetail)
	}
}
