package executor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// testSigner signs with a throwaway key.
type testSigner struct {
	pub  solana.Pubkey
	priv ed25519.PrivateKey
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s := &testSigner{priv: priv}
	copy(s.pub[:], pub)
	return s
}

func (s *testSigner) Pubkey() solana.Pubkey  { return s.pub }
func (s *testSigner) Sign(msg []byte) []byte { return ed25519.Sign(s.priv, msg) }

// fakeExecRPC scripts RPC behavior per call.
type fakeExecRPC struct {
	sendErrs   []error         // error per send attempt, nil entries succeed
	sendCalls  int
	onSend     func()          // invoked on every send, before the scripted error
	statusErr  json.RawMessage // tx error reported on confirmation
	confirmed  bool
	balance    uint64
	balanceErr error
	balCalls   int
	balOKAfter int             // balance succeeds from this call number, 0 = always
	bhCalls    int
}

func (f *fakeExecRPC) GetLatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error) {
	f.bhCalls++
	return &solana.LatestBlockhash{Blockhash: testBlockhash, LastValidBlockHeight: 100}, nil
}

func (f *fakeExecRPC) SendTransaction(ctx context.Context, tx string) (string, error) {
	f.sendCalls++
	if f.onSend != nil {
		f.onSend()
	}
	if f.sendCalls <= len(f.sendErrs) {
		if err := f.sendErrs[f.sendCalls-1]; err != nil {
			return "", err
		}
	}
	return "sig", nil
}

func (f *fakeExecRPC) GetSignatureStatuses(ctx context.Context, sigs []string) ([]*solana.SignatureStatus, error) {
	status := &solana.SignatureStatus{Slot: 1, Err: f.statusErr}
	if f.confirmed {
		status.ConfirmationStatus = "confirmed"
	}
	return []*solana.SignatureStatus{status}, nil
}

func (f *fakeExecRPC) GetTokenAccountBalance(ctx context.Context, acct string) (uint64, int, error) {
	f.balCalls++
	if f.balanceErr != nil && (f.balOKAfter == 0 || f.balCalls < f.balOKAfter) {
		return 0, 0, f.balanceErr
	}
	return f.balance, 6, nil
}

func (f *fakeExecRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return nil, nil
}

func testConfig() Config {
	return Config{
		MaxAttempts:         3,
		BasePriorityFee:     100_000,
		MaxPriorityFee:      2_000_000,
		RetryBaseDelay:      time.Millisecond,
		ConfirmTimeout:      50 * time.Millisecond,
		ConfirmPollInterval: time.Millisecond,
	}
}

func newTestExecutor(t *testing.T, rpc *fakeExecRPC, cfg Config) *Executor {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	builder := NewBuilder(newTestSigner(t))
	resolver := NewAccountResolver(rpc, 3, time.Millisecond)
	return New(rpc, builder, resolver, cfg, logger)
}

func testAccounts() TradeAccounts {
	return TradeAccounts{
		Mint:                   solana.MustPubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
		BondingCurve:           solana.MustPubkey("4wTV1YmyGSsbPkEYu7hbqFyT4wBn6fBu3nAs1rMM1c4R"),
		AssociatedBondingCurve: solana.MustPubkey("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"),
	}
}

func testState() *curve.State {
	return &curve.State{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    curve.InitialRealTokenReserves,
	}
}

func TestExecutor_Buy(t *testing.T) {
	rpc := &fakeExecRPC{confirmed: true, balance: 123_456}
	e := newTestExecutor(t, rpc, testConfig())

	res, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL/10, 0.25)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	if res.Signature != "sig" {
		t.Errorf("signature = %s", res.Signature)
	}
	if res.TokenAmount != 123_456 {
		t.Errorf("token amount = %d", res.TokenAmount)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	if rpc.sendCalls != 1 {
		t.Errorf("send calls = %d, want 1", rpc.sendCalls)
	}
}

func TestExecutor_Buy_RetryThenSuccess(t *testing.T) {
	rpc := &fakeExecRPC{
		sendErrs:  []error{errors.New("node is behind"), nil},
		confirmed: true,
		balance:   1,
	}
	e := newTestExecutor(t, rpc, testConfig())

	var fees []uint64
	e.OnAttempt(func(a domain.TransactionAttempt) {
		fees = append(fees, a.PriorityFee)
	})

	res, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if len(fees) != 2 {
		t.Fatalf("expected 2 attempt records, got %d", len(fees))
	}
	// 20% escalation on the second attempt.
	if fees[1] != uint64(float64(fees[0])*1.2) {
		t.Errorf("fee escalation wrong: %d -> %d", fees[0], fees[1])
	}
}

func TestExecutor_Buy_BlockhashRefresh(t *testing.T) {
	rpc := &fakeExecRPC{
		sendErrs:  []error{solana.ErrBlockhashNotFound, nil},
		confirmed: true,
		balance:   1,
	}
	e := newTestExecutor(t, rpc, testConfig())

	if _, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.25); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// One fetch up front, one refresh after the stale blockhash.
	if rpc.bhCalls != 2 {
		t.Errorf("blockhash fetches = %d, want 2", rpc.bhCalls)
	}
}

func TestExecutor_Buy_SlippageNotRetried(t *testing.T) {
	rpc := &fakeExecRPC{
		confirmed: true,
		statusErr: json.RawMessage(`{"InstructionError":[3,{"Custom":6002}]}`),
	}
	e := newTestExecutor(t, rpc, testConfig())

	var outcomes []domain.AttemptOutcome
	e.OnAttempt(func(a domain.TransactionAttempt) {
		outcomes = append(outcomes, a.Outcome)
	})

	_, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.01)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}

	if rpc.sendCalls != 1 {
		t.Errorf("slippage rejection must not retry, sent %d times", rpc.sendCalls)
	}
	if len(outcomes) != 1 || outcomes[0] != domain.AttemptFatal {
		t.Errorf("outcomes = %v, want one fatal", outcomes)
	}
}

func TestExecutor_Buy_ProgramRejectionNotRetried(t *testing.T) {
	rpc := &fakeExecRPC{
		confirmed: true,
		statusErr: json.RawMessage(`{"InstructionError":[0,{"Custom":1}]}`),
	}
	e := newTestExecutor(t, rpc, testConfig())

	var outcomes []domain.AttemptOutcome
	e.OnAttempt(func(a domain.TransactionAttempt) {
		outcomes = append(outcomes, a.Outcome)
	})

	_, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if !errors.Is(err, ErrProgramRejected) {
		t.Fatalf("expected ErrProgramRejected, got %v", err)
	}

	if rpc.sendCalls != 1 {
		t.Errorf("program rejection must not retry, sent %d times", rpc.sendCalls)
	}
	if len(outcomes) != 1 || outcomes[0] != domain.AttemptFatal {
		t.Errorf("outcomes = %v, want one fatal", outcomes)
	}
}

func TestExecutor_Buy_FatalSendErrorNotRetried(t *testing.T) {
	rpc := &fakeExecRPC{
		sendErrs: []error{errors.New("insufficient funds for fee")},
	}
	e := newTestExecutor(t, rpc, testConfig())

	_, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if err == nil || errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected an immediate failure, got %v", err)
	}
	if rpc.sendCalls != 1 {
		t.Errorf("fatal send error must not retry, sent %d times", rpc.sendCalls)
	}
}

func TestExecutor_Buy_CancelLetsAttemptSettle(t *testing.T) {
	rpc := &fakeExecRPC{confirmed: true, balance: 42}
	e := newTestExecutor(t, rpc, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rpc.onSend = cancel

	res, err := e.Buy(ctx, testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if err != nil {
		t.Fatalf("in-flight attempt must settle after cancel: %v", err)
	}
	if res.TokenAmount != 42 {
		t.Errorf("token amount = %d, want 42", res.TokenAmount)
	}
}

func TestExecutor_Buy_CancelStopsFurtherAttempts(t *testing.T) {
	rpc := &fakeExecRPC{
		sendErrs: []error{errors.New("timeout"), nil, nil},
	}
	e := newTestExecutor(t, rpc, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rpc.onSend = cancel

	_, err := e.Buy(ctx, testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled between attempts, got %v", err)
	}
	if rpc.sendCalls != 1 {
		t.Errorf("send calls = %d, want 1", rpc.sendCalls)
	}
}

func TestExecutor_Buy_AttemptsExhausted(t *testing.T) {
	rpc := &fakeExecRPC{
		sendErrs: []error{
			errors.New("timeout"),
			errors.New("timeout"),
			errors.New("timeout"),
		},
	}
	e := newTestExecutor(t, rpc, testConfig())

	_, err := e.Buy(context.Background(), testAccounts(), testState(), curve.LamportsPerSOL, 0.25)
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if rpc.sendCalls != 3 {
		t.Errorf("send calls = %d, want 3", rpc.sendCalls)
	}
}

func TestExecutor_Sell(t *testing.T) {
	rpc := &fakeExecRPC{confirmed: true}
	e := newTestExecutor(t, rpc, testConfig())

	res, err := e.Sell(context.Background(), testAccounts(), testState(), 5_000_000, 0.25)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if res.TokenAmount != 5_000_000 {
		t.Errorf("token amount = %d", res.TokenAmount)
	}
}

func TestAccountResolver_VisibleOnThirdAttempt(t *testing.T) {
	rpc := &fakeExecRPC{
		balance:    77,
		balanceErr: errors.New("could not find account"),
		balOKAfter: 3,
	}
	r := NewAccountResolver(rpc, 5, time.Millisecond)

	balance, err := r.WaitBalance(context.Background(), testAccounts().Mint)
	if err != nil {
		t.Fatalf("WaitBalance: %v", err)
	}
	if balance != 77 {
		t.Errorf("balance = %d, want 77", balance)
	}
	if rpc.balCalls != 3 {
		t.Errorf("balance calls = %d, want 3", rpc.balCalls)
	}
}

func TestAccountResolver_Exhausted(t *testing.T) {
	rpc := &fakeExecRPC{balanceErr: errors.New("could not find account")}
	r := NewAccountResolver(rpc, 3, time.Millisecond)

	_, err := r.WaitBalance(context.Background(), testAccounts().Mint)
	if !errors.Is(err, ErrAccountNotSynced) {
		t.Fatalf("expected ErrAccountNotSynced, got %v", err)
	}
	if rpc.balCalls != 3 {
		t.Errorf("balance calls = %d, want 3", rpc.balCalls)
	}
}

func TestBuilder_BuildBuy_SignatureVerifies(t *testing.T) {
	s := newTestSigner(t)
	b := NewBuilder(s)

	txB64, err := b.BuildBuy(testAccounts(), testBlockhash, curve.LamportsPerSOL, 1, 50_000)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(txB64)
	if err != nil {
		t.Fatalf("decode tx: %v", err)
	}

	if raw[0] != 1 {
		t.Fatalf("signature count = %d, want 1", raw[0])
	}

	sig := raw[1:65]
	msg := raw[65:]
	if !ed25519.Verify(s.pub[:], msg, sig) {
		t.Error("transaction signature does not verify against message")
	}
}

func TestClassifyTransactionError(t *testing.T) {
	if err := classifyTransactionError(nil); err != nil {
		t.Errorf("nil payload should be nil, got %v", err)
	}
	if err := classifyTransactionError(json.RawMessage("null")); err != nil {
		t.Errorf("null payload should be nil, got %v", err)
	}

	err := classifyTransactionError(json.RawMessage(`{"InstructionError":[2,{"Custom":6002}]}`))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}

	err = classifyTransactionError(json.RawMessage(`{"InstructionError":[2,{"Custom":1}]}`))
	if !errors.Is(err, ErrProgramRejected) || errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("custom 1 should be a program rejection, got %v", err)
	}

	err = classifyTransactionError(json.RawMessage(`{"InstructionError":[0,"AccountInUse"]}`))
	if !errors.Is(err, ErrProgramRejected) {
		t.Errorf("string instruction errors should be program rejections, got %v", err)
	}
}
