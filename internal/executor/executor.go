package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// rpcAPI is the RPC surface the executor needs.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
	GetTokenAccountBalance(ctx context.Context, tokenAccount string) (uint64, int, error)
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// Config tunes submission behavior.
type Config struct {
	// MaxAttempts bounds submissions per operation.
	MaxAttempts int

	// BasePriorityFee is the starting fee in microlamports per compute
	// unit. Each retry adds 20%, capped at MaxPriorityFee.
	BasePriorityFee uint64
	MaxPriorityFee  uint64

	// RetryBaseDelay is the unit for exponential backoff between
	// attempts: delay = RetryBaseDelay * 2^(attempt-1).
	RetryBaseDelay time.Duration

	// ConfirmTimeout bounds the wait for confirmed commitment after a
	// successful submission. ConfirmPollInterval is the status polling
	// cadence.
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// AttemptTimeout bounds one full build-send-confirm cycle. An
	// attempt in flight runs detached from the caller's context, so a
	// shutdown never abandons a transaction with an unknown on-chain
	// outcome; cancellation takes effect between attempts.
	AttemptTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		BasePriorityFee:     100_000,
		MaxPriorityFee:      2_000_000,
		RetryBaseDelay:      time.Second,
		ConfirmTimeout:      60 * time.Second,
		ConfirmPollInterval: 2 * time.Second,
		AttemptTimeout:      90 * time.Second,
	}
}

// Executor submits buy and sell transactions with retry, priority fee
// escalation and blockhash refresh.
type Executor struct {
	rpc      rpcAPI
	builder  *Builder
	resolver *AccountResolver
	cfg      Config
	logger   *log.Logger

	onAttempt func(domain.TransactionAttempt)
}

// New creates an Executor.
func New(rpc rpcAPI, builder *Builder, resolver *AccountResolver, cfg Config, logger *log.Logger) *Executor {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 90 * time.Second
	}
	return &Executor{
		rpc:      rpc,
		builder:  builder,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// OnAttempt registers a hook invoked after every submission attempt.
func (e *Executor) OnAttempt(fn func(domain.TransactionAttempt)) {
	e.onAttempt = fn
}

// BuyResult is the outcome of a confirmed buy.
type BuyResult struct {
	Signature   string
	TokenAmount uint64 // base units actually received
	Price       float64
	Lamports    uint64
	Attempts    int
}

// SellResult is the outcome of a confirmed sell.
type SellResult struct {
	Signature   string
	TokenAmount uint64
	Price       float64
	Attempts    int
}

// Buy spends solLamports on the curve, tolerating the configured
// slippage against the quoted state. The received token amount is read
// back from the wallet's token account after confirmation.
func (e *Executor) Buy(ctx context.Context, acct TradeAccounts, state *curve.State, solLamports uint64, slippage float64) (*BuyResult, error) {
	price := state.Price()
	if price <= 0 {
		return nil, fmt.Errorf("curve has no price")
	}

	expectedTokens := float64(solLamports) / curve.LamportsPerSOL / price * 1e6
	minTokenOutput := uint64(expectedTokens * (1 - slippage))

	sig, attempts, err := e.submit(ctx, "buy", func(blockhash string, fee uint64) (string, error) {
		return e.builder.BuildBuy(acct, blockhash, solLamports, minTokenOutput, fee)
	})
	if err != nil {
		return nil, err
	}

	userATA, err := solana.AssociatedTokenAddress(e.builder.signer.Pubkey(), acct.Mint)
	if err != nil {
		return nil, err
	}

	balance, err := e.resolver.WaitBalance(context.WithoutCancel(ctx), userATA)
	if err != nil {
		return nil, fmt.Errorf("buy %s confirmed but balance unknown: %w", sig, err)
	}

	return &BuyResult{
		Signature:   sig,
		TokenAmount: balance,
		Price:       price,
		Lamports:    solLamports,
		Attempts:    attempts,
	}, nil
}

// Sell disposes tokenAmount base units, tolerating the configured
// slippage against the quoted state.
func (e *Executor) Sell(ctx context.Context, acct TradeAccounts, state *curve.State, tokenAmount uint64, slippage float64) (*SellResult, error) {
	price := state.Price()

	expectedSol := float64(tokenAmount) / 1e6 * price * curve.LamportsPerSOL
	minSolOutput := uint64(expectedSol * (1 - slippage))

	sig, attempts, err := e.submit(ctx, "sell", func(blockhash string, fee uint64) (string, error) {
		return e.builder.BuildSell(acct, blockhash, tokenAmount, minSolOutput, fee)
	})
	if err != nil {
		return nil, err
	}

	return &SellResult{
		Signature:   sig,
		TokenAmount: tokenAmount,
		Price:       price,
		Attempts:    attempts,
	}, nil
}

// submit runs the attempt loop: build with the current blockhash and
// escalated fee, send, confirm. Transient failures back off and retry.
// A program verdict (slippage or any other rejection) aborts
// immediately, as does a send error the node did not flag retryable.
// Each attempt runs under its own detached timeout context; the
// caller's context is consulted only between attempts, so cancellation
// lets the attempt in flight settle instead of abandoning it.
func (e *Executor) submit(ctx context.Context, op string, build func(blockhash string, fee uint64) (string, error)) (string, int, error) {
	var lastErr error
	var blockhash string

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.cfg.RetryBaseDelay << (attempt - 2)
			select {
			case <-ctx.Done():
				return "", attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.AttemptTimeout)
		sig, fatal, err := e.runAttempt(attemptCtx, op, attempt, &blockhash, build)
		cancel()

		if err == nil {
			return sig, attempt, nil
		}
		lastErr = err
		if fatal {
			return "", attempt, err
		}
	}

	return "", e.cfg.MaxAttempts, fmt.Errorf("%s: %w: %v", op, ErrAttemptsExhausted, lastErr)
}

// runAttempt performs one build-send-confirm cycle. fatal reports
// whether the error rules out further attempts.
func (e *Executor) runAttempt(ctx context.Context, op string, attempt int, blockhash *string, build func(blockhash string, fee uint64) (string, error)) (sig string, fatal bool, err error) {
	fee := e.priorityFee(attempt)

	if *blockhash == "" {
		bh, err := e.rpc.GetLatestBlockhash(ctx)
		if err != nil {
			e.report(op, attempt, "", fee, domain.AttemptTransient, err)
			return "", false, err
		}
		*blockhash = bh.Blockhash
	}

	tx, err := build(*blockhash, fee)
	if err != nil {
		return "", true, fmt.Errorf("build %s: %w", op, err)
	}

	sig, err = e.rpc.SendTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, solana.ErrBlockhashNotFound) {
			*blockhash = ""
			e.logger.Printf("[exec] %s attempt %d: stale blockhash, refreshing", op, attempt)
		}
		if !solana.IsTransient(err) {
			e.report(op, attempt, "", fee, domain.AttemptFatal, err)
			return "", true, fmt.Errorf("%s rejected on send: %w", op, err)
		}
		e.report(op, attempt, "", fee, domain.AttemptTransient, err)
		return "", false, err
	}

	err = e.confirm(ctx, sig)
	switch {
	case err == nil:
		e.report(op, attempt, sig, fee, domain.AttemptConfirmed, nil)
		e.logger.Printf("[exec] %s confirmed in %d attempt(s): %s", op, attempt, sig)
		return sig, false, nil
	case errors.Is(err, ErrSlippageExceeded), errors.Is(err, ErrProgramRejected):
		e.report(op, attempt, sig, fee, domain.AttemptFatal, err)
		return "", true, err
	case errors.Is(err, ErrConfirmationTimeout):
		*blockhash = ""
		e.report(op, attempt, sig, fee, domain.AttemptTimeout, err)
		return "", false, err
	default:
		*blockhash = ""
		e.report(op, attempt, sig, fee, domain.AttemptTransient, err)
		return "", false, err
	}
}

// priorityFee escalates 20% per attempt over the base, capped.
func (e *Executor) priorityFee(attempt int) uint64 {
	fee := uint64(float64(e.cfg.BasePriorityFee) * (1 + 0.2*float64(attempt-1)))
	if e.cfg.MaxPriorityFee > 0 && fee > e.cfg.MaxPriorityFee {
		fee = e.cfg.MaxPriorityFee
	}
	return fee
}

// confirm polls signature status until confirmed commitment, an on-chain
// failure, or timeout.
func (e *Executor) confirm(ctx context.Context, sig string) error {
	deadline := time.Now().Add(e.cfg.ConfirmTimeout)

	for {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{sig})
		if err == nil && len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if txErr := classifyTransactionError(st.Err); txErr != nil {
				return txErr
			}
			if st.Confirmed() {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.ConfirmPollInterval):
		}
	}
}

func (e *Executor) report(op string, attempt int, sig string, fee uint64, outcome domain.AttemptOutcome, err error) {
	if e.onAttempt == nil {
		return
	}
	rec := domain.TransactionAttempt{
		Operation:     op,
		AttemptNumber: attempt,
		Signature:     sig,
		PriorityFee:   fee,
		Outcome:       outcome,
		SubmittedAt:   time.Now().UTC(),
	}
	if err != nil {
		rec.ErrorDetail = err.Error()
	}
	e.onAttempt(rec)
}
