// Package domain holds the types shared across the detection, decision
// and execution stages.
package domain

import (
	"time"

	"solana-curve-sniper/internal/solana"
)

// Transport identifies the event source a detection came from.
type Transport string

const (
	TransportLogs   Transport = "logs"
	TransportBlocks Transport = "blocks"
	TransportGeyser Transport = "geyser"
)

// TokenCreationEvent is a newly created token observed on one of the
// event transports.
type TokenCreationEvent struct {
	Mint                   solana.Pubkey
	BondingCurve           solana.Pubkey
	AssociatedBondingCurve solana.Pubkey
	Creator                solana.Pubkey
	Name                   string
	Symbol                 string
	URI                    string
	Signature              string
	Slot                   int64
	Transport              Transport
	ObservedAt             time.Time
}

// PositionStatus is the lifecycle state of a held position.
type PositionStatus string

const (
	PositionPending PositionStatus = "pending"
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
	PositionFailed  PositionStatus = "failed"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitProgress   ExitReason = "curve_progress"
	ExitTimeout    ExitReason = "max_hold_time"
	ExitShutdown   ExitReason = "shutdown"
)

// Position is an open or settled holding in one token.
type Position struct {
	Mint         solana.Pubkey
	BondingCurve solana.Pubkey
	TokenAccount solana.Pubkey
	Status       PositionStatus

	// Entry side
	EntryPrice    float64 // SOL per token
	EntryLamports uint64  // SOL spent, base units
	TokenAmount   uint64  // tokens bought, base units
	BuySignature  string
	OpenedAt      time.Time

	// Exit side, zero until closed
	ExitPrice     float64
	ExitLamports  uint64
	SellSignature string
	ExitReason    ExitReason
	ClosedAt      time.Time

	// FailureDetail is set when Status is failed and tokens may be
	// stranded in the wallet.
	FailureDetail string
}

// AttemptOutcome classifies one transaction submission attempt.
type AttemptOutcome string

const (
	AttemptConfirmed AttemptOutcome = "confirmed"
	AttemptTransient AttemptOutcome = "transient_error"
	AttemptFatal     AttemptOutcome = "fatal_error"
	AttemptTimeout   AttemptOutcome = "timeout"
)

// TransactionAttempt is the record of one submission attempt within a
// buy or sell operation.
type TransactionAttempt struct {
	Operation     string // "buy" or "sell"
	AttemptNumber int
	Signature     string
	PriorityFee   uint64 // microlamports per compute unit
	Outcome       AttemptOutcome
	ErrorDetail   string
	SubmittedAt   time.Time
}

// TradeRecord is one settled trade written to the ledger.
type TradeRecord struct {
	Mint        string
	Side        string // "buy" or "sell"
	Signature   string
	Price       float64
	Lamports    uint64
	TokenAmount uint64
	ExitReason  string // empty for buys
	Attempts    int
	ExecutedAt  time.Time
}

// DetectionRecord measures when a transport saw a creation event,
// used for comparing transport latency.
type DetectionRecord struct {
	Mint       string
	Signature  string
	Transport  string
	Slot       int64
	ObservedAt time.Time
}
