package executor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Execution errors.
var (
	// ErrSlippageExceeded means the curve moved past the tolerance
	// between quote and execution. Retrying the same transaction can
	// only fail again.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrProgramRejected means the program executed the transaction and
	// refused it. Resubmitting the same instructions is pointless.
	ErrProgramRejected = errors.New("program rejected transaction")

	// ErrAttemptsExhausted means every submission attempt failed.
	ErrAttemptsExhausted = errors.New("all attempts failed")

	// ErrConfirmationTimeout means the transaction was submitted but
	// never reached confirmed commitment in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// slippageCustomCode is the pump.fun program error for
// TooLittleSolReceived / TooMuchSolRequired.
const slippageCustomCode = 6002

// classifyTransactionError maps an on-chain transaction error payload
// onto a Go error. Any decoded instruction error is a program verdict,
// not a delivery failure, so all of them carry a fatal sentinel.
// Slippage keeps its own so callers can tell the two apart.
func classifyTransactionError(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var payload struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.InstructionError) == 2 {
		var custom struct {
			Custom *int `json:"Custom"`
		}
		if err := json.Unmarshal(payload.InstructionError[1], &custom); err == nil && custom.Custom != nil {
			if *custom.Custom == slippageCustomCode {
				return fmt.Errorf("%w: custom error %d", ErrSlippageExceeded, *custom.Custom)
			}
			return fmt.Errorf("%w: custom error %d", ErrProgramRejected, *custom.Custom)
		}
		return fmt.Errorf("%w: %s", ErrProgramRejected, payload.InstructionError[1])
	}

	return fmt.Errorf("transaction failed: %s", raw)
}
