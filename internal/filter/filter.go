// Package filter decides whether a detected token is worth buying.
package filter

import (
	"fmt"
	"strings"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
)

// Criteria are the configured acceptance rules. Zero values disable the
// corresponding check except for the progress bounds, which always apply.
type Criteria struct {
	// MinProgress and MaxProgress bound the curve progress percentage.
	MinProgress float64
	MaxProgress float64

	// Match is a case-insensitive substring required in the token name
	// or symbol. Empty accepts any token.
	Match string

	// Creator restricts buys to tokens created by this address.
	Creator string

	// MaxTokenAge rejects events observed too long ago. Zero disables
	// the check.
	MaxTokenAge time.Duration
}

// Result is the verdict for one token. Reason is set on rejection.
type Result struct {
	Accepted bool
	Reason   string
}

func reject(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate applies the criteria against the event and the current curve
// state.
func Evaluate(ev domain.TokenCreationEvent, state *curve.State, c Criteria, now time.Time) Result {
	if state.Complete {
		return reject("curve complete, token migrated")
	}

	progress := state.Progress()
	if progress < c.MinProgress {
		return reject("progress %.2f%% below minimum %.2f%%", progress, c.MinProgress)
	}
	if progress > c.MaxProgress {
		return reject("progress %.2f%% above maximum %.2f%%", progress, c.MaxProgress)
	}

	if c.Match != "" {
		needle := strings.ToLower(c.Match)
		if !strings.Contains(strings.ToLower(ev.Name), needle) &&
			!strings.Contains(strings.ToLower(ev.Symbol), needle) {
			return reject("name %q and symbol %q do not match %q", ev.Name, ev.Symbol, c.Match)
		}
	}

	if c.Creator != "" && ev.Creator.String() != c.Creator {
		return reject("creator %s is not %s", ev.Creator, c.Creator)
	}

	if c.MaxTokenAge > 0 {
		age := now.Sub(ev.ObservedAt)
		if age > c.MaxTokenAge {
			return reject("event age %s exceeds %s", age.Round(time.Millisecond), c.MaxTokenAge)
		}
	}

	return Result{Accepted: true}
}
