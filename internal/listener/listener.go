package listener

import (
	"context"
	"fmt"
	"log"

	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// Listener produces token creation events from one transport.
type Listener interface {
	// Name returns the transport name for logging and metrics.
	Name() string

	// Listen starts the transport and returns its event channel. The
	// channel is closed when the context is cancelled or the transport
	// shuts down.
	Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error)
}

// Options carries shared listener dependencies.
type Options struct {
	WS       solana.WSClient
	GeyserWS string // endpoint for the geyser-style JSON stream
	Logger   *log.Logger
}

// New creates a listener by transport name: "logs", "blocks" or "geyser".
func New(transport string, opts Options) (Listener, error) {
	switch domain.Transport(transport) {
	case domain.TransportLogs:
		return NewLogsListener(opts.WS, opts.Logger), nil
	case domain.TransportBlocks:
		return NewBlockListener(opts.WS, opts.Logger), nil
	case domain.TransportGeyser:
		if opts.GeyserWS == "" {
			return nil, fmt.Errorf("geyser listener requires an endpoint")
		}
		return NewGeyserListener(opts.GeyserWS, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown listener transport %q", transport)
	}
}
