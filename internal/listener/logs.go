package listener

import (
	"context"
	"log"
	"time"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// LogsListener detects token creations through logsSubscribe.
type LogsListener struct {
	ws     solana.WSClient
	logger *log.Logger
}

// NewLogsListener creates a logs-based listener.
func NewLogsListener(ws solana.WSClient, logger *log.Logger) *LogsListener {
	return &LogsListener{ws: ws, logger: logger}
}

func (l *LogsListener) Name() string { return string(domain.TransportLogs) }

// Listen subscribes to pump.fun program logs and emits creation events.
func (l *LogsListener) Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error) {
	notifs, err := l.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions: []string{curve.ProgramID.String()},
	})
	if err != nil {
		return nil, err
	}

	out := make(chan domain.TokenCreationEvent, 256)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case notif, ok := <-notifs:
				if !ok {
					return
				}
				ev, ok := l.process(notif)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// process extracts a creation event from one log notification.
func (l *LogsListener) process(notif solana.LogNotification) (domain.TokenCreationEvent, bool) {
	if notif.Err != nil {
		return domain.TokenCreationEvent{}, false
	}

	raw, err := parseCreateEventLogs(notif.Logs)
	if err != nil {
		return domain.TokenCreationEvent{}, false
	}

	ev, err := buildEvent(raw, notif.Signature, notif.Slot, domain.TransportLogs)
	if err != nil {
		l.logger.Printf("[listener:logs] drop %s: %v", notif.Signature, err)
		return domain.TokenCreationEvent{}, false
	}
	return ev, true
}

// buildEvent completes a parsed create event with derived accounts.
func buildEvent(raw *createEvent, signature string, slot int64, transport domain.Transport) (domain.TokenCreationEvent, error) {
	assoc, err := solana.AssociatedTokenAddress(raw.BondingCurve, raw.Mint)
	if err != nil {
		return domain.TokenCreationEvent{}, err
	}

	return domain.TokenCreationEvent{
		Mint:                   raw.Mint,
		BondingCurve:           raw.BondingCurve,
		AssociatedBondingCurve: assoc,
		Creator:                raw.User,
		Name:                   raw.Name,
		Symbol:                 raw.Symbol,
		URI:                    raw.URI,
		Signature:              signature,
		Slot:                   slot,
		Transport:              transport,
		ObservedAt:             time.Now().UTC(),
	}, nil
}
