package listener

import (
	"context"
	"log"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// BlockListener detects token creations through blockSubscribe, scanning
// every transaction in blocks that mention the pump.fun program.
type BlockListener struct {
	ws     solana.WSClient
	logger *log.Logger
}

// NewBlockListener creates a block-based listener.
func NewBlockListener(ws solana.WSClient, logger *log.Logger) *BlockListener {
	return &BlockListener{ws: ws, logger: logger}
}

func (l *BlockListener) Name() string { return string(domain.TransportBlocks) }

// Listen subscribes to blocks mentioning pump.fun and emits creation events.
func (l *BlockListener) Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error) {
	notifs, err := l.ws.SubscribeBlocks(ctx, curve.ProgramID.String())
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
				for _, ev := range l.processBlock(notif) {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// processBlock extracts all creation events from one block notification.
func (l *BlockListener) processBlock(notif solana.BlockNotification) []domain.TokenCreationEvent {
	var events []domain.TokenCreationEvent
	for _, tx := range notif.Transactions {
		if tx.Err != nil {
			continue
		}

		raw, err := parseCreateEventLogs(tx.LogMessages)
		if err != nil {
			continue
		}

		ev, err := buildEvent(raw, tx.Signature, notif.Slot, domain.TransportBlocks)
		if err != nil {
			l.logger.Printf("[listener:blocks] drop %s: %v", tx.Signature, err)
			continue
		}
		events = append(events, ev)
	}
	return events
}
