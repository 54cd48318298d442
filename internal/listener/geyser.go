package listener

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"solana-curve-sniper/internal/domain"
	"solana-curve-sniper/internal/solana"
)

// GeyserListener consumes a pre-parsed token creation stream from a
// geyser-style JSON feed. The feed pushes one JSON object per message and
// needs a subscribe request after connect.
type GeyserListener struct {
	endpoint string
	logger   *log.Logger
}

// NewGeyserListener creates a geyser stream listener.
func NewGeyserListener(endpoint string, logger *log.Logger) *GeyserListener {
	return &GeyserListener{endpoint: endpoint, logger: logger}
}

func (l *GeyserListener) Name() string { return string(domain.TransportGeyser) }

// geyserMessage is one feed message. Only create notifications carry the
// fields we need; everything else is dropped by txType.
type geyserMessage struct {
	TxType          string `json:"txType"`
	Mint            string `json:"mint"`
	BondingCurveKey string `json:"bondingCurveKey"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	Signature       string `json:"signature"`
	TraderPublicKey string `json:"traderPublicKey"`
}

// Listen connects to the feed and emits creation events, reconnecting
// with jittered backoff on stream failure.
func (l *GeyserListener) Listen(ctx context.Context) (<-chan domain.TokenCreationEvent, error) {
	out := make(chan domain.TokenCreationEvent, 256)

	go func() {
		defer close(out)

		b := &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		}

		for ctx.Err() == nil {
			if err := l.stream(ctx, out); err != nil && ctx.Err() == nil {
				d := b.Duration()
				l.logger.Printf("[listener:geyser] stream error: %v, reconnecting in %s", err, d)
				select {
				case <-ctx.Done():
					return
				case <-time.After(d):
				}
				continue
			}
			b.Reset()
		}
	}()

	return out, nil
}

// stream runs one connection until it fails or the context is cancelled.
func (l *GeyserListener) stream(ctx context.Context, out chan<- domain.TokenCreationEvent) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"method": "subscribeNewToken"}); err != nil {
		return err
	}

	// Unblock reads on cancellation
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg geyserMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.TxType != "create" {
			continue
		}

		ev, err := l.convert(msg)
		if err != nil {
			l.logger.Printf("[listener:geyser] drop %s: %v", msg.Signature, err)
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// convert maps a feed message onto the shared event type.
func (l *GeyserListener) convert(msg geyserMessage) (domain.TokenCreationEvent, error) {
	mint, err := solana.PubkeyFromBase58(msg.Mint)
	if err != nil {
		return domain.TokenCreationEvent{}, err
	}
	bc, err := solana.PubkeyFromBase58(msg.BondingCurveKey)
	if err != nil {
		return domain.TokenCreationEvent{}, err
	}
	creator, err := solana.PubkeyFromBase58(msg.TraderPublicKey)
	if err != nil {
		return domain.TokenCreationEvent{}, err
	}

	return buildEvent(&createEvent{
		Name:         msg.Name,
		Symbol:       msg.Symbol,
		URI:          msg.URI,
		Mint:         mint,
		BondingCurve: bc,
		User:         creator,
	}, msg.Signature, 0, domain.TransportGeyser)
}
