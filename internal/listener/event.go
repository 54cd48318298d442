// Package listener watches the chain for token creations on the pump.fun
// program over several transports and merges them into one deduplicated
// event stream.
package listener

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"solana-curve-sniper/internal/solana"
)

const programDataPrefix = "Program data: "

// createEventDiscriminator is the 8-byte Anchor discriminator of the
// CreateEvent emitted by the create instruction.
var createEventDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("event:CreateEvent"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

var errNotCreateEvent = errors.New("not a create event")

// createEvent is the decoded CreateEvent payload.
type createEvent struct {
	Name         string
	Symbol       string
	URI          string
	Mint         solana.Pubkey
	BondingCurve solana.Pubkey
	User         solana.Pubkey
}

// parseCreateEventLogs scans transaction log messages for a CreateEvent
// payload. Returns errNotCreateEvent when none is present.
func parseCreateEventLogs(logs []string) (*createEvent, error) {
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil {
			continue
		}

		ev, err := decodeCreateEvent(raw)
		if err != nil {
			continue
		}
		return ev, nil
	}
	return nil, errNotCreateEvent
}

// decodeCreateEvent parses a borsh-encoded CreateEvent: discriminator,
// three length-prefixed strings, then mint, bonding curve and creator keys.
func decodeCreateEvent(data []byte) (*createEvent, error) {
	if len(data) < 8 {
		return nil, errNotCreateEvent
	}

	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != createEventDiscriminator {
		return nil, errNotCreateEvent
	}

	r := &borshReader{data: data[8:]}

	ev := &createEvent{}
	var err error
	if ev.Name, err = r.readString(); err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	if ev.Symbol, err = r.readString(); err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	if ev.URI, err = r.readString(); err != nil {
		return nil, fmt.Errorf("read uri: %w", err)
	}
	if ev.Mint, err = r.readPubkey(); err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	if ev.BondingCurve, err = r.readPubkey(); err != nil {
		return nil, fmt.Errorf("read bonding curve: %w", err)
	}
	if ev.User, err = r.readPubkey(); err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}

	return ev, nil
}

type borshReader struct {
	data []byte
	pos  int
}

var errShortBuffer = errors.New("short buffer")

func (r *borshReader) readString() (string, error) {
	if r.pos+4 > len(r.data) {
		return "", errShortBuffer
	}
	n := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	if n < 0 || r.pos+n > len(r.data) {
		return "", errShortBuffer
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func (r *borshReader) readPubkey() (solana.Pubkey, error) {
	var pk solana.Pubkey
	if r.pos+32 > len(r.data) {
		return pk, errShortBuffer
	}
	copy(pk[:], r.data[r.pos:r.pos+32])
	r.pos += 32
	return pk, nil
}
