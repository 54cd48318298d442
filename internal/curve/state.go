// Package curve models the pump.fun bonding curve: on-chain account layout,
// program constants, price and progress math.
package curve

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"solana-curve-sniper/internal/solana"
)

// Pump.fun program accounts (mainnet).
var (
	ProgramID      = solana.MustPubkey("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	Global         = solana.MustPubkey("4wTV1YmyGSsbPkEYu7hbqFyT4wBn6fBu3nAs1rMM1c4R")
	FeeRecipient   = solana.MustPubkey("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	EventAuthority = solana.MustPubkey("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000

	// TokenDecimals is the decimal count of every pump.fun mint.
	TokenDecimals = 6

	// InitialRealTokenReserves is the real token reserve of a freshly
	// created curve, in base units. Progress toward migration is measured
	// against this value.
	InitialRealTokenReserves = 793_100_000_000_000

	// BuyDiscriminator and SellDiscriminator identify the buy and sell
	// instructions, little-endian encoded in the instruction data.
	BuyDiscriminator  uint64 = 16927863322537952870
	SellDiscriminator uint64 = 12502976635542562355

	// bondingCurveSeed is the PDA seed prefix for curve accounts.
	bondingCurveSeed = "bonding-curve"

	// stateSize is the minimum account size: 8-byte discriminator,
	// five u64 fields, one bool. Trailing bytes are ignored.
	stateSize = 8 + 5*8 + 1
)

// accountDiscriminator is the 8-byte Anchor discriminator of the
// BondingCurve account.
var accountDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:BondingCurve"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// Decoding errors.
var (
	ErrMalformedAccount = errors.New("malformed bonding curve account")
)

// State is the decoded bonding curve account. Reserve fields are raw
// on-chain base units.
type State struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// Decode parses a raw bonding curve account.
func Decode(data []byte) (*State, error) {
	if len(data) < stateSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedAccount, len(data), stateSize)
	}

	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != accountDiscriminator {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrMalformedAccount)
	}

	s := &State{
		VirtualTokenReserves: binary.LittleEndian.Uint64(data[8:16]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(data[16:24]),
		RealTokenReserves:    binary.LittleEndian.Uint64(data[24:32]),
		RealSolReserves:      binary.LittleEndian.Uint64(data[32:40]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(data[40:48]),
		Complete:             data[48] != 0,
	}
	return s, nil
}

// Price returns the spot price in SOL per token, derived from the
// virtual reserves. Returns 0 when the curve has no virtual token
// reserves left.
func (s *State) Price() float64 {
	if s.VirtualTokenReserves == 0 {
		return 0
	}
	sol := float64(s.VirtualSolReserves) / LamportsPerSOL
	tokens := float64(s.VirtualTokenReserves) / 1e6
	return sol / tokens
}

// Progress returns how far the curve has moved toward migration, as a
// percentage in [0, 100]. A fresh curve is at 0, a depleted one at 100.
func (s *State) Progress() float64 {
	p := (1 - float64(s.RealTokenReserves)/InitialRealTokenReserves) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// BondingCurveAddress derives the curve PDA for a mint.
func BondingCurveAddress(mint solana.Pubkey) (solana.Pubkey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(bondingCurveSeed), mint.Bytes()}, ProgramID)
}

// AssociatedBondingCurveAddress derives the curve's own token account
// for a mint.
func AssociatedBondingCurveAddress(mint solana.Pubkey) (solana.Pubkey, error) {
	bc, _, err := BondingCurveAddress(mint)
	if err != nil {
		return solana.Pubkey{}, err
	}
	return solana.AssociatedTokenAddress(bc, mint)
}
