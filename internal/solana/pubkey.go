package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PDA derivation bounds.
const (
	// MaxSeedLength is the maximum length of a single derivation seed.
	MaxSeedLength = 32
	// MaxSeeds is the maximum number of seeds, including the bump.
	MaxSeeds = 16
)

// Derivation errors.
var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength bytes.
	ErrSeedTooLong = errors.New("seed exceeds maximum length")

	// ErrTooManySeeds is returned when more than MaxSeeds seeds are supplied.
	ErrTooManySeeds = errors.New("too many seeds")

	// ErrNoValidAddress is returned when no off-curve address exists
	// within the bump search bound.
	ErrNoValidAddress = errors.New("no valid program-derived address found")

	// errOnCurve marks a candidate address that is a valid ed25519 point
	// and therefore cannot be a PDA.
	errOnCurve = errors.New("address is on the ed25519 curve")
)

// Pubkey is a 32-byte Solana account address.
type Pubkey [32]byte

// String returns the base58 representation.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns the address as a byte slice.
func (p Pubkey) Bytes() []byte {
	return p[:]
}

// IsZero reports whether the address is all zeros.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// PubkeyFromBase58 parses a base58-encoded address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != 32 {
		return Pubkey{}, fmt.Errorf("pubkey %q: expected 32 bytes, got %d", s, len(raw))
	}
	var p Pubkey
	copy(p[:], raw)
	return p, nil
}

// MustPubkey parses a base58 address and panics on failure.
// Intended for package-level well-known program constants.
func MustPubkey(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Well-known program addresses.
var (
	SystemProgram          = MustPubkey("11111111111111111111111111111111")
	TokenProgram           = MustPubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgram = MustPubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgram   = MustPubkey("ComputeBudget111111111111111111111111111111")
)

// FindProgramAddress derives a program address from the seeds, searching bumps
// 255 down to 0 for the first candidate that is not a valid curve point.
// Seed order matters: reordering seeds changes the result.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	if len(seeds)+1 > MaxSeeds {
		return Pubkey{}, 0, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Pubkey{}, 0, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
		}
	}

	for bump := 255; bump >= 0; bump-- {
		addr, err := createProgramAddress(seeds, byte(bump), programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, errOnCurve) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoValidAddress
}

// createProgramAddress hashes seeds ++ bump ++ program id ++ marker and
// rejects candidates that land on the ed25519 curve.
func createProgramAddress(seeds [][]byte, bump byte, programID Pubkey) (Pubkey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr) {
		return Pubkey{}, errOnCurve
	}
	return addr, nil
}

// isOnCurve reports whether b decodes to a valid ed25519 point.
func isOnCurve(p Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// AssociatedTokenAddress derives the associated token account for an owner
// and mint. Seed order is fixed by the associated-token program:
// [owner, token program, mint].
func AssociatedTokenAddress(owner, mint Pubkey) (Pubkey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{owner[:], TokenProgram[:], mint[:]},
		AssociatedTokenProgram,
	)
	if err != nil {
		return Pubkey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}
