// Package wallet loads the trading keypair and signs transactions. The
// secret key stays inside this package: it is never logged, serialized
// or persisted.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-curve-sniper/internal/solana"
)

// ErrInvalidKey is returned for secrets that are not a 64-byte ed25519
// keypair.
var ErrInvalidKey = errors.New("invalid secret key")

// Wallet holds the trading keypair.
type Wallet struct {
	priv ed25519.PrivateKey
	pub  solana.Pubkey
}

// FromBase58 parses a base58-encoded 64-byte secret key (seed followed
// by public key, the common Solana export format).
func FromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: not base58", ErrInvalidKey)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)

	var pub solana.Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))

	// The trailing 32 bytes must match the derived public key, otherwise
	// the secret is corrupt.
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !priv.Equal(derived) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
	}

	return &Wallet{priv: priv, pub: pub}, nil
}

// Pubkey returns the wallet's public key.
func (w *Wallet) Pubkey() solana.Pubkey {
	return w.pub
}

// Sign signs a transaction message.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

// AssociatedTokenAccount derives the wallet's token account for a mint.
func (w *Wallet) AssociatedTokenAccount(mint solana.Pubkey) (solana.Pubkey, error) {
	return solana.AssociatedTokenAddress(w.pub, mint)
}

// String returns the public key only.
func (w *Wallet) String() string {
	return w.pub.String()
}
