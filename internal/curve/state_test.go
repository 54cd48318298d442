package curve

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"solana-curve-sniper/internal/solana"
)

func encodeState(s State) []byte {
	buf := make([]byte, stateSize)
	sum := sha256.Sum256([]byte("account:BondingCurve"))
	copy(buf[:8], sum[:8])
	binary.LittleEndian.PutUint64(buf[8:], s.VirtualTokenReserves)
	binary.LittleEndian.PutUint64(buf[16:], s.VirtualSolReserves)
	binary.LittleEndian.PutUint64(buf[24:], s.RealTokenReserves)
	binary.LittleEndian.PutUint64(buf[32:], s.RealSolReserves)
	binary.LittleEndian.PutUint64(buf[40:], s.TokenTotalSupply)
	if s.Complete {
		buf[48] = 1
	}
	return buf
}

func TestDecode(t *testing.T) {
	want := State{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		RealSolReserves:      0,
		TokenTotalSupply:     1_000_000_000_000_000,
		Complete:             false,
	}

	got, err := Decode(encodeState(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if *got != want {
		t.Errorf("decoded state mismatch:\ngot  %+v\nwant %+v", *got, want)
	}
}

func TestDecode_TrailingBytesIgnored(t *testing.T) {
	data := encodeState(State{VirtualTokenReserves: 1, VirtualSolReserves: 2, Complete: true})
	data = append(data, 0xDE, 0xAD, 0xBE, 0xEF)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Complete {
		t.Error("expected Complete true")
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	data := encodeState(State{})
	_, err := Decode(data[:stateSize-1])
	if !errors.Is(err, ErrMalformedAccount) {
		t.Fatalf("expected ErrMalformedAccount, got %v", err)
	}
}

func TestDecode_DiscriminatorMismatch(t *testing.T) {
	data := encodeState(State{})
	data[0] ^= 0xFF

	_, err := Decode(data)
	if !errors.Is(err, ErrMalformedAccount) {
		t.Fatalf("expected ErrMalformedAccount, got %v", err)
	}
}

func TestState_Price(t *testing.T) {
	s := State{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
	}

	// 30 SOL over 1.073e9 tokens
	want := 30.0 / 1_073_000_000.0
	if got := s.Price(); math.Abs(got-want) > 1e-18 {
		t.Errorf("Price() = %g, want %g", got, want)
	}

	empty := State{VirtualSolReserves: 1}
	if empty.Price() != 0 {
		t.Error("expected 0 price with no virtual token reserves")
	}
}

func TestState_Progress(t *testing.T) {
	fresh := State{RealTokenReserves: InitialRealTokenReserves}
	if got := fresh.Progress(); got != 0 {
		t.Errorf("fresh curve progress = %g, want 0", got)
	}

	half := State{RealTokenReserves: InitialRealTokenReserves / 2}
	if got := half.Progress(); math.Abs(got-50) > 1e-9 {
		t.Errorf("half-depleted progress = %g, want 50", got)
	}

	done := State{RealTokenReserves: 0}
	if got := done.Progress(); got != 100 {
		t.Errorf("depleted progress = %g, want 100", got)
	}

	// Reserves above the initial value clamp to 0 rather than going negative.
	over := State{RealTokenReserves: InitialRealTokenReserves + 1_000_000}
	if got := over.Progress(); got != 0 {
		t.Errorf("over-reserved progress = %g, want 0", got)
	}
}

func TestState_ProgressMonotonic(t *testing.T) {
	prev := -1.0
	for reserves := uint64(InitialRealTokenReserves); ; reserves -= InitialRealTokenReserves / 10 {
		s := State{RealTokenReserves: reserves}
		p := s.Progress()
		if p < prev {
			t.Fatalf("progress decreased: %g after %g at reserves %d", p, prev, reserves)
		}
		prev = p
		if reserves == 0 {
			break
		}
	}
}

func TestBondingCurveAddress_Deterministic(t *testing.T) {
	mint := solana.MustPubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	a, bumpA, err := BondingCurveAddress(mint)
	if err != nil {
		t.Fatalf("BondingCurveAddress: %v", err)
	}
	b, bumpB, err := BondingCurveAddress(mint)
	if err != nil {
		t.Fatalf("BondingCurveAddress: %v", err)
	}

	if a != b || bumpA != bumpB {
		t.Error("derivation must be deterministic")
	}

	other := solana.MustPubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	c, _, err := BondingCurveAddress(other)
	if err != nil {
		t.Fatalf("BondingCurveAddress: %v", err)
	}
	if a == c {
		t.Error("different mints must give different curve addresses")
	}
}

// fakeRPC serves a single account for fetcher tests.
type fakeRPC struct {
	solana.RPCClient
	data string // base64
	miss bool
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	if f.miss {
		return nil, nil
	}
	return &solana.AccountInfo{Data: f.data, Owner: ProgramID.String()}, nil
}

func TestFetcher_Fetch(t *testing.T) {
	want := State{
		VirtualTokenReserves: 900_000_000_000_000,
		VirtualSolReserves:   35_000_000_000,
		RealTokenReserves:    600_000_000_000_000,
		RealSolReserves:      5_000_000_000,
		TokenTotalSupply:     1_000_000_000_000_000,
	}
	rpc := &fakeRPC{data: base64.StdEncoding.EncodeToString(encodeState(want))}

	f := NewFetcher(rpc)
	got, err := f.Fetch(context.Background(), solana.MustPubkey("4wTV1YmyGSsbPkEYu7hbqFyT4wBn6fBu3nAs1rMM1c4R"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if *got != want {
		t.Errorf("fetched state mismatch:\ngot  %+v\nwant %+v", *got, want)
	}
}

func TestFetcher_Fetch_NotFound(t *testing.T) {
	f := NewFetcher(&fakeRPC{miss: true})
	_, err := f.Fetch(context.Background(), solana.MustPubkey("4wTV1YmyGSsbPkEYu7hbqFyT4wBn6fBu3nAs1rMM1c4R"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
