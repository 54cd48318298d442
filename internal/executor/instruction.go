// Package executor assembles, signs, submits and confirms pump.fun buy
// and sell transactions.
package executor

import (
	"fmt"

	"github.com/mr-tron/base58"

	"solana-curve-sniper/internal/solana"
)

// AccountMeta is one account reference within an instruction.
type AccountMeta struct {
	Pubkey     solana.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID solana.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

func meta(pk solana.Pubkey, signer, writable bool) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: signer, IsWritable: writable}
}

// appendCompactU16 encodes v in the compact-u16 format used by legacy
// transactions.
func appendCompactU16(b []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f|0x80))
		v >>= 7
	}
}

// buildMessage serializes a legacy transaction message with the payer as
// the single required signer.
func buildMessage(payer solana.Pubkey, blockhash string, instrs []Instruction) ([]byte, error) {
	hashRaw, err := base58.Decode(blockhash)
	if err != nil || len(hashRaw) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", blockhash)
	}

	keys, header := collectAccounts(payer, instrs)

	index := make(map[solana.Pubkey]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	msg := make([]byte, 0, 256)
	msg = append(msg, header[0], header[1], header[2])

	msg = appendCompactU16(msg, len(keys))
	for _, k := range keys {
		msg = append(msg, k.Bytes()...)
	}

	msg = append(msg, hashRaw...)

	msg = appendCompactU16(msg, len(instrs))
	for _, ix := range instrs {
		progIdx, ok := index[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program %s missing from account table", ix.ProgramID)
		}
		msg = append(msg, byte(progIdx))

		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, a := range ix.Accounts {
			ai, ok := index[a.Pubkey]
			if !ok {
				return nil, fmt.Errorf("account %s missing from account table", a.Pubkey)
			}
			msg = append(msg, byte(ai))
		}

		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}

	return msg, nil
}

// collectAccounts merges every referenced account into the canonical
// ordering: writable signers, readonly signers, writable non-signers,
// readonly non-signers. The payer is always first. Returns the ordered
// keys and the 3-byte message header.
func collectAccounts(payer solana.Pubkey, instrs []Instruction) ([]solana.Pubkey, [3]byte) {
	type flags struct {
		signer   bool
		writable bool
	}
	merged := map[solana.Pubkey]*flags{
		payer: {signer: true, writable: true},
	}
	order := []solana.Pubkey{payer}

	touch := func(pk solana.Pubkey, signer, writable bool) {
		f, ok := merged[pk]
		if !ok {
			f = &flags{}
			merged[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}

	for _, ix := range instrs {
		for _, a := range ix.Accounts {
			touch(a.Pubkey, a.IsSigner, a.IsWritable)
		}
		touch(ix.ProgramID, false, false)
	}

	var signerWritable, signerReadonly, writable, readonly []solana.Pubkey
	for _, pk := range order {
		f := merged[pk]
		switch {
		case f.signer && f.writable:
			signerWritable = append(signerWritable, pk)
		case f.signer:
			signerReadonly = append(signerReadonly, pk)
		case f.writable:
			writable = append(writable, pk)
		default:
			readonly = append(readonly, pk)
		}
	}

	keys := make([]solana.Pubkey, 0, len(order))
	keys = append(keys, signerWritable...)
	keys = append(keys, signerReadonly...)
	keys = append(keys, writable...)
	keys = append(keys, readonly...)

	header := [3]byte{
		byte(len(signerWritable) + len(signerReadonly)),
		byte(len(signerReadonly)),
		byte(len(readonly)),
	}
	return keys, header
}

// signer signs a serialized transaction message.
type signer interface {
	Pubkey() solana.Pubkey
	Sign(message []byte) []byte
}

// signTransaction wraps a message with its single signature into the
// legacy transaction envelope.
func signTransaction(s signer, message []byte) []byte {
	sig := s.Sign(message)
	tx := make([]byte, 0, 1+len(sig)+len(message))
	tx = appendCompactU16(tx, 1)
	tx = append(tx, sig...)
	tx = append(tx, message...)
	return tx
}
