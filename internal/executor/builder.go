package executor

import (
	"encoding/base64"
	"encoding/binary"

	"solana-curve-sniper/internal/curve"
	"solana-curve-sniper/internal/solana"
)

// TradeAccounts are the token-specific accounts referenced by buy and
// sell instructions.
type TradeAccounts struct {
	Mint                   solana.Pubkey
	BondingCurve           solana.Pubkey
	AssociatedBondingCurve solana.Pubkey
}

// Builder assembles signed trade transactions for one wallet.
type Builder struct {
	signer signer
}

// NewBuilder creates a Builder signing with the given wallet.
func NewBuilder(s signer) *Builder {
	return &Builder{signer: s}
}

// computeUnitPriceInstruction sets the priority fee in microlamports per
// compute unit. Discriminant 3 on the compute budget program.
func computeUnitPriceInstruction(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: solana.ComputeBudgetProgram, Data: data}
}

// createATAIdempotentInstruction creates the owner's associated token
// account if it does not exist yet. Discriminant 1 is the idempotent
// variant, safe to include in every buy.
func createATAIdempotentInstruction(payer, owner, mint, ata solana.Pubkey) Instruction {
	return Instruction{
		ProgramID: solana.AssociatedTokenProgram,
		Accounts: []AccountMeta{
			meta(payer, true, true),
			meta(ata, false, true),
			meta(owner, false, false),
			meta(mint, false, false),
			meta(solana.SystemProgram, false, false),
			meta(solana.TokenProgram, false, false),
		},
		Data: []byte{1},
	}
}

// tradeMetas is the account list shared by buy and sell.
func tradeMetas(acct TradeAccounts, userATA, user solana.Pubkey) []AccountMeta {
	return []AccountMeta{
		meta(curve.Global, false, false),
		meta(curve.FeeRecipient, false, true),
		meta(acct.Mint, false, false),
		meta(acct.BondingCurve, false, true),
		meta(acct.AssociatedBondingCurve, false, true),
		meta(userATA, false, true),
		meta(user, true, true),
		meta(solana.SystemProgram, false, false),
		meta(solana.AssociatedTokenProgram, false, false),
		meta(solana.TokenProgram, false, false),
		meta(curve.EventAuthority, false, false),
		meta(curve.ProgramID, false, false),
	}
}

// buyInstruction spends solLamports and requires at least minTokenOutput
// base units back.
func buyInstruction(acct TradeAccounts, userATA, user solana.Pubkey, solLamports, minTokenOutput uint64) Instruction {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], curve.BuyDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], solLamports)
	binary.LittleEndian.PutUint64(data[16:], minTokenOutput)
	return Instruction{
		ProgramID: curve.ProgramID,
		Accounts:  tradeMetas(acct, userATA, user),
		Data:      data,
	}
}

// sellInstruction sells tokenAmount base units for at least minSolOutput
// lamports.
func sellInstruction(acct TradeAccounts, userATA, user solana.Pubkey, tokenAmount, minSolOutput uint64) Instruction {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], curve.SellDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], tokenAmount)
	binary.LittleEndian.PutUint64(data[16:], minSolOutput)
	return Instruction{
		ProgramID: curve.ProgramID,
		Accounts:  tradeMetas(acct, userATA, user),
		Data:      data,
	}
}

// BuildBuy assembles and signs a buy transaction. The idempotent
// create-ATA instruction rides along so a fresh wallet needs no separate
// setup transaction.
func (b *Builder) BuildBuy(acct TradeAccounts, blockhash string, solLamports, minTokenOutput, priorityFee uint64) (string, error) {
	user := b.signer.Pubkey()
	userATA, err := solana.AssociatedTokenAddress(user, acct.Mint)
	if err != nil {
		return "", err
	}

	var instrs []Instruction
	if priorityFee > 0 {
		instrs = append(instrs, computeUnitPriceInstruction(priorityFee))
	}
	instrs = append(instrs,
		createATAIdempotentInstruction(user, user, acct.Mint, userATA),
		buyInstruction(acct, userATA, user, solLamports, minTokenOutput),
	)

	return b.finish(blockhash, instrs)
}

// BuildSell assembles and signs a sell transaction.
func (b *Builder) BuildSell(acct TradeAccounts, blockhash string, tokenAmount, minSolOutput, priorityFee uint64) (string, error) {
	user := b.signer.Pubkey()
	userATA, err := solana.AssociatedTokenAddress(user, acct.Mint)
	if err != nil {
		return "", err
	}

	var instrs []Instruction
	if priorityFee > 0 {
		instrs = append(instrs, computeUnitPriceInstruction(priorityFee))
	}
	instrs = append(instrs, sellInstruction(acct, userATA, user, tokenAmount, minSolOutput))

	return b.finish(blockhash, instrs)
}

func (b *Builder) finish(blockhash string, instrs []Instruction) (string, error) {
	msg, err := buildMessage(b.signer.Pubkey(), blockhash, instrs)
	if err != nil {
		return "", err
	}
	tx := signTransaction(b.signer, msg)
	return base64.StdEncoding.EncodeToString(tx), nil
}
