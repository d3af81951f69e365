package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"
)

// createIdempotent is the associated token account instruction that succeeds
// when the account already exists.
const createIdempotent = 1

// AssociatedTokenAddress derives the ATA of owner for mint under the given
// token program, which may be Token-2022.
func AssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner[:], tokenProgram[:], mint[:]},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token account: %w", err)
	}
	return addr, nil
}

// CreateAssociatedTokenAccount builds an instruction creating the ATA of owner
// for mint. Classic SPL mints use the stock builder; Token-2022 mints use the
// idempotent variant with the program account set explicitly.
func CreateAssociatedTokenAccount(payer, owner, mint, tokenProgram solana.PublicKey) (solana.Instruction, error) {
	if tokenProgram.Equals(solana.TokenProgramID) {
		return associatedtokenaccount.NewCreateInstruction(payer, owner, mint).ValidateAndBuild()
	}
	ata, err := AssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(tokenProgram),
		},
		[]byte{createIdempotent},
	), nil
}

// SelectOrCreateTokenAccount returns an existing token account of owner for
// mint. When there is none it returns the ATA address together with the
// instruction that creates it, to be prepended to the caller's transaction.
func (c *Client) SelectOrCreateTokenAccount(ctx context.Context, owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	acc, err := c.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: "jsonParsed"},
	)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("token accounts of %s: %w", owner, err)
	}
	if len(acc.Value) > 0 {
		return acc.Value[0].Pubkey, nil, nil
	}
	ata, err := AssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	ix, err := CreateAssociatedTokenAccount(owner, owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return ata, ix, nil
}
