package sol

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// WSOL is the native SOL mint.
var WSOL = solana.WrappedSol

// WrapSOLInstructions funds the owner's WSOL account with amount lamports,
// creating it first when create is set.
func WrapSOLInstructions(owner solana.PublicKey, amount uint64, create bool) ([]solana.Instruction, error) {
	wsolAccount, err := AssociatedTokenAddress(owner, WSOL, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	var instrs []solana.Instruction
	if create {
		createIx, err := CreateAssociatedTokenAccount(owner, owner, WSOL, solana.TokenProgramID)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, createIx)
	}
	transferIx, err := system.NewTransferInstruction(amount, owner, wsolAccount).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	syncIx, err := token.NewSyncNativeInstruction(wsolAccount).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	return append(instrs, transferIx, syncIx), nil
}

// UnwrapSOLInstruction closes the owner's WSOL account back into SOL.
func UnwrapSOLInstruction(owner solana.PublicKey) (solana.Instruction, error) {
	wsolAccount, err := AssociatedTokenAddress(owner, WSOL, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return token.NewCloseAccountInstruction(wsolAccount, owner, owner, []solana.PublicKey{}).ValidateAndBuild()
}
