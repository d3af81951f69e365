package sol

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// PriorityFeeInstructions returns the compute-budget instructions that set a
// unit limit and a priority price. A zero value skips that instruction.
func PriorityFeeInstructions(unitLimit uint32, microLamports uint64) ([]solana.Instruction, error) {
	var instrs []solana.Instruction
	if unitLimit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(unitLimit).ValidateAndBuild()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, ix)
	}
	if microLamports > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(microLamports).ValidateAndBuild()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, ix)
	}
	return instrs, nil
}
