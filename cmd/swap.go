package cmd

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func addSwapFlags(c *cobra.Command) {
	c.Flags().String("pool-id", "", "pool to trade against")
	c.Flags().String("input-mint", "", "mint of the token paid in")
	c.Flags().Uint64("amount", 0, "raw input amount, or raw output amount with --base-out")
	c.Flags().Bool("base-out", false, "amount is the exact output")
	addSettlementFlags(c)
	_ = c.MarkFlagRequired("pool-id")
	_ = c.MarkFlagRequired("input-mint")
	_ = c.MarkFlagRequired("amount")
}

func addSettlementFlags(c *cobra.Command) {
	c.Flags().String("input-account", "", "token account paying the input (default: the signer's account)")
	c.Flags().String("output-account", "", "token account receiving the output (default: the signer's associated account)")
	c.Flags().Bool("unwrap-sol", false, "close the signer's WSOL account after the swap")
}

type swapArgs struct {
	poolID    string
	inputMint solana.PublicKey
	amount    uint64
	baseIn    bool
}

func parseSwapArgs(cmd *cobra.Command) (swapArgs, error) {
	var a swapArgs
	a.poolID, _ = cmd.Flags().GetString("pool-id")
	mint, err := pubkeyFlag(cmd, "input-mint")
	if err != nil {
		return a, err
	}
	a.inputMint = mint
	a.amount, _ = cmd.Flags().GetUint64("amount")
	baseOut, _ := cmd.Flags().GetBool("base-out")
	a.baseIn = !baseOut
	return a, nil
}

// swapLeg is the token side of a swap: which mints move, under which token
// programs, and the most the signer can be charged.
type swapLeg struct {
	inputMint     solana.PublicKey
	inputProgram  solana.PublicKey
	outputMint    solana.PublicKey
	outputProgram solana.PublicKey
	maxIn         uint64
}

// swapTransaction surrounds the instructions from build with the token
// account setup and teardown the swap needs.
func (e *env) swapTransaction(
	ctx context.Context,
	cmd *cobra.Command,
	owner solana.PublicKey,
	leg swapLeg,
	build func(src, dst solana.PublicKey) ([]solana.Instruction, error),
) ([]solana.Instruction, error) {
	inOverride, err := optionalPubkeyFlag(cmd, "input-account")
	if err != nil {
		return nil, err
	}
	outOverride, err := optionalPubkeyFlag(cmd, "output-account")
	if err != nil {
		return nil, err
	}
	unwrap, _ := cmd.Flags().GetBool("unwrap-sol")

	src, instrs, err := e.sourceAccount(ctx, owner, leg.inputMint, leg.inputProgram, inOverride, leg.maxIn)
	if err != nil {
		return nil, err
	}
	dst, create, err := e.destinationAccount(ctx, owner, leg.outputMint, leg.outputProgram, outOverride)
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, create...)

	swap, err := build(src, dst)
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, swap...)

	post, err := unwrapIfSOL(owner, leg.outputMint, unwrap)
	if err != nil {
		return nil, err
	}
	return append(instrs, post...), nil
}
