package cmd

import (
	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yimingwow/rayquote/pkg/protocol"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/router"
)

func newRouteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "route",
		Short: "Find the Raydium pool paying the most for an exact input and optionally swap through it",
		RunE:  runRoute,
	}
	c.Flags().String("input-mint", "", "mint of the token paid in")
	c.Flags().String("output-mint", "", "mint of the token received")
	c.Flags().Uint64("amount", 0, "raw input amount")
	addSettlementFlags(c)
	_ = c.MarkFlagRequired("input-mint")
	_ = c.MarkFlagRequired("output-mint")
	_ = c.MarkFlagRequired("amount")
	return c
}

func runRoute(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	inMint, err := pubkeyFlag(cmd, "input-mint")
	if err != nil {
		return err
	}
	outMint, err := pubkeyFlag(cmd, "output-mint")
	if err != nil {
		return err
	}
	amount, _ := cmd.Flags().GetUint64("amount")

	r := router.NewSimpleRouter(e.log,
		protocol.NewRaydiumAmm(e.client, e.cfg.Programs.Amm, e.log),
		protocol.NewRaydiumCpmm(e.client, e.cfg.Programs.CpSwap, e.log),
		protocol.NewRaydiumClmm(e.client, e.cfg.Programs.Clmm, e.log),
	)
	if err := r.QueryAllPools(ctx, inMint.String(), outMint.String()); err != nil {
		return err
	}
	best, err := r.BestRoute(ctx, e.client, inMint.String(), cosmath.NewIntFromUint64(amount))
	if err != nil {
		return err
	}
	if !best.AmountOut.IsUint64() {
		return quote.ErrMaxTokenOverflow
	}
	minOut, err := quote.AmountWithSlippage(best.AmountOut.Uint64(), e.cfg.SlippageBps, false)
	if err != nil {
		return err
	}

	mints, err := loadMints(ctx, e, inMint, outMint)
	if err != nil {
		return err
	}
	in, out := mints[0], mints[1]
	if err := newReport(e.out).
		row("pools quoted", len(r.Pools)).
		row("pool", best.Pool.GetID()).
		row("protocol", best.Pool.ProtocolName()).
		row("amount in", uiAmount(amount, in.Decimals)).
		row("amount out", uiAmount(best.AmountOut.Uint64(), out.Decimals)).
		row("minimum out", minOut).
		row("spot price", best.SpotPrice.Round(12)).
		row("price impact", best.PriceImpact.Round(6)).
		flush(); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	e.log.Info("routing through pool", zap.String("pool", best.Pool.GetID()), zap.String("protocol", string(best.Pool.ProtocolName())))
	instrs, err := e.swapTransaction(ctx, cmd, owner, swapLeg{
		inputMint:     in.Address,
		inputProgram:  in.Program,
		outputMint:    out.Address,
		outputProgram: out.Program,
		maxIn:         amount,
	}, func(src, dst solana.PublicKey) ([]solana.Instruction, error) {
		base, quoteAcc := src, dst
		if baseMint, _ := best.Pool.GetTokens(); baseMint != inMint.String() {
			base, quoteAcc = dst, src
		}
		return best.Pool.BuildSwapInstructions(ctx, e.client, owner, inMint.String(),
			best.AmountIn, cosmath.NewIntFromUint64(minOut), base, quoteAcc)
	})
	if err != nil {
		return err
	}
	return e.submit(ctx, key, instrs)
}
