package cmd

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"github.com/yimingwow/rayquote/pkg/protocol"
	"github.com/yimingwow/rayquote/pkg/quote/amm"
)

func newAmmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "amm",
		Short: "Raydium AMM v4 pools",
	}

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a swap and optionally send it",
		RunE:  runAmmSwap,
	}
	addSwapFlags(swapCmd)

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Quote a deposit and optionally send it",
		RunE:  runAmmDeposit,
	}
	depositCmd.Flags().String("pool-id", "", "pool to deposit into")
	depositCmd.Flags().Uint64("amount", 0, "raw amount of the fixed side")
	depositCmd.Flags().Bool("base-coin", false, "amount is in the coin token instead of pc")
	depositCmd.Flags().Bool("another-min-limit", false, "also bound the counterpart from below")
	depositCmd.Flags().String("coin-account", "", "coin token account (default: the signer's account)")
	depositCmd.Flags().String("pc-account", "", "pc token account (default: the signer's account)")
	depositCmd.Flags().String("lp-account", "", "LP token account (default: the signer's associated account)")
	_ = depositCmd.MarkFlagRequired("pool-id")
	_ = depositCmd.MarkFlagRequired("amount")

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Quote a withdrawal and optionally send it",
		RunE:  runAmmWithdraw,
	}
	withdrawCmd.Flags().String("pool-id", "", "pool to withdraw from")
	withdrawCmd.Flags().Uint64("lp-amount", 0, "raw LP amount to burn")
	withdrawCmd.Flags().Bool("slippage-limit", false, "enforce slippage-bounded minimum outputs")
	withdrawCmd.Flags().String("coin-account", "", "coin token account (default: the signer's associated account)")
	withdrawCmd.Flags().String("pc-account", "", "pc token account (default: the signer's associated account)")
	withdrawCmd.Flags().String("lp-account", "", "LP token account (default: the signer's account)")
	_ = withdrawCmd.MarkFlagRequired("pool-id")
	_ = withdrawCmd.MarkFlagRequired("lp-amount")

	fetchCmd := &cobra.Command{
		Use:   "fetch-pool",
		Short: "Print a pool, or every pool of a mint pair",
		RunE:  runAmmFetchPool,
	}
	fetchCmd.Flags().String("pool-id", "", "pool to fetch; overrides the mints")
	fetchCmd.Flags().String("coin-mint", "", "coin mint of the pair")
	fetchCmd.Flags().String("pc-mint", "", "pc mint of the pair")

	c.AddCommand(swapCmd, depositCmd, withdrawCmd, fetchCmd)
	return c
}

func ammProtocol(e *env) *protocol.RaydiumAMMProtocol {
	return protocol.NewRaydiumAmm(e.client, e.cfg.Programs.Amm, e.log)
}

func runAmmSwap(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	args, err := parseSwapArgs(cmd)
	if err != nil {
		return err
	}
	pool, err := ammProtocol(e).FetchAMMPool(ctx, args.poolID)
	if err != nil {
		return err
	}
	q, err := pool.SwapQuote(ctx, e.client, args.inputMint, args.amount, args.baseIn, e.cfg.SlippageBps)
	if err != nil {
		return err
	}

	info := &pool.Info
	outputMint, inDec, outDec := info.PcMint, info.CoinDecimals, info.PcDecimals
	if q.Direction == amm.PcToCoin {
		outputMint, inDec, outDec = info.CoinMint, info.PcDecimals, info.CoinDecimals
	}
	inAmount, outAmount, inDecimals, outDecimals := q.Amount, q.Other, uint8(inDec), uint8(outDec)
	if !q.BaseIn {
		inAmount, outAmount = q.Other, q.Amount
	}
	if err := newReport(e.out).
		row("pool", pool.PoolId).
		row("direction", q.Direction).
		row("amount in", uiAmount(inAmount, inDecimals)).
		row("amount out", uiAmount(outAmount, outDecimals)).
		row(thresholdLabel(q.BaseIn), q.Threshold).
		flush(); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	maxIn := q.Amount
	if !q.BaseIn {
		maxIn = q.Threshold
	}
	instrs, err := e.swapTransaction(ctx, cmd, owner, swapLeg{
		inputMint:     args.inputMint,
		inputProgram:  solana.TokenProgramID,
		outputMint:    outputMint,
		outputProgram: solana.TokenProgramID,
		maxIn:         maxIn,
	}, func(src, dst solana.PublicKey) ([]solana.Instruction, error) {
		return []solana.Instruction{pool.SwapInstruction(owner, src, dst, q.Amount, q.Threshold, q.BaseIn)}, nil
	})
	if err != nil {
		return err
	}
	return e.submit(ctx, key, instrs)
}

func thresholdLabel(baseIn bool) string {
	if baseIn {
		return "minimum out"
	}
	return "maximum in"
}

func runAmmDeposit(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	poolID, _ := cmd.Flags().GetString("pool-id")
	amount, _ := cmd.Flags().GetUint64("amount")
	baseCoin, _ := cmd.Flags().GetBool("base-coin")
	withMin, _ := cmd.Flags().GetBool("another-min-limit")
	side := amm.SidePc
	if baseCoin {
		side = amm.SideCoin
	}

	pool, err := ammProtocol(e).FetchAMMPool(ctx, poolID)
	if err != nil {
		return err
	}
	q, err := pool.DepositQuote(ctx, e.client, amount, side, withMin, e.cfg.SlippageBps)
	if err != nil {
		return err
	}
	r := newReport(e.out).
		row("pool", pool.PoolId).
		row("fixed side", side).
		row("max coin", uiAmount(q.MaxCoin, uint8(pool.Info.CoinDecimals))).
		row("max pc", uiAmount(q.MaxPc, uint8(pool.Info.PcDecimals)))
	if q.MinOther != nil {
		r.row("min counterpart", *q.MinOther)
	}
	if err := r.flush(); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	accounts, instrs, err := ammUserAccounts(ctx, cmd, e, owner, pool, q.MaxCoin, q.MaxPc, 0)
	if err != nil {
		return err
	}
	instrs = append(instrs, pool.DepositInstruction(owner, accounts.coin, accounts.pc, accounts.lp, q, side))
	return e.submit(ctx, key, instrs)
}

func runAmmWithdraw(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	poolID, _ := cmd.Flags().GetString("pool-id")
	lpAmount, _ := cmd.Flags().GetUint64("lp-amount")
	limit, _ := cmd.Flags().GetBool("slippage-limit")

	pool, err := ammProtocol(e).FetchAMMPool(ctx, poolID)
	if err != nil {
		return err
	}
	q, err := pool.WithdrawQuote(ctx, e.client, lpAmount, e.cfg.SlippageBps)
	if err != nil {
		return err
	}
	if err := newReport(e.out).
		row("pool", pool.PoolId).
		row("lp amount", lpAmount).
		row("min coin", uiAmount(q.MinCoin, uint8(pool.Info.CoinDecimals))).
		row("min pc", uiAmount(q.MinPc, uint8(pool.Info.PcDecimals))).
		row("slippage limit", limit).
		flush(); err != nil {
		return err
	}
	if !limit {
		q = amm.WithdrawQuote{}
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	accounts, instrs, err := ammUserAccounts(ctx, cmd, e, owner, pool, 0, 0, lpAmount)
	if err != nil {
		return err
	}
	instrs = append(instrs, pool.WithdrawInstruction(owner, accounts.lp, accounts.coin, accounts.pc, lpAmount, q))
	return e.submit(ctx, key, instrs)
}

type ammAccounts struct {
	coin, pc, lp solana.PublicKey
}

// ammUserAccounts resolves the signer's coin, pc and LP accounts. Tokens with
// a non-zero spend are sources; the others receive.
func ammUserAccounts(ctx context.Context, cmd *cobra.Command, e *env, owner solana.PublicKey, pool *raydium.AMMPool, coinIn, pcIn, lpIn uint64) (ammAccounts, []solana.Instruction, error) {
	var (
		out    ammAccounts
		instrs []solana.Instruction
	)
	for _, side := range []struct {
		flag  string
		mint  solana.PublicKey
		spend uint64
		dst   *solana.PublicKey
	}{
		{"coin-account", pool.Info.CoinMint, coinIn, &out.coin},
		{"pc-account", pool.Info.PcMint, pcIn, &out.pc},
		{"lp-account", pool.Info.LpMint, lpIn, &out.lp},
	} {
		override, err := optionalPubkeyFlag(cmd, side.flag)
		if err != nil {
			return out, nil, err
		}
		var (
			acc solana.PublicKey
			ix  []solana.Instruction
		)
		if side.spend > 0 {
			acc, ix, err = e.sourceAccount(ctx, owner, side.mint, solana.TokenProgramID, override, side.spend)
		} else {
			acc, ix, err = e.destinationAccount(ctx, owner, side.mint, solana.TokenProgramID, override)
		}
		if err != nil {
			return out, nil, err
		}
		*side.dst = acc
		instrs = append(instrs, ix...)
	}
	return out, instrs, nil
}

func runAmmFetchPool(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	proto := ammProtocol(e)
	var pools []*raydium.AMMPool
	if poolID, _ := cmd.Flags().GetString("pool-id"); poolID != "" {
		pool, err := proto.FetchAMMPool(ctx, poolID)
		if err != nil {
			return err
		}
		pools = append(pools, pool)
	} else {
		coin, _ := cmd.Flags().GetString("coin-mint")
		pc, _ := cmd.Flags().GetString("pc-mint")
		if coin == "" || pc == "" {
			return fmt.Errorf("either --pool-id or both --coin-mint and --pc-mint are required")
		}
		if pools, err = proto.FetchAMMPools(ctx, coin, pc); err != nil {
			return err
		}
	}

	for _, pool := range pools {
		if err := pool.Load(ctx, e.client); err != nil {
			return err
		}
		info := &pool.Info
		r := newReport(e.out).
			row("pool", pool.PoolId).
			row("status", amm.Status(info.Status)).
			row("coin mint", info.CoinMint).
			row("pc mint", info.PcMint).
			row("lp mint", info.LpMint).
			row("coin vault", info.CoinVault).
			row("pc vault", info.PcVault).
			row("open orders", info.OpenOrders).
			row("market", info.Market).
			row("lp amount", info.LpAmount).
			row("swap fee", fmt.Sprintf("%d/%d", info.Fees.SwapFeeNumerator, info.Fees.SwapFeeDenominator))
		if res, err := pool.State.SwapReserves(); err == nil {
			r.row("coin reserve", uiAmount(res.Coin, uint8(info.CoinDecimals))).
				row("pc reserve", uiAmount(res.Pc, uint8(info.PcDecimals)))
		} else {
			r.row("reserves", err)
		}
		if price, err := pool.SpotPrice(info.CoinMint.String()); err == nil {
			r.row("price (pc per coin)", price.Shift(int32(info.CoinDecimals)-int32(info.PcDecimals)).Round(12))
		}
		r.row("epoch", pool.Epoch)
		if err := r.flush(); err != nil {
			return err
		}
		fmt.Fprintln(e.out)
	}
	return nil
}
