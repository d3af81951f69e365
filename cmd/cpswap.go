package cmd

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"github.com/yimingwow/rayquote/pkg/protocol"
	"github.com/yimingwow/rayquote/pkg/quote/cpswap"
)

func newCpSwapCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cpswap",
		Short: "Raydium CP-Swap pools",
	}

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a swap and optionally send it",
		RunE:  runCpSwapSwap,
	}
	addSwapFlags(swapCmd)

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Quote a deposit and optionally send it",
		RunE:  runCpSwapDeposit,
	}
	depositCmd.Flags().String("pool-id", "", "pool to deposit into")
	depositCmd.Flags().Uint64("amount", 0, "raw amount of the fixed token")
	depositCmd.Flags().Bool("base-token1", false, "amount is in token1 instead of token0")
	addLiquidityAccountFlags(depositCmd)
	_ = depositCmd.MarkFlagRequired("pool-id")
	_ = depositCmd.MarkFlagRequired("amount")

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Quote a withdrawal and optionally send it",
		RunE:  runCpSwapWithdraw,
	}
	withdrawCmd.Flags().String("pool-id", "", "pool to withdraw from")
	withdrawCmd.Flags().Uint64("lp-amount", 0, "raw LP amount to burn")
	addLiquidityAccountFlags(withdrawCmd)
	_ = withdrawCmd.MarkFlagRequired("pool-id")
	_ = withdrawCmd.MarkFlagRequired("lp-amount")

	fetchCmd := &cobra.Command{
		Use:   "fetch-pool",
		Short: "Print a pool, or every pool of a mint pair",
		RunE:  runCpSwapFetchPool,
	}
	fetchCmd.Flags().String("pool-id", "", "pool to fetch; overrides the mints")
	fetchCmd.Flags().String("mint0", "", "one mint of the pair")
	fetchCmd.Flags().String("mint1", "", "the other mint of the pair")

	configCmd := &cobra.Command{
		Use:   "fetch-config",
		Short: "Print one fee config, or all of them",
		RunE:  runCpSwapFetchConfig,
	}
	configCmd.Flags().String("amm-config", "", "config account; all configs when unset")

	c.AddCommand(swapCmd, depositCmd, withdrawCmd, fetchCmd, configCmd)
	return c
}

func addLiquidityAccountFlags(c *cobra.Command) {
	c.Flags().String("token0-account", "", "token0 account (default: the signer's account)")
	c.Flags().String("token1-account", "", "token1 account (default: the signer's account)")
	c.Flags().String("lp-account", "", "LP token account (default: the signer's associated account)")
}

func cpSwapProtocol(e *env) *protocol.RaydiumCpmmProtocol {
	return protocol.NewRaydiumCpmm(e.client, e.cfg.Programs.CpSwap, e.log)
}

func runCpSwapSwap(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	args, err := parseSwapArgs(cmd)
	if err != nil {
		return err
	}
	pool, err := cpSwapProtocol(e).FetchCPMMPool(ctx, args.poolID)
	if err != nil {
		return err
	}
	q, err := pool.SwapQuote(ctx, e.client, args.inputMint, args.amount, args.baseIn, e.cfg.SlippageBps)
	if err != nil {
		return err
	}

	info := &pool.Info
	leg := swapLeg{
		inputMint:     info.Token0Mint,
		inputProgram:  info.Token0Program,
		outputMint:    info.Token1Mint,
		outputProgram: info.Token1Program,
	}
	inDec, outDec := info.Mint0Decimals, info.Mint1Decimals
	if q.Direction == cpswap.OneForZero {
		leg.inputMint, leg.outputMint = leg.outputMint, leg.inputMint
		leg.inputProgram, leg.outputProgram = leg.outputProgram, leg.inputProgram
		inDec, outDec = outDec, inDec
	}
	var paid, received uint64
	if q.BaseIn {
		paid, received = q.Amount, q.Curve.DestinationAmountSwapped-q.TransferFeeOut
		leg.maxIn = q.Amount
	} else {
		paid, received = q.Curve.SourceAmountSwapped+q.TransferFeeIn, q.Amount
		leg.maxIn = q.Threshold
	}
	if err := newReport(e.out).
		row("pool", pool.PoolId).
		row("direction", q.Direction).
		row("amount in", uiAmount(paid, inDec)).
		row("amount out", uiAmount(received, outDec)).
		row("trade fee", q.Curve.TradeFee).
		row("transfer fee in", q.TransferFeeIn).
		row("transfer fee out", q.TransferFeeOut).
		row(thresholdLabel(q.BaseIn), q.Threshold).
		flush(); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	instrs, err := e.swapTransaction(ctx, cmd, owner, leg, func(src, dst solana.PublicKey) ([]solana.Instruction, error) {
		return []solana.Instruction{pool.SwapInstruction(owner, src, dst, q.Direction, q.Amount, q.Threshold, q.BaseIn)}, nil
	})
	if err != nil {
		return err
	}
	return e.submit(ctx, key, instrs)
}

func runCpSwapDeposit(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	poolID, _ := cmd.Flags().GetString("pool-id")
	amount, _ := cmd.Flags().GetUint64("amount")
	baseToken1, _ := cmd.Flags().GetBool("base-token1")

	pool, err := cpSwapProtocol(e).FetchCPMMPool(ctx, poolID)
	if err != nil {
		return err
	}
	q, err := pool.DepositQuote(ctx, e.client, amount, !baseToken1, e.cfg.SlippageBps)
	if err != nil {
		return err
	}
	if err := printLiquidityQuote(e, pool, q, "max"); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	lp, user0, user1, instrs, err := cpSwapUserAccounts(ctx, cmd, e, owner, pool, q.Amount0, q.Amount1, 0)
	if err != nil {
		return err
	}
	instrs = append(instrs, pool.DepositInstruction(owner, lp, user0, user1, q))
	return e.submit(ctx, key, instrs)
}

func runCpSwapWithdraw(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	poolID, _ := cmd.Flags().GetString("pool-id")
	lpAmount, _ := cmd.Flags().GetUint64("lp-amount")

	pool, err := cpSwapProtocol(e).FetchCPMMPool(ctx, poolID)
	if err != nil {
		return err
	}
	q, err := pool.WithdrawQuote(ctx, e.client, lpAmount, e.cfg.SlippageBps)
	if err != nil {
		return err
	}
	if err := printLiquidityQuote(e, pool, q, "min"); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	lp, user0, user1, instrs, err := cpSwapUserAccounts(ctx, cmd, e, owner, pool, 0, 0, lpAmount)
	if err != nil {
		return err
	}
	instrs = append(instrs, pool.WithdrawInstruction(owner, lp, user0, user1, q))
	return e.submit(ctx, key, instrs)
}

func printLiquidityQuote(e *env, pool *raydium.CPMMPool, q cpswap.LiquidityQuote, bound string) error {
	return newReport(e.out).
		row("pool", pool.PoolId).
		row("lp amount", uiAmount(q.LpAmount, pool.Info.LpMintDecimals)).
		row(bound+" token0", uiAmount(q.Amount0, pool.Info.Mint0Decimals)).
		row(bound+" token1", uiAmount(q.Amount1, pool.Info.Mint1Decimals)).
		flush()
}

// cpSwapUserAccounts resolves the signer's LP, token0 and token1 accounts.
// Tokens with a non-zero spend are sources; the others receive.
func cpSwapUserAccounts(ctx context.Context, cmd *cobra.Command, e *env, owner solana.PublicKey, pool *raydium.CPMMPool, spend0, spend1, spendLp uint64) (lp, user0, user1 solana.PublicKey, instrs []solana.Instruction, err error) {
	for _, side := range []struct {
		flag    string
		mint    solana.PublicKey
		program solana.PublicKey
		spend   uint64
		dst     *solana.PublicKey
	}{
		{"lp-account", pool.Info.LpMint, solana.TokenProgramID, spendLp, &lp},
		{"token0-account", pool.Info.Token0Mint, pool.Info.Token0Program, spend0, &user0},
		{"token1-account", pool.Info.Token1Mint, pool.Info.Token1Program, spend1, &user1},
	} {
		override, err := optionalPubkeyFlag(cmd, side.flag)
		if err != nil {
			return lp, user0, user1, nil, err
		}
		var (
			acc solana.PublicKey
			ix  []solana.Instruction
		)
		if side.spend > 0 {
			acc, ix, err = e.sourceAccount(ctx, owner, side.mint, side.program, override, side.spend)
		} else {
			acc, ix, err = e.destinationAccount(ctx, owner, side.mint, side.program, override)
		}
		if err != nil {
			return lp, user0, user1, nil, err
		}
		*side.dst = acc
		instrs = append(instrs, ix...)
	}
	return lp, user0, user1, instrs, nil
}

func runCpSwapFetchPool(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	proto := cpSwapProtocol(e)
	var pools []*raydium.CPMMPool
	if poolID, _ := cmd.Flags().GetString("pool-id"); poolID != "" {
		pool, err := proto.FetchCPMMPool(ctx, poolID)
		if err != nil {
			return err
		}
		pools = append(pools, pool)
	} else {
		mint0, _ := cmd.Flags().GetString("mint0")
		mint1, _ := cmd.Flags().GetString("mint1")
		if mint0 == "" || mint1 == "" {
			return fmt.Errorf("either --pool-id or both --mint0 and --mint1 are required")
		}
		if pools, err = proto.FetchCPMMPools(ctx, mint0, mint1); err != nil {
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
			row("status", fmt.Sprintf("%08b", info.Status)).
			row("amm config", info.AmmConfig).
			row("token0 mint", info.Token0Mint).
			row("token0 program", info.Token0Program).
			row("token1 mint", info.Token1Mint).
			row("token1 program", info.Token1Program).
			row("lp mint", info.LpMint).
			row("lp supply", uiAmount(info.LpSupply, info.LpMintDecimals)).
			row("trade fee rate", pool.Config.TradeFeeRate).
			row("creator fee", info.EnableCreatorFee == 1)
		if r0, r1, err := pool.State.Reserves(); err == nil {
			r.row("token0 reserve", uiAmount(r0, info.Mint0Decimals)).
				row("token1 reserve", uiAmount(r1, info.Mint1Decimals))
		} else {
			r.row("reserves", err)
		}
		if price, err := pool.SpotPrice(info.Token0Mint.String()); err == nil {
			r.row("price (token1 per token0)", price.Shift(int32(info.Mint0Decimals)-int32(info.Mint1Decimals)).Round(12))
		}
		r.row("epoch", pool.Epoch)
		if err := r.flush(); err != nil {
			return err
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

func runCpSwapFetchConfig(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	proto := cpSwapProtocol(e)
	var configs []protocol.Keyed[raydium.CpmmAmmConfig]
	if id, _ := cmd.Flags().GetString("amm-config"); id != "" {
		cfg, err := proto.FetchConfig(ctx, id)
		if err != nil {
			return err
		}
		configs = append(configs, protocol.Keyed[raydium.CpmmAmmConfig]{Address: solana.MustPublicKeyFromBase58(id), Value: *cfg})
	} else if configs, err = proto.FetchConfigs(ctx); err != nil {
		return err
	}

	for _, c := range configs {
		if err := newReport(e.out).
			row("config", c.Address).
			row("index", c.Value.Index).
			row("trade fee rate", c.Value.TradeFeeRate).
			row("protocol fee rate", c.Value.ProtocolFeeRate).
			row("fund fee rate", c.Value.FundFeeRate).
			row("creator fee rate", c.Value.CreatorFeeRate).
			row("create pool fee", c.Value.CreatePoolFee).
			row("create disabled", c.Value.DisableCreatePool).
			flush(); err != nil {
			return err
		}
		fmt.Fprintln(e.out)
	}
	return nil
}
