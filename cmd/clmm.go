package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"github.com/yimingwow/rayquote/pkg/pool/raydium"
	"github.com/yimingwow/rayquote/pkg/protocol"
	"github.com/yimingwow/rayquote/pkg/quote/clmm"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
)

func newClmmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "clmm",
		Short: "Raydium concentrated liquidity pools",
	}

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a swap and optionally send it",
		RunE:  runClmmSwap,
	}
	addSwapFlags(swapCmd)
	swapCmd.Flags().String("limit-price", "", "human price of token0 in token1 the swap may not cross")

	c.AddCommand(swapCmd)
	for _, p := range []struct {
		use, short string
		rewards    bool
	}{
		{"open-position", "Quote the amounts needed to open a position", false},
		{"increase-liquidity", "Quote adding liquidity to a position range", false},
		{"decrease-liquidity", "Quote removing liquidity from a position range", true},
	} {
		pc := &cobra.Command{
			Use:   p.use,
			Short: p.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runClmmPosition(cmd, p.rewards)
			},
		}
		pc.Flags().String("pool-id", "", "pool of the position")
		pc.Flags().String("lower-price", "", "human lower price of token0 in token1")
		pc.Flags().String("upper-price", "", "human upper price of token0 in token1")
		pc.Flags().Uint64("amount", 0, "raw amount of the fixed token")
		pc.Flags().Bool("base-token1", false, "amount is in token1 instead of token0")
		_ = pc.MarkFlagRequired("pool-id")
		_ = pc.MarkFlagRequired("lower-price")
		_ = pc.MarkFlagRequired("upper-price")
		_ = pc.MarkFlagRequired("amount")
		c.AddCommand(pc)
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch-pool",
		Short: "Print a pool, or every pool of a mint pair",
		RunE:  runClmmFetchPool,
	}
	fetchCmd.Flags().String("pool-id", "", "pool to fetch; overrides the mints")
	fetchCmd.Flags().String("mint0", "", "one mint of the pair")
	fetchCmd.Flags().String("mint1", "", "the other mint of the pair")

	configCmd := &cobra.Command{
		Use:   "fetch-config",
		Short: "Print one fee tier, or all of them",
		RunE:  runClmmFetchConfig,
	}
	configCmd.Flags().String("amm-config", "", "config account; all configs when unset")

	priceCmd := &cobra.Command{
		Use:   "pool-price",
		Short: "Compute the initial sqrt price and tick of a new pool",
		RunE:  runClmmPoolPrice,
	}
	priceCmd.Flags().String("mint0", "", "mint the price is quoted for")
	priceCmd.Flags().String("mint1", "", "mint the price is quoted in")
	priceCmd.Flags().String("price", "", "human price of mint0 in mint1")
	_ = priceCmd.MarkFlagRequired("mint0")
	_ = priceCmd.MarkFlagRequired("mint1")
	_ = priceCmd.MarkFlagRequired("price")

	c.AddCommand(fetchCmd, configCmd, priceCmd)
	return c
}

func clmmProtocol(e *env) *protocol.RaydiumClmmProtocol {
	return protocol.NewRaydiumClmm(e.client, e.cfg.Programs.Clmm, e.log)
}

func runClmmSwap(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	args, err := parseSwapArgs(cmd)
	if err != nil {
		return err
	}
	pool, err := clmmProtocol(e).FetchCLMMPool(ctx, args.poolID)
	if err != nil {
		return err
	}
	limit := uint128.Zero
	if v, _ := cmd.Flags().GetString("limit-price"); v != "" {
		price, err := decimalFlag(cmd, "limit-price")
		if err != nil {
			return err
		}
		if limit, err = clmm.PriceToSqrtPriceX64(price, pool.Info.MintDecimals0, pool.Info.MintDecimals1); err != nil {
			return err
		}
	}
	q, err := pool.SwapQuote(ctx, e.client, args.inputMint, args.amount, limit, args.baseIn, e.cfg.SlippageBps)
	if err != nil {
		return err
	}

	in, out := pool.State.Mint0, pool.State.Mint1
	if !q.ZeroForOne {
		in, out = out, in
	}
	paid, received := q.Amount, q.Result.Amount
	maxIn := q.Amount
	if !q.BaseIn {
		paid, received = q.Result.Amount, q.Amount
		maxIn = q.Threshold
	}
	if err := newReport(e.out).
		row("pool", pool.PoolId).
		row("zero for one", q.ZeroForOne).
		row("amount in", uiAmount(paid, in.Decimals)).
		row("amount out", uiAmount(received, out.Decimals)).
		row("transfer fee in", q.TransferFee).
		row(thresholdLabel(q.BaseIn), q.Threshold).
		row("price after", clmm.SqrtPriceX64ToPrice(q.Result.SqrtPriceX64, pool.State.Decimals0, pool.State.Decimals1).Round(12)).
		row("tick after", q.Result.TickCurrent).
		row("tick arrays", q.Result.TickArrays).
		flush(); err != nil {
		return err
	}

	key, ok, err := e.signer()
	if err != nil || !ok {
		return err
	}
	owner := key.PublicKey()
	instrs, err := e.swapTransaction(ctx, cmd, owner, swapLeg{
		inputMint:     in.Address,
		inputProgram:  in.Program,
		outputMint:    out.Address,
		outputProgram: out.Program,
		maxIn:         maxIn,
	}, func(src, dst solana.PublicKey) ([]solana.Instruction, error) {
		inst, err := pool.SwapInstruction(owner, src, dst, q.Amount, q.Threshold, q)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{inst}, nil
	})
	if err != nil {
		return err
	}
	return e.submit(ctx, key, instrs)
}

func runClmmPosition(cmd *cobra.Command, rewards bool) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	poolID, _ := cmd.Flags().GetString("pool-id")
	amount, _ := cmd.Flags().GetUint64("amount")
	baseToken1, _ := cmd.Flags().GetBool("base-token1")
	lower, err := decimalFlag(cmd, "lower-price")
	if err != nil {
		return err
	}
	upper, err := decimalFlag(cmd, "upper-price")
	if err != nil {
		return err
	}

	pool, err := clmmProtocol(e).FetchCLMMPool(ctx, poolID)
	if err != nil {
		return err
	}
	info := &pool.Info
	tickLower, tickUpper, err := clmm.TickRange(lower, upper, info.MintDecimals0, info.MintDecimals1, info.TickSpacing)
	if err != nil {
		return err
	}
	q, err := pool.LiquidityQuote(ctx, e.client, tickLower, tickUpper, amount, !baseToken1, e.cfg.SlippageBps)
	if err != nil {
		return err
	}

	r := newReport(e.out).
		row("pool", pool.PoolId).
		row("price", pool.Price().Round(12)).
		row("tick lower", q.TickLower).
		row("tick upper", q.TickUpper).
		row("price lower", tickPrice(q.TickLower, info.MintDecimals0, info.MintDecimals1)).
		row("price upper", tickPrice(q.TickUpper, info.MintDecimals0, info.MintDecimals1)).
		row("liquidity", q.Liquidity).
		row("amount0", uiAmount(q.Amount0, info.MintDecimals0)).
		row("amount1", uiAmount(q.Amount1, info.MintDecimals1)).
		row("transfer fee0", q.TransferFee0).
		row("transfer fee1", q.TransferFee1).
		row("tick array lower", q.TickArrayLower).
		row("tick array upper", q.TickArrayUpper)
	if rewards {
		r.row("reward mints", info.RewardMints())
	}
	return r.flush()
}

// tickPrice is the human price at an aligned tick.
func tickPrice(tick int32, decimals0, decimals1 uint8) string {
	sqrt, err := clmm.SqrtPriceAtTick(tick)
	if err != nil {
		return err.Error()
	}
	return clmm.SqrtPriceX64ToPrice(sqrt, decimals0, decimals1).Round(12).String()
}

func runClmmFetchPool(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	proto := clmmProtocol(e)
	var pools []*raydium.CLMMPool
	if poolID, _ := cmd.Flags().GetString("pool-id"); poolID != "" {
		pool, err := proto.FetchCLMMPool(ctx, poolID)
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
		if pools, err = proto.FetchCLMMPools(ctx, mint0, mint1); err != nil {
			return err
		}
	}

	for _, pool := range pools {
		if _, err := pool.Load(ctx, e.client); err != nil {
			return err
		}
		info := &pool.Info
		r := newReport(e.out).
			row("pool", pool.PoolId).
			row("amm config", info.AmmConfig).
			row("token0 mint", info.TokenMint0).
			row("token0 program", pool.State.Mint0.Program).
			row("token1 mint", info.TokenMint1).
			row("token1 program", pool.State.Mint1.Program).
			row("tick spacing", info.TickSpacing).
			row("trade fee rate", pool.Config.TradeFeeRate).
			row("liquidity", info.Liquidity).
			row("sqrt price x64", info.SqrtPriceX64).
			row("tick current", info.TickCurrent).
			row("price", pool.Price().Round(12)).
			row("reward mints", info.RewardMints()).
			row("bitmap extension", pool.State.Bitmap.Extension != nil).
			row("epoch", pool.Epoch)
		for _, m := range []*transferfee.Mint{pool.State.Mint0, pool.State.Mint1} {
			if m.TransferFee != nil {
				fee := m.TransferFee.EpochFee(pool.Epoch)
				r.row("transfer fee "+m.Address.String(), fmt.Sprintf("%d bps, max %d", fee.BasisPoints, fee.MaximumFee))
			}
		}
		if err := r.flush(); err != nil {
			return err
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

func runClmmFetchConfig(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	proto := clmmProtocol(e)
	var configs []protocol.Keyed[raydium.ClmmAmmConfig]
	if id, _ := cmd.Flags().GetString("amm-config"); id != "" {
		cfg, err := proto.FetchConfig(ctx, id)
		if err != nil {
			return err
		}
		configs = append(configs, protocol.Keyed[raydium.ClmmAmmConfig]{Address: solana.MustPublicKeyFromBase58(id), Value: *cfg})
	} else if configs, err = proto.FetchConfigs(ctx); err != nil {
		return err
	}

	for _, c := range configs {
		if err := newReport(e.out).
			row("config", c.Address).
			row("index", c.Value.Index).
			row("tick spacing", c.Value.TickSpacing).
			row("trade fee rate", c.Value.TradeFeeRate).
			row("protocol fee rate", c.Value.ProtocolFeeRate).
			row("fund fee rate", c.Value.FundFeeRate).
			flush(); err != nil {
			return err
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

func runClmmPoolPrice(cmd *cobra.Command, _ []string) error {
	ctx, e, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	mintA, err := pubkeyFlag(cmd, "mint0")
	if err != nil {
		return err
	}
	mintB, err := pubkeyFlag(cmd, "mint1")
	if err != nil {
		return err
	}
	price, err := decimalFlag(cmd, "price")
	if err != nil {
		return err
	}

	mints, err := loadMints(ctx, e, mintA, mintB)
	if err != nil {
		return err
	}
	m0, m1 := mints[0], mints[1]
	reversed := bytes.Compare(mintA[:], mintB[:]) > 0
	if reversed {
		m0, m1 = m1, m0
	}
	p, err := clmm.PoolPrice(price, reversed, m0.Decimals, m1.Decimals)
	if err != nil {
		return err
	}
	return newReport(e.out).
		row("mint0", m0.Address).
		row("mint1", m1.Address).
		row("reversed", reversed).
		row("price", p.Price).
		row("sqrt price x64", p.SqrtPriceX64).
		row("tick", p.Tick).
		flush()
}

// loadMints reads mints in one snapshot.
func loadMints(ctx context.Context, e *env, keys ...solana.PublicKey) ([]*transferfee.Mint, error) {
	snap, err := e.client.Snapshot(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make([]*transferfee.Mint, len(keys))
	for i, k := range keys {
		acc, err := snap.Get(k)
		if err != nil {
			return nil, err
		}
		if out[i], err = transferfee.ParseMint(k, acc.Owner, acc.Data); err != nil {
			return nil, err
		}
	}
	return out, nil
}
