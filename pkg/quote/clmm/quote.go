package clmm

import (
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
	"lukechampine.com/uint128"
)

// Pool is the CLMM state a quote needs: pool account, AmmConfig fee rate and
// both mints.
type Pool struct {
	PoolState

	Mint0     *transferfee.Mint
	Mint1     *transferfee.Mint
	Decimals0 uint8
	Decimals1 uint8

	TradeFeeRate uint32
}

// ZeroForOne reports whether inputMint is token0 of the pool.
func (p *Pool) ZeroForOne(inputMint solana.PublicKey) (bool, error) {
	switch {
	case p.Mint0 != nil && inputMint.Equals(p.Mint0.Address):
		return true, nil
	case p.Mint1 != nil && inputMint.Equals(p.Mint1.Address):
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", quote.ErrMismatchedMint, inputMint)
}

// LiquidityQuote describes a position change. Amount0 and Amount1 are the
// maximum transfers after slippage and transfer fees.
type LiquidityQuote struct {
	TickLower int32
	TickUpper int32
	Liquidity uint128.Uint128

	Amount0      uint64
	Amount1      uint64
	TransferFee0 uint64
	TransferFee1 uint64

	TickArrayLower int32
	TickArrayUpper int32
}

// LiquidityChange quotes opening, increasing or decreasing a position over
// [tickLower, tickUpper) sized by amount of token0 (baseToken0) or token1.
// Ticks are rounded down to the pool spacing.
func LiquidityChange(p *Pool, epoch uint64, tickLower, tickUpper int32, amount uint64, baseToken0 bool, slippageBps uint64) (LiquidityQuote, error) {
	spacing := p.TickSpacing()
	q := LiquidityQuote{
		TickLower: RoundToSpacing(tickLower, spacing),
		TickUpper: RoundToSpacing(tickUpper, spacing),
	}
	if q.TickLower >= q.TickUpper {
		return LiquidityQuote{}, fmt.Errorf("%w: lower tick %d not below upper tick %d", quote.ErrInvalidTick, q.TickLower, q.TickUpper)
	}
	sqrtLower, err := SqrtPriceAtTick(q.TickLower)
	if err != nil {
		return LiquidityQuote{}, err
	}
	sqrtUpper, err := SqrtPriceAtTick(q.TickUpper)
	if err != nil {
		return LiquidityQuote{}, err
	}
	if baseToken0 {
		q.Liquidity, err = LiquidityFromSingleAmount0(p.SqrtPriceX64, sqrtLower, sqrtUpper, amount)
	} else {
		q.Liquidity, err = LiquidityFromSingleAmount1(p.SqrtPriceX64, sqrtLower, sqrtUpper, amount)
	}
	if err != nil {
		return LiquidityQuote{}, err
	}

	amount0, amount1, err := DeltaAmountsSigned(p.TickCurrent, p.SqrtPriceX64, q.TickLower, q.TickUpper, cosmath.NewIntFromBigInt(q.Liquidity.Big()))
	if err != nil {
		return LiquidityQuote{}, err
	}
	if amount0, err = quote.AmountWithSlippage(amount0, slippageBps, true); err != nil {
		return LiquidityQuote{}, err
	}
	if amount1, err = quote.AmountWithSlippage(amount1, slippageBps, true); err != nil {
		return LiquidityQuote{}, err
	}
	if q.TransferFee0, err = p.Mint0.InverseFeeAt(epoch, amount0); err != nil {
		return LiquidityQuote{}, err
	}
	if q.TransferFee1, err = p.Mint1.InverseFeeAt(epoch, amount1); err != nil {
		return LiquidityQuote{}, err
	}
	if q.Amount0, err = quote.CheckedAdd(amount0, q.TransferFee0); err != nil {
		return LiquidityQuote{}, err
	}
	if q.Amount1, err = quote.CheckedAdd(amount1, q.TransferFee1); err != nil {
		return LiquidityQuote{}, err
	}

	q.TickArrayLower = ArrayStartIndex(q.TickLower, spacing)
	q.TickArrayUpper = ArrayStartIndex(q.TickUpper, spacing)
	return q, nil
}

// SwapQuote is a priced CLMM swap. Amount is what the caller specified and
// Threshold the minimum output (exact input) or maximum input (exact output)
// after slippage and transfer fees.
type SwapQuote struct {
	ZeroForOne        bool
	BaseIn            bool
	Amount            uint64
	Threshold         uint64
	TransferFee       uint64
	SqrtPriceLimitX64 uint128.Uint128
	Result            SwapResult
}

// SwapChange quotes a swap. The cursor must hold the tick arrays listed by
// Bitmap.InitializedTickArrays for the same direction.
func SwapChange(p *Pool, cursor *TickArrayCursor, epoch, amount uint64, sqrtPriceLimit uint128.Uint128, zeroForOne, baseIn bool, slippageBps uint64) (SwapQuote, error) {
	q := SwapQuote{ZeroForOne: zeroForOne, BaseIn: baseIn, Amount: amount}
	in := p.Mint1
	if zeroForOne {
		in = p.Mint0
	}

	specified := amount
	if baseIn {
		fee, err := in.FeeAt(epoch, amount)
		if err != nil {
			return SwapQuote{}, err
		}
		q.TransferFee = fee
		if specified, err = quote.CheckedSub(amount, fee); err != nil {
			return SwapQuote{}, err
		}
	}

	if sqrtPriceLimit.IsZero() {
		sqrtPriceLimit = DefaultPriceLimit(zeroForOne)
	}
	q.SqrtPriceLimitX64 = sqrtPriceLimit
	res, err := SwapCompute(&p.PoolState, cursor, p.TradeFeeRate, specified, sqrtPriceLimit, zeroForOne, baseIn)
	if err != nil {
		return SwapQuote{}, err
	}
	q.Result = res

	if baseIn {
		q.Threshold, err = quote.AmountWithSlippage(res.Amount, slippageBps, false)
		return q, err
	}
	maxIn, err := quote.AmountWithSlippage(res.Amount, slippageBps, true)
	if err != nil {
		return SwapQuote{}, err
	}
	if q.TransferFee, err = in.InverseFeeAt(epoch, maxIn); err != nil {
		return SwapQuote{}, err
	}
	if q.Threshold, err = quote.CheckedAdd(maxIn, q.TransferFee); err != nil {
		return SwapQuote{}, err
	}
	return q, nil
}
