package clmm

import (
	"errors"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

var q64 = quote.U256(Q64)

func ordered(a, b uint128.Uint128) (uint128.Uint128, uint128.Uint128) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func toU64Amount(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", quote.ErrMaxTokenOverflow, v.Dec())
	}
	return v.Uint64(), nil
}

// DeltaAmount0Unsigned returns the token 0 amount between two sqrt prices
// for liquidity. Results above u64 fail with ErrMaxTokenOverflow.
func DeltaAmount0Unsigned(sqrtA, sqrtB, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return 0, fmt.Errorf("%w: zero sqrt price", quote.ErrSqrtPriceOutOfRange)
	}
	numerator1 := new(uint256.Int).Lsh(quote.U256(liquidity), 64)
	numerator2 := quote.U256(sqrtB.Sub(sqrtA))
	scaled, err := quote.MulDiv(numerator1, numerator2, quote.U256(sqrtB), roundUp)
	if err != nil {
		return 0, err
	}
	var result *uint256.Int
	if roundUp {
		if result, err = quote.DivCeil(scaled, quote.U256(sqrtA)); err != nil {
			return 0, err
		}
	} else {
		result = new(uint256.Int).Div(scaled, quote.U256(sqrtA))
	}
	return toU64Amount(result)
}

// DeltaAmount1Unsigned returns the token 1 amount between two sqrt prices for
// liquidity.
func DeltaAmount1Unsigned(sqrtA, sqrtB, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	result, err := quote.MulDiv(quote.U256(liquidity), quote.U256(sqrtB.Sub(sqrtA)), q64, roundUp)
	if err != nil {
		return 0, err
	}
	return toU64Amount(result)
}

// liquidityMagnitude splits a signed liquidity delta into its u128 magnitude
// and whether it removes liquidity.
func liquidityMagnitude(delta cosmath.Int) (uint128.Uint128, bool, error) {
	if delta.IsNil() {
		return uint128.Zero, false, nil
	}
	abs := delta.Abs().BigInt()
	if abs.BitLen() > 128 {
		return uint128.Zero, false, fmt.Errorf("%w: liquidity delta %s", quote.ErrArithmeticOverflow, delta)
	}
	return uint128.FromBig(abs), delta.IsNegative(), nil
}

// DeltaAmount0Signed rounds up amounts owed to the pool and down amounts owed
// to the position owner.
func DeltaAmount0Signed(sqrtA, sqrtB uint128.Uint128, liquidityDelta cosmath.Int) (uint64, error) {
	l, negative, err := liquidityMagnitude(liquidityDelta)
	if err != nil {
		return 0, err
	}
	return DeltaAmount0Unsigned(sqrtA, sqrtB, l, !negative)
}

func DeltaAmount1Signed(sqrtA, sqrtB uint128.Uint128, liquidityDelta cosmath.Int) (uint64, error) {
	l, negative, err := liquidityMagnitude(liquidityDelta)
	if err != nil {
		return 0, err
	}
	return DeltaAmount1Unsigned(sqrtA, sqrtB, l, !negative)
}

// DeltaAmountsSigned returns the token amounts moved when liquidityDelta is
// applied to the range [tickLower, tickUpper) of a pool at tickCurrent. The
// direction of the transfer follows the sign of liquidityDelta.
func DeltaAmountsSigned(tickCurrent int32, sqrtPriceCurrent uint128.Uint128, tickLower, tickUpper int32, liquidityDelta cosmath.Int) (amount0, amount1 uint64, err error) {
	sqrtLower, err := SqrtPriceAtTick(tickLower)
	if err != nil {
		return 0, 0, err
	}
	sqrtUpper, err := SqrtPriceAtTick(tickUpper)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case tickCurrent < tickLower:
		amount0, err = DeltaAmount0Signed(sqrtLower, sqrtUpper, liquidityDelta)
	case tickCurrent < tickUpper:
		if amount0, err = DeltaAmount0Signed(sqrtPriceCurrent, sqrtUpper, liquidityDelta); err != nil {
			return 0, 0, err
		}
		amount1, err = DeltaAmount1Signed(sqrtLower, sqrtPriceCurrent, liquidityDelta)
	default:
		amount1, err = DeltaAmount1Signed(sqrtLower, sqrtUpper, liquidityDelta)
	}
	if err != nil {
		return 0, 0, err
	}
	return amount0, amount1, nil
}

// AddDelta applies a signed liquidity change.
func AddDelta(liquidity uint128.Uint128, delta cosmath.Int) (uint128.Uint128, error) {
	l, negative, err := liquidityMagnitude(delta)
	if err != nil {
		return uint128.Zero, err
	}
	if negative {
		if liquidity.Cmp(l) < 0 {
			return uint128.Zero, fmt.Errorf("%w: liquidity %s - %s", quote.ErrArithmeticUnderflow, liquidity, l)
		}
		return liquidity.Sub(l), nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(quote.U256(liquidity), quote.U256(l))
	if overflow {
		return uint128.Zero, quote.ErrArithmeticOverflow
	}
	return quote.ToU128(sum)
}

// LiquidityFromAmount0 returns the liquidity amount0 buys over [sqrtA, sqrtB].
func LiquidityFromAmount0(sqrtA, sqrtB uint128.Uint128, amount0 uint64) (uint128.Uint128, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	intermediate, err := quote.MulDiv(quote.U256(sqrtA), quote.U256(sqrtB), q64, false)
	if err != nil {
		return uint128.Zero, err
	}
	l, err := quote.MulDiv(uint256.NewInt(amount0), intermediate, quote.U256(sqrtB.Sub(sqrtA)), false)
	if err != nil {
		return uint128.Zero, err
	}
	return quote.ToU128(l)
}

// LiquidityFromAmount1 returns the liquidity amount1 buys over [sqrtA, sqrtB].
func LiquidityFromAmount1(sqrtA, sqrtB uint128.Uint128, amount1 uint64) (uint128.Uint128, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	l, err := quote.MulDiv(uint256.NewInt(amount1), q64, quote.U256(sqrtB.Sub(sqrtA)), false)
	if err != nil {
		return uint128.Zero, err
	}
	return quote.ToU128(l)
}

// LiquidityFromSingleAmount0 returns the liquidity a position over
// [sqrtA, sqrtB] gets for amount0 at the current price. A range entirely
// below the price holds no token 0 and yields zero.
func LiquidityFromSingleAmount0(sqrtPrice, sqrtA, sqrtB uint128.Uint128, amount0 uint64) (uint128.Uint128, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		return LiquidityFromAmount0(sqrtA, sqrtB, amount0)
	case sqrtPrice.Cmp(sqrtB) < 0:
		return LiquidityFromAmount0(sqrtPrice, sqrtB, amount0)
	}
	return uint128.Zero, nil
}

// LiquidityFromSingleAmount1 is the token 1 counterpart of
// LiquidityFromSingleAmount0.
func LiquidityFromSingleAmount1(sqrtPrice, sqrtA, sqrtB uint128.Uint128, amount1 uint64) (uint128.Uint128, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		return uint128.Zero, nil
	case sqrtPrice.Cmp(sqrtB) < 0:
		return LiquidityFromAmount1(sqrtA, sqrtPrice, amount1)
	}
	return LiquidityFromAmount1(sqrtA, sqrtB, amount1)
}

// LiquidityFromAmounts returns the largest liquidity both amounts can fund.
func LiquidityFromAmounts(sqrtPrice, sqrtA, sqrtB uint128.Uint128, amount0, amount1 uint64) (uint128.Uint128, error) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	if sqrtPrice.Cmp(sqrtA) > 0 && sqrtPrice.Cmp(sqrtB) < 0 {
		l0, err := LiquidityFromAmount0(sqrtPrice, sqrtB, amount0)
		if err != nil {
			return uint128.Zero, err
		}
		l1, err := LiquidityFromAmount1(sqrtA, sqrtPrice, amount1)
		if err != nil {
			return uint128.Zero, err
		}
		if l0.Cmp(l1) < 0 {
			return l0, nil
		}
		return l1, nil
	}
	if sqrtPrice.Cmp(sqrtA) <= 0 {
		return LiquidityFromAmount0(sqrtA, sqrtB, amount0)
	}
	return LiquidityFromAmount1(sqrtA, sqrtB, amount1)
}

func isMaxTokenOverflow(err error) bool {
	return errors.Is(err, quote.ErrMaxTokenOverflow)
}
