package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// NextSqrtPriceFromAmount0RoundingUp moves the price by adding (add) or
// removing amount of token 0, rounding the new price up.
func NextSqrtPriceFromAmount0RoundingUp(sqrtPrice, liquidity uint128.Uint128, amount uint64, add bool) (uint128.Uint128, error) {
	if amount == 0 {
		return sqrtPrice, nil
	}
	numerator := new(uint256.Int).Lsh(quote.U256(liquidity), 64)
	product := new(uint256.Int).Mul(uint256.NewInt(amount), quote.U256(sqrtPrice))
	var denominator *uint256.Int
	if add {
		denominator = new(uint256.Int).Add(numerator, product)
	} else {
		if !numerator.Gt(product) {
			return uint128.Zero, fmt.Errorf("%w: %d token 0 exceeds the virtual reserve", quote.ErrInvalidSwapAmount, amount)
		}
		denominator = new(uint256.Int).Sub(numerator, product)
	}
	next, err := quote.MulDiv(numerator, quote.U256(sqrtPrice), denominator, true)
	if err != nil {
		return uint128.Zero, err
	}
	return quote.ToU128(next)
}

// NextSqrtPriceFromAmount1RoundingDown moves the price by adding (add) or
// removing amount of token 1, rounding the new price down.
func NextSqrtPriceFromAmount1RoundingDown(sqrtPrice, liquidity uint128.Uint128, amount uint64, add bool) (uint128.Uint128, error) {
	shifted := new(uint256.Int).Lsh(uint256.NewInt(amount), 64)
	l := quote.U256(liquidity)
	if l.IsZero() {
		return uint128.Zero, fmt.Errorf("liquidity: %w", quote.ErrDivisionByZero)
	}
	current := quote.U256(sqrtPrice)
	if add {
		next, overflow := new(uint256.Int).AddOverflow(current, new(uint256.Int).Div(shifted, l))
		if overflow {
			return uint128.Zero, quote.ErrArithmeticOverflow
		}
		return quote.ToU128(next)
	}
	delta, err := quote.DivCeil(shifted, l)
	if err != nil {
		return uint128.Zero, err
	}
	if current.Lt(delta) {
		return uint128.Zero, fmt.Errorf("%w: %d token 1 exceeds the virtual reserve", quote.ErrInvalidSwapAmount, amount)
	}
	return quote.ToU128(new(uint256.Int).Sub(current, delta))
}

func checkStepInputs(sqrtPrice, liquidity uint128.Uint128) error {
	if sqrtPrice.IsZero() {
		return fmt.Errorf("%w: zero sqrt price", quote.ErrSqrtPriceOutOfRange)
	}
	if liquidity.IsZero() {
		return fmt.Errorf("%w: zero liquidity", quote.ErrZeroTradingTokens)
	}
	return nil
}

// NextSqrtPriceFromInput returns the price after amountIn enters the pool.
func NextSqrtPriceFromInput(sqrtPrice, liquidity uint128.Uint128, amountIn uint64, zeroForOne bool) (uint128.Uint128, error) {
	if err := checkStepInputs(sqrtPrice, liquidity); err != nil {
		return uint128.Zero, err
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount0RoundingUp(sqrtPrice, liquidity, amountIn, true)
	}
	return NextSqrtPriceFromAmount1RoundingDown(sqrtPrice, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after amountOut leaves the pool.
func NextSqrtPriceFromOutput(sqrtPrice, liquidity uint128.Uint128, amountOut uint64, zeroForOne bool) (uint128.Uint128, error) {
	if err := checkStepInputs(sqrtPrice, liquidity); err != nil {
		return uint128.Zero, err
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount1RoundingDown(sqrtPrice, liquidity, amountOut, false)
	}
	return NextSqrtPriceFromAmount0RoundingUp(sqrtPrice, liquidity, amountOut, false)
}
