package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// priceScale is 2^128, the Q64.64 scale squared.
var priceScale = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

const priceDigits = 40

// PriceToSqrtPriceX64 converts a human price of token0 in token1 into a Q64.64
// sqrt price over raw amounts.
func PriceToSqrtPriceX64(price decimal.Decimal, decimals0, decimals1 uint8) (uint128.Uint128, error) {
	if !price.IsPositive() {
		return uint128.Zero, fmt.Errorf("%w: price %s must be positive", quote.ErrSqrtPriceOutOfRange, price)
	}
	raw := price.Shift(int32(decimals1) - int32(decimals0)).Mul(priceScale).BigInt()
	x, overflow := uint256.FromBig(raw)
	if overflow {
		return uint128.Zero, fmt.Errorf("%w: price %s", quote.ErrSqrtPriceOutOfRange, price)
	}
	sqrt, err := quote.ToU128(x.Sqrt(x))
	if err != nil {
		return uint128.Zero, err
	}
	if sqrt.Cmp(MinSqrtPriceX64) < 0 || sqrt.Cmp(MaxSqrtPriceX64) > 0 {
		return uint128.Zero, fmt.Errorf("%w: price %s", quote.ErrSqrtPriceOutOfRange, price)
	}
	return sqrt, nil
}

// SqrtPriceX64ToPrice converts a Q64.64 sqrt price back to a human price of
// token0 in token1.
func SqrtPriceX64ToPrice(sqrtPriceX64 uint128.Uint128, decimals0, decimals1 uint8) decimal.Decimal {
	s := sqrtPriceX64.Big()
	squared := decimal.NewFromBigInt(s.Mul(s, s), 0)
	return squared.DivRound(priceScale, priceDigits).Shift(int32(decimals0) - int32(decimals1))
}

// TickAtPrice returns the tick holding a human price, rounded down to spacing.
func TickAtPrice(price decimal.Decimal, decimals0, decimals1 uint8, spacing uint16) (int32, error) {
	sqrt, err := PriceToSqrtPriceX64(price, decimals0, decimals1)
	if err != nil {
		return 0, err
	}
	tick, err := TickAtSqrtPrice(sqrt)
	if err != nil {
		return 0, err
	}
	return RoundToSpacing(tick, spacing), nil
}

// TickRange converts a human price range into spacing-aligned ticks.
func TickRange(lower, upper decimal.Decimal, decimals0, decimals1 uint8, spacing uint16) (int32, int32, error) {
	lo, err := TickAtPrice(lower, decimals0, decimals1, spacing)
	if err != nil {
		return 0, 0, err
	}
	hi, err := TickAtPrice(upper, decimals0, decimals1, spacing)
	if err != nil {
		return 0, 0, err
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: lower tick %d not below upper tick %d", quote.ErrInvalidTick, lo, hi)
	}
	return lo, hi, nil
}

// InitialPrice is the starting state of a pool created at a human price.
type InitialPrice struct {
	Price        decimal.Decimal
	SqrtPriceX64 uint128.Uint128
	Tick         int32
}

// PoolPrice computes the initial price of a pool. Pools order their mints, so
// when the caller's mints are reversed the price is inverted.
func PoolPrice(price decimal.Decimal, reversed bool, decimals0, decimals1 uint8) (InitialPrice, error) {
	if reversed {
		if price.IsZero() {
			return InitialPrice{}, quote.ErrDivisionByZero
		}
		price = decimal.NewFromInt(1).DivRound(price, priceDigits)
	}
	sqrt, err := PriceToSqrtPriceX64(price, decimals0, decimals1)
	if err != nil {
		return InitialPrice{}, err
	}
	tick, err := TickAtSqrtPrice(sqrt)
	if err != nil {
		return InitialPrice{}, err
	}
	return InitialPrice{Price: price, SqrtPriceX64: sqrt, Tick: tick}, nil
}
