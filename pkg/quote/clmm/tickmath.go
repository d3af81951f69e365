// Package clmm implements the concentrated-liquidity math of Raydium CLMM
// pools: tick and Q64.64 sqrt-price conversion, single-range liquidity
// conversion and the tick-array traversal used to quote swaps.
package clmm

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

const (
	MinTick int32 = -443636
	MaxTick int32 = -MinTick

	// FeeRateDenominator is the parts-per-million base of AmmConfig rates.
	FeeRateDenominator = 1_000_000

	bitPrecision = 16
)

var (
	MinSqrtPriceX64 = uint128.From64(4295048016)
	MaxSqrtPriceX64 = uint128.New(0x845c1aa94e69579b, 0xfffec4b1)

	// Q64 is 1.0 in Q64.64.
	Q64 = uint128.New(0, 1)

	logSqrt10001X64      = big.NewInt(59543866431248)
	logErrMarginLowerX64 = big.NewInt(184467440737095516)
	logErrMarginUpperX64 = new(big.Int).SetUint64(15793534762490258745)
	sqrtRatioOddTick     = uint64(0xfffcb933bd6fb800)
	sqrtRatioPowersOfTwo = [...]uint64{
		0xfff97272373d4000,
		0xfff2e50f5f657000,
		0xffe5caca7e10f000,
		0xffcb9843d60f7000,
		0xff973b41fa98e800,
		0xff2ea16466c9b000,
		0xfe5dee046a9a3800,
		0xfcbe86c7900bb000,
		0xf987a7253ac65800,
		0xf3392b0822bb6000,
		0xe7159475a2caf000,
		0xd097f3bdfd2f2000,
		0xa9f746462d9f8000,
		0x70d869a156f31c00,
		0x31be135f97ed3200,
		0x9aa508b5b85a500,
		0x5d6af8dedc582c,
		0x2216e584f5fa,
	}
)

// SqrtPriceAtTick returns sqrt(1.0001^tick) in Q64.64.
func SqrtPriceAtTick(tick int32) (uint128.Uint128, error) {
	if tick < MinTick || tick > MaxTick {
		return uint128.Zero, fmt.Errorf("%w: %d", quote.ErrInvalidTick, tick)
	}
	abs := uint32(tick)
	if tick < 0 {
		abs = uint32(-tick)
	}
	ratio := Q64
	if abs&1 != 0 {
		ratio = uint128.From64(sqrtRatioOddTick)
	}
	for i, factor := range sqrtRatioPowersOfTwo {
		if abs&(2<<i) != 0 {
			ratio = ratio.Mul64(factor).Rsh(64)
		}
	}
	if tick > 0 {
		ratio = uint128.Max.Div(ratio)
	}
	return ratio, nil
}

// TickAtSqrtPrice returns the greatest tick whose sqrt price does not exceed
// sqrtPriceX64.
func TickAtSqrtPrice(sqrtPriceX64 uint128.Uint128) (int32, error) {
	if sqrtPriceX64.Cmp(MinSqrtPriceX64) < 0 || sqrtPriceX64.Cmp(MaxSqrtPriceX64) >= 0 {
		return 0, fmt.Errorf("%w: %s", quote.ErrSqrtPriceOutOfRange, sqrtPriceX64)
	}
	msb := 127 - sqrtPriceX64.LeadingZeros()
	log2IntegerX32 := int64(msb-64) << 32

	// r is the mantissa normalized into [2^63, 2^64).
	var r uint64
	if msb >= 64 {
		r = sqrtPriceX64.Rsh(uint(msb - 63)).Lo
	} else {
		r = sqrtPriceX64.Lo << uint(63-msb)
	}
	var log2FractionX64 uint64
	bit := uint64(1) << 63
	for precision := 0; bit > 0 && precision < bitPrecision; precision++ {
		hi, lo := bits.Mul64(r, r)
		above := uint(hi >> 63)
		r = uint128.New(lo, hi).Rsh(63 + above).Lo
		if above == 1 {
			log2FractionX64 += bit
		}
		bit >>= 1
	}
	log2X32 := log2IntegerX32 + int64(log2FractionX64>>32)
	logX64 := new(big.Int).Mul(big.NewInt(log2X32), logSqrt10001X64)

	tickLow := int32(new(big.Int).Rsh(new(big.Int).Sub(logX64, logErrMarginLowerX64), 64).Int64())
	tickHigh := int32(new(big.Int).Rsh(new(big.Int).Add(logX64, logErrMarginUpperX64), 64).Int64())
	if tickLow == tickHigh {
		return tickLow, nil
	}
	highPrice, err := SqrtPriceAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if highPrice.Cmp(sqrtPriceX64) <= 0 {
		return tickHigh, nil
	}
	return tickLow, nil
}

// RoundToSpacing rounds tick down to a multiple of spacing.
func RoundToSpacing(tick int32, spacing uint16) int32 {
	s := int32(spacing)
	compressed := tick / s
	if tick < 0 && tick%s != 0 {
		compressed--
	}
	return compressed * s
}
