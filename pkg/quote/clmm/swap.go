package clmm

import (
	"fmt"

	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// MaxSwapSteps bounds the number of swap steps one quote may take.
const MaxSwapSteps = 10

// PoolState is the part of a CLMM pool a swap quote reads.
type PoolState struct {
	SqrtPriceX64 uint128.Uint128
	TickCurrent  int32
	Liquidity    uint128.Uint128
	Bitmap       Bitmap
}

func (p *PoolState) TickSpacing() uint16 {
	return p.Bitmap.TickSpacing
}

// SwapResult is the outcome of SwapCompute. Amount is the output for exact
// input swaps and the input including fees for exact output swaps.
type SwapResult struct {
	Amount     uint64
	TickArrays []int32
	Steps      int

	SqrtPriceX64 uint128.Uint128
	TickCurrent  int32
	Liquidity    uint128.Uint128
}

// DefaultPriceLimit is the furthest price a swap in the given direction may
// reach.
func DefaultPriceLimit(zeroForOne bool) uint128.Uint128 {
	if zeroForOne {
		return MinSqrtPriceX64.Add64(1)
	}
	return MaxSqrtPriceX64.Sub64(1)
}

func checkPriceLimit(pool *PoolState, limit uint128.Uint128, zeroForOne bool) error {
	if zeroForOne {
		if limit.Cmp(MinSqrtPriceX64) <= 0 || limit.Cmp(pool.SqrtPriceX64) >= 0 {
			return fmt.Errorf("%w: %s not in (%s, %s)", quote.ErrInvalidPriceLimit, limit, MinSqrtPriceX64, pool.SqrtPriceX64)
		}
		return nil
	}
	if limit.Cmp(MaxSqrtPriceX64) >= 0 || limit.Cmp(pool.SqrtPriceX64) <= 0 {
		return fmt.Errorf("%w: %s not in (%s, %s)", quote.ErrInvalidPriceLimit, limit, pool.SqrtPriceX64, MaxSqrtPriceX64)
	}
	return nil
}

// SwapCompute simulates a swap against pool using only the tick arrays the
// cursor holds. The cursor must yield, in order, the initialized tick arrays
// the swap crosses starting with the first one from FirstInitializedTickArray.
// A zero sqrtPriceLimit means DefaultPriceLimit.
func SwapCompute(
	pool *PoolState,
	cursor *TickArrayCursor,
	feeRate uint32,
	amount uint64,
	sqrtPriceLimit uint128.Uint128,
	zeroForOne, baseInput bool,
) (SwapResult, error) {
	if amount == 0 {
		return SwapResult{}, quote.ErrZeroAmount
	}
	if sqrtPriceLimit.IsZero() {
		sqrtPriceLimit = DefaultPriceLimit(zeroForOne)
	}
	if err := checkPriceLimit(pool, sqrtPriceLimit, zeroForOne); err != nil {
		return SwapResult{}, err
	}

	spacing := pool.TickSpacing()
	start, inCurrent, err := pool.Bitmap.FirstInitializedTickArray(pool.TickCurrent, zeroForOne)
	if err != nil {
		return SwapResult{}, err
	}
	array, err := cursor.Next(start)
	if err != nil {
		return SwapResult{}, err
	}

	res := SwapResult{
		TickArrays:   []int32{start},
		SqrtPriceX64: pool.SqrtPriceX64,
		TickCurrent:  pool.TickCurrent,
		Liquidity:    pool.Liquidity,
	}
	remaining := amount

	for remaining != 0 &&
		!res.SqrtPriceX64.Equals(sqrtPriceLimit) &&
		res.TickCurrent < MaxTick && res.TickCurrent > MinTick {
		if res.Steps >= MaxSwapSteps {
			return SwapResult{}, fmt.Errorf("%w: %d steps left %d unfilled", quote.ErrLoopCountExceeded, res.Steps, remaining)
		}
		priceStart := res.SqrtPriceX64

		next := array.NextInitializedTick(res.TickCurrent, spacing, zeroForOne)
		if next == nil && !inCurrent {
			inCurrent = true
			if next, err = array.FirstInitializedTick(zeroForOne); err != nil {
				return SwapResult{}, err
			}
		}
		if next == nil {
			var ok bool
			start, ok, err = pool.Bitmap.NextInitializedTickArrayStartIndex(start, zeroForOne)
			if err != nil {
				return SwapResult{}, err
			}
			if !ok {
				return SwapResult{}, fmt.Errorf("%w: no initialized tick array past %d", quote.ErrInsufficientTickArrays, array.StartTickIndex)
			}
			if array, err = cursor.Next(start); err != nil {
				return SwapResult{}, err
			}
			res.TickArrays = append(res.TickArrays, start)
			if next, err = array.FirstInitializedTick(zeroForOne); err != nil {
				return SwapResult{}, err
			}
		}

		tickNext := next.Tick
		if tickNext < MinTick {
			tickNext = MinTick
		} else if tickNext > MaxTick {
			tickNext = MaxTick
		}
		priceNext, err := SqrtPriceAtTick(tickNext)
		if err != nil {
			return SwapResult{}, err
		}
		target := priceNext
		if (zeroForOne && priceNext.Cmp(sqrtPriceLimit) < 0) || (!zeroForOne && priceNext.Cmp(sqrtPriceLimit) > 0) {
			target = sqrtPriceLimit
		}

		step, err := ComputeSwapStep(res.SqrtPriceX64, target, res.Liquidity, remaining, feeRate, baseInput, zeroForOne)
		if err != nil {
			return SwapResult{}, err
		}
		res.SqrtPriceX64 = step.SqrtPriceNextX64

		spent, got := step.AmountOut, step.AmountIn+step.FeeAmount
		if baseInput {
			spent, got = step.AmountIn+step.FeeAmount, step.AmountOut
		}
		if remaining, err = quote.CheckedSub(remaining, spent); err != nil {
			return SwapResult{}, err
		}
		if res.Amount, err = quote.CheckedAdd(res.Amount, got); err != nil {
			return SwapResult{}, err
		}

		if res.SqrtPriceX64.Equals(priceNext) {
			if next.Initialized() {
				net := next.LiquidityNet
				if zeroForOne {
					net = net.Neg()
				}
				if res.Liquidity, err = AddDelta(res.Liquidity, net); err != nil {
					return SwapResult{}, err
				}
			}
			res.TickCurrent = tickNext
			if zeroForOne {
				res.TickCurrent = tickNext - 1
			}
		} else if !res.SqrtPriceX64.Equals(priceStart) {
			if res.TickCurrent, err = TickAtSqrtPrice(res.SqrtPriceX64); err != nil {
				return SwapResult{}, err
			}
		}
		res.Steps++
	}
	return res, nil
}
