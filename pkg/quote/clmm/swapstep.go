package clmm

import (
	"fmt"

	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// SwapStep is the result of swapping within one constant-liquidity range.
type SwapStep struct {
	SqrtPriceNextX64 uint128.Uint128
	AmountIn         uint64
	AmountOut        uint64
	FeeAmount        uint64
}

// amountInRange returns the amount that moves the price from current to
// target. ok is false when it does not fit in u64, so the whole remainder is
// consumed before the target.
func amountInRange(current, target, liquidity uint128.Uint128, zeroForOne, baseInput bool) (amount uint64, ok bool, err error) {
	switch {
	case baseInput && zeroForOne:
		amount, err = DeltaAmount0Unsigned(target, current, liquidity, true)
	case baseInput:
		amount, err = DeltaAmount1Unsigned(current, target, liquidity, true)
	case zeroForOne:
		amount, err = DeltaAmount1Unsigned(target, current, liquidity, false)
	default:
		amount, err = DeltaAmount0Unsigned(current, target, liquidity, false)
	}
	if isMaxTokenOverflow(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

// ComputeSwapStep swaps amountRemaining toward target at constant liquidity.
// For base input amountRemaining includes the fee; for base output it is the
// output still owed.
func ComputeSwapStep(current, target, liquidity uint128.Uint128, amountRemaining uint64, feeRate uint32, baseInput, zeroForOne bool) (SwapStep, error) {
	if uint64(feeRate) >= FeeRateDenominator {
		return SwapStep{}, fmt.Errorf("%w: fee rate %d", quote.ErrInvalidSwapAmount, feeRate)
	}
	var step SwapStep
	inRange, ok, err := amountInRange(current, target, liquidity, zeroForOne, baseInput)
	if err != nil {
		return SwapStep{}, err
	}
	if baseInput {
		lessFee, err := quote.MulDivFloor64(amountRemaining, FeeRateDenominator-uint64(feeRate), FeeRateDenominator)
		if err != nil {
			return SwapStep{}, err
		}
		step.AmountIn = inRange
		if ok && lessFee >= inRange {
			step.SqrtPriceNextX64 = target
		} else if step.SqrtPriceNextX64, err = NextSqrtPriceFromInput(current, liquidity, lessFee, zeroForOne); err != nil {
			return SwapStep{}, err
		}
	} else {
		step.AmountOut = inRange
		if ok && amountRemaining >= inRange {
			step.SqrtPriceNextX64 = target
		} else if step.SqrtPriceNextX64, err = NextSqrtPriceFromOutput(current, liquidity, amountRemaining, zeroForOne); err != nil {
			return SwapStep{}, err
		}
	}

	reached := step.SqrtPriceNextX64.Equals(target)
	next := step.SqrtPriceNextX64
	if zeroForOne {
		if !(reached && baseInput) {
			if step.AmountIn, err = DeltaAmount0Unsigned(next, current, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reached && !baseInput) {
			if step.AmountOut, err = DeltaAmount1Unsigned(next, current, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if !(reached && baseInput) {
			if step.AmountIn, err = DeltaAmount1Unsigned(current, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reached && !baseInput) {
			if step.AmountOut, err = DeltaAmount0Unsigned(current, next, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	}

	if !baseInput && step.AmountOut > amountRemaining {
		step.AmountOut = amountRemaining
	}
	if baseInput && !reached {
		// The remainder not swapped is the fee.
		if step.FeeAmount, err = quote.CheckedSub(amountRemaining, step.AmountIn); err != nil {
			return SwapStep{}, err
		}
	} else if step.FeeAmount, err = quote.MulDivCeil64(step.AmountIn, uint64(feeRate), FeeRateDenominator-uint64(feeRate)); err != nil {
		return SwapStep{}, err
	}
	return step, nil
}
