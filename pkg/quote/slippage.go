package quote

import "fmt"

// TenThousand is the basis-point denominator.
const TenThousand = 10_000

// AmountWithSlippage widens amount by slippageBps when up is set and narrows it
// otherwise. The product is taken in 128 bits and floored.
func AmountWithSlippage(amount, slippageBps uint64, up bool) (uint64, error) {
	var factor uint64
	if up {
		f, err := CheckedAdd(TenThousand, slippageBps)
		if err != nil {
			return 0, err
		}
		factor = f
	} else {
		f, err := CheckedSub(TenThousand, slippageBps)
		if err != nil {
			return 0, fmt.Errorf("slippage %d bps: %w", slippageBps, err)
		}
		factor = f
	}
	return MulDivFloor64(amount, factor, TenThousand)
}
