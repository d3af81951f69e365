package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/yimingwow/rayquote/pkg/quote"
)

// FeeRate is the pool swap fee as a fraction.
type FeeRate struct {
	Numerator   uint64
	Denominator uint64
}

func (f FeeRate) validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("fee rate: %w", quote.ErrDivisionByZero)
	}
	if f.Numerator > f.Denominator {
		return fmt.Errorf("%w: fee %d/%d above 100%%", quote.ErrInvalidSwapAmount, f.Numerator, f.Denominator)
	}
	return nil
}

// Direction selects which vault receives the input.
type Direction uint8

const (
	CoinToPc Direction = iota
	PcToCoin
)

func (d Direction) String() string {
	if d == CoinToPc {
		return "coin->pc"
	}
	return "pc->coin"
}

// Side names the token whose amount a depositor fixes.
type Side uint8

const (
	SideCoin Side = iota
	SidePc
)

func (r Reserves) inOut(d Direction) (in, out uint64) {
	if d == CoinToPc {
		return r.Coin, r.Pc
	}
	return r.Pc, r.Coin
}

// DepositCounterpart returns the amount of the other token a deposit of
// amount on side must bring to keep the pool ratio, rounded up.
func DepositCounterpart(r Reserves, amount uint64, side Side) (uint64, error) {
	num, den := r.Pc, r.Coin
	if side == SidePc {
		num, den = r.Coin, r.Pc
	}
	if den == 0 {
		return 0, fmt.Errorf("%w: empty %s reserve", quote.ErrZeroTradingTokens, side)
	}
	return quote.MulDivCeil64(amount, num, den)
}

func (s Side) String() string {
	if s == SideCoin {
		return "coin"
	}
	return "pc"
}

// WithdrawAmounts converts lpAmount of lpSupply into pro-rata reserves,
// rounded down.
func WithdrawAmounts(r Reserves, lpSupply, lpAmount uint64) (pc, coin uint64, err error) {
	if lpSupply == 0 {
		return 0, 0, fmt.Errorf("%w: lp supply is zero", quote.ErrZeroTradingTokens)
	}
	if pc, err = quote.MulDivFloor64(r.Pc, lpAmount, lpSupply); err != nil {
		return 0, 0, err
	}
	if coin, err = quote.MulDivFloor64(r.Coin, lpAmount, lpSupply); err != nil {
		return 0, 0, err
	}
	return pc, coin, nil
}

// SwapBaseIn returns the output of selling amountIn in direction d. The fee is
// rounded up and taken from the input before the curve is applied.
func SwapBaseIn(r Reserves, fee FeeRate, d Direction, amountIn uint64) (uint64, error) {
	if err := fee.validate(); err != nil {
		return 0, err
	}
	feeAmount, err := quote.MulDivCeil64(amountIn, fee.Numerator, fee.Denominator)
	if err != nil {
		return 0, err
	}
	afterFee, err := quote.CheckedSub(amountIn, feeAmount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", quote.ErrInvalidSwapAmount, err)
	}
	reserveIn, reserveOut := r.inOut(d)
	denominator := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(afterFee))
	if denominator.IsZero() {
		return 0, fmt.Errorf("%w: empty input reserve", quote.ErrZeroTradingTokens)
	}
	out, err := quote.MulDiv(uint256.NewInt(reserveOut), uint256.NewInt(afterFee), denominator, false)
	if err != nil {
		return 0, err
	}
	return quote.ToU64(out)
}

// SwapBaseOut returns the input, fee included, needed to buy exactly
// amountOut in direction d.
func SwapBaseOut(r Reserves, fee FeeRate, d Direction, amountOut uint64) (uint64, error) {
	if err := fee.validate(); err != nil {
		return 0, err
	}
	if fee.Numerator == fee.Denominator {
		return 0, fmt.Errorf("%w: fee consumes the whole input", quote.ErrInvalidSwapAmount)
	}
	reserveIn, reserveOut := r.inOut(d)
	if reserveOut <= amountOut {
		return 0, fmt.Errorf("%w: want %d of %d in reserve", quote.ErrInvalidSwapAmount, amountOut, reserveOut)
	}
	beforeFee, err := quote.MulDiv(
		uint256.NewInt(reserveIn), uint256.NewInt(amountOut), uint256.NewInt(reserveOut-amountOut), true)
	if err != nil {
		return 0, err
	}
	withFee, err := quote.MulDiv(
		beforeFee, uint256.NewInt(fee.Denominator), uint256.NewInt(fee.Denominator-fee.Numerator), true)
	if err != nil {
		return 0, err
	}
	return quote.ToU64(withFee)
}
