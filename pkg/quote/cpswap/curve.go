// Package cpswap implements quoting for Raydium CP-Swap pools: a constant
// product curve whose trade fee is charged in parts per million and whose
// vault legs may be Token-2022 mints with transfer fees.
package cpswap

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/yimingwow/rayquote/pkg/quote"
)

// FeeRateDenominator is the parts-per-million base of every CP-Swap fee rate.
const FeeRateDenominator = 1_000_000

// Direction selects the input vault.
type Direction uint8

const (
	ZeroForOne Direction = iota
	OneForZero
)

func (d Direction) String() string {
	if d == ZeroForOne {
		return "zero_for_one"
	}
	return "one_for_zero"
}

// Rounding selects how LP conversions round the token side.
type Rounding uint8

const (
	Floor Rounding = iota
	Ceiling
)

// FeeRates are the AmmConfig rates. Protocol, fund and creator rates split
// the trade fee and do not change the trader-facing amounts.
type FeeRates struct {
	Trade    uint64
	Protocol uint64
	Fund     uint64
	Creator  uint64
}

// SwapResult is the curve output of one swap.
type SwapResult struct {
	NewSourceAmount          uint64
	NewDestinationAmount     uint64
	SourceAmountSwapped      uint64
	DestinationAmountSwapped uint64
	TradeFee                 uint64
	ProtocolFee              uint64
	FundFee                  uint64
}

func tradingFee(amount, rate uint64) (uint64, error) {
	return quote.MulDivCeil64(amount, rate, FeeRateDenominator)
}

func splitFee(tradeFee, rate uint64) (uint64, error) {
	return quote.MulDivFloor64(tradeFee, rate, FeeRateDenominator)
}

// preFeeAmount grosses amount up so that charging the trade fee leaves at
// least amount.
func preFeeAmount(amount, rate uint64) (uint64, error) {
	if rate == 0 {
		return amount, nil
	}
	if rate >= FeeRateDenominator {
		return 0, fmt.Errorf("%w: trade fee rate %d", quote.ErrInvalidSwapAmount, rate)
	}
	return quote.MulDivCeil64(amount, FeeRateDenominator, FeeRateDenominator-rate)
}

func (r FeeRates) split(tradeFee uint64) (protocol, fund uint64, err error) {
	if protocol, err = splitFee(tradeFee, r.Protocol); err != nil {
		return 0, 0, err
	}
	if fund, err = splitFee(tradeFee, r.Fund); err != nil {
		return 0, 0, err
	}
	return protocol, fund, nil
}

// SwapBaseInput prices selling sourceAmount into a pool holding the given
// source and destination reserves. The trade fee is rounded up and removed
// from the input before the curve.
func SwapBaseInput(sourceAmount, swapSource, swapDestination uint64, rates FeeRates) (SwapResult, error) {
	if swapSource == 0 || swapDestination == 0 {
		return SwapResult{}, fmt.Errorf("%w: empty reserve", quote.ErrZeroTradingTokens)
	}
	tradeFee, err := tradingFee(sourceAmount, rates.Trade)
	if err != nil {
		return SwapResult{}, err
	}
	protocolFee, fundFee, err := rates.split(tradeFee)
	if err != nil {
		return SwapResult{}, err
	}
	lessFees, err := quote.CheckedSub(sourceAmount, tradeFee)
	if err != nil {
		return SwapResult{}, err
	}
	denominator := new(uint256.Int).Add(uint256.NewInt(swapSource), uint256.NewInt(lessFees))
	out, err := quote.MulDiv(uint256.NewInt(lessFees), uint256.NewInt(swapDestination), denominator, false)
	if err != nil {
		return SwapResult{}, err
	}
	destination, err := quote.ToU64(out)
	if err != nil {
		return SwapResult{}, err
	}
	if destination == 0 {
		return SwapResult{}, fmt.Errorf("%w: %d in yields nothing", quote.ErrZeroTradingTokens, sourceAmount)
	}
	newSource, err := quote.CheckedAdd(swapSource, sourceAmount)
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{
		NewSourceAmount:          newSource,
		NewDestinationAmount:     swapDestination - destination,
		SourceAmountSwapped:      sourceAmount,
		DestinationAmountSwapped: destination,
		TradeFee:                 tradeFee,
		ProtocolFee:              protocolFee,
		FundFee:                  fundFee,
	}, nil
}

// SwapBaseOutput prices buying exactly destinationAmount. The curve input is
// rounded up and then grossed up by the trade fee.
func SwapBaseOutput(destinationAmount, swapSource, swapDestination uint64, rates FeeRates) (SwapResult, error) {
	if swapSource == 0 || swapDestination == 0 {
		return SwapResult{}, fmt.Errorf("%w: empty reserve", quote.ErrZeroTradingTokens)
	}
	if destinationAmount == 0 {
		return SwapResult{}, fmt.Errorf("%w: zero output requested", quote.ErrZeroTradingTokens)
	}
	if destinationAmount >= swapDestination {
		return SwapResult{}, fmt.Errorf("%w: want %d of %d in reserve",
			quote.ErrInvalidSwapAmount, destinationAmount, swapDestination)
	}
	swapped, err := quote.MulDivCeil64(destinationAmount, swapSource, swapDestination-destinationAmount)
	if err != nil {
		return SwapResult{}, err
	}
	source, err := preFeeAmount(swapped, rates.Trade)
	if err != nil {
		return SwapResult{}, err
	}
	tradeFee, err := tradingFee(source, rates.Trade)
	if err != nil {
		return SwapResult{}, err
	}
	protocolFee, fundFee, err := rates.split(tradeFee)
	if err != nil {
		return SwapResult{}, err
	}
	newSource, err := quote.CheckedAdd(swapSource, source)
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{
		NewSourceAmount:          newSource,
		NewDestinationAmount:     swapDestination - destinationAmount,
		SourceAmountSwapped:      source,
		DestinationAmountSwapped: destinationAmount,
		TradeFee:                 tradeFee,
		ProtocolFee:              protocolFee,
		FundFee:                  fundFee,
	}, nil
}

// LpToTokens converts lpAmount into the share of each reserve it represents.
// Ceiling rounding adds one unit to a non-zero share that had a remainder.
func LpToTokens(lpAmount, lpSupply, reserve0, reserve1 uint64, round Rounding) (amount0, amount1 uint64, err error) {
	if lpSupply == 0 {
		return 0, 0, fmt.Errorf("%w: lp supply is zero", quote.ErrZeroTradingTokens)
	}
	share := func(reserve uint64) (uint64, error) {
		q, rem := new(uint256.Int).DivMod(
			new(uint256.Int).Mul(uint256.NewInt(lpAmount), uint256.NewInt(reserve)),
			uint256.NewInt(lpSupply),
			new(uint256.Int))
		if round == Ceiling && !rem.IsZero() && !q.IsZero() {
			q.AddUint64(q, 1)
		}
		return quote.ToU64(q)
	}
	if amount0, err = share(reserve0); err != nil {
		return 0, 0, err
	}
	if amount1, err = share(reserve1); err != nil {
		return 0, 0, err
	}
	if amount0 == 0 || amount1 == 0 {
		return 0, 0, fmt.Errorf("%w: %d lp converts to (%d, %d)", quote.ErrZeroTradingTokens, lpAmount, amount0, amount1)
	}
	return amount0, amount1, nil
}

// TokensToLp returns the LP amount a deposit of amountSpecified on the base
// side mints. The counterpart is implied from the reserve ratio and the
// scarcer side binds.
func TokensToLp(amountSpecified, lpSupply, reserve0, reserve1 uint64, baseToken0 bool) (uint64, error) {
	if reserve0 == 0 || reserve1 == 0 {
		return 0, fmt.Errorf("%w: empty reserve", quote.ErrZeroTradingTokens)
	}
	var amount0, amount1 uint64
	var err error
	if baseToken0 {
		amount0 = amountSpecified
		amount1, err = quote.MulDivFloor64(amountSpecified, reserve1, reserve0)
	} else {
		amount1 = amountSpecified
		amount0, err = quote.MulDivFloor64(amountSpecified, reserve0, reserve1)
	}
	if err != nil {
		return 0, err
	}
	lp0, err := quote.MulDivFloor64(amount0, lpSupply, reserve0)
	if err != nil {
		return 0, err
	}
	lp1, err := quote.MulDivFloor64(amount1, lpSupply, reserve1)
	if err != nil {
		return 0, err
	}
	return min(lp0, lp1), nil
}
