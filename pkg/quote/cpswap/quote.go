package cpswap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
)

// Pool is the CP-Swap state a quote needs, read from one snapshot: the pool
// account, its AmmConfig, both vaults and both mints.
type Pool struct {
	Mint0 *transferfee.Mint
	Mint1 *transferfee.Mint

	Vault0 uint64
	Vault1 uint64

	ProtocolFees0 uint64
	ProtocolFees1 uint64
	FundFees0     uint64
	FundFees1     uint64
	CreatorFees0  uint64
	CreatorFees1  uint64

	LpSupply uint64
	Rates    FeeRates
}

// Reserves returns the vault balances minus fees the pool owes but has not
// yet collected.
func (p *Pool) Reserves() (reserve0, reserve1 uint64, err error) {
	owed0, err := sum(p.ProtocolFees0, p.FundFees0, p.CreatorFees0)
	if err != nil {
		return 0, 0, err
	}
	owed1, err := sum(p.ProtocolFees1, p.FundFees1, p.CreatorFees1)
	if err != nil {
		return 0, 0, err
	}
	if reserve0, err = quote.CheckedSub(p.Vault0, owed0); err != nil {
		return 0, 0, fmt.Errorf("vault 0: %w", err)
	}
	if reserve1, err = quote.CheckedSub(p.Vault1, owed1); err != nil {
		return 0, 0, fmt.Errorf("vault 1: %w", err)
	}
	return reserve0, reserve1, nil
}

func sum(vs ...uint64) (uint64, error) {
	var total uint64
	for _, v := range vs {
		var err error
		if total, err = quote.CheckedAdd(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Direction resolves which side inputMint trades from.
func (p *Pool) Direction(inputMint solana.PublicKey) (Direction, error) {
	switch {
	case p.Mint0 != nil && inputMint.Equals(p.Mint0.Address):
		return ZeroForOne, nil
	case p.Mint1 != nil && inputMint.Equals(p.Mint1.Address):
		return OneForZero, nil
	}
	return 0, fmt.Errorf("%w: %s", quote.ErrMismatchedMint, inputMint)
}

func (p *Pool) sides(d Direction) (in, out *transferfee.Mint, reserveIn, reserveOut uint64, err error) {
	r0, r1, err := p.Reserves()
	if err != nil {
		return nil, nil, 0, 0, err
	}
	if d == ZeroForOne {
		return p.Mint0, p.Mint1, r0, r1, nil
	}
	return p.Mint1, p.Mint0, r1, r0, nil
}

// LiquidityQuote carries the LP amount and per-token bounds of a deposit or
// withdrawal. For a deposit the token amounts are maxima the user transfers;
// for a withdrawal they are minima the pool must send before its transfer fee.
type LiquidityQuote struct {
	LpAmount uint64
	Amount0  uint64
	Amount1  uint64
}

// AddLiquidity quotes a deposit fixing amountSpecified of the base token at
// epoch. LpAmount is the slippage-reduced LP minimum.
func AddLiquidity(p *Pool, epoch, amountSpecified uint64, baseToken0 bool, slippageBps uint64) (LiquidityQuote, error) {
	if amountSpecified == 0 {
		return LiquidityQuote{}, quote.ErrZeroAmount
	}
	r0, r1, err := p.Reserves()
	if err != nil {
		return LiquidityQuote{}, err
	}
	base, other := p.Mint0, p.Mint1
	if !baseToken0 {
		base, other = p.Mint1, p.Mint0
	}
	fee, err := base.FeeAt(epoch, amountSpecified)
	if err != nil {
		return LiquidityQuote{}, err
	}
	received, err := quote.CheckedSub(amountSpecified, fee)
	if err != nil {
		return LiquidityQuote{}, err
	}
	lp, err := TokensToLp(received, p.LpSupply, r0, r1, baseToken0)
	if err != nil {
		return LiquidityQuote{}, err
	}
	amount0, amount1, err := LpToTokens(lp, p.LpSupply, r0, r1, Ceiling)
	if err != nil {
		return LiquidityQuote{}, err
	}
	counterpart := amount1
	if !baseToken0 {
		counterpart = amount0
	}
	inverse, err := other.InverseFeeAt(epoch, counterpart)
	if err != nil {
		return LiquidityQuote{}, err
	}
	if counterpart, err = quote.CheckedAdd(counterpart, inverse); err != nil {
		return LiquidityQuote{}, err
	}
	lpMin, err := quote.AmountWithSlippage(lp, slippageBps, false)
	if err != nil {
		return LiquidityQuote{}, err
	}
	if baseToken0 {
		return LiquidityQuote{LpAmount: lpMin, Amount0: amountSpecified, Amount1: counterpart}, nil
	}
	return LiquidityQuote{LpAmount: lpMin, Amount0: counterpart, Amount1: amountSpecified}, nil
}

// RemoveLiquidity quotes burning lpAmount at epoch.
func RemoveLiquidity(p *Pool, epoch, lpAmount, slippageBps uint64) (LiquidityQuote, error) {
	if lpAmount == 0 {
		return LiquidityQuote{}, quote.ErrZeroAmount
	}
	r0, r1, err := p.Reserves()
	if err != nil {
		return LiquidityQuote{}, err
	}
	amount0, amount1, err := LpToTokens(lpAmount, p.LpSupply, r0, r1, Floor)
	if err != nil {
		return LiquidityQuote{}, err
	}
	min0, err := minWithInverseFee(p.Mint0, epoch, amount0, slippageBps)
	if err != nil {
		return LiquidityQuote{}, err
	}
	min1, err := minWithInverseFee(p.Mint1, epoch, amount1, slippageBps)
	if err != nil {
		return LiquidityQuote{}, err
	}
	return LiquidityQuote{LpAmount: lpAmount, Amount0: min0, Amount1: min1}, nil
}

func minWithInverseFee(m *transferfee.Mint, epoch, amount, slippageBps uint64) (uint64, error) {
	floor, err := quote.AmountWithSlippage(amount, slippageBps, false)
	if err != nil {
		return 0, err
	}
	fee, err := m.InverseFeeAt(epoch, floor)
	if err != nil {
		return 0, err
	}
	return quote.CheckedAdd(floor, fee)
}

// SwapQuote is a slippage-bounded swap. Threshold is the minimum received
// for base-in and the maximum transferred in for base-out.
type SwapQuote struct {
	Direction Direction
	BaseIn    bool
	Amount    uint64
	Threshold uint64
	Curve     SwapResult
	// TransferFeeIn and TransferFeeOut are the Token-2022 fees charged on the
	// input and output transfers.
	TransferFeeIn  uint64
	TransferFeeOut uint64
}

// Swap quotes a swap of amount in direction d at epoch.
func Swap(p *Pool, epoch uint64, d Direction, amount uint64, baseIn bool, slippageBps uint64) (SwapQuote, error) {
	if amount == 0 {
		return SwapQuote{}, quote.ErrZeroAmount
	}
	inMint, outMint, reserveIn, reserveOut, err := p.sides(d)
	if err != nil {
		return SwapQuote{}, err
	}
	q := SwapQuote{Direction: d, BaseIn: baseIn, Amount: amount}
	if baseIn {
		if q.TransferFeeIn, err = inMint.FeeAt(epoch, amount); err != nil {
			return SwapQuote{}, err
		}
		actualIn := quote.SaturatingSub(amount, q.TransferFeeIn)
		if q.Curve, err = SwapBaseInput(actualIn, reserveIn, reserveOut, p.Rates); err != nil {
			return SwapQuote{}, err
		}
		out := q.Curve.DestinationAmountSwapped
		if q.TransferFeeOut, err = outMint.FeeAt(epoch, out); err != nil {
			return SwapQuote{}, err
		}
		received, err := quote.CheckedSub(out, q.TransferFeeOut)
		if err != nil {
			return SwapQuote{}, err
		}
		if q.Threshold, err = quote.AmountWithSlippage(received, slippageBps, false); err != nil {
			return SwapQuote{}, err
		}
		return q, nil
	}

	if q.TransferFeeOut, err = outMint.InverseFeeAt(epoch, amount); err != nil {
		return SwapQuote{}, err
	}
	actualOut, err := quote.CheckedAdd(amount, q.TransferFeeOut)
	if err != nil {
		return SwapQuote{}, err
	}
	if q.Curve, err = SwapBaseOutput(actualOut, reserveIn, reserveOut, p.Rates); err != nil {
		return SwapQuote{}, err
	}
	source := q.Curve.SourceAmountSwapped
	if q.TransferFeeIn, err = inMint.InverseFeeAt(epoch, source); err != nil {
		return SwapQuote{}, err
	}
	transferIn, err := quote.CheckedAdd(source, q.TransferFeeIn)
	if err != nil {
		return SwapQuote{}, err
	}
	if q.Threshold, err = quote.AmountWithSlippage(transferIn, slippageBps, true); err != nil {
		return SwapQuote{}, err
	}
	return q, nil
}
