package amm

import (
	"github.com/yimingwow/rayquote/pkg/quote"
)

// Pool is the subset of AmmInfo and TargetOrders state the quotes read,
// together with the vault balances from the same snapshot.
type Pool struct {
	Status          Status
	PcVault         uint64
	CoinVault       uint64
	NeedTakePnlPc   uint64
	NeedTakePnlCoin uint64
	LpAmount        uint64
	SwapFee         FeeRate
	Pnl             PnlState
}

// SwapReserves returns the reserves swaps are priced against.
func (p Pool) SwapReserves() (Reserves, error) {
	if err := CheckNoOrderbook(p.Status); err != nil {
		return Reserves{}, err
	}
	return VaultTotals(p.PcVault, p.CoinVault, p.NeedTakePnlPc, p.NeedTakePnlCoin)
}

// LiquidityReserves returns the reserves deposits and withdrawals are priced
// against; unlike SwapReserves they exclude PnL accrued since the last
// settlement.
func (p Pool) LiquidityReserves() (Reserves, error) {
	r, err := p.SwapReserves()
	if err != nil {
		return Reserves{}, err
	}
	return DeductPnl(r, p.Pnl)
}

type DepositQuote struct {
	MaxCoin uint64
	MaxPc   uint64
	// MinOther is the lower bound on the counterpart token, set only when
	// requested.
	MinOther *uint64
}

// DepositWithSlippage quotes a deposit that fixes amount on side. The
// counterpart maximum is widened by slippageBps.
func DepositWithSlippage(r Reserves, amount uint64, side Side, withMinOther bool, slippageBps uint64) (DepositQuote, error) {
	other, err := DepositCounterpart(r, amount, side)
	if err != nil {
		return DepositQuote{}, err
	}
	maxOther, err := quote.AmountWithSlippage(other, slippageBps, true)
	if err != nil {
		return DepositQuote{}, err
	}
	q := DepositQuote{MaxCoin: amount, MaxPc: maxOther}
	if side == SidePc {
		q = DepositQuote{MaxCoin: maxOther, MaxPc: amount}
	}
	if withMinOther {
		minOther, err := quote.AmountWithSlippage(other, slippageBps, false)
		if err != nil {
			return DepositQuote{}, err
		}
		q.MinOther = &minOther
	}
	return q, nil
}

type WithdrawQuote struct {
	MinCoin uint64
	MinPc   uint64
}

// WithdrawWithSlippage quotes the minimum amounts a withdrawal of lpAmount
// must return.
func WithdrawWithSlippage(r Reserves, lpSupply, lpAmount, slippageBps uint64) (WithdrawQuote, error) {
	pc, coin, err := WithdrawAmounts(r, lpSupply, lpAmount)
	if err != nil {
		return WithdrawQuote{}, err
	}
	minPc, err := quote.AmountWithSlippage(pc, slippageBps, false)
	if err != nil {
		return WithdrawQuote{}, err
	}
	minCoin, err := quote.AmountWithSlippage(coin, slippageBps, false)
	if err != nil {
		return WithdrawQuote{}, err
	}
	return WithdrawQuote{MinCoin: minCoin, MinPc: minPc}, nil
}

type SwapQuote struct {
	Direction Direction
	BaseIn    bool
	// Amount is the user-fixed side, Other the computed side before slippage.
	Amount uint64
	Other  uint64
	// Threshold is the minimum output for base-in and the maximum input for
	// base-out.
	Threshold uint64
}

// SwapWithSlippage quotes a swap and its slippage-bounded threshold.
func SwapWithSlippage(r Reserves, fee FeeRate, d Direction, amount uint64, baseIn bool, slippageBps uint64) (SwapQuote, error) {
	if amount == 0 {
		return SwapQuote{}, quote.ErrZeroAmount
	}
	q := SwapQuote{Direction: d, BaseIn: baseIn, Amount: amount}
	var err error
	if baseIn {
		if q.Other, err = SwapBaseIn(r, fee, d, amount); err != nil {
			return SwapQuote{}, err
		}
		q.Threshold, err = quote.AmountWithSlippage(q.Other, slippageBps, false)
	} else {
		if q.Other, err = SwapBaseOut(r, fee, d, amount); err != nil {
			return SwapQuote{}, err
		}
		q.Threshold, err = quote.AmountWithSlippage(q.Other, slippageBps, true)
	}
	if err != nil {
		return SwapQuote{}, err
	}
	return q, nil
}
