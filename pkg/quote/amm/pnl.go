package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// Reserves is a vault snapshot of an AMM pool.
type Reserves struct {
	Pc   uint64
	Coin uint64
}

// VaultTotals subtracts the PnL the pool still owes the protocol from the raw
// vault balances.
func VaultTotals(pcVault, coinVault, needTakePnlPc, needTakePnlCoin uint64) (Reserves, error) {
	pc, err := quote.CheckedSub(pcVault, needTakePnlPc)
	if err != nil {
		return Reserves{}, fmt.Errorf("pc vault: %w", err)
	}
	coin, err := quote.CheckedSub(coinVault, needTakePnlCoin)
	if err != nil {
		return Reserves{}, fmt.Errorf("coin vault: %w", err)
	}
	return Reserves{Pc: pc, Coin: coin}, nil
}

// PnlState carries the pool fields the PnL deduction reads.
type PnlState struct {
	SysDecimalValue uint64
	PcDecimals      uint64
	CoinDecimals    uint64
	PnlNumerator    uint64
	PnlDenominator  uint64
	// CalcPnlX and CalcPnlY are the TargetOrders snapshot of the normalized
	// reserves taken when PnL was last settled.
	CalcPnlX uint128.Uint128
	CalcPnlY uint128.Uint128
}

func pow10(decimals uint64) (*uint256.Int, error) {
	if decimals > 38 {
		return nil, fmt.Errorf("%w: 10^%d", quote.ErrArithmeticOverflow, decimals)
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(decimals)), nil
}

func normalize(v *uint256.Int, decimals, sys uint64) (*uint256.Int, error) {
	scale, err := pow10(decimals)
	if err != nil {
		return nil, err
	}
	return quote.MulDiv(v, uint256.NewInt(sys), scale, false)
}

func restore(v *uint256.Int, decimals, sys uint64) (*uint256.Int, error) {
	scale, err := pow10(decimals)
	if err != nil {
		return nil, err
	}
	return quote.MulDiv(v, scale, uint256.NewInt(sys), false)
}

// DeductPnl returns the tradable reserves after removing the profit the
// protocol has accrued since the last settlement. When the accrued amount on
// either side rounds to zero the reserves are returned unchanged.
func DeductPnl(r Reserves, s PnlState) (Reserves, error) {
	if s.PnlDenominator == 0 || s.SysDecimalValue == 0 {
		return Reserves{}, quote.ErrDivisionByZero
	}
	x1, err := normalize(uint256.NewInt(r.Pc), s.PcDecimals, s.SysDecimalValue)
	if err != nil {
		return Reserves{}, err
	}
	y1, err := normalize(uint256.NewInt(r.Coin), s.CoinDecimals, s.SysDecimalValue)
	if err != nil {
		return Reserves{}, err
	}
	lastX, lastY := quote.U256(s.CalcPnlX), quote.U256(s.CalcPnlY)

	calcPc, err := restore(lastX, s.PcDecimals, s.SysDecimalValue)
	if err != nil {
		return Reserves{}, err
	}
	calcCoin, err := restore(lastY, s.CoinDecimals, s.SysDecimalValue)
	if err != nil {
		return Reserves{}, err
	}
	poolK := new(uint256.Int).Mul(uint256.NewInt(r.Pc), uint256.NewInt(r.Coin))
	lastK, overflow := new(uint256.Int).MulOverflow(calcPc, calcCoin)
	if overflow || poolK.Lt(lastK) {
		return Reserves{}, fmt.Errorf("%w: pool k below last settled k", quote.ErrCalcPnl)
	}
	if x1.IsZero() || y1.IsZero() {
		return Reserves{}, fmt.Errorf("%w: empty reserves", quote.ErrZeroTradingTokens)
	}

	// x2 keeps the current price x1/y1 at the last settled k.
	lastKNorm, overflow := new(uint256.Int).MulOverflow(lastX, lastY)
	if overflow {
		return Reserves{}, quote.ErrArithmeticOverflow
	}
	x2Power, err := quote.MulDiv(lastKNorm, x1, y1, false)
	if err != nil {
		return Reserves{}, err
	}
	x2 := new(uint256.Int).Sqrt(x2Power)
	y2, err := quote.MulDiv(x2, y1, x1, false)
	if err != nil {
		return Reserves{}, err
	}
	if x1.Lt(x2) || y1.Lt(y2) {
		return Reserves{}, fmt.Errorf("%w: settled reserves exceed current", quote.ErrCalcPnl)
	}
	diffX := new(uint256.Int).Sub(x1, x2)
	diffY := new(uint256.Int).Sub(y1, y2)

	pcPnl, err := pnlShare(diffX, s.PcDecimals, s)
	if err != nil {
		return Reserves{}, err
	}
	coinPnl, err := pnlShare(diffY, s.CoinDecimals, s)
	if err != nil {
		return Reserves{}, err
	}
	if pcPnl == 0 || coinPnl == 0 {
		return r, nil
	}
	pc, err := quote.CheckedSub(r.Pc, pcPnl)
	if err != nil {
		return Reserves{}, err
	}
	coin, err := quote.CheckedSub(r.Coin, coinPnl)
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{Pc: pc, Coin: coin}, nil
}

func pnlShare(diff *uint256.Int, decimals uint64, s PnlState) (uint64, error) {
	native, err := restore(diff, decimals, s.SysDecimalValue)
	if err != nil {
		return 0, err
	}
	share, err := quote.MulDiv(native, uint256.NewInt(s.PnlNumerator), uint256.NewInt(s.PnlDenominator), false)
	if err != nil {
		return 0, err
	}
	return quote.ToU64(share)
}
