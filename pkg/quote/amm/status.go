// Package amm implements the constant-product quoting math of the Raydium AMM
// v4 pools: PnL-adjusted reserves and the deposit, withdraw and swap invariants.
package amm

import (
	"fmt"

	"github.com/yimingwow/rayquote/pkg/quote"
)

// Status is the AmmInfo status field.
type Status uint64

const (
	StatusUninitialized Status = iota
	StatusInitialized
	StatusDisabled
	StatusWithdrawOnly
	StatusLiquidityOnly
	StatusOrderBookOnly
	StatusSwapOnly
	StatusWaitingTrade
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "Uninitialized"
	case StatusInitialized:
		return "Initialized"
	case StatusDisabled:
		return "Disabled"
	case StatusWithdrawOnly:
		return "WithdrawOnly"
	case StatusLiquidityOnly:
		return "LiquidityOnly"
	case StatusOrderBookOnly:
		return "OrderBookOnly"
	case StatusSwapOnly:
		return "SwapOnly"
	case StatusWaitingTrade:
		return "WaitingTrade"
	}
	return fmt.Sprintf("Status(%d)", uint64(s))
}

// OrderbookPermission reports whether a pool in this status may place
// liquidity on the OpenBook market.
func (s Status) OrderbookPermission() bool {
	switch s {
	case StatusInitialized, StatusLiquidityOnly, StatusOrderBookOnly, StatusWaitingTrade:
		return true
	}
	return false
}

// CheckNoOrderbook rejects pools whose vault totals would depend on open
// orders that this package does not model.
func CheckNoOrderbook(s Status) error {
	if s.OrderbookPermission() {
		return fmt.Errorf("%w: status %s", quote.ErrOrderbookEnabled, s)
	}
	return nil
}
