// Package quote holds the fixed-point helpers and the error taxonomy shared by
// the AMM, CP-Swap and CLMM quoting engines.
package quote

import "errors"

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrDivisionByZero      = errors.New("division by zero")

	ErrZeroTradingTokens = errors.New("zero trading tokens")
	ErrZeroAmount        = errors.New("amount specified is zero")

	ErrInvalidSwapAmount = errors.New("invalid swap amount")
	ErrInvalidPriceLimit = errors.New("invalid sqrt price limit")

	ErrLoopCountExceeded      = errors.New("swap loop count exceeded")
	ErrInsufficientTickArrays = errors.New("insufficient tick arrays")

	ErrMismatchedMint = errors.New("input mint does not belong to pool")

	ErrOrderbookEnabled    = errors.New("pool status grants orderbook permission")
	ErrCalcPnl             = errors.New("calc pnl error")
	ErrMaxTokenOverflow    = errors.New("token amount exceeds u64")
	ErrInvalidTick         = errors.New("tick out of range")
	ErrSqrtPriceOutOfRange = errors.New("sqrt price out of range")
)
