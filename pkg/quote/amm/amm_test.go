package amm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

var standardFee = FeeRate{Numerator: 25, Denominator: 10_000}

func TestOrderbookPermission(t *testing.T) {
	want := map[Status]bool{
		StatusUninitialized: false,
		StatusInitialized:   true,
		StatusDisabled:      false,
		StatusWithdrawOnly:  false,
		StatusLiquidityOnly: true,
		StatusOrderBookOnly: true,
		StatusSwapOnly:      false,
		StatusWaitingTrade:  true,
	}
	for status, allowed := range want {
		assert.Equal(t, allowed, status.OrderbookPermission(), status.String())
	}
	assert.Equal(t, "Status(42)", Status(42).String())
	assert.ErrorIs(t, CheckNoOrderbook(StatusInitialized), quote.ErrOrderbookEnabled)
	assert.NoError(t, CheckNoOrderbook(StatusSwapOnly))
}

func TestVaultTotals(t *testing.T) {
	r, err := VaultTotals(1_000, 2_000, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, Reserves{Pc: 990, Coin: 1_980}, r)

	_, err = VaultTotals(1_000, 2_000, 1_001, 0)
	assert.ErrorIs(t, err, quote.ErrArithmeticUnderflow)
}

func TestDeductPnl(t *testing.T) {
	state := PnlState{
		SysDecimalValue: 1_000_000,
		PcDecimals:      6,
		CoinDecimals:    9,
		PnlNumerator:    12,
		PnlDenominator:  100,
		CalcPnlX:        uint128.From64(1_000_000_000),
		CalcPnlY:        uint128.From64(2_000_000_000),
	}

	t.Run("pool grew", func(t *testing.T) {
		r, err := DeductPnl(Reserves{Pc: 1_100_000_000, Coin: 2_200_000_000_000}, state)
		require.NoError(t, err)
		assert.Equal(t, Reserves{Pc: 1_088_000_000, Coin: 2_176_000_000_000}, r)
	})

	t.Run("nothing accrued", func(t *testing.T) {
		in := Reserves{Pc: 1_000_000_000, Coin: 2_000_000_000_000}
		r, err := DeductPnl(in, state)
		require.NoError(t, err)
		assert.Equal(t, in, r)
	})

	t.Run("pool shrank", func(t *testing.T) {
		_, err := DeductPnl(Reserves{Pc: 900_000_000, Coin: 1_800_000_000_000}, state)
		assert.ErrorIs(t, err, quote.ErrCalcPnl)
	})

	t.Run("zero denominator", func(t *testing.T) {
		s := state
		s.PnlDenominator = 0
		_, err := DeductPnl(Reserves{Pc: 1, Coin: 1}, s)
		assert.ErrorIs(t, err, quote.ErrDivisionByZero)
	})
}

func TestDepositCounterpart(t *testing.T) {
	r := Reserves{Pc: 1_000_000_000, Coin: 3_000_000_000}
	pc, err := DepositCounterpart(r, 1_000, SideCoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(334), pc)

	coin, err := DepositCounterpart(r, 1_000, SidePc)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), coin)

	_, err = DepositCounterpart(Reserves{Pc: 1}, 1, SideCoin)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
}

func TestDepositThenWithdrawNeverGains(t *testing.T) {
	r := Reserves{Pc: 1_000_000_007, Coin: 3_000_000_011}
	const lpSupply = 1_732_050_807
	for _, coinIn := range []uint64{1, 3, 999, 123_457, 50_000_000} {
		pcIn, err := DepositCounterpart(r, coinIn, SideCoin)
		require.NoError(t, err)
		lp := coinIn * lpSupply / r.Coin

		after := Reserves{Pc: r.Pc + pcIn, Coin: r.Coin + coinIn}
		pcOut, coinOut, err := WithdrawAmounts(after, lpSupply+lp, lp)
		require.NoError(t, err)
		assert.LessOrEqual(t, pcOut, pcIn)
		assert.LessOrEqual(t, coinOut, coinIn)
	}
}

func TestDepositWithSlippage(t *testing.T) {
	r := Reserves{Pc: 1_000_000_000, Coin: 1_000_000_000}

	q, err := DepositWithSlippage(r, 1_000_000, SideCoin, true, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), q.MaxCoin)
	assert.Equal(t, uint64(1_010_000), q.MaxPc)
	require.NotNil(t, q.MinOther)
	assert.Equal(t, uint64(990_000), *q.MinOther)

	q, err = DepositWithSlippage(r, 1_000_000, SidePc, false, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_010_000), q.MaxCoin)
	assert.Equal(t, uint64(1_000_000), q.MaxPc)
	assert.Nil(t, q.MinOther)
}

func TestWithdrawWithSlippage(t *testing.T) {
	q, err := WithdrawWithSlippage(Reserves{Pc: 1_000, Coin: 3_000}, 300, 7, 100)
	require.NoError(t, err)
	// 23.33 and 70 before slippage.
	assert.Equal(t, WithdrawQuote{MinCoin: 69, MinPc: 22}, q)

	_, err = WithdrawWithSlippage(Reserves{Pc: 1, Coin: 1}, 0, 1, 0)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
}

func TestSwapScenario(t *testing.T) {
	r := Reserves{Pc: 1_000_000_000, Coin: 1_000_000_000}
	q, err := SwapWithSlippage(r, standardFee, CoinToPc, 1_000_000, true, 50)
	require.NoError(t, err)
	// fee 2500, 997500 reaches the curve.
	assert.Equal(t, uint64(996_505), q.Other)
	assert.Equal(t, uint64(991_522), q.Threshold)
}

func TestSwapBaseOut(t *testing.T) {
	r := Reserves{Pc: 1_000_000_000, Coin: 1_000_000_000}
	q, err := SwapWithSlippage(r, standardFee, CoinToPc, 996_505, false, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), q.Other)
	assert.Equal(t, uint64(1_005_000), q.Threshold)

	_, err = SwapBaseOut(r, standardFee, PcToCoin, 1_000_000_000)
	assert.ErrorIs(t, err, quote.ErrInvalidSwapAmount)
}

func TestSwapDirection(t *testing.T) {
	r := Reserves{Pc: 4_000_000, Coin: 1_000_000}
	toPc, err := SwapBaseIn(r, FeeRate{Numerator: 0, Denominator: 1}, CoinToPc, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), toPc)

	toCoin, err := SwapBaseIn(r, FeeRate{Numerator: 0, Denominator: 1}, PcToCoin, 4_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), toCoin)
}

func TestSwapKeepsProduct(t *testing.T) {
	reserves := []Reserves{
		{Pc: 1_000_000_000, Coin: 1_000_000_000},
		{Pc: 7, Coin: 1_000_000_007},
		{Pc: 123_456_789_012, Coin: 98_765},
	}
	fees := []FeeRate{{Numerator: 0, Denominator: 10_000}, standardFee}
	for _, r := range reserves {
		for _, fee := range fees {
			for _, d := range []Direction{CoinToPc, PcToCoin} {
				for _, in := range []uint64{1, 1_000, 1_000_003, 50_000_000_000} {
					out, err := SwapBaseIn(r, fee, d, in)
					require.NoError(t, err)
					rin, rout := r.inOut(d)
					before := uint128.From64(rin).Mul64(rout)
					after := uint128.From64(rin + in).Mul64(rout - out)
					assert.True(t, after.Cmp(before) >= 0, "%v %v %s in=%d", r, fee, d, in)
				}
			}
		}
	}
}

func TestSwapWithSlippageErrors(t *testing.T) {
	r := Reserves{Pc: 1_000, Coin: 1_000}
	_, err := SwapWithSlippage(r, standardFee, CoinToPc, 0, true, 50)
	assert.ErrorIs(t, err, quote.ErrZeroAmount)

	_, err = SwapWithSlippage(r, FeeRate{Numerator: 1, Denominator: 0}, CoinToPc, 10, true, 50)
	assert.ErrorIs(t, err, quote.ErrDivisionByZero)

	_, err = SwapWithSlippage(r, FeeRate{Numerator: 2, Denominator: 1}, CoinToPc, 10, true, 50)
	assert.ErrorIs(t, err, quote.ErrInvalidSwapAmount)

	_, err = SwapWithSlippage(r, standardFee, CoinToPc, 10, true, 10_001)
	assert.ErrorIs(t, err, quote.ErrArithmeticUnderflow)
}

func TestPoolReserves(t *testing.T) {
	p := Pool{
		Status:          StatusSwapOnly,
		PcVault:         1_100_000_100,
		CoinVault:       2_200_000_000_200,
		NeedTakePnlPc:   100,
		NeedTakePnlCoin: 200,
		Pnl: PnlState{
			SysDecimalValue: 1_000_000,
			PcDecimals:      6,
			CoinDecimals:    9,
			PnlNumerator:    12,
			PnlDenominator:  100,
			CalcPnlX:        uint128.From64(1_000_000_000),
			CalcPnlY:        uint128.From64(2_000_000_000),
		},
	}
	swap, err := p.SwapReserves()
	require.NoError(t, err)
	assert.Equal(t, Reserves{Pc: 1_100_000_000, Coin: 2_200_000_000_000}, swap)

	liq, err := p.LiquidityReserves()
	require.NoError(t, err)
	assert.Equal(t, Reserves{Pc: 1_088_000_000, Coin: 2_176_000_000_000}, liq)

	p.Status = StatusInitialized
	_, err = p.LiquidityReserves()
	assert.ErrorIs(t, err, quote.ErrOrderbookEnabled)
}
