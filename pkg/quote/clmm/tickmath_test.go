package clmm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

func TestSqrtPriceAtTickBounds(t *testing.T) {
	p, err := SqrtPriceAtTick(MinTick)
	require.NoError(t, err)
	assert.Equal(t, MinSqrtPriceX64, p)

	p, err = SqrtPriceAtTick(MaxTick)
	require.NoError(t, err)
	assert.Equal(t, "79226673521066979257578248091", p.String())

	p, err = SqrtPriceAtTick(0)
	require.NoError(t, err)
	assert.Equal(t, Q64, p)

	_, err = SqrtPriceAtTick(MinTick - 1)
	assert.ErrorIs(t, err, quote.ErrInvalidTick)
	_, err = SqrtPriceAtTick(MaxTick + 1)
	assert.ErrorIs(t, err, quote.ErrInvalidTick)
}

func TestTickRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, -443635, -200000, -30001, -100, -1, 0, 1, 7, 100, 29999, 200000, MaxTick - 1} {
		p, err := SqrtPriceAtTick(tick)
		require.NoError(t, err)
		got, err := TickAtSqrtPrice(p)
		require.NoError(t, err)
		assert.Equal(t, tick, got, "tick %d", tick)

		if tick > MinTick {
			got, err = TickAtSqrtPrice(p.Sub64(1))
			require.NoError(t, err)
			assert.Equal(t, tick-1, got, "just below tick %d", tick)
		}
	}
}

func TestTickAtSqrtPriceRange(t *testing.T) {
	_, err := TickAtSqrtPrice(MinSqrtPriceX64.Sub64(1))
	assert.ErrorIs(t, err, quote.ErrSqrtPriceOutOfRange)
	_, err = TickAtSqrtPrice(MaxSqrtPriceX64)
	assert.ErrorIs(t, err, quote.ErrSqrtPriceOutOfRange)

	tick, err := TickAtSqrtPrice(MaxSqrtPriceX64.Sub64(1))
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, tick)
}

func TestRoundToSpacing(t *testing.T) {
	tests := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{0, 10, 0},
		{9, 10, 0},
		{10, 10, 10},
		{-1, 10, -10},
		{-10, 10, -10},
		{-11, 60, -60},
		{125, 60, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundToSpacing(tt.tick, tt.spacing), "tick %d spacing %d", tt.tick, tt.spacing)
	}
}

func TestPriceConversion(t *testing.T) {
	p, err := PriceToSqrtPriceX64(decimal.NewFromInt(1), 6, 6)
	require.NoError(t, err)
	assert.Equal(t, Q64, p)

	p, err = PriceToSqrtPriceX64(decimal.NewFromInt(4), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint128.New(0, 2), p)

	// 1 token0 (9 decimals) for 1 token1 (6 decimals) is 1e-3 in raw units.
	assert.True(t, decimal.NewFromInt(1).Equal(SqrtPriceX64ToPrice(Q64, 6, 6)))
	assert.True(t, decimal.NewFromInt(1000).Equal(SqrtPriceX64ToPrice(Q64, 9, 6)))

	_, err = PriceToSqrtPriceX64(decimal.Zero, 6, 6)
	assert.ErrorIs(t, err, quote.ErrSqrtPriceOutOfRange)
	_, err = PriceToSqrtPriceX64(decimal.New(1, 60), 0, 0)
	assert.ErrorIs(t, err, quote.ErrSqrtPriceOutOfRange)
}

func TestPoolPrice(t *testing.T) {
	got, err := PoolPrice(decimal.RequireFromString("0.25"), true, 0, 0)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4).Equal(got.Price))
	assert.Equal(t, uint128.New(0, 2), got.SqrtPriceX64)
	assert.Equal(t, int32(13863), got.Tick)

	got, err = PoolPrice(decimal.NewFromInt(1), false, 6, 6)
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.Tick)
}

func TestTickRange(t *testing.T) {
	lo, hi, err := TickRange(decimal.RequireFromString("0.5"), decimal.NewFromInt(2), 0, 0, 60)
	require.NoError(t, err)
	assert.Zero(t, lo%60)
	assert.Zero(t, hi%60)
	assert.Less(t, lo, int32(0))
	assert.Greater(t, hi, int32(0))

	_, _, err = TickRange(decimal.NewFromInt(1), decimal.RequireFromString("1.0001"), 0, 0, 60)
	assert.ErrorIs(t, err, quote.ErrInvalidTick)
}
