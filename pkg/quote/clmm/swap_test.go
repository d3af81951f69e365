package clmm

import (
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
	"lukechampine.com/uint128"
)

const testLiquidity = 1_000_000_000_000

// newArray builds a tick array whose initialized ticks carry the given nets.
func newArray(start int32, spacing uint16, nets map[int32]int64) *TickArray {
	a := &TickArray{StartTickIndex: start}
	for i := range a.Ticks {
		a.Ticks[i].Tick = start + int32(i)*int32(spacing)
		a.Ticks[i].LiquidityNet = cosmath.ZeroInt()
	}
	for tick, net := range nets {
		i := (tick - start) / int32(spacing)
		a.Ticks[i].LiquidityNet = cosmath.NewInt(net)
		a.Ticks[i].LiquidityGross = uint128.From64(testLiquidity)
		a.InitializedTickCount++
	}
	return a
}

// rangePool is a pool at price 1 with one position over [-100, 100).
func rangePool(t *testing.T) (*PoolState, []*TickArray) {
	t.Helper()
	pool := &PoolState{
		SqrtPriceX64: Q64,
		Liquidity:    uint128.From64(testLiquidity),
		Bitmap:       Bitmap{TickSpacing: 10},
	}
	require.NoError(t, pool.Bitmap.SetInitialized(-600))
	require.NoError(t, pool.Bitmap.SetInitialized(0))
	arrays := []*TickArray{
		newArray(0, 10, map[int32]int64{100: -testLiquidity}),
		newArray(-600, 10, map[int32]int64{-100: testLiquidity}),
	}
	return pool, arrays
}

func TestArrayStartIndex(t *testing.T) {
	tests := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{0, 10, 0},
		{599, 10, 0},
		{600, 10, 600},
		{-1, 10, -600},
		{-600, 10, -600},
		{-601, 10, -1200},
		{MinTick, 1, -443640},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ArrayStartIndex(tt.tick, tt.spacing), "tick %d", tt.tick)
	}
	assert.True(t, IsValidStartIndex(-600, 10))
	assert.False(t, IsValidStartIndex(-590, 10))
	assert.True(t, IsValidStartIndex(-443640, 1))
	assert.False(t, IsValidStartIndex(MaxTick+60, 1))
}

func TestNextInitializedTick(t *testing.T) {
	a := newArray(0, 10, map[int32]int64{0: 5, 100: -5, 300: 1})

	next := a.NextInitializedTick(100, 10, true)
	require.NotNil(t, next)
	assert.Equal(t, int32(100), next.Tick)

	next = a.NextInitializedTick(100, 10, false)
	require.NotNil(t, next)
	assert.Equal(t, int32(300), next.Tick)

	assert.Nil(t, a.NextInitializedTick(305, 10, false))
	assert.Nil(t, a.NextInitializedTick(-5, 10, true))

	first, err := a.FirstInitializedTick(true)
	require.NoError(t, err)
	assert.Equal(t, int32(300), first.Tick)
	first, err = a.FirstInitializedTick(false)
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.Tick)

	_, err = newArray(600, 10, nil).FirstInitializedTick(true)
	assert.ErrorIs(t, err, quote.ErrInsufficientTickArrays)
}

func TestBitmapDefault(t *testing.T) {
	b := Bitmap{TickSpacing: 10}
	for _, start := range []int32{-1200, 0, 600} {
		require.NoError(t, b.SetInitialized(start))
	}

	starts, err := b.InitializedTickArrays(5, true, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, -1200}, starts)

	starts, err = b.InitializedTickArrays(-5, false, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 600}, starts)

	start, current, err := b.FirstInitializedTickArray(650, true)
	require.NoError(t, err)
	assert.True(t, current)
	assert.Equal(t, int32(600), start)

	_, _, err = b.FirstInitializedTickArray(1300, false)
	assert.ErrorIs(t, err, quote.ErrInsufficientTickArrays)

	assert.Error(t, b.SetInitialized(5))
}

func TestBitmapExtension(t *testing.T) {
	b := Bitmap{TickSpacing: 1}
	require.NoError(t, b.SetInitialized(-31200))
	require.NoError(t, b.SetInitialized(30720))
	require.NotNil(t, b.Extension)
	assert.Equal(t, [16]uint64{}, b.Default)

	start, current, err := b.FirstInitializedTickArray(0, true)
	require.NoError(t, err)
	assert.False(t, current)
	assert.Equal(t, int32(-31200), start)

	start, current, err = b.FirstInitializedTickArray(0, false)
	require.NoError(t, err)
	assert.False(t, current)
	assert.Equal(t, int32(30720), start)

	start, current, err = b.FirstInitializedTickArray(-31170, true)
	require.NoError(t, err)
	assert.True(t, current)
	assert.Equal(t, int32(-31200), start)

	_, ok, err := b.NextInitializedTickArrayStartIndex(-31200, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSwapComputeWithinRange(t *testing.T) {
	pool, arrays := rangePool(t)

	res, err := SwapCompute(pool, NewTickArrayCursor(arrays...), 2500, 1_000_000, uint128.Zero, true, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(997_499), res.Amount)
	assert.Equal(t, []int32{0, -600}, res.TickArrays)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, int32(-1), res.TickCurrent)
	assert.Equal(t, "18446725673100692699", res.SqrtPriceX64.String())
	assert.Equal(t, pool.Liquidity, res.Liquidity)

	res, err = SwapCompute(pool, NewTickArrayCursor(arrays[0]), 2500, 1_000_000, uint128.Zero, false, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_002_509), res.Amount)
	assert.Equal(t, []int32{0}, res.TickArrays)
	assert.Equal(t, "18446762520472072089", res.SqrtPriceX64.String())
}

func TestSwapComputeLeavesLiquidity(t *testing.T) {
	pool, arrays := rangePool(t)

	// Selling enough token0 crosses tick -100 and needs the array below it.
	_, err := SwapCompute(pool, NewTickArrayCursor(arrays...), 2500, 100_000_000_000, uint128.Zero, true, true)
	assert.ErrorIs(t, err, quote.ErrInsufficientTickArrays)

	limit, err := SqrtPriceAtTick(-50)
	require.NoError(t, err)
	res, err := SwapCompute(pool, NewTickArrayCursor(arrays...), 2500, 100_000_000_000, limit, true, true)
	require.NoError(t, err)
	assert.Equal(t, limit, res.SqrtPriceX64)
	assert.Equal(t, int32(-50), res.TickCurrent)
	assert.Less(t, res.Amount, uint64(100_000_000_000))
}

func TestSwapComputeStagedArrays(t *testing.T) {
	pool, arrays := rangePool(t)

	_, err := SwapCompute(pool, NewTickArrayCursor(arrays[0]), 2500, 1_000_000, uint128.Zero, true, true)
	assert.ErrorIs(t, err, quote.ErrInsufficientTickArrays)

	_, err = SwapCompute(pool, NewTickArrayCursor(arrays[1], arrays[0]), 2500, 1_000_000, uint128.Zero, true, true)
	assert.ErrorIs(t, err, quote.ErrInsufficientTickArrays)
}

func TestSwapComputeLoopCap(t *testing.T) {
	nets := map[int32]int64{}
	for tick := int32(10); tick < 600; tick += 10 {
		nets[tick] = 0
	}
	pool := &PoolState{
		SqrtPriceX64: Q64,
		Liquidity:    uint128.From64(testLiquidity),
		Bitmap:       Bitmap{TickSpacing: 10},
	}
	require.NoError(t, pool.Bitmap.SetInitialized(0))
	array := newArray(0, 10, nets)

	limit, err := SqrtPriceAtTick(100)
	require.NoError(t, err)
	res, err := SwapCompute(pool, NewTickArrayCursor(array), 0, 1_000_000_000_000, limit, false, true)
	require.NoError(t, err)
	assert.Equal(t, MaxSwapSteps, res.Steps)
	assert.Equal(t, int32(100), res.TickCurrent)

	limit, err = SqrtPriceAtTick(105)
	require.NoError(t, err)
	_, err = SwapCompute(pool, NewTickArrayCursor(array), 0, 1_000_000_000_000, limit, false, true)
	assert.ErrorIs(t, err, quote.ErrLoopCountExceeded)
}

func TestSwapComputeValidation(t *testing.T) {
	pool, arrays := rangePool(t)
	tests := []struct {
		name       string
		amount     uint64
		limit      uint128.Uint128
		zeroForOne bool
		want       error
	}{
		{"zero amount", 0, uint128.Zero, true, quote.ErrZeroAmount},
		{"limit above price selling token0", 1, Q64.Add64(1), true, quote.ErrInvalidPriceLimit},
		{"limit at price", 1, Q64, false, quote.ErrInvalidPriceLimit},
		{"limit at minimum", 1, MinSqrtPriceX64, true, quote.ErrInvalidPriceLimit},
		{"limit at maximum", 1, MaxSqrtPriceX64, false, quote.ErrInvalidPriceLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SwapCompute(pool, NewTickArrayCursor(arrays...), 2500, tt.amount, tt.limit, tt.zeroForOne, true)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func testClmmPool(t *testing.T) (*Pool, []*TickArray) {
	state, arrays := rangePool(t)
	return &Pool{
		PoolState: *state,
		Mint0:     &transferfee.Mint{Address: solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"), Decimals: 9},
		Mint1: &transferfee.Mint{
			Address:  solana.MustPublicKeyFromBase58("2b1kV6DkPAnxd5ixfnxCpjxmKwqjjaYmCZfHsFu24GXo"),
			Decimals: 9,
			TransferFee: &transferfee.Config{
				Newer: transferfee.Fee{Epoch: 500, BasisPoints: 100, MaximumFee: 1_000_000_000},
			},
		},
		Decimals0:    9,
		Decimals1:    9,
		TradeFeeRate: 2500,
	}, arrays
}

func TestLiquidityChange(t *testing.T) {
	p, _ := testClmmPool(t)

	q, err := LiquidityChange(p, 100, -100, 100, 1_000_000, true, 50)
	require.NoError(t, err)
	assert.Equal(t, "200510416", q.Liquidity.String())
	assert.Equal(t, uint64(1_005_000), q.Amount0)
	assert.Equal(t, uint64(1_005_000), q.Amount1)
	assert.Zero(t, q.TransferFee1)
	assert.Equal(t, int32(-600), q.TickArrayLower)
	assert.Equal(t, int32(0), q.TickArrayUpper)

	q, err = LiquidityChange(p, 600, -105, 109, 1_000_000, false, 50)
	require.NoError(t, err)
	assert.Equal(t, int32(-110), q.TickLower)
	assert.Equal(t, int32(100), q.TickUpper)
	fee, err := transferfee.Inverse(p.Mint1.TransferFee, 600, q.Amount1-q.TransferFee1)
	require.NoError(t, err)
	assert.Equal(t, fee, q.TransferFee1)
	assert.NotZero(t, q.TransferFee1)

	_, err = LiquidityChange(p, 0, 100, 100, 1, true, 0)
	assert.ErrorIs(t, err, quote.ErrInvalidTick)
}

func TestSwapChange(t *testing.T) {
	p, arrays := testClmmPool(t)

	zeroForOne, err := p.ZeroForOne(p.Mint0.Address)
	require.NoError(t, err)
	require.True(t, zeroForOne)
	_, err = p.ZeroForOne(solana.SystemProgramID)
	assert.ErrorIs(t, err, quote.ErrMismatchedMint)

	q, err := SwapChange(p, NewTickArrayCursor(arrays...), 600, 1_000_000, uint128.Zero, true, true, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(997_499), q.Result.Amount)
	assert.Equal(t, uint64(992_511), q.Threshold)
	assert.Equal(t, DefaultPriceLimit(true), q.SqrtPriceLimitX64)

	// Buying exactly 1_000_000 token0 with token1 that charges 1% on transfer.
	q, err = SwapChange(p, NewTickArrayCursor(arrays[0]), 600, 1_000_000, uint128.Zero, false, false, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_002_509), q.Result.Amount)
	assert.Equal(t, uint64(10_177), q.TransferFee)
	assert.Equal(t, uint64(1_017_698), q.Threshold)
}
