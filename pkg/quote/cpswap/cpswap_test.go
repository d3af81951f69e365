package cpswap

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yimingwow/rayquote/pkg/quote"
	"github.com/yimingwow/rayquote/pkg/quote/transferfee"
)

var standardRates = FeeRates{Trade: 2_500, Protocol: 120_000, Fund: 40_000}

func testPool() *Pool {
	return &Pool{
		Mint0: &transferfee.Mint{Address: solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"), Decimals: 9},
		Mint1: &transferfee.Mint{
			Address:  solana.MustPublicKeyFromBase58("2b1kV6DkPAnxd5ixfnxCpjxmKwqjjaYmCZfHsFu24GXo"),
			Decimals: 6,
			TransferFee: &transferfee.Config{
				Older: transferfee.Fee{Epoch: 0, BasisPoints: 0, MaximumFee: 0},
				Newer: transferfee.Fee{Epoch: 500, BasisPoints: 100, MaximumFee: 1_000_000_000},
			},
		},
		Vault0:        1_000_005_000,
		Vault1:        2_000_003_000,
		ProtocolFees0: 3_000,
		FundFees0:     1_000,
		CreatorFees0:  1_000,
		ProtocolFees1: 3_000,
		LpSupply:      1_414_213_562,
		Rates:         standardRates,
	}
}

func TestReserves(t *testing.T) {
	p := testPool()
	r0, r1, err := p.Reserves()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), r0)
	assert.Equal(t, uint64(2_000_000_000), r1)

	p.FundFees1 = p.Vault1
	_, _, err = p.Reserves()
	assert.ErrorIs(t, err, quote.ErrArithmeticUnderflow)
}

func TestDirection(t *testing.T) {
	p := testPool()
	d, err := p.Direction(p.Mint1.Address)
	require.NoError(t, err)
	assert.Equal(t, OneForZero, d)

	_, err = p.Direction(solana.SystemProgramID)
	assert.ErrorIs(t, err, quote.ErrMismatchedMint)
}

func TestSwapBaseInput(t *testing.T) {
	res, err := SwapBaseInput(1_000_000, 1_000_000_000, 2_000_000_000, standardRates)
	require.NoError(t, err)
	assert.Equal(t, SwapResult{
		NewSourceAmount:          1_001_000_000,
		NewDestinationAmount:     2_000_000_000 - 1_993_011,
		SourceAmountSwapped:      1_000_000,
		DestinationAmountSwapped: 1_993_011,
		TradeFee:                 2_500,
		ProtocolFee:              300,
		FundFee:                  100,
	}, res)

	_, err = SwapBaseInput(1, 1_000_000_000, 1, standardRates)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
	_, err = SwapBaseInput(1, 0, 1, standardRates)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
}

func TestSwapBaseOutputCoversInput(t *testing.T) {
	for _, want := range []uint64{1, 17, 1_000, 999_999, 123_456_789} {
		res, err := SwapBaseOutput(want, 1_000_000_000, 2_000_000_000, standardRates)
		require.NoError(t, err)
		back, err := SwapBaseInput(res.SourceAmountSwapped, 1_000_000_000, 2_000_000_000, standardRates)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, back.DestinationAmountSwapped, want)
	}

	_, err := SwapBaseOutput(2_000_000_000, 1_000_000_000, 2_000_000_000, standardRates)
	assert.ErrorIs(t, err, quote.ErrInvalidSwapAmount)
}

func TestLpToTokens(t *testing.T) {
	tests := []struct {
		name  string
		round Rounding
		lp    uint64
		want0 uint64
		want1 uint64
	}{
		{"floor", Floor, 1_000_000, 707_106, 1_414_213},
		{"ceiling", Ceiling, 1_414_213, 1_000_000, 2_000_000},
		{"ceiling exact", Ceiling, 1_414_213_562, 1_000_000_000, 2_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a0, a1, err := LpToTokens(tt.lp, 1_414_213_562, 1_000_000_000, 2_000_000_000, tt.round)
			require.NoError(t, err)
			assert.Equal(t, tt.want0, a0)
			assert.Equal(t, tt.want1, a1)
		})
	}

	_, _, err := LpToTokens(1, 1_414_213_562, 1_000_000_000, 2_000_000_000, Floor)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
	_, _, err = LpToTokens(1, 0, 1, 1, Floor)
	assert.ErrorIs(t, err, quote.ErrZeroTradingTokens)
}

func TestTokensToLpScarcerSideBinds(t *testing.T) {
	lp0, err := TokensToLp(1_000_000, 1_414_213_562, 1_000_000_000, 2_000_000_000, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_414_213), lp0)

	lp1, err := TokensToLp(2_000_000, 1_414_213_562, 1_000_000_000, 2_000_000_000, false)
	require.NoError(t, err)
	assert.Equal(t, lp0, lp1)
}

func TestAddLiquidity(t *testing.T) {
	q, err := AddLiquidity(testPool(), 600, 1_000_000, true, 50)
	require.NoError(t, err)
	assert.Equal(t, LiquidityQuote{LpAmount: 1_407_141, Amount0: 1_000_000, Amount1: 2_020_203}, q)

	// Before the newer fee takes effect token 1 is fee free.
	q, err = AddLiquidity(testPool(), 499, 1_000_000, true, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), q.Amount1)

	_, err = AddLiquidity(testPool(), 600, 0, true, 50)
	assert.ErrorIs(t, err, quote.ErrZeroAmount)
}

func TestRemoveLiquidity(t *testing.T) {
	q, err := RemoveLiquidity(testPool(), 600, 1_000_000, 50)
	require.NoError(t, err)
	assert.Equal(t, LiquidityQuote{LpAmount: 1_000_000, Amount0: 703_570, Amount1: 1_421_355}, q)
}

func TestSwap(t *testing.T) {
	tests := []struct {
		name      string
		dir       Direction
		baseIn    bool
		amount    uint64
		threshold uint64
		feeIn     uint64
		feeOut    uint64
	}{
		{"base in, fee on output", ZeroForOne, true, 1_000_000, 1_963_214, 0, 19_931},
		{"base in, fee on input", OneForZero, true, 1_000_000, 491_050, 10_000, 0},
		{"base out, fee on output", ZeroForOne, false, 1_000_000, 509_106, 0, 10_102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Swap(testPool(), 600, tt.dir, tt.amount, tt.baseIn, 50)
			require.NoError(t, err)
			assert.Equal(t, tt.threshold, q.Threshold)
			assert.Equal(t, tt.feeIn, q.TransferFeeIn)
			assert.Equal(t, tt.feeOut, q.TransferFeeOut)
		})
	}
}

func TestSwapErrors(t *testing.T) {
	_, err := Swap(testPool(), 600, ZeroForOne, 0, true, 50)
	assert.ErrorIs(t, err, quote.ErrZeroAmount)

	_, err = Swap(testPool(), 600, ZeroForOne, 2_000_000_000, false, 50)
	assert.ErrorIs(t, err, quote.ErrInvalidSwapAmount)
}
