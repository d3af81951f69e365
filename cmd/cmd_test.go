package cmd

import (
	"bytes"
	"io"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/yimingwow/rayquote/pkg/sol"
)

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()
	tests := []struct {
		group string
		subs  []string
	}{
		{"amm", []string{"swap", "deposit", "withdraw", "fetch-pool"}},
		{"cpswap", []string{"swap", "deposit", "withdraw", "fetch-pool", "fetch-config"}},
		{"clmm", []string{"swap", "open-position", "increase-liquidity", "decrease-liquidity", "fetch-pool", "fetch-config", "pool-price"}},
	}
	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			for _, sub := range tt.subs {
				c, _, err := root.Find([]string{tt.group, sub})
				require.NoError(t, err)
				assert.Equal(t, sub, c.Name())
			}
		})
	}

	c, _, err := root.Find([]string{"route"})
	require.NoError(t, err)
	assert.NotNil(t, c.Flags().Lookup("input-mint"))
	assert.NotNil(t, c.Flags().Lookup("unwrap-sol"))
}

func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"amm", "swap"}, "pool-id"},
		{[]string{"cpswap", "withdraw", "--pool-id", "x"}, "lp-amount"},
		{[]string{"clmm", "open-position", "--pool-id", "x", "--amount", "1"}, "lower-price"},
		{[]string{"route", "--input-mint", "x", "--output-mint", "y"}, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0]+" "+tt.args[1], func(t *testing.T) {
			root := NewRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestUIAmount(t *testing.T) {
	tests := []struct {
		raw      uint64
		decimals uint8
		want     string
	}{
		{1_000_000_000, 9, "1"},
		{1_500_000, 6, "1.5"},
		{1, 9, "0.000000001"},
		{42, 0, "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, uiAmount(tt.raw, tt.decimals))
	}
}

func TestDecimalFlag(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().String("price", "", "")

	_, err := decimalFlag(c, "price")
	assert.ErrorIs(t, err, errNoPrice)

	require.NoError(t, c.Flags().Set("price", "0.25"))
	d, err := decimalFlag(c, "price")
	require.NoError(t, err)
	assert.Equal(t, "0.25", d.String())

	require.NoError(t, c.Flags().Set("price", "cheap"))
	_, err = decimalFlag(c, "price")
	assert.ErrorContains(t, err, "--price")
}

func TestPubkeyFlags(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().String("mint", "", "")

	key, err := optionalPubkeyFlag(c, "mint")
	require.NoError(t, err)
	assert.True(t, key.IsZero())
	_, err = pubkeyFlag(c, "mint")
	assert.ErrorContains(t, err, "--mint is required")

	require.NoError(t, c.Flags().Set("mint", sol.WSOL.String()))
	key, err = pubkeyFlag(c, "mint")
	require.NoError(t, err)
	assert.Equal(t, sol.WSOL, key)

	require.NoError(t, c.Flags().Set("mint", "not-a-key"))
	_, err = optionalPubkeyFlag(c, "mint")
	assert.Error(t, err)
}

func TestUnwrapIfSOL(t *testing.T) {
	owner := solana.NewWallet().PublicKey()

	instrs, err := unwrapIfSOL(owner, sol.WSOL, false)
	require.NoError(t, err)
	assert.Empty(t, instrs)

	instrs, err = unwrapIfSOL(owner, solana.NewWallet().PublicKey(), true)
	require.NoError(t, err)
	assert.Empty(t, instrs)

	instrs, err = unwrapIfSOL(owner, sol.WSOL, true)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, solana.TokenProgramID, instrs[0].ProgramID())
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newReport(&buf).
		row("pool", "abc").
		row(thresholdLabel(true), 990).
		row(thresholdLabel(false), 1010).
		flush())
	assert.Equal(t, "pool         abc\nminimum out  990\nmaximum in   1010\n", buf.String())
}
