package transferfee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name string
		fee  Fee
		pre  uint64
		want uint64
	}{
		{"zero bps", Fee{BasisPoints: 0, MaximumFee: 100}, 1_000_000, 0},
		{"zero amount", Fee{BasisPoints: 100, MaximumFee: 100}, 0, 0},
		{"proportional rounds up", Fee{BasisPoints: 25, MaximumFee: 1 << 40}, 401, 2},
		{"exact", Fee{BasisPoints: 100, MaximumFee: 1 << 40}, 1_000_000, 10_000},
		{"clamped", Fee{BasisPoints: 100, MaximumFee: 5_000}, 1_000_000, 5_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fee.CalculateFee(tt.pre)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxBasisPointsChargesMaximumFee(t *testing.T) {
	f := Fee{BasisPoints: MaxFeeBasisPoints, MaximumFee: 500}
	for _, pre := range []uint64{500, 501, 10_000, 1 << 50} {
		got, err := f.CalculateFee(pre)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), got, "pre=%d", pre)
	}
	for _, post := range []uint64{0, 1, 499, 1 << 50} {
		got, err := f.CalculateInverseFee(post)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), got, "post=%d", post)
	}
}

func TestInverseFeeDeliversPostAmount(t *testing.T) {
	posts := []uint64{0, 1, 2, 39, 40, 41, 399, 400, 401, 999_999, 1_000_000_007, 123_456_789_012}
	for _, bps := range []uint16{1, 25, 100, 250, 333, 5000, 9999} {
		for _, maxFee := range []uint64{50, 1 << 50} {
			f := Fee{BasisPoints: bps, MaximumFee: maxFee}
			for _, post := range posts {
				inv, err := f.CalculateInverseFee(post)
				require.NoError(t, err)
				fwd, err := f.CalculateFee(post + inv)
				require.NoError(t, err)
				assert.Equal(t, inv, fwd, "bps=%d max=%d post=%d", bps, maxFee, post)
				assert.Equal(t, post, post+inv-fwd)
			}
		}
	}
}

func TestCalculatePreFeeAmount(t *testing.T) {
	f := Fee{BasisPoints: 250, MaximumFee: 1 << 40}
	pre, err := f.CalculatePreFeeAmount(975)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), pre)

	capped := Fee{BasisPoints: 250, MaximumFee: 10}
	pre, err = capped.CalculatePreFeeAmount(975)
	require.NoError(t, err)
	assert.Equal(t, uint64(985), pre)
}

func TestEpochFeeSelection(t *testing.T) {
	cfg := &Config{
		Older: Fee{Epoch: 100, BasisPoints: 10, MaximumFee: 1 << 40},
		Newer: Fee{Epoch: 200, BasisPoints: 500, MaximumFee: 1 << 40},
	}
	assert.Equal(t, cfg.Older, cfg.EpochFee(199))
	assert.Equal(t, cfg.Newer, cfg.EpochFee(200))
	assert.Equal(t, cfg.Newer, cfg.EpochFee(201))

	stale, err := Forward(cfg, 150, 1_000_000)
	require.NoError(t, err)
	current, err := Forward(cfg, 250, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), stale)
	assert.Equal(t, uint64(50_000), current)
}

func TestNilConfigIsFree(t *testing.T) {
	fee, err := Forward(nil, 1, 1_000)
	require.NoError(t, err)
	assert.Zero(t, fee)

	fee, err = Inverse(nil, 1, 1_000)
	require.NoError(t, err)
	assert.Zero(t, fee)
}
