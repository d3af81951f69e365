// Package transferfee models the Token-2022 transfer-fee extension: epoch
// versioned fee configs and the forward/inverse fee calculations applied to
// every token transfer leg of a quote.
package transferfee

import (
	"github.com/gagliardetto/solana-go"
	"github.com/yimingwow/rayquote/pkg/quote"
)

// MaxFeeBasisPoints is the largest fee a mint may charge, 100%.
const MaxFeeBasisPoints = 10_000

// Fee is one generation of a mint's transfer-fee schedule.
type Fee struct {
	Epoch       uint64
	MaximumFee  uint64
	BasisPoints uint16
}

// CalculateFee returns the fee withheld when preFeeAmount is transferred.
func (f Fee) CalculateFee(preFeeAmount uint64) (uint64, error) {
	if f.BasisPoints == 0 || preFeeAmount == 0 {
		return 0, nil
	}
	raw, err := quote.MulDivCeil64(preFeeAmount, uint64(f.BasisPoints), MaxFeeBasisPoints)
	if err != nil {
		return 0, err
	}
	return min(raw, f.MaximumFee), nil
}

// CalculatePreFeeAmount returns the smallest amount whose transfer delivers
// postFeeAmount to the recipient.
func (f Fee) CalculatePreFeeAmount(postFeeAmount uint64) (uint64, error) {
	switch {
	case f.BasisPoints == 0:
		return postFeeAmount, nil
	case postFeeAmount == 0:
		return 0, nil
	case f.BasisPoints == MaxFeeBasisPoints:
		return quote.CheckedAdd(postFeeAmount, f.MaximumFee)
	}
	raw, err := quote.MulDivCeil64(postFeeAmount, MaxFeeBasisPoints, MaxFeeBasisPoints-uint64(f.BasisPoints))
	if err != nil {
		return 0, err
	}
	if raw-postFeeAmount >= f.MaximumFee {
		return quote.CheckedAdd(postFeeAmount, f.MaximumFee)
	}
	return raw, nil
}

// CalculateInverseFee returns the fee charged on the pre-fee amount that
// yields postFeeAmount.
func (f Fee) CalculateInverseFee(postFeeAmount uint64) (uint64, error) {
	if f.BasisPoints == MaxFeeBasisPoints {
		return f.MaximumFee, nil
	}
	pre, err := f.CalculatePreFeeAmount(postFeeAmount)
	if err != nil {
		return 0, err
	}
	return f.CalculateFee(pre)
}

// Config is the TransferFeeConfig mint extension. Zero authorities mean none.
type Config struct {
	ConfigAuthority   solana.PublicKey
	WithdrawAuthority solana.PublicKey
	WithheldAmount    uint64
	Older             Fee
	Newer             Fee
}

// EpochFee selects the fee generation active at epoch.
func (c *Config) EpochFee(epoch uint64) Fee {
	if epoch >= c.Newer.Epoch {
		return c.Newer
	}
	return c.Older
}

// Forward returns the fee withheld when preFeeAmount of a mint with config c
// is transferred at epoch. A nil config charges nothing.
func Forward(c *Config, epoch, preFeeAmount uint64) (uint64, error) {
	if c == nil {
		return 0, nil
	}
	return c.EpochFee(epoch).CalculateFee(preFeeAmount)
}

// Inverse returns the extra amount a sender must add so that postFeeAmount
// arrives after the fee at epoch. A nil config charges nothing.
func Inverse(c *Config, epoch, postFeeAmount uint64) (uint64, error) {
	if c == nil {
		return 0, nil
	}
	return c.EpochFee(epoch).CalculateInverseFee(postFeeAmount)
}
