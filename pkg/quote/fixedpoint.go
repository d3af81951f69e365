package quote

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return sum, nil
}

func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrArithmeticUnderflow, a, b)
	}
	return diff, nil
}

func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmeticOverflow, a, b)
	}
	return lo, nil
}

// SaturatingSub returns a-b, or 0 when b > a.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// CeilDiv returns ⌈a/b⌉ over u128.
func CeilDiv(a, b uint128.Uint128) (uint128.Uint128, error) {
	if b.IsZero() {
		return uint128.Zero, ErrDivisionByZero
	}
	q, r := a.QuoRem(b)
	if !r.IsZero() {
		q = q.Add64(1)
	}
	return q, nil
}

// U256 widens a u128 into a fresh 256-bit integer.
func U256(v uint128.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

// ToU128 narrows z, failing when it does not fit in 128 bits.
func ToU128(z *uint256.Int) (uint128.Uint128, error) {
	if z[2] != 0 || z[3] != 0 {
		return uint128.Zero, fmt.Errorf("%w: %s exceeds u128", ErrArithmeticOverflow, z.Dec())
	}
	return uint128.New(z[0], z[1]), nil
}

// ToU64 narrows z, failing when it does not fit in 64 bits.
func ToU64(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, fmt.Errorf("%w: %s exceeds u64", ErrArithmeticOverflow, z.Dec())
	}
	return z.Uint64(), nil
}

// MulDiv computes x*y/d with a 512-bit intermediate product, rounding the
// quotient up when roundUp is set.
func MulDiv(x, y, d *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	if roundUp && !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if q, overflow = q.AddOverflow(q, uint256.NewInt(1)); overflow {
			return nil, ErrArithmeticOverflow
		}
	}
	return q, nil
}

// DivCeil returns ⌈x/d⌉ over 256 bits.
func DivCeil(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	q, r := new(uint256.Int).DivMod(x, d, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// MulDivFloor64 computes floor(a*b/d) and requires the result to fit in u64.
func MulDivFloor64(a, b, d uint64) (uint64, error) {
	q, err := MulDiv(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d), false)
	if err != nil {
		return 0, err
	}
	return ToU64(q)
}

// MulDivCeil64 computes ceil(a*b/d) and requires the result to fit in u64.
func MulDivCeil64(a, b, d uint64) (uint64, error) {
	q, err := MulDiv(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d), true)
	if err != nil {
		return 0, err
	}
	return ToU64(q)
}
