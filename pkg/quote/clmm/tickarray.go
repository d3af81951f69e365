package clmm

import (
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/yimingwow/rayquote/pkg/quote"
	"lukechampine.com/uint128"
)

// TickArraySize is the number of ticks one tick array account stores.
const TickArraySize = 60

// Tick is the swap-relevant part of an on-chain tick. LiquidityNet is the
// signed liquidity change when the price crosses the tick upward.
type Tick struct {
	Tick           int32
	LiquidityNet   cosmath.Int
	LiquidityGross uint128.Uint128
}

func (t *Tick) Initialized() bool {
	return !t.LiquidityGross.IsZero()
}

// TickArray is a window of TickArraySize ticks starting at StartTickIndex.
type TickArray struct {
	StartTickIndex       int32
	Ticks                [TickArraySize]Tick
	InitializedTickCount uint8
}

// TickCount is the tick span one tick array covers.
func TickCount(spacing uint16) int32 {
	return TickArraySize * int32(spacing)
}

// ArrayStartIndex returns the start index of the tick array holding tick.
func ArrayStartIndex(tick int32, spacing uint16) int32 {
	span := TickCount(spacing)
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// IsValidStartIndex reports whether start can begin a tick array.
func IsValidStartIndex(start int32, spacing uint16) bool {
	if start < MinTick || start > MaxTick {
		if start > MaxTick {
			return false
		}
		return start == ArrayStartIndex(MinTick, spacing)
	}
	return start%TickCount(spacing) == 0
}

// NextInitializedTick returns the next initialized tick from current in the
// swap direction inside this array, or nil when current lies elsewhere or no
// tick is left. Moving down includes current itself.
func (a *TickArray) NextInitializedTick(current int32, spacing uint16, zeroForOne bool) *Tick {
	if ArrayStartIndex(current, spacing) != a.StartTickIndex {
		return nil
	}
	offset := int((current - a.StartTickIndex) / int32(spacing))
	if zeroForOne {
		for ; offset >= 0; offset-- {
			if a.Ticks[offset].Initialized() {
				return &a.Ticks[offset]
			}
		}
		return nil
	}
	for offset++; offset < TickArraySize; offset++ {
		if a.Ticks[offset].Initialized() {
			return &a.Ticks[offset]
		}
	}
	return nil
}

// FirstInitializedTick returns the first initialized tick met when entering
// the array in the swap direction.
func (a *TickArray) FirstInitializedTick(zeroForOne bool) (*Tick, error) {
	if zeroForOne {
		for i := TickArraySize - 1; i >= 0; i-- {
			if a.Ticks[i].Initialized() {
				return &a.Ticks[i], nil
			}
		}
	} else {
		for i := range a.Ticks {
			if a.Ticks[i].Initialized() {
				return &a.Ticks[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: tick array %d has no initialized tick", quote.ErrInsufficientTickArrays, a.StartTickIndex)
}

// TickArrayCursor walks a pre-fetched, ordered sequence of tick arrays.
type TickArrayCursor struct {
	arrays []*TickArray
	next   int
}

func NewTickArrayCursor(arrays ...*TickArray) *TickArrayCursor {
	return &TickArrayCursor{arrays: arrays}
}

// Next returns the next staged array, which must start at want.
func (c *TickArrayCursor) Next(want int32) (*TickArray, error) {
	if c.next >= len(c.arrays) {
		return nil, fmt.Errorf("%w: need tick array %d after %d staged", quote.ErrInsufficientTickArrays, want, len(c.arrays))
	}
	a := c.arrays[c.next]
	if a == nil || a.StartTickIndex != want {
		return nil, fmt.Errorf("%w: staged tick array %d does not start at %d", quote.ErrInsufficientTickArrays, c.next, want)
	}
	c.next++
	return a, nil
}

// Remaining is the number of staged arrays not yet visited.
func (c *TickArrayCursor) Remaining() int {
	return len(c.arrays) - c.next
}
