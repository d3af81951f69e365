package clmm

import (
	"fmt"
	"math/bits"

	"github.com/yimingwow/rayquote/pkg/quote"
)

const (
	// defaultBitmapBits is the number of tick arrays tracked inside the pool
	// account, half on each side of tick zero.
	defaultBitmapBits = 1024
	// extensionBitmapBits is the width of one extension bitmap.
	extensionBitmapBits = 512
	extensionBitmaps    = 14
)

// BitmapExtension tracks initialized tick arrays beyond the default bitmap.
// Positive[i] covers [(i+1)*T, (i+2)*T) and Negative[i] covers
// [-(i+2)*T, -(i+1)*T), with T the ticks one bitmap spans.
type BitmapExtension struct {
	Positive [extensionBitmaps][8]uint64
	Negative [extensionBitmaps][8]uint64
}

// Bitmap locates initialized tick arrays for one pool.
type Bitmap struct {
	TickSpacing uint16
	Default     [16]uint64
	Extension   *BitmapExtension
}

// extension returns the extension bitmaps, empty when the pool has none.
func (b *Bitmap) extension() *BitmapExtension {
	if b.Extension == nil {
		return &BitmapExtension{}
	}
	return b.Extension
}

// ticksInBitmap is the tick span of one side of the default bitmap, which is
// also the span of one extension bitmap.
func ticksInBitmap(spacing uint16) int32 {
	return TickCount(spacing) * extensionBitmapBits
}

func bitSet(words []uint64, pos int) bool {
	return words[pos/64]&(1<<uint(pos%64)) != 0
}

// highestSetAtOrBelow returns the highest set bit position <= pos.
func highestSetAtOrBelow(words []uint64, pos int) (int, bool) {
	w := pos / 64
	mask := ^uint64(0) >> uint(63-pos%64)
	for ; w >= 0; w-- {
		if v := words[w] & mask; v != 0 {
			return w*64 + 63 - bits.LeadingZeros64(v), true
		}
		mask = ^uint64(0)
	}
	return 0, false
}

// lowestSetAtOrAbove returns the lowest set bit position >= pos.
func lowestSetAtOrAbove(words []uint64, pos int) (int, bool) {
	w := pos / 64
	mask := ^uint64(0) << uint(pos%64)
	for ; w < len(words); w++ {
		if v := words[w] & mask; v != 0 {
			return w*64 + bits.TrailingZeros64(v), true
		}
		mask = ^uint64(0)
	}
	return 0, false
}

// defaultRange is the [min, max) start index range the default bitmap can
// represent, clamped to the tick bounds.
func (b *Bitmap) defaultRange() (int32, int32) {
	hi := ticksInBitmap(b.TickSpacing)
	lo := -hi
	if hi > MaxTick {
		hi = ArrayStartIndex(MaxTick, b.TickSpacing) + TickCount(b.TickSpacing)
	}
	if lo < MinTick {
		lo = ArrayStartIndex(MinTick, b.TickSpacing)
	}
	return lo, hi
}

func (b *Bitmap) overflowsDefault(tick int32) bool {
	lo, hi := b.defaultRange()
	start := ArrayStartIndex(tick, b.TickSpacing)
	return start >= hi || start < lo
}

func (b *Bitmap) compressed(start int32) int {
	span := TickCount(b.TickSpacing)
	c := start/span + defaultBitmapBits/2
	if start < 0 && start%span != 0 {
		c--
	}
	if c < 0 {
		c = -c
	}
	return int(c)
}

func (b *Bitmap) defaultIsInitialized(tick int32) (bool, int32) {
	span := TickCount(b.TickSpacing)
	pos := b.compressed(tick)
	start := (int32(pos) - defaultBitmapBits/2) * span
	if pos >= defaultBitmapBits {
		return false, start
	}
	return bitSet(b.Default[:], pos), start
}

// nextInDefault searches the default bitmap for the next initialized array
// after last. When nothing is found the returned index is where the search
// continues in the extension.
func (b *Bitmap) nextInDefault(last int32, zeroForOne bool) (bool, int32) {
	span := TickCount(b.TickSpacing)
	boundary := ticksInBitmap(b.TickSpacing)
	next := last + span
	if zeroForOne {
		next = last - span
	}
	if next < -boundary || next >= boundary {
		return false, last
	}
	pos := b.compressed(next)
	if zeroForOne {
		if h, ok := highestSetAtOrBelow(b.Default[:], pos); ok {
			return true, (int32(h) - defaultBitmapBits/2) * span
		}
		return false, -boundary
	}
	if l, ok := lowestSetAtOrAbove(b.Default[:], pos); ok {
		return true, (int32(l) - defaultBitmapBits/2) * span
	}
	return false, boundary - span
}

func (e *BitmapExtension) bitmapFor(start int32, spacing uint16) (*[8]uint64, error) {
	boundary := ticksInBitmap(spacing)
	if start >= -boundary && start < boundary {
		return nil, fmt.Errorf("tick array %d is inside the default bitmap", start)
	}
	abs := start
	if abs < 0 {
		abs = -abs
	}
	offset := abs/boundary - 1
	if start < 0 && abs%boundary == 0 {
		offset--
	}
	if offset < 0 || offset >= extensionBitmaps {
		return nil, fmt.Errorf("tick array %d is beyond the extension bitmaps", start)
	}
	if start < 0 {
		return &e.Negative[offset], nil
	}
	return &e.Positive[offset], nil
}

func offsetInBitmap(start int32, spacing uint16) int {
	abs := start
	if abs < 0 {
		abs = -abs
	}
	m := abs % ticksInBitmap(spacing)
	offset := int(m / TickCount(spacing))
	if start < 0 && m != 0 {
		offset = extensionBitmapBits - offset
	}
	return offset
}

// bitmapBoundary returns the [min, max) tick range of the extension bitmap
// holding start.
func bitmapBoundary(start int32, spacing uint16) (int32, int32) {
	boundary := ticksInBitmap(spacing)
	abs := start
	if abs < 0 {
		abs = -abs
	}
	m := abs / boundary
	if start < 0 && abs%boundary != 0 {
		m++
	}
	lo := boundary * m
	if start < 0 {
		return -lo, -lo + boundary
	}
	return lo, lo + boundary
}

func (e *BitmapExtension) isInitialized(start int32, spacing uint16) (bool, error) {
	words, err := e.bitmapFor(start, spacing)
	if err != nil {
		return false, err
	}
	return bitSet(words[:], offsetInBitmap(start, spacing)), nil
}

func (e *BitmapExtension) nextInOneBitmap(last int32, spacing uint16, zeroForOne bool) (bool, int32, error) {
	span := TickCount(spacing)
	next := last + span
	if zeroForOne {
		next = last - span
	}
	if next < ArrayStartIndex(MinTick, spacing) || next > ArrayStartIndex(MaxTick, spacing) {
		return false, next, nil
	}
	words, err := e.bitmapFor(next, spacing)
	if err != nil {
		return false, 0, err
	}
	lo, hi := bitmapBoundary(next, spacing)
	offset := offsetInBitmap(next, spacing)
	if zeroForOne {
		if h, ok := highestSetAtOrBelow(words[:], offset); ok {
			return true, next - int32(offset-h)*span, nil
		}
		return false, lo, nil
	}
	if l, ok := lowestSetAtOrAbove(words[:], offset); ok {
		return true, next + int32(l-offset)*span, nil
	}
	return false, hi - span, nil
}

// NextInitializedTickArrayStartIndex returns the start index of the next
// initialized tick array after last in the swap direction. ok is false when
// none exists before the tick bounds.
func (b *Bitmap) NextInitializedTickArrayStartIndex(last int32, zeroForOne bool) (int32, bool, error) {
	last = ArrayStartIndex(last, b.TickSpacing)
	for {
		found, start := b.nextInDefault(last, zeroForOne)
		if found {
			return start, true, nil
		}
		last = start
		found, start, err := b.extension().nextInOneBitmap(last, b.TickSpacing, zeroForOne)
		if err != nil {
			return 0, false, err
		}
		if found {
			return start, true, nil
		}
		last = start
		if last < MinTick || last > MaxTick {
			return 0, false, nil
		}
	}
}

// FirstInitializedTickArray returns the tick array a swap starts in. current
// reports whether it is the array holding tickCurrent.
func (b *Bitmap) FirstInitializedTickArray(tickCurrent int32, zeroForOne bool) (start int32, current bool, err error) {
	if b.overflowsDefault(tickCurrent) {
		start = ArrayStartIndex(tickCurrent, b.TickSpacing)
		current, err = b.extension().isInitialized(start, b.TickSpacing)
		if err != nil {
			return 0, false, err
		}
	} else {
		current, start = b.defaultIsInitialized(tickCurrent)
	}
	if current {
		return start, true, nil
	}
	next, ok, err := b.NextInitializedTickArrayStartIndex(ArrayStartIndex(tickCurrent, b.TickSpacing), zeroForOne)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("%w: no initialized tick array from tick %d", quote.ErrInsufficientTickArrays, tickCurrent)
	}
	return next, false, nil
}

// InitializedTickArrays lists the start indices a swap from tickCurrent may
// visit: the first initialized array and up to more after it.
func (b *Bitmap) InitializedTickArrays(tickCurrent int32, zeroForOne bool, more int) ([]int32, error) {
	start, _, err := b.FirstInitializedTickArray(tickCurrent, zeroForOne)
	if err != nil {
		return nil, err
	}
	starts := []int32{start}
	for ; more > 0; more-- {
		next, ok, err := b.NextInitializedTickArrayStartIndex(start, zeroForOne)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		starts = append(starts, next)
		start = next
	}
	return starts, nil
}

// SetInitialized marks the tick array at start as initialized. It exists for
// building fixtures and local pool state.
func (b *Bitmap) SetInitialized(start int32) error {
	if !IsValidStartIndex(start, b.TickSpacing) {
		return fmt.Errorf("invalid tick array start index %d", start)
	}
	if !b.overflowsDefault(start) {
		pos := b.compressed(start)
		b.Default[pos/64] |= 1 << uint(pos%64)
		return nil
	}
	if b.Extension == nil {
		b.Extension = &BitmapExtension{}
	}
	words, err := b.Extension.bitmapFor(start, b.TickSpacing)
	if err != nil {
		return err
	}
	pos := offsetInBitmap(start, b.TickSpacing)
	words[pos/64] |= 1 << uint(pos%64)
	return nil
}
