package sol

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// ClockAccountDataSize is the length of the clock sysvar.
const ClockAccountDataSize = 40

// Clock is the clock sysvar. Transfer fees are versioned by Epoch.
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

// ParseClock decodes the clock sysvar.
func ParseClock(data []byte) (*Clock, error) {
	if len(data) != ClockAccountDataSize {
		return nil, fmt.Errorf("clock sysvar: expected %d bytes, got %d", ClockAccountDataSize, len(data))
	}
	var c Clock
	if err := bin.NewBinDecoder(data).Decode(&c); err != nil {
		return nil, fmt.Errorf("clock sysvar: %w", err)
	}
	return &c, nil
}
