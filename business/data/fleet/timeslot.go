package fleet

import (
	"fmt"
	"time"
)

// SlotMinutes is the native granularity of the schedule table
const SlotMinutes = 10

// SlotPolicy decides how a wall clock instant is turned into slot keys
type SlotPolicy string

const (
	// SlotExact uses the exact minute of the instant. Minutes off the table's cadence match nothing.
	SlotExact SlotPolicy = "exact"
	// SlotFloor snaps the instant down to the SlotMinutes grid before building keys
	SlotFloor SlotPolicy = "floor"
)

// ParseSlotPolicy returns the SlotPolicy named by s
func ParseSlotPolicy(s string) (SlotPolicy, error) {
	switch p := SlotPolicy(s); p {
	case SlotExact, SlotFloor:
		return p, nil
	}
	return "", fmt.Errorf("unknown slot policy %q, expected %q or %q", s, SlotExact, SlotFloor)
}

// Resolve produces the current and next slot keys for now under policy p
func (p SlotPolicy) Resolve(now time.Time) (current string, next string) {
	hour, minute := now.Hour(), now.Minute()
	if p == SlotFloor {
		minute -= minute % SlotMinutes
	}
	return formatSlot(hour, minute), addSlotMinutes(hour, minute, SlotMinutes)
}

// CurrentSlot returns the "HH:MM" key of now, without rounding
func CurrentSlot(now time.Time) string {
	return formatSlot(now.Hour(), now.Minute())
}

// NextSlot returns the "HH:MM" key SlotMinutes after now. Minutes carry into the hour and hour 24 wraps to 0,
// the schedule has no notion of which day the following slot belongs to.
func NextSlot(now time.Time) string {
	return addSlotMinutes(now.Hour(), now.Minute(), SlotMinutes)
}

func addSlotMinutes(hour int, minute int, add int) string {
	minute += add
	for minute >= 60 {
		minute -= 60
		hour += 1
	}
	return formatSlot(hour%24, minute)
}

func formatSlot(hour int, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
