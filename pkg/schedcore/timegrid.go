package schedcore

import (
	"fmt"
	"time"
)

// SlotsPerDay is the number of 15-minute slots in a calendar day (C1,
// GLOSSARY).
const SlotsPerDay = 96

const slotDuration = 15 * time.Minute

// TimeGrid converts between wall-clock timestamps and the discrete 15-minute
// slot grid every other component operates on exclusively (C1). It is a
// standalone value: Problem holds no TimeGrid or epoch, so converting
// Solution output back to wall-clock needs a grid built from the caller's
// own epoch.
type TimeGrid struct {
	Epoch   time.Time
	Horizon Slot // slots are valid over [0, Horizon]
}

// NewTimeGrid anchors a grid at epoch with the given horizon in slots.
func NewTimeGrid(epoch time.Time, horizon Slot) TimeGrid {
	return TimeGrid{Epoch: epoch, Horizon: horizon}
}

// ErrInvalidTimeIndex is returned by ToSlot/FromSlot when the input falls
// outside the grid's defined range (C1).
type ErrInvalidTimeIndex struct {
	Value string
	Range string
}

func (e *ErrInvalidTimeIndex) Error() string {
	return fmt.Sprintf("invalid time index %s: outside %s", e.Value, e.Range)
}

// ToSlot converts a wall-clock timestamp to a slot index.
func (g TimeGrid) ToSlot(t time.Time) (Slot, error) {
	d := t.Sub(g.Epoch)
	if d < 0 {
		return 0, &ErrInvalidTimeIndex{Value: t.Format(time.RFC3339), Range: fmt.Sprintf("[%s, +inf)", g.Epoch.Format(time.RFC3339))}
	}
	slot := int(d / slotDuration)
	if slot > g.Horizon {
		return 0, &ErrInvalidTimeIndex{Value: t.Format(time.RFC3339), Range: fmt.Sprintf("[0, %d]", g.Horizon)}
	}
	return slot, nil
}

// FromSlot converts a slot index back to a wall-clock timestamp.
func (g TimeGrid) FromSlot(slot Slot) (time.Time, error) {
	if slot < 0 || slot > g.Horizon {
		return time.Time{}, &ErrInvalidTimeIndex{Value: fmt.Sprintf("%d", slot), Range: fmt.Sprintf("[0, %d]", g.Horizon)}
	}
	return g.Epoch.Add(time.Duration(slot) * slotDuration), nil
}
