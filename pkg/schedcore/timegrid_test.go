package schedcore

import (
	"testing"
	"time"
)

func TestTimeGrid_RoundTrip(t *testing.T) {
	epoch := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	grid := NewTimeGrid(epoch, 96)

	for slot := 0; slot <= 96; slot++ {
		ts, err := grid.FromSlot(slot)
		if err != nil {
			t.Fatalf("FromSlot(%d): %v", slot, err)
		}
		back, err := grid.ToSlot(ts)
		if err != nil {
			t.Fatalf("ToSlot(FromSlot(%d)): %v", slot, err)
		}
		if back != slot {
			t.Fatalf("round trip: slot %d became %d", slot, back)
		}
	}
}

func TestTimeGrid_OutOfRange(t *testing.T) {
	epoch := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	grid := NewTimeGrid(epoch, 10)

	if _, err := grid.ToSlot(epoch.Add(-time.Minute)); err == nil {
		t.Fatal("expected error for timestamp before epoch")
	}
	if _, err := grid.ToSlot(epoch.Add(11 * 15 * time.Minute)); err == nil {
		t.Fatal("expected error for timestamp past horizon")
	}
	if _, err := grid.FromSlot(-1); err == nil {
		t.Fatal("expected error for negative slot")
	}
	if _, err := grid.FromSlot(11); err == nil {
		t.Fatal("expected error for slot past horizon")
	}
}
