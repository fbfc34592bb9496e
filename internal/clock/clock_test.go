package clock

import (
	"testing"
	"time"
)

func TestMockClock_SetAndAdd(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}
	c.Add(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("unexpected time after Add: %v", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected reset time")
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	today := Today(now)
	if today.Hour() != 0 || today.Day() != 10 {
		t.Fatalf("unexpected today: %v", today)
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	if LoadLocation("Not/AZone") != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
	if LoadLocation("") != time.UTC {
		t.Fatalf("expected UTC for empty name")
	}
}

func TestRealClock_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	c := NewRealClock(loc)
	if c.Now().Location() != loc {
		t.Fatalf("expected clock in configured location")
	}
}
