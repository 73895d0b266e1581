package analytics

import (
	"testing"
	"time"
)

func TestNewRejectsUnknownTimezone(t *testing.T) {
	if _, err := New("Nowhere/Invalid"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestNextRunTopOfHour(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	at := time.Date(2024, 3, 10, 14, 25, 30, 0, time.UTC)
	next := s.NextRun(at)
	want := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextRunExactHourAdvances(t *testing.T) {
	s, _ := New("UTC")
	at := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	next := s.NextRun(at)
	want := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextRunCrossesMidnight(t *testing.T) {
	s, _ := New("UTC")
	at := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	next := s.NextRun(at)
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextRunEvaluatesInConfiguredZone(t *testing.T) {
	s, err := New("Asia/Dhaka")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	at := time.Date(2024, 3, 10, 14, 25, 0, 0, time.UTC)
	next := s.NextRun(at)
	if next.Location().String() != "Asia/Dhaka" {
		t.Fatalf("expected Asia/Dhaka, got %v", next.Location())
	}
	// 14:25 UTC is 20:25 in Dhaka; next run is 21:00 Dhaka = 15:00 UTC.
	if !next.Equal(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run %v", next)
	}
}
