package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseDayLayouts(t *testing.T) {
	want := time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2021-03-07", "2021/03/07", "2021-03-07 18:30:00", "2021-03-07T18:30:00Z", "03/07/2021", " 2021-03-07 "} {
		got, ok := ParseDay(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", s, got, want)
		}
	}
	if _, ok := ParseDay("yesterday"); ok {
		t.Fatalf("expected failure for free text")
	}
}

func TestParseDayDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseDayDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 2, 27, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 3 {
		t.Fatalf("expected 3 days across leap day, got %d", got)
	}
	if FormatDay(b) != "2024-03-01" {
		t.Fatalf("unexpected format %s", FormatDay(b))
	}
}
