package parser

import (
	"errors"
	"testing"
	"time"
)

func TestResolver_Month(t *testing.T) {
	r := NewResolver(2025)

	t.Run("valid with millis", func(t *testing.T) {
		got, err := r.Month("Jun 26 15:53:39.204")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, time.June, 26, 15, 53, 39, 204*int(time.Millisecond), time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("missing millis reads as zero", func(t *testing.T) {
		got, err := r.Month("Jan  5 08:00:01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Nanosecond() != 0 || got.Day() != 5 {
			t.Errorf("unexpected instant %v", got)
		}
	})

	invalid := []string{
		"Foo 12 10:00:00.000",
		"Jun 32 10:00:00.000",
		"Jun 0 10:00:00.000",
		"Jun 12 24:00:00.000",
		"Jun 12 23:60:00.000",
		"Jun 12 23:59:60.000",
		"Feb 30 10:00:00.000",
		"jun 12 10:00:00.000",
	}
	for _, ts := range invalid {
		t.Run("rejects "+ts, func(t *testing.T) {
			_, err := r.Month(ts)
			if !errors.Is(err, ErrInvalidTimestamp) {
				t.Errorf("expected ErrInvalidTimestamp for %q, got %v", ts, err)
			}
		})
	}
}

func TestResolver_Prefix(t *testing.T) {
	r := NewResolver(2025)

	tests := []struct {
		in   string
		want string
	}{
		{"01-12:34:56.789", "2025-01-01T12:34:56.789Z"},
		{"06-26 15:53:39.204", "2025-01-01T15:53:39.204Z"},
		{"31-00:00:00.000", "2025-01-01T00:00:00.000Z"},
	}
	for _, tt := range tests {
		got, err := r.Prefix(tt.in)
		if err != nil {
			t.Fatalf("Prefix(%q): %v", tt.in, err)
		}
		if s := got.Format("2006-01-02T15:04:05.000Z"); s != tt.want {
			t.Errorf("Prefix(%q) = %s, want %s", tt.in, s, tt.want)
		}
	}

	if _, err := r.Prefix("01-25:00:00.000"); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected hour 25 to be rejected, got %v", err)
	}
}

func TestResolver_Fallback(t *testing.T) {
	r := NewResolver(0)

	if got := r.Last(); !got.Equal(time.Date(DefaultSessionYear, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected session epoch before any timestamp, got %v", got)
	}

	first, _ := r.Prefix("01-10:00:00.500")
	if _, err := r.Month("Jun 40 10:00:00.000"); err == nil {
		t.Fatal("expected invalid day to fail")
	}
	if got := r.Last(); !got.Equal(first) {
		t.Errorf("invalid timestamp must not move the fallback: got %v, want %v", got, first)
	}
}
