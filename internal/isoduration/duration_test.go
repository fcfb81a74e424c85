package isoduration

import (
	"testing"
	"time"
)

func TestFormatKnownValues(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "P0DT0H0M0S"},
		{90 * time.Minute, "P0DT1H30M0S"},
		{25 * time.Hour, "P1DT1H0M0S"},
		{1500 * time.Millisecond, "P0DT0H0M1.500S"},
	}
	for _, c := range cases {
		if got := Format(c.d); got != c.want {
			t.Fatalf("Format(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	durations := []time.Duration{
		0,
		time.Second,
		90 * time.Minute,
		25 * time.Hour,
		1500 * time.Millisecond,
		-45 * time.Minute,
	}
	for _, d := range durations {
		s := Format(d)
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got != d {
			t.Fatalf("round trip %v -> %q -> %v", d, s, got)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "1DT0H0M0S", "P1D0H0M0S", "PT1X"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q): expected error", s)
		}
	}
}
