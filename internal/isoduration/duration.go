// Package isoduration formats and parses the subset of ISO-8601 durations
// (days/hours/minutes/seconds only, no weeks/months/years) used to persist
// time.Duration values in structured documents. Go's time.Duration has no
// ISO-8601 marshaler, and its default String() ("1h30m0s") is not valid
// ISO-8601, so snapshot/config documents that need to stay readable by a
// non-Go implementation go through this instead.
package isoduration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders d as "P<days>DT<hours>H<minutes>M<seconds>S", e.g.
// "P0DT1H30M0S" for 90 minutes. All four components are always present so
// the format round-trips unambiguously through Parse.
func Format(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute

	ms := d.Milliseconds()
	whole, frac := ms/1000, ms%1000
	seconds := strconv.FormatInt(whole, 10)
	if frac != 0 {
		seconds = fmt.Sprintf("%d.%03d", whole, frac)
	}

	return fmt.Sprintf("%sP%dDT%dH%dM%sS", sign, days, hours, minutes, seconds)
}

// Parse reverses Format. Any of the H/M/S components may be absent (e.g.
// "P1DT0S" or "P0DT"), but the leading "P" and, if a time part is present,
// the "T" separator are required.
func Parse(s string) (time.Duration, error) {
	orig := s
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("isoduration: %q: missing leading P", orig)
	}
	s = s[1:]

	datePart, timePart, hasTime := s, "", false
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart, hasTime = s[:i], s[i+1:], true
	}

	var total time.Duration
	if datePart != "" {
		days, rest, err := takeNumber(datePart, 'D')
		if err != nil || rest != "" {
			return 0, fmt.Errorf("isoduration: %q: bad day component", orig)
		}
		total += time.Duration(days * float64(24*time.Hour))
	}
	if hasTime {
		rest := timePart
		for _, unit := range []struct {
			suffix byte
			scale  time.Duration
		}{
			{'H', time.Hour},
			{'M', time.Minute},
			{'S', time.Second},
		} {
			if !strings.ContainsRune(rest, rune(unit.suffix)) {
				continue
			}
			v, r, err := takeNumber(rest, unit.suffix)
			if err != nil {
				return 0, fmt.Errorf("isoduration: %q: bad %c component: %w", orig, unit.suffix, err)
			}
			total += time.Duration(v * float64(unit.scale))
			rest = r
		}
		if rest != "" {
			return 0, fmt.Errorf("isoduration: %q: unexpected trailing %q", orig, rest)
		}
	}
	return sign * total, nil
}

// takeNumber splits s at the first occurrence of suffix, parsing the
// leading numeric component and returning the remainder of s after it.
func takeNumber(s string, suffix byte) (float64, string, error) {
	idx := strings.IndexByte(s, suffix)
	if idx < 0 {
		return 0, s, fmt.Errorf("missing %q component", string(suffix))
	}
	v, err := strconv.ParseFloat(s[:idx], 64)
	if err != nil {
		return 0, s, err
	}
	return v, s[idx+1:], nil
}
