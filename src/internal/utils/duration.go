package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var durationUnits = map[byte]time.Duration{
	'w': 7 * 24 * time.Hour,
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseRouterOSDuration parses durations in the forms RouterOS prints and
// accepts: "1d 01:00:00", "1d01:00:00", "01:00:00", "1w2d", "1h30m" or a bare
// number of seconds.
func ParseRouterOSDuration(raw string) (time.Duration, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}

		if i == len(s) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			if total, err = addUnits(total, n, time.Second); err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			break
		}

		if s[i] == ':' {
			d, err := parseClock(s)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			if total, err = addUnits(total, 1, d); err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			break
		}

		unit, ok := durationUnits[s[i]]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", raw, s[i])
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		if total, err = addUnits(total, n, unit); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		s = s[i+1:]
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return total, nil
}

// parseClock parses "HH:MM:SS" or "HH:MM".
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("clock must be HH:MM or HH:MM:SS")
	}

	var values [3]int
	for i, p := range parts {
		if p == "" {
			return 0, fmt.Errorf("empty clock component")
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad clock component %q", p)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("clock component %q out of range", p)
		}
		values[i] = n
	}

	var total time.Duration
	var err error
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		if total, err = addUnits(total, values[i], unit); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// addUnits returns total + n*unit, failing instead of wrapping around.
func addUnits(total time.Duration, n int, unit time.Duration) (time.Duration, error) {
	if n == 0 || unit == 0 {
		return total, nil
	}
	if n < 0 || int64(n) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("duration out of range")
	}
	add := time.Duration(n) * unit
	if total > math.MaxInt64-add {
		return 0, fmt.Errorf("duration out of range")
	}
	return total + add, nil
}

// FormatRouterOSDuration renders d in the compact RouterOS form, e.g. 1d1h or
// 45s. Sub-second precision is dropped.
func FormatRouterOSDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "0s"
	}

	var sb strings.Builder
	for _, u := range []struct {
		suffix string
		size   time.Duration
	}{
		{"w", 7 * 24 * time.Hour},
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	} {
		if d >= u.size {
			n := d / u.size
			d -= n * u.size
			sb.WriteString(strconv.FormatInt(int64(n), 10))
			sb.WriteString(u.suffix)
		}
	}
	return sb.String()
}
