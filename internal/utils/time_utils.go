package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// durationUnits is ordered so that "ms" is tried before "m" and "s".
var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
}

// ParseDuration parses the short duration strings used in the configuration file,
// e.g. "250ms", "10s", "5m", "48h", "2d". Units are case-insensitive.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	for _, u := range durationUnits {
		number, found := strings.CutSuffix(value, u.suffix)
		if !found {
			continue
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("invalid duration %q: missing unit", value)
}

// ParseDurationOr returns fallback when value is empty or malformed.
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
