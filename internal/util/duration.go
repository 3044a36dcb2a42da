package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TicksPerSecond is the game's fixed simulation rate
const TicksPerSecond = 20

var tickUnits = map[string]int64{
	"t": 1, "tick": 1, "ticks": 1,
	"s": TicksPerSecond, "sec": TicksPerSecond, "secs": TicksPerSecond, "second": TicksPerSecond, "seconds": TicksPerSecond,
	"m": 60 * TicksPerSecond, "min": 60 * TicksPerSecond, "mins": 60 * TicksPerSecond, "minute": 60 * TicksPerSecond, "minutes": 60 * TicksPerSecond,
	"h": 3600 * TicksPerSecond, "hour": 3600 * TicksPerSecond, "hours": 3600 * TicksPerSecond,
	"d": 86400 * TicksPerSecond, "day": 86400 * TicksPerSecond, "days": 86400 * TicksPerSecond,
	"w": 7 * 86400 * TicksPerSecond, "week": 7 * 86400 * TicksPerSecond, "weeks": 7 * 86400 * TicksPerSecond,
	"mo": 30 * 86400 * TicksPerSecond, "month": 30 * 86400 * TicksPerSecond, "months": 30 * 86400 * TicksPerSecond,
	"y": 365 * 86400 * TicksPerSecond, "year": 365 * 86400 * TicksPerSecond, "years": 365 * 86400 * TicksPerSecond,
}

var durationTerm = regexp.MustCompile(`^(\d+)\s*([a-z]+)`)

// ParseTicks converts a duration expression like "1d 2h 30m", "90s" or
// "2 years 3 days" into game ticks
func ParseTicks(text string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total int64
	for s != "" {
		m := durationTerm.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		unit, ok := tickUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown duration unit %q", m[2])
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > (math.MaxInt64-total)/unit {
			return 0, fmt.Errorf("duration %q out of range", text)
		}
		total += n * unit
		s = strings.TrimLeft(s[len(m[0]):], " \t,")
	}
	return total, nil
}

// FormatTicks renders ticks with the largest whole units, e.g. "1d 2h 30m"
func FormatTicks(ticks int64) string {
	if ticks == 0 {
		return "0s"
	}
	sign := ""
	if ticks < 0 {
		sign = "-"
		ticks = -ticks
	}

	var parts []string
	for _, u := range []struct {
		name  string
		ticks int64
	}{
		{"y", tickUnits["y"]},
		{"d", tickUnits["d"]},
		{"h", tickUnits["h"]},
		{"m", tickUnits["m"]},
		{"s", tickUnits["s"]},
		{"t", 1},
	} {
		if ticks >= u.ticks {
			parts = append(parts, strconv.FormatInt(ticks/u.ticks, 10)+u.name)
			ticks %= u.ticks
		}
	}
	return sign + strings.Join(parts, " ")
}
