package sleep

import (
	"fmt"
	"math"
	"sort"
)

// DateLayout is the calendar date form used throughout the system.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// ParseClock parses an HH:MM time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("sleep: invalid time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("sleep: time of day out of range %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as HH:MM, wrapping across
// midnight in either direction.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SnapClock rounds minutes after midnight to the nearest interval boundary.
func SnapClock(minutes, interval int) int {
	if interval <= 0 {
		return minutes
	}
	snapped := ((minutes + interval/2) / interval) * interval
	return ((snapped % minutesPerDay) + minutesPerDay) % minutesPerDay
}

// ClockConcentration measures how tightly a set of times of day cluster,
// on a circular scale where 1.0 means identical times and 0.0 means spread
// evenly around the clock. Fewer than two samples return the neutral 0.5:
// consistency cannot be established from a single observation.
func ClockConcentration(minutes []int) float64 {
	if len(minutes) < 2 {
		return 0.5
	}
	var sx, sy float64
	for _, m := range minutes {
		a := 2 * math.Pi * float64(m) / minutesPerDay
		sx += math.Cos(a)
		sy += math.Sin(a)
	}
	r := math.Hypot(sx, sy) / float64(len(minutes))
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// MedianClock returns the median of a set of times of day in minutes.
// Times before noon are treated as belonging to the previous evening so a
// bedtime cluster straddling midnight (23:30, 00:15, ...) stays contiguous.
func MedianClock(minutes []int) (int, bool) {
	if len(minutes) == 0 {
		return 0, false
	}
	shifted := make([]int, len(minutes))
	for i, m := range minutes {
		if m < minutesPerDay/2 {
			m += minutesPerDay
		}
		shifted[i] = m
	}
	sort.Ints(shifted)
	mid := shifted[len(shifted)/2]
	if len(shifted)%2 == 0 {
		mid = (shifted[len(shifted)/2-1] + shifted[len(shifted)/2]) / 2
	}
	return mid % minutesPerDay, true
}
