package http

import (
	"time"

	xutil "TrendLab/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }

// ResolveRange parses optional start/end query values into a UTC range.
func ResolveRange(start, end string, now time.Time, lookback time.Duration) (time.Time, time.Time) {
	return xutil.ResolveRange(start, end, now, lookback)
}
