package enrich

import (
	"math"
	"strconv"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
)

const (
	// epochMillisCutoff separates epoch seconds from epoch milliseconds.
	epochMillisCutoff = 1e12
	// maxEpochMillis is the largest representable instant, ±100,000,000 days.
	maxEpochMillis = 8.64e15
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp normalizes a raw bar time to a UTC instant truncated to whole seconds.
// Numbers below 1e12 are epoch seconds, larger numbers epoch milliseconds.
// Milliseconds beyond ±8.64e15 are rejected.
func ParseTimestamp(raw models.RawTime) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return time.Time{}, &models.TimestampError{Value: string(raw), Row: -1}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > maxEpochMillis {
			return time.Time{}, &models.TimestampError{Value: s, Row: -1}
		}
		if math.Abs(n) < epochMillisCutoff {
			return time.Unix(int64(n), 0).UTC(), nil
		}
		return time.UnixMilli(int64(n)).UTC().Truncate(time.Second), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, &models.TimestampError{Value: s, Row: -1}
}
