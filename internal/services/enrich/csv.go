package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"TrendLab/internal/domain/models"
)

// TickerFromFilename returns the upper-cased file name up to its first dot.
func TickerFromFilename(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.ToUpper(strings.TrimSpace(base))
}

// ReadCSV parses raw bars from a CSV with a header row. Headers are trimmed and
// lower-cased; the time column may be named "time" or "start". A "ticker" column
// overrides the ticker argument per row. Empty or unparsable optional cells are nil.
func ReadCSV(r io.Reader, ticker string) ([]models.RawBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	timeCol, ok := cols["time"]
	if !ok {
		if timeCol, ok = cols["start"]; !ok {
			return nil, fmt.Errorf("csv header has no time or start column")
		}
	}
	closeCol, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("csv header has no close column")
	}

	cell := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var bars []models.RawBar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(rec) <= timeCol || len(rec) <= closeCol {
			continue
		}
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: close %q: %w", line, rec[closeCol], err)
		}
		b := models.RawBar{
			Ticker: ticker,
			Time:   models.RawTime(strings.TrimSpace(rec[timeCol])),
			Open:   parseOptional(cell(rec, "open")),
			High:   parseOptional(cell(rec, "high")),
			Low:    parseOptional(cell(rec, "low")),
			Close:  closeVal,
			Volume: parseOptional(cell(rec, "volume")),
		}
		if t := cell(rec, "ticker"); t != "" {
			b.Ticker = strings.ToUpper(t)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
