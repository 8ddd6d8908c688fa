// Package episodes segments enriched bars into trend episodes between
// consecutive swing points and computes their aggregate features.
package episodes

import "TrendLab/internal/domain/models"

type trend int

const (
	trendNone trend = iota
	trendUp
	trendDown
)

// relChange is price/anchor-1, or 0 when the anchor price is 0.
func relChange(anchor, price float64) float64 {
	if anchor == 0 {
		return 0
	}
	return price/anchor - 1
}

// DetectSwings scans bars once and returns the confirmed swing points.
// Index 0 is always the first swing. A reversal is confirmed when price moves
// at least threshold against the running extreme, and the last extreme is
// emitted as the final swing. A final leg that moves past the threshold from
// the last confirmed swing ends in its own swing, so it yields its own episode.
func DetectSwings(bars []models.EnrichedBar, threshold float64) []models.SwingPoint {
	n := len(bars)
	if n == 0 {
		return []models.SwingPoint{}
	}

	var (
		dir     = trendNone
		anchor  = 0
		pending []models.SwingPoint
	)
	for i := 1; i < n; i++ {
		price := bars[i].Close
		ref := bars[anchor].Close
		change := relChange(ref, price)

		switch dir {
		case trendNone:
			if change >= threshold {
				dir, anchor = trendUp, i
			} else if change <= -threshold {
				dir, anchor = trendDown, i
			}
		case trendUp:
			if price > ref {
				anchor = i
			} else if change <= -threshold {
				pending = append(pending, models.SwingPoint{Index: anchor, Price: ref, Type: models.SwingPeak})
				dir, anchor = trendDown, i
			}
		case trendDown:
			if price < ref {
				anchor = i
			} else if change >= threshold {
				pending = append(pending, models.SwingPoint{Index: anchor, Price: ref, Type: models.SwingTrough})
				dir, anchor = trendUp, i
			}
		}
	}

	origin := models.SwingPoint{Index: 0, Price: bars[0].Close, Type: models.SwingTrough}
	if first := firstDirection(pending, dir); first == trendDown {
		origin.Type = models.SwingPeak
	}

	swings := make([]models.SwingPoint, 0, len(pending)+2)
	swings = append(swings, origin)
	swings = append(swings, pending...)

	var final models.SwingPoint
	switch dir {
	case trendNone:
		if n < 2 {
			return swings
		}
		final = models.SwingPoint{Index: n - 1, Price: bars[n-1].Close, Type: models.SwingTrough}
	case trendUp:
		final = models.SwingPoint{Index: anchor, Price: bars[anchor].Close, Type: models.SwingPeak}
	case trendDown:
		final = models.SwingPoint{Index: anchor, Price: bars[anchor].Close, Type: models.SwingTrough}
	}
	if final.Index != swings[len(swings)-1].Index {
		swings = append(swings, final)
	}
	return swings
}

// firstDirection recovers the first established trend. The first confirmed
// swing is the extreme of that trend, so a peak means the market started up.
func firstDirection(confirmed []models.SwingPoint, last trend) trend {
	if len(confirmed) == 0 {
		return last
	}
	if confirmed[0].Type == models.SwingPeak {
		return trendUp
	}
	return trendDown
}
