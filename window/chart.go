package window

import (
	"sort"
	"time"

	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/model"
	"github.com/shopspring/decimal"
)

// ChartFrame is the pull-path response for a chart query (spec §4.3.5):
// parallel arrays of timestamp/spread/band, one entry per included point.
// Band i is the rolling quantile of the last min(i+1, Q) spread values up
// to and including point i of the *full* series, computed before the
// chart-window filter is applied — so a band never looks ahead of the
// point it describes, regardless of which points end up in the response.
type ChartFrame struct {
	Key        model.WindowKey `json:"-"`
	Timestamps []float64       `json:"timestamps"`
	Spreads    []float64       `json:"spreads"`
	UpperBand  []float64       `json:"upperBand"`
	LowerBand  []float64       `json:"lowerBand"`
}

// ChartFrame builds a ChartFrame for (ex1, ex2, sym) using cfg's recent
// window and quantile parameters. Returns ok=false if no window exists yet.
func (e *Engine) ChartFrame(ex1, ex2, sym string, cfg config.ChartConfig) (ChartFrame, bool) {
	w, ok := e.Window(ex1, ex2, sym)
	if !ok {
		var zero ChartFrame
		return zero, false
	}

	frame := ChartFrame{Key: w.Key}
	n := len(w.Points)
	if n == 0 {
		return frame, true
	}

	upper, lower := rollingQuantileBands(w.Points, cfg.QuantileWindow, cfg.UpperQuantile, cfg.LowerQuantile)

	indices := chartWindowIndices(w.Points, cfg.RecentWindow)
	for _, i := range indices {
		p := w.Points[i]
		frame.Timestamps = append(frame.Timestamps, epochSeconds(p.Timestamp))
		frame.Spreads = append(frame.Spreads, toFloat(p.SpreadPercent))
		frame.UpperBand = append(frame.UpperBand, upper[i])
		frame.LowerBand = append(frame.LowerBand, lower[i])
	}
	return frame, true
}

// rollingQuantileBands computes, for every index i of points, the upper and
// lower quantile of the last min(i+1, q) spread-percent values inclusive of
// i (spec §4.3.5 step 4).
func rollingQuantileBands(points []model.SpreadPoint, q int, upperQ, lowerQ float64) (upper, lower []float64) {
	n := len(points)
	upper = make([]float64, n)
	lower = make([]float64, n)

	values := make([]float64, 0, q)
	for i := 0; i < n; i++ {
		lo := i - q + 1
		if lo < 0 {
			lo = 0
		}
		values = values[:0]
		for j := lo; j <= i; j++ {
			values = append(values, toFloat(points[j].SpreadPercent))
		}
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		upper[i] = quantileOf(sorted, upperQ)
		lower[i] = quantileOf(sorted, lowerQ)
	}
	return upper, lower
}

// chartWindowIndices applies the chart-window filter (spec §4.3.5 step 5):
// keep indices whose point is within recent of now; if that set is empty,
// fall back to the last 10 indices of the full series.
func chartWindowIndices(points []model.SpreadPoint, recent time.Duration) []int {
	cutoff := time.Now().Add(-recent)
	var kept []int
	for i, p := range points {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, i)
		}
	}
	if len(kept) > 0 {
		return kept
	}

	n := len(points)
	start := n - 10
	if start < 0 {
		start = 0
	}
	kept = make([]int, 0, n-start)
	for i := start; i < n; i++ {
		kept = append(kept, i)
	}
	return kept
}

// quantileOf picks the q-th quantile of an already-ascending-sorted slice
// using the ceil(count*q)-1 index rule, clamped to the slice bounds.
func quantileOf(sorted []float64, q float64) float64 {
	n := len(sorted)
	idx := int(ceil(float64(n)*q)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// epochSeconds renders t as epoch seconds with millisecond precision, the
// wire format spec §6.3 requires for chart-frame timestamps.
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func ceil(f float64) float64 {
	i := int64(f)
	if f == float64(i) || f < 0 {
		return float64(i)
	}
	return float64(i + 1)
}

// staleWindows reports the set of window keys whose last point is older
// than d, without evicting them. Nothing in this repository calls it.
func (e *Engine) staleWindows(d time.Duration) []model.WindowKey {
	now := time.Now()
	var stale []model.WindowKey
	for _, k := range e.windows.Keys() {
		entry, ok := e.windows.Peek(k)
		if !ok {
			continue
		}
		entry.mu.RLock()
		isStale := entry.window.WindowEnd.Before(now.Add(-d))
		entry.mu.RUnlock()
		if isStale {
			stale = append(stale, k)
		}
	}
	return stale
}
