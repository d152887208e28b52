package window

import (
	"testing"
	"time"

	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/model"
	"github.com/shopspring/decimal"
)

func testConfig() config.WindowConfig {
	return config.WindowConfig{
		Size:           5 * time.Minute,
		HardCapPoints:  5000,
		MaxWindows:     10_000,
		MaxLatestTicks: 50_000,
	}
}

func tick(exchange, symbol string, bid, ask float64, at time.Time) model.Tick {
	return model.Tick{
		Exchange:       exchange,
		Symbol:         symbol,
		BestBid:        decimal.NewFromFloat(bid),
		BestAsk:        decimal.NewFromFloat(ask),
		LocalTimestamp: at,
	}
}

// S1: two ticks from different exchanges for the same symbol produce exactly
// one spread point in the canonically keyed window.
func TestOnTick_MatchesAcrossExchanges(t *testing.T) {
	e := New(testConfig(), nil)
	now := time.Now()

	e.OnTick(tick("binance", "BTCUSDT", 50000, 50001, now))
	e.OnTick(tick("coinbase", "BTCUSDT", 50100, 50102, now.Add(10*time.Millisecond)))

	w, ok := e.Window("coinbase", "binance", "BTCUSDT")
	if !ok {
		t.Fatalf("expected a window to exist")
	}
	if len(w.Points) != 1 {
		t.Fatalf("expected 1 spread point, got %d", len(w.Points))
	}
	p := w.Points[0]
	if p.Exchange1 != "binance" || p.Exchange2 != "coinbase" {
		t.Fatalf("expected canonical order binance,coinbase, got %s,%s", p.Exchange1, p.Exchange2)
	}
}

// Property 2: a tick never matches against itself — repeated ticks for a
// symbol on a lone exchange produce no spread point.
func TestOnTick_NoSelfMatch(t *testing.T) {
	e := New(testConfig(), nil)
	now := time.Now()

	e.OnTick(tick("binance", "ETHUSDT", 3000, 3001, now))
	e.OnTick(tick("binance", "ETHUSDT", 3005, 3006, now.Add(time.Second)))

	if e.WindowCount() != 0 {
		t.Fatalf("expected no windows from same-exchange ticks, got %d", e.WindowCount())
	}
}

// Property 3: a three-way exchange set produces one spread point per other
// exchange already known for the symbol.
func TestOnTick_ThreeWayFanOut(t *testing.T) {
	e := New(testConfig(), nil)
	now := time.Now()

	e.OnTick(tick("binance", "SOLUSDT", 150, 150.1, now))
	e.OnTick(tick("coinbase", "SOLUSDT", 150.2, 150.3, now))
	e.OnTick(tick("kraken", "SOLUSDT", 150.4, 150.5, now))

	if e.WindowCount() != 3 {
		t.Fatalf("expected 3 pairwise windows, got %d", e.WindowCount())
	}
}

// S5 / hard cap: appending beyond HardCapPoints trims the oldest points.
func TestAppend_HardCapTrims(t *testing.T) {
	cfg := testConfig()
	cfg.HardCapPoints = 3
	cfg.Size = time.Hour
	e := New(cfg, nil)
	now := time.Now()

	e.OnTick(tick("binance", "BTCUSDT", 100, 101, now))
	for i := 0; i < 5; i++ {
		e.OnTick(tick("coinbase", "BTCUSDT", 100.5, 100.6, now.Add(time.Duration(i+1)*time.Second)))
		e.OnTick(tick("binance", "BTCUSDT", 100, 101, now.Add(time.Duration(i+1)*time.Second+time.Millisecond)))
	}

	w, ok := e.Window("binance", "coinbase", "BTCUSDT")
	if !ok {
		t.Fatalf("expected window")
	}
	if len(w.Points) > cfg.HardCapPoints {
		t.Fatalf("expected at most %d points, got %d", cfg.HardCapPoints, len(w.Points))
	}
}

// Sliding: points older than window.size fall out of the window on the next
// append even when the hard cap is never hit.
func TestAppend_SlidesOutStalePoints(t *testing.T) {
	cfg := testConfig()
	cfg.Size = time.Minute
	e := New(cfg, nil)
	base := time.Now()

	e.OnTick(tick("binance", "BTCUSDT", 100, 101, base))
	e.OnTick(tick("coinbase", "BTCUSDT", 100.2, 100.3, base.Add(time.Second)))
	e.OnTick(tick("binance", "BTCUSDT", 100, 101, base.Add(5*time.Minute)))
	e.OnTick(tick("coinbase", "BTCUSDT", 100.2, 100.3, base.Add(5*time.Minute+time.Second)))

	// Three points are produced (at +1s, +5m, +5m1s); only the +1s one is
	// older than one minute before the latest append.
	w, _ := e.Window("binance", "coinbase", "BTCUSDT")
	if len(w.Points) != 2 {
		t.Fatalf("expected the stale first point to have slid out leaving 2, got %d points", len(w.Points))
	}
}

// S6 / §4.3.4: a subscriber registered for a window receives exactly the
// triggering append's snapshot, and stops receiving after Unsubscribe.
func TestSubscribe_ReceivesTargetedEvents(t *testing.T) {
	e := New(testConfig(), nil)
	now := time.Now()

	var received []model.SpreadPoint
	token := e.Subscribe("binance", "coinbase", "BTCUSDT", func(_ model.WindowKey, points []model.SpreadPoint) {
		received = append(received, points...)
	})

	e.OnTick(tick("binance", "BTCUSDT", 100, 101, now))
	e.OnTick(tick("coinbase", "BTCUSDT", 100.2, 100.3, now.Add(time.Millisecond)))
	if len(received) != 1 {
		t.Fatalf("expected 1 delivered point, got %d", len(received))
	}

	e.Unsubscribe(token)
	e.OnTick(tick("binance", "BTCUSDT", 100, 101, now.Add(2*time.Millisecond)))
	if len(received) != 1 {
		t.Fatalf("expected no further delivery after unsubscribe, got %d", len(received))
	}
}

// A panicking subscriber must not prevent other subscribers of the same
// window from receiving the event, nor crash the engine.
func TestSubscribe_PanicIsolated(t *testing.T) {
	e := New(testConfig(), nil)
	now := time.Now()

	delivered := false
	e.Subscribe("binance", "coinbase", "BTCUSDT", func(model.WindowKey, []model.SpreadPoint) {
		panic("boom")
	})
	e.Subscribe("binance", "coinbase", "BTCUSDT", func(model.WindowKey, []model.SpreadPoint) {
		delivered = true
	})

	e.OnTick(tick("binance", "BTCUSDT", 100, 101, now))
	e.OnTick(tick("coinbase", "BTCUSDT", 100.2, 100.3, now.Add(time.Millisecond)))

	if !delivered {
		t.Fatalf("expected the non-panicking subscriber to still receive the event")
	}
}

// Eviction from the windows LRU must tear down its subscriber index so a
// later Subscribe call on a recycled key starts clean.
func TestWindowEviction_DropsSubscribers(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWindows = 1
	e := New(cfg, nil)
	now := time.Now()

	e.Subscribe("binance", "coinbase", "BTCUSDT", func(model.WindowKey, []model.SpreadPoint) {})
	e.OnTick(tick("binance", "BTCUSDT", 100, 101, now))
	e.OnTick(tick("coinbase", "BTCUSDT", 100.2, 100.3, now))

	// A second, distinct pair forces eviction of the first window under
	// capacity 1.
	e.OnTick(tick("binance", "ETHUSDT", 3000, 3001, now))
	e.OnTick(tick("kraken", "ETHUSDT", 3002, 3003, now))

	if e.WindowCount() != 1 {
		t.Fatalf("expected eviction to keep cardinality at capacity, got %d", e.WindowCount())
	}
	if len(e.windowSubscribers) != 0 {
		t.Fatalf("expected evicted window's subscribers to be torn down, got %d entries", len(e.windowSubscribers))
	}
}

func TestChartFrame_QuantileBands(t *testing.T) {
	cfg := testConfig()
	e := New(cfg, nil)
	chartCfg := config.ChartConfig{
		RecentWindow:   time.Hour,
		QuantileWindow: 10,
		UpperQuantile:  0.97,
		LowerQuantile:  0.03,
	}
	now := time.Now()

	for i := 0; i < 10; i++ {
		bid := 100.0 + float64(i)*0.1
		e.OnTick(tick("binance", "BTCUSDT", 100, 101, now.Add(time.Duration(i)*time.Second)))
		e.OnTick(tick("coinbase", "BTCUSDT", bid, bid+0.1, now.Add(time.Duration(i)*time.Second+time.Millisecond)))
	}

	frame, ok := e.ChartFrame("binance", "coinbase", "BTCUSDT", chartCfg)
	if !ok {
		t.Fatalf("expected a chart frame")
	}
	// 20 ticks: every tick after the very first matches the other exchange.
	if len(frame.Timestamps) != 19 {
		t.Fatalf("expected all 19 points within the recent window, got %d", len(frame.Timestamps))
	}
	if len(frame.Spreads) != len(frame.Timestamps) || len(frame.UpperBand) != len(frame.Timestamps) || len(frame.LowerBand) != len(frame.Timestamps) {
		t.Fatalf("expected parallel arrays of equal length")
	}
	for i := range frame.UpperBand {
		if frame.UpperBand[i] < frame.LowerBand[i] {
			t.Fatalf("expected upper band >= lower band at index %d", i)
		}
	}
}

func TestChartFrame_FallsBackToLastTenPointsWhenRecentWindowEmpty(t *testing.T) {
	cfg := testConfig()
	e := New(cfg, nil)
	chartCfg := config.ChartConfig{
		RecentWindow:   time.Millisecond,
		QuantileWindow: 10,
		UpperQuantile:  0.97,
		LowerQuantile:  0.03,
	}
	stale := time.Now().Add(-time.Hour)

	for i := 0; i < 15; i++ {
		bid := 100.0 + float64(i)*0.1
		e.OnTick(tick("binance", "BTCUSDT", 100, 101, stale.Add(time.Duration(i)*time.Second)))
		e.OnTick(tick("coinbase", "BTCUSDT", bid, bid+0.1, stale.Add(time.Duration(i)*time.Second+time.Millisecond)))
	}

	frame, ok := e.ChartFrame("binance", "coinbase", "BTCUSDT", chartCfg)
	if !ok {
		t.Fatalf("expected a chart frame")
	}
	if len(frame.Timestamps) != 10 {
		t.Fatalf("expected fallback to the last 10 points, got %d", len(frame.Timestamps))
	}
}

func TestChartFrame_NoWindowYet(t *testing.T) {
	e := New(testConfig(), nil)
	_, ok := e.ChartFrame("binance", "coinbase", "BTCUSDT", config.ChartConfig{QuantileWindow: 10, UpperQuantile: 0.9, LowerQuantile: 0.1})
	if ok {
		t.Fatalf("expected no chart frame before any ticks arrive")
	}
}
