package signal

import (
	"testing"
	"time"

	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/model"
	"github.com/shopspring/decimal"
)

func cfg() config.SignalsConfig {
	return config.SignalsConfig{
		EntryThresholdPct: decimal.NewFromFloat(0.35),
		ExitThresholdPct:  decimal.NewFromFloat(0.05),
		Cooldown:          10 * time.Second,
	}
}

func point(key model.WindowKey, spreadPct float64, at time.Time) model.SpreadPoint {
	return model.SpreadPoint{
		Timestamp:     at,
		Symbol:        key.Symbol,
		Exchange1:     key.Exchange1,
		Exchange2:     key.Exchange2,
		Bid1:          decimal.NewFromInt(100),
		Bid2:          decimal.NewFromInt(100),
		SpreadPercent: decimal.NewFromFloat(spreadPct),
	}
}

// S2: a deviation crossing the entry threshold emits exactly one Entry
// signal, not one per point above threshold.
func TestDetector_EntryOnThresholdCross(t *testing.T) {
	var emitted []model.Signal
	d := New(cfg(), func(s model.Signal) { emitted = append(emitted, s) })
	key := model.NewWindowKey("binance", "coinbase", "BTCUSDT")
	now := time.Now()

	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.10, now)})
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now.Add(time.Second))})
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.45, now.Add(2 * time.Second))})

	if len(emitted) != 1 {
		t.Fatalf("expected exactly 1 entry signal, got %d", len(emitted))
	}
	if emitted[0].Kind != model.KindEntry {
		t.Fatalf("expected Entry kind, got %s", emitted[0].Kind)
	}
	if !d.Active(key) {
		t.Fatalf("expected detector to report the pair active after entry")
	}
}

// S3: once active, the deviation falling back to/below the exit threshold
// emits exactly one Exit signal.
func TestDetector_ExitOnThresholdCross(t *testing.T) {
	var emitted []model.Signal
	d := New(cfg(), func(s model.Signal) { emitted = append(emitted, s) })
	key := model.NewWindowKey("binance", "coinbase", "ETHUSDT")
	now := time.Now()

	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now)})
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.20, now.Add(time.Second))})
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.02, now.Add(2 * time.Second))})

	if len(emitted) != 2 {
		t.Fatalf("expected Entry then Exit, got %d signals", len(emitted))
	}
	if emitted[1].Kind != model.KindExit {
		t.Fatalf("expected second signal to be Exit, got %s", emitted[1].Kind)
	}
	if d.Active(key) {
		t.Fatalf("expected detector to report the pair inactive after exit")
	}
}

// The cooldown suppresses a second Entry for the same pair even if the
// deviation dips below entry and crosses back above it within the window.
func TestDetector_CooldownSuppressesReentry(t *testing.T) {
	var emitted []model.Signal
	d := New(cfg(), func(s model.Signal) { emitted = append(emitted, s) })
	key := model.NewWindowKey("binance", "coinbase", "SOLUSDT")
	now := time.Now()

	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now)})
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.02, now.Add(time.Second))}) // Exit
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now.Add(2 * time.Second))}) // too soon to re-enter

	if len(emitted) != 2 {
		t.Fatalf("expected cooldown to suppress the third crossing, got %d signals", len(emitted))
	}
}

// Deviation direction determines which exchange is labeled cheap vs.
// expensive, independent of the canonical window-key ordering.
func TestDetector_DirectionDeterminesCheapExchange(t *testing.T) {
	var emitted []model.Signal
	d := New(cfg(), func(s model.Signal) { emitted = append(emitted, s) })
	key := model.NewWindowKey("binance", "coinbase", "BTCUSDT")
	now := time.Now()

	negPoint := point(key, -0.40, now)
	d.OnSpreadPoint(key, []model.SpreadPoint{negPoint})

	if len(emitted) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(emitted))
	}
	if emitted[0].CheapExchange != key.Exchange2 || emitted[0].ExpensiveExchange != key.Exchange1 {
		t.Fatalf("expected inverted spread to flip cheap/expensive labels")
	}
}

// Once the cooldown has genuinely elapsed (measured against event
// timestamps, not wall-clock time at evaluation), a new Entry is allowed.
func TestDetector_EntryAllowedAfterCooldownElapses(t *testing.T) {
	var emitted []model.Signal
	d := New(cfg(), func(s model.Signal) { emitted = append(emitted, s) })
	key := model.NewWindowKey("binance", "coinbase", "SOLUSDT")
	now := time.Now()

	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now)})                     // Entry @ t=0
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.02, now.Add(time.Second))})    // Exit @ t=1s
	d.OnSpreadPoint(key, []model.SpreadPoint{point(key, 0.40, now.Add(11 * time.Second))}) // Entry @ t=11s, cooldown passed

	if len(emitted) != 3 {
		t.Fatalf("expected Entry, Exit, Entry once the cooldown elapses, got %d signals", len(emitted))
	}
	if emitted[2].Kind != model.KindEntry {
		t.Fatalf("expected the third signal to be a new Entry, got %s", emitted[2].Kind)
	}
}

func TestDetector_NoSignalForEmptyPoints(t *testing.T) {
	called := false
	d := New(cfg(), func(model.Signal) { called = true })
	d.OnSpreadPoint(model.NewWindowKey("a", "b", "X"), nil)
	if called {
		t.Fatalf("expected no signal for an empty points slice")
	}
}
