// Package signal implements the threshold/cooldown arbitrage signal
// detector (spec §4.5). The per-pair state machine shape is grounded on the
// teacher's risk.CircuitBreakerManager: one manager holding a map of keyed
// state, mutex-guarded, with Entry/Exit transitions instead of
// Normal/Tripped.
package signal

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/metrics"
	"github.com/quantedge/spreadarb/model"
	"github.com/shopspring/decimal"
)

// Executor receives every signal the detector emits. Implementations must
// be fast and non-blocking, matching the window engine's Handler contract —
// the reference wiring in cmd/aggregator publishes each signal to the
// /ws/signals hub inline.
type Executor func(model.Signal)

type pairState struct {
	active         bool
	lastSignalTime time.Time
}

// Detector holds one pairState per (exchange1, exchange2, symbol) key and
// applies the entry/exit thresholds from cfg to each incoming spread point.
type Detector struct {
	cfg config.SignalsConfig

	mu     sync.Mutex
	states map[model.WindowKey]*pairState

	executor Executor
}

// New constructs a Detector. executor is called synchronously from OnSpreadPoint
// for every emitted signal; pass a queue-dispatching executor to keep the
// window engine's dispatch path non-blocking.
func New(cfg config.SignalsConfig, executor Executor) *Detector {
	return &Detector{
		cfg:      cfg,
		states:   make(map[model.WindowKey]*pairState),
		executor: executor,
	}
}

// OnSpreadPoint evaluates one spread point against the entry/exit
// thresholds and the cooldown, emitting a signal on a state transition.
// Matches window.Handler's signature so it can subscribe directly to a
// window, or be driven by the engine-wide spread point stream.
func (d *Detector) OnSpreadPoint(key model.WindowKey, points []model.SpreadPoint) {
	if len(points) == 0 {
		return
	}
	p := points[len(points)-1]
	d.evaluate(key, p)
}

func (d *Detector) evaluate(key model.WindowKey, p model.SpreadPoint) {
	deviation := p.SpreadPercent
	if deviation.IsNegative() {
		deviation = deviation.Neg()
	}

	d.mu.Lock()
	st, ok := d.states[key]
	if !ok {
		st = &pairState{}
		d.states[key] = st
	}

	var emit *model.Signal
	switch {
	case !st.active && deviation.GreaterThanOrEqual(d.cfg.EntryThresholdPct):
		if !st.lastSignalTime.IsZero() && p.Timestamp.Sub(st.lastSignalTime) < d.cfg.Cooldown {
			break
		}
		st.active = true
		st.lastSignalTime = p.Timestamp
		sig := buildSignal(key, p, deviation, model.KindEntry)
		emit = &sig
	case st.active && deviation.LessThanOrEqual(d.cfg.ExitThresholdPct):
		st.active = false
		st.lastSignalTime = p.Timestamp
		sig := buildSignal(key, p, deviation, model.KindExit)
		emit = &sig
	}
	d.mu.Unlock()

	if emit != nil {
		metrics.SignalsEmitted.WithLabelValues(emit.Symbol, string(emit.Kind)).Inc()
		if d.executor != nil {
			d.executor(*emit)
		}
	}
}

// buildSignal derives direction and the cheap/expensive exchange labels from
// the sign of the canonical spread (bid1/bid2 - 1) * 100: a non-negative
// spread (bid1 >= bid2) gives direction UP with Exchange1 labeled cheap; a
// negative spread (bid1 < bid2) gives direction DOWN with Exchange2 labeled
// cheap.
func buildSignal(key model.WindowKey, p model.SpreadPoint, deviation decimal.Decimal, kind model.Kind) model.Signal {
	direction := model.DirectionUp
	cheap, expensive := key.Exchange1, key.Exchange2
	if p.SpreadPercent.IsNegative() {
		direction = model.DirectionDown
		cheap, expensive = key.Exchange2, key.Exchange1
	}

	return model.Signal{
		ID:                uuid.NewString(),
		Symbol:            key.Symbol,
		Exchange1:         key.Exchange1,
		Exchange2:         key.Exchange2,
		Deviation:         deviation,
		Direction:         direction,
		CheapExchange:     cheap,
		ExpensiveExchange: expensive,
		Kind:              kind,
		Timestamp:         p.Timestamp,
	}
}

// Active reports whether key currently has an open (Entry, no Exit yet)
// signal, for tests and health reporting.
func (d *Detector) Active(key model.WindowKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[key]
	return ok && st.active
}
