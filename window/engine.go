// Package window implements the rolling-window engine: the last-tick
// matching algorithm, LRU-bounded last-tick cache and window table,
// incremental sliding, periodic cleanup, and targeted event dispatch. This
// is the heart of the system — every other component reacts to what this
// one produces.
package window

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/logging"
	"github.com/quantedge/spreadarb/lrucache"
	"github.com/quantedge/spreadarb/metrics"
	"github.com/quantedge/spreadarb/model"
)

// Handler receives a targeted window-update event: the window key and a
// snapshot of its points after the triggering append. Handlers are invoked
// synchronously and must be fast and non-blocking — see Engine.dispatch.
type Handler func(key model.WindowKey, points []model.SpreadPoint)

// Engine owns the three bounded structures described in spec §4.3 and the
// targeted subscription indexes in §4.3.4.
type Engine struct {
	cfg    config.WindowConfig
	logger *logging.Logger

	latestTicks *lrucache.Cache[string, model.Tick]
	windows     *lrucache.Cache[model.WindowKey, *windowEntry]

	symbolMu        sync.Mutex
	symbolExchanges map[string]map[string]struct{}

	subMu             sync.Mutex
	windowSubscribers map[model.WindowKey]map[string]subscription
	tokenToKey        map[string]model.WindowKey

	globalMu       sync.Mutex
	globalHandlers []Handler
}

type windowEntry struct {
	mu     sync.RWMutex
	window model.Window
}

type subscription struct {
	token   string
	handler Handler
}

// New constructs an Engine bounded per cfg. The eviction callback on the
// windows cache tears down the per-window subscriber index so an evicted
// window can never leak a live handler reference.
func New(cfg config.WindowConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	e := &Engine{
		cfg:               cfg,
		logger:            logger,
		latestTicks:       lrucache.New[string, model.Tick](cfg.MaxLatestTicks),
		windows:           lrucache.New[model.WindowKey, *windowEntry](cfg.MaxWindows),
		symbolExchanges:   make(map[string]map[string]struct{}),
		windowSubscribers: make(map[model.WindowKey]map[string]subscription),
		tokenToKey:        make(map[string]model.WindowKey),
	}
	e.windows.OnEvict(func(key model.WindowKey, _ *windowEntry) {
		e.dropSubscribersFor(key)
	})
	return e
}

func latestTickKey(exchange, symbol string) string {
	return exchange + "_" + symbol
}

// OnTick runs the last-tick matching algorithm (spec §4.3.1) for one
// incoming tick from the Window channel. It is the sole write path into
// latestTicks, symbolExchanges, and windows.
func (e *Engine) OnTick(t model.Tick) {
	others := e.exchangesFor(t.Symbol, t.Exchange)

	for _, other := range others {
		cached, ok := e.latestTicks.Get(latestTickKey(other, t.Symbol))
		if !ok {
			continue
		}
		point, ok := model.NewSpreadPoint(t.Symbol, t.Exchange, t, cached, t.Exchange)
		if !ok {
			continue
		}
		e.append(point)
	}

	// Step 3: update latest_ticks AFTER matching, so T never matches itself.
	e.latestTicks.Put(latestTickKey(t.Exchange, t.Symbol), t)
	metrics.LatestTicksActive.Set(float64(e.latestTicks.Len()))
}

// exchangesFor returns every other exchange currently known to trade
// symbol, and records exchange as trading it for future lookups.
func (e *Engine) exchangesFor(symbol, exchange string) []string {
	e.symbolMu.Lock()
	defer e.symbolMu.Unlock()

	set, ok := e.symbolExchanges[symbol]
	if !ok {
		set = make(map[string]struct{})
		e.symbolExchanges[symbol] = set
	}

	others := make([]string, 0, len(set))
	for ex := range set {
		if ex != exchange {
			others = append(others, ex)
		}
	}
	set[exchange] = struct{}{}
	return others
}

// append adds a spread point to its window, applying incremental sliding
// and the hard cap, then fires the targeted dispatch (spec §4.3.2).
func (e *Engine) append(p model.SpreadPoint) {
	key := model.WindowKey{Exchange1: p.Exchange1, Exchange2: p.Exchange2, Symbol: p.Symbol}

	entry, ok := e.windows.Get(key)
	if !ok {
		entry = &windowEntry{window: model.Window{Key: key}}
		e.windows.Put(key, entry)
		metrics.WindowsActive.Set(float64(e.windows.Len()))
	}

	var snapshot []model.SpreadPoint
	entry.mu.Lock()
	w := &entry.window
	w.Points = append(w.Points, p)

	cutoff := p.Timestamp.Add(-e.cfg.Size)
	for len(w.Points) > 0 && w.Points[0].Timestamp.Before(cutoff) {
		w.Points = w.Points[1:]
	}
	for len(w.Points) > e.cfg.HardCapPoints {
		w.Points = w.Points[1:]
	}

	w.WindowEnd = p.Timestamp
	w.WindowStart = p.Timestamp.Add(-e.cfg.Size)
	snapshot = w.Snapshot()
	entry.mu.Unlock()

	metrics.SpreadPointsEmitted.WithLabelValues(p.Symbol).Inc()
	e.dispatch(key, p, snapshot)
}

// dispatch invokes every subscriber registered for key, plus every global
// handler, in that order. Callbacks must be fast and non-blocking; a
// panicking handler is caught so one broken subscriber never disrupts the
// engine or its siblings.
func (e *Engine) dispatch(key model.WindowKey, trigger model.SpreadPoint, points []model.SpreadPoint) {
	e.subMu.Lock()
	subs := e.windowSubscribers[key]
	ordered := make([]subscription, 0, len(subs))
	for _, s := range subs {
		ordered = append(ordered, s)
	}
	e.subMu.Unlock()

	for _, s := range ordered {
		e.safeInvoke(s.handler, key, points)
	}

	e.globalMu.Lock()
	globals := make([]Handler, len(e.globalHandlers))
	copy(globals, e.globalHandlers)
	e.globalMu.Unlock()
	for _, h := range globals {
		e.safeInvoke(h, key, points)
	}
	_ = trigger
}

// SubscribeAll registers handler to run on every window append regardless
// of key — used by the signal detector and the charts WebSocket hub, both
// of which need every new spread point rather than one specific pair.
func (e *Engine) SubscribeAll(handler Handler) {
	e.globalMu.Lock()
	defer e.globalMu.Unlock()
	e.globalHandlers = append(e.globalHandlers, handler)
}

func (e *Engine) safeInvoke(handler Handler, key model.WindowKey, points []model.SpreadPoint) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("window subscriber panicked", nil,
				logging.Component("window_engine"),
				logging.Symbol(key.Symbol),
				logging.Any("recovered", r))
		}
	}()
	handler(key, points)
}

// Subscribe registers handler for window updates on (ex1, ex2, sym),
// returning an opaque token usable with Unsubscribe. Multiple subscribers
// per window are supported; the order in which they are invoked is not
// defined (they are held in a map keyed by token).
func (e *Engine) Subscribe(ex1, ex2, sym string, handler Handler) string {
	key := model.NewWindowKey(ex1, ex2, sym)
	token := uuid.NewString()

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.windowSubscribers[key] == nil {
		e.windowSubscribers[key] = make(map[string]subscription)
	}
	e.windowSubscribers[key][token] = subscription{token: token, handler: handler}
	e.tokenToKey[token] = key
	return token
}

// Unsubscribe revokes a subscription token; subsequent dispatches are
// no-ops for it. Unsubscribing an unknown or already-revoked token is a
// no-op.
func (e *Engine) Unsubscribe(token string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	key, ok := e.tokenToKey[token]
	if !ok {
		return
	}
	delete(e.tokenToKey, token)
	if subs, ok := e.windowSubscribers[key]; ok {
		delete(subs, token)
		if len(subs) == 0 {
			delete(e.windowSubscribers, key)
		}
	}
}

// dropSubscribersFor removes every subscriber of an evicted window. Called
// from the windows cache's eviction callback.
func (e *Engine) dropSubscribersFor(key model.WindowKey) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for token := range e.windowSubscribers[key] {
		delete(e.tokenToKey, token)
	}
	delete(e.windowSubscribers, key)
}

// Window returns the window for (ex1, ex2, sym), if one currently exists.
func (e *Engine) Window(ex1, ex2, sym string) (model.Window, bool) {
	key := model.NewWindowKey(ex1, ex2, sym)
	entry, ok := e.windows.Get(key)
	if !ok {
		var zero model.Window
		return zero, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	snap := entry.window
	snap.Points = entry.window.Snapshot()
	return snap, true
}

// LatestTick returns the cached last tick for (exchange, symbol).
func (e *Engine) LatestTick(exchange, symbol string) (model.Tick, bool) {
	return e.latestTicks.Get(latestTickKey(exchange, symbol))
}

// WindowCount and LatestTickCount expose current cardinality for health
// reporting and tests without reaching into the LRU internals.
func (e *Engine) WindowCount() int      { return e.windows.Len() }
func (e *Engine) LatestTickCount() int  { return e.latestTicks.Len() }

// RunCleanup starts the two periodic cleanup tasks (spec §4.3.3) and
// returns once ctx is cancelled. Meant to be run in its own goroutine.
func (e *Engine) RunCleanup(ctx context.Context) {
	windowTicker := time.NewTicker(5 * time.Minute)
	tickTicker := time.NewTicker(2 * time.Minute)
	defer windowTicker.Stop()
	defer tickTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-windowTicker.C:
			e.cleanupWindows(ctx)
		case <-tickTicker.C:
			e.cleanupLatestTicks()
		}
	}
}

// cleanupWindows evicts windows whose window_end has fallen more than
// window.size behind now, in batches of 100 with a cooperative yield
// between batches so a large cardinality cleanup never starves the
// scheduler.
func (e *Engine) cleanupWindows(ctx context.Context) {
	now := time.Now()
	const batchSize = 100

	for {
		keys := e.windows.Keys()
		var batch []model.WindowKey
		for _, k := range keys {
			entry, ok := e.windows.Peek(k)
			if !ok {
				continue
			}
			entry.mu.RLock()
			stale := entry.window.WindowEnd.Before(now.Add(-e.cfg.Size))
			entry.mu.RUnlock()
			if stale {
				batch = append(batch, k)
				if len(batch) >= batchSize {
					break
				}
			}
		}
		if len(batch) == 0 {
			return
		}
		for _, k := range batch {
			e.windows.Delete(k)
		}
		metrics.WindowsActive.Set(float64(e.windows.Len()))

		select {
		case <-ctx.Done():
			return
		default:
			runtime.Gosched()
		}
	}
}

// cleanupLatestTicks drops last-tick cache entries older than 5 minutes.
func (e *Engine) cleanupLatestTicks() {
	cutoff := time.Now().Add(-5 * time.Minute)
	e.latestTicks.DeleteWhere(func(_ string, t model.Tick) bool {
		return t.LocalTimestamp.Before(cutoff)
	})
	metrics.LatestTicksActive.Set(float64(e.latestTicks.Len()))
}
