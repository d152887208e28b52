// Package ingest is the orchestrator (spec §4.2): it starts one adapter per
// configured exchange, applies the fixed per-tick pipeline (admit/reject,
// normalize, hot-path broadcast, cold-path window publish), and owns the
// two bounded channels ticks flow through. Grounded on the teacher's
// datapipeline.DataIngester worker-pool shape, adapted from a dedup/
// worker-pool design to the spec's simpler reject-then-fan-out pipeline.
package ingest

import (
	"context"
	"sync"

	"github.com/quantedge/spreadarb/adapter"
	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/logging"
	"github.com/quantedge/spreadarb/metrics"
	"github.com/quantedge/spreadarb/model"
	"github.com/quantedge/spreadarb/queue"
	"github.com/quantedge/spreadarb/ratelimit"
)

// HotPath is invoked synchronously, inline with tick ingestion, for every
// admissible tick — it must never block. The reference wiring uses it to
// publish the raw tick onto the global WebSocket fan-out topic.
type HotPath func(model.Tick)

// Orchestrator owns the exchange adapters and the two bounded channels
// (Raw, Window) that feed the rest of the system.
type Orchestrator struct {
	cfg    config.Config
	logger *logging.Logger
	warner *ratelimit.Warner

	adapters []adapter.Adapter

	raw    *queue.Bounded[model.Tick]
	window *queue.Bounded[model.Tick]

	hotPath HotPath

	mu      sync.Mutex
	started bool
}

// New constructs an Orchestrator over the given adapters. hotPath may be
// nil, in which case the hot-path fan-out step is skipped.
func New(cfg config.Config, adapters []adapter.Adapter, hotPath HotPath, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		warner:   ratelimit.NewWarner(1, 3),
		adapters: adapters,
		raw:      queue.NewBounded[model.Tick](cfg.Channels.RawCapacity),
		window:   queue.NewBounded[model.Tick](cfg.Channels.WindowCapacity),
		hotPath:  hotPath,
	}
}

// RawChan exposes the Raw channel for consumers that want the unfiltered
// admissible-tick stream (e.g. a recorder or an additional fan-out).
func (o *Orchestrator) RawChan() <-chan model.Tick { return o.raw.Chan() }

// WindowChan exposes the Window channel the rolling-window engine reads
// from.
func (o *Orchestrator) WindowChan() <-chan model.Tick { return o.window.Chan() }

// Start subscribes every configured, enabled adapter to its admissible
// symbol set. Returns once all adapters have been asked to subscribe;
// adapters deliver ticks asynchronously via their own goroutines calling
// back into Orchestrator.onTick.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	for _, a := range o.adapters {
		exCfg, ok := o.cfg.Exchanges[a.ExchangeName()]
		if !ok || !exCfg.Enabled {
			continue
		}

		symbols, err := o.admissibleSymbols(a, exCfg)
		if err != nil {
			o.logger.Error("fetch symbol metadata", err, logging.Exchange(a.ExchangeName()))
			continue
		}
		if len(symbols) == 0 {
			o.logger.Warn("no admissible symbols for exchange", logging.Exchange(a.ExchangeName()))
			continue
		}

		if err := a.Subscribe(symbols, o.onTick); err != nil {
			o.logger.Error("subscribe", err, logging.Exchange(a.ExchangeName()))
			continue
		}
		o.logger.Info("adapter subscribed", logging.Exchange(a.ExchangeName()), logging.Int("symbols", len(symbols)))
	}

	go func() {
		<-ctx.Done()
		o.Stop()
	}()
	return nil
}

// admissibleSymbols intersects the adapter's reported symbols against the
// exchange's configured 24h-volume band (spec §4.2).
func (o *Orchestrator) admissibleSymbols(a adapter.Adapter, exCfg config.ExchangeConfig) ([]string, error) {
	tickers, err := a.Tickers()
	if err != nil {
		return nil, err
	}

	symbolInfos, err := a.Symbols()
	if err != nil {
		return nil, err
	}

	volumeOf := make(map[string]model.Ticker, len(tickers))
	for _, tk := range tickers {
		volumeOf[tk.Symbol] = tk
	}

	var out []string
	for _, s := range symbolInfos {
		tk, ok := volumeOf[s.Symbol]
		if !ok {
			continue
		}
		if tk.QuoteVolume24h.LessThan(exCfg.MinUSDVolume) || tk.QuoteVolume24h.GreaterThan(exCfg.MaxUSDVolume) {
			continue
		}
		out = append(out, s.Symbol)
	}
	return out, nil
}

// onTick is the fixed per-tick pipeline: reject inadmissible ticks,
// normalize the symbol, run the hot path inline, then try-publish to both
// downstream channels without ever blocking the adapter's goroutine.
func (o *Orchestrator) onTick(t model.Tick) {
	if !t.Admissible() {
		reason := "non_positive_ask"
		if t.BestAsk.IsPositive() {
			reason = "non_positive_bid"
		}
		metrics.TicksRejected.WithLabelValues(t.Exchange, reason).Inc()
		return
	}
	t.Symbol = model.NormalizeSymbol(t.Symbol)
	metrics.TicksIngested.WithLabelValues(t.Exchange).Inc()

	if o.hotPath != nil {
		o.hotPath(t)
	}

	if !o.raw.TryPublish(t) {
		metrics.QueueDrops.WithLabelValues("raw").Inc()
		if o.warner.Allow("raw:" + t.Exchange) {
			o.logger.Warn("raw channel dropped oldest tick", logging.Exchange(t.Exchange), logging.Symbol(t.Symbol))
		}
	}
	if !o.window.TryPublish(t) {
		metrics.QueueDrops.WithLabelValues("window").Inc()
		if o.warner.Allow("window:" + t.Exchange) {
			o.logger.Warn("window channel dropped oldest tick", logging.Exchange(t.Exchange), logging.Symbol(t.Symbol))
		}
	}
}

// Stop halts every adapter. Idempotent.
func (o *Orchestrator) Stop() {
	for _, a := range o.adapters {
		a.Stop()
	}
}

// AdaptersReconnecting reports how many adapters currently report a
// reconnect-in-progress state, for health/metrics reporting.
func (o *Orchestrator) AdaptersReconnecting() int {
	n := 0
	for _, a := range o.adapters {
		if a.Reconnecting() {
			n++
		}
	}
	return n
}
