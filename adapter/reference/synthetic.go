// Package reference is a self-contained synthetic-tick adapter: no network
// dependency, deterministic seed-driven walk, used by tests, local demo
// runs, and as the template for a real exchange integration. It has no
// connection and no reconnect loop: Subscribe starts one goroutine per
// symbol and Stop ends them.
package reference

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantedge/spreadarb/adapter"
	"github.com/quantedge/spreadarb/logging"
	"github.com/quantedge/spreadarb/model"
	"github.com/shopspring/decimal"
)

// Adapter streams a synthetic random walk per symbol. It is not meant to
// model any specific exchange; it exists so the rest of the pipeline can be
// exercised and tested end to end without a live network dependency.
type Adapter struct {
	name        string
	seed        int64
	tickEvery   time.Duration
	basePrices  map[string]decimal.Decimal
	minVolume   decimal.Decimal
	maxVolume   decimal.Decimal
	logger      *logging.Logger

	mu           sync.Mutex
	stopCh       chan struct{}
	stopped      bool
	reconnecting int32
}

// Config configures a reference adapter instance.
type Config struct {
	Name       string
	Seed       int64
	TickEvery  time.Duration
	BasePrices map[string]decimal.Decimal
	MinVolume  decimal.Decimal
	MaxVolume  decimal.Decimal
	Logger     *logging.Logger
}

// New creates a synthetic adapter for exchange Name, one random walk per
// entry in BasePrices.
func New(cfg Config) *Adapter {
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.INFO)
	}
	return &Adapter{
		name:       cfg.Name,
		seed:       cfg.Seed,
		tickEvery:  cfg.TickEvery,
		basePrices: cfg.BasePrices,
		minVolume:  cfg.MinVolume,
		maxVolume:  cfg.MaxVolume,
		logger:     cfg.Logger,
		stopCh:     make(chan struct{}),
	}
}

func (a *Adapter) ExchangeName() string { return a.name }

func (a *Adapter) Symbols() ([]model.SymbolInfo, error) {
	out := make([]model.SymbolInfo, 0, len(a.basePrices))
	for symbol := range a.basePrices {
		out = append(out, model.SymbolInfo{
			Exchange:     a.name,
			Symbol:       symbol,
			PriceStep:    decimal.NewFromFloat(0.01),
			QuantityStep: decimal.NewFromFloat(0.0001),
			MinNotional:  decimal.NewFromInt(10),
		})
	}
	return out, nil
}

func (a *Adapter) Tickers() ([]model.Ticker, error) {
	out := make([]model.Ticker, 0, len(a.basePrices))
	volume := a.minVolume.Add(a.maxVolume).Div(decimal.NewFromInt(2))
	for symbol := range a.basePrices {
		out = append(out, model.Ticker{Symbol: symbol, QuoteVolume24h: volume})
	}
	return out, nil
}

// Subscribe starts one goroutine per symbol emitting a random walk tick
// every tickEvery. Each goroutine owns its own *rand.Rand so concurrent
// symbols never race a shared generator, and each goroutine only ever
// touches its own symbol, preserving the adapter contract's no-concurrent-
// same-symbol-callback guarantee.
func (a *Adapter) Subscribe(symbols []string, onTick adapter.OnTick) error {
	rng := rand.New(rand.NewSource(a.seed))
	for _, symbol := range symbols {
		base, ok := a.basePrices[symbol]
		if !ok {
			continue
		}
		symbolSeed := rng.Int63()
		go a.walk(symbol, base, symbolSeed, onTick)
	}
	return nil
}

func (a *Adapter) walk(symbol string, base decimal.Decimal, seed int64, onTick adapter.OnTick) {
	rng := rand.New(rand.NewSource(seed))
	price := base
	ticker := time.NewTicker(a.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			price = nextPrice(price, rng)
			spread := price.Mul(decimal.NewFromFloat(0.0005))
			tick := model.Tick{
				Exchange:       a.name,
				Symbol:         model.NormalizeSymbol(symbol),
				BestBid:        price.Sub(spread),
				BestAsk:        price.Add(spread),
				LocalTimestamp: time.Now(),
				MinVolume:      a.minVolume,
				MaxVolume:      a.maxVolume,
			}
			a.safeDeliver(onTick, tick)
		}
	}
}

// safeDeliver guards the adapter's own goroutine against a panicking
// callback: a programming error downstream must never take the adapter
// down with it.
func (a *Adapter) safeDeliver(onTick adapter.OnTick, tick model.Tick) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tick callback panicked", nil,
				logging.Component("reference_adapter"),
				logging.Exchange(a.name),
				logging.Any("recovered", r))
		}
	}()
	onTick(tick)
}

func nextPrice(price decimal.Decimal, rng *rand.Rand) decimal.Decimal {
	// +/- 5 basis points per tick, floored well above zero.
	driftBps := (rng.Float64() - 0.5) * 10
	delta := price.Mul(decimal.NewFromFloat(driftBps / 10000))
	next := price.Add(delta)
	if next.Sign() <= 0 {
		return price
	}
	return next
}

// Stop halts every per-symbol goroutine.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	close(a.stopCh)
}

// Reconnecting is always false for the synthetic adapter: there is no
// connection to lose. Kept to satisfy the adapter.Adapter interface so the
// health check's "count adapters currently reconnecting" logic has a
// uniform signal across adapters.
func (a *Adapter) Reconnecting() bool {
	return atomic.LoadInt32(&a.reconnecting) != 0
}
