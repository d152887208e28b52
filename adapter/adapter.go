// Package adapter defines the uniform contract the orchestrator consumes in
// place of per-exchange protocol clients. Real exchange wire clients (REST
// symbol discovery, WebSocket subscriptions) are explicitly out of scope;
// this package only fixes the shape every such client must have.
package adapter

import "github.com/quantedge/spreadarb/model"

// OnTick is called once per inbound tick. The adapter must call it from
// whatever thread/goroutine delivered the tick, but must never call it
// concurrently for the same symbol — callers downstream rely on that
// per-(exchange,symbol) FIFO guarantee.
type OnTick func(model.Tick)

// Adapter is the uniform capability every exchange integration realizes.
// There is no shared mutable base state between implementations: each
// adapter owns its own connection lifecycle and reconnect loop.
type Adapter interface {
	// ExchangeName is the short, stable identifier used as the Exchange
	// field on every tick and as a key throughout the engine.
	ExchangeName() string

	// Symbols performs the one-shot startup symbol discovery call.
	Symbols() ([]model.SymbolInfo, error)

	// Tickers performs the one-shot startup 24h-ticker snapshot call.
	Tickers() ([]model.Ticker, error)

	// Subscribe starts streaming top-of-book updates for the given symbols,
	// invoking onTick for each. It must reconnect on disconnect without
	// external prompting and must survive at least 100 consecutive
	// reconnects without leaking handlers or goroutines.
	Subscribe(symbols []string, onTick OnTick) error

	// Stop tears down the adapter's connection and reconnect loop.
	Stop()

	// Reconnecting reports whether the adapter is currently mid
	// reconnect-backoff, so the process health check can mark itself
	// degraded without the orchestrator crashing.
	Reconnecting() bool
}
