package model

import "time"

// Window is a time-bounded sliding sequence of SpreadPoints for one
// (exchange1, exchange2, symbol) triple. It is a thin FIFO around a slice;
// the owning engine is responsible for locking and for enforcing the hard
// cap and time bound described in window.Engine.
type Window struct {
	Key         WindowKey     `json:"key"`
	WindowStart time.Time     `json:"windowStart"`
	WindowEnd   time.Time     `json:"windowEnd"`
	Points      []SpreadPoint `json:"points"`
}

// WindowKey identifies a window by its canonical exchange pair and symbol.
type WindowKey struct {
	Exchange1 string `json:"exchange1"`
	Exchange2 string `json:"exchange2"`
	Symbol    string `json:"symbol"`
}

// NewWindowKey builds the canonical key for a (exchange, exchange, symbol)
// triple regardless of the order the two exchanges are given in.
func NewWindowKey(exA, exB, symbol string) WindowKey {
	p := CanonicalPair(exA, exB)
	return WindowKey{Exchange1: p.Exchange1, Exchange2: p.Exchange2, Symbol: symbol}
}

// String renders the key the way it is used as a map/index key elsewhere
// ("{exchange1}_{exchange2}_{symbol}" per the spec's cache key convention).
func (k WindowKey) String() string {
	return k.Exchange1 + "_" + k.Exchange2 + "_" + k.Symbol
}

// Snapshot returns a copy of the current points slice so callers can read it
// outside of the window's lock without racing future appends.
func (w *Window) Snapshot() []SpreadPoint {
	out := make([]SpreadPoint, len(w.Points))
	copy(out, w.Points)
	return out
}
