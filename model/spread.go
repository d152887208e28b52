package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair canonically orders two exchange names so that (A,B) and (B,A) refer
// to the same window.
type Pair struct {
	Exchange1 string `json:"exchange1"`
	Exchange2 string `json:"exchange2"`
}

// CanonicalPair returns the lexicographically ordered pair for (a, b).
func CanonicalPair(a, b string) Pair {
	if a <= b {
		return Pair{Exchange1: a, Exchange2: b}
	}
	return Pair{Exchange1: b, Exchange2: a}
}

// SpreadPoint is one cross-exchange computation for one symbol at one event
// time, produced by last-tick matching.
type SpreadPoint struct {
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Exchange1     string          `json:"exchange1"`
	Exchange2     string          `json:"exchange2"`
	Bid1          decimal.Decimal `json:"bid1"`
	Bid2          decimal.Decimal `json:"bid2"`
	SpreadPercent decimal.Decimal `json:"spreadPercent"`
	Staleness     time.Duration   `json:"stalenessNs"`
	TriggeredBy   string          `json:"triggeredBy"`
}

// hundred is the constant percent multiplier used throughout the spread
// math; kept as a package value so every Mul call shares one allocation.
var hundred = decimal.NewFromInt(100)

// NewSpreadPoint computes the canonical-ordered spread point for a trigger
// tick T on exchange E and a cached counter-tick T' on exchange E', for the
// same symbol. Returns ok=false if either bid is non-positive, per the
// SpreadPoint invariant in the data model.
func NewSpreadPoint(symbol string, e string, t Tick, tPrime Tick, triggeredBy string) (SpreadPoint, bool) {
	pair := CanonicalPair(e, tPrime.Exchange)
	var bid1, bid2 decimal.Decimal
	if pair.Exchange1 == e {
		bid1, bid2 = t.BestBid, tPrime.BestBid
	} else {
		bid1, bid2 = tPrime.BestBid, t.BestBid
	}
	if !bid1.IsPositive() || !bid2.IsPositive() {
		return SpreadPoint{}, false
	}

	staleness := t.LocalTimestamp.Sub(tPrime.LocalTimestamp)
	if staleness < 0 {
		staleness = -staleness
	}

	return SpreadPoint{
		Timestamp:     t.LocalTimestamp,
		Symbol:        symbol,
		Exchange1:     pair.Exchange1,
		Exchange2:     pair.Exchange2,
		Bid1:          bid1,
		Bid2:          bid2,
		SpreadPercent: spreadPercent(bid1, bid2),
		Staleness:     staleness,
		TriggeredBy:   triggeredBy,
	}, true
}

// spreadPercent is (bid1/bid2 - 1) * 100 under canonical ordering.
func spreadPercent(bid1, bid2 decimal.Decimal) decimal.Decimal {
	return bid1.Div(bid2).Sub(decimal.NewFromInt(1)).Mul(hundred)
}
