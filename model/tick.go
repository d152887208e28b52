// Package model holds the value types shared across the ingestion,
// windowing, signal, and fan-out packages.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one top-of-book update from one exchange for one symbol.
type Tick struct {
	Exchange        string          `json:"exchange"`
	Symbol          string          `json:"symbol"`
	BestBid         decimal.Decimal `json:"bestBid"`
	BestAsk         decimal.Decimal `json:"bestAsk"`
	QuoteVolume24h  decimal.Decimal `json:"quoteVolume24h"`
	LocalTimestamp  time.Time       `json:"localTimestamp"`
	ServerTimestamp decimal.Decimal `json:"serverTimestamp,omitempty"`
	HasServerTS     bool            `json:"hasServerTimestamp"`
	MinVolume       decimal.Decimal `json:"minVolume,omitempty"`
	MaxVolume       decimal.Decimal `json:"maxVolume,omitempty"`
}

// Admissible reports whether the tick satisfies the pipeline's entry
// invariant: a positive ask and a positive bid (zero or negative asks/bids
// must never reach a consumer).
func (t Tick) Admissible() bool {
	return t.BestAsk.IsPositive() && t.BestBid.IsPositive()
}

// NormalizeSymbol strips the separators exchanges disagree on so the same
// pair compares equal across venues.
func NormalizeSymbol(symbol string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	return strings.ToUpper(r.Replace(symbol))
}

// IntraSpreadPercent is the within-exchange bid/ask spread, expressed as a
// percent of the ask.
func (t Tick) IntraSpreadPercent() decimal.Decimal {
	if !t.BestAsk.IsPositive() {
		return decimal.Zero
	}
	return t.BestAsk.Sub(t.BestBid).Div(t.BestAsk).Mul(decimal.NewFromInt(100))
}

// SymbolInfo is per-exchange trading-pair static metadata, produced once at
// startup and used to filter admissible symbols.
type SymbolInfo struct {
	Exchange     string          `json:"exchange"`
	Symbol       string          `json:"symbol"`
	PriceStep    decimal.Decimal `json:"priceStep"`
	QuantityStep decimal.Decimal `json:"quantityStep"`
	MinNotional  decimal.Decimal `json:"minNotional"`
}

// Ticker is the one-shot 24h-volume snapshot an adapter reports at startup.
type Ticker struct {
	Symbol         string          `json:"symbol"`
	QuoteVolume24h decimal.Decimal `json:"quoteVolume24h"`
}
