package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a signal's deviation.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Kind distinguishes an entry from an exit signal.
type Kind string

const (
	KindEntry Kind = "Entry"
	KindExit  Kind = "Exit"
)

// Signal is emitted by the signal detector on a threshold crossing.
type Signal struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Exchange1         string          `json:"exchange1"`
	Exchange2         string          `json:"exchange2"`
	Deviation         decimal.Decimal `json:"deviation"`
	Direction         Direction       `json:"direction"`
	CheapExchange     string          `json:"cheapExchange"`
	ExpensiveExchange string          `json:"expensiveExchange"`
	Kind              Kind            `json:"kind"`
	Timestamp         time.Time       `json:"timestamp"`
}
