package model

import (
	"time"

	"main/internal/model/enum"
)

// TradeSignal is a normalized buy/sell candidate produced by the feed client.
type TradeSignal struct {
	Side      enum.OrderSide
	Symbol    string
	Name      string // display name, may be empty if enrichment timed out
	RefPrice  float64
	Reason    string
	Timestamp time.Time
}

// SubmitEvent is published on the bus for every submission attempt,
// successful or not.
type SubmitEvent struct {
	Status enum.SubmitStatus
	Symbol string
	Side   enum.OrderSide
	Qty    int64
	Price  float64
	Detail string
	Ts     time.Time
}

// AccountContext is one resolved brokerage account target.
type AccountContext struct {
	Token   string
	Account string
	Enabled bool
	Alias   string
}
