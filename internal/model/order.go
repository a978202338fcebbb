package model

import (
	"time"

	"main/internal/model/enum"
)

// Order is a request to trade, consumed by a broker adapter.
type Order struct {
	Side      enum.OrderSide
	Symbol    string
	Qty       int64
	Type      enum.OrderType
	Price     float64 // limit price; ignored for market orders
	Timestamp time.Time
}

// Notional returns price*qty for limit orders and 0 for market orders.
func (o Order) Notional() float64 {
	if o.Type == enum.OrderTypeMarket {
		return 0
	}
	return o.Price * float64(o.Qty)
}

// Fill is a confirmed execution applied to position and PnL bookkeeping.
type Fill struct {
	Symbol    string
	Side      enum.OrderSide
	Qty       int64
	Price     float64
	Fee       float64
	Timestamp time.Time
}

// AccountResult is the per-account outcome of a fan-out submission.
type AccountResult struct {
	Account string `json:"account"`
	Status  int    `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BrokerSummary carries fan-out result counts.
type BrokerSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// BrokerResponse is the aggregate result of one logical order submission,
// possibly fanned out over several accounts.
type BrokerResponse struct {
	Status  int             `json:"status"`
	OrderID string          `json:"order_id,omitempty"`
	Message string          `json:"message,omitempty"`
	Results []AccountResult `json:"results,omitempty"`
	Summary BrokerSummary   `json:"summary"`
}

// OK reports whether the aggregate status is a 2xx.
func (r BrokerResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
