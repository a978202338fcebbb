// Package pnl keeps the shared-cash ledger and realized profit bookkeeping.
// Strategies share one cash pool but track their own cost basis per symbol.
package pnl

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model/enum"
)

type symbolState struct {
	qty         int64
	avgPrice    float64
	buyNotional float64
	fees        float64
	grossPnL    float64
	netPnL      float64
	wins        int
	sells       int
}

// Aggregator is the shared-cash PnL ledger. One mutex guards all mutation;
// snapshots are built under the lock and delivered outside it.
type Aggregator struct {
	mu       sync.Mutex
	cash     float64
	initial  float64
	symbols  map[string]map[string]*symbolState // strategy -> symbol -> state
	equity   []EquityPoint
	daily    map[string]float64 // YYYY-MM-DD -> realized net
	now      func() time.Time
	observer func(Snapshot)
}

// Option configures the aggregator.
type Option struct {
	// InitialCash seeds the shared pool.
	InitialCash float64
	// Observer receives a snapshot after every mutation. Optional.
	Observer func(Snapshot)
	// Now overrides the clock. Optional, tests only.
	Now func() time.Time
}

// NewAggregator creates an aggregator with the given starting cash.
func NewAggregator(opt Option) *Aggregator {
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		cash:     opt.InitialCash,
		initial:  opt.InitialCash,
		symbols:  make(map[string]map[string]*symbolState),
		daily:    make(map[string]float64),
		now:      now,
		observer: opt.Observer,
	}
}

func (a *Aggregator) stateFor(strategy, symbol string) *symbolState {
	bySymbol, ok := a.symbols[strategy]
	if !ok {
		bySymbol = make(map[string]*symbolState)
		a.symbols[strategy] = bySymbol
	}
	st, ok := bySymbol[symbol]
	if !ok {
		st = &symbolState{}
		bySymbol[symbol] = st
	}
	return st
}

// OnFill applies one fill to the ledger.
//
// A buy that would drive the shared cash pool negative is rejected as a
// silent no-op. A sell of more than the held quantity is clamped to held.
func (a *Aggregator) OnFill(strategy, symbol string, side enum.OrderSide, qty int64, price, fee float64) {
	if qty <= 0 {
		return
	}

	a.mu.Lock()
	st := a.stateFor(strategy, symbol)

	switch side {
	case enum.OrderSideBuy:
		cost := price*float64(qty) + fee
		if a.cash < cost {
			a.mu.Unlock()
			logs.Warnf("pnl: insufficient cash, strategy=%s symbol=%s need=%.2f have=%.2f",
				strategy, symbol, cost, a.cash)
			return
		}
		a.cash -= cost
		total := st.avgPrice*float64(st.qty) + price*float64(qty)
		st.qty += qty
		st.avgPrice = total / float64(st.qty)
		st.buyNotional += price * float64(qty)
		st.fees += fee

	case enum.OrderSideSell:
		if st.qty <= 0 {
			a.mu.Unlock()
			logs.Warnf("pnl: sell without position, strategy=%s symbol=%s", strategy, symbol)
			return
		}
		sellQty := qty
		if sellQty > st.qty {
			sellQty = st.qty
		}
		gross := (price - st.avgPrice) * float64(sellQty)
		net := gross - fee
		a.cash += price*float64(sellQty) - fee
		st.qty -= sellQty
		if st.qty == 0 {
			st.avgPrice = 0
		}
		st.fees += fee
		st.grossPnL += gross
		st.netPnL += net
		st.sells++
		if net > 0 {
			st.wins++
		}
		day := a.now().UTC().Format("2006-01-02")
		a.daily[day] += net
		a.equity = append(a.equity, EquityPoint{
			Ts:     a.now().UTC().UnixNano(),
			Equity: a.realizedEquityLocked(),
		})

	default:
		a.mu.Unlock()
		return
	}

	var snap Snapshot
	hasObserver := a.observer != nil
	if hasObserver {
		snap = a.snapshotLocked()
	}
	a.mu.Unlock()

	if hasObserver {
		a.observer(snap)
	}
}

// Cash returns the current shared cash balance.
func (a *Aggregator) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// realizedEquityLocked is initial cash plus total realized net PnL.
func (a *Aggregator) realizedEquityLocked() float64 {
	total := a.initial
	for _, bySymbol := range a.symbols {
		for _, st := range bySymbol {
			total += st.netPnL
		}
	}
	return total
}
