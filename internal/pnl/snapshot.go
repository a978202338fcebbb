package pnl

import "sort"

// EquityPoint is one realized-equity sample.
type EquityPoint struct {
	Ts     int64   `json:"ts"`
	Equity float64 `json:"equity"`
}

// SymbolReport is the externally visible per-(strategy,symbol) state.
type SymbolReport struct {
	Strategy    string  `json:"strategy"`
	Symbol      string  `json:"symbol"`
	Qty         int64   `json:"qty"`
	AvgPrice    float64 `json:"avgPrice"`
	BuyNotional float64 `json:"buyNotional"`
	Fees        float64 `json:"fees"`
	GrossPnL    float64 `json:"grossPnl"`
	NetPnL      float64 `json:"netPnl"`
	Wins        int     `json:"wins"`
	Sells       int     `json:"sells"`
	WinRate     float64 `json:"winRate"`
	ROIPct      float64 `json:"roiPct"`
}

// StrategyReport aggregates all symbols of one strategy.
type StrategyReport struct {
	Strategy    string  `json:"strategy"`
	BuyNotional float64 `json:"buyNotional"`
	Fees        float64 `json:"fees"`
	NetPnL      float64 `json:"netPnl"`
	Wins        int     `json:"wins"`
	Sells       int     `json:"sells"`
	WinRate     float64 `json:"winRate"`
	ROIPct      float64 `json:"roiPct"`
}

// Snapshot is an immutable view of the whole ledger.
type Snapshot struct {
	Cash        float64            `json:"cash"`
	InitialCash float64            `json:"initialCash"`
	RealizedNet float64            `json:"realizedNet"`
	MaxDrawdown float64            `json:"maxDrawdown"`
	Symbols     []SymbolReport     `json:"symbols"`
	Strategies  []StrategyReport   `json:"strategies"`
	Equity      []EquityPoint      `json:"equity"`
	DailyPnL    map[string]float64 `json:"dailyPnl"`
}

// Snapshot builds an immutable copy of the ledger. Safe to hand to
// persistence or observers without holding the lock.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Cash:        a.cash,
		InitialCash: a.initial,
		DailyPnL:    make(map[string]float64, len(a.daily)),
		Equity:      append([]EquityPoint(nil), a.equity...),
	}
	for day, v := range a.daily {
		snap.DailyPnL[day] = v
	}

	byStrategy := make(map[string]*StrategyReport)
	for strategy, bySymbol := range a.symbols {
		for symbol, st := range bySymbol {
			report := SymbolReport{
				Strategy:    strategy,
				Symbol:      symbol,
				Qty:         st.qty,
				AvgPrice:    st.avgPrice,
				BuyNotional: st.buyNotional,
				Fees:        st.fees,
				GrossPnL:    st.grossPnL,
				NetPnL:      st.netPnL,
				Wins:        st.wins,
				Sells:       st.sells,
				WinRate:     winRate(st.wins, st.sells),
				ROIPct:      roiPct(st.netPnL, st.buyNotional),
			}
			snap.Symbols = append(snap.Symbols, report)
			snap.RealizedNet += st.netPnL

			agg, ok := byStrategy[strategy]
			if !ok {
				agg = &StrategyReport{Strategy: strategy}
				byStrategy[strategy] = agg
			}
			agg.BuyNotional += st.buyNotional
			agg.Fees += st.fees
			agg.NetPnL += st.netPnL
			agg.Wins += st.wins
			agg.Sells += st.sells
		}
	}
	for _, agg := range byStrategy {
		agg.WinRate = winRate(agg.Wins, agg.Sells)
		agg.ROIPct = roiPct(agg.NetPnL, agg.BuyNotional)
		snap.Strategies = append(snap.Strategies, *agg)
	}
	sort.Slice(snap.Symbols, func(i, j int) bool {
		if snap.Symbols[i].Strategy != snap.Symbols[j].Strategy {
			return snap.Symbols[i].Strategy < snap.Symbols[j].Strategy
		}
		return snap.Symbols[i].Symbol < snap.Symbols[j].Symbol
	})
	sort.Slice(snap.Strategies, func(i, j int) bool {
		return snap.Strategies[i].Strategy < snap.Strategies[j].Strategy
	})
	snap.MaxDrawdown = maxDrawdown(snap.Equity)
	return snap
}

func winRate(wins, sells int) float64 {
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

func roiPct(net, buyNotional float64) float64 {
	if buyNotional == 0 {
		return 0
	}
	return net / buyNotional * 100
}

// maxDrawdown is the largest peak-to-trough decline on the equity curve.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > worst {
			worst = dd
		}
	}
	return worst
}
