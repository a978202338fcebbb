// Package position tracks executed quantity, average cost and pending
// reservations per symbol. All mutation happens under one mutex and is
// persisted to disk before the lock releases.
package position

import (
	"sort"
	"sync"

	"github.com/yanun0323/logs"
)

// Change describes one mutation, delivered to the observer after the
// mutation is persisted.
type Change struct {
	Symbol      string
	Qty         int64
	AvgPrice    float64
	PendingBuy  int64
	PendingSell int64
}

type book struct {
	qty         int64
	avgPrice    float64
	pendingBuy  int64
	pendingSell int64
}

// Manager is the per-symbol position store.
type Manager struct {
	mu        sync.Mutex
	books     map[string]*book
	snapshots *snapshotWriter
	observer  func(Change)
}

// Option configures optional manager behavior.
type Option struct {
	// SnapshotPath enables atomic JSON snapshots when non-empty.
	SnapshotPath string
	// Observer receives a Change after every persisted mutation. Optional.
	Observer func(Change)
}

// NewManager creates an empty manager.
func NewManager(opt Option) *Manager {
	m := &Manager{
		books:    make(map[string]*book),
		observer: opt.Observer,
	}
	if opt.SnapshotPath != "" {
		m.snapshots = newSnapshotWriter(opt.SnapshotPath)
	}
	return m
}

// Restore loads a previously written snapshot. Missing file is not an error.
func (m *Manager) Restore() error {
	if m.snapshots == nil {
		return nil
	}
	snap, err := m.snapshots.read()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range snap.Positions {
		m.books[entry.Symbol] = &book{
			qty:         entry.Qty,
			avgPrice:    entry.AvgPrice,
			pendingBuy:  entry.PendingBuy,
			pendingSell: entry.PendingSell,
		}
	}
	return nil
}

func (m *Manager) bookFor(symbol string) *book {
	b, ok := m.books[symbol]
	if !ok {
		b = &book{}
		m.books[symbol] = b
	}
	return b
}

// ReserveBuy marks qty as committed to an in-flight buy order.
func (m *Manager) ReserveBuy(symbol string, qty int64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		b.pendingBuy += qty
	})
}

// ReserveSell marks qty as committed to an in-flight sell order.
func (m *Manager) ReserveSell(symbol string, qty int64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		b.pendingSell += qty
	})
}

// ReleaseBuy returns reserved buy qty on cancel/reject, floored at zero.
func (m *Manager) ReleaseBuy(symbol string, qty int64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		b.pendingBuy = maxInt64(0, b.pendingBuy-qty)
	})
}

// ReleaseSell returns reserved sell qty on cancel/reject, floored at zero.
func (m *Manager) ReleaseSell(symbol string, qty int64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		b.pendingSell = maxInt64(0, b.pendingSell-qty)
	})
}

// ApplyFillBuy moves qty from pending to executed and recomputes the
// weighted average cost.
func (m *Manager) ApplyFillBuy(symbol string, qty int64, price float64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		total := b.avgPrice*float64(b.qty) + price*float64(qty)
		b.qty += qty
		b.avgPrice = total / float64(b.qty)
		b.pendingBuy = maxInt64(0, b.pendingBuy-qty)
	})
}

// ApplyFillSell reduces the executed quantity, clamped at zero. A full exit
// resets the average price. The sell price only matters to PnL, not cost
// basis; the parameter keeps call sites symmetric with ApplyFillBuy.
func (m *Manager) ApplyFillSell(symbol string, qty int64, _ float64) {
	if qty <= 0 {
		return
	}
	m.mutate(symbol, func(b *book) {
		b.qty = maxInt64(0, b.qty-qty)
		b.pendingSell = maxInt64(0, b.pendingSell-qty)
		if b.qty == 0 {
			b.avgPrice = 0
		}
	})
}

// Qty returns the executed quantity for a symbol.
func (m *Manager) Qty(symbol string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b.qty
	}
	return 0
}

// AvgPrice returns the average cost for a symbol, 0 when flat.
func (m *Manager) AvgPrice(symbol string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b.avgPrice
	}
	return 0
}

// Pending returns the pending buy and sell reservations for a symbol.
func (m *Manager) Pending(symbol string) (buy, sell int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b.pendingBuy, b.pendingSell
	}
	return 0, 0
}

// Symbols returns all tracked symbols, sorted.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.books))
	for symbol := range m.books {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) mutate(symbol string, apply func(*book)) {
	m.mu.Lock()
	b := m.bookFor(symbol)
	apply(b)
	change := Change{
		Symbol:      symbol,
		Qty:         b.qty,
		AvgPrice:    b.avgPrice,
		PendingBuy:  b.pendingBuy,
		PendingSell: b.pendingSell,
	}
	if m.snapshots != nil {
		if err := m.snapshots.write(m.snapshotLocked()); err != nil {
			logs.Errorf("persist position snapshot, err: %+v", err)
		}
	}
	m.mu.Unlock()

	if m.observer != nil {
		m.observer(change)
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
