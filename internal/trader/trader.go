// Package trader turns normalized trade signals into broker orders. It owns
// the per-symbol cooldown, the master/side switches and the ladder-vs-single
// submission decision.
package trader

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/ladder"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/position"
)

// Config holds the static trading settings.
type Config struct {
	// Strategy tags fills in the PnL ledger.
	Strategy string
	// FixedQty sizes orders directly when > 0.
	FixedQty int64
	// UnitAmount sizes orders as UnitAmount/refPrice when FixedQty is 0.
	UnitAmount float64
	// Cooldown is the minimum time between accepted signals per symbol.
	Cooldown time.Duration
	// LadderBuy/LadderSell enable ladder slicing per side.
	LadderBuy  bool
	LadderSell bool
	// Ladder configures slicing when enabled.
	Ladder ladder.Config
	// DryRun logs and acknowledges locally without calling the broker.
	DryRun bool
}

// Trader routes signals to the broker and publishes submission events.
type Trader struct {
	cfg       Config
	adapter   broker.Adapter
	positions *position.Manager
	events    *bus.Queue
	now       func() time.Time

	master atomic.Bool
	buyOn  atomic.Bool
	sellOn atomic.Bool

	mu           sync.Mutex
	symbolLocks  map[string]*sync.Mutex
	lastAccepted map[string]time.Time
}

// New creates a trader with all switches on.
func New(cfg Config, adapter broker.Adapter, positions *position.Manager, events *bus.Queue) *Trader {
	t := &Trader{
		cfg:          cfg,
		adapter:      adapter,
		positions:    positions,
		events:       events,
		now:          time.Now,
		symbolLocks:  make(map[string]*sync.Mutex),
		lastAccepted: make(map[string]time.Time),
	}
	t.master.Store(true)
	t.buyOn.Store(true)
	t.sellOn.Store(true)
	return t
}

// SetMaster toggles all trading.
func (t *Trader) SetMaster(on bool) { t.master.Store(on) }

// SetBuyEnabled toggles buy-side trading.
func (t *Trader) SetBuyEnabled(on bool) { t.buyOn.Store(on) }

// SetSellEnabled toggles sell-side trading.
func (t *Trader) SetSellEnabled(on bool) { t.sellOn.Store(on) }

func (t *Trader) sideEnabled(side enum.OrderSide) bool {
	switch side {
	case enum.OrderSideBuy:
		return t.buyOn.Load()
	case enum.OrderSideSell:
		return t.sellOn.Load()
	default:
		return false
	}
}

func (t *Trader) lockFor(symbol string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.symbolLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		t.symbolLocks[symbol] = l
	}
	return l
}

// HandleSignal evaluates one signal. Silent no-op when switched off or
// cooling down; every actual submission attempt emits a bus event.
func (t *Trader) HandleSignal(ctx context.Context, sig model.TradeSignal) {
	if !t.master.Load() || !t.sideEnabled(sig.Side) {
		logs.Debugf("trader: %s %s dropped, switch off", sig.Side, sig.Symbol)
		return
	}

	lock := t.lockFor(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	now := t.now()
	if t.cfg.Cooldown > 0 {
		t.mu.Lock()
		last, ok := t.lastAccepted[sig.Symbol]
		if ok && now.Sub(last) < t.cfg.Cooldown {
			t.mu.Unlock()
			logs.Debugf("trader: %s cooling down, %.1fs left",
				sig.Symbol, (t.cfg.Cooldown - now.Sub(last)).Seconds())
			return
		}
		t.lastAccepted[sig.Symbol] = now
		t.mu.Unlock()
	}

	qty := t.orderQty(sig)
	if qty <= 0 {
		logs.Warnf("trader: %s %s sized to zero, ref=%.2f", sig.Side, sig.Symbol, sig.RefPrice)
		return
	}

	if t.ladderEnabled(sig.Side) {
		exec := ladder.NewExecutor(t.cfg.Ladder, t.submitSlice, t.master.Load)
		held := t.positions.Qty(sig.Symbol)
		res := exec.Execute(ctx, sig.Side, sig.Symbol, qty, sig.RefPrice, held)
		logs.Infof("trader: ladder %s %s submitted=%d skipped=%d failed=%d",
			sig.Side, sig.Symbol, res.SubmittedQty(), res.Skipped, res.Failed)
		return
	}

	order := model.Order{
		Side:      sig.Side,
		Symbol:    sig.Symbol,
		Qty:       qty,
		Type:      enum.OrderTypeMarket,
		Price:     sig.RefPrice,
		Timestamp: now,
	}
	if sig.Side == enum.OrderSideSell {
		if held := t.positions.Qty(sig.Symbol); order.Qty > held {
			logs.Warnf("trader: sell %s clamped %d -> %d (held)", sig.Symbol, order.Qty, held)
			order.Qty = held
		}
		if order.Qty <= 0 {
			return
		}
	}
	_ = t.submit(ctx, order)
}

// orderQty sizes one order from the settings.
func (t *Trader) orderQty(sig model.TradeSignal) int64 {
	if t.cfg.FixedQty > 0 {
		return t.cfg.FixedQty
	}
	if t.cfg.UnitAmount > 0 && sig.RefPrice > 0 {
		return int64(math.Floor(t.cfg.UnitAmount / sig.RefPrice))
	}
	return 0
}

func (t *Trader) ladderEnabled(side enum.OrderSide) bool {
	switch side {
	case enum.OrderSideBuy:
		return t.cfg.LadderBuy
	case enum.OrderSideSell:
		return t.cfg.LadderSell
	default:
		return false
	}
}

// submitSlice adapts submit for the ladder executor.
func (t *Trader) submitSlice(ctx context.Context, order model.Order) error {
	return t.submit(ctx, order)
}

func (t *Trader) submit(ctx context.Context, order model.Order) error {
	if t.cfg.DryRun {
		logs.Infof("trader: dry-run %s %s qty=%d price=%.2f", order.Side, order.Symbol, order.Qty, order.Price)
		t.emit(enum.SubmitStatusSim, order, "dry-run")
		return nil
	}

	t.reserve(order)
	resp, err := t.adapter.PlaceOrder(ctx, order)
	if err != nil || !resp.OK() {
		t.release(order)
		detail := resp.Message
		if err != nil {
			detail = err.Error()
		}
		logs.Errorf("trader: submit %s %s qty=%d failed, status=%d detail=%s",
			order.Side, order.Symbol, order.Qty, resp.Status, detail)
		t.emit(enum.SubmitStatusFail, order, detail)
		return err
	}

	status := enum.SubmitStatusLive
	if t.adapter.Name() == enum.VendorSimulator.String() {
		status = enum.SubmitStatusSim
	}
	t.emit(status, order, resp.OrderID)
	return nil
}

func (t *Trader) reserve(order model.Order) {
	switch order.Side {
	case enum.OrderSideBuy:
		t.positions.ReserveBuy(order.Symbol, order.Qty)
	case enum.OrderSideSell:
		t.positions.ReserveSell(order.Symbol, order.Qty)
	}
}

func (t *Trader) release(order model.Order) {
	switch order.Side {
	case enum.OrderSideBuy:
		t.positions.ReleaseBuy(order.Symbol, order.Qty)
	case enum.OrderSideSell:
		t.positions.ReleaseSell(order.Symbol, order.Qty)
	}
}

func (t *Trader) emit(status enum.SubmitStatus, order model.Order, detail string) {
	if t.events == nil {
		return
	}
	err := t.events.TryPublish(bus.Event{
		Kind: bus.KindSubmit,
		Submit: &model.SubmitEvent{
			Status: status,
			Symbol: order.Symbol,
			Side:   order.Side,
			Qty:    order.Qty,
			Price:  order.Price,
			Detail: detail,
			Ts:     t.now(),
		},
	})
	if err != nil {
		logs.Warnf("trader: drop submit event, err: %+v", err)
	}
}
