// Package ladder splits one target quantity into smaller priced slices
// submitted at staggered prices and times.
package ladder

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

// Config controls slicing.
type Config struct {
	// SliceCount is the requested number of slices. Minimum 1.
	SliceCount int
	// MinQty floors each slice; the slice count shrinks to honor it.
	MinQty int64
	// Tick is the per-slice price offset from the reference.
	Tick float64
	// Delay paces consecutive slice submissions.
	Delay time.Duration
}

// SubmitFunc sends one slice. Returning an error does not stop the sequence;
// the slice is just recorded as failed.
type SubmitFunc func(ctx context.Context, order model.Order) error

// GateFunc is re-checked before each slice. Returning false skips all
// remaining unsent slices; already-submitted slices are not recalled.
type GateFunc func() bool

// Executor submits ladder sequences.
type Executor struct {
	cfg    Config
	submit SubmitFunc
	gate   GateFunc
}

// NewExecutor creates an executor. gate may be nil (always open).
func NewExecutor(cfg Config, submit SubmitFunc, gate GateFunc) *Executor {
	if cfg.SliceCount < 1 {
		cfg.SliceCount = 1
	}
	return &Executor{cfg: cfg, submit: submit, gate: gate}
}

// Result reports what a sequence actually did.
type Result struct {
	Submitted []model.Order
	Skipped   int
	Failed    int
}

// SubmittedQty sums the submitted slice quantities.
func (r Result) SubmittedQty() int64 {
	var total int64
	for _, o := range r.Submitted {
		total += o.Qty
	}
	return total
}

// Execute slices targetQty and submits each slice. Sells are clamped to the
// held quantity before slicing; the slice quantities sum exactly to the
// clamped target.
func (e *Executor) Execute(ctx context.Context, side enum.OrderSide, symbol string, targetQty int64, refPrice float64, held int64) Result {
	var res Result

	qty := targetQty
	if side == enum.OrderSideSell && qty > held {
		logs.Warnf("ladder: sell %s clamped %d -> %d (held)", symbol, qty, held)
		qty = held
	}
	if qty <= 0 {
		return res
	}

	slices := Split(qty, e.cfg.SliceCount, e.cfg.MinQty)
	for i, sliceQty := range slices {
		if ctx.Err() != nil || (e.gate != nil && !e.gate()) {
			res.Skipped = len(slices) - i
			logs.Infof("ladder: %s %s sequence stopped, skipped %d slices", side, symbol, res.Skipped)
			return res
		}

		order := model.Order{
			Side:      side,
			Symbol:    symbol,
			Qty:       sliceQty,
			Type:      enum.OrderTypeLimit,
			Price:     SlicePrice(side, refPrice, e.cfg.Tick, i),
			Timestamp: time.Now(),
		}
		if err := e.submit(ctx, order); err != nil {
			res.Failed++
			logs.Errorf("ladder: slice %d/%d %s %s, err: %+v", i+1, len(slices), side, symbol, err)
		} else {
			res.Submitted = append(res.Submitted, order)
		}

		if i < len(slices)-1 && e.cfg.Delay > 0 {
			if !sleep(ctx, e.cfg.Delay) {
				res.Skipped = len(slices) - i - 1
				return res
			}
		}
	}
	return res
}

// Split divides qty into at most n slices of at least minQty each.
// The returned quantities sum exactly to qty.
func Split(qty int64, n int, minQty int64) []int64 {
	if qty <= 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if int64(n) > qty {
		n = int(qty)
	}
	if minQty > 0 {
		if byMin := qty / minQty; byMin < int64(n) {
			n = int(byMin)
			if n < 1 {
				n = 1
			}
		}
	}
	base := qty / int64(n)
	rem := qty % int64(n)
	slices := make([]int64, n)
	for i := range slices {
		slices[i] = base
	}
	slices[n-1] += rem
	return slices
}

// SlicePrice steps the i-th slice away from the reference: buys below,
// sells above.
func SlicePrice(side enum.OrderSide, ref, tick float64, i int) float64 {
	offset := tick * float64(i)
	if side == enum.OrderSideSell {
		return ref + offset
	}
	return ref - offset
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
