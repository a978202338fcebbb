package ladder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestSplitConservesQty(t *testing.T) {
	cases := []struct {
		qty    int64
		n      int
		minQty int64
		want   []int64
	}{
		{100, 4, 0, []int64{25, 25, 25, 25}},
		{10, 3, 0, []int64{3, 3, 4}},
		{7, 10, 0, []int64{1, 1, 1, 1, 1, 1, 1}},
		{100, 5, 30, []int64{33, 33, 34}},
		{5, 3, 10, []int64{5}},
		{1, 1, 0, []int64{1}},
	}
	for _, c := range cases {
		got := Split(c.qty, c.n, c.minQty)
		var sum int64
		for _, s := range got {
			sum += s
		}
		assert.Equal(t, c.qty, sum, "qty=%d n=%d min=%d", c.qty, c.n, c.minQty)
		assert.Equal(t, c.want, got)
	}
}

func TestSlicePrice(t *testing.T) {
	assert.InDelta(t, 100, SlicePrice(enum.OrderSideBuy, 100, 0.5, 0), 1e-9)
	assert.InDelta(t, 99, SlicePrice(enum.OrderSideBuy, 100, 0.5, 2), 1e-9)
	assert.InDelta(t, 101.5, SlicePrice(enum.OrderSideSell, 100, 0.5, 3), 1e-9)
}

func collectSubmits(orders *[]model.Order) SubmitFunc {
	return func(_ context.Context, o model.Order) error {
		*orders = append(*orders, o)
		return nil
	}
}

func TestExecuteBuyLadder(t *testing.T) {
	var orders []model.Order
	e := NewExecutor(Config{SliceCount: 3, Tick: 10}, collectSubmits(&orders), nil)

	res := e.Execute(context.Background(), enum.OrderSideBuy, "005930", 10, 70000, 0)

	require.Len(t, orders, 3)
	assert.EqualValues(t, 10, res.SubmittedQty())
	assert.InDelta(t, 70000, orders[0].Price, 1e-9)
	assert.InDelta(t, 69990, orders[1].Price, 1e-9)
	assert.InDelta(t, 69980, orders[2].Price, 1e-9)
	assert.EqualValues(t, 4, orders[2].Qty) // remainder lands on the last slice
}

func TestExecuteSellClampsToHeld(t *testing.T) {
	var orders []model.Order
	e := NewExecutor(Config{SliceCount: 2, Tick: 5}, collectSubmits(&orders), nil)

	res := e.Execute(context.Background(), enum.OrderSideSell, "005930", 20, 1000, 8)

	assert.EqualValues(t, 8, res.SubmittedQty())
	for _, o := range orders {
		assert.GreaterOrEqual(t, o.Price, 1000.0)
	}
}

func TestExecuteZeroHeldSellIsNoop(t *testing.T) {
	var orders []model.Order
	e := NewExecutor(Config{SliceCount: 2}, collectSubmits(&orders), nil)

	res := e.Execute(context.Background(), enum.OrderSideSell, "005930", 20, 1000, 0)
	assert.Empty(t, orders)
	assert.Zero(t, res.SubmittedQty())
}

func TestExecuteGateStopsUnsentSlices(t *testing.T) {
	var orders []model.Order
	calls := 0
	gate := func() bool {
		calls++
		return calls <= 2 // close the gate before the third slice
	}
	e := NewExecutor(Config{SliceCount: 4}, collectSubmits(&orders), gate)

	res := e.Execute(context.Background(), enum.OrderSideBuy, "005930", 8, 100, 0)

	assert.Len(t, orders, 2)
	assert.Equal(t, 2, res.Skipped)
}

func TestExecuteContextCancelSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var orders []model.Order
	submit := func(_ context.Context, o model.Order) error {
		orders = append(orders, o)
		cancel() // cancel mid-sequence after the first slice goes out
		return nil
	}
	e := NewExecutor(Config{SliceCount: 3}, submit, nil)

	res := e.Execute(ctx, enum.OrderSideBuy, "005930", 9, 100, 0)

	assert.Len(t, orders, 1)
	assert.Equal(t, 2, res.Skipped)
}
