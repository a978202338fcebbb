package position

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveThenFillBuy(t *testing.T) {
	m := NewManager(Option{})
	m.ReserveBuy("005930", 5)

	buy, sell := m.Pending("005930")
	require.EqualValues(t, 5, buy)
	require.EqualValues(t, 0, sell)

	m.ApplyFillBuy("005930", 5, 100.0)

	assert.EqualValues(t, 5, m.Qty("005930"))
	assert.InDelta(t, 100.0, m.AvgPrice("005930"), 1e-9)
	buy, _ = m.Pending("005930")
	assert.EqualValues(t, 0, buy)
}

func TestBuyFillsWeightedAverage(t *testing.T) {
	m := NewManager(Option{})
	fills := []struct {
		qty   int64
		price float64
	}{
		{10, 100}, {20, 110}, {5, 90}, {65, 103.5},
	}

	var totalQty int64
	var totalNotional float64
	for _, f := range fills {
		m.ApplyFillBuy("035720", f.qty, f.price)
		totalQty += f.qty
		totalNotional += f.price * float64(f.qty)
	}

	assert.EqualValues(t, totalQty, m.Qty("035720"))
	assert.InDelta(t, totalNotional/float64(totalQty), m.AvgPrice("035720"), 1e-9)
}

func TestSellFillClampsAndResetsAvg(t *testing.T) {
	m := NewManager(Option{})
	m.ApplyFillBuy("000660", 8, 50000)

	// Requesting more than held never goes negative.
	m.ApplyFillSell("000660", 20, 51000)

	assert.EqualValues(t, 0, m.Qty("000660"))
	assert.Zero(t, m.AvgPrice("000660"))
}

func TestPartialSellKeepsAvg(t *testing.T) {
	m := NewManager(Option{})
	m.ApplyFillBuy("000660", 10, 50000)
	m.ApplyFillSell("000660", 4, 52000)

	assert.EqualValues(t, 6, m.Qty("000660"))
	assert.InDelta(t, 50000, m.AvgPrice("000660"), 1e-9)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	m := NewManager(Option{})
	m.ReserveSell("005930", 3)
	m.ReleaseSell("005930", 10)

	_, sell := m.Pending("005930")
	assert.EqualValues(t, 0, sell)
}

func TestObserverReceivesChanges(t *testing.T) {
	var got []Change
	m := NewManager(Option{Observer: func(c Change) { got = append(got, c) }})

	m.ReserveBuy("005930", 5)
	m.ApplyFillBuy("005930", 5, 100)

	require.Len(t, got, 2)
	assert.EqualValues(t, 5, got[0].PendingBuy)
	assert.EqualValues(t, 5, got[1].Qty)
	assert.EqualValues(t, 0, got[1].PendingBuy)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")

	m := NewManager(Option{SnapshotPath: path})
	m.ApplyFillBuy("005930", 10, 71000)
	m.ReserveSell("005930", 4)

	restored := NewManager(Option{SnapshotPath: path})
	require.NoError(t, restored.Restore())

	assert.EqualValues(t, 10, restored.Qty("005930"))
	assert.InDelta(t, 71000, restored.AvgPrice("005930"), 1e-9)
	_, sell := restored.Pending("005930")
	assert.EqualValues(t, 4, sell)
}
