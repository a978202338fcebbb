package broker

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

var _ AccountAdapter = (*Simulator)(nil)

// Simulator fills every order synchronously and deterministically: market
// orders at the carried reference price, limit orders at the limit price,
// fee = notional * feeBps / 10000.
type Simulator struct {
	feeBps   float64
	fillHook func(model.Fill)
	seq      atomic.Uint64
}

// NewSimulator creates a simulator. fillHook receives every synthetic fill
// and may be nil.
func NewSimulator(feeBps float64, fillHook func(model.Fill)) *Simulator {
	return &Simulator{feeBps: feeBps, fillHook: fillHook}
}

// Name returns "simulator".
func (s *Simulator) Name() string {
	return enum.VendorSimulator.String()
}

// PlaceOrder synthesizes an immediate full fill.
func (s *Simulator) PlaceOrder(_ context.Context, order model.Order) (model.BrokerResponse, error) {
	price := s.fillPrice(order)
	notional := price * float64(order.Qty)
	fee := notional * s.feeBps / 10000

	if s.fillHook != nil {
		s.fillHook(model.Fill{
			Symbol:    order.Symbol,
			Side:      order.Side,
			Qty:       order.Qty,
			Price:     price,
			Fee:       fee,
			Timestamp: time.Now(),
		})
	}

	id := s.seq.Add(1)
	return model.BrokerResponse{
		Status:  200,
		OrderID: "sim-" + strconv.FormatUint(id, 10),
		Summary: model.BrokerSummary{Total: 1, Success: 1},
	}, nil
}

// PlaceForAccount behaves like PlaceOrder regardless of the account.
func (s *Simulator) PlaceForAccount(ctx context.Context, order model.Order, _ model.AccountContext) (int, error) {
	resp, err := s.PlaceOrder(ctx, order)
	if err != nil {
		return 500, err
	}
	return resp.Status, nil
}

func (s *Simulator) fillPrice(order model.Order) float64 {
	if order.Type == enum.OrderTypeLimit {
		return order.Price
	}
	// Market orders carry the reference price in Price; zero when unknown.
	return order.Price
}
