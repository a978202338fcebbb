package broker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/model"
	"main/internal/model/enum"
)

func TestAggregate(t *testing.T) {
	cases := []struct {
		name       string
		statuses   []int
		wantStatus int
		wantOK     int
		wantFail   int
	}{
		{"all success", []int{200, 201, 204}, 200, 3, 0},
		{"mixed", []int{200, 200, 500}, 207, 2, 1},
		{"all failed", []int{503, 500}, 503, 0, 2},
		{"single failure", []int{401}, 401, 0, 1},
		{"empty", nil, 500, 0, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			results := make([]model.AccountResult, len(c.statuses))
			for i, s := range c.statuses {
				results[i].Status = s
			}
			status, summary := Aggregate(results)
			assert.Equal(t, c.wantStatus, status)
			assert.Equal(t, len(c.statuses), summary.Total)
			assert.Equal(t, c.wantOK, summary.Success)
			assert.Equal(t, c.wantFail, summary.Failed)
		})
	}
}

type stubAccountAdapter struct {
	mu     sync.Mutex
	calls  []string
	status map[string]int
	panics map[string]bool
}

func (s *stubAccountAdapter) Name() string { return "stub" }

func (s *stubAccountAdapter) PlaceOrder(context.Context, model.Order) (model.BrokerResponse, error) {
	return model.BrokerResponse{Status: 200}, nil
}

func (s *stubAccountAdapter) PlaceForAccount(_ context.Context, _ model.Order, acct model.AccountContext) (int, error) {
	s.mu.Lock()
	s.calls = append(s.calls, acct.Account)
	s.mu.Unlock()
	if s.panics[acct.Account] {
		panic("boom")
	}
	if code, ok := s.status[acct.Account]; ok {
		return code, nil
	}
	return 200, nil
}

func accounts(n int) []model.AccountContext {
	out := make([]model.AccountContext, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.AccountContext{
			Token:   "token-123456789012345",
			Account: string(rune('a' + i)),
			Enabled: true,
		})
	}
	return out
}

func TestFanoutAllSuccess(t *testing.T) {
	stub := &stubAccountAdapter{}
	f := NewFanout(stub, account.Resolver{Injected: accounts(3)}, 2)

	resp, err := f.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Side: enum.OrderSideBuy, Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, model.BrokerSummary{Total: 3, Success: 3}, resp.Summary)
	assert.Len(t, stub.calls, 3)
}

func TestFanoutPartialFailure(t *testing.T) {
	stub := &stubAccountAdapter{status: map[string]int{"c": 500}}
	f := NewFanout(stub, account.Resolver{Injected: accounts(3)}, 4)

	resp, err := f.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 207, resp.Status)
	assert.Equal(t, model.BrokerSummary{Total: 3, Success: 2, Failed: 1}, resp.Summary)
}

func TestFanoutEmptyTokenShortCircuits(t *testing.T) {
	stub := &stubAccountAdapter{}
	accts := accounts(2)
	accts[1].Token = ""
	f := NewFanout(stub, account.Resolver{Injected: accts}, 4)

	resp, err := f.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 207, resp.Status)
	assert.Equal(t, 599, resp.Results[1].Status)
	// No network call for the tokenless account.
	assert.Len(t, stub.calls, 1)
}

func TestFanoutWorkerPanicBecomesFailure(t *testing.T) {
	stub := &stubAccountAdapter{panics: map[string]bool{"a": true}}
	f := NewFanout(stub, account.Resolver{Injected: accounts(2)}, 4)

	resp, err := f.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 207, resp.Status)
	assert.Equal(t, 500, resp.Results[0].Status)
	assert.Contains(t, resp.Results[0].Error, "panic")
}

func TestFanoutEmptyResolution(t *testing.T) {
	stub := &stubAccountAdapter{}
	f := NewFanout(stub, account.Resolver{}, 4)

	resp, err := f.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, 500, resp.Status)
	assert.Zero(t, resp.Summary.Total)
}
