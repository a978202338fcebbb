package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestRestPlaceOrder(t *testing.T) {
	var gotAuth, gotAPIID string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("authorization")
		gotAPIID = r.Header.Get("api-id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"return_code": 0,
			"return_msg":  "ok",
			"ord_no":      "20250314-0001",
		})
	}))
	defer srv.Close()

	r := NewRest(srv.Client(), srv.URL, func() string { return "secret-token-12345678" })
	resp, err := r.PlaceOrder(context.Background(), model.Order{
		Side:   enum.OrderSideBuy,
		Symbol: "005930",
		Qty:    10,
		Type:   enum.OrderTypeLimit,
		Price:  71000,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "20250314-0001", resp.OrderID)
	assert.Equal(t, "Bearer secret-token-12345678", gotAuth)
	assert.Equal(t, "kt10000", gotAPIID)
	assert.Equal(t, "005930", gotBody["symbol"])
	assert.Equal(t, "10", gotBody["qty"])
	assert.Equal(t, "71000", gotBody["price"])
	assert.Equal(t, "limit", gotBody["order_type"])
}

func TestRestSellUsesSellAPIID(t *testing.T) {
	var gotAPIID, gotPrice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIID = r.Header.Get("api-id")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPrice = body["price"]
		_ = json.NewEncoder(w).Encode(map[string]any{"return_code": 0})
	}))
	defer srv.Close()

	r := NewRest(srv.Client(), srv.URL, func() string { return "secret-token-12345678" })
	_, err := r.PlaceOrder(context.Background(), model.Order{
		Side:   enum.OrderSideSell,
		Symbol: "005930",
		Qty:    3,
		Type:   enum.OrderTypeMarket,
	})
	require.NoError(t, err)

	assert.Equal(t, "kt10001", gotAPIID)
	// Market orders go out with an empty price.
	assert.Empty(t, gotPrice)
}

func TestRestEmptyTokenIsHardError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	r := NewRest(srv.Client(), srv.URL, func() string { return "" })
	resp, err := r.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})

	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.Equal(t, 599, resp.Status)
	assert.False(t, called)
}

func TestRestBodyRejectionBecomes400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"return_code": 8005,
			"return_msg":  "insufficient balance",
		})
	}))
	defer srv.Close()

	r := NewRest(srv.Client(), srv.URL, func() string { return "secret-token-12345678" })
	resp, err := r.PlaceOrder(context.Background(), model.Order{Symbol: "005930", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "insufficient balance", resp.Message)
}

func TestRestPositionsPagination(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "kt00018", r.Header.Get("api-id"))
		switch page {
		case 0:
			require.Empty(t, r.Header.Get("cont-yn"))
			w.Header().Set("cont-yn", "Y")
			w.Header().Set("next-key", "k1")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rows": []map[string]string{{"symbol": "005930", "qty": "10"}},
			})
		default:
			require.Equal(t, "Y", r.Header.Get("cont-yn"))
			require.Equal(t, "k1", r.Header.Get("next-key"))
			w.Header().Set("cont-yn", "N")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rows": []map[string]string{{"symbol": "000660", "qty": "5"}},
			})
		}
		page++
	}))
	defer srv.Close()

	r := NewRest(srv.Client(), srv.URL, func() string { return "secret-token-12345678" })
	rows, err := r.Positions(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "005930", rows[0].Symbol)
	assert.Equal(t, "000660", rows[1].Symbol)
	assert.Equal(t, 2, page)
}

func TestSimulatorFill(t *testing.T) {
	var fill model.Fill
	sim := NewSimulator(10, func(f model.Fill) { fill = f }) // 10 bps

	resp, err := sim.PlaceOrder(context.Background(), model.Order{
		Side:   enum.OrderSideBuy,
		Symbol: "005930",
		Qty:    100,
		Type:   enum.OrderTypeLimit,
		Price:  50,
	})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "005930", fill.Symbol)
	assert.InDelta(t, 50, fill.Price, 1e-9)
	// 100*50 * 10/10000
	assert.InDelta(t, 5, fill.Fee, 1e-9)
}
