package broker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/model"
	"main/internal/model/enum"
)

const (
	_orderPath     = "/api/dostk/ordr"
	_positionsPath = "/api/dostk/acnt"

	_apiIDBuy       = "kt10000"
	_apiIDSell      = "kt10001"
	_apiIDPositions = "kt00018"

	_restTimeout = 15 * time.Second
)

var _ AccountAdapter = (*Rest)(nil)

// Rest places orders against the vendor order REST endpoint.
type Rest struct {
	client  *http.Client
	baseURL string
	token   account.TokenProvider
}

// NewRest creates a REST broker. token resolves the default bearer token for
// the single-account path.
func NewRest(client *http.Client, baseURL string, token account.TokenProvider) *Rest {
	if client == nil {
		client = &http.Client{}
	}
	return &Rest{client: client, baseURL: baseURL, token: token}
}

// Name returns the vendor identifier.
func (r *Rest) Name() string {
	return enum.VendorKiwoom.String()
}

type orderBody struct {
	Symbol    string `json:"symbol"`
	Qty       string `json:"qty"`
	Price     string `json:"price"` // empty for market orders
	OrderType string `json:"order_type"`
}

type orderReply struct {
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
	OrderNo    string `json:"ord_no"`
}

// PlaceOrder submits one order with the default token. An empty token is a
// hard error and no call is made.
func (r *Rest) PlaceOrder(ctx context.Context, order model.Order) (model.BrokerResponse, error) {
	var token string
	if r.token != nil {
		token = r.token()
	}
	if token == "" {
		return model.BrokerResponse{Status: 599}, ErrEmptyToken
	}
	status, reply, err := r.submit(ctx, order, token)
	if err != nil {
		return model.BrokerResponse{Status: status}, err
	}
	return model.BrokerResponse{
		Status:  status,
		OrderID: reply.OrderNo,
		Message: reply.ReturnMsg,
		Summary: model.BrokerSummary{Total: 1, Success: boolToInt(status >= 200 && status < 300), Failed: boolToInt(status < 200 || status >= 300)},
	}, nil
}

// PlaceForAccount submits one order with the account's own token.
func (r *Rest) PlaceForAccount(ctx context.Context, order model.Order, acct model.AccountContext) (int, error) {
	if acct.Token == "" {
		return 599, ErrEmptyToken
	}
	status, _, err := r.submit(ctx, order, acct.Token)
	return status, err
}

func (r *Rest) submit(ctx context.Context, order model.Order, token string) (int, orderReply, error) {
	var reply orderReply

	body := orderBody{
		Symbol:    order.Symbol,
		Qty:       strconv.FormatInt(order.Qty, 10),
		OrderType: orderTypeCode(order.Type),
	}
	if order.Type == enum.OrderTypeLimit {
		body.Price = strconv.FormatFloat(order.Price, 'f', -1, 64)
	}

	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return 500, reply, err
	}

	ctx, cancel := context.WithTimeout(ctx, _restTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+_orderPath, bytes.NewReader(payload))
	if err != nil {
		return 500, reply, err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("authorization", "Bearer "+token)
	if order.Side == enum.OrderSideSell {
		req.Header.Set("api-id", _apiIDSell)
	} else {
		req.Header.Set("api-id", _apiIDBuy)
	}

	logs.Debugf("broker: submit %s %s qty=%d token=%s",
		order.Side, order.Symbol, order.Qty, account.MaskToken(token))

	resp, err := r.client.Do(req)
	if err != nil {
		return 500, reply, errors.Wrap(err, "post order")
	}
	defer resp.Body.Close()

	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&reply); err != nil && err != io.EOF {
		return resp.StatusCode, reply, errors.Wrap(err, "decode order reply")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && reply.ReturnCode != 0 {
		// Vendor signals rejection in the body even on HTTP 200.
		return 400, reply, nil
	}
	return resp.StatusCode, reply, nil
}

// PositionRow is one holding row from the vendor account endpoint.
type PositionRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Qty      string `json:"qty"`
	AvgPrice string `json:"avg_price"`
}

type positionsReply struct {
	Rows []PositionRow `json:"rows"`
}

// Positions fetches all holdings, following cont-yn/next-key pagination
// headers until the server reports no continuation.
func (r *Rest) Positions(ctx context.Context) ([]PositionRow, error) {
	var token string
	if r.token != nil {
		token = r.token()
	}
	if token == "" {
		return nil, ErrEmptyToken
	}

	var (
		rows    []PositionRow
		contYN  string
		nextKey string
	)
	for {
		page, cont, next, err := r.positionsPage(ctx, token, contYN, nextKey)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if cont != "Y" {
			return rows, nil
		}
		contYN, nextKey = cont, next
	}
}

func (r *Rest) positionsPage(ctx context.Context, token, contYN, nextKey string) ([]PositionRow, string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, _restTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+_positionsPath, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, "", "", err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("api-id", _apiIDPositions)
	if contYN != "" {
		req.Header.Set("cont-yn", contYN)
		req.Header.Set("next-key", nextKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", "", errors.Wrap(err, "fetch positions")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", "", errors.Errorf("fetch positions, status: %d", resp.StatusCode)
	}
	var reply positionsReply
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&reply); err != nil && err != io.EOF {
		return nil, "", "", errors.Wrap(err, "decode positions reply")
	}
	return reply.Rows, resp.Header.Get("cont-yn"), resp.Header.Get("next-key"), nil
}

func orderTypeCode(t enum.OrderType) string {
	if t == enum.OrderTypeLimit {
		return "limit"
	}
	return "market"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
