// Package feed implements the vendor WebSocket protocol client: login,
// keep-alive, condition-search subscriptions and the normalized signal
// stream consumed by the trader.
package feed

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
)

// State is the connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedIn
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLoggedIn:
		return "logged_in"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

var (
	ErrAuthRejected = errors.New("feed: login rejected")
	errDupSession   = errors.New("feed: duplicate session notice")
)

// Conn is the subset of *websocket.Conn the client uses; swapped by tests.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens the transport.
type Dialer func(ctx context.Context) (Conn, error)

// Condition is a named server-side screening rule.
type Condition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Option configures the client. URL and Token are required, the rest have
// working defaults.
type Option struct {
	URL   string
	Token account.TokenProvider
	// RefreshToken is called once after a rejected login; the returned token
	// is retried on the same socket.
	RefreshToken func(ctx context.Context) (string, error)
	// Conditions lists the condition IDs to subscribe after login.
	Conditions []string
	// OnSignal receives normalized inclusion candidates.
	OnSignal func(model.TradeSignal)
	// OnConditionList receives the condition-list snapshot. Optional.
	OnConditionList func([]Condition)
	// ResolveName enriches a code with its display name. Optional.
	ResolveName func(ctx context.Context, code string) (string, error)
	// ConditionsPath persists the last condition list when non-empty.
	ConditionsPath string
	// Notifier surfaces auth failures and suspends. Default: log-backed.
	Notifier notify.Port

	DedupTTL      time.Duration // default 30s
	Heartbeat     time.Duration // default 55s
	EnrichTimeout time.Duration // default 3s
	EnrichWorkers int           // default 4
	SuspendWindow time.Duration // default 60s
	Backoff       Backoff
	Dialer        Dialer // default: gorilla dialer to URL
}

func (opt *Option) withDefaults() {
	if opt.DedupTTL <= 0 {
		opt.DedupTTL = 30 * time.Second
	}
	if opt.Heartbeat <= 0 {
		opt.Heartbeat = 55 * time.Second
	}
	if opt.EnrichTimeout <= 0 {
		opt.EnrichTimeout = 3 * time.Second
	}
	if opt.EnrichWorkers <= 0 {
		opt.EnrichWorkers = 4
	}
	if opt.SuspendWindow <= 0 {
		opt.SuspendWindow = time.Minute
	}
	if opt.Backoff == (Backoff{}) {
		opt.Backoff = DefaultBackoff()
	}
	if opt.Notifier == nil {
		opt.Notifier = notify.Logs{}
	}
	if opt.Dialer == nil {
		url := opt.URL
		opt.Dialer = func(ctx context.Context) (Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}
}

// Client drives the protocol state machine. Create with NewClient, run with
// Run; it keeps reconnecting until the context ends.
type Client struct {
	opt   Option
	state atomic.Int32
	dedup *ttlSet

	// suspendUntil blocks reconnects after a duplicate-session notice.
	suspendUntil atomic.Int64

	enrichSem chan struct{}
	wg        sync.WaitGroup
}

// NewClient validates the option and builds a client.
func NewClient(opt Option) (*Client, error) {
	if opt.URL == "" && opt.Dialer == nil {
		return nil, errors.New("feed: empty url")
	}
	if opt.Token == nil {
		return nil, errors.New("feed: nil token provider")
	}
	opt.withDefaults()
	return &Client{
		opt:       opt,
		dedup:     newTTLSet(opt.DedupTTL),
		enrichSem: make(chan struct{}, opt.EnrichWorkers),
	}, nil
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Run connects and keeps the session alive until ctx is done. Transport
// errors never escape; they feed the reconnect loop.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		if wait := c.suspendRemaining(); wait > 0 {
			logs.Warnf("feed: suspended %.0fs after duplicate session", wait.Seconds())
			if !sleepCtx(ctx, wait) {
				continue
			}
		}

		c.setState(StateConnecting)
		conn, err := c.opt.Dialer(ctx)
		if err != nil {
			attempt++
			wait := c.opt.Backoff.Next(attempt)
			logs.Warnf("feed: connect failed (attempt %d, retry in %s), err: %+v", attempt, wait, err)
			c.setState(StateDisconnected)
			sleepCtx(ctx, wait)
			continue
		}
		// Connected; the next failure starts over from the floor.
		attempt = 0

		err = c.runSession(ctx, conn)
		_ = conn.Close()
		c.setState(StateDisconnected)

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == ErrAuthRejected:
			c.opt.Notifier.Error("feed: login rejected after token refresh, stopping")
			return err
		case err == errDupSession:
			// suspendUntil already set; next loop iteration waits it out.
		default:
			attempt++
			wait := c.opt.Backoff.Next(attempt)
			logs.Warnf("feed: session ended (retry in %s), err: %+v", wait, err)
			sleepCtx(ctx, wait)
			continue
		}
	}
}

// session owns one connected socket: a writer goroutine draining the single
// outbound queue, a heartbeat goroutine, and the reader running inline.
type session struct {
	client *Client
	conn   Conn
	out    chan []byte

	loginRetried bool
	loggedIn     atomic.Bool
}

func (c *Client) runSession(ctx context.Context, conn Conn) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{client: c, conn: conn, out: make(chan []byte, 256)}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop(sctx)
	}()
	go func() {
		defer wg.Done()
		s.heartbeatLoop(sctx)
	}()
	defer wg.Wait()
	defer cancel()

	if err := s.sendLogin(c.opt.Token()); err != nil {
		return err
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if sctx.Err() != nil {
				return sctx.Err()
			}
			return errors.Wrap(err, "read frame")
		}
		if err := s.dispatch(sctx, frame); err != nil {
			return err
		}
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case frame := <-s.out:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logs.Errorf("feed: write frame, err: %+v", err)
				_ = s.conn.Close() // force the reader out
				return
			}
		}
	}
}

// shutdown runs when the session context ends: best-effort CNSRCLR
// unsubscribes, then close the transport so the blocked reader exits.
func (s *session) shutdown() {
	if s.loggedIn.Load() {
		for _, id := range s.client.opt.Conditions {
			data, err := sonic.ConfigFastest.Marshal(condClearRequest{Trnm: TrnmCondClr, CondID: id})
			if err != nil {
				continue
			}
			_ = s.conn.WriteMessage(websocket.TextMessage, data)
		}
	}
	_ = s.conn.Close()
}

func (s *session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.client.opt.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendJSON(pingFrame{Trnm: TrnmPing})
		}
	}
}

// enqueue puts a frame on the single outbound queue; the writer goroutine is
// the only socket writer so frames are never interleaved.
func (s *session) enqueue(frame []byte) {
	select {
	case s.out <- frame:
	default:
		logs.Warnf("feed: outbound queue full, dropping frame")
	}
}

func (s *session) sendJSON(v any) {
	data, err := sonic.ConfigFastest.Marshal(v)
	if err != nil {
		logs.Errorf("feed: marshal frame, err: %+v", err)
		return
	}
	s.enqueue(data)
}

func (s *session) sendLogin(token string) error {
	if token == "" {
		return ErrAuthRejected
	}
	logs.Infof("feed: login with token %s", account.MaskToken(token))
	s.sendJSON(loginRequest{Trnm: TrnmLogin, Token: token})
	return nil
}

// dispatch routes one inbound frame. Malformed frames are logged and
// skipped; only auth rejection and the duplicate-session notice close the
// connection.
func (s *session) dispatch(ctx context.Context, frame []byte) error {
	var env envelope
	if err := sonic.ConfigFastest.Unmarshal(frame, &env); err != nil {
		logs.Warnf("feed: malformed frame skipped, err: %+v", err)
		return nil
	}

	switch env.Trnm {
	case TrnmLogin:
		return s.onLoginAck(ctx, frame)
	case TrnmPing:
		// Echo the server's keep-alive back unchanged.
		s.enqueue(frame)
	case TrnmCondLst:
		s.onConditionList(frame)
	case TrnmCondReq:
		s.onCondBatch(ctx, frame)
	case TrnmCondClr:
		logs.Debugf("feed: condition cleared")
	case TrnmReal:
		s.onReal(ctx, frame)
	case TrnmSystem:
		return s.onSystem(frame)
	default:
		logs.Warnf("feed: unrecognized frame type %q skipped", env.Trnm)
	}
	return nil
}

func (s *session) onLoginAck(ctx context.Context, frame []byte) error {
	var ack loginAck
	if err := sonic.ConfigFastest.Unmarshal(frame, &ack); err != nil {
		logs.Warnf("feed: malformed login ack, err: %+v", err)
		return nil
	}

	if ack.ReturnCode != 0 {
		if !s.loginRetried && s.client.opt.RefreshToken != nil {
			s.loginRetried = true
			logs.Warnf("feed: login rejected (%s), refreshing token", ack.ReturnMsg)
			token, err := s.client.opt.RefreshToken(ctx)
			if err != nil {
				logs.Errorf("feed: token refresh failed, err: %+v", err)
				return ErrAuthRejected
			}
			return s.sendLogin(token)
		}
		logs.Errorf("feed: login rejected: %s", ack.ReturnMsg)
		return ErrAuthRejected
	}

	s.loggedIn.Store(true)
	s.client.setState(StateLoggedIn)
	logs.Info("feed: logged in")

	// Ask for the condition list, then open every configured search.
	s.sendJSON(envelope{Trnm: TrnmCondLst})
	for _, id := range s.client.opt.Conditions {
		s.sendJSON(condSearchRequest{Trnm: TrnmCondReq, CondID: id, Search: "1"})
	}
	s.client.setState(StateStreaming)
	return nil
}

func (s *session) onConditionList(frame []byte) {
	var lst conditionListFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &lst); err != nil {
		logs.Warnf("feed: malformed condition list, err: %+v", err)
		return
	}
	conditions := make([]Condition, 0, len(lst.Data))
	for _, e := range lst.Data {
		conditions = append(conditions, Condition{ID: e.ID, Name: e.Name})
	}
	if path := s.client.opt.ConditionsPath; path != "" {
		if err := writeConditions(path, conditions); err != nil {
			logs.Errorf("feed: persist condition list, err: %+v", err)
		}
	}
	if s.client.opt.OnConditionList != nil {
		s.client.opt.OnConditionList(conditions)
	}
}

func (s *session) onCondBatch(ctx context.Context, frame []byte) {
	var batch condBatchFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &batch); err != nil {
		logs.Warnf("feed: malformed search batch, err: %+v", err)
		return
	}
	for _, row := range batch.Data {
		code := NormalizeCode(row.Code)
		if code == "" || !s.client.dedup.Check(code) {
			continue
		}
		price, _ := strconv.ParseFloat(row.Price.String(), 64)
		s.forward(ctx, model.TradeSignal{
			Side:      enum.OrderSideBuy,
			Symbol:    code,
			Name:      row.Name,
			RefPrice:  price,
			Reason:    "cond:" + batch.CondID,
			Timestamp: time.Now(),
		})
	}
}

func (s *session) onReal(ctx context.Context, frame []byte) {
	var real realFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &real); err != nil {
		logs.Warnf("feed: malformed real event, err: %+v", err)
		return
	}
	code := NormalizeCode(real.Code)
	if code == "" {
		return
	}
	if real.Event != "I" {
		// Exclusions are informational only.
		logs.Infof("feed: %s left condition %s", code, real.CondID)
		return
	}
	if !s.client.dedup.Check(code) {
		logs.Debugf("feed: duplicate inclusion for %s suppressed", code)
		return
	}
	price, _ := strconv.ParseFloat(real.Price.String(), 64)
	s.forward(ctx, model.TradeSignal{
		Side:      enum.OrderSideBuy,
		Symbol:    code,
		RefPrice:  price,
		Reason:    "cond:" + real.CondID,
		Timestamp: time.Now(),
	})
}

func (s *session) onSystem(frame []byte) error {
	var sys systemFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &sys); err != nil {
		logs.Warnf("feed: malformed system notice, err: %+v", err)
		return nil
	}
	if sys.Code == SystemCodeDupSession {
		until := time.Now().Add(s.client.opt.SuspendWindow)
		s.client.suspendUntil.Store(until.UnixNano())
		s.client.opt.Notifier.Warn("feed: duplicate session detected, suspending reconnects")
		return errDupSession
	}
	logs.Infof("feed: system notice %s: %s", sys.Code, sys.Msg)
	return nil
}

// forward delivers a signal, enriching the display name in a bounded
// background task first so the reader never blocks on enrichment.
func (s *session) forward(ctx context.Context, sig model.TradeSignal) {
	if s.client.opt.OnSignal == nil {
		return
	}
	if s.client.opt.ResolveName == nil || sig.Name != "" {
		s.client.opt.OnSignal(sig)
		return
	}

	select {
	case s.client.enrichSem <- struct{}{}:
	default:
		// All enrichment workers busy; forward unenriched instead of waiting.
		s.client.opt.OnSignal(sig)
		return
	}

	s.client.wg.Add(1)
	go func() {
		defer s.client.wg.Done()
		defer func() { <-s.client.enrichSem }()

		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.client.opt.EnrichTimeout)
		defer cancel()
		name, err := s.client.opt.ResolveName(ectx, sig.Symbol)
		if err != nil {
			logs.Warnf("feed: enrich %s failed, forwarding bare, err: %+v", sig.Symbol, err)
		} else {
			sig.Name = name
		}
		s.client.opt.OnSignal(sig)
	}()
}

func (c *Client) suspendRemaining() time.Duration {
	until := c.suspendUntil.Load()
	if until == 0 {
		return 0
	}
	remain := time.Until(time.Unix(0, until))
	if remain <= 0 {
		c.suspendUntil.Store(0)
		return 0
	}
	return remain
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func writeConditions(path string, conditions []Condition) error {
	data, err := json.MarshalIndent(conditions, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadConditions loads the persisted condition list snapshot.
func ReadConditions(path string) ([]Condition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var conditions []Condition
	if err := json.Unmarshal(data, &conditions); err != nil {
		return nil, err
	}
	return conditions, nil
}
