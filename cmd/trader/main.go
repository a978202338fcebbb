package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/broker"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/journal"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/ops"
	"main/internal/pnl"
	"main/internal/position"
	"main/internal/trader"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		logs.Errorf("trader: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "config.yaml", "path to YAML config")
	pyroscopeFlag := flag.String("pyroscope", "", "pyroscope server address (empty=off)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configFlag)
	if err != nil {
		return err
	}

	if addr := *pyroscopeFlag; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "autotrader",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	var notifier notify.Port = notify.Logs{}
	if loaded.Notify.DiscordWebhook != "" {
		notifier = notify.NewDiscord(loaded.Notify.DiscordWebhook, "autotrader", nil)
	}

	queue := bus.NewQueue(1024)
	defer queue.Close()

	positions := position.NewManager(position.Option{
		SnapshotPath: filepath.Join(loaded.StateDir, "positions.json"),
		Observer: func(ch position.Change) {
			_ = queue.TryPublish(bus.Event{Kind: bus.KindPositionChanged, Position: &bus.PositionChange{
				Symbol:      ch.Symbol,
				Qty:         ch.Qty,
				AvgPrice:    ch.AvgPrice,
				PendingBuy:  ch.PendingBuy,
				PendingSell: ch.PendingSell,
			}})
		},
	})
	if err := positions.Restore(); err != nil {
		logs.Warnf("trader: restore positions, err: %+v", err)
	}

	ledger := pnl.NewAggregator(pnl.Option{
		InitialCash: loaded.InitialCash,
		Observer: func(snap pnl.Snapshot) {
			_ = queue.TryPublish(bus.Event{Kind: bus.KindPnLSnapshot, Snapshot: snap})
		},
	})

	resolver := account.Resolver{Injected: loaded.Accounts}
	token := func() string {
		if list := resolver.Resolve(); len(list) != 0 {
			return list[0].Token
		}
		return ""
	}

	adapter, err := broker.New(broker.FactoryOption{
		Vendor:  loaded.Vendor,
		BaseURL: loaded.Broker.BaseURL,
		FeeBps:  loaded.Broker.FeeBps,
		Token:   token,
		FillHook: func(f model.Fill) {
			applyFill(positions, ledger, loaded.Trader.Strategy, f)
		},
	})
	if err != nil {
		return err
	}
	fan := broker.NewFanout(adapter, resolver, loaded.Broker.Workers)
	engine := trader.New(loaded.Trader, fan, positions, queue)

	reconcilePositions(ctx, adapter, positions)

	var store *journal.Journal
	if loaded.Store.Enabled() {
		store, err = journal.Open(journal.Option{
			Host:     loaded.Store.Host,
			Port:     loaded.Store.Port,
			User:     loaded.Store.User,
			Password: loaded.Store.Password,
			Database: loaded.Store.Database,
		})
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			store.Handle(e)
			observe(e, notifier, positions, ledger, loaded)
		})
	}()

	conditions := loaded.Feed.Conditions
	if len(conditions) == 0 && loaded.Feed.ConditionsPath != "" {
		saved, err := feed.ReadConditions(loaded.Feed.ConditionsPath)
		if err != nil {
			logs.Warnf("trader: read saved conditions, err: %+v", err)
		}
		for _, c := range saved {
			conditions = append(conditions, c.ID)
		}
	}

	client, err := feed.NewClient(feed.Option{
		URL:            loaded.Feed.URL,
		Token:          token,
		Conditions:     conditions,
		ConditionsPath: loaded.Feed.ConditionsPath,
		DedupTTL:       loaded.Feed.DedupTTL,
		Heartbeat:      loaded.Feed.Heartbeat,
		Notifier:       notifier,
		OnSignal: func(sig model.TradeSignal) {
			// Ladder delays must not stall the feed reader.
			go engine.HandleSignal(ctx, sig)
		},
	})
	if err != nil {
		return err
	}

	notifier.Info("autotrader started, vendor=" + loaded.Vendor.String())
	err = client.Run(ctx)
	stop()
	wg.Wait()
	return err
}

// observe reacts to bus traffic: live submissions count as immediate fills
// (the REST API reports no executions), failures page the notifier.
func observe(e bus.Event, notifier notify.Port, positions *position.Manager, ledger *pnl.Aggregator, loaded ops.Loaded) {
	if e.Kind != bus.KindSubmit || e.Submit == nil {
		return
	}
	sub := e.Submit
	switch sub.Status {
	case enum.SubmitStatusLive:
		notional := sub.Price * float64(sub.Qty)
		applyFill(positions, ledger, loaded.Trader.Strategy, model.Fill{
			Symbol:    sub.Symbol,
			Side:      sub.Side,
			Qty:       sub.Qty,
			Price:     sub.Price,
			Fee:       notional * loaded.Broker.FeeBps / 10000,
			Timestamp: sub.Ts,
		})
	case enum.SubmitStatusFail:
		notifier.Error("submit failed: " + sub.Side.String() + " " + sub.Symbol + " " + sub.Detail)
	}
}

// reconcilePositions seeds local books from broker holdings on start. Only
// symbols the local snapshot knows nothing about are seeded; the snapshot
// stays authoritative for everything it tracks.
func reconcilePositions(ctx context.Context, adapter broker.AccountAdapter, positions *position.Manager) {
	lister, ok := adapter.(interface {
		Positions(context.Context) ([]broker.PositionRow, error)
	})
	if !ok {
		return
	}
	rows, err := lister.Positions(ctx)
	if err != nil {
		logs.Warnf("trader: fetch broker positions, err: %+v", err)
		return
	}
	for _, row := range rows {
		if positions.Qty(row.Symbol) != 0 {
			continue
		}
		qty, err := strconv.ParseInt(row.Qty, 10, 64)
		if err != nil || qty <= 0 {
			continue
		}
		avg, _ := strconv.ParseFloat(row.AvgPrice, 64)
		positions.ApplyFillBuy(row.Symbol, qty, avg)
		logs.Infof("trader: seeded %s qty=%d avg=%.2f from broker", row.Symbol, qty, avg)
	}
}

func applyFill(positions *position.Manager, ledger *pnl.Aggregator, strategy string, f model.Fill) {
	switch f.Side {
	case enum.OrderSideBuy:
		positions.ApplyFillBuy(f.Symbol, f.Qty, f.Price)
	case enum.OrderSideSell:
		positions.ApplyFillSell(f.Symbol, f.Qty, f.Price)
	}
	ledger.OnFill(strategy, f.Symbol, f.Side, f.Qty, f.Price, f.Fee)
}
