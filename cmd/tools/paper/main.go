// Paper runs the execution engine against the simulator broker with a
// synthetic signal stream and prints the resulting PnL report. Useful for
// checking sizing, ladder and ledger settings before going live.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/ladder"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/pnl"
	"main/internal/position"
	"main/internal/trader"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("paper: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	symbolsFlag := flag.String("symbols", "005930,000660,035420", "comma-separated symbol codes")
	roundsFlag := flag.Int("rounds", 20, "buy/sell rounds per symbol")
	qtyFlag := flag.Int64("qty", 10, "fixed quantity per order")
	cashFlag := flag.Float64("cash", 10_000_000, "initial cash")
	feeFlag := flag.Float64("fee-bps", 1.5, "fee in basis points")
	ladderFlag := flag.Bool("ladder", false, "slice buys through the ladder executor")
	seedFlag := flag.Int64("seed", 1, "price walk seed")
	flag.Parse()

	symbols := strings.Split(*symbolsFlag, ",")
	rng := rand.New(rand.NewSource(*seedFlag))

	queue := bus.NewQueue(4096)
	defer queue.Close()
	go queue.Run(context.Background(), func(bus.Event) {})

	positions := position.NewManager(position.Option{})
	ledger := pnl.NewAggregator(pnl.Option{InitialCash: *cashFlag})

	sim := broker.NewSimulator(*feeFlag, func(f model.Fill) {
		switch f.Side {
		case enum.OrderSideBuy:
			positions.ApplyFillBuy(f.Symbol, f.Qty, f.Price)
		case enum.OrderSideSell:
			positions.ApplyFillSell(f.Symbol, f.Qty, f.Price)
		}
		ledger.OnFill("paper", f.Symbol, f.Side, f.Qty, f.Price, f.Fee)
	})

	engine := trader.New(trader.Config{
		Strategy:  "paper",
		FixedQty:  *qtyFlag,
		LadderBuy: *ladderFlag,
		Ladder:    ladder.Config{SliceCount: 4, MinQty: 1, Tick: 10},
	}, sim, positions, queue)

	ctx := context.Background()
	for round := 0; round < *roundsFlag; round++ {
		for _, symbol := range symbols {
			symbol = strings.TrimSpace(symbol)
			if symbol == "" {
				continue
			}
			price := 50000 + rng.Float64()*50000
			engine.HandleSignal(ctx, model.TradeSignal{
				Side:      enum.OrderSideBuy,
				Symbol:    symbol,
				RefPrice:  price,
				Reason:    "paper",
				Timestamp: time.Now(),
			})
			// Exit on a drifted price so realized PnL is nonzero.
			exit := price * (0.97 + rng.Float64()*0.06)
			engine.HandleSignal(ctx, model.TradeSignal{
				Side:      enum.OrderSideSell,
				Symbol:    symbol,
				RefPrice:  exit,
				Reason:    "paper",
				Timestamp: time.Now(),
			})
		}
	}

	report, err := sonic.ConfigFastest.MarshalIndent(ledger.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(report))
	return nil
}
