// Command install-bars ingests daily OHLC bars from CSV files into
// ClickHouse, keyed by symbol and day. Re-running on the same files is
// safe: the table deduplicates on (symbol, day) keeping the newest
// version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"goldbach-backtester/services/backtest"
	ch "goldbach-backtester/services/clickhouse"
)

func main() {
	symbol := flag.String("symbol", "", "Symbol to store the bars under (required)")
	flag.Parse()

	if *symbol == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: install-bars -symbol SYM file.csv [file.csv ...]")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := ch.Open(ctx, ch.DefaultConfig(), logger)
	if err != nil {
		logger.Fatal("clickhouse connect failed", zap.Error(err))
	}
	defer client.Close()

	total := 0
	for _, path := range flag.Args() {
		bars, err := backtest.LoadCSV(path, logger)
		if err != nil {
			logger.Fatal("load failed", zap.String("path", path), zap.Error(err))
		}

		rows := make([]ch.BarRow, 0, len(bars))
		for _, b := range bars {
			rows = append(rows, ch.BarRow{
				Symbol: *symbol,
				Day:    b.Time,
				Open:   b.Open.InexactFloat64(),
				High:   b.High.InexactFloat64(),
				Low:    b.Low.InexactFloat64(),
				Close:  b.Close.InexactFloat64(),
				Volume: b.Volume.InexactFloat64(),
			})
		}

		if err := client.InsertBars(ctx, rows); err != nil {
			logger.Fatal("insert failed", zap.String("path", path), zap.Error(err))
		}
		total += len(rows)
		logger.Info("installed", zap.String("path", path), zap.Int("bars", len(rows)))
	}

	logger.Info("done", zap.String("symbol", *symbol), zap.Int("total_bars", total))
}
