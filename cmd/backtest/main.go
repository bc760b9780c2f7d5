// Command backtest replays daily bars from a CSV file or ClickHouse
// through the Goldbach engine and prints the performance report.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"goldbach-backtester/services/backtest"
	ch "goldbach-backtester/services/clickhouse"
	"goldbach-backtester/services/engine"
	"goldbach-backtester/services/feed"
)

func main() {
	// Flags
	csvPath := flag.String("csv", "", "Path to local OHLC CSV; if set, skip ClickHouse")
	symbol := flag.String("symbol", "NQ", "Trading symbol")
	from := flag.String("from", "", "Start date (YYYY-MM-DD), ClickHouse source only")
	to := flag.String("to", "", "End date (YYYY-MM-DD), ClickHouse source only")

	capital := flag.Float64("capital", 10000, "Initial capital")
	sizePct := flag.Float64("size-pct", 1, "Position size, percent of capital per trade")
	commission := flag.Float64("commission", 0, "Commission per fill")
	slippage := flag.Float64("slippage", 0, "Slippage points per fill")
	minStrength := flag.String("min-strength", string(engine.StrengthMedium), "Minimum signal strength (WEAK..PERFECT)")
	cycles := flag.String("amd-cycles", "M,D1", "Comma-separated AMD cycles allowed for entry")
	requireGBTime := flag.Bool("require-gb-time", false, "Only enter on Goldbach-confirmed timestamps")
	noStop := flag.Bool("no-stop", false, "Disable stop-loss exits")
	maxBars := flag.Int("max-bars", 50, "Maximum bars a trade may stay open")
	po3 := flag.Int("po3", engine.DefaultPO3, "PO3 dealing range size")

	tradesOut := flag.String("trades", "", "Write the trade list as JSON to this path")
	statsOut := flag.String("stats", "", "Write the statistics as JSON to this path")
	monteCarlo := flag.Int("montecarlo", 0, "Run N Monte Carlo resamples after the backtest")
	wfFolds := flag.Int("walkforward", 0, "Run walk-forward validation with N folds")
	wfPct := flag.Float64("in-sample-pct", 0.7, "In-sample fraction per walk-forward fold")
	verbose := flag.Bool("verbose", false, "Log every trade as it closes")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	cfg := backtest.DefaultConfig()
	cfg.InitialCapital = decimal.NewFromFloat(*capital)
	cfg.PositionSizePct = decimal.NewFromFloat(*sizePct)
	cfg.Commission = decimal.NewFromFloat(*commission)
	cfg.Slippage = decimal.NewFromFloat(*slippage)
	cfg.UseStopLoss = !*noStop
	cfg.RequireGoldbachTime = *requireGBTime
	cfg.MaxBarsInTrade = *maxBars
	cfg.PO3Size = *po3

	strength := engine.Strength(strings.ToUpper(*minStrength))
	if engine.StrengthRank(strength) < 0 {
		fmt.Fprintf(os.Stderr, "unknown signal strength %q\n", *minStrength)
		os.Exit(1)
	}
	cfg.MinSignalStrength = strength

	cfg.AllowedAMDCycles = cfg.AllowedAMDCycles[:0]
	for _, c := range strings.Split(*cycles, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cfg.AllowedAMDCycles = append(cfg.AllowedAMDCycles, engine.AMDCycle(c))
		}
	}

	bars, err := loadBars(*csvPath, *symbol, *from, *to, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d bars\n", len(bars))

	bt := backtest.New(cfg, logger)
	if _, err := bt.Run(bars, *symbol); err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(bt.Report())

	if *tradesOut != "" {
		if err := bt.ExportTrades(*tradesOut); err != nil {
			fmt.Fprintf(os.Stderr, "trade export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Trades written to %s\n", *tradesOut)
	}
	if *statsOut != "" {
		if err := bt.ExportStatistics(*statsOut); err != nil {
			fmt.Fprintf(os.Stderr, "stats export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Statistics written to %s\n", *statsOut)
	}

	if *monteCarlo > 0 {
		printMonteCarlo(bt, *monteCarlo)
	}

	// Walk-forward reruns the engine fold by fold and replaces its
	// ledger, so it goes last.
	if *wfFolds > 0 {
		printWalkForward(bt, bars, *symbol, *wfPct, *wfFolds)
	}
}

func loadBars(csvPath, symbol, from, to string, logger *zap.Logger) ([]backtest.Bar, error) {
	if csvPath != "" {
		clean, err := preprocessCSV(csvPath)
		if err != nil {
			return nil, fmt.Errorf("preprocess %s: %w", csvPath, err)
		}
		if clean != csvPath {
			defer os.Remove(clean)
		}
		return backtest.LoadCSV(clean, logger)
	}

	if from == "" || to == "" {
		return nil, fmt.Errorf("either -csv or both -from and -to are required")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, fmt.Errorf("invalid -from: %w", err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, fmt.Errorf("invalid -to: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := ch.Open(ctx, ch.DefaultConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	defer client.Close()

	provider := feed.NewClickHouseProvider(client)
	bars, err := provider.DailyHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s bars: %w", symbol, err)
	}
	return bars, nil
}

// preprocessCSV rewrites exports that the CSV reader cannot take
// directly: UTF-16 files are decoded and stray quotes stripped. Clean
// UTF-8 input is passed through untouched.
func preprocessCSV(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	head := make([]byte, 2)
	n, _ := io.ReadFull(in, head)
	utf16BOM := n == 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF))
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if !utf16BOM {
		return path, nil
	}

	var reader io.Reader = transform.NewReader(in, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())

	out, err := os.CreateTemp("", "bars-*.csv")
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "\ufeff")
		if line == "" {
			continue
		}
		w.WriteString(strings.ReplaceAll(line, "\"", ""))
		w.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	if err := w.Flush(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func printMonteCarlo(bt *backtest.Engine, sims int) {
	result := bt.MonteCarlo(sims)
	if result == nil {
		fmt.Println("Monte Carlo skipped: no trades")
		return
	}
	fmt.Printf("\nMONTE CARLO (%d simulations)\n", result.Simulations)
	fmt.Printf("  Final capital:  mean %.2f  std %.2f  p5 %.2f  p95 %.2f\n",
		result.FinalCapital.Mean, result.FinalCapital.Std,
		result.FinalCapital.P5, result.FinalCapital.P95)
	fmt.Printf("  Max drawdown:   mean %.2f%%  p95 %.2f%%\n",
		result.MaxDrawdown.Mean, result.MaxDrawdown.P95)
	fmt.Printf("  Risk of ruin:   %.2f%%\n", result.RiskOfRuin)
}

func printWalkForward(bt *backtest.Engine, bars []backtest.Bar, symbol string, pct float64, folds int) {
	results, err := bt.WalkForward(bars, symbol, pct, folds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk-forward failed: %v\n", err)
		return
	}
	fmt.Printf("\nWALK-FORWARD (%d folds, %.0f%% in-sample)\n", folds, pct*100)
	for _, f := range results {
		fmt.Printf("  Fold %d: IS %d trades WR %.1f%% | OOS %d trades WR %.1f%% | robustness %.0f\n",
			f.Fold, f.InSample.Trades, f.InSample.WinRate,
			f.OutOfSample.Trades, f.OutOfSample.WinRate, f.Robustness)
	}
}
