package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func flatBars(n int, price float64, hour int) []Bar {
	bars := make([]Bar, n)
	start := time.Date(2025, time.March, 3, hour, 0, 0, 0, time.UTC)
	for i := range bars {
		p := decimal.NewFromFloat(price)
		bars[i] = Bar{
			Time:  start.AddDate(0, 0, i),
			Open:  p,
			High:  p.Add(decimal.NewFromInt(2)),
			Low:   p.Sub(decimal.NewFromInt(2)),
			Close: p,
		}
	}
	return bars
}

func TestWalkForwardFoldLayout(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	// Afternoon bars never pass the AMD filter, so every fold is a
	// clean zero-trade run and only the windowing is under test.
	bars := flatBars(10, 21500, 14)

	results, err := eng.WalkForward(bars, "NQ", 0.6, 2)
	if err != nil {
		t.Fatalf("walk forward: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("folds = %d, want 2", len(results))
	}

	first := results[0]
	if first.Fold != 1 {
		t.Fatalf("fold number = %d, want 1", first.Fold)
	}
	// Fold of 5 bars, 60% in-sample: bars 0-2 in, 3-4 out.
	if !first.InSample.Start.Equal(bars[0].Time) || !first.InSample.End.Equal(bars[2].Time) {
		t.Fatalf("in-sample window = %v..%v", first.InSample.Start, first.InSample.End)
	}
	if !first.OutOfSample.Start.Equal(bars[3].Time) || !first.OutOfSample.End.Equal(bars[4].Time) {
		t.Fatalf("out-of-sample window = %v..%v", first.OutOfSample.Start, first.OutOfSample.End)
	}

	second := results[1]
	if !second.InSample.Start.Equal(bars[5].Time) || !second.OutOfSample.End.Equal(bars[9].Time) {
		t.Fatalf("second fold windows = %v..%v", second.InSample.Start, second.OutOfSample.End)
	}

	for _, r := range results {
		if r.InSample.Trades != 0 || r.OutOfSample.Trades != 0 {
			t.Fatalf("fold %d produced trades", r.Fold)
		}
		if r.Robustness != 0 {
			t.Fatalf("fold %d robustness = %v, want 0 without in-sample wins", r.Fold, r.Robustness)
		}
	}
}

func TestWalkForwardRejectsBadParams(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	bars := flatBars(10, 21500, 14)

	if _, err := eng.WalkForward(bars, "NQ", 0.7, 0); err == nil {
		t.Fatal("expected error for zero folds")
	}
	if _, err := eng.WalkForward(bars, "NQ", 1.5, 2); err == nil {
		t.Fatal("expected error for out-of-range in-sample fraction")
	}
	if _, err := eng.WalkForward(bars[:1], "NQ", 0.7, 5); err == nil {
		t.Fatal("expected error for too few bars")
	}
}

func TestRobustnessScore(t *testing.T) {
	in := &Statistics{WinRate: 50, ProfitFactor: 2}

	// Out-of-sample at half the in-sample performance scores 50.
	out := &Statistics{WinRate: 25, ProfitFactor: 1}
	if got := robustness(in, out); got != 50 {
		t.Fatalf("score = %v, want 50", got)
	}

	// Matching performance scores 100.
	if got := robustness(in, &Statistics{WinRate: 50, ProfitFactor: 2}); got != 100 {
		t.Fatalf("score = %v, want 100", got)
	}

	// Better out-of-sample clamps at 100.
	if got := robustness(in, &Statistics{WinRate: 100, ProfitFactor: 6}); got != 100 {
		t.Fatalf("score = %v, want clamp at 100", got)
	}

	// No in-sample wins means no basis for comparison.
	if got := robustness(&Statistics{}, out); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}
