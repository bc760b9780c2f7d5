package backtest

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"goldbach-backtester/services/engine"
)

func TestMonteCarloFinalCapitalInvariant(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	day := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)
	eng.Trades = []Trade{
		ledgerTrade(1, day, 100, engine.PlanEinstein),
		ledgerTrade(2, day, -40, engine.PlanEinstein),
		ledgerTrade(3, day, 75, engine.PlanLiquidity),
		ledgerTrade(4, day, -25, engine.PlanRebalance),
	}

	mc := eng.MonteCarloWithRand(500, rand.New(rand.NewSource(1)))
	if mc == nil {
		t.Fatal("expected a result")
	}

	// Reordering never changes the sum, so every simulation ends at
	// the same capital and the distribution collapses to a point.
	want := 10000.0 + 100 - 40 + 75 - 25
	if mc.FinalCapital.Mean != want || mc.FinalCapital.Min != want || mc.FinalCapital.Max != want {
		t.Fatalf("final capital mean/min/max = %v/%v/%v, want %v",
			mc.FinalCapital.Mean, mc.FinalCapital.Min, mc.FinalCapital.Max, want)
	}
	if mc.FinalCapital.Std != 0 {
		t.Fatalf("final capital std = %v, want 0", mc.FinalCapital.Std)
	}
	if mc.FinalCapital.P5 != want || mc.FinalCapital.P95 != want {
		t.Fatalf("percentiles = %v/%v, want %v", mc.FinalCapital.P5, mc.FinalCapital.P95, want)
	}
	if mc.RiskOfRuin != 0 {
		t.Fatalf("risk of ruin = %v, want 0", mc.RiskOfRuin)
	}
}

func TestMonteCarloRiskOfRuin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = decimal.NewFromInt(100)
	eng := New(cfg, nil)
	day := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)
	// Net loss wipes the account regardless of ordering.
	eng.Trades = []Trade{
		ledgerTrade(1, day, -80, engine.PlanEinstein),
		ledgerTrade(2, day, -60, engine.PlanEinstein),
	}

	mc := eng.MonteCarloWithRand(100, rand.New(rand.NewSource(2)))
	if mc.RiskOfRuin != 100 {
		t.Fatalf("risk of ruin = %v, want 100", mc.RiskOfRuin)
	}
}

func TestMonteCarloNoTrades(t *testing.T) {
	eng := New(DefaultConfig(), nil)
	if mc := eng.MonteCarlo(100); mc != nil {
		t.Fatalf("expected nil, got %+v", mc)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	xs := []float64{10, 20, 30, 40}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{100, 40},
		{50, 25},
		{25, 17.5},
	}
	for _, c := range cases {
		if got := percentile(xs, c.p); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestStddevPopulation(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := stddev(xs); math.Abs(got-2) > 1e-9 {
		t.Fatalf("stddev = %v, want 2", got)
	}
}
