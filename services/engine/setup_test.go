package engine

import (
	"sync"
	"testing"
	"time"
)

// quietTime is outside Goldbach time, in the D2 cycle, off key days,
// so strength scoring depends on bias alone.
var quietTime = time.Date(2025, time.March, 20, 14, 29, 0, 0, time.UTC)

func TestGenerateSetupRuleOrder(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)

	// Position 15 satisfies both the Einstein (<=17) and Liquidity
	// (<=11 is false here) conditions only via rule 1; position 9
	// satisfies both, and rule 1 must still win.
	for _, pos := range []float64{15, 9} {
		price := r.Low + pos/100*float64(r.Size)
		setup := e.GenerateSetup(price, "NQ", 0, 0, quietTime)
		if setup == nil {
			t.Fatalf("position %v: expected a setup", pos)
		}
		if setup.Plan != PlanEinstein {
			t.Fatalf("position %v: plan = %s, want EINSTEIN (first match wins)", pos, setup.Plan)
		}
	}
}

func TestGenerateSetupEinsteinShape(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)
	price := r.Low + 0.10*float64(r.Size)

	setup := e.GenerateSetup(price, "NQ", 0, 0, quietTime)
	if setup == nil {
		t.Fatal("expected a setup")
	}
	if setup.Bias != BiasBullish {
		t.Fatalf("bias = %s, want BULLISH", setup.Bias)
	}
	if setup.EntryZone[0] != r.LevelPrice(11) || setup.EntryZone[1] != r.LevelPrice(17) {
		t.Fatalf("entry zone = %v", setup.EntryZone)
	}
	wantEntry := (r.LevelPrice(11) + r.LevelPrice(17)) / 2
	if setup.EntryPrice != wantEntry {
		t.Fatalf("entry = %v, want zone midpoint %v", setup.EntryPrice, wantEntry)
	}
	if setup.StopLoss != r.LevelPrice(7) {
		t.Fatalf("stop = %v, want level 7 price %v", setup.StopLoss, r.LevelPrice(7))
	}
	if len(setup.Targets) != 2 || setup.Targets[0].Level != 47 || setup.Targets[1].Level != 59 {
		t.Fatalf("targets = %+v", setup.Targets)
	}
}

func TestGenerateSetupMirroredPlans(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)

	cases := []struct {
		pos     float64
		plan    TradePlan
		bias    Bias
		invalid int
	}{
		{86, PlanEinstein, BiasBearish, 93},
		{91, PlanEinstein, BiasBearish, 93}, // rule 2 beats rule 4
		{31, PlanFlowContinuation, BiasBullish, 17},
		{68, PlanFlowContinuation, BiasBearish, 83},
		{44, PlanRebalance, BiasBullish, 35},
		{55, PlanRebalance, BiasBearish, 65},
	}
	for _, c := range cases {
		price := r.Low + c.pos/100*float64(r.Size)
		setup := e.GenerateSetup(price, "NQ", 0, 0, quietTime)
		if setup == nil {
			t.Fatalf("position %v: expected a setup", c.pos)
		}
		if setup.Plan != c.plan || setup.Bias != c.bias {
			t.Errorf("position %v: got %s/%s, want %s/%s", c.pos, setup.Plan, setup.Bias, c.plan, c.bias)
		}
		if setup.Invalidation.Level != c.invalid {
			t.Errorf("position %v: invalidation level = %d, want %d", c.pos, setup.Invalidation.Level, c.invalid)
		}
	}
}

func TestGenerateSetupNoTradeZones(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)

	// Positions between the bands produce no setup.
	for _, pos := range []float64{20, 25, 38, 62, 75, 80} {
		price := r.Low + pos/100*float64(r.Size)
		if setup := e.GenerateSetup(price, "NQ", 0, 0, quietTime); setup != nil {
			t.Errorf("position %v: expected no setup, got plan %s", pos, setup.Plan)
		}
	}
}

func TestGenerateSetupCounterMonotonic(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)
	price := r.Low + 0.10*float64(r.Size)

	first := e.GenerateSetup(price, "NQ", 0, 0, quietTime)
	// No-setup calls still consume an id.
	e.GenerateSetup(r.Low+0.20*float64(r.Size), "NQ", 0, 0, quietTime)
	third := e.GenerateSetup(price, "NQ", 0, 0, quietTime)

	if first.ID != 1 || third.ID != 3 {
		t.Fatalf("ids = %d, %d; want 1, 3", first.ID, third.ID)
	}
}

func TestGenerateSetupConcurrentIDsUnique(t *testing.T) {
	// One engine instance is driven by both the HTTP handler and the
	// scheduler, so parallel calls must never mint the same id.
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)
	price := r.Low + 0.10*float64(r.Size)

	const workers, perWorker = 8, 50
	ids := make(chan int, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if s := e.GenerateSetup(price, "NQ", 0, 0, quietTime); s != nil {
					ids <- s.ID
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	n := 0
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate setup id %d", id)
		}
		seen[id] = true
		n++
	}
	if n != workers*perWorker {
		t.Fatalf("setups = %d, want %d", n, workers*perWorker)
	}
}

func TestSignalStrengthScoring(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)
	price := r.Low + 0.10*float64(r.Size) // liquidity zone, confidence 75

	// Quiet time: conf>=70 (+2) + liquidity layer (+1) = 3 -> MEDIUM.
	s := e.GenerateSetup(price, "NQ", 0, 0, quietTime)
	if s.Strength != StrengthMedium {
		t.Fatalf("quiet strength = %s, want MEDIUM", s.Strength)
	}

	// Goldbach time (9:02 -> 11) during D1 on key day March 8:
	// +2 conf, +2 time, +1 cycle, +1 key day, +1 layer = 7 -> PERFECT.
	keyTime := time.Date(2025, time.March, 8, 9, 2, 0, 0, time.UTC)
	s = e.GenerateSetup(price, "NQ", 0, 0, keyTime)
	if !s.GoldbachTimeConfirm {
		t.Fatal("9:02 should confirm Goldbach time")
	}
	if s.Strength != StrengthPerfect {
		t.Fatalf("stacked strength = %s, want PERFECT", s.Strength)
	}
}

func TestStrengthRank(t *testing.T) {
	if StrengthRank(StrengthWeak) != 0 || StrengthRank(StrengthPerfect) != 4 {
		t.Fatal("strength order broken")
	}
	if StrengthRank(Strength("BOGUS")) != -1 {
		t.Fatal("unknown strength must rank -1")
	}
}
