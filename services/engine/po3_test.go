package engine

import (
	"math"
	"testing"
)

func TestCalcRangeNQ(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)

	if r.Num != 29 {
		t.Fatalf("range num = %d, want 29", r.Num)
	}
	if r.Low != 21141 || r.High != 21870 {
		t.Fatalf("bounds = %v-%v, want 21141-21870", r.Low, r.High)
	}

	pos := r.Position(21500)
	if math.Abs(pos-49.245) > 0.01 {
		t.Fatalf("position = %v, want ~49.2", pos)
	}
	if LayerForPosition(pos) != LayerRebalance {
		t.Fatalf("layer = %s, want REBALANCE", LayerForPosition(pos))
	}
}

func TestCalcRangeForexScaling(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(1.0850, 0)

	// 1.0850 * 10000 = 10850; 10850/729 = 14; low = 14*729 = 10206
	if r.Num != 14 {
		t.Fatalf("range num = %d, want 14", r.Num)
	}
	if math.Abs(r.Low-1.0206) > 1e-9 {
		t.Fatalf("low = %v, want 1.0206", r.Low)
	}
	if math.Abs(r.High-1.0935) > 1e-9 {
		t.Fatalf("high = %v, want 1.0935", r.High)
	}
}

func TestRangeBoundaryBelongsToNext(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21870, 0) // exactly the high of range 29
	if r.Num != 30 {
		t.Fatalf("price at range high should map to next range, got num %d", r.Num)
	}
	if r.Low != 21870 {
		t.Fatalf("low = %v, want 21870", r.Low)
	}
}

func TestPositionClamped(t *testing.T) {
	r := Range{Num: 29, Low: 21141, High: 21870, Size: 729}
	if r.Position(20000) != 0 {
		t.Fatal("price below low should clamp to 0")
	}
	if r.Position(30000) != 100 {
		t.Fatal("price above high should clamp to 100")
	}
}

func TestLevelPriceMidpoint(t *testing.T) {
	e := NewEngine(729)
	for _, price := range []float64{100, 5000, 21500, 100000} {
		r := e.CalcRange(price, 0)
		mid := (r.Low + r.High) / 2
		if math.Abs(r.LevelPrice(50)-mid) > 1e-9 {
			t.Fatalf("level 50 price %v != midpoint %v for price %v", r.LevelPrice(50), mid, price)
		}
	}
}

func TestLayerForPositionRanges(t *testing.T) {
	cases := []struct {
		pos  float64
		want Layer
	}{
		{0, LayerLiquidity},
		{17, LayerLiquidity},
		{17.5, LayerNone},
		{29, LayerFlow},
		{35, LayerFlow},
		{38, LayerNone},
		{41, LayerRebalance},
		{50, LayerRebalance},
		{59, LayerRebalance},
		{60, LayerNone},
		{65, LayerFlow},
		{71, LayerFlow},
		{77, LayerNone},
		{83, LayerLiquidity},
		{100, LayerLiquidity},
	}
	for _, c := range cases {
		if got := LayerForPosition(c.pos); got != c.want {
			t.Errorf("layer(%v) = %s, want %s", c.pos, got, c.want)
		}
	}
}

func TestLevelTableShape(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)
	if len(r.Levels) != 21 {
		t.Fatalf("expected 21 levels, got %d", len(r.Levels))
	}
	nonGB := 0
	for _, l := range r.Levels {
		if !l.IsGoldbach {
			nonGB++
		}
	}
	if nonGB != 4 {
		t.Fatalf("expected 4 non-Goldbach levels, got %d", nonGB)
	}
}

func TestNearestLevelTieBreaksLow(t *testing.T) {
	e := NewEngine(729)
	r := e.CalcRange(21500, 0)

	// Halfway between levels 47 and 53: equidistant, lower wins.
	price := (r.LevelPrice(47) + r.LevelPrice(53)) / 2
	lvl := r.NearestLevel(price)
	if lvl == nil || lvl.Pct != 47 && lvl.Pct != 50 {
		t.Fatalf("nearest to midpoint of 47/53 = %+v", lvl)
	}
	// Level 50 sits exactly at that price, so it is the true nearest.
	if lvl.Pct != 50 {
		t.Fatalf("nearest level = %d, want 50", lvl.Pct)
	}

	// Between 41 and 47, closer to 41.
	price = r.LevelPrice(41) + 0.1
	if lvl := r.NearestLevel(price); lvl.Pct != 41 {
		t.Fatalf("nearest level = %d, want 41", lvl.Pct)
	}
}
