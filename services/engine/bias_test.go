package engine

import "testing"

func biasPrice(e *Engine, position float64) float64 {
	// Build a price at a given position inside the 21141-21870 range.
	r := e.CalcRange(21500, 0)
	return r.Low + position/100*float64(r.Size)
}

func TestAnalyzeBiasGIPZones(t *testing.T) {
	e := NewEngine(729)

	low := e.AnalyzeBias(biasPrice(e, 10), 0, 0)
	if low.Bias != BiasBullish || low.GIPLevel != 17 {
		t.Fatalf("position 10: bias=%s gip=%d", low.Bias, low.GIPLevel)
	}
	// base 50 + GIP 15 + liquidity 10
	if low.Confidence != 75 {
		t.Fatalf("position 10 confidence = %d, want 75", low.Confidence)
	}

	high := e.AnalyzeBias(biasPrice(e, 90), 0, 0)
	if high.Bias != BiasBearish || high.GIPLevel != 83 {
		t.Fatalf("position 90: bias=%s gip=%d", high.Bias, high.GIPLevel)
	}

	mild := e.AnalyzeBias(biasPrice(e, 45), 0, 0)
	if mild.Bias != BiasBullish || mild.Confidence != 50 {
		t.Fatalf("position 45: bias=%s confidence=%d, want mild BULLISH 50", mild.Bias, mild.Confidence)
	}

	eq := e.AnalyzeBias(biasPrice(e, 50), 0, 0)
	if eq.Bias != BiasNeutral || eq.GIPLevel != 50 {
		t.Fatalf("position 50: bias=%s gip=%d, want NEUTRAL 50", eq.Bias, eq.GIPLevel)
	}
}

func TestAnalyzeBiasTrendAlignment(t *testing.T) {
	e := NewEngine(729)
	price := biasPrice(e, 10) // strong bullish zone, base confidence 75

	aligned := e.AnalyzeBias(price, 0, 3)
	if aligned.Confidence != 81 {
		t.Fatalf("aligned +3 days: confidence = %d, want 81", aligned.Confidence)
	}

	counter := e.AnalyzeBias(price, 0, -3)
	if counter.Confidence != 69 {
		t.Fatalf("counter -3 days: confidence = %d, want 69", counter.Confidence)
	}

	// Bonus caps at 10 either way.
	capped := e.AnalyzeBias(price, 0, 20)
	if capped.Confidence != 85 {
		t.Fatalf("capped trend: confidence = %d, want 85", capped.Confidence)
	}
}

func TestAnalyzeBiasConfidenceClamp(t *testing.T) {
	e := NewEngine(729)
	// Mild zone with no layer bonus, hard counter-trend: 50-10 = 40 floor.
	res := e.AnalyzeBias(biasPrice(e, 22), 0, -20)
	if res.Confidence != 40 {
		t.Fatalf("confidence = %d, want clamp floor 40", res.Confidence)
	}
}

func TestAnalyzeBiasLayerFallback(t *testing.T) {
	e := NewEngine(729)
	// Position 22 is in no layer; the analysis reports Flow.
	res := e.AnalyzeBias(biasPrice(e, 22), 0, 0)
	if res.Layer != LayerFlow {
		t.Fatalf("layer = %s, want FLOW fallback", res.Layer)
	}
}
