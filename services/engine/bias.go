package engine

import "fmt"

// Bias is the directional read of a price inside its range.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// BiasAnalysis is the result of GIP bias detection.
type BiasAnalysis struct {
	Bias       Bias     `json:"bias"`
	Confidence int      `json:"confidence"`
	GIPLevel   int      `json:"gip_level"`
	Position   float64  `json:"position"`
	Layer      Layer    `json:"layer"`
	Reasoning  []string `json:"reasoning"`
}

// AnalyzeBias derives bias from the Goldbach Inversion Point.
//
// Below GIP [17] the range is accumulating (bullish), above GIP [83]
// distributing (bearish). trendDays biases confidence toward or
// against an external trend: positive values mean days trending up.
func (e *Engine) AnalyzeBias(price float64, po3 int, trendDays int) BiasAnalysis {
	r := e.CalcRange(price, po3)
	position := r.Position(price)
	layer := LayerForPosition(position)

	var reasoning []string
	confidence := 50

	var bias Bias
	var gip int
	switch {
	case position <= 17:
		bias = BiasBullish
		gip = 17
		confidence += 15
		reasoning = append(reasoning, fmt.Sprintf("Price below GIP [17] (%.0f%%) - strong BULLISH bias", position))
	case position >= 83:
		bias = BiasBearish
		gip = 83
		confidence += 15
		reasoning = append(reasoning, fmt.Sprintf("Price above GIP [83] (%.0f%%) - strong BEARISH bias", position))
	case position < 50:
		bias = BiasBullish
		gip = 17
		reasoning = append(reasoning, fmt.Sprintf("Price below EQ [50] (%.0f%%) - mild BULLISH bias", position))
	case position > 50:
		bias = BiasBearish
		gip = 83
		reasoning = append(reasoning, fmt.Sprintf("Price above EQ [50] (%.0f%%) - mild BEARISH bias", position))
	default:
		bias = BiasNeutral
		gip = 50
		reasoning = append(reasoning, "Price at EQ [50] - NEUTRAL")
	}

	switch layer {
	case LayerLiquidity:
		confidence += 10
		reasoning = append(reasoning, "In Liquidity layer - high reversal probability")
	case LayerFlow:
		confidence += 5
		reasoning = append(reasoning, "In Flow layer - follow the momentum")
	case LayerRebalance:
		reasoning = append(reasoning, "In Rebalance layer - consolidation likely")
	}

	if trendDays != 0 {
		aligned := (trendDays > 0 && bias == BiasBullish) || (trendDays < 0 && bias == BiasBearish)
		magnitude := trendDays
		if magnitude < 0 {
			magnitude = -magnitude
		}
		bonus := magnitude * 2
		if bonus > 10 {
			bonus = 10
		}
		if aligned {
			confidence += bonus
			reasoning = append(reasoning, fmt.Sprintf("Trend alignment: %d days in direction", magnitude))
		} else {
			confidence -= bonus
			reasoning = append(reasoning, fmt.Sprintf("Counter-trend: %d days against bias", magnitude))
		}
	}

	if confidence < 40 {
		confidence = 40
	}
	if confidence > 85 {
		confidence = 85
	}

	// Positions outside every layer still need a layer tag downstream;
	// Flow is the neutral middle ground.
	analysisLayer := layer
	if analysisLayer == LayerNone {
		analysisLayer = LayerFlow
	}

	return BiasAnalysis{
		Bias:       bias,
		Confidence: confidence,
		GIPLevel:   gip,
		Position:   position,
		Layer:      analysisLayer,
		Reasoning:  reasoning,
	}
}
