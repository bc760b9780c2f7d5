// Package engine implements the Goldbach signal engine: PO3 dealing
// ranges, the fixed Goldbach level table, GIP bias detection, Goldbach
// time, AMD cycles, monthly partitions and trade setup generation.
package engine

import (
	"fmt"
	"math"
)

// Layer is one of the three structural zones of a dealing range.
type Layer string

const (
	LayerLiquidity Layer = "LIQUIDITY"
	LayerFlow      Layer = "FLOW"
	LayerRebalance Layer = "REBALANCE"
	LayerNone      Layer = "NONE"
)

// PO3Sizes are the valid dealing range sizes (powers of 3).
var PO3Sizes = []int{3, 9, 27, 81, 243, 729, 2187, 6561}

// DefaultPO3 is the recommended range size for daily trading.
const DefaultPO3 = 729

// levelDef is one row of the static Goldbach level table.
type levelDef struct {
	pct   int
	name  string
	ict   string
	layer Layer
}

// goldbachLevels is the fixed level table, ascending by position.
// Positions 23, 35, 65 and 77 are non-Goldbach separators.
var goldbachLevels = []levelDef{
	{0, "LOW", "Range Low", LayerLiquidity},
	{3, "REJ", "Rejection Block", LayerLiquidity},
	{7, "LLOD", "Last Line of Defence", LayerLiquidity},
	{11, "IRL", "Order Block", LayerLiquidity},
	{17, "GIP", "Fair Value Gap", LayerLiquidity},
	{23, "nGB", "(non-Goldbach)", LayerNone},
	{29, "FLOW", "Liquidity Void", LayerFlow},
	{35, "nGB", "(non-Goldbach)", LayerNone},
	{41, "EXT.REB", "Breaker", LayerRebalance},
	{47, "INT.REB", "Mitigation Block", LayerRebalance},
	{50, "EQ", "Equilibrium", LayerRebalance},
	{53, "INT.REB", "Mitigation Block", LayerRebalance},
	{59, "EXT.REB", "Breaker", LayerRebalance},
	{65, "nGB", "(non-Goldbach)", LayerNone},
	{71, "FLOW", "Liquidity Void", LayerFlow},
	{77, "nGB", "(non-Goldbach)", LayerNone},
	{83, "GIP", "Fair Value Gap", LayerLiquidity},
	{89, "IRL", "Order Block", LayerLiquidity},
	{93, "LLOD", "Last Line of Defence", LayerLiquidity},
	{97, "REJ", "Rejection Block", LayerLiquidity},
	{100, "HIGH", "Range High", LayerLiquidity},
}

// Level is a single Goldbach level expanded to an absolute price.
type Level struct {
	Pct        int     `json:"level_pct"`
	Price      float64 `json:"price"`
	Name       string  `json:"name"`
	ICTName    string  `json:"ict_name"`
	Layer      Layer   `json:"layer"`
	IsGoldbach bool    `json:"is_goldbach"`
}

// Range is a PO3 dealing range containing a price.
type Range struct {
	Num    int     `json:"range_num"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Size   int     `json:"size"`
	Levels []Level `json:"levels"`
}

// LevelPrice returns the absolute price of a percentage level.
func (r Range) LevelPrice(pct int) float64 {
	return r.Low + float64(pct)/100*float64(r.Size)
}

// Position returns where price sits in the range, 0-100 clamped.
func (r Range) Position(price float64) float64 {
	if price < r.Low {
		return 0
	}
	if price > r.High {
		return 100
	}
	return (price - r.Low) / float64(r.Size) * 100
}

// NearestLevel returns the level closest to price by absolute distance.
// Ties resolve to the lower position because the table is ascending.
func (r Range) NearestLevel(price float64) *Level {
	if len(r.Levels) == 0 {
		return nil
	}
	best := 0
	bestDist := math.Abs(r.Levels[0].Price - price)
	for i := 1; i < len(r.Levels); i++ {
		d := math.Abs(r.Levels[i].Price - price)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	lvl := r.Levels[best]
	return &lvl
}

// CalcRange computes the PO3 range enclosing price.
//
// Range Low = floor(price / PO3) * PO3. Prices under 100 are treated as
// fractional-quote (forex) and scaled by 10000 before flooring; the
// resulting bounds are scaled back down.
func (e *Engine) CalcRange(price float64, po3 int) Range {
	if po3 == 0 {
		po3 = e.defaultPO3
	}

	priceInt := int(price)
	forex := price < 100
	if forex {
		priceInt = int(price * 10000)
	}

	num := priceInt / po3
	low := float64(num * po3)
	high := low + float64(po3)
	if forex {
		low /= 10000
		high /= 10000
	}

	r := Range{Num: num, Low: low, High: high, Size: po3}
	r.Levels = expandLevels(r)
	return r
}

func expandLevels(r Range) []Level {
	levels := make([]Level, 0, len(goldbachLevels))
	for _, def := range goldbachLevels {
		name := def.name
		if def.pct != 0 && def.pct != 50 && def.pct != 100 {
			name = fmt.Sprintf("%s [%d]", def.name, def.pct)
		}
		levels = append(levels, Level{
			Pct:        def.pct,
			Price:      r.LevelPrice(def.pct),
			Name:       name,
			ICTName:    def.ict,
			Layer:      def.layer,
			IsGoldbach: def.pct != 23 && def.pct != 35 && def.pct != 65 && def.pct != 77,
		})
	}
	return levels
}

// LayerForPosition maps a range position to its structural layer.
func LayerForPosition(position float64) Layer {
	switch {
	case position <= 17 || position >= 83:
		return LayerLiquidity
	case position >= 29 && position <= 35, position >= 65 && position <= 71:
		return LayerFlow
	case position >= 41 && position <= 59:
		return LayerRebalance
	default:
		return LayerNone
	}
}

// PositionInfo is the full placement of a price inside its range.
type PositionInfo struct {
	Price    float64 `json:"price"`
	Range    Range   `json:"range"`
	Position float64 `json:"position"`
	Layer    Layer   `json:"layer"`
	Nearest  *Level  `json:"nearest_level"`
}

// PositionInfo computes the range, position, layer and nearest level
// for a price.
func (e *Engine) PositionInfo(price float64, po3 int) PositionInfo {
	r := e.CalcRange(price, po3)
	pos := r.Position(price)
	return PositionInfo{
		Price:    price,
		Range:    r,
		Position: pos,
		Layer:    LayerForPosition(pos),
		Nearest:  r.NearestLevel(price),
	}
}
