package engine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// TradePlan names the entry/exit templates of the system.
type TradePlan string

const (
	PlanEinstein         TradePlan = "EINSTEIN"
	PlanLiquidity        TradePlan = "LIQUIDITY"
	PlanFlowContinuation TradePlan = "FLOW_CONTINUATION"
	PlanFlowRejection    TradePlan = "FLOW_REJECTION"
	PlanRebalance        TradePlan = "REBALANCE"
	PlanStopRun          TradePlan = "STOP_RUN"
)

// AllPlans lists every plan, in table order.
var AllPlans = []TradePlan{
	PlanEinstein, PlanLiquidity, PlanFlowContinuation,
	PlanFlowRejection, PlanRebalance, PlanStopRun,
}

// Strength is the 5-level confirmation label of a setup.
type Strength string

const (
	StrengthWeak      Strength = "WEAK"
	StrengthMedium    Strength = "MEDIUM"
	StrengthStrong    Strength = "STRONG"
	StrengthExcellent Strength = "EXCELLENT"
	StrengthPerfect   Strength = "PERFECT"
)

// StrengthOrder ranks strengths ascending for filter comparisons.
var StrengthOrder = []Strength{
	StrengthWeak, StrengthMedium, StrengthStrong, StrengthExcellent, StrengthPerfect,
}

// StrengthRank returns the ordinal of s, or -1 for unknown labels.
func StrengthRank(s Strength) int {
	for i, v := range StrengthOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Target is a take-profit level of a setup.
type Target struct {
	Name  string  `json:"name"`
	Level int     `json:"level"`
	Price float64 `json:"price"`
}

// Invalidation is the level that voids a setup.
type Invalidation struct {
	Level int     `json:"level"`
	Price float64 `json:"price"`
	Note  string  `json:"description"`
}

// TradeSetup is a fully composed trade plan selection.
type TradeSetup struct {
	ID                  int          `json:"id"`
	Timestamp           time.Time    `json:"timestamp"`
	Symbol              string       `json:"symbol"`
	Plan                TradePlan    `json:"plan"`
	Bias                Bias         `json:"bias"`
	Confidence          int          `json:"confidence"`
	EntryZone           [2]float64   `json:"entry_zone"`
	EntryPrice          float64      `json:"entry_price"`
	StopLoss            float64      `json:"stop_loss"`
	Targets             []Target     `json:"targets"`
	Invalidation        Invalidation `json:"invalidation"`
	Reasoning           []string     `json:"reasoning"`
	GoldbachTimeConfirm bool         `json:"goldbach_time_confirm"`
	AMDCycle            AMDCycle     `json:"amd_cycle"`
	PartitionDay        int          `json:"monthly_partition_day"`
	Strength            Strength     `json:"signal_strength"`
	Status              string       `json:"status"`
	Result              string       `json:"result,omitempty"`
}

// Engine is the Goldbach signal engine. The setup counter is atomic;
// one instance can serve concurrent callers with unique ids.
type Engine struct {
	defaultPO3   int
	setupCounter atomic.Int64
}

// NewEngine creates an engine with the given default PO3 size
// (DefaultPO3 when zero).
func NewEngine(defaultPO3 int) *Engine {
	if defaultPO3 == 0 {
		defaultPO3 = DefaultPO3
	}
	return &Engine{defaultPO3: defaultPO3}
}

// GenerateSetup composes range, bias, time, cycle and partition
// analysis into a trade setup. A nil result means no clear setup at
// the current position, which is a normal outcome, not an error.
func (e *Engine) GenerateSetup(price float64, symbol string, po3 int, trendDays int, t time.Time) *TradeSetup {
	// The id is consumed even when no setup comes out.
	id := int(e.setupCounter.Add(1))

	r := e.CalcRange(price, po3)
	position := r.Position(price)
	bias := e.AnalyzeBias(price, po3, trendDays)
	gbTime := AnalyzeTime(t)
	amd := AMDCycleAt(t)
	partition := PartitionInfoAt(t)

	plan, zone, targets, invalidation, ok := determinePlan(r, position, bias)
	if !ok {
		return nil
	}

	entryPrice := (zone[0] + zone[1]) / 2

	stopLoss := invalidation.Price
	if math.IsNaN(stopLoss) {
		if bias.Bias == BiasBullish {
			stopLoss = zone[0] - 20
		} else {
			stopLoss = zone[1] + 20
		}
	}

	strength := signalStrength(bias, gbTime, amd, partition)

	reasoning := append([]string(nil), bias.Reasoning...)
	reasoning = append(reasoning, fmt.Sprintf("Trade Plan: %s", plan))
	if gbTime.IsGoldbach {
		reasoning = append(reasoning, fmt.Sprintf("Goldbach Time confirmation (%d:%02d)", gbTime.Hour, gbTime.Minute))
	}
	reasoning = append(reasoning, fmt.Sprintf("AMD Cycle: %s", amd.Name))
	if partition.IsKeyDay {
		reasoning = append(reasoning, fmt.Sprintf("Key partition day: %s", partition.KeyDayNote))
	}

	return &TradeSetup{
		ID:                  id,
		Timestamp:           t,
		Symbol:              symbol,
		Plan:                plan,
		Bias:                bias.Bias,
		Confidence:          bias.Confidence,
		EntryZone:           zone,
		EntryPrice:          entryPrice,
		StopLoss:            stopLoss,
		Targets:             targets,
		Invalidation:        invalidation,
		Reasoning:           reasoning,
		GoldbachTimeConfirm: gbTime.IsGoldbach,
		AMDCycle:            amd.Cycle,
		PartitionDay:        partition.PartitionDay,
		Strength:            strength,
		Status:              "PENDING",
	}
}

// determinePlan selects the trade plan for a position and bias.
// Rules are tested top to bottom; the first hit wins.
func determinePlan(r Range, position float64, bias BiasAnalysis) (TradePlan, [2]float64, []Target, Invalidation, bool) {
	// Einstein: deep in the liquidity layer with a gap to run.
	if position <= 17 && bias.Bias == BiasBullish {
		return PlanEinstein,
			[2]float64{r.LevelPrice(11), r.LevelPrice(17)},
			[]Target{
				{Name: "T1 (Partial)", Level: 47, Price: r.LevelPrice(47)},
				{Name: "T2 (Full)", Level: 59, Price: r.LevelPrice(59)},
			},
			Invalidation{Level: 7, Price: r.LevelPrice(7), Note: "Below LLOD [7]"},
			true
	}
	if position >= 83 && bias.Bias == BiasBearish {
		return PlanEinstein,
			[2]float64{r.LevelPrice(83), r.LevelPrice(89)},
			[]Target{
				{Name: "T1 (Partial)", Level: 53, Price: r.LevelPrice(53)},
				{Name: "T2 (Full)", Level: 41, Price: r.LevelPrice(41)},
			},
			Invalidation{Level: 93, Price: r.LevelPrice(93), Note: "Above LLOD [93]"},
			true
	}

	// Liquidity: right at the range edges.
	if position <= 11 && bias.Bias == BiasBullish {
		return PlanLiquidity,
			[2]float64{r.LevelPrice(3), r.LevelPrice(11)},
			[]Target{
				{Name: "T1", Level: 29, Price: r.LevelPrice(29)},
				{Name: "T2", Level: 50, Price: r.LevelPrice(50)},
			},
			Invalidation{Level: 0, Price: r.Low, Note: "Below Range Low"},
			true
	}
	if position >= 89 && bias.Bias == BiasBearish {
		return PlanLiquidity,
			[2]float64{r.LevelPrice(89), r.LevelPrice(97)},
			[]Target{
				{Name: "T1", Level: 71, Price: r.LevelPrice(71)},
				{Name: "T2", Level: 50, Price: r.LevelPrice(50)},
			},
			Invalidation{Level: 100, Price: r.High, Note: "Above Range High"},
			true
	}

	// Flow continuation: riding the void between the layers.
	if position >= 29 && position <= 35 && bias.Bias == BiasBullish {
		return PlanFlowContinuation,
			[2]float64{r.LevelPrice(29), r.LevelPrice(35)},
			[]Target{
				{Name: "T1", Level: 50, Price: r.LevelPrice(50)},
				{Name: "T2", Level: 71, Price: r.LevelPrice(71)},
			},
			Invalidation{Level: 17, Price: r.LevelPrice(17), Note: "Below GIP [17]"},
			true
	}
	if position >= 65 && position <= 71 && bias.Bias == BiasBearish {
		return PlanFlowContinuation,
			[2]float64{r.LevelPrice(65), r.LevelPrice(71)},
			[]Target{
				{Name: "T1", Level: 50, Price: r.LevelPrice(50)},
				{Name: "T2", Level: 29, Price: r.LevelPrice(29)},
			},
			Invalidation{Level: 83, Price: r.LevelPrice(83), Note: "Above GIP [83]"},
			true
	}

	// Rebalance: fade toward equilibrium inside the middle layer.
	if position >= 41 && position <= 59 {
		if position <= 50 {
			return PlanRebalance,
				[2]float64{r.LevelPrice(41), r.LevelPrice(47)},
				[]Target{
					{Name: "T1", Level: 53, Price: r.LevelPrice(53)},
					{Name: "T2", Level: 59, Price: r.LevelPrice(59)},
				},
				Invalidation{Level: 35, Price: r.LevelPrice(35), Note: "Below Flow [35]"},
				true
		}
		return PlanRebalance,
			[2]float64{r.LevelPrice(53), r.LevelPrice(59)},
			[]Target{
				{Name: "T1", Level: 47, Price: r.LevelPrice(47)},
				{Name: "T2", Level: 41, Price: r.LevelPrice(41)},
			},
			Invalidation{Level: 65, Price: r.LevelPrice(65), Note: "Above Flow [65]"},
			true
	}

	return "", [2]float64{}, nil, Invalidation{Price: math.NaN()}, false
}

// signalStrength scores co-occurring confirmations into a label.
func signalStrength(bias BiasAnalysis, gbTime TimeSignature, amd AMDInfo, partition PartitionInfo) Strength {
	score := 0

	if bias.Confidence >= 70 {
		score += 2
	} else if bias.Confidence >= 60 {
		score++
	}
	if gbTime.IsGoldbach {
		score += 2
	}
	if amd.Cycle == CycleManipulation || amd.Cycle == CycleDistribution1 {
		score++
	}
	if partition.IsKeyDay {
		score++
	}
	if bias.Layer == LayerLiquidity {
		score++
	}

	switch {
	case score >= 6:
		return StrengthPerfect
	case score >= 5:
		return StrengthExcellent
	case score >= 4:
		return StrengthStrong
	case score >= 2:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}
