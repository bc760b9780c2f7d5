// Package backtest replays historical bars through the Goldbach signal
// engine and aggregates trade statistics, Monte Carlo resampling and
// walk-forward validation on top of the resulting trade list.
package backtest

import (
	"github.com/shopspring/decimal"

	"goldbach-backtester/services/engine"
)

// Config controls a backtest run.
type Config struct {
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	PositionSizePct decimal.Decimal `json:"position_size_pct"`
	Commission      decimal.Decimal `json:"commission"` // per fill
	Slippage        decimal.Decimal `json:"slippage"`   // points per fill

	UseStopLoss bool `json:"use_stop_loss"`

	// Filters applied to generated setups before entry.
	MinSignalStrength   engine.Strength    `json:"min_signal_strength"`
	AllowedPlans        []engine.TradePlan `json:"allowed_plans"`
	AllowedAMDCycles    []engine.AMDCycle  `json:"allowed_amd_cycles"`
	RequireGoldbachTime bool               `json:"require_goldbach_time"`

	MaxBarsInTrade int `json:"max_bars_in_trade"`
	PO3Size        int `json:"po3_size"`
}

// DefaultConfig returns the stock configuration: $10k capital, 1% per
// trade, MEDIUM-or-better signals during the London and NY AM cycles.
func DefaultConfig() Config {
	return Config{
		InitialCapital:    decimal.NewFromInt(10000),
		PositionSizePct:   decimal.NewFromInt(1),
		Commission:        decimal.Zero,
		Slippage:          decimal.Zero,
		UseStopLoss:       true,
		MinSignalStrength: engine.StrengthMedium,
		AllowedPlans:      append([]engine.TradePlan(nil), engine.AllPlans...),
		AllowedAMDCycles:  []engine.AMDCycle{engine.CycleManipulation, engine.CycleDistribution1},
		MaxBarsInTrade:    50,
		PO3Size:           engine.DefaultPO3,
	}
}
