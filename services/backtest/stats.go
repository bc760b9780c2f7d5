package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryStats is the per-bucket breakdown used by the plan,
// strength, weekday and AMD groupings.
type CategoryStats struct {
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	WinRate float64         `json:"win_rate"`
	Pnl     decimal.Decimal `json:"pnl"`
}

// Statistics is the full aggregation of a backtest run. Dollar
// amounts stay decimal; rates and ratios are plain floats.
type Statistics struct {
	TotalTrades     int `json:"total_trades"`
	WinningTrades   int `json:"winning_trades"`
	LosingTrades    int `json:"losing_trades"`
	BreakevenTrades int `json:"breakeven_trades"`

	WinRate float64 `json:"win_rate"`

	TotalPnl    decimal.Decimal `json:"total_pnl"`
	TotalPnlPct decimal.Decimal `json:"total_pnl_pct"`
	AvgWin      decimal.Decimal `json:"avg_win"`
	AvgLoss     decimal.Decimal `json:"avg_loss"`
	LargestWin  decimal.Decimal `json:"largest_win"`
	LargestLoss decimal.Decimal `json:"largest_loss"`

	ProfitFactor    float64         `json:"profit_factor"`
	Expectancy      decimal.Decimal `json:"expectancy"`
	RiskRewardRatio float64         `json:"risk_reward_ratio"`

	MaxDrawdown         decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct      float64         `json:"max_drawdown_pct"`
	AvgDrawdown         decimal.Decimal `json:"avg_drawdown"`
	MaxDrawdownDuration int             `json:"max_drawdown_duration"` // in equity points

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	AvgBarsHeld   float64 `json:"avg_bars_held"`
	AvgBarsWinner float64 `json:"avg_bars_winner"`
	AvgBarsLoser  float64 `json:"avg_bars_loser"`

	StatsByPlan     map[string]*CategoryStats `json:"stats_by_plan"`
	StatsByStrength map[string]*CategoryStats `json:"stats_by_strength"`
	StatsByDay      map[string]*CategoryStats `json:"stats_by_day"`
	StatsByAMD      map[string]*CategoryStats `json:"stats_by_amd"`

	MonthlyReturns map[string]decimal.Decimal `json:"monthly_returns"`

	EquityCurve []decimal.Decimal `json:"equity_curve"`
}

func newStatistics() *Statistics {
	return &Statistics{
		TotalPnl:        decimal.Zero,
		TotalPnlPct:     decimal.Zero,
		AvgWin:          decimal.Zero,
		AvgLoss:         decimal.Zero,
		LargestWin:      decimal.Zero,
		LargestLoss:     decimal.Zero,
		Expectancy:      decimal.Zero,
		MaxDrawdown:     decimal.Zero,
		AvgDrawdown:     decimal.Zero,
		StatsByPlan:     map[string]*CategoryStats{},
		StatsByStrength: map[string]*CategoryStats{},
		StatsByDay:      map[string]*CategoryStats{},
		StatsByAMD:      map[string]*CategoryStats{},
		MonthlyReturns:  map[string]decimal.Decimal{},
	}
}

func (e *Engine) computeStatistics(equity []decimal.Decimal) *Statistics {
	stats := newStatistics()
	stats.EquityCurve = equity

	if len(e.Trades) == 0 {
		return stats
	}

	stats.TotalTrades = len(e.Trades)

	var wins, losses []Trade
	for _, t := range e.Trades {
		switch t.Result {
		case ResultWin:
			wins = append(wins, t)
		case ResultLoss:
			losses = append(losses, t)
		default:
			stats.BreakevenTrades++
		}
		stats.TotalPnl = stats.TotalPnl.Add(t.Pnl)
		stats.TotalPnlPct = stats.TotalPnlPct.Add(t.PnlPct)
	}
	stats.WinningTrades = len(wins)
	stats.LosingTrades = len(losses)
	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	grossProfit := decimal.Zero
	for _, t := range wins {
		grossProfit = grossProfit.Add(t.Pnl)
		stats.LargestWin = decimal.Max(stats.LargestWin, t.Pnl)
	}
	grossLoss := decimal.Zero
	for _, t := range losses {
		grossLoss = grossLoss.Add(t.Pnl)
		stats.LargestLoss = decimal.Min(stats.LargestLoss, t.Pnl)
	}
	grossLoss = grossLoss.Abs()

	if len(wins) > 0 {
		stats.AvgWin = grossProfit.Div(decimal.NewFromInt(int64(len(wins))))
	}
	if len(losses) > 0 {
		stats.AvgLoss = grossLoss.Neg().Div(decimal.NewFromInt(int64(len(losses))))
	}

	// A run with no losers still gets a meaningful profit factor:
	// gross loss is floored at 1.
	pfDenom := grossLoss
	if pfDenom.IsZero() {
		pfDenom = decimal.NewFromInt(1)
	}
	stats.ProfitFactor = grossProfit.Div(pfDenom).InexactFloat64()

	stats.Expectancy = stats.TotalPnl.Div(decimal.NewFromInt(int64(stats.TotalTrades)))

	if !stats.AvgLoss.IsZero() {
		stats.RiskRewardRatio = stats.AvgWin.Div(stats.AvgLoss).Abs().InexactFloat64()
	}

	e.computeDrawdown(stats, equity)
	e.computeStreaks(stats)
	e.computeHoldingTimes(stats, wins, losses)

	stats.StatsByPlan = e.groupBy(func(t Trade) string { return string(t.Plan) })
	stats.StatsByStrength = e.groupBy(func(t Trade) string { return string(t.Strength) })
	stats.StatsByDay = e.statsByWeekday()
	stats.StatsByAMD = e.groupBy(func(t Trade) string { return string(t.AMDCycle) })

	for _, t := range e.Trades {
		key := t.ExitTime.Format("2006-01")
		stats.MonthlyReturns[key] = stats.MonthlyReturns[key].Add(t.Pnl)
	}

	return stats
}

func (e *Engine) computeDrawdown(stats *Statistics, equity []decimal.Decimal) {
	if len(equity) == 0 {
		return
	}

	peak := equity[0]
	ddSum := decimal.Zero
	ddStart := 0
	for i, eq := range equity {
		if eq.GreaterThan(peak) {
			peak = eq
			if ddStart > 0 && i-ddStart > stats.MaxDrawdownDuration {
				stats.MaxDrawdownDuration = i - ddStart
			}
			ddStart = i
		}
		dd := peak.Sub(eq)
		stats.MaxDrawdown = decimal.Max(stats.MaxDrawdown, dd)
		ddSum = ddSum.Add(dd)
	}
	stats.AvgDrawdown = ddSum.Div(decimal.NewFromInt(int64(len(equity))))
	if e.cfg.InitialCapital.IsPositive() {
		stats.MaxDrawdownPct = stats.MaxDrawdown.Div(e.cfg.InitialCapital).
			Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
}

func (e *Engine) computeStreaks(stats *Statistics) {
	streak := 0
	last := ""
	for _, t := range e.Trades {
		if t.Result == last {
			streak++
		} else {
			streak = 1
		}
		switch t.Result {
		case ResultWin:
			if streak > stats.MaxConsecutiveWins {
				stats.MaxConsecutiveWins = streak
			}
		case ResultLoss:
			if streak > stats.MaxConsecutiveLosses {
				stats.MaxConsecutiveLosses = streak
			}
		}
		last = t.Result
	}
}

func (e *Engine) computeHoldingTimes(stats *Statistics, wins, losses []Trade) {
	sumBars := func(trades []Trade) int {
		total := 0
		for _, t := range trades {
			total += t.BarsHeld
		}
		return total
	}
	stats.AvgBarsHeld = float64(sumBars(e.Trades)) / float64(len(e.Trades))
	if len(wins) > 0 {
		stats.AvgBarsWinner = float64(sumBars(wins)) / float64(len(wins))
	}
	if len(losses) > 0 {
		stats.AvgBarsLoser = float64(sumBars(losses)) / float64(len(losses))
	}
}

func (e *Engine) groupBy(key func(Trade) string) map[string]*CategoryStats {
	out := map[string]*CategoryStats{}
	for _, t := range e.Trades {
		k := key(t)
		cs := out[k]
		if cs == nil {
			cs = &CategoryStats{Pnl: decimal.Zero}
			out[k] = cs
		}
		cs.Trades++
		if t.Result == ResultWin {
			cs.Wins++
		}
		cs.Pnl = cs.Pnl.Add(t.Pnl)
	}
	for _, cs := range out {
		if cs.Trades > 0 {
			cs.WinRate = float64(cs.Wins) / float64(cs.Trades) * 100
		}
	}
	return out
}

// statsByWeekday groups by entry weekday. All five trading days are
// present in the result even when empty; weekend entries are ignored.
func (e *Engine) statsByWeekday() map[string]*CategoryStats {
	out := map[string]*CategoryStats{}
	for d := time.Monday; d <= time.Friday; d++ {
		out[d.String()] = &CategoryStats{Pnl: decimal.Zero}
	}
	for _, t := range e.Trades {
		cs, ok := out[t.EntryTime.Weekday().String()]
		if !ok {
			continue
		}
		cs.Trades++
		if t.Result == ResultWin {
			cs.Wins++
		}
		cs.Pnl = cs.Pnl.Add(t.Pnl)
	}
	for _, cs := range out {
		if cs.Trades > 0 {
			cs.WinRate = float64(cs.Wins) / float64(cs.Trades) * 100
		}
	}
	return out
}
