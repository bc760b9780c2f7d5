package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Report renders the last run's statistics as a plain-text summary.
func (e *Engine) Report() string {
	if e.Stats == nil {
		return "No backtest results available. Run a backtest first.\n"
	}
	s := e.Stats

	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\n%34s\n%s\n\n", rule, "BACKTEST REPORT", rule)

	fmt.Fprintf(&b, "SUMMARY\n-------\n")
	fmt.Fprintf(&b, "Total Trades:       %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "Winning Trades:     %d\n", s.WinningTrades)
	fmt.Fprintf(&b, "Losing Trades:      %d\n", s.LosingTrades)
	fmt.Fprintf(&b, "Win Rate:           %.1f%%\n\n", s.WinRate)

	fmt.Fprintf(&b, "PROFIT & LOSS\n-------------\n")
	fmt.Fprintf(&b, "Total P&L:          $%s\n", s.TotalPnl.StringFixed(2))
	fmt.Fprintf(&b, "Average Win:        $%s\n", s.AvgWin.StringFixed(2))
	fmt.Fprintf(&b, "Average Loss:       $%s\n", s.AvgLoss.StringFixed(2))
	fmt.Fprintf(&b, "Largest Win:        $%s\n", s.LargestWin.StringFixed(2))
	fmt.Fprintf(&b, "Largest Loss:       $%s\n", s.LargestLoss.StringFixed(2))
	fmt.Fprintf(&b, "Profit Factor:      %.2f\n", s.ProfitFactor)
	fmt.Fprintf(&b, "Expectancy:         $%s\n\n", s.Expectancy.StringFixed(2))

	fmt.Fprintf(&b, "RISK METRICS\n------------\n")
	fmt.Fprintf(&b, "Risk/Reward Ratio:  %.2f\n", s.RiskRewardRatio)
	fmt.Fprintf(&b, "Max Drawdown:       $%s (%.1f%%)\n", s.MaxDrawdown.StringFixed(2), s.MaxDrawdownPct)
	fmt.Fprintf(&b, "Avg Drawdown:       $%s\n", s.AvgDrawdown.StringFixed(2))
	fmt.Fprintf(&b, "Max DD Duration:    %d points\n\n", s.MaxDrawdownDuration)

	fmt.Fprintf(&b, "STREAKS\n-------\n")
	fmt.Fprintf(&b, "Max Consecutive Wins:   %d\n", s.MaxConsecutiveWins)
	fmt.Fprintf(&b, "Max Consecutive Losses: %d\n\n", s.MaxConsecutiveLosses)

	fmt.Fprintf(&b, "TIME ANALYSIS\n-------------\n")
	fmt.Fprintf(&b, "Avg Bars Held:      %.1f\n", s.AvgBarsHeld)
	fmt.Fprintf(&b, "Avg Bars (Winner):  %.1f\n", s.AvgBarsWinner)
	fmt.Fprintf(&b, "Avg Bars (Loser):   %.1f\n\n", s.AvgBarsLoser)

	writeBreakdown(&b, "PERFORMANCE BY TRADE PLAN", s.StatsByPlan, false)
	writeBreakdown(&b, "PERFORMANCE BY SIGNAL STRENGTH", s.StatsByStrength, false)
	writeBreakdown(&b, "PERFORMANCE BY DAY", s.StatsByDay, true)
	writeBreakdown(&b, "PERFORMANCE BY AMD CYCLE", s.StatsByAMD, false)

	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

// writeBreakdown prints one category table with stable key order.
func writeBreakdown(b *strings.Builder, title string, stats map[string]*CategoryStats, skipEmpty bool) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "%s\n%s\n", title, strings.Repeat("-", len(title)))
	for _, k := range keys {
		cs := stats[k]
		if skipEmpty && cs.Trades == 0 {
			continue
		}
		fmt.Fprintf(b, "%-20s | Trades: %3d | Win Rate: %5.1f%% | P&L: $%s\n",
			k, cs.Trades, cs.WinRate, cs.Pnl.StringFixed(2))
	}
	b.WriteString("\n")
}

// ExportTrades writes the trade ledger as indented JSON.
func (e *Engine) ExportTrades(path string) error {
	return writeJSON(path, e.Trades)
}

// ExportStatistics writes the last run's statistics as indented JSON.
func (e *Engine) ExportStatistics(path string) error {
	if e.Stats == nil {
		return fmt.Errorf("no statistics to export")
	}
	return writeJSON(path, e.Stats)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// tradeLogTime is the timestamp layout used in exported reports.
const tradeLogTime = "2006-01-02 15:04"

// TradeLine renders one trade as a journal row.
func TradeLine(t Trade) string {
	return fmt.Sprintf("#%d %s %s %s @ %s -> %s (%s) P&L $%s [%s]",
		t.ID, t.EntryTime.Format(tradeLogTime), t.Direction, t.Plan,
		t.EntryPrice.StringFixed(2), t.ExitPrice.StringFixed(2),
		t.ExitReason, t.Pnl.StringFixed(2), t.Result)
}
