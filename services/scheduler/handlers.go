package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"goldbach-backtester/services/engine"
)

func (s *Scheduler) quote(symbol string) (float64, bool) {
	if s.feed == nil {
		return 0, false
	}
	q, ok := s.feed.Latest(symbol)
	if !ok {
		s.log.Warn("no quote available", zap.String("symbol", symbol))
	}
	return q.Price, ok
}

// runAnalysis sends the current setup, or a position summary when no
// setup exists at the current price.
func (s *Scheduler) runAnalysis(ctx context.Context, job *Job) error {
	for _, symbol := range job.Symbols {
		price, ok := s.quote(symbol)
		if !ok {
			continue
		}

		if setup := s.signal.GenerateSetup(price, symbol, 0, 0, time.Now()); setup != nil {
			s.notifier.Send(ctx, formatSetupMessage(setup))
			continue
		}

		pos := s.signal.PositionInfo(price, 0)
		bias := s.signal.AnalyzeBias(price, 0, 0)
		msg := fmt.Sprintf("📊 <b>GOLDBACH ANALYSIS</b> - %s\n\n"+
			"<b>Price:</b> %.2f\n<b>Position:</b> %.1f%%\n<b>Layer:</b> %s\n<b>Bias:</b> %s (%d%%)\n\n"+
			"<i>No clear setup at current price</i>",
			symbol, price, pos.Position, pos.Layer, bias.Bias, bias.Confidence)
		s.notifier.Send(ctx, msg)
	}
	return nil
}

// runSignalCheck sends only setups at or above the job's strength bar.
func (s *Scheduler) runSignalCheck(ctx context.Context, job *Job) error {
	minStrength := job.MinStrength
	if minStrength == "" {
		minStrength = engine.StrengthStrong
	}

	for _, symbol := range job.Symbols {
		price, ok := s.quote(symbol)
		if !ok {
			continue
		}
		setup := s.signal.GenerateSetup(price, symbol, 0, 0, time.Now())
		if setup == nil {
			continue
		}
		if engine.StrengthRank(setup.Strength) >= engine.StrengthRank(minStrength) {
			s.notifier.Send(ctx, formatSetupMessage(setup))
		}
	}
	return nil
}

// runDailyReport sends a per-symbol position summary plus the timing
// read of the moment.
func (s *Scheduler) runDailyReport(ctx context.Context, job *Job) error {
	now := time.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>DAILY GOLDBACH REPORT</b>\n")
	fmt.Fprintf(&b, "<i>%s</i>\n", now.Format("2006-01-02 15:04"))

	for _, symbol := range job.Symbols {
		price, ok := s.quote(symbol)
		if !ok {
			continue
		}
		pos := s.signal.PositionInfo(price, 0)
		bias := s.signal.AnalyzeBias(price, 0, 0)

		fmt.Fprintf(&b, "\n<b>%s</b> %s\n", symbol, biasEmoji(bias.Bias))
		fmt.Fprintf(&b, "  Price: %.2f\n", price)
		fmt.Fprintf(&b, "  Position: %.1f%% (%s)\n", pos.Position, pos.Layer)
		fmt.Fprintf(&b, "  Bias: %s (%d%%)\n", bias.Bias, bias.Confidence)
	}

	gbTime := engine.AnalyzeTime(now)
	amd := engine.AMDCycleAt(now)
	partition := engine.PartitionInfoAt(now)

	fmt.Fprintf(&b, "\n<b>TIMING</b>\n")
	fmt.Fprintf(&b, "  Goldbach Time: %s\n", checkmark(gbTime.IsGoldbach))
	fmt.Fprintf(&b, "  AMD Cycle: %s\n", amd.Name)
	fmt.Fprintf(&b, "  Partition Day: %d\n", partition.PartitionDay)

	s.notifier.Send(ctx, b.String())
	return nil
}

// runPriceAlerts sweeps the alert table against the latest quotes.
func (s *Scheduler) runPriceAlerts(ctx context.Context) error {
	s.mu.Lock()
	symbols := map[string]struct{}{}
	for _, a := range s.alerts {
		if a.Enabled && !a.Triggered {
			symbols[a.Symbol] = struct{}{}
		}
	}
	s.mu.Unlock()

	for symbol := range symbols {
		price, ok := s.quote(symbol)
		if !ok {
			continue
		}
		s.CheckAlerts(ctx, symbol, price)
	}
	return nil
}

func biasEmoji(b engine.Bias) string {
	switch b {
	case engine.BiasBullish:
		return "🟢"
	case engine.BiasBearish:
		return "🔴"
	}
	return "⚪"
}

func checkmark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// formatSetupMessage renders a setup as a Telegram-flavored HTML
// notification.
func formatSetupMessage(setup *engine.TradeSetup) string {
	emoji := biasEmoji(setup.Bias)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>GOLDBACH SIGNAL</b> %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", setup.Symbol)
	fmt.Fprintf(&b, "<b>Plan:</b> %s\n", setup.Plan)
	fmt.Fprintf(&b, "<b>Bias:</b> %s (%d%%)\n", setup.Bias, setup.Confidence)
	fmt.Fprintf(&b, "<b>Strength:</b> %s\n\n", setup.Strength)
	fmt.Fprintf(&b, "<b>Entry Zone:</b> %.2f - %.2f\n", setup.EntryZone[0], setup.EntryZone[1])
	fmt.Fprintf(&b, "<b>Entry:</b> %.2f\n", setup.EntryPrice)
	fmt.Fprintf(&b, "<b>Stop Loss:</b> %.2f\n\n", setup.StopLoss)
	fmt.Fprintf(&b, "<b>Targets:</b>\n")
	for _, t := range setup.Targets {
		fmt.Fprintf(&b, "  • %s: %.2f\n", t.Name, t.Price)
	}
	if setup.GoldbachTimeConfirm {
		b.WriteString("\n✅ Goldbach Time Confirmation")
	}
	fmt.Fprintf(&b, "\n<b>AMD:</b> %s", setup.AMDCycle)
	fmt.Fprintf(&b, "\n<i>%s</i>", time.Now().Format("15:04:05"))
	return b.String()
}
