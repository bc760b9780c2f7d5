package engine

import (
	"fmt"
	"strings"
)

// FormatSetup renders a setup as a plain-text block suitable for
// console output and notification payloads.
func FormatSetup(s *TradeSetup) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "  TRADE SETUP #%d - %s\n", s.ID, s.Symbol)
	fmt.Fprintf(&b, "  %s\n", s.Timestamp.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	fmt.Fprintf(&b, "  Plan:       %s\n", s.Plan)
	fmt.Fprintf(&b, "  Bias:       %s (%d%%)\n", s.Bias, s.Confidence)
	fmt.Fprintf(&b, "  Strength:   %s\n\n", s.Strength)

	fmt.Fprintf(&b, "  Entry Zone: %.2f - %.2f\n", s.EntryZone[0], s.EntryZone[1])
	fmt.Fprintf(&b, "  Entry:      %.2f\n", s.EntryPrice)
	fmt.Fprintf(&b, "  Stop Loss:  %.2f\n\n", s.StopLoss)

	b.WriteString("  TARGETS:\n")
	for _, t := range s.Targets {
		fmt.Fprintf(&b, "    %s: %.2f (Level %d)\n", t.Name, t.Price, t.Level)
	}

	fmt.Fprintf(&b, "\n  INVALIDATION: %s\n\n", s.Invalidation.Note)

	b.WriteString("  REASONING:\n")
	for _, r := range s.Reasoning {
		fmt.Fprintf(&b, "    - %s\n", r)
	}

	confirm := "no"
	if s.GoldbachTimeConfirm {
		confirm = "yes"
	}
	fmt.Fprintf(&b, "\n  Goldbach Time: %s\n", confirm)
	fmt.Fprintf(&b, "  AMD Cycle: %s\n", s.AMDCycle)
	fmt.Fprintf(&b, "  Partition Day: %d\n\n", s.PartitionDay)
	fmt.Fprintf(&b, "%s\n", rule)

	return b.String()
}
