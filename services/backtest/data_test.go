package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSVTolerantParsing(t *testing.T) {
	// Header, out-of-order rows, a duplicate timestamp and a
	// malformed row that gets skipped.
	csv := "timestamp,open,high,low,close,volume\n" +
		"1742292000000,21300,21350,21250,21320,100\n" +
		"1742205600000,21200,21260,21180,21250,80\n" +
		"garbage,x,y,z,w\n" +
		"1742292000000,21310,21360,21260,21330,110\n"

	bars, err := LoadCSV(writeTempCSV(t, csv), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Fatal("bars not sorted by time")
	}
	// The duplicate timestamp keeps the last row.
	if !bars[1].Open.Equal(decimal.NewFromInt(21310)) {
		t.Fatalf("dedup kept open = %s, want 21310", bars[1].Open)
	}
}

func TestLoadCSVDateLayout(t *testing.T) {
	csv := "Date,Open,High,Low,Close\n" +
		"2025-03-17,21200,21260,21180,21250\n" +
		"2025-03-18,21250,21300,21220,21280\n"

	bars, err := LoadCSV(writeTempCSV(t, csv), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	want := time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC)
	if !bars[0].Time.Equal(want) {
		t.Fatalf("time = %v, want %v", bars[0].Time, want)
	}
	if !bars[0].Volume.IsZero() {
		t.Fatalf("volume = %s, want 0 when column absent", bars[0].Volume)
	}
}

func TestLoadCSVEmptyFails(t *testing.T) {
	if _, err := LoadCSV(writeTempCSV(t, "timestamp,open,high,low,close\n"), nil); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestValidateBarsRejectsInvertedCandle(t *testing.T) {
	bars := flatBars(2, 21500, 9)
	bars[1].High = bars[1].Low.Sub(decimal.NewFromInt(1))
	if err := ValidateBars(bars); err == nil {
		t.Fatal("expected error for high below low")
	}
}
