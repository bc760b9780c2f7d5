package backtest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

var barTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseBarTime accepts millisecond epochs, second epochs and the
// common date layouts seen in exported candle files.
func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC(), nil
		}
		return time.Unix(ts, 0).UTC(), nil
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// LoadCSV reads bars from a CSV file with columns
// time,open,high,low,close[,volume]. Malformed rows are skipped, the
// result is sorted by time with duplicate timestamps collapsed to the
// last occurrence.
func LoadCSV(path string, log *zap.Logger) ([]Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	bars := make([]Bar, 0, 1024)
	var skipped int
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil || len(rec) < 5 {
			skipped++
			continue
		}

		t, err := parseBarTime(rec[0])
		if err != nil {
			// first row is usually a header, anything else counts
			if line > 1 {
				skipped++
			}
			continue
		}

		bar := Bar{Time: t, Volume: decimal.Zero}
		fields := []*decimal.Decimal{&bar.Open, &bar.High, &bar.Low, &bar.Close}
		ok := true
		for i, dst := range fields {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if !ok {
			skipped++
			continue
		}
		if len(rec) > 5 {
			if v, err := decimal.NewFromString(strings.TrimSpace(rec[5])); err == nil {
				bar.Volume = v
			}
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	uniq := bars[:0]
	for _, b := range bars {
		if len(uniq) > 0 && b.Time.Equal(uniq[len(uniq)-1].Time) {
			uniq[len(uniq)-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	bars = uniq

	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("loaded bars",
			zap.String("path", path),
			zap.Int("bars", len(bars)),
			zap.Int("skipped_rows", skipped))
	}
	return bars, nil
}

// ValidateBars rejects series a replay cannot run on: empty input,
// out-of-order timestamps and candles whose high is under their low.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("no bars loaded")
	}
	for i, b := range bars {
		if b.High.LessThan(b.Low) {
			return fmt.Errorf("bar %d at %s: high %s below low %s",
				i, b.Time.Format(time.RFC3339), b.High, b.Low)
		}
		if i > 0 && !bars[i-1].Time.Before(b.Time) {
			return fmt.Errorf("bar %d at %s: timestamps not strictly ascending",
				i, b.Time.Format(time.RFC3339))
		}
	}
	return nil
}
