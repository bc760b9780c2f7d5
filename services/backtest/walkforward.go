package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PeriodResult summarizes one side of a walk-forward fold.
type PeriodResult struct {
	Start   *time.Time      `json:"start"`
	End     *time.Time      `json:"end"`
	Trades  int             `json:"trades"`
	WinRate float64         `json:"win_rate"`
	Pnl     decimal.Decimal `json:"pnl"`
}

// FoldResult is one walk-forward fold with its robustness score.
type FoldResult struct {
	Fold        int          `json:"fold"`
	InSample    PeriodResult `json:"in_sample"`
	OutOfSample PeriodResult `json:"out_of_sample"`
	Robustness  float64      `json:"robustness_score"`
}

// WalkForward splits the series into numFolds equal index windows,
// replays the in-sample prefix and out-of-sample remainder of each
// fold separately and scores how well in-sample performance carries
// over.
func (e *Engine) WalkForward(bars []Bar, symbol string, inSamplePct float64, numFolds int) ([]FoldResult, error) {
	if numFolds <= 0 {
		return nil, fmt.Errorf("num folds must be positive, got %d", numFolds)
	}
	if inSamplePct <= 0 || inSamplePct > 1 {
		return nil, fmt.Errorf("in-sample fraction must be in (0,1], got %v", inSamplePct)
	}
	if len(bars) < numFolds {
		return nil, fmt.Errorf("need at least %d bars for %d folds, have %d", numFolds, numFolds, len(bars))
	}

	foldSize := len(bars) / numFolds
	results := make([]FoldResult, 0, numFolds)

	for fold := 0; fold < numFolds; fold++ {
		foldStart := fold * foldSize
		foldEnd := foldStart + foldSize
		inSampleEnd := foldStart + int(float64(foldSize)*inSamplePct)

		inBars := bars[foldStart:inSampleEnd]
		outBars := bars[inSampleEnd:foldEnd]

		inStats, err := e.Run(inBars, symbol)
		if err != nil {
			return nil, fmt.Errorf("fold %d in-sample: %w", fold+1, err)
		}
		inPeriod := periodResult(inBars, inStats)

		outStats, err := e.Run(outBars, symbol)
		if err != nil {
			return nil, fmt.Errorf("fold %d out-of-sample: %w", fold+1, err)
		}
		outPeriod := periodResult(outBars, outStats)

		score := robustness(inStats, outStats)
		e.log.Info("walk-forward fold",
			zap.Int("fold", fold+1),
			zap.Int("in_trades", inPeriod.Trades),
			zap.Int("out_trades", outPeriod.Trades),
			zap.Float64("robustness", score))

		results = append(results, FoldResult{
			Fold:        fold + 1,
			InSample:    inPeriod,
			OutOfSample: outPeriod,
			Robustness:  score,
		})
	}
	return results, nil
}

func periodResult(bars []Bar, stats *Statistics) PeriodResult {
	pr := PeriodResult{
		Trades:  stats.TotalTrades,
		WinRate: stats.WinRate,
		Pnl:     stats.TotalPnl,
	}
	if len(bars) > 0 {
		start, end := bars[0].Time, bars[len(bars)-1].Time
		pr.Start, pr.End = &start, &end
	}
	return pr
}

// robustness compares out-of-sample performance to in-sample, half
// weighted on win rate, half on profit factor, clamped to [0,100].
func robustness(in, out *Statistics) float64 {
	if in.WinRate == 0 {
		return 0
	}

	winRateRatio := out.WinRate / in.WinRate

	pfRatio := 0.0
	if in.ProfitFactor > 0 {
		pfRatio = out.ProfitFactor / in.ProfitFactor
	}

	score := winRateRatio*50 + pfRatio*50
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
