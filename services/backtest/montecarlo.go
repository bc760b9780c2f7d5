package backtest

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// CapitalDistribution summarizes the simulated final capital spread.
type CapitalDistribution struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P5   float64 `json:"percentile_5"`
	P25  float64 `json:"percentile_25"`
	P50  float64 `json:"percentile_50"`
	P75  float64 `json:"percentile_75"`
	P95  float64 `json:"percentile_95"`
}

// DrawdownDistribution summarizes the simulated max drawdown spread,
// in percent of the running peak.
type DrawdownDistribution struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P95  float64 `json:"percentile_95"`
}

// MonteCarloResult is the outcome of a resampling run.
type MonteCarloResult struct {
	Simulations  int                  `json:"simulations"`
	FinalCapital CapitalDistribution  `json:"final_capital"`
	MaxDrawdown  DrawdownDistribution `json:"max_drawdown"`
	RiskOfRuin   float64              `json:"risk_of_ruin"` // percent of runs ending at or below zero
}

// MonteCarlo reshuffles the recorded trade P&Ls numSims times and
// reports the resulting capital and drawdown distributions. Returns
// nil when no trades have been recorded.
func (e *Engine) MonteCarlo(numSims int) *MonteCarloResult {
	return e.MonteCarloWithRand(numSims, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// MonteCarloWithRand is MonteCarlo with a caller-supplied source, for
// reproducible runs.
func (e *Engine) MonteCarloWithRand(numSims int, rng *rand.Rand) *MonteCarloResult {
	if len(e.Trades) == 0 || numSims <= 0 {
		return nil
	}

	pnls := make([]float64, len(e.Trades))
	for i, t := range e.Trades {
		pnls[i] = t.Pnl.InexactFloat64()
	}
	initial := e.cfg.InitialCapital.InexactFloat64()

	finals := make([]float64, 0, numSims)
	drawdowns := make([]float64, 0, numSims)
	ruined := 0

	shuffled := make([]float64, len(pnls))
	for sim := 0; sim < numSims; sim++ {
		copy(shuffled, pnls)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		equity := initial
		peak := initial
		maxDD := 0.0
		for _, pnl := range shuffled {
			equity += pnl
			if equity > peak {
				peak = equity
			}
			if dd := (peak - equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}

		finals = append(finals, equity)
		drawdowns = append(drawdowns, maxDD)
		if equity <= 0 {
			ruined++
		}
	}

	sort.Float64s(finals)
	sort.Float64s(drawdowns)

	return &MonteCarloResult{
		Simulations: numSims,
		FinalCapital: CapitalDistribution{
			Mean: mean(finals),
			Std:  stddev(finals),
			Min:  finals[0],
			Max:  finals[len(finals)-1],
			P5:   percentile(finals, 5),
			P25:  percentile(finals, 25),
			P50:  percentile(finals, 50),
			P75:  percentile(finals, 75),
			P95:  percentile(finals, 95),
		},
		MaxDrawdown: DrawdownDistribution{
			Mean: mean(drawdowns),
			Std:  stddev(drawdowns),
			Min:  drawdowns[0],
			Max:  drawdowns[len(drawdowns)-1],
			P95:  percentile(drawdowns, 95),
		},
		RiskOfRuin: float64(ruined) / float64(numSims) * 100,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// percentile interpolates linearly between the two nearest ranks.
// xs must be sorted.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if len(xs) == 1 {
		return xs[0]
	}
	rank := p / 100 * float64(len(xs)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return xs[lo]
	}
	frac := rank - float64(lo)
	return xs[lo]*(1-frac) + xs[hi]*frac
}
