package backtest

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldbach-backtester/services/engine"
)

// Trade directions.
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Exit reasons.
const (
	ExitTarget1  = "TARGET_1"
	ExitTarget2  = "TARGET_2"
	ExitStopLoss = "STOP_LOSS"
	ExitTime     = "TIME_EXIT"
)

// Trade results.
const (
	ResultWin       = "WIN"
	ResultLoss      = "LOSS"
	ResultBreakeven = "BREAKEVEN"
)

// Trade is a single closed trade from a replay.
type Trade struct {
	ID           int              `json:"id"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitTime     time.Time        `json:"exit_time"`
	Symbol       string           `json:"symbol"`
	Direction    string           `json:"direction"`
	Plan         engine.TradePlan `json:"plan"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	ExitPrice    decimal.Decimal  `json:"exit_price"`
	StopLoss     decimal.Decimal  `json:"stop_loss"`
	Target1      decimal.Decimal  `json:"target_1"`
	Target2      decimal.Decimal  `json:"target_2"`
	PositionSize decimal.Decimal  `json:"position_size"`
	Pnl          decimal.Decimal  `json:"pnl"`
	PnlPct       decimal.Decimal  `json:"pnl_pct"`
	Result       string           `json:"result"`
	ExitReason   string           `json:"exit_reason"`
	BarsHeld     int              `json:"bars_held"`
	MAE          decimal.Decimal  `json:"mae"`
	MFE          decimal.Decimal  `json:"mfe"`
	Strength     engine.Strength  `json:"signal_strength"`
	GoldbachTime bool             `json:"goldbach_time"`
	AMDCycle     engine.AMDCycle  `json:"amd_cycle"`
}

// openPosition is the in-flight state of the single allowed position.
type openPosition struct {
	id           int
	entryBar     int
	entryTime    time.Time
	symbol       string
	direction    string
	plan         engine.TradePlan
	entryPrice   decimal.Decimal
	stopLoss     decimal.Decimal
	target1      decimal.Decimal
	target2      decimal.Decimal
	positionSize decimal.Decimal
	strength     engine.Strength
	goldbachTime bool
	amdCycle     engine.AMDCycle
	mae          decimal.Decimal
	mfe          decimal.Decimal
}

type exitInfo struct {
	price  decimal.Decimal
	reason string
}

// Engine replays bars against the signal engine.
type Engine struct {
	cfg    Config
	signal *engine.Engine
	log    *zap.Logger

	Trades []Trade
	Stats  *Statistics
}

// New creates a backtest engine. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		signal: engine.NewEngine(cfg.PO3Size),
		log:    log,
	}
}

// Run replays the bar series and returns the aggregated statistics.
// At most one position is open at any time. Entries are decided from
// the previous bar's close; a bar that closes a trade never opens the
// next one.
func (e *Engine) Run(bars []Bar, symbol string) (*Statistics, error) {
	if len(bars) == 0 {
		// Walk-forward folds can legitimately be empty.
		e.Trades = nil
		e.Stats = e.computeStatistics([]decimal.Decimal{e.cfg.InitialCapital})
		return e.Stats, nil
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	e.Trades = nil
	capital := e.cfg.InitialCapital
	equity := []decimal.Decimal{capital}

	var pos *openPosition
	tradeID := 0

	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		prevClose := bars[i-1].Close

		if pos != nil {
			if exit := e.checkExit(pos, bar, i); exit != nil {
				trade := e.closeTrade(pos, bar.Time, exit.price, exit.reason, i-pos.entryBar)
				e.Trades = append(e.Trades, trade)
				capital = capital.Add(trade.Pnl)
				equity = append(equity, capital)
				pos = nil
				continue
			}
			pos.updateExcursions(bar)
		}

		if pos != nil {
			continue
		}

		setup := e.signal.GenerateSetup(prevClose.InexactFloat64(), symbol, e.cfg.PO3Size, 0, bar.Time)
		if setup == nil || !e.filterSetup(setup) {
			continue
		}

		tradeID++
		size := capital.Mul(e.cfg.PositionSizePct).Div(decimal.NewFromInt(100))

		direction := DirectionShort
		if setup.Bias == engine.BiasBullish {
			direction = DirectionLong
		}

		entry := decimal.NewFromFloat(setup.EntryPrice)
		target1, target2 := entry, entry
		if len(setup.Targets) > 0 {
			target1 = decimal.NewFromFloat(setup.Targets[0].Price)
		}
		if len(setup.Targets) > 1 {
			target2 = decimal.NewFromFloat(setup.Targets[1].Price)
		}

		pos = &openPosition{
			id:           tradeID,
			entryBar:     i,
			entryTime:    bar.Time,
			symbol:       symbol,
			direction:    direction,
			plan:         setup.Plan,
			entryPrice:   entry,
			stopLoss:     decimal.NewFromFloat(setup.StopLoss),
			target1:      target1,
			target2:      target2,
			positionSize: size,
			strength:     setup.Strength,
			goldbachTime: setup.GoldbachTimeConfirm,
			amdCycle:     setup.AMDCycle,
			mae:          decimal.Zero,
			mfe:          decimal.Zero,
		}
	}

	// Force out whatever is still open at the end of the series.
	if pos != nil {
		last := bars[len(bars)-1]
		trade := e.closeTrade(pos, last.Time, last.Close, ExitTime, len(bars)-pos.entryBar)
		e.Trades = append(e.Trades, trade)
		capital = capital.Add(trade.Pnl)
		equity = append(equity, capital)
	}

	e.Stats = e.computeStatistics(equity)
	e.log.Info("backtest complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(e.Trades)),
		zap.String("final_capital", capital.StringFixed(2)))
	return e.Stats, nil
}

// filterSetup applies the configured entry filters.
func (e *Engine) filterSetup(s *engine.TradeSetup) bool {
	if engine.StrengthRank(s.Strength) < engine.StrengthRank(e.cfg.MinSignalStrength) {
		return false
	}

	planOK := false
	for _, p := range e.cfg.AllowedPlans {
		if p == s.Plan {
			planOK = true
			break
		}
	}
	if !planOK {
		return false
	}

	cycleOK := false
	for _, c := range e.cfg.AllowedAMDCycles {
		if c == s.AMDCycle {
			cycleOK = true
			break
		}
	}
	if !cycleOK {
		return false
	}

	if e.cfg.RequireGoldbachTime && !s.GoldbachTimeConfirm {
		return false
	}
	return true
}

// checkExit tests the exits in priority order: bar limit, stop, full
// target, partial target. Target 1 closes the whole position.
func (e *Engine) checkExit(pos *openPosition, bar Bar, barIdx int) *exitInfo {
	if barIdx-pos.entryBar >= e.cfg.MaxBarsInTrade {
		return &exitInfo{price: bar.Close, reason: ExitTime}
	}

	if pos.direction == DirectionLong {
		if e.cfg.UseStopLoss && bar.Low.LessThanOrEqual(pos.stopLoss) {
			return &exitInfo{price: pos.stopLoss, reason: ExitStopLoss}
		}
		if bar.High.GreaterThanOrEqual(pos.target2) {
			return &exitInfo{price: pos.target2, reason: ExitTarget2}
		}
		if bar.High.GreaterThanOrEqual(pos.target1) {
			return &exitInfo{price: pos.target1, reason: ExitTarget1}
		}
		return nil
	}

	if e.cfg.UseStopLoss && bar.High.GreaterThanOrEqual(pos.stopLoss) {
		return &exitInfo{price: pos.stopLoss, reason: ExitStopLoss}
	}
	if bar.Low.LessThanOrEqual(pos.target2) {
		return &exitInfo{price: pos.target2, reason: ExitTarget2}
	}
	if bar.Low.LessThanOrEqual(pos.target1) {
		return &exitInfo{price: pos.target1, reason: ExitTarget1}
	}
	return nil
}

// updateExcursions tracks the worst and best price move while a bar
// does not close the position.
func (p *openPosition) updateExcursions(bar Bar) {
	if p.direction == DirectionLong {
		p.mae = decimal.Min(p.mae, bar.Low.Sub(p.entryPrice))
		p.mfe = decimal.Max(p.mfe, bar.High.Sub(p.entryPrice))
		return
	}
	p.mae = decimal.Min(p.mae, p.entryPrice.Sub(bar.High))
	p.mfe = decimal.Max(p.mfe, p.entryPrice.Sub(bar.Low))
}

// closeTrade settles a position into a Trade record. Commission and
// slippage are charged once per fill, entry and exit both.
func (e *Engine) closeTrade(pos *openPosition, exitTime time.Time, exitPrice decimal.Decimal, reason string, barsHeld int) Trade {
	two := decimal.NewFromInt(2)

	var pnl decimal.Decimal
	if pos.direction == DirectionLong {
		pnl = exitPrice.Sub(pos.entryPrice).Mul(pos.positionSize)
	} else {
		pnl = pos.entryPrice.Sub(exitPrice).Mul(pos.positionSize)
	}
	pnl = pnl.Sub(e.cfg.Commission.Mul(two)).Sub(e.cfg.Slippage.Mul(two))

	pnlPct := decimal.Zero
	if !pos.positionSize.IsZero() {
		pnlPct = pnl.Div(pos.positionSize).Mul(decimal.NewFromInt(100))
	}

	result := ResultBreakeven
	switch {
	case pnl.IsPositive():
		result = ResultWin
	case pnl.IsNegative():
		result = ResultLoss
	}

	return Trade{
		ID:           pos.id,
		EntryTime:    pos.entryTime,
		ExitTime:     exitTime,
		Symbol:       pos.symbol,
		Direction:    pos.direction,
		Plan:         pos.plan,
		EntryPrice:   pos.entryPrice,
		ExitPrice:    exitPrice,
		StopLoss:     pos.stopLoss,
		Target1:      pos.target1,
		Target2:      pos.target2,
		PositionSize: pos.positionSize,
		Pnl:          pnl,
		PnlPct:       pnlPct,
		Result:       result,
		ExitReason:   reason,
		BarsHeld:     barsHeld,
		MAE:          pos.mae,
		MFE:          pos.mfe,
		Strength:     pos.strength,
		GoldbachTime: pos.goldbachTime,
		AMDCycle:     pos.amdCycle,
	}
}
