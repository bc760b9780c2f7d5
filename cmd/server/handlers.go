package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldbach-backtester/services/backtest"
	"goldbach-backtester/services/engine"
	"goldbach-backtester/services/scheduler"
)

func (s *apiServer) setupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/levels/:range", s.handleLevels)
		api.GET("/goldbach-time", s.handleGoldbachTime)
		api.GET("/amd-cycle", s.handleAMDCycle)
		api.GET("/partition", s.handlePartition)

		api.POST("/signal", s.handleSignal)
		api.GET("/signals", s.handleSignals)
		api.PATCH("/signals/:id", s.handleSignalStatus)

		api.POST("/backtest", s.handleBacktest)
		api.POST("/montecarlo", s.handleMonteCarlo)
		api.POST("/walkforward", s.handleWalkForward)

		api.GET("/scheduler/status", s.handleSchedulerStatus)
		api.POST("/scheduler/jobs", s.handleAddJob)
		api.DELETE("/scheduler/jobs/:id", s.handleRemoveJob)
		api.POST("/scheduler/alerts", s.handleAddAlert)
		api.DELETE("/scheduler/alerts/:id", s.handleRemoveAlert)

		api.GET("/health", s.handleHealth)
	}
	r.GET("/ws", gin.WrapF(s.hub.ServeWS))
}

type analyzeRequest struct {
	Price     float64 `json:"price" binding:"required"`
	PO3       int     `json:"po3_size"`
	TrendDays int     `json:"trend_days"`
}

func (s *apiServer) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"position":  s.signal.PositionInfo(req.Price, req.PO3),
		"bias":      s.signal.AnalyzeBias(req.Price, req.PO3, req.TrendDays),
		"time":      engine.AnalyzeTime(now),
		"amd_cycle": engine.AMDCycleAt(now),
		"partition": engine.PartitionInfoAt(now),
	})
}

// handleLevels expands the Goldbach level table of the range enclosing
// ?price= for the PO3 size in the path.
func (s *apiServer) handleLevels(c *gin.Context) {
	po3, err := strconv.Atoi(c.Param("range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range must be a PO3 size"})
		return
	}
	valid := false
	for _, size := range engine.PO3Sizes {
		if size == po3 {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid PO3 size %d, valid sizes: %v", po3, engine.PO3Sizes)})
		return
	}

	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price query parameter required"})
		return
	}

	c.JSON(http.StatusOK, s.signal.CalcRange(price, po3))
}

func (s *apiServer) handleGoldbachTime(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"current": engine.AnalyzeTime(now),
		"next":    engine.NextGoldbachTimes(now, 5),
	})
}

func (s *apiServer) handleAMDCycle(c *gin.Context) {
	c.JSON(http.StatusOK, engine.AMDCycleAt(time.Now()))
}

func (s *apiServer) handlePartition(c *gin.Context) {
	c.JSON(http.StatusOK, engine.PartitionInfoAt(time.Now()))
}

type signalRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
	PO3       int     `json:"po3_size"`
	TrendDays int     `json:"trend_days"`
}

func (s *apiServer) handleSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setup := s.signal.GenerateSetup(req.Price, req.Symbol, req.PO3, req.TrendDays, time.Now())

	if setup == nil {
		c.JSON(http.StatusOK, gin.H{"setup": nil, "message": "no clear setup at current position"})
		return
	}

	s.journal.Add(setup)
	s.hub.Broadcast(gin.H{"type": "setup", "data": setup})
	c.JSON(http.StatusOK, gin.H{"setup": setup})
}

func (s *apiServer) handleSignals(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"signals": s.journal.Recent(limit)})
}

type signalStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Result string `json:"result"`
}

func (s *apiServer) handleSignalStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	var req signalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.journal.SetStatus(id, req.Status, req.Result) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("signal %d not found", id)})
		return
	}
	c.JSON(http.StatusOK, s.journal.Find(id))
}

// backtestRequest selects the bar source and overrides the stock
// config. CSVPath wins over the symbol/date range; the latter needs
// ClickHouse.
type backtestRequest struct {
	Symbol  string `json:"symbol"`
	CSVPath string `json:"csv_path"`
	Start   string `json:"start"`
	End     string `json:"end"`

	InitialCapital      *float64 `json:"initial_capital"`
	PositionSizePct     *float64 `json:"position_size_pct"`
	Commission          *float64 `json:"commission"`
	Slippage            *float64 `json:"slippage"`
	UseStopLoss         *bool    `json:"use_stop_loss"`
	MinSignalStrength   string   `json:"min_signal_strength"`
	AllowedPlans        []string `json:"allowed_plans"`
	AllowedAMDCycles    []string `json:"allowed_amd_cycles"`
	RequireGoldbachTime *bool    `json:"require_goldbach_time"`
	MaxBarsInTrade      *int     `json:"max_bars_in_trade"`
	PO3Size             *int     `json:"po3_size"`
}

func (r *backtestRequest) config() (backtest.Config, error) {
	cfg := backtest.DefaultConfig()
	if r.InitialCapital != nil {
		cfg.InitialCapital = decimal.NewFromFloat(*r.InitialCapital)
	}
	if r.PositionSizePct != nil {
		cfg.PositionSizePct = decimal.NewFromFloat(*r.PositionSizePct)
	}
	if r.Commission != nil {
		cfg.Commission = decimal.NewFromFloat(*r.Commission)
	}
	if r.Slippage != nil {
		cfg.Slippage = decimal.NewFromFloat(*r.Slippage)
	}
	if r.UseStopLoss != nil {
		cfg.UseStopLoss = *r.UseStopLoss
	}
	if r.MinSignalStrength != "" {
		strength := engine.Strength(r.MinSignalStrength)
		if engine.StrengthRank(strength) < 0 {
			return cfg, fmt.Errorf("unknown signal strength %q", r.MinSignalStrength)
		}
		cfg.MinSignalStrength = strength
	}
	if r.AllowedPlans != nil {
		cfg.AllowedPlans = cfg.AllowedPlans[:0]
		for _, p := range r.AllowedPlans {
			cfg.AllowedPlans = append(cfg.AllowedPlans, engine.TradePlan(p))
		}
	}
	if r.AllowedAMDCycles != nil {
		cfg.AllowedAMDCycles = cfg.AllowedAMDCycles[:0]
		for _, cy := range r.AllowedAMDCycles {
			cfg.AllowedAMDCycles = append(cfg.AllowedAMDCycles, engine.AMDCycle(cy))
		}
	}
	if r.RequireGoldbachTime != nil {
		cfg.RequireGoldbachTime = *r.RequireGoldbachTime
	}
	if r.MaxBarsInTrade != nil {
		cfg.MaxBarsInTrade = *r.MaxBarsInTrade
	}
	if r.PO3Size != nil {
		cfg.PO3Size = *r.PO3Size
	}
	return cfg, nil
}

// loadBars resolves the bar source of a backtest request.
func (s *apiServer) loadBars(c *gin.Context, req *backtestRequest) ([]backtest.Bar, bool) {
	if req.CSVPath != "" {
		bars, err := backtest.LoadCSV(req.CSVPath, s.logger)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		return bars, true
	}

	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "csv_path or symbol required"})
		return nil, false
	}
	if s.feedMgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "historical data store unavailable, use csv_path"})
		return nil, false
	}

	from, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return nil, false
	}
	to, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return nil, false
	}

	bars, err := s.feedMgr.History(c.Request.Context(), req.Symbol, from, to)
	if err != nil {
		s.logger.Error("history query failed", zap.String("symbol", req.Symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return bars, true
}

func (s *apiServer) runBacktest(c *gin.Context, req *backtestRequest) (*backtest.Engine, bool) {
	cfg, err := req.config()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	bars, ok := s.loadBars(c, req)
	if !ok {
		return nil, false
	}

	bt := backtest.New(cfg, s.logger)
	if _, err := bt.Run(bars, req.Symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return bt, true
}

func (s *apiServer) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bt, ok := s.runBacktest(c, &req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics": bt.Stats,
		"trades":     bt.Trades,
		"report":     bt.Report(),
	})
}

type monteCarloRequest struct {
	backtestRequest
	Simulations int `json:"simulations"`
}

func (s *apiServer) handleMonteCarlo(c *gin.Context) {
	var req monteCarloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Simulations <= 0 {
		req.Simulations = 1000
	}

	bt, ok := s.runBacktest(c, &req.backtestRequest)
	if !ok {
		return
	}
	result := bt.MonteCarlo(req.Simulations)
	if result == nil {
		c.JSON(http.StatusOK, gin.H{"montecarlo": nil, "message": "no trades to resample"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"montecarlo": result, "statistics": bt.Stats})
}

type walkForwardRequest struct {
	backtestRequest
	InSamplePct float64 `json:"in_sample_pct"`
	NumFolds    int     `json:"num_folds"`
}

func (s *apiServer) handleWalkForward(c *gin.Context) {
	var req walkForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InSamplePct == 0 {
		req.InSamplePct = 0.7
	}
	if req.NumFolds == 0 {
		req.NumFolds = 5
	}

	cfg, err := req.config()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bars, ok := s.loadBars(c, &req.backtestRequest)
	if !ok {
		return
	}

	bt := backtest.New(cfg, s.logger)
	folds, err := bt.WalkForward(bars, req.Symbol, req.InSamplePct, req.NumFolds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"folds": folds})
}

func (s *apiServer) handleSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.sched.Status())
}

func (s *apiServer) handleAddJob(c *gin.Context) {
	var job scheduler.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.sched.AddJob(job)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *apiServer) handleRemoveJob(c *gin.Context) {
	if !s.sched.RemoveJob(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *apiServer) handleAddAlert(c *gin.Context) {
	var alert scheduler.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if alert.Symbol == "" || alert.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and positive price required"})
		return
	}
	if alert.Condition != scheduler.CondAbove && alert.Condition != scheduler.CondBelow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition must be above or below"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": s.sched.AddAlert(alert)})
}

func (s *apiServer) handleRemoveAlert(c *gin.Context) {
	if !s.sched.RemoveAlert(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *apiServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"time":            time.Now().UTC(),
		"clickhouse":      s.chClient != nil,
		"stream_clients":  s.hub.Clients(),
		"default_po3":     s.cfg.DefaultPO3,
		"tracked_symbols": s.cfg.Symbols,
	})
}
