// Package scheduler runs recurring analysis jobs and price alerts and
// pushes their results through the notifier.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goldbach-backtester/services/engine"
	"goldbach-backtester/services/feed"
	"goldbach-backtester/services/notify"
)

// JobType selects the handler a job runs.
type JobType string

const (
	JobAnalysis    JobType = "analysis"
	JobSignalCheck JobType = "signal_check"
	JobDailyReport JobType = "daily_report"
	JobPriceAlert  JobType = "price_alert"
)

// Job is one recurring task. Schedule grammar: "every_<duration>"
// (every_5m, every_1h), "HH:MM" for a daily wall-clock run, or
// "daily" for midnight.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        JobType         `json:"job_type"`
	Schedule    string          `json:"schedule"`
	Enabled     bool            `json:"enabled"`
	LastRun     *time.Time      `json:"last_run,omitempty"`
	NextRun     *time.Time      `json:"next_run,omitempty"`
	Symbols     []string        `json:"symbols,omitempty"`
	MinStrength engine.Strength `json:"min_strength,omitempty"`
}

// Alert condition kinds.
const (
	CondAbove = "above"
	CondBelow = "below"
)

// Alert is a one-shot price threshold.
type Alert struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Condition string    `json:"condition"`
	Price     float64   `json:"price"`
	Enabled   bool      `json:"enabled"`
	Triggered bool      `json:"triggered"`
	CreatedAt time.Time `json:"created_at"`
}

// check reports whether the alert should fire at the given price.
func (a *Alert) check(price float64) bool {
	if !a.Enabled || a.Triggered {
		return false
	}
	switch a.Condition {
	case CondAbove:
		return price > a.Price
	case CondBelow:
		return price < a.Price
	}
	return false
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running bool             `json:"running"`
	Jobs    map[string]Job   `json:"jobs"`
	Alerts  map[string]Alert `json:"alerts"`
}

// Scheduler owns the job table and the alert table.
type Scheduler struct {
	signal   *engine.Engine
	feed     *feed.Manager
	notifier *notify.Manager
	log      *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	alerts  map[string]*Alert
	running bool
}

func New(signal *engine.Engine, feedMgr *feed.Manager, notifier *notify.Manager, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		signal:   signal,
		feed:     feedMgr,
		notifier: notifier,
		log:      log,
		jobs:     map[string]*Job{},
		alerts:   map[string]*Alert{},
	}
}

// nextRun computes the next firing time for a schedule string.
func nextRun(schedule string, now time.Time) (time.Time, error) {
	switch {
	case strings.HasPrefix(schedule, "every_"):
		d, err := time.ParseDuration(strings.TrimPrefix(schedule, "every_"))
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("bad interval schedule %q", schedule)
		}
		return now.Add(d), nil

	case schedule == "daily":
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return next.AddDate(0, 0, 1), nil

	case strings.Contains(schedule, ":"):
		at, err := time.Parse("15:04", schedule)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad time schedule %q", schedule)
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized schedule %q", schedule)
}

// AddJob validates the schedule, assigns an id when missing and
// queues the job.
func (s *Scheduler) AddJob(job Job) (string, error) {
	now := time.Now()
	next, err := nextRun(job.Schedule, now)
	if err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.NextRun = &next

	s.mu.Lock()
	s.jobs[job.ID] = &job
	s.mu.Unlock()

	s.log.Info("job added",
		zap.String("id", job.ID),
		zap.String("name", job.Name),
		zap.String("schedule", job.Schedule))
	return job.ID, nil
}

func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

func (s *Scheduler) setJobEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Enabled = enabled
	return true
}

func (s *Scheduler) EnableJob(id string) bool  { return s.setJobEnabled(id, true) }
func (s *Scheduler) DisableJob(id string) bool { return s.setJobEnabled(id, false) }

// AddAlert queues a one-shot price alert.
func (s *Scheduler) AddAlert(alert Alert) string {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	alert.Enabled = true

	s.mu.Lock()
	s.alerts[alert.ID] = &alert
	s.mu.Unlock()

	s.log.Info("alert added",
		zap.String("id", alert.ID),
		zap.String("symbol", alert.Symbol),
		zap.String("condition", alert.Condition),
		zap.Float64("price", alert.Price))
	return alert.ID
}

func (s *Scheduler) RemoveAlert(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return false
	}
	delete(s.alerts, id)
	return true
}

// CheckAlerts fires every matching alert for the symbol at the given
// price. Fired alerts stay in the table, marked triggered.
func (s *Scheduler) CheckAlerts(ctx context.Context, symbol string, price float64) {
	s.mu.Lock()
	var fired []*Alert
	for _, a := range s.alerts {
		if a.Symbol == symbol && a.check(price) {
			a.Triggered = true
			fired = append(fired, a)
		}
	}
	s.mu.Unlock()

	for _, a := range fired {
		msg := fmt.Sprintf("🚨 <b>PRICE ALERT TRIGGERED</b> 🚨\n\n"+
			"<b>Symbol:</b> %s\n<b>Condition:</b> %s %.2f\n<b>Current:</b> %.2f\n<b>Time:</b> %s",
			a.Symbol, a.Condition, a.Price, price, time.Now().Format("15:04:05"))
		s.notifier.Send(ctx, msg)
		s.log.Info("alert triggered",
			zap.String("symbol", a.Symbol),
			zap.String("condition", a.Condition),
			zap.Float64("threshold", a.Price),
			zap.Float64("price", price))
	}
}

// Status returns a snapshot of the job and alert tables.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.running,
		Jobs:    make(map[string]Job, len(s.jobs)),
		Alerts:  make(map[string]Alert, len(s.alerts)),
	}
	for id, j := range s.jobs {
		st.Jobs[id] = *j
	}
	for id, a := range s.alerts {
		st.Alerts[id] = *a
	}
	return st
}

// Run executes due jobs until the context is canceled, checking the
// table every ten seconds.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	s.log.Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if job.Enabled && job.NextRun != nil && !now.Before(*job.NextRun) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.execute(ctx, job)

		s.mu.Lock()
		ran := now
		job.LastRun = &ran
		if next, err := nextRun(job.Schedule, now); err == nil {
			job.NextRun = &next
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	s.log.Info("executing job", zap.String("name", job.Name), zap.String("type", string(job.Type)))

	var err error
	switch job.Type {
	case JobAnalysis:
		err = s.runAnalysis(ctx, job)
	case JobSignalCheck:
		err = s.runSignalCheck(ctx, job)
	case JobDailyReport:
		err = s.runDailyReport(ctx, job)
	case JobPriceAlert:
		err = s.runPriceAlerts(ctx)
	default:
		err = fmt.Errorf("no handler for job type %q", job.Type)
	}
	if err != nil {
		s.log.Error("job failed", zap.String("name", job.Name), zap.Error(err))
	}
}

// SetupDefaultJobs installs the stock job table: analysis at session
// times, an hourly signal check, the evening report and a 5 minute
// alert sweep.
func (s *Scheduler) SetupDefaultJobs(symbols []string) {
	if len(symbols) == 0 {
		symbols = []string{"NQ"}
	}

	analysisTimes := []string{"08:00", "09:00", "14:30", "15:30", "21:00"}
	for _, at := range analysisTimes {
		s.AddJob(Job{
			Name:     fmt.Sprintf("Analysis at %s", at),
			Type:     JobAnalysis,
			Schedule: at,
			Enabled:  true,
			Symbols:  symbols,
		})
	}

	s.AddJob(Job{
		Name:        "Hourly Signal Check",
		Type:        JobSignalCheck,
		Schedule:    "every_1h",
		Enabled:     true,
		Symbols:     symbols,
		MinStrength: engine.StrengthStrong,
	})
	s.AddJob(Job{
		Name:     "Daily Report",
		Type:     JobDailyReport,
		Schedule: "21:00",
		Enabled:  true,
		Symbols:  symbols,
	})
	s.AddJob(Job{
		Name:     "Price Alert Check",
		Type:     JobPriceAlert,
		Schedule: "every_5m",
		Enabled:  true,
	})
}
