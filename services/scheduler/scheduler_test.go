package scheduler

import (
	"testing"
	"time"

	"goldbach-backtester/services/engine"
	"goldbach-backtester/services/notify"
)

func newTestScheduler() *Scheduler {
	return New(engine.NewEngine(0), nil, notify.NewManager(notify.Config{}, nil), nil)
}

func TestNextRunGrammar(t *testing.T) {
	now := time.Date(2025, time.March, 18, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		schedule string
		want     time.Time
	}{
		{"every_5m", now.Add(5 * time.Minute)},
		{"every_1h", now.Add(time.Hour)},
		{"14:30", time.Date(2025, time.March, 18, 14, 30, 0, 0, time.UTC)},
		// A wall-clock time already past today rolls to tomorrow.
		{"08:00", time.Date(2025, time.March, 19, 8, 0, 0, 0, time.UTC)},
		{"daily", time.Date(2025, time.March, 19, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := nextRun(c.schedule, now)
		if err != nil {
			t.Errorf("nextRun(%q): %v", c.schedule, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("nextRun(%q) = %v, want %v", c.schedule, got, c.want)
		}
	}
}

func TestNextRunRejectsGarbage(t *testing.T) {
	now := time.Now()
	for _, schedule := range []string{"", "every_", "every_banana", "25:99", "sometimes"} {
		if _, err := nextRun(schedule, now); err == nil {
			t.Errorf("nextRun(%q): expected error", schedule)
		}
	}
}

func TestAddJobAssignsIDAndNextRun(t *testing.T) {
	s := newTestScheduler()

	id, err := s.AddJob(Job{Name: "test", Type: JobAnalysis, Schedule: "every_5m", Enabled: true})
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	st := s.Status()
	job, ok := st.Jobs[id]
	if !ok {
		t.Fatal("job missing from status")
	}
	if job.NextRun == nil || !job.NextRun.After(time.Now()) {
		t.Fatalf("next run = %v, want future time", job.NextRun)
	}

	if !s.DisableJob(id) {
		t.Fatal("disable failed")
	}
	if s.Status().Jobs[id].Enabled {
		t.Fatal("job still enabled")
	}
	if !s.RemoveJob(id) {
		t.Fatal("remove failed")
	}
	if s.RemoveJob(id) {
		t.Fatal("second remove should report missing")
	}
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler()
	if _, err := s.AddJob(Job{Name: "bad", Type: JobAnalysis, Schedule: "whenever"}); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestAlertCheck(t *testing.T) {
	above := Alert{Symbol: "NQ", Condition: CondAbove, Price: 21500, Enabled: true}
	if above.check(21400) {
		t.Fatal("above alert fired below threshold")
	}
	if !above.check(21600) {
		t.Fatal("above alert did not fire")
	}

	below := Alert{Symbol: "NQ", Condition: CondBelow, Price: 21500, Enabled: true}
	if !below.check(21400) {
		t.Fatal("below alert did not fire")
	}

	triggered := Alert{Symbol: "NQ", Condition: CondAbove, Price: 21500, Enabled: true, Triggered: true}
	if triggered.check(21600) {
		t.Fatal("one-shot alert fired twice")
	}

	disabled := Alert{Symbol: "NQ", Condition: CondAbove, Price: 21500}
	if disabled.check(21600) {
		t.Fatal("disabled alert fired")
	}
}

func TestSetupDefaultJobs(t *testing.T) {
	s := newTestScheduler()
	s.SetupDefaultJobs(nil)

	st := s.Status()
	if len(st.Jobs) != 8 {
		t.Fatalf("default jobs = %d, want 8", len(st.Jobs))
	}

	counts := map[JobType]int{}
	for _, j := range st.Jobs {
		counts[j.Type]++
		if !j.Enabled {
			t.Errorf("job %s not enabled", j.Name)
		}
	}
	if counts[JobAnalysis] != 5 || counts[JobSignalCheck] != 1 ||
		counts[JobDailyReport] != 1 || counts[JobPriceAlert] != 1 {
		t.Fatalf("job mix = %v", counts)
	}
}
