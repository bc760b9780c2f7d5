package engine

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 8, hour, minute, 0, 0, time.UTC)
}

func TestAnalyzeTime(t *testing.T) {
	sig := AnalyzeTime(at(14, 29))
	if sig.Sum != 43 {
		t.Fatalf("sum = %d, want 43", sig.Sum)
	}
	if sig.IsGoldbach {
		t.Fatal("43 is not a Goldbach number")
	}
	if sig.Nearest != 41 {
		t.Fatalf("nearest = %d, want 41", sig.Nearest)
	}

	hit := AnalyzeTime(at(14, 33)) // 47
	if !hit.IsGoldbach || hit.Nearest != 47 {
		t.Fatalf("14:33 should be Goldbach with nearest 47, got %+v", hit)
	}
}

func TestNextGoldbachTimes(t *testing.T) {
	times := NextGoldbachTimes(at(14, 29), 5)
	if len(times) != 5 {
		t.Fatalf("got %d times, want 5", len(times))
	}
	prev := at(14, 29)
	for _, sig := range times {
		if !sig.IsGoldbach {
			t.Fatalf("%d:%02d is not Goldbach", sig.Hour, sig.Minute)
		}
		if !sig.Time.After(prev) {
			t.Fatal("times must be strictly increasing")
		}
		prev = sig.Time
	}
	// 14:29 -> first hits are 14:33 (47) then 14:39 (53).
	if times[0].Minute != 33 || times[1].Minute != 39 {
		t.Fatalf("unexpected first times: %d, %d", times[0].Minute, times[1].Minute)
	}
}

func TestAMDCycleBoundaries(t *testing.T) {
	cases := []struct {
		hour int
		want AMDCycle
	}{
		{20, CycleAsian},
		{23, CycleAsian},
		{0, CycleAsian},
		{2, CycleAsian},
		{3, CycleManipulation},
		{8, CycleManipulation},
		{9, CycleDistribution1},
		{11, CycleDistribution1},
		{12, CycleDistribution2},
		{16, CycleDistribution2},
		{19, CycleDistribution2},
	}
	for _, c := range cases {
		if got := AMDCycleAt(at(c.hour, 0)); got.Cycle != c.want {
			t.Errorf("hour %d: cycle = %s, want %s", c.hour, got.Cycle, c.want)
		}
	}
}

func TestPartitionInfoKeyDay(t *testing.T) {
	// March starts on day 6; March 8 is partition day 3, a key day.
	info := PartitionInfoAt(time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC))
	if info.PartitionDay != 3 {
		t.Fatalf("partition day = %d, want 3", info.PartitionDay)
	}
	if !info.IsKeyDay {
		t.Fatal("day 3 should be a key day")
	}
	if info.KeyDayNote == "" {
		t.Fatal("key day must carry a note")
	}
	if info.ExpectedStopRunPips != 36 {
		t.Fatalf("expected stop run = %d, want 36", info.ExpectedStopRunPips)
	}
}

func TestPartitionInfoBeforeStart(t *testing.T) {
	// March 4 is before the partition start; belongs to the previous one.
	info := PartitionInfoAt(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC))
	if info.PartitionDay != 0 {
		t.Fatalf("partition day = %d, want 0", info.PartitionDay)
	}
	if info.IsKeyDay {
		t.Fatal("day 0 must not be a key day")
	}
}
