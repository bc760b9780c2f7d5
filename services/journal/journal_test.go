package journal

import (
	"testing"

	"goldbach-backtester/services/engine"
)

func setup(id int) *engine.TradeSetup {
	return &engine.TradeSetup{ID: id, Symbol: "NQ", Status: StatusPending}
}

func TestRecentNewestFirst(t *testing.T) {
	j := New(10)
	for i := 1; i <= 5; i++ {
		j.Add(setup(i))
	}

	got := j.Recent(3)
	if len(got) != 3 {
		t.Fatalf("recent = %d entries, want 3", len(got))
	}
	if got[0].ID != 5 || got[1].ID != 4 || got[2].ID != 3 {
		t.Fatalf("order = %d,%d,%d, want 5,4,3", got[0].ID, got[1].ID, got[2].ID)
	}

	if all := j.Recent(0); len(all) != 5 {
		t.Fatalf("recent(0) = %d entries, want all 5", len(all))
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	j := New(3)
	for i := 1; i <= 5; i++ {
		j.Add(setup(i))
	}

	got := j.Recent(0)
	if len(got) != 3 {
		t.Fatalf("entries = %d, want capacity 3", len(got))
	}
	if got[0].ID != 5 || got[2].ID != 3 {
		t.Fatalf("window = %d..%d, want 5..3", got[0].ID, got[2].ID)
	}
	if j.Find(1) != nil {
		t.Fatal("overwritten entry still findable")
	}
}

func TestSetStatus(t *testing.T) {
	j := New(5)
	j.Add(setup(1))

	if !j.SetStatus(1, StatusClosed, "WIN") {
		t.Fatal("set status failed")
	}
	s := j.Find(1)
	if s.Status != StatusClosed || s.Result != "WIN" {
		t.Fatalf("status/result = %s/%s", s.Status, s.Result)
	}

	if j.SetStatus(99, StatusClosed, "") {
		t.Fatal("unknown id should report false")
	}
}

func TestReadsAreSnapshots(t *testing.T) {
	j := New(5)
	original := setup(1)
	j.Add(original)

	// The journal keeps its own record, not the caller's pointer.
	original.Status = StatusExpired
	if got := j.Find(1); got.Status != StatusPending {
		t.Fatalf("stored status = %s, want PENDING", got.Status)
	}

	// Reads taken before a status change keep their snapshot.
	before := j.Find(1)
	recent := j.Recent(1)
	if !j.SetStatus(1, StatusClosed, "WIN") {
		t.Fatal("set status failed")
	}
	if before.Status != StatusPending || recent[0].Status != StatusPending {
		t.Fatalf("snapshots mutated: find=%s recent=%s", before.Status, recent[0].Status)
	}
	if after := j.Find(1); after.Status != StatusClosed || after.Result != "WIN" {
		t.Fatalf("record = %s/%s, want CLOSED/WIN", after.Status, after.Result)
	}
}
