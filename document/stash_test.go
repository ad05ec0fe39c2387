package document

import (
	"testing"

	"github.com/masanar/syncordia/id"
	"github.com/masanar/syncordia/vclock"
)

// acceptAll is a Verify that always succeeds, used when the test only
// cares about placement, not signature checking.
func acceptAll(left, line, right Line) bool { return true }

func TestTryInsertRemoteSucceedsWhenNoConcurrency(t *testing.T) {
	d := New(0)
	left, right := d.ParentsOf(0)
	lineID, err := id.AllocateBetween(left.LineID, right.LineID, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	line := newLine(lineID, "remote", 1, "sig")
	localVC := vclock.New(2)
	remoteVC := vclock.New(2).Tick(1)

	ok, d2 := TryInsertRemote(d, line, localVC, remoteVC, 1, 0, acceptAll)
	if !ok {
		t.Fatal("expected TryInsertRemote to succeed")
	}
	if d2.Length() != 3 {
		t.Fatalf("Length()=%d, want 3", d2.Length())
	}
}

func TestTryInsertRemoteRejectsDuplicateID(t *testing.T) {
	d := New(0)
	lineID := mustMid(t, d, 0)
	_, d = d.InsertByPosition(0, lineID, "already-here", 0, "sig")

	dup := newLine(lineID, "dup", 1, "sig")
	ok, _ := TryInsertRemote(d, dup, vclock.New(2), vclock.New(2), 1, 0, acceptAll)
	if ok {
		t.Fatal("duplicate line ID must not be accepted")
	}
}

func TestTryInsertRemoteFailsWhenVerifyRejects(t *testing.T) {
	d := New(0)
	left, right := d.ParentsOf(0)
	lineID, err := id.AllocateBetween(left.LineID, right.LineID, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	line := newLine(lineID, "remote", 1, "bad-sig")
	rejectAll := func(left, line, right Line) bool { return false }

	ok, d2 := TryInsertRemote(d, line, vclock.New(2), vclock.New(2).Tick(1), 1, 0, rejectAll)
	if ok {
		t.Fatal("expected TryInsertRemote to fail when verify always rejects")
	}
	if d2.Length() != d.Length() {
		t.Fatal("document must be returned unchanged on failure")
	}
}

// TestSlidingWindowWidensToTolerateSkew simulates the scenario where the
// line's true neighbours have shifted under concurrent inserts, so the
// immediate (c-1, c+1) pair doesn't verify, but a wider pair does.
func TestSlidingWindowWidensToTolerateSkew(t *testing.T) {
	d := New(0)
	a := mustMid(t, d, 0)
	_, d = d.InsertByPosition(0, a, "a", 0, "sig-a")
	b := mustMidAt(t, d, 1, 2)
	_, d = d.InsertByPosition(1, b, "b", 0, "sig-b")
	// d is now [inf, a, b, sup]. The remote line's natural slot (by ID
	// order) lands it next to b, but its signature was bound against
	// (a, sup) — its true parents before b concurrently arrived.
	left, _ := d.LineAtIndex(1) // a
	mid, _ := d.LineAtIndex(2)  // b
	sup, _ := d.LineAtIndex(3)
	remoteID, err := id.AllocateBetween(mid.LineID, sup.LineID, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	remote := newLine(remoteID, "remote", 2, "sig-remote")

	verify := func(l, line, r Line) bool {
		return id.Equal(l.LineID, left.LineID) && id.Equal(r.LineID, sup.LineID)
	}

	// Projection distance forces a window wide enough to reach (a, sup).
	ok, _ := TryInsertRemote(d, remote, vclock.New(3), vclock.New(3).Tick(2).Tick(2), 2, 0, verify)
	if !ok {
		t.Fatal("expected sliding window to widen and find the (a, sup) pair")
	}
}

func TestStashAddPendingRemoveLen(t *testing.T) {
	s := NewStash()
	d := New(0)
	lineID := mustMid(t, d, 0)
	e := Entry{Line: newLine(lineID, "x", 1, "sig"), RemoteVC: vclock.New(2), Origin: 1}

	s.Add(e)
	if s.Len() != 1 {
		t.Fatalf("Len()=%d, want 1", s.Len())
	}
	pending := s.Pending(1)
	if len(pending) != 1 {
		t.Fatalf("Pending(1) has %d entries, want 1", len(pending))
	}

	s.Remove(1, lineID)
	if s.Len() != 0 {
		t.Fatalf("Len()=%d, want 0 after Remove", s.Len())
	}
	if len(s.Pending(1)) != 0 {
		t.Fatal("Pending(1) should be empty after Remove")
	}
}
