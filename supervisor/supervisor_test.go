package supervisor

import (
	"testing"
	"time"

	"github.com/masanar/syncordia/auditlog"
	"github.com/masanar/syncordia/config"
	"github.com/masanar/syncordia/events"
	"github.com/masanar/syncordia/internal/testutil"
)

func netConfig(size int) config.NetworkConfig {
	return config.NetworkConfig{Size: size, StashSlack: 2, MailboxSize: 16}
}

func TestBootstrapAssignsPeerIDsByFirstAppearance(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{{Op: "insert", Content: "hi", Index: 0}}},
		{CommitHash: "c2", AuthorID: "alice", Edits: []Edit{{Op: "insert", Content: "yo", Index: 0}}},
	}
	sup, err := Bootstrap(commits, netConfig(2), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	if _, ok := sup.Handle("bob"); !ok {
		t.Fatal("bob should have been assigned a peer")
	}
	if _, ok := sup.Handle("alice"); !ok {
		t.Fatal("alice should have been assigned a peer")
	}
	if _, ok := sup.Handle("carol"); ok {
		t.Fatal("carol never appears in the trace and should have no handle")
	}
	if len(sup.Handles()) != 2 {
		t.Fatalf("Handles()=%d peers, want 2", len(sup.Handles()))
	}
}

func TestBootstrapRejectsEmptyTrace(t *testing.T) {
	if _, err := Bootstrap(nil, netConfig(1), events.NewEmitter(), nil); err == nil {
		t.Fatal("expected an error bootstrapping from an empty trace")
	}
}

func TestReplayConvergesAcrossPeers(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{
			{Op: "insert", Content: "first", Index: 0},
		}},
		{CommitHash: "c2", AuthorID: "alice", Edits: []Edit{
			{Op: "insert", Content: "second", Index: 1},
		}},
		{CommitHash: "c3", AuthorID: "bob", Edits: []Edit{
			{Op: "delete", Index: 2},
		}},
	}
	sup, err := Bootstrap(commits, netConfig(2), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	// Quiesce after each commit: alice's insert targets index 1 of her own
	// document, which must already contain bob's "first" line for the
	// resulting order ([inf, first, second, sup]) to be unambiguous, and
	// bob's delete targets index 2 under that same assumption.
	if err := sup.Replay(commits[0:1]); err != nil {
		t.Fatal(err)
	}
	if err := sup.Quiesce(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sup.Replay(commits[1:2]); err != nil {
		t.Fatal(err)
	}
	if err := sup.Quiesce(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sup.Replay(commits[2:3]); err != nil {
		t.Fatal(err)
	}
	if err := sup.Quiesce(time.Second); err != nil {
		t.Fatal(err)
	}

	snaps := sup.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("Snapshots()=%d entries, want 2", len(snaps))
	}
	var want string
	for id, snap := range snaps {
		if want == "" {
			want = snap.AliveContent
			continue
		}
		if snap.AliveContent != want {
			t.Fatalf("peer %d converged to %q, want %q (same as other peers)", id, snap.AliveContent, want)
		}
	}
	if want != "first" {
		t.Fatalf("converged content=%q, want %q (second got tombstoned)", want, "first")
	}
}

func TestReplayRejectsUnknownAuthor(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{{Op: "insert", Content: "x", Index: 0}}},
	}
	sup, err := Bootstrap(commits, netConfig(1), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	ghost := []Commit{
		{CommitHash: "c2", AuthorID: "ghost", Edits: []Edit{{Op: "insert", Content: "boo", Index: 0}}},
	}
	if err := sup.Replay(ghost); err == nil {
		t.Fatal("expected an error replaying a commit from an unknown author")
	}
}

func TestReplayRejectsUnknownOp(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{{Op: "rename", Index: 0}}},
	}
	sup, err := Bootstrap(commits, netConfig(1), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	if err := sup.Replay(commits); err == nil {
		t.Fatal("expected an error replaying an unrecognized op")
	}
}

func TestQuiesceNoOpWhenNothingPending(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{{Op: "insert", Content: "x", Index: 0}}},
	}
	sup, err := Bootstrap(commits, netConfig(1), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	if err := sup.Quiesce(0); err != nil {
		t.Fatalf("Quiesce with nothing in flight should not error: %v", err)
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{{Op: "insert", Content: "x", Index: 0}}},
	}
	sup, err := Bootstrap(commits, netConfig(1), events.NewEmitter(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sup.Teardown()
	sup.Teardown() // must not panic on a second call
}

func TestBootstrapWithAuditLogRecordsEveryBroadcast(t *testing.T) {
	commits := []Commit{
		{CommitHash: "c1", AuthorID: "bob", Edits: []Edit{
			{Op: "insert", Content: "first", Index: 0},
			{Op: "insert", Content: "second", Index: 1},
		}},
		{CommitHash: "c2", AuthorID: "alice", Edits: nil},
	}
	db := testutil.NewMemDB()
	audit := auditlog.OpenWith(db)
	sup, err := Bootstrap(commits, netConfig(2), events.NewEmitter(), audit)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Teardown)

	if err := sup.Replay(commits); err != nil {
		t.Fatal(err)
	}
	if err := sup.Quiesce(time.Second); err != nil {
		t.Fatal(err)
	}

	// Each of bob's two inserts broadcasts to the one other peer (alice),
	// so the audit log should have exactly two recorded observations.
	if got := db.Len(); got != 2 {
		t.Fatalf("audit log recorded %d observations, want 2 (one per broadcast)", got)
	}
}
