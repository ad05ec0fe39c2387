// Package supervisor bootstraps a set of peers, replays an edit trace
// against them, and tears them down. Per spec §4.7 it is intentionally
// thin test-scaffolding, not part of the CRDT core; the trace format it
// consumes is opaque application data, not a core wire message.
package supervisor

import (
	"fmt"
	"log"
	"time"

	"github.com/masanar/syncordia/auditlog"
	"github.com/masanar/syncordia/config"
	"github.com/masanar/syncordia/crypto"
	"github.com/masanar/syncordia/events"
	"github.com/masanar/syncordia/keyring"
	"github.com/masanar/syncordia/peer"
	"github.com/masanar/syncordia/transport"
)

// Supervisor owns a run's peers, bus, and (optional) audit log for its
// whole lifetime.
type Supervisor struct {
	bus      *transport.Bus
	emitter  *events.Emitter
	audit    *auditlog.Log
	handles  map[int]peer.Handle
	authorID map[string]int
	stopped  bool
}

// Bootstrap assigns one peer ID per distinct trace author (in order of
// first appearance), generates a signing keypair for each, builds the
// shared directory, and starts every peer. audit may be nil to skip
// durable logging.
func Bootstrap(commits []Commit, net config.NetworkConfig, emitter *events.Emitter, audit *auditlog.Log) (*Supervisor, error) {
	authors := AuthorOrder(commits)
	size := len(authors)
	if size == 0 {
		return nil, fmt.Errorf("supervisor: trace has no commits")
	}

	bus := transport.NewBus()
	if audit != nil {
		bus.SetObserver(func(senderID int, msg transport.Broadcast) {
			if err := audit.Append(msg); err != nil {
				log.Printf("[supervisor] audit log append: %v", err)
			}
		})
	}

	directory := peer.Directory{}
	privKeys := make(map[int]crypto.PrivateKey, size)
	authorID := make(map[string]int, size)
	for i, author := range authors {
		priv, pub, err := keyring.Generate()
		if err != nil {
			return nil, fmt.Errorf("supervisor: generate key for author %q: %w", author, err)
		}
		directory[i] = pub
		privKeys[i] = priv
		authorID[author] = i
	}

	mailboxSize := net.MailboxSize
	if mailboxSize == 0 {
		mailboxSize = 256
	}
	stashSlack := uint64(net.StashSlack)

	handles := make(map[int]peer.Handle, size)
	for i := range authors {
		h, err := peer.Start(i, size, privKeys[i], directory, bus, emitter, mailboxSize, stashSlack)
		if err != nil {
			return nil, fmt.Errorf("supervisor: start peer %d: %w", i, err)
		}
		handles[i] = h
	}

	return &Supervisor{
		bus:      bus,
		emitter:  emitter,
		audit:    audit,
		handles:  handles,
		authorID: authorID,
	}, nil
}

// Handle returns the peer handle for author, and whether it exists.
func (s *Supervisor) Handle(author string) (peer.Handle, bool) {
	id, ok := s.authorID[author]
	if !ok {
		return peer.Handle{}, false
	}
	h, ok := s.handles[id]
	return h, ok
}

// Handles returns every live peer handle, keyed by peer ID.
func (s *Supervisor) Handles() map[int]peer.Handle {
	return s.handles
}

// Replay drives every commit's edits, in trace order, through the
// authoring peer's handle. Insert and Delete already block until applied
// and broadcast (spec §9: "replace [sleeps] with explicit
// acknowledgements"), so no per-operation pause is needed; Quiesce should
// be called afterward to wait for cross-peer delivery before reading any
// snapshot other than the author's own.
func (s *Supervisor) Replay(commits []Commit) error {
	for _, c := range commits {
		h, ok := s.Handle(c.AuthorID)
		if !ok {
			return fmt.Errorf("supervisor: commit %s: unknown author %q", c.CommitHash, c.AuthorID)
		}
		for _, e := range c.Edits {
			switch e.Op {
			case "insert":
				h.Insert(e.Content, e.Index)
			case "delete":
				h.Delete(e.Index)
			default:
				return fmt.Errorf("supervisor: commit %s: unknown op %q", c.CommitHash, e.Op)
			}
		}
	}
	return nil
}

// Quiesce blocks until every broadcast sent so far has been dequeued by
// its recipients, or timeout elapses. This is the "quiescence barrier"
// spec §9 asks for in place of the donor's blind per-operation sleeps:
// it only waits as long as messages are actually in flight.
func (s *Supervisor) Quiesce(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for s.bus.Pending() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("supervisor: quiescence timeout with %d broadcasts still pending", s.bus.Pending())
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Snapshots returns a point-in-time snapshot of every peer, keyed by peer
// ID, for convergence checking (spec §4.7 "snapshot each peer's content").
func (s *Supervisor) Snapshots() map[int]peer.Snapshot {
	out := make(map[int]peer.Snapshot, len(s.handles))
	for id, h := range s.handles {
		out[id] = h.Snapshot()
	}
	return out
}

// Teardown stops every peer and kills the transport, matching spec §6's
// kill_all(). It is safe to call more than once.
func (s *Supervisor) Teardown() {
	if s.stopped {
		return
	}
	s.stopped = true
	for _, h := range s.handles {
		h.Stop()
	}
	s.bus.KillAll()
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			log.Printf("[supervisor] audit log close: %v", err)
		}
	}
}
