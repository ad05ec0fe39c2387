// Package peer implements the single-threaded, message-driven state
// machine of spec §4.6: one goroutine per replica, owning its document,
// vector clock, and pending stash exclusively, interleaving local commands
// and remote broadcasts off of one mailbox.
package peer

import (
	"log"

	"github.com/masanar/syncordia/byzantine"
	"github.com/masanar/syncordia/crypto"
	"github.com/masanar/syncordia/document"
	"github.com/masanar/syncordia/events"
	"github.com/masanar/syncordia/id"
	"github.com/masanar/syncordia/transport"
	"github.com/masanar/syncordia/vclock"
)

// Directory maps a peer ID to its signing public key. It is populated once
// at network bootstrap and never mutated afterward (spec §5's "sentinel
// registry... written once... thereafter read-only").
type Directory map[int]crypto.PublicKey

// Peer is one replica's private state. Every field is touched only from
// the goroutine running Peer.run; nothing here is safe to access
// concurrently from outside the package, which is why the public surface
// is the Handle type in handle.go.
type Peer struct {
	id        int
	priv      crypto.PrivateKey
	directory Directory

	doc   document.Document
	vc    vclock.Clock
	stash *document.Stash

	bus         *transport.Bus
	inbox       transport.Inbox
	commands    chan command
	transportH  string
	stashSlack  uint64
	networkSize int

	emitter *events.Emitter
}

// Start creates a peer, registers it on bus, and launches its message
// loop in a background goroutine. This is the "start(peer_id,
// network_size) -> handle" operation of spec §6.
func Start(peerID, networkSize int, priv crypto.PrivateKey, directory Directory, bus *transport.Bus, emitter *events.Emitter, mailboxSize int, stashSlack uint64) (Handle, error) {
	inbox, err := bus.Register(peerID, mailboxSize)
	if err != nil {
		return Handle{}, err
	}
	p := &Peer{
		id:          peerID,
		priv:        priv,
		directory:   directory,
		doc:         document.New(peerID),
		vc:          vclock.New(networkSize),
		stash:       document.NewStash(),
		bus:         bus,
		inbox:       inbox,
		commands:    make(chan command, mailboxSize),
		stashSlack:  stashSlack,
		networkSize: networkSize,
		emitter:     emitter,
	}
	go p.run()
	if emitter != nil {
		emitter.Emit(events.Event{Type: events.PeerStarted, PeerID: peerID})
	}
	return Handle{peerID: peerID, commands: p.commands}, nil
}

// run is the single-threaded mailbox loop (spec §5: "suspension points:
// only on mailbox receive... the handler runs to completion before the
// next message is dequeued").
func (p *Peer) run() {
	for {
		select {
		case c, ok := <-p.commands:
			if !ok {
				return
			}
			if p.handleCommand(c) {
				return
			}
		case b, ok := <-p.inbox:
			if !ok {
				return
			}
			p.handleBroadcast(b)
			p.bus.Done()
		}
	}
}

// handleCommand processes one locally-issued command. It returns true if
// the peer should stop its loop.
func (p *Peer) handleCommand(c command) bool {
	defer func() {
		if c.done != nil {
			close(c.done)
		}
	}()
	switch c.kind {
	case cmdInsert:
		p.handleInsert(c.content, c.idx)
	case cmdDelete:
		p.handleDelete(c.idx)
	case cmdPrintContent:
		if c.replyText != nil {
			c.replyText <- p.doc.AliveContent("\n")
		}
	case cmdSavePID:
		p.transportH = c.pid
	case cmdSnapshot:
		if c.replySnapshot != nil {
			c.replySnapshot <- p.snapshot()
		}
	case cmdStop:
		return true
	default:
		log.Printf("[peer %d] unknown local command %v, ignoring", p.id, c.kind)
		p.emit(events.UnknownMessageIgnored, nil)
	}
	return false
}

// handleInsert implements the (insert, content, idx) transition of spec
// §4.6: pick neighbours, allocate a dense ID, sign, tick the own VC entry,
// append locally, and broadcast.
func (p *Peer) handleInsert(content string, idx int) {
	left, right := p.doc.ParentsOf(idx)
	newID, err := id.AllocateBetween(left.LineID, right.LineID, p.id, p.networkSize)
	if err != nil {
		// Capacity exhaustion is fatal at the originator (spec §4.1, §7):
		// the operation is dropped, nothing is broadcast, and the peer
		// logs. With an arbitrary-precision rational this path is
		// unreachable in practice, but the contract is honored regardless.
		log.Printf("[peer %d] FATAL capacity exhausted between %s and %s: %v", p.id, left.LineID, right.LineID, err)
		p.emit(events.CapacityExhausted, map[string]any{"left": left.LineID.String(), "right": right.LineID.String()})
		return
	}
	sig := byzantine.Sign(p.priv, left.LineID, content, newID, right.LineID)
	p.vc = p.vc.Tick(p.id)
	line, newDoc := p.doc.InsertByPosition(idx, newID, content, p.id, sig)
	p.doc = newDoc.MarkCommitAt(line.LineID, p.id, p.vc.At(p.id))

	wl, err := lineToWire(line)
	if err != nil {
		log.Printf("[peer %d] encode line for broadcast: %v", p.id, err)
		return
	}
	p.bus.Broadcast(p.id, transport.Broadcast{
		Kind:     transport.KindInsert,
		Line:     wl,
		VC:       p.vc.Snapshot(),
		SenderID: p.id,
	})
	p.emit(events.LineInserted, map[string]any{"line_id": line.LineID.String(), "local": true})
}

// handleDelete implements the (delete, idx) transition: mark a tombstone
// and broadcast.
func (p *Peer) handleDelete(idx int) {
	line, ok := p.doc.LineAtIndex(idx)
	if !ok {
		log.Printf("[peer %d] delete: index %d out of range", p.id, idx)
		return
	}
	newDoc, err := p.doc.DeleteByIndex(idx)
	if err != nil {
		log.Printf("[peer %d] delete rejected: %v", p.id, err)
		return
	}
	p.doc = newDoc
	p.vc = p.vc.Tick(p.id)

	p.bus.Broadcast(p.id, transport.Broadcast{
		Kind:         transport.KindDelete,
		LineID:       line.LineID.String(),
		OriginPeerID: line.PeerID,
		VC:           p.vc.Snapshot(),
		SenderID:     p.id,
	})
	p.emit(events.LineTombstoned, map[string]any{"line_id": line.LineID.String(), "local": true})
}

// handleBroadcast dispatches an incoming Broadcast to the recv_insert or
// recv_delete transition.
func (p *Peer) handleBroadcast(b transport.Broadcast) {
	switch b.Kind {
	case transport.KindInsert:
		p.handleRecvInsert(b)
	case transport.KindDelete:
		p.handleRecvDelete(b)
	default:
		log.Printf("[peer %d] unknown broadcast kind %q, ignoring", p.id, b.Kind)
		p.emit(events.UnknownMessageIgnored, map[string]any{"kind": string(b.Kind)})
	}
}

// verifier returns a document.Verify closure bound to this peer's
// directory, so the document package never needs to know about key
// material.
func (p *Peer) verifier() document.Verify {
	return func(left, line, right document.Line) bool {
		pub, ok := p.directory[line.PeerID]
		if !ok {
			return false
		}
		return byzantine.Verify(pub, left.LineID, line.Content, line.LineID, right.LineID, line.Signature)
	}
}

// handleRecvInsert implements the (recv_insert, line, sender_vc)
// transition: run the sliding-window validation of spec §4.5; on success,
// insert, merge clocks, and replay the sender's pending stash; on
// failure, park the line.
func (p *Peer) handleRecvInsert(b transport.Broadcast) {
	line, err := wireToLine(b.Line)
	if err != nil {
		log.Printf("[peer %d] decode incoming line: %v", p.id, err)
		return
	}
	remoteVC := vclock.FromSnapshot(b.VC)

	if _, exists := p.doc.LineByID(line.LineID); exists {
		// Already applied (e.g. re-delivered, or reached via another
		// path) — discard outright rather than stashing, since a
		// duplicate can never succeed on retry.
		p.emit(events.LineDiscardedDupe, map[string]any{"line_id": line.LineID.String(), "sender": b.SenderID})
		return
	}

	ok, newDoc := document.TryInsertRemote(p.doc, line, p.vc, remoteVC, b.SenderID, p.stashSlack, p.verifier())
	if ok {
		p.vc = vclock.Merge(p.vc, remoteVC)
		p.doc = newDoc.MarkCommitAt(line.LineID, p.id, p.vc.At(p.id))
		p.emit(events.LineInserted, map[string]any{"line_id": line.LineID.String(), "local": false})
		p.retryStash(b.SenderID)
		return
	}

	p.stash.Add(document.Entry{Line: line, RemoteVC: remoteVC, Origin: b.SenderID})
	p.emit(events.LineStashed, map[string]any{"line_id": line.LineID.String(), "sender": b.SenderID})
}

// retryStash re-runs the sliding-window validation for every line parked
// for sender, as required whenever the local clock advances on that
// sender's entry (spec §4.5 step 5). Lines whose signature still does not
// verify once the local clock has fully caught up to the sender's
// advertised history are permanently discarded as Byzantine (spec §7).
func (p *Peer) retryStash(sender int) {
	for {
		progressed := false
		for _, e := range p.stash.Pending(sender) {
			ok, newDoc := document.TryInsertRemote(p.doc, e.Line, p.vc, e.RemoteVC, sender, p.stashSlack, p.verifier())
			if ok {
				p.vc = vclock.Merge(p.vc, e.RemoteVC)
				p.doc = newDoc.MarkCommitAt(e.Line.LineID, p.id, p.vc.At(p.id))
				p.stash.Remove(sender, e.Line.LineID)
				p.emit(events.LineInserted, map[string]any{"line_id": e.Line.LineID.String(), "local": false, "from_stash": true})
				progressed = true
				break // pending list mutated; restart the scan
			}
			if vclock.ProjectionDistance(p.vc, e.RemoteVC, sender) == 0 {
				log.Printf("[peer %d] permanently discarding unvalidatable line %s from peer %d as Byzantine", p.id, e.Line.LineID, sender)
				p.stash.Remove(sender, e.Line.LineID)
				p.emit(events.LineDiscardedForged, map[string]any{"line_id": e.Line.LineID.String(), "sender": sender})
				progressed = true
				break
			}
		}
		if !progressed {
			return
		}
	}
}

// handleRecvDelete implements the (recv_delete, line_id, sender_vc)
// transition: locate the index by ID, tombstone, merge clocks.
func (p *Peer) handleRecvDelete(b transport.Broadcast) {
	lineID, err := parseID(b.LineID)
	if err != nil {
		log.Printf("[peer %d] decode incoming delete line id: %v", p.id, err)
		return
	}
	idx := p.doc.IndexOf(lineID)
	newDoc, err := p.doc.DeleteByIndex(idx)
	if err != nil {
		log.Printf("[peer %d] recv_delete rejected: %v", p.id, err)
		return
	}
	p.doc = newDoc
	p.vc = vclock.Merge(p.vc, vclock.FromSnapshot(b.VC))
	p.emit(events.LineTombstoned, map[string]any{"line_id": lineID.String(), "local": false})
	p.retryStash(b.SenderID)
}

func (p *Peer) emit(t events.EventType, data map[string]any) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(events.Event{Type: t, PeerID: p.id, Data: data})
}

// snapshot types used by rpc/supervisor for inspection without exposing
// the internal Peer.

// Snapshot is a point-in-time, read-only view of a peer's state.
type Snapshot struct {
	PeerID       int
	AliveContent string
	Lines        []document.Line
	VectorClock  []uint64
	PendingStash int
}

func (p *Peer) snapshot() Snapshot {
	return Snapshot{
		PeerID:       p.id,
		AliveContent: p.doc.AliveContent("\n"),
		Lines:        p.doc.Lines(),
		VectorClock:  p.vc.Snapshot(),
		PendingStash: p.stash.Len(),
	}
}
