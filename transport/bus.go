package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Inbox is the channel a peer receives broadcasts on.
type Inbox chan Broadcast

// Bus is an in-process reliable-broadcast transport. The peer directory is
// written once per peer at registration and read-mostly afterward (spec
// §5's "shared resource policy"), guarded by a read-mostly lock rather
// than a package-global map.
//
// Bus also tracks the number of broadcasts sent but not yet dequeued by
// their recipients, so the supervisor can wait for quiescence instead of
// sleeping a fixed duration between trace operations (spec §9).
type Bus struct {
	mu        sync.RWMutex
	directory map[int]Inbox
	pending   int64
	observer  func(senderID int, msg Broadcast)
}

// NewBus creates an empty transport.
func NewBus() *Bus {
	return &Bus{directory: map[int]Inbox{}}
}

// SetObserver installs a callback invoked once per Broadcast call, before
// fan-out, regardless of how many (if any) recipients receive it. The
// supervisor uses this to feed an audit log; it is never required for
// correctness and must not block.
func (b *Bus) SetObserver(fn func(senderID int, msg Broadcast)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = fn
}

// Register installs peerID's inbox in the directory and returns it. It is
// an error to register the same peerID twice.
func (b *Bus) Register(peerID, mailboxSize int) (Inbox, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.directory[peerID]; exists {
		return nil, fmt.Errorf("transport: peer %d already registered", peerID)
	}
	inbox := make(Inbox, mailboxSize)
	b.directory[peerID] = inbox
	return inbox, nil
}

// Unregister removes peerID from the directory. In-flight messages already
// queued in its inbox are simply never read, matching spec §5 ("in-flight
// messages to a terminated peer are dropped by the transport").
func (b *Bus) Unregister(peerID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.directory, peerID)
}

// Broadcast fans msg out to every registered peer except senderID (spec
// §4.6 "broadcast fan-out excludes the sender's own address"). Because the
// sender's own message loop is single-threaded, successive calls to
// Broadcast from the same sender happen strictly in sequence; each
// destination's inbox therefore observes that sender's messages in the
// order they were produced, which is the per-sender FIFO guarantee of
// spec §5 (the order across distinct destinations within one call does
// not matter, since they are independent channels).
func (b *Bus) Broadcast(senderID int, msg Broadcast) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.observer != nil {
		b.observer(senderID, msg)
	}
	for peerID, inbox := range b.directory {
		if peerID == senderID {
			continue
		}
		atomic.AddInt64(&b.pending, 1)
		inbox <- msg
	}
}

// Done marks one previously counted in-flight message as dequeued by its
// recipient. Peers call this after pulling a message off their inbox, so
// Pending reaching zero means every broadcast sent so far has at least
// been picked up (though not necessarily fully applied).
func (b *Bus) Done() {
	atomic.AddInt64(&b.pending, -1)
}

// Pending returns the number of broadcasts sent but not yet dequeued by
// their recipients.
func (b *Bus) Pending() int64 {
	return atomic.LoadInt64(&b.pending)
}

// KillAll closes and clears every registered inbox, terminating delivery
// to all peers (spec §6 "kill_all()").
func (b *Bus) KillAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, inbox := range b.directory {
		close(inbox)
		delete(b.directory, id)
	}
}

// Size returns how many peers are currently registered.
func (b *Bus) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.directory)
}
