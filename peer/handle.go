package peer

// Handle is the external Peer API of spec §6: the only way a supervisor,
// test, or the rpc package interacts with a running peer. All methods
// enqueue a command onto the peer's own mailbox; the peer's single
// goroutine remains the sole owner of its document and clock.
type Handle struct {
	peerID   int
	commands chan command
}

// ID returns the peer's ID.
func (h Handle) ID() int { return h.peerID }

// Insert enqueues a local insert (spec §6 "insert(handle, content,
// index)"). It returns once the operation has been applied and
// broadcast, not merely enqueued, so callers (notably the supervisor
// replaying a trace) can rely on program order.
func (h Handle) Insert(content string, idx int) {
	done := make(chan struct{})
	h.commands <- command{kind: cmdInsert, content: content, idx: idx, done: done}
	<-done
}

// Delete enqueues a local delete (spec §6 "delete(handle, index)").
func (h Handle) Delete(idx int) {
	done := make(chan struct{})
	h.commands <- command{kind: cmdDelete, idx: idx, done: done}
	<-done
}

// PrintContent snapshots alive content (spec §6 "print_content(handle)").
// The donor's analog wrote to the implementation's standard log; callers
// that want that behavior can log the returned string themselves.
func (h Handle) PrintContent() string {
	reply := make(chan string, 1)
	h.commands <- command{kind: cmdPrintContent, replyText: reply}
	return <-reply
}

// Snapshot returns a full point-in-time view of the peer's state, used by
// the supervisor for convergence checking and by the rpc package for
// inspection.
func (h Handle) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	h.commands <- command{kind: cmdSnapshot, replySnapshot: reply}
	return <-reply
}

// SavePID records the peer's own transport handle (spec §4.6
// "(save_pid, pid)").
func (h Handle) SavePID(pid string) {
	done := make(chan struct{})
	h.commands <- command{kind: cmdSavePID, pid: pid, done: done}
	<-done
}

// Stop terminates this peer's message loop. kill_all() (spec §6) is
// implemented by the supervisor calling Stop on every handle it holds,
// together with transport.Bus.KillAll to drop in-flight messages.
func (h Handle) Stop() {
	done := make(chan struct{})
	h.commands <- command{kind: cmdStop, done: done}
	<-done
}
