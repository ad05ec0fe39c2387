// Package document implements the ordered sequence of lines that forms one
// peer's replica, together with the sliding-window validation that lets a
// peer accept remote inserts whose expected neighbours have shifted under
// concurrent edits (see stash.go).
package document

import "github.com/masanar/syncordia/id"

// Status is a line's lifecycle state.
type Status int

const (
	Alive Status = iota
	Tombstone
)

func (s Status) String() string {
	if s == Tombstone {
		return "tombstone"
	}
	return "alive"
}

// Line is immutable after creation except for Status (set once, to
// Tombstone) and CommitAt (updated per observing peer).
type Line struct {
	LineID    id.ID
	Content   string
	PeerID    int
	Signature string
	Status    Status
	CommitAt  map[int]uint64 // peer-id -> clock value at first observation
}

func newLine(lineID id.ID, content string, peerID int, sig string) Line {
	return Line{
		LineID:    lineID,
		Content:   content,
		PeerID:    peerID,
		Signature: sig,
		Status:    Alive,
		CommitAt:  map[int]uint64{},
	}
}

// withTombstone returns a copy of l marked as a tombstone.
func (l Line) withTombstone() Line {
	cp := l
	cp.Status = Tombstone
	cp.CommitAt = cloneCommitAt(l.CommitAt)
	return cp
}

// withCommitAt returns a copy of l recording that peerID observed it at
// clockValue, if not already recorded.
func (l Line) withCommitAt(peerID int, clockValue uint64) Line {
	if _, ok := l.CommitAt[peerID]; ok {
		return l
	}
	cp := l
	cp.CommitAt = cloneCommitAt(l.CommitAt)
	cp.CommitAt[peerID] = clockValue
	return cp
}

func cloneCommitAt(m map[int]uint64) map[int]uint64 {
	out := make(map[int]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// isSentinel reports whether l is the infimum or supremum.
func (l Line) isSentinel() bool {
	return id.Equal(l.LineID, id.Infimum()) || id.Equal(l.LineID, id.Supremum())
}
