package document

import (
	"errors"
	"log"

	"github.com/masanar/syncordia/id"
)

// ErrSentinelDelete is returned by DeleteByIndex for the sentinel
// positions (spec §7 "Delete of sentinel").
var ErrSentinelDelete = errors.New("document: cannot delete a sentinel line")

// Document is an ordered, strictly-increasing-by-ID sequence of lines.
// All operations are pure: they return a new Document, never mutate the
// receiver's backing array.
type Document struct {
	lines []Line
}

// New creates a document containing only the infimum and supremum
// sentinels, as happens at peer birth (spec §3).
func New(peerID int) Document {
	inf := newLine(id.Infimum(), "", peerID, "")
	sup := newLine(id.Supremum(), "", peerID, "")
	return Document{lines: []Line{inf, sup}}
}

// Length returns the number of lines, always >= 2 (the two sentinels).
func (d Document) Length() int { return len(d.lines) }

// LineAtIndex returns the line at i, or (Line{}, false) if out of range.
func (d Document) LineAtIndex(i int) (Line, bool) {
	if i < 0 || i >= len(d.lines) {
		return Line{}, false
	}
	return d.lines[i], true
}

// IndexOf returns the index of the line with the given ID. If not found,
// per spec §4.4 it returns index 1 (just after infimum) defensively and
// logs the miss.
func (d Document) IndexOf(lineID id.ID) int {
	for i, l := range d.lines {
		if id.Equal(l.LineID, lineID) {
			return i
		}
	}
	log.Printf("[document] index_of: line %s not found, falling back to index 1", lineID)
	return 1
}

// LineByID returns the line with the given ID, or (Line{}, false).
func (d Document) LineByID(lineID id.ID) (Line, bool) {
	for _, l := range d.lines {
		if id.Equal(l.LineID, lineID) {
			return l, true
		}
	}
	return Line{}, false
}

// ParentsOf returns the (left, right) neighbour pair that would bracket an
// insert at idx, per spec §4.4: idx==0 maps to (doc[0], doc[1]); an idx at
// or past the last living position maps to (doc[len-2], doc[len-1]).
func (d Document) ParentsOf(idx int) (Line, Line) {
	n := len(d.lines)
	if idx <= 0 {
		return d.lines[0], d.lines[1]
	}
	if idx >= n-1 {
		return d.lines[n-2], d.lines[n-1]
	}
	return d.lines[idx], d.lines[idx+1]
}

// clampInsertIndex bounds idx to [0, len-2], the valid range for an
// insert position (spec §4.4: "idx out of [0, len-2] -> clamp to bounds").
func (d Document) clampInsertIndex(idx int) int {
	if idx < 0 {
		return 0
	}
	if max := len(d.lines) - 2; idx > max {
		return max
	}
	return idx
}

// InsertByPosition inserts a new line with the given ID and content at the
// slot immediately after index idx (clamped to [0, len-2]). The caller
// (the peer state machine) is responsible for allocating lineID and
// signing beforehand; this operation only splices it in.
func (d Document) InsertByPosition(idx int, lineID id.ID, content string, peerID int, sig string) (Line, Document) {
	idx = d.clampInsertIndex(idx)
	l := newLine(lineID, content, peerID, sig)
	out := make([]Line, 0, len(d.lines)+1)
	out = append(out, d.lines[:idx+1]...)
	out = append(out, l)
	out = append(out, d.lines[idx+1:]...)
	return l, Document{lines: out}
}

// NewIndexForIncoming returns the smallest index i such that
// doc[i].LineID >= incoming, per the spec §9 resolution of the donor's two
// ambiguous variants. If the document is somehow empty of an upper bound
// (must-not-happen: the supremum always exceeds every real ID), it logs
// and falls back to index 1 without mutating anything.
func (d Document) NewIndexForIncoming(incoming id.ID) int {
	for i, l := range d.lines {
		if id.Compare(l.LineID, incoming) >= 0 {
			return i
		}
	}
	log.Printf("[document] new_index_for_incoming: %s exceeds supremum, this must not happen; falling back to index 1", incoming)
	return 1
}

// insertTentative splices a line in at index c without any signature
// verification, producing the D' of spec §4.5 step 3. It is unexported:
// only the stash algorithm in this package may construct a tentative
// document, and only ever to probe candidate parent pairs before deciding
// whether to commit the result.
func (d Document) insertTentative(c int, l Line) Document {
	out := make([]Line, 0, len(d.lines)+1)
	out = append(out, d.lines[:c]...)
	out = append(out, l)
	out = append(out, d.lines[c:]...)
	return Document{lines: out}
}

// DeleteByIndex marks the line at idx as a tombstone. Deleting a sentinel
// is rejected (spec §7 "Delete of sentinel"). Tombstones remain in the
// sequence as position anchors (spec §3, §4.4).
func (d Document) DeleteByIndex(idx int) (Document, error) {
	l, ok := d.LineAtIndex(idx)
	if !ok || l.isSentinel() {
		return d, ErrSentinelDelete
	}
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	out[idx] = l.withTombstone()
	return Document{lines: out}, nil
}

// MarkCommitAt returns a copy of d with the line at lineID recording that
// peerID observed it at clockValue, leaving every other line untouched.
func (d Document) MarkCommitAt(lineID id.ID, peerID int, clockValue uint64) Document {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	for i, l := range out {
		if id.Equal(l.LineID, lineID) {
			out[i] = l.withCommitAt(peerID, clockValue)
			break
		}
	}
	return Document{lines: out}
}

// AliveContent reduces the document to the concatenation of every alive
// line's content, in order, for inspection (spec §4.6 print_content, §6).
func (d Document) AliveContent(sep string) string {
	var out []string
	for _, l := range d.lines {
		if l.isSentinel() || l.Status != Alive {
			continue
		}
		out = append(out, l.Content)
	}
	s := ""
	for i, c := range out {
		if i > 0 {
			s += sep
		}
		s += c
	}
	return s
}

// Lines returns a defensive copy of the full sequence, including sentinels
// and tombstones, for tests and convergence snapshots.
func (d Document) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}
