package document

import (
	"log"

	"github.com/masanar/syncordia/id"
	"github.com/masanar/syncordia/vclock"
)

// StashSlack is the named constant for the "+2" slack in the stash's
// window bound (spec §9, open question 3): the search is allowed to widen
// up to W+StashSlack total steps, where W is the projection distance, to
// tolerate boundary clock drift.
const StashSlack = 2

// Verify reports whether line's signature is valid against the candidate
// (left, right) neighbour pair. The document package never touches key
// material directly; the peer package supplies this as a closure over its
// neighbour directory and the byzantine package.
type Verify func(left, line, right Line) bool

// TryInsertRemote runs the sliding-window validation of spec §4.5 for one
// incoming remote line. localVC is the receiving peer's own clock; remoteVC
// is the clock carried on the incoming broadcast; remoteOrigin is the
// sender's peer ID.
//
// On success it returns the document with line spliced in at its verified
// position. On failure it returns (false, d-unchanged); the caller (the
// peer state machine) is responsible for placing line in the per-sender
// pending stash and retrying later.
//
// slack overrides the StashSlack constant; callers pass 0 to get the
// default (config.NetworkConfig.StashSlack wires this through from the
// supervisor).
func TryInsertRemote(d Document, line Line, localVC, remoteVC vclock.Clock, remoteOrigin int, slack uint64, verify Verify) (bool, Document) {
	if _, exists := d.LineByID(line.LineID); exists {
		log.Printf("[stash] duplicate line ID %s from peer %d, discarding", line.LineID, line.PeerID)
		return false, d
	}
	if slack == 0 {
		slack = StashSlack
	}

	w := vclock.ProjectionDistance(localVC, remoteVC, remoteOrigin)
	c := d.NewIndexForIncoming(line.LineID)
	tentative := d.insertTentative(c, line)

	ok, _, _ := slidingWindowSearch(tentative, c, w, slack, verify)
	if !ok {
		return false, d
	}
	return true, tentative
}

// slidingWindowSearch widens outward from index c in D', trying
// left-heavier candidate pairs before right-heavier ones at each width, up
// to a total width of W+slack. Width 2 is the base case (Δl,Δr) =
// (-1,+1), matching spec §4.5 step 4's starting point; larger widths widen
// one side or the other while keeping total reach bounded.
func slidingWindowSearch(dp Document, c int, w uint64, slack uint64, verify Verify) (ok bool, leftIdx, rightIdx int) {
	maxWidth := w + slack
	n := dp.Length()
	line, _ := dp.LineAtIndex(c)

	for width := uint64(2); width <= maxWidth; width++ {
		for leftSteps := width - 1; leftSteps >= 1; leftSteps-- {
			rightSteps := width - leftSteps
			li := c - int(leftSteps)
			ri := c + int(rightSteps)
			if li < 0 || ri >= n {
				if leftSteps == 1 {
					break
				}
				continue
			}
			left, _ := dp.LineAtIndex(li)
			right, _ := dp.LineAtIndex(ri)
			if verify(left, line, right) {
				return true, li, ri
			}
			if leftSteps == 1 {
				break
			}
		}
	}
	return false, 0, 0
}

// Entry is one line parked in a per-sender pending stash because it could
// not yet be validated.
type Entry struct {
	Line     Line
	RemoteVC vclock.Clock
	Origin   int
}

// Stash is the per-sender multiset of deferred incoming lines
// (spec §3 "pending_stash", §4.5 step 5, §7 "Signature reject"). It places
// no limit on how many entries it holds; Remove is the only way an entry
// leaves.
type Stash struct {
	bySender map[int][]Entry
}

// NewStash creates an empty stash.
func NewStash() *Stash {
	return &Stash{bySender: map[int][]Entry{}}
}

// Add parks line for later retry.
func (s *Stash) Add(e Entry) {
	s.bySender[e.Origin] = append(s.bySender[e.Origin], e)
}

// Pending returns the entries currently parked for sender, in arrival
// order.
func (s *Stash) Pending(sender int) []Entry {
	return s.bySender[sender]
}

// Remove drops the entry for lineID from sender's pending list, if present.
func (s *Stash) Remove(sender int, lineID id.ID) {
	list := s.bySender[sender]
	out := list[:0]
	for _, e := range list {
		if id.Equal(e.Line.LineID, lineID) {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		delete(s.bySender, sender)
	} else {
		s.bySender[sender] = out
	}
}

// Len returns the total number of parked entries across all senders.
func (s *Stash) Len() int {
	n := 0
	for _, l := range s.bySender {
		n += len(l)
	}
	return n
}
