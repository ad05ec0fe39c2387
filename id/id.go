// Package id implements the dense, totally-ordered line identifiers that
// give every line in a document a fractional position strictly between its
// two neighbours.
package id

import (
	"errors"
	"math/big"
)

// ErrCapacityExhausted is returned when no distinct rational can be produced
// strictly between two IDs. With an arbitrary-precision rational this can
// only happen if l is not strictly less than r (equal or reversed bounds),
// which the caller must never request.
var ErrCapacityExhausted = errors.New("id: capacity exhausted between neighbours")

// ID is a dense rational ordering key. The zero value is not a valid ID;
// always obtain one via Infimum, Supremum, or AllocateBetween.
type ID struct {
	r *big.Rat
}

// Infimum is the sentinel lower bound. It is never assigned to a real line.
func Infimum() ID { return ID{r: big.NewRat(0, 1)} }

// Supremum is the sentinel upper bound. It is never assigned to a real line.
func Supremum() ID { return ID{r: big.NewRat(1, 1)} }

// AllocateBetween produces a new ID strictly between l and r, biased by the
// allocating peer's position in the network.
//
// l must be strictly less than r. Rather than the unweighted mediant
// (l+r)/2, the split point is placed at l + (r-l)*(peerID+1)/(networkSize+1):
// every peer ID in [0, networkSize) maps to a distinct point strictly inside
// (l, r), so two peers racing to insert into the exact same gap concurrently
// (spec's "concurrent inserts from two peers at the same gap produce two
// distinct lines ordered deterministically by ID") can never compute the
// same rational, and their relative order is fixed by peer ID rather than
// left to chance. big.Rat precision is unbounded, so the identifier space
// can never be exhausted by any finite sequence of concurrent inserts at the
// same gap, regardless of how it's split.
func AllocateBetween(l, r ID, peerID, networkSize int) (ID, error) {
	if l.r.Cmp(r.r) >= 0 {
		return ID{}, ErrCapacityExhausted
	}
	if networkSize <= 0 || peerID < 0 || peerID >= networkSize {
		return ID{}, errors.New("id: peerID must be in [0, networkSize)")
	}
	span := new(big.Rat).Sub(r.r, l.r)
	weight := big.NewRat(int64(peerID)+1, int64(networkSize)+1)
	mid := new(big.Rat).Mul(span, weight)
	mid.Add(mid, l.r)
	if mid.Cmp(l.r) <= 0 || mid.Cmp(r.r) >= 0 {
		// Can only happen through an implementation bug, not through
		// legitimate exhaustion — big.Rat precision is unbounded.
		return ID{}, ErrCapacityExhausted
	}
	return ID{r: mid}, nil
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b ID) int {
	return a.r.Cmp(b.r)
}

// Less reports whether a sorts strictly before b.
func Less(a, b ID) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b denote the same position.
func Equal(a, b ID) bool { return Compare(a, b) == 0 }

// String renders the ID's rational value, e.g. "3/8". Two distinct IDs
// never render identically.
func (i ID) String() string {
	if i.r == nil {
		return "<zero-id>"
	}
	return i.r.RatString()
}

// MarshalText implements encoding.TextMarshaler so IDs serialize cleanly
// inside wire messages and stash/audit logs.
func (i ID) MarshalText() ([]byte, error) {
	if i.r == nil {
		return nil, errors.New("id: marshal of zero value")
	}
	return []byte(i.r.RatString()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(text []byte) error {
	r, ok := new(big.Rat).SetString(string(text))
	if !ok {
		return errors.New("id: invalid rational literal " + string(text))
	}
	i.r = r
	return nil
}

// IsZero reports whether i is the unset zero value.
func (i ID) IsZero() bool { return i.r == nil }
