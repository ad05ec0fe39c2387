// Package byzantine implements the signature binding that lets a correct
// peer reject forged or "re-homed" lines: a signature covers the exact pair
// of neighbours a line was inserted against, so an attacker who tries to
// splice a genuine line into a different position invalidates it.
package byzantine

import (
	"github.com/masanar/syncordia/crypto"
	"github.com/masanar/syncordia/id"
)

// Binding is the ordered tuple a signature is computed over: the left
// parent's ID, the line's own content and ID, and the right parent's ID.
type Binding struct {
	LeftParentID  id.ID
	Content       string
	LineID        id.ID
	RightParentID id.ID
}

// canonicalBytes produces a deterministic encoding of a Binding. Field
// order and a length-delimiter between fields keep the encoding
// unambiguous (e.g. content "ab"+"c" cannot collide with "a"+"bc").
func canonicalBytes(b Binding) []byte {
	var buf []byte
	appendField := func(s string) {
		n := len(s)
		buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		buf = append(buf, s...)
	}
	appendField(b.LeftParentID.String())
	appendField(b.Content)
	appendField(b.LineID.String())
	appendField(b.RightParentID.String())
	return buf
}

// Sign computes the signature binding (leftParentID, content, lineID,
// rightParentID) under priv.
func Sign(priv crypto.PrivateKey, leftParentID id.ID, content string, lineID id.ID, rightParentID id.ID) string {
	b := Binding{leftParentID, content, lineID, rightParentID}
	return crypto.Sign(priv, canonicalBytes(b))
}

// Verify reports whether sig is a valid signature by pub over exactly the
// (leftParentID, content, lineID, rightParentID) tuple given. Any mismatch
// — wrong parent pair, tampered content, or an unknown/incorrect signer —
// yields false, never an error; callers treat verification purely as a
// boolean per spec.
func Verify(pub crypto.PublicKey, leftParentID id.ID, content string, lineID id.ID, rightParentID id.ID, sig string) bool {
	b := Binding{leftParentID, content, lineID, rightParentID}
	return crypto.Verify(pub, canonicalBytes(b), sig) == nil
}
