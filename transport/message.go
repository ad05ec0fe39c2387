// Package transport implements reliable broadcast between peers, modeled
// abstractly per spec §1/§6 as an in-process bus for tests and
// single-binary runs. It honors per-sender FIFO ordering, with no ordering
// across senders (spec §5).
package transport

import "encoding/json"

// Kind tags a Broadcast's payload, matching the wire formats of spec §6.
type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// WireLine is the wire representation of a line inside an insert
// broadcast.
type WireLine struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	PeerID    int    `json:"peer_id"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

// Broadcast is the logical wire message exchanged between peers (spec
// §6): either an insert carrying a full signed line, or a delete carrying
// a line ID and its origin.
type Broadcast struct {
	Kind         Kind      `json:"kind"`
	Line         *WireLine `json:"line,omitempty"`
	LineID       string    `json:"line_id,omitempty"`
	OriginPeerID int       `json:"origin_peer_id,omitempty"`
	VC           []uint64  `json:"vc"`
	SenderID     int       `json:"sender_id"`
}

// Envelope wraps an encoded Broadcast as a raw JSON payload
// (network/peer.go's framing, adapted). Nothing in this package uses it:
// the Bus passes Broadcast values directly.
type Envelope struct {
	Payload json.RawMessage `json:"payload"`
}
