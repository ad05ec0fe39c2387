package peer

import (
	"fmt"

	"github.com/masanar/syncordia/document"
	"github.com/masanar/syncordia/id"
	"github.com/masanar/syncordia/transport"
)

func statusToWire(s document.Status) string {
	if s == document.Tombstone {
		return "tombstone"
	}
	return "alive"
}

func wireToStatus(s string) document.Status {
	if s == "tombstone" {
		return document.Tombstone
	}
	return document.Alive
}

func lineToWire(l document.Line) (*transport.WireLine, error) {
	idText, err := l.LineID.MarshalText()
	if err != nil {
		return nil, err
	}
	return &transport.WireLine{
		ID:        string(idText),
		Content:   l.Content,
		PeerID:    l.PeerID,
		Signature: l.Signature,
		Status:    statusToWire(l.Status),
	}, nil
}

func wireToLine(w *transport.WireLine) (document.Line, error) {
	if w == nil {
		return document.Line{}, fmt.Errorf("peer: nil wire line")
	}
	var lineID id.ID
	if err := lineID.UnmarshalText([]byte(w.ID)); err != nil {
		return document.Line{}, fmt.Errorf("peer: decode line id: %w", err)
	}
	return document.Line{
		LineID:    lineID,
		Content:   w.Content,
		PeerID:    w.PeerID,
		Signature: w.Signature,
		Status:    wireToStatus(w.Status),
		CommitAt:  map[int]uint64{},
	}, nil
}

func parseID(s string) (id.ID, error) {
	var out id.ID
	err := out.UnmarshalText([]byte(s))
	return out, err
}
