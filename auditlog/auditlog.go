// Package auditlog gives the supervisor an append-only, durable record of
// every broadcast observed during a run, backed by LevelDB. This is
// explicitly not peer-restart recovery — peers remain ephemeral per spec
// Non-goals, and no peer ever reads from this log. It exists purely so the
// supervisor can diff what each peer converged to against what was
// actually broadcast, after the run ends.
package auditlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/masanar/syncordia/storage"
	"github.com/masanar/syncordia/transport"
)

// Log appends sequence-numbered records to a LevelDB database.
type Log struct {
	db   storage.DB
	next uint64
}

// Open opens (or creates) an audit log at path.
func Open(path string) (*Log, error) {
	db, err := storage.NewLevelDB(path)
	if err != nil {
		return nil, err
	}
	return &Log{db: db}, nil
}

// OpenWith wraps an already-open storage.DB, e.g. an in-memory fake in
// tests.
func OpenWith(db storage.DB) *Log {
	return &Log{db: db}
}

// Record is one logged broadcast observation.
type Record struct {
	Seq       uint64             `json:"seq"`
	Broadcast transport.Broadcast `json:"broadcast"`
}

func seqKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append([]byte("seq:"), buf[:]...)
}

// Append records b under the next sequence number.
func (l *Log) Append(b transport.Broadcast) error {
	seq := l.next
	l.next++
	rec := Record{Seq: seq, Broadcast: b}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auditlog: marshal record: %w", err)
	}
	return l.db.Set(seqKey(seq), data)
}

// All returns every record in sequence order. It is only ever called by
// the supervisor after a run, for convergence diffing — never by a peer.
func (l *Log) All() ([]Record, error) {
	it := l.db.NewIterator([]byte("seq:"))
	defer it.Release()
	var out []Record
	for it.Next() {
		var rec Record
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, fmt.Errorf("auditlog: decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, it.Error()
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
