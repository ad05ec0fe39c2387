package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Edit is one operation within a commit, per spec §6's trace format. The
// supervisor treats the trace as opaque data handed to it by an external
// collaborator — it does not interpret commit_hash beyond using it for
// logging.
type Edit struct {
	Op      string `json:"op"` // "insert" or "delete"
	Content string `json:"content,omitempty"`
	Index   int    `json:"index"`
}

// Commit is one record of the trace: an author's sequence of edits,
// identified by an opaque commit hash.
type Commit struct {
	CommitHash string `json:"commit_hash"`
	AuthorID   string `json:"author_id"`
	Edits      []Edit `json:"edit"`
}

// LoadTrace reads a JSON-encoded array of Commit records from path.
func LoadTrace(path string) ([]Commit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("supervisor: read trace: %w", err)
	}
	var commits []Commit
	if err := json.Unmarshal(data, &commits); err != nil {
		return nil, fmt.Errorf("supervisor: decode trace: %w", err)
	}
	return commits, nil
}

// AuthorOrder returns the distinct author IDs appearing in commits, in
// order of first appearance. This fixes the author→peer-ID assignment
// deterministically from the trace itself (spec §4.7 "map author → peer").
func AuthorOrder(commits []Commit) []string {
	seen := map[string]bool{}
	var order []string
	for _, c := range commits {
		if !seen[c.AuthorID] {
			seen[c.AuthorID] = true
			order = append(order, c.AuthorID)
		}
	}
	return order
}
