package rpc

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/masanar/syncordia/peer"
)

// Handler holds the set of live peer handles an RPC server dispatches
// against.
type Handler struct {
	peers map[int]peer.Handle
}

// NewHandler creates an RPC Handler over the given peer directory.
func NewHandler(peers map[int]peer.Handle) *Handler {
	return &Handler{peers: peers}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getPeers":
		return h.getPeers(req)
	case "getDocument":
		return h.getDocument(req)
	case "getVectorClock":
		return h.getVectorClock(req)
	case "getStash":
		return h.getStash(req)
	case "insert":
		return h.insert(req)
	case "delete":
		return h.delete(req)
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) lookup(peerID int) (peer.Handle, bool) {
	p, ok := h.peers[peerID]
	return p, ok
}

func (h *Handler) getPeers(req Request) Response {
	ids := make([]int, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return okResponse(req.ID, ids)
}

func (h *Handler) getDocument(req Request) Response {
	var params struct {
		PeerID int `json:"peer_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	p, ok := h.lookup(params.PeerID)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown peer %d", params.PeerID))
	}
	snap := p.Snapshot()
	return okResponse(req.ID, map[string]any{
		"peer_id":       snap.PeerID,
		"alive_content": snap.AliveContent,
		"length":        len(snap.Lines),
	})
}

func (h *Handler) getVectorClock(req Request) Response {
	var params struct {
		PeerID int `json:"peer_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	p, ok := h.lookup(params.PeerID)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown peer %d", params.PeerID))
	}
	return okResponse(req.ID, p.Snapshot().VectorClock)
}

func (h *Handler) getStash(req Request) Response {
	var params struct {
		PeerID int `json:"peer_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	p, ok := h.lookup(params.PeerID)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown peer %d", params.PeerID))
	}
	return okResponse(req.ID, map[string]any{"pending": p.Snapshot().PendingStash})
}

func (h *Handler) insert(req Request) Response {
	var params struct {
		PeerID  int    `json:"peer_id"`
		Content string `json:"content"`
		Index   int    `json:"index"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	p, ok := h.lookup(params.PeerID)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown peer %d", params.PeerID))
	}
	p.Insert(params.Content, params.Index)
	return okResponse(req.ID, map[string]string{"status": "ok"})
}

func (h *Handler) delete(req Request) Response {
	var params struct {
		PeerID int `json:"peer_id"`
		Index  int `json:"index"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	p, ok := h.lookup(params.PeerID)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown peer %d", params.PeerID))
	}
	p.Delete(params.Index)
	return okResponse(req.ID, map[string]string{"status": "ok"})
}
