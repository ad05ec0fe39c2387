package rpc

import (
	"encoding/json"
	"testing"

	"github.com/masanar/syncordia/crypto"
	"github.com/masanar/syncordia/events"
	"github.com/masanar/syncordia/peer"
	"github.com/masanar/syncordia/transport"
)

func newTestHandler(t *testing.T, n int) (*Handler, map[int]peer.Handle, *transport.Bus) {
	t.Helper()
	bus := transport.NewBus()
	dir := peer.Directory{}
	peers := make(map[int]peer.Handle, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			t.Fatal(err)
		}
		dir[i] = pub
		h, err := peer.Start(i, n, priv, dir, bus, events.NewEmitter(), 16, 0)
		if err != nil {
			t.Fatal(err)
		}
		peers[i] = h
	}
	t.Cleanup(func() {
		for _, h := range peers {
			h.Stop()
		}
		bus.KillAll()
	})
	return NewHandler(peers), peers, bus
}

func params(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatchGetPeersReturnsSortedIDs(t *testing.T) {
	h, _, _ := newTestHandler(t, 3)
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "getPeers"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	ids, ok := resp.Result.([]int)
	if !ok {
		t.Fatalf("result type = %T, want []int", resp.Result)
	}
	if got := ids; len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("getPeers = %v, want [0 1 2]", got)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	h, _, _ := newTestHandler(t, 1)
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "nonexistent"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchInsertThenGetDocumentReflectsIt(t *testing.T) {
	h, _, _ := newTestHandler(t, 1)
	insResp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 1, Method: "insert",
		Params: params(t, map[string]any{"peer_id": 0, "content": "hello", "index": 0}),
	})
	if insResp.Error != nil {
		t.Fatalf("insert error: %+v", insResp.Error)
	}

	docResp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 2, Method: "getDocument",
		Params: params(t, map[string]any{"peer_id": 0}),
	})
	if docResp.Error != nil {
		t.Fatalf("getDocument error: %+v", docResp.Error)
	}
	result, ok := docResp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map[string]any", docResp.Result)
	}
	if result["alive_content"] != "hello" {
		t.Fatalf("alive_content=%v, want %q", result["alive_content"], "hello")
	}
}

func TestDispatchDeleteTombstonesLine(t *testing.T) {
	h, peers, _ := newTestHandler(t, 1)
	h.Dispatch(Request{
		JSONRPC: "2.0", ID: 1, Method: "insert",
		Params: params(t, map[string]any{"peer_id": 0, "content": "x", "index": 0}),
	})
	delResp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 2, Method: "delete",
		Params: params(t, map[string]any{"peer_id": 0, "index": 1}),
	})
	if delResp.Error != nil {
		t.Fatalf("delete error: %+v", delResp.Error)
	}
	if got := peers[0].Snapshot().AliveContent; got != "" {
		t.Fatalf("alive content=%q after delete, want empty", got)
	}
}

func TestDispatchGetVectorClockAndStash(t *testing.T) {
	h, _, _ := newTestHandler(t, 2)
	h.Dispatch(Request{
		JSONRPC: "2.0", ID: 1, Method: "insert",
		Params: params(t, map[string]any{"peer_id": 0, "content": "x", "index": 0}),
	})

	vcResp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 2, Method: "getVectorClock",
		Params: params(t, map[string]any{"peer_id": 0}),
	})
	if vcResp.Error != nil {
		t.Fatalf("getVectorClock error: %+v", vcResp.Error)
	}
	vc, ok := vcResp.Result.([]uint64)
	if !ok || len(vc) != 2 || vc[0] != 1 {
		t.Fatalf("getVectorClock = %v, want a length-2 clock with [0]=1", vcResp.Result)
	}

	stashResp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 3, Method: "getStash",
		Params: params(t, map[string]any{"peer_id": 0}),
	})
	if stashResp.Error != nil {
		t.Fatalf("getStash error: %+v", stashResp.Error)
	}
	result, ok := stashResp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map[string]any", stashResp.Result)
	}
	if result["pending"] != 0 {
		t.Fatalf("pending=%v, want 0", result["pending"])
	}
}

func TestDispatchUnknownPeerIsInvalidParams(t *testing.T) {
	h, _, _ := newTestHandler(t, 1)
	resp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 1, Method: "getDocument",
		Params: params(t, map[string]any{"peer_id": 99}),
	})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %+v", resp.Error)
	}
}

func TestDispatchMalformedParamsIsInvalidParams(t *testing.T) {
	h, _, _ := newTestHandler(t, 1)
	resp := h.Dispatch(Request{
		JSONRPC: "2.0", ID: 1, Method: "getDocument",
		Params: json.RawMessage(`{"peer_id": "not-a-number"}`),
	})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %+v", resp.Error)
	}
}
