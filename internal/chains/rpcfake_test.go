package chains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(params []json.RawMessage) (any, *rpcError)

// fakeNode answers JSON-RPC calls from a method table. Unknown methods get
// a -32601 error. Omitting the result is done by returning omitResult.
type fakeNode struct {
	t *testing.T

	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    []string
	status   int
}

type omitResultT struct{}

var omitResult = omitResultT{}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()

	n := &fakeNode{t: t, handlers: map[string]rpcHandler{}}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) on(method string, h rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) result(method string, v any) {
	n.on(method, func([]json.RawMessage) (any, *rpcError) { return v, nil })
}

func (n *fakeNode) failWithStatus(code int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = code
}

func (n *fakeNode) called(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.calls {
		if m == method {
			c++
		}
	}
	return c
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls = append(n.calls, req.Method)
	status := n.status
	h := n.handlers[req.Method]
	n.mu.Unlock()

	if status != 0 {
		http.Error(w, "upstream unavailable", status)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if h == nil {
		resp["error"] = rpcError{Code: -32601, Message: "method not found"}
	} else {
		res, rerr := h(req.Params)
		switch {
		case rerr != nil:
			resp["error"] = rerr
		case res == omitResult:
		default:
			resp["result"] = res
		}
	}

	w.Header().Set("Content-Type", "application/json")
	assert.NoError(n.t, json.NewEncoder(w).Encode(resp))
}

func dialFake(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c, err := Dial(context.Background(), Config{RPCURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
