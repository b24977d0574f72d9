package gossip

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
)

type peerRecorder struct {
	mu     sync.Mutex
	bodies []string
	paths  []string
}

func (p *peerRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.bodies = append(p.bodies, string(body))
	p.paths = append(p.paths, r.URL.Path)
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	first, second := &peerRecorder{}, &peerRecorder{}
	srv1 := httptest.NewServer(first)
	defer srv1.Close()
	srv2 := httptest.NewServer(second)
	defer srv2.Close()

	b := New([]string{srv1.URL, srv2.URL}, discard())
	env := &envelope.Envelope{Address: "0xAAA", Msg: `{"space":"demo.eth"}`, Sig: "0xsig"}
	b.Broadcast(env, "demo.eth")
	b.Flush()

	for _, p := range []*peerRecorder{first, second} {
		require.Len(t, p.bodies, 1)
		assert.JSONEq(t, `{"address":"0xAAA","msg":"{\"space\":\"demo.eth\"}","sig":"0xsig"}`, p.bodies[0])
		assert.Equal(t, "/api/message", p.paths[0])
	}
}

func TestBroadcastSurvivesDeadPeer(t *testing.T) {
	alive := &peerRecorder{}
	srv := httptest.NewServer(alive)
	defer srv.Close()

	b := New([]string{"http://127.0.0.1:1", srv.URL}, discard())
	b.Broadcast(&envelope.Envelope{Address: "0xAAA", Msg: "{}", Sig: "0xsig"}, "demo.eth")
	b.Flush()

	// The dead peer is logged and skipped; the live one still gets the send.
	assert.Len(t, alive.bodies, 1)
}

func TestBroadcastRejectionIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusBadRequest)
	}))
	defer srv.Close()

	b := New([]string{srv.URL}, discard())
	b.Broadcast(&envelope.Envelope{Address: "0xAAA", Msg: "{}", Sig: "0xsig"}, "demo.eth")
	b.Flush()
}

func TestBroadcastNoPeersIsNoop(t *testing.T) {
	b := New(nil, discard())
	b.Broadcast(&envelope.Envelope{Address: "0xAAA", Msg: "{}", Sig: "0xsig"}, "demo.eth")
	b.Flush()
}
