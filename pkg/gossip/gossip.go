// Package gossip replicates accepted envelopes to peer hubs. Replication
// is advisory: a peer re-validates everything it receives, so sends are
// fire-and-forget and a failed peer never affects the submitting client or
// the other peers.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
)

// Broadcaster fans accepted envelopes out to the configured peers.
type Broadcaster struct {
	peers  []string
	client *http.Client
	log    *slog.Logger
	wg     sync.WaitGroup
}

// New creates a broadcaster for the given peer base URLs.
func New(peers []string, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		peers:  peers,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// Broadcast schedules one send per peer and returns immediately. Errors
// are logged per peer and swallowed.
func (b *Broadcaster) Broadcast(env *envelope.Envelope, space string) {
	if len(b.peers) == 0 {
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		b.log.Error("gossip encode failed", "space", space, "err", err)
		return
	}
	for _, peer := range b.peers {
		b.wg.Add(1)
		go func(peer string) {
			defer b.wg.Done()
			b.send(peer, space, body)
		}(peer)
	}
}

func (b *Broadcaster) send(peer, space string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer+"/api/message", bytes.NewReader(body))
	if err != nil {
		b.log.Warn("gossip send failed", "peer", peer, "space", space, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("gossip send failed", "peer", peer, "space", space, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b.log.Warn("gossip rejected by peer", "peer", peer, "space", space, "status", resp.StatusCode)
	}
}

// Flush blocks until all scheduled sends finish. Only tests and shutdown
// paths call this; the request path never does.
func (b *Broadcaster) Flush() {
	b.wg.Wait()
}
