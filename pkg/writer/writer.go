// Package writer holds the per-message-type capability pairs. Each message
// type registers one Writer: Authorize performs read-only checks against
// persisted state, Persist performs the durable writes. The ingestion
// pipeline resolves the pair once and never branches on a type name;
// adding a message kind means registering a new Writer here.
package writer

import (
	"context"
	"sort"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/spaces"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// Writer is the capability pair for one message type.
type Writer interface {
	// Authorize decides whether the envelope may be accepted. It may read
	// persisted state but must not write. A *envelope.Rejection return is
	// surfaced to the client verbatim.
	Authorize(ctx context.Context, p *envelope.Parsed) error

	// Persist performs the durable writes for an accepted envelope. It must
	// be safe to re-run for a duplicate author hash: inserts are keyed by
	// the content-derived id and duplicates are silently ignored.
	Persist(ctx context.Context, p *envelope.Parsed, authorHash, relayerHash string) error
}

// Store is the slice of the persistence layer writers touch.
type Store interface {
	InsertMessage(ctx context.Context, m *store.Message) error
	InsertProposal(ctx context.Context, p *store.Proposal) error
	InsertVote(ctx context.Context, v *store.Vote) error
	GetProposalMessage(ctx context.Context, space, id string) (*store.Message, error)
	ArchiveProposal(ctx context.Context, id string) error
	UpsertSpace(ctx context.Context, id, settings string) error
}

// Spaces is the read side of the space registry writers consult.
type Spaces interface {
	Get(id string) (*spaces.Space, bool)
}

// Schemas validates a payload against a named schema.
type Schemas interface {
	Validate(name string, payload []byte) error
}

// Registry maps message type tags to writers.
type Registry struct {
	writers map[string]Writer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{writers: make(map[string]Writer)}
}

// Register binds a message type tag to its writer.
func (r *Registry) Register(messageType string, w Writer) {
	r.writers[messageType] = w
}

// Lookup returns the writer for a message type.
func (r *Registry) Lookup(messageType string) (Writer, bool) {
	w, ok := r.writers[messageType]
	return w, ok
}

// Has reports whether a message type is registered.
func (r *Registry) Has(messageType string) bool {
	_, ok := r.writers[messageType]
	return ok
}

// Types lists the registered message types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.writers))
	for t := range r.writers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
