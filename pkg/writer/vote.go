package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/pollsterdev/snapshot-hub/pkg/crypto"
	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/schema"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// Vote accepts votes on existing proposals and materializes the vote
// projection. Earlier votes by the same voter are never touched; the
// current vote is resolved at query time by the latest (created, id) pair.
type Vote struct {
	store   Store
	schemas Schemas
}

// NewVote creates the vote writer.
func NewVote(st Store, sc Schemas) *Vote {
	return &Vote{store: st, schemas: sc}
}

type votePayload struct {
	Proposal string          `json:"proposal"`
	Choice   json.RawMessage `json:"choice"`
	Metadata json.RawMessage `json:"metadata"`
}

// Authorize checks the payload shape and that the referenced proposal
// exists in the submitted space.
func (w *Vote) Authorize(ctx context.Context, p *envelope.Parsed) error {
	if err := w.schemas.Validate(schema.Vote, p.Message.Payload); err != nil {
		return envelope.Reject(envelope.KindSchemaViolation, "wrong vote format")
	}
	var payload votePayload
	if err := p.DecodePayload(&payload); err != nil {
		return envelope.Reject(envelope.KindSchemaViolation, "wrong vote format")
	}
	_, err := w.store.GetProposalMessage(ctx, p.Message.Space, payload.Proposal)
	if errors.Is(err, store.ErrNotFound) {
		return envelope.Reject(envelope.KindUnauthorized, "unknown proposal")
	}
	if err != nil {
		return fmt.Errorf("lookup proposal: %w", err)
	}
	return nil
}

// Persist records the message row and its vote projection.
func (w *Vote) Persist(ctx context.Context, p *envelope.Parsed, authorHash, relayerHash string) error {
	var payload votePayload
	if err := p.DecodePayload(&payload); err != nil {
		return err
	}
	created, _ := strconv.ParseInt(p.Message.Timestamp, 10, 64)

	if err := w.store.InsertMessage(ctx, &store.Message{
		ID:        authorHash,
		Address:   p.Envelope.Address,
		Version:   p.Message.Version,
		Timestamp: created,
		Space:     p.Message.Space,
		Type:      "vote",
		Payload:   string(p.Message.Payload),
		Sig:       p.Envelope.Sig,
		Metadata:  store.EncodeMetadata(relayerHash),
	}); err != nil {
		return err
	}

	metadata := payload.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return w.store.InsertVote(ctx, &store.Vote{
		ID:       authorHash,
		Voter:    crypto.ChecksumAddress(p.Envelope.Address),
		Created:  created,
		Space:    p.Message.Space,
		Proposal: payload.Proposal,
		Choice:   string(payload.Choice),
		Metadata: string(metadata),
	})
}
