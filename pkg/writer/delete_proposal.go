package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// DeleteProposal archives a proposal on request of a space admin or the
// proposal's author. The message row survives with an archival tag; only
// the proposal and vote projections are removed.
type DeleteProposal struct {
	store  Store
	spaces Spaces
}

// NewDeleteProposal creates the delete-proposal writer.
func NewDeleteProposal(st Store, sp Spaces) *DeleteProposal {
	return &DeleteProposal{store: st, spaces: sp}
}

type deletePayload struct {
	Proposal string `json:"proposal"`
}

// Authorize requires the signer to be a space admin or the original
// proposal author. Reads live persisted state rather than the cache: a
// stale admin list must not authorize a deletion.
func (w *DeleteProposal) Authorize(ctx context.Context, p *envelope.Parsed) error {
	var payload deletePayload
	if err := p.DecodePayload(&payload); err != nil || payload.Proposal == "" {
		return envelope.Reject(envelope.KindSchemaViolation, "wrong delete format")
	}

	proposal, err := w.store.GetProposalMessage(ctx, p.Message.Space, payload.Proposal)
	if errors.Is(err, store.ErrNotFound) {
		return envelope.Reject(envelope.KindUnauthorized, "unknown proposal")
	}
	if err != nil {
		return fmt.Errorf("lookup proposal: %w", err)
	}

	var admins []string
	if sp, ok := w.spaces.Get(p.Message.Space); ok {
		admins = sp.Settings.Admins
	}
	if !containsAddress(admins, p.Envelope.Address) &&
		!strings.EqualFold(proposal.Address, p.Envelope.Address) {
		return envelope.Reject(envelope.KindUnauthorized, "wrong signer")
	}
	return nil
}

// Persist archives the proposal atomically: the message row is retagged
// and the proposal and vote projections removed in one transaction.
func (w *DeleteProposal) Persist(ctx context.Context, p *envelope.Parsed, authorHash, relayerHash string) error {
	var payload deletePayload
	if err := p.DecodePayload(&payload); err != nil {
		return err
	}
	return w.store.ArchiveProposal(ctx, payload.Proposal)
}
