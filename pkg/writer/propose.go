package writer

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pollsterdev/snapshot-hub/pkg/crypto"
	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/schema"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// Propose accepts new proposals and materializes the proposal projection.
type Propose struct {
	store   Store
	spaces  Spaces
	schemas Schemas
}

// NewPropose creates the propose writer.
func NewPropose(st Store, sp Spaces, sc Schemas) *Propose {
	return &Propose{store: st, spaces: sp, schemas: sc}
}

type proposePayload struct {
	Name     string          `json:"name"`
	Body     string          `json:"body"`
	Choices  []string        `json:"choices"`
	Start    int64           `json:"start"`
	End      int64           `json:"end"`
	Snapshot json.Number     `json:"snapshot"`
	Type     string          `json:"type"`
	Metadata proposeMetadata `json:"metadata"`
}

type proposeMetadata struct {
	Strategies json.RawMessage `json:"strategies"`
	Plugins    json.RawMessage `json:"plugins"`
	Network    string          `json:"network"`
}

// Authorize checks the payload shape and, for membership-gated spaces,
// that the author is a listed member or admin.
func (w *Propose) Authorize(ctx context.Context, p *envelope.Parsed) error {
	if err := w.schemas.Validate(schema.Propose, p.Message.Payload); err != nil {
		return envelope.Reject(envelope.KindSchemaViolation, "wrong proposal format")
	}
	sp, ok := w.spaces.Get(p.Message.Space)
	if !ok {
		return envelope.Reject(envelope.KindUnknownSpace, "unknown space")
	}
	if len(sp.Settings.Members) > 0 && !containsAddress(sp.Settings.Members, p.Envelope.Address) &&
		!containsAddress(sp.Settings.Admins, p.Envelope.Address) {
		return envelope.Reject(envelope.KindUnauthorized, "wrong signer")
	}
	return nil
}

// Persist records the message row and its proposal projection. Strategy,
// plugin and network fields fall back to the space settings when the
// payload metadata leaves them out.
func (w *Propose) Persist(ctx context.Context, p *envelope.Parsed, authorHash, relayerHash string) error {
	var payload proposePayload
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
		Type:      "propose",
		Payload:   string(p.Message.Payload),
		Sig:       p.Envelope.Sig,
		Metadata:  store.EncodeMetadata(relayerHash),
	}); err != nil {
		return err
	}

	sp, _ := w.spaces.Get(p.Message.Space)

	strategies := payload.Metadata.Strategies
	if len(strategies) == 0 && sp != nil {
		strategies = sp.Settings.Strategies
	}
	if len(strategies) == 0 {
		strategies = json.RawMessage("[]")
	}
	plugins := payload.Metadata.Plugins
	if len(plugins) == 0 {
		plugins = json.RawMessage("{}")
	}
	network := payload.Metadata.Network
	if network == "" && sp != nil {
		network = sp.Settings.Network
	}
	proposalType := payload.Type
	if proposalType == "" {
		proposalType = "single-choice"
	}
	snapshotBlock, _ := payload.Snapshot.Int64()
	choices, _ := json.Marshal(payload.Choices)

	return w.store.InsertProposal(ctx, &store.Proposal{
		ID:         authorHash,
		Author:     crypto.ChecksumAddress(p.Envelope.Address),
		Created:    created,
		Space:      p.Message.Space,
		Network:    network,
		Type:       proposalType,
		Strategies: string(strategies),
		Plugins:    string(plugins),
		Title:      payload.Name,
		Body:       payload.Body,
		Choices:    string(choices),
		Start:      payload.Start,
		End:        payload.End,
		Snapshot:   snapshotBlock,
	})
}

func containsAddress(list []string, addr string) bool {
	for _, a := range list {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}
