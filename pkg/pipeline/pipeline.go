// Package pipeline orchestrates the accept/reject decision for one signed
// message submission: structural gating, signature verification, per-type
// authorization, gossip scheduling, content-addressed pinning, relayer
// countersigning and durable persistence, strictly in that order.
//
// Every external-service failure (pin, sign) is ordered before the durable
// write. A message is therefore never recorded without its attestation
// trail, and a client retry of a failed submission is always safe: the
// persisted id is a deterministic function of the pinned content.
package pipeline

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pollsterdev/snapshot-hub/pkg/crypto"
	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/pin"
	"github.com/pollsterdev/snapshot-hub/pkg/writer"
)

// pinFormatVersion tags the shape of pinned envelope documents.
const pinFormatVersion = "2"

// Validator gates a raw request body into a parsed envelope.
type Validator interface {
	Validate(raw []byte) (*envelope.Parsed, error)
}

// Signer is the relayer identity that countersigns accepted submissions.
type Signer interface {
	Sign(msg []byte) (string, error)
	Address() string
}

// Broadcaster schedules best-effort replication of an accepted envelope.
type Broadcaster interface {
	Broadcast(env *envelope.Envelope, space string)
}

// VerifyFunc checks a client signature over the exact signed bytes.
type VerifyFunc func(claimedAddress, signature string, msg []byte) bool

// Receipt is the successful submission result.
type Receipt struct {
	AuthorHash     string
	RelayerAddress string
	RelayerReceipt string
}

// Pipeline is the signed-message ingestion pipeline. One Submit call runs
// per inbound request; calls are independent and need no cross-request
// coordination.
type Pipeline struct {
	validator Validator
	writers   *writer.Registry
	relayer   Signer
	pins      pin.ContentStore
	gossip    Broadcaster
	verify    VerifyFunc
	log       *slog.Logger
	tracer    trace.Tracer
}

// New assembles a pipeline.
func New(v Validator, writers *writer.Registry, relayer Signer, pins pin.ContentStore, gossip Broadcaster, log *slog.Logger) *Pipeline {
	return &Pipeline{
		validator: v,
		writers:   writers,
		relayer:   relayer,
		pins:      pins,
		gossip:    gossip,
		verify:    crypto.Verify,
		log:       log,
		tracer:    otel.Tracer("snapshot-hub/pipeline"),
	}
}

// WithVerify overrides the signature check. Tests use this to submit
// unsigned fixtures.
func (p *Pipeline) WithVerify(v VerifyFunc) *Pipeline {
	p.verify = v
	return p
}

// pinnedEnvelope is the document shape pinned to the content store, both
// for the author's submission and the relayer's attestation.
type pinnedEnvelope struct {
	Address string `json:"address"`
	Msg     string `json:"msg"`
	Sig     string `json:"sig"`
	Version string `json:"version"`
}

// Submit runs the full ingestion machine on a raw request body. A returned
// error is always a *envelope.Rejection carrying a stable reason; the
// caller maps its kind to a transport status.
func (p *Pipeline) Submit(ctx context.Context, raw []byte) (*Receipt, error) {
	ctx, span := p.tracer.Start(ctx, "hub.submit")
	defer span.End()

	parsed, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	env, msg := parsed.Envelope, parsed.Message
	span.SetAttributes(
		attribute.String("message.space", msg.Space),
		attribute.String("message.type", msg.Type),
	)

	if !p.verify(env.Address, env.Sig, []byte(env.Msg)) {
		return nil, envelope.Reject(envelope.KindInvalidSignature, "wrong signature")
	}

	w, ok := p.writers.Lookup(msg.Type)
	if !ok {
		// Unreachable after validation; kept as a guard for registry drift.
		return nil, envelope.Reject(envelope.KindUnknownType, "wrong message type")
	}

	if err := w.Authorize(ctx, parsed); err != nil {
		if rej, ok := envelope.AsRejection(err); ok {
			return nil, rej
		}
		p.log.Error("authorization check failed", "space", msg.Space, "type", msg.Type, "err", err)
		return nil, envelope.Reject(envelope.KindUpstreamUnavailable, "service unavailable, try again")
	}

	// Replication is advisory and must never block or fail the request.
	p.gossip.Broadcast(env, msg.Space)

	authorHash, err := p.pins.Pin(ctx, "snapshot/"+env.Sig, pinnedEnvelope{
		Address: env.Address,
		Msg:     env.Msg,
		Sig:     env.Sig,
		Version: pinFormatVersion,
	})
	if err != nil {
		p.log.Error("author pin failed", "space", msg.Space, "type", msg.Type, "err", err)
		return nil, envelope.Reject(envelope.KindUpstreamUnavailable, "upstream unavailable, try again")
	}

	relayerSig, err := p.relayer.Sign([]byte(authorHash))
	if err != nil {
		p.log.Error("relayer sign failed", "space", msg.Space, "hash", authorHash, "err", err)
		return nil, envelope.Reject(envelope.KindUpstreamUnavailable, "upstream unavailable, try again")
	}

	relayerHash, err := p.pins.Pin(ctx, "snapshot/"+relayerSig, pinnedEnvelope{
		Address: p.relayer.Address(),
		Msg:     authorHash,
		Sig:     relayerSig,
		Version: pinFormatVersion,
	})
	if err != nil {
		p.log.Error("relayer pin failed", "space", msg.Space, "hash", authorHash, "err", err)
		return nil, envelope.Reject(envelope.KindUpstreamUnavailable, "upstream unavailable, try again")
	}

	if err := w.Persist(ctx, parsed, authorHash, relayerHash); err != nil {
		if rej, ok := envelope.AsRejection(err); ok {
			return nil, rej
		}
		// The attestation trail exists but the record does not. There is no
		// compensating unpin; flag the divergence for manual reconciliation.
		p.log.Error("persist failed after pinning, manual reconciliation required",
			"space", msg.Space, "type", msg.Type,
			"author_hash", authorHash, "relayer_hash", relayerHash, "err", err)
		return nil, envelope.Reject(envelope.KindPersistenceFailure, "failed to store message")
	}

	p.log.Info("message accepted",
		"address", env.Address, "space", msg.Space, "type", msg.Type, "hash", authorHash)
	span.SetAttributes(attribute.String("message.hash", authorHash))

	return &Receipt{
		AuthorHash:     authorHash,
		RelayerAddress: p.relayer.Address(),
		RelayerReceipt: relayerHash,
	}, nil
}
