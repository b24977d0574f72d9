// Package envelope defines the signed submission unit accepted by the hub
// and the structural/temporal gate every submission passes before any
// cryptographic or IO work happens.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire unit submitted by a client. Msg carries the exact
// JSON serialization the client signed; it is kept as a string because the
// signature covers its byte-for-byte form.
type Envelope struct {
	Address string `json:"address"`
	Msg     string `json:"msg"`
	Sig     string `json:"sig"`
}

// SignedMessage is the decoded form of Envelope.Msg.
type SignedMessage struct {
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Space     string          `json:"space"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Parsed bundles an envelope with its decoded message so downstream stages
// never re-parse the wire body.
type Parsed struct {
	Envelope *Envelope
	Message  *SignedMessage
}

// DecodePayload unmarshals the message payload into out.
func (p *Parsed) DecodePayload(out any) error {
	if err := json.Unmarshal(p.Message.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", p.Message.Type, err)
	}
	return nil
}
