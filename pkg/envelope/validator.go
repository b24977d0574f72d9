package envelope

import (
	"encoding/json"
	"strconv"
	"time"
)

// MaxBodyBytes caps the serialized request size. Anything larger is refused
// before parsing work proceeds.
const MaxBodyBytes = 100_000

// TimestampWindow bounds how far a message timestamp may drift from wall
// clock, inclusive on both ends.
const TimestampWindow = 300 * time.Second

// SpaceSet answers whether a space id is currently known to the hub.
type SpaceSet interface {
	Has(id string) bool
}

// TypeSet answers whether a message type has a registered writer.
type TypeSet interface {
	Has(messageType string) bool
}

// Validator performs the structural, temporal and version gating of an
// inbound envelope. It does no IO and no signature work; checks run in a
// fixed order and stop at the first failure.
type Validator struct {
	version string
	spaces  SpaceSet
	types   TypeSet
	clock   func() time.Time
}

// NewValidator creates a validator gating on the given protocol version.
func NewValidator(version string, spaces SpaceSet, types TypeSet) *Validator {
	return &Validator{
		version: version,
		spaces:  spaces,
		types:   types,
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

var requiredFields = []string{"version", "timestamp", "space", "type", "payload"}

// Validate parses and gates a raw request body. On success it returns the
// parsed envelope; on failure a *Rejection with a stable reason. No side
// effect occurs either way.
func (v *Validator) Validate(raw []byte) (*Parsed, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Reject(KindMalformedEnvelope, "wrong message body")
	}
	if env.Address == "" || env.Msg == "" || env.Sig == "" {
		return nil, Reject(KindMalformedEnvelope, "wrong message body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(env.Msg), &fields); err != nil {
		return nil, Reject(KindSchemaViolation, "wrong signed message")
	}
	if len(fields) != len(requiredFields) {
		return nil, Reject(KindSchemaViolation, "wrong signed message")
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return nil, Reject(KindSchemaViolation, "wrong signed message")
		}
	}
	var msg SignedMessage
	if err := json.Unmarshal([]byte(env.Msg), &msg); err != nil {
		return nil, Reject(KindSchemaViolation, "wrong signed message")
	}
	if msg.Space == "" || !hasPayload(msg.Payload) {
		return nil, Reject(KindSchemaViolation, "wrong signed message")
	}

	if len(raw) > MaxBodyBytes {
		return nil, Reject(KindPayloadTooLarge, "too large message")
	}

	if !v.spaces.Has(msg.Space) && msg.Type != "update-settings" {
		return nil, Reject(KindUnknownSpace, "unknown space")
	}

	if !v.timestampInWindow(msg.Timestamp) {
		return nil, Reject(KindTimestampOutOfRange, "wrong timestamp")
	}

	if msg.Version != v.version {
		return nil, Reject(KindVersionMismatch, "wrong version")
	}

	if !v.types.Has(msg.Type) {
		return nil, Reject(KindUnknownType, "wrong message type")
	}

	return &Parsed{Envelope: &env, Message: &msg}, nil
}

// timestampInWindow accepts a 10-digit unix-seconds string no further than
// TimestampWindow from now, inclusive.
func (v *Validator) timestampInWindow(ts string) bool {
	if len(ts) != 10 {
		return false
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := v.clock().Unix()
	window := int64(TimestampWindow / time.Second)
	return sec >= now-window && sec <= now+window
}

// hasPayload reports whether payload is a JSON object with at least one key.
func hasPayload(payload json.RawMessage) bool {
	if len(payload) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return false
	}
	return len(obj) > 0
}
