package envelope

import "errors"

// Kind is a stable rejection code. The HTTP layer maps kinds to status
// codes; the reason string is the only detail exposed to clients.
type Kind string

const (
	KindMalformedEnvelope   Kind = "MALFORMED_ENVELOPE"
	KindSchemaViolation     Kind = "SCHEMA_VIOLATION"
	KindPayloadTooLarge     Kind = "PAYLOAD_TOO_LARGE"
	KindUnknownSpace        Kind = "UNKNOWN_SPACE"
	KindTimestampOutOfRange Kind = "TIMESTAMP_OUT_OF_WINDOW"
	KindVersionMismatch     Kind = "VERSION_MISMATCH"
	KindUnknownType         Kind = "UNKNOWN_TYPE"
	KindInvalidSignature    Kind = "INVALID_SIGNATURE"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindPersistenceFailure  Kind = "PERSISTENCE_FAILURE"
)

// Rejection is a terminal, client-visible refusal. It carries exactly one
// human-readable reason and no internal identifiers.
type Rejection struct {
	Kind   Kind
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Reject builds a Rejection error.
func Reject(kind Kind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

// AsRejection unwraps err into a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
