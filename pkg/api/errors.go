package api

import (
	"encoding/json"
	"net/http"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
)

// errorBody is the only error shape the API exposes: one human-readable
// reason, no stack traces, no internal identifiers.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a rejection kind to a transport status. Validation and
// authorization failures are client faults; pin/sign outages are
// retryable; a persistence failure after pinning is the hub's problem.
func statusFor(kind envelope.Kind) int {
	switch kind {
	case envelope.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case envelope.KindUnauthorized:
		return http.StatusUnauthorized
	case envelope.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case envelope.KindPersistenceFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// writeRejection renders a pipeline rejection.
func writeRejection(w http.ResponseWriter, err error) {
	if rej, ok := envelope.AsRejection(err); ok {
		writeError(w, statusFor(rej.Kind), rej.Reason)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
