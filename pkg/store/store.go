// Package store persists accepted governance messages and their proposal
// and vote projections. Inserts are idempotent: every record is keyed by a
// content-derived id and a duplicate insert is a silent no-op, which makes
// client retries safe end to end.
package store

import (
	"encoding/json"
	"fmt"
)

// Message is the append-mostly record of an accepted envelope. It is
// created exactly once and never mutated, except that archiving a proposal
// rewrites Type to an archival tag.
type Message struct {
	ID        string
	Address   string
	Version   string
	Timestamp int64
	Space     string
	Type      string
	Payload   string
	Sig       string
	Metadata  string
}

// MessageMetadata is the JSON shape of Message.Metadata.
type MessageMetadata struct {
	RelayerIPFSHash string `json:"relayer_ipfs_hash"`
}

// EncodeMetadata serializes the relayer receipt reference carried on every
// message row.
func EncodeMetadata(relayerHash string) string {
	b, _ := json.Marshal(MessageMetadata{RelayerIPFSHash: relayerHash})
	return string(b)
}

// Proposal is the queryable projection of a propose message.
type Proposal struct {
	ID         string
	Author     string
	Created    int64
	Space      string
	Network    string
	Type       string
	Strategies string
	Plugins    string
	Title      string
	Body       string
	Choices    string
	Start      int64
	End        int64
	Snapshot   int64
}

// Vote is the queryable projection of a vote message. Superseded votes stay
// in the table; the current vote per (voter, proposal) is selected by the
// latest (created, id) pair at query time.
type Vote struct {
	ID       string
	Voter    string
	Created  int64
	Space    string
	Proposal string
	Choice   string
	Metadata string
}

// SpaceRow is a space as persisted, settings kept as raw JSON.
type SpaceRow struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
	Settings  string
	Approved  bool
}

// VoterRow is one distinct voter with their most recent vote time.
type VoterRow struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Space     string `json:"space"`
}

// ErrNotFound reports a lookup miss where the caller asked for exactly one
// record.
var ErrNotFound = fmt.Errorf("store: not found")
