// Package spaces owns the hub's read-mostly view of governance spaces. A
// registry caches every space in memory and refreshes it from the store on
// an interval; request handling reads the cache without locking the store.
// Reads may be stale up to one refresh interval, which is acceptable
// because anything more sensitive than space existence re-reads persisted
// state during authorization.
package spaces

import "encoding/json"

// Settings is the decoded space configuration. Raw keeps the full settings
// document so unknown keys survive round trips.
type Settings struct {
	Name       string          `json:"name"`
	Network    string          `json:"network,omitempty"`
	Private    bool            `json:"private,omitempty"`
	Admins     []string        `json:"admins,omitempty"`
	Members    []string        `json:"members,omitempty"`
	Strategies json.RawMessage `json:"strategies,omitempty"`
	Plugins    json.RawMessage `json:"plugins,omitempty"`

	raw json.RawMessage
}

// ParseSettings decodes a settings document, keeping the raw form.
func ParseSettings(raw []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, err
	}
	s.raw = append(json.RawMessage(nil), raw...)
	return s, nil
}

// Raw returns the full settings document as received.
func (s Settings) Raw() json.RawMessage { return s.raw }

// Space is one cached space.
type Space struct {
	ID              string
	Settings        Settings
	Approved        bool
	ActiveProposals int
}

// MarshalJSON renders the space as its settings document with the approved
// flag and active proposal count folded in, matching the hub's public
// space listing shape.
func (s *Space) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any)
	if len(s.Settings.raw) > 0 {
		if err := json.Unmarshal(s.Settings.raw, &doc); err != nil {
			return nil, err
		}
	}
	doc["approved"] = s.Approved
	if s.ActiveProposals > 0 {
		doc["_activeProposals"] = s.ActiveProposals
	}
	return json.Marshal(doc)
}
