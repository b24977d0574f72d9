package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process store with the same semantics as SQL. It backs
// tests and the zero-dependency dev mode.
type Memory struct {
	mu        sync.RWMutex
	messages  map[string]*Message
	proposals map[string]*Proposal
	votes     map[string]*Vote
	spaces    map[string]*SpaceRow
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages:  make(map[string]*Message),
		proposals: make(map[string]*Proposal),
		votes:     make(map[string]*Vote),
		spaces:    make(map[string]*SpaceRow),
	}
}

func (m *Memory) Migrate(ctx context.Context) error { return nil }

func (m *Memory) InsertMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return nil
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *Memory) InsertProposal(ctx context.Context, p *Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; ok {
		return nil
	}
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *Memory) InsertVote(ctx context.Context, v *Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.votes[v.ID]; ok {
		return nil
	}
	cp := *v
	m.votes[v.ID] = &cp
	return nil
}

func (m *Memory) ArchiveProposal(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok && msg.Type == "propose" {
		msg.Type = "archive-proposal"
	}
	delete(m.proposals, id)
	for vid, v := range m.votes {
		if v.Proposal == id {
			delete(m.votes, vid)
		}
	}
	return nil
}

func (m *Memory) GetProposalMessage(ctx context.Context, space, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok || msg.Space != space || msg.Type != "propose" {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *Memory) ListProposalMessages(ctx context.Context, space string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.Type == "propose" && msg.Space == space {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CurrentVotes(ctx context.Context, space, proposal string) ([]Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[string]*Vote)
	for _, v := range m.votes {
		if v.Space != space || v.Proposal != proposal {
			continue
		}
		cur, ok := latest[v.Voter]
		if !ok || v.Created > cur.Created || (v.Created == cur.Created && v.ID > cur.ID) {
			latest[v.Voter] = v
		}
	}
	var out []Vote
	for _, v := range latest {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

func (m *Memory) Voters(ctx context.Context, from, to int64, spaceIDs []string) ([]VoterRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	allowed := make(map[string]bool, len(spaceIDs))
	for _, id := range spaceIDs {
		allowed[id] = true
	}
	latest := make(map[string]*VoterRow)
	for _, msg := range m.messages {
		if msg.Type != "vote" || msg.Timestamp < from || msg.Timestamp > to || !allowed[msg.Space] {
			continue
		}
		cur, ok := latest[msg.Address]
		if !ok || msg.Timestamp > cur.Timestamp {
			latest[msg.Address] = &VoterRow{Address: msg.Address, Timestamp: msg.Timestamp, Space: msg.Space}
		}
	}
	var out []VoterRow
	for _, v := range latest {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (m *Memory) UpsertSpace(ctx context.Context, id, settings string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	if row, ok := m.spaces[id]; ok {
		row.Settings = settings
		row.UpdatedAt = now
		return nil
	}
	m.spaces[id] = &SpaceRow{ID: id, CreatedAt: now, UpdatedAt: now, Settings: settings}
	return nil
}

func (m *Memory) ApproveSpace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.spaces[id]; ok {
		row.Approved = true
	}
	return nil
}

func (m *Memory) GetSpace(ctx context.Context, id string) (*SpaceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *Memory) ListSpaces(ctx context.Context) ([]SpaceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SpaceRow
	for _, row := range m.spaces {
		if row.Settings != "" {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListUnapprovedSpaces(ctx context.Context) ([]SpaceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SpaceRow
	for _, row := range m.spaces {
		if !row.Approved {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ActiveProposalCounts(ctx context.Context, ts int64) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for _, p := range m.proposals {
		if p.Start < ts && p.End > ts {
			out[p.Space]++
		}
	}
	return out, nil
}
