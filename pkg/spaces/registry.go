package spaces

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// Store is the slice of the persistence layer the registry reads from.
type Store interface {
	ListSpaces(ctx context.Context) ([]store.SpaceRow, error)
	GetSpace(ctx context.Context, id string) (*store.SpaceRow, error)
	ActiveProposalCounts(ctx context.Context, ts int64) (map[string]int, error)
}

// Registry is the in-memory space cache. All methods are safe for
// concurrent use; Run keeps the cache fresh in the background.
type Registry struct {
	store  Store
	log    *slog.Logger
	mu     sync.RWMutex
	spaces map[string]*Space

	refreshEvery time.Duration
	countsEvery  time.Duration
}

// NewRegistry creates a registry refreshing the full space list every
// refreshEvery and the active-proposal counts every countsEvery.
func NewRegistry(st Store, log *slog.Logger, refreshEvery, countsEvery time.Duration) *Registry {
	return &Registry{
		store:        st,
		log:          log,
		spaces:       make(map[string]*Space),
		refreshEvery: refreshEvery,
		countsEvery:  countsEvery,
	}
}

// Refresh reloads every space from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	rows, err := r.store.ListSpaces(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]*Space, len(rows))
	for _, row := range rows {
		sp, err := fromRow(row)
		if err != nil {
			r.log.Warn("skipping space with bad settings", "space", row.ID, "err", err)
			continue
		}
		next[row.ID] = sp
	}

	r.mu.Lock()
	// Carry over counts so a refresh does not blank them until the next
	// count pass.
	for id, sp := range next {
		if old, ok := r.spaces[id]; ok {
			sp.ActiveProposals = old.ActiveProposals
		}
	}
	r.spaces = next
	r.mu.Unlock()

	r.log.Info("space cache refreshed", "spaces", len(next))
	return nil
}

// refreshCounts updates the per-space active proposal counters in place.
func (r *Registry) refreshCounts(ctx context.Context) error {
	counts, err := r.store.ActiveProposalCounts(ctx, time.Now().Unix())
	if err != nil {
		return err
	}
	r.mu.Lock()
	for id, sp := range r.spaces {
		sp.ActiveProposals = counts[id]
	}
	r.mu.Unlock()
	return nil
}

// Run refreshes the cache until ctx is canceled. The first refresh happens
// immediately.
func (r *Registry) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.log.Error("initial space refresh failed", "err", err)
	}
	refresh := time.NewTicker(r.refreshEvery)
	counts := time.NewTicker(r.countsEvery)
	defer refresh.Stop()
	defer counts.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			if err := r.Refresh(ctx); err != nil {
				r.log.Error("space refresh failed", "err", err)
			}
		case <-counts.C:
			if err := r.refreshCounts(ctx); err != nil {
				r.log.Error("active proposal count refresh failed", "err", err)
			}
		}
	}
}

// Has reports whether a space id is known.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.spaces[id]
	return ok
}

// Get returns a copy of the cached space.
func (r *Registry) Get(id string) (*Space, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.spaces[id]
	if !ok {
		return nil, false
	}
	cp := *sp
	return &cp, true
}

// IsApproved reports whether a space exists and has been approved.
func (r *Registry) IsApproved(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.spaces[id]
	return ok && sp.Approved
}

// All returns a snapshot of the cache.
func (r *Registry) All() map[string]*Space {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Space, len(r.spaces))
	for id, sp := range r.spaces {
		cp := *sp
		out[id] = &cp
	}
	return out
}

// Poke reloads one space from the store and updates the cache entry.
// Returns false when the store has no such space.
func (r *Registry) Poke(ctx context.Context, id string) (*Space, bool, error) {
	row, err := r.store.GetSpace(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	sp, err := fromRow(*row)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	r.spaces[id] = sp
	r.mu.Unlock()
	cp := *sp
	return &cp, true, nil
}

// Put replaces the cached settings for a space, keeping an existing
// approved flag. Called when an update-settings message lands so the cache
// does not lag a full refresh interval behind a write the hub itself made.
func (r *Registry) Put(id string, settings Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	approved := false
	if old, ok := r.spaces[id]; ok {
		approved = old.Approved
	}
	r.spaces[id] = &Space{ID: id, Settings: settings, Approved: approved}
}

// SetApproved updates the cached approved flag.
func (r *Registry) SetApproved(id string, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sp, ok := r.spaces[id]; ok {
		sp.Approved = approved
	}
}

func fromRow(row store.SpaceRow) (*Space, error) {
	settings, err := ParseSettings([]byte(row.Settings))
	if err != nil {
		return nil, err
	}
	return &Space{ID: row.ID, Settings: settings, Approved: row.Approved}, nil
}
