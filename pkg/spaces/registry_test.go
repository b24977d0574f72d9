package spaces

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(st, log, time.Minute, time.Minute), st
}

func TestRegistryRefresh(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSpace(ctx, "demo.eth", `{"name":"Demo","admins":["0xAAA"]}`))
	require.NoError(t, st.ApproveSpace(ctx, "demo.eth"))
	require.NoError(t, st.UpsertSpace(ctx, "other.eth", `{"name":"Other"}`))

	assert.False(t, r.Has("demo.eth"), "empty before the first refresh")
	require.NoError(t, r.Refresh(ctx))

	assert.True(t, r.Has("demo.eth"))
	assert.True(t, r.Has("other.eth"))
	assert.False(t, r.Has("nobody.eth"))
	assert.True(t, r.IsApproved("demo.eth"))
	assert.False(t, r.IsApproved("other.eth"))

	sp, ok := r.Get("demo.eth")
	require.True(t, ok)
	assert.Equal(t, "Demo", sp.Settings.Name)
	assert.Equal(t, []string{"0xAAA"}, sp.Settings.Admins)

	assert.Len(t, r.All(), 2)
}

func TestRegistryRefreshSkipsBadSettings(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSpace(ctx, "good.eth", `{"name":"Good"}`))
	require.NoError(t, st.UpsertSpace(ctx, "bad.eth", `not json`))

	require.NoError(t, r.Refresh(ctx))
	assert.True(t, r.Has("good.eth"))
	assert.False(t, r.Has("bad.eth"))
}

func TestRegistryRefreshCarriesCounts(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSpace(ctx, "demo.eth", `{"name":"Demo"}`))
	now := time.Now().Unix()
	require.NoError(t, st.InsertProposal(ctx, &store.Proposal{ID: "p1", Space: "demo.eth", Start: now - 100, End: now + 100}))

	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.refreshCounts(ctx))
	sp, _ := r.Get("demo.eth")
	assert.Equal(t, 1, sp.ActiveProposals)

	// A full refresh between count passes keeps the last counts.
	require.NoError(t, r.Refresh(ctx))
	sp, _ = r.Get("demo.eth")
	assert.Equal(t, 1, sp.ActiveProposals)
}

func TestRegistryPoke(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	_, ok, err := r.Poke(ctx, "demo.eth")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.UpsertSpace(ctx, "demo.eth", `{"name":"Demo"}`))
	sp, ok, err := r.Poke(ctx, "demo.eth")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Demo", sp.Settings.Name)
	assert.True(t, r.Has("demo.eth"), "poke fills the cache")
}

func TestRegistryPutPreservesApproved(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSpace(ctx, "demo.eth", `{"name":"Demo"}`))
	require.NoError(t, st.ApproveSpace(ctx, "demo.eth"))
	require.NoError(t, r.Refresh(ctx))
	require.True(t, r.IsApproved("demo.eth"))

	settings, err := ParseSettings([]byte(`{"name":"Demo v2"}`))
	require.NoError(t, err)
	r.Put("demo.eth", settings)

	sp, _ := r.Get("demo.eth")
	assert.Equal(t, "Demo v2", sp.Settings.Name)
	assert.True(t, sp.Approved)
}

func TestRegistrySetApproved(t *testing.T) {
	r, _ := newTestRegistry(t)
	settings, err := ParseSettings([]byte(`{"name":"Demo"}`))
	require.NoError(t, err)
	r.Put("demo.eth", settings)

	require.False(t, r.IsApproved("demo.eth"))
	r.SetApproved("demo.eth", true)
	assert.True(t, r.IsApproved("demo.eth"))
}

func TestSpaceMarshalJSON(t *testing.T) {
	settings, err := ParseSettings([]byte(`{"name":"Demo","symbol":"DEMO","strategies":[{"name":"erc20-balance-of"}]}`))
	require.NoError(t, err)
	sp := &Space{ID: "demo.eth", Settings: settings, Approved: true, ActiveProposals: 3}

	raw, err := json.Marshal(sp)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Demo", doc["name"])
	assert.Equal(t, "DEMO", doc["symbol"], "unknown settings keys survive the round trip")
	assert.Equal(t, true, doc["approved"])
	assert.Equal(t, float64(3), doc["_activeProposals"])

	// The count is folded in only when proposals are open.
	sp.ActiveProposals = 0
	raw, err = json.Marshal(sp)
	require.NoError(t, err)
	doc = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	_, present := doc["_activeProposals"]
	assert.False(t, present)
}
