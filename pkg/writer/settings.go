package writer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/pin"
	"github.com/pollsterdev/snapshot-hub/pkg/schema"
	"github.com/pollsterdev/snapshot-hub/pkg/spaces"
)

// SpaceCache is the write-through hook into the space registry so a
// settings update is visible before the next periodic refresh.
type SpaceCache interface {
	Put(id string, settings spaces.Settings)
}

// Settings handles update-settings messages. It is the one writer whose
// space may be unregistered: submitting settings is how a space comes to
// exist.
type Settings struct {
	store   Store
	spaces  Spaces
	cache   SpaceCache
	schemas Schemas
	objects pin.ObjectStore // optional settings-registry mirror
	log     *slog.Logger
}

// NewSettings creates the update-settings writer. objects may be nil when
// no settings-registry mirror is configured.
func NewSettings(st Store, sp Spaces, cache SpaceCache, sc Schemas, objects pin.ObjectStore, log *slog.Logger) *Settings {
	return &Settings{store: st, spaces: sp, cache: cache, schemas: sc, objects: objects, log: log}
}

// Authorize checks the settings document shape. For a space that already
// exists with an admin list, only a listed admin may change its settings;
// a brand new space may be registered by anyone.
func (w *Settings) Authorize(ctx context.Context, p *envelope.Parsed) error {
	if err := w.schemas.Validate(schema.Space, p.Message.Payload); err != nil {
		return envelope.Reject(envelope.KindSchemaViolation, "wrong space format")
	}
	sp, ok := w.spaces.Get(p.Message.Space)
	if !ok {
		return nil
	}
	if len(sp.Settings.Admins) > 0 && !containsAddress(sp.Settings.Admins, p.Envelope.Address) {
		return envelope.Reject(envelope.KindUnauthorized, "wrong signer")
	}
	return nil
}

// Persist mirrors the settings document to the registry object store, then
// upserts the space row. The approved flag is preserved by the upsert; the
// cache entry is replaced so the change is visible immediately.
func (w *Settings) Persist(ctx context.Context, p *envelope.Parsed, authorHash, relayerHash string) error {
	if w.objects != nil {
		key := fmt.Sprintf("registry/%s/%s", p.Envelope.Address, p.Message.Space)
		hash, err := w.objects.Upload(ctx, key, p.Message.Payload)
		if err != nil {
			return fmt.Errorf("mirror settings: %w", err)
		}
		w.log.Info("settings mirrored", "space", p.Message.Space, "hash", hash)
	}

	if err := w.store.UpsertSpace(ctx, p.Message.Space, string(p.Message.Payload)); err != nil {
		return err
	}

	settings, err := spaces.ParseSettings(p.Message.Payload)
	if err != nil {
		return fmt.Errorf("parse settings for cache: %w", err)
	}
	w.cache.Put(p.Message.Space, settings)
	return nil
}
