package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "0.1.3", cfg.ProtocolVersion)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 3*time.Minute, cfg.SpaceRefreshInterval)
	assert.Equal(t, 4, cfg.RateRPS)
	assert.False(t, cfg.Maintenance)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	t.Setenv("PROTOCOL_VERSION", "not-a-version")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadLists(t *testing.T) {
	t.Setenv("ADMINS", "0xAAA, 0xBBB,,0xCCC ")
	t.Setenv("PEERS", "https://hub-a.example.org,https://hub-b.example.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAAA", "0xBBB", "0xCCC"}, cfg.Admins)
	assert.Equal(t, []string{"https://hub-a.example.org", "https://hub-b.example.org"}, cfg.Peers)
}

func TestLoadPeersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("peers:\n  - https://hub-c.example.org\n  - https://hub-d.example.org\n"), 0o600))

	t.Setenv("PEERS", "https://hub-a.example.org")
	t.Setenv("PEERS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://hub-a.example.org",
		"https://hub-c.example.org",
		"https://hub-d.example.org",
	}, cfg.Peers)
}

func TestLoadPeersFileMissing(t *testing.T) {
	t.Setenv("PEERS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDurationsAndInts(t *testing.T) {
	t.Setenv("SPACE_REFRESH_INTERVAL", "45s")
	t.Setenv("RATE_BURST", "7")
	t.Setenv("MAINTENANCE", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.SpaceRefreshInterval)
	assert.Equal(t, 7, cfg.RateBurst)
	assert.True(t, cfg.Maintenance)
}
