// Package config holds server configuration, loaded from environment
// variables with an optional YAML file for the gossip peer list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config holds hub configuration.
type Config struct {
	Port     string
	LogLevel string
	Network  string

	// ProtocolVersion is the exact version accepted in signed messages.
	ProtocolVersion string

	// DatabaseDriver selects the store backend: postgres, sqlite or memory.
	DatabaseDriver string
	DatabaseURL    string

	RelayerKey string

	PinURL    string
	PinAPIKey string

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Admins []string
	Peers  []string

	Maintenance bool

	SpaceRefreshInterval time.Duration
	ActiveCountInterval  time.Duration

	RateRPS   int
	RateBurst int

	OTLPEndpoint string
}

// Load reads configuration from the environment. The protocol version must
// be valid semver; an unparsable version is a startup error, not something
// to discover on the first rejected submission.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getenv("PORT", "3000"),
		LogLevel:             getenv("LOG_LEVEL", "INFO"),
		Network:              getenv("NETWORK", "testnet"),
		ProtocolVersion:      getenv("PROTOCOL_VERSION", "0.1.3"),
		DatabaseDriver:       getenv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:          getenv("DATABASE_URL", "postgres://snapshot@localhost:5432/snapshot?sslmode=disable"),
		RelayerKey:           os.Getenv("RELAYER_PK"),
		PinURL:               os.Getenv("PIN_URL"),
		PinAPIKey:            os.Getenv("PIN_API_KEY"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3Region:             getenv("S3_REGION", "us-east-1"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		Maintenance:          os.Getenv("MAINTENANCE") != "",
		SpaceRefreshInterval: getduration("SPACE_REFRESH_INTERVAL", 3*time.Minute),
		ActiveCountInterval:  getduration("ACTIVE_COUNT_INTERVAL", 20*time.Second),
		RateRPS:              getint("RATE_RPS", 4),
		RateBurst:            getint("RATE_BURST", 32),
		OTLPEndpoint:         os.Getenv("OTLP_ENDPOINT"),
		RedisDB:              getint("REDIS_DB", 0),
	}

	if _, err := semver.NewVersion(cfg.ProtocolVersion); err != nil {
		return nil, fmt.Errorf("PROTOCOL_VERSION %q is not valid semver: %w", cfg.ProtocolVersion, err)
	}

	if admins := os.Getenv("ADMINS"); admins != "" {
		cfg.Admins = splitList(admins)
	}
	if peers := os.Getenv("PEERS"); peers != "" {
		cfg.Peers = splitList(peers)
	}
	if peersFile := os.Getenv("PEERS_FILE"); peersFile != "" {
		peers, err := loadPeersFile(peersFile)
		if err != nil {
			return nil, err
		}
		cfg.Peers = append(cfg.Peers, peers...)
	}

	return cfg, nil
}

type peersFile struct {
	Peers []string `yaml:"peers"`
}

// loadPeersFile reads a YAML peer list of the form:
//
//	peers:
//	  - https://hub-peer.example.org
func loadPeersFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peers file: %w", err)
	}
	var pf peersFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse peers file %s: %w", path, err)
	}
	return pf.Peers, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
