// Package config holds the process-wide server configuration the
// embedding layer mutates and every new connection attempt reads, plus an
// optional YAML bootstrap file that seeds it at process start.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

// ServerConfig is the resolved, immutable-once-read snapshot a connect
// attempt dials against.
type ServerConfig struct {
	DirectoryAddr string
	RelayAddr     string
	ForceRelay    bool
	Key           string
}

// Store guards a mutable ServerConfig behind a single lock. It is owned by the
// embedding layer (pkg/embed), never a package-level global, so its
// lifecycle is explicit: construct one in Init, discard it in Cleanup.
type Store struct {
	mu  sync.RWMutex
	cfg ServerConfig
}

// NewStore builds a Store seeded with defaults.
func NewStore() *Store {
	return &Store{cfg: ServerConfig{DirectoryAddr: protocol.DefaultDirectoryAddr}}
}

// Get returns a snapshot of the current configuration.
func (s *Store) Get() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set updates the configuration. An empty idServer or key leaves the
// corresponding field unchanged ("use default"); relayAddr follows the same
// rule. forceRelay is always applied since false is a meaningful value, not
// an absence.
func (s *Store) Set(idServer, relayAddr string, forceRelay bool, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idServer != "" {
		s.cfg.DirectoryAddr = idServer
	}
	if relayAddr != "" {
		s.cfg.RelayAddr = relayAddr
	}
	s.cfg.ForceRelay = forceRelay
	if key != "" {
		s.cfg.Key = key
	}
}

// Seed applies a bootstrap configuration loaded from disk, skipping empty
// fields the same way Set does. Intended to run once, before any host call
// has mutated the store.
func (s *Store) Seed(b Bootstrap) {
	s.Set(b.DirectoryAddr, b.RelayAddr, b.ForceRelay, b.Key)
}

// SessionConfig is the immutable snapshot taken when a connect attempt
// begins, combining the session identifier, optional secret, and the
// server configuration resolved at that moment. Screen dimensions are
// negotiated later and live on the Session itself, not here.
type SessionConfig struct {
	SessionID string
	Secret    string
	Server    ServerConfig
}

// Ambient holds the non-protocol knobs this codebase's config files
// traditionally carry alongside the domain-specific settings: logging and
// the two size limits that bound memory use.
type Ambient struct {
	LogLevel          string `yaml:"log_level"`
	LogPath           string `yaml:"log_path"`
	FrameBufferCap    int    `yaml:"frame_buffer_capacity"`
	MaxPacketBytes    int    `yaml:"max_packet_bytes"`
	DirectoryCacheTTL string `yaml:"directory_cache_ttl"`
	RedisAddr         string `yaml:"redis_addr"`
	HistoryDSN        string `yaml:"history_dsn"`
	EventStreamAddr   string `yaml:"eventstream_addr"`
}

// Bootstrap is the on-disk YAML shape `cmd/harmonydesk-cli` optionally
// loads at startup to seed the in-memory ServerConfig and Ambient knobs.
// It is read once, at process start, and never written back: the core
// itself persists nothing.
type Bootstrap struct {
	DirectoryAddr string  `yaml:"directory_addr"`
	RelayAddr     string  `yaml:"relay_addr"`
	ForceRelay    bool    `yaml:"force_relay"`
	Key           string  `yaml:"key"`
	Ambient       Ambient `yaml:"ambient"`
}

// Load reads and validates a Bootstrap file from path.
func Load(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	b.setDefaults()
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &b, nil
}

func (b *Bootstrap) setDefaults() {
	if b.DirectoryAddr == "" {
		b.DirectoryAddr = protocol.DefaultDirectoryAddr
	}
	if b.Ambient.LogLevel == "" {
		b.Ambient.LogLevel = "info"
	}
	if b.Ambient.FrameBufferCap == 0 {
		b.Ambient.FrameBufferCap = 3
	}
	if b.Ambient.MaxPacketBytes == 0 {
		b.Ambient.MaxPacketBytes = protocol.MaxPayloadSize
	}
	if b.Ambient.DirectoryCacheTTL == "" {
		b.Ambient.DirectoryCacheTTL = "30s"
	}
}

func (b *Bootstrap) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[b.Ambient.LogLevel] {
		return fmt.Errorf("invalid log level %q", b.Ambient.LogLevel)
	}
	if b.Ambient.FrameBufferCap < 1 {
		return fmt.Errorf("frame_buffer_capacity must be positive, got %d", b.Ambient.FrameBufferCap)
	}
	if b.Ambient.MaxPacketBytes < protocol.HeaderSize {
		return fmt.Errorf("max_packet_bytes must be at least %d, got %d", protocol.HeaderSize, b.Ambient.MaxPacketBytes)
	}
	return nil
}

// WriteExample writes a starter Bootstrap file (plain YAML with the default
// values filled in, no comments) to path. It exists
// for operators standing up the CLI harness for the first time; the core
// never calls it itself.
func WriteExample(path string) error {
	b := Bootstrap{
		DirectoryAddr: protocol.DefaultDirectoryAddr,
		Ambient: Ambient{
			LogLevel:          "info",
			FrameBufferCap:    3,
			MaxPacketBytes:    protocol.MaxPayloadSize,
			DirectoryCacheTTL: "30s",
		},
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("config: marshal example: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
