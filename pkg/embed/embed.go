// Package embed is the host embedding facade: coarse 0/1 status entry
// points a foreign-language or CLI host drives, wrapping the registry
// singleton with an explicit init/cleanup lifecycle rather than an
// implicitly-initialized global.
package embed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shadowmesh/harmonydesk/pkg/config"
	"github.com/shadowmesh/harmonydesk/pkg/connect"
	"github.com/shadowmesh/harmonydesk/pkg/directorycache"
	"github.com/shadowmesh/harmonydesk/pkg/eventstream"
	"github.com/shadowmesh/harmonydesk/pkg/history"
	"github.com/shadowmesh/harmonydesk/pkg/logging"
	"github.com/shadowmesh/harmonydesk/pkg/registry"
)

// VideoFrame is the RGBA frame handed back by GetVideoFrame.
type VideoFrame struct {
	Width     uint32
	Height    uint32
	Data      []byte
	Timestamp uint64
}

// Options configures the extras this facade wires in beyond the bare
// embedding entry points: logging
// destination/level and the optional cache/history/event-feed addresses
// normally sourced from a Bootstrap config file (pkg/config) at process
// start.
type Options struct {
	LogLevel slog.Level
	LogPath  string

	DirectoryCacheAddr string
	DirectoryCacheTTL  time.Duration
	HistoryDSN         string
	EventStreamAddr    string
	FrameBufferCap     int
	MaxPacketBytes     int

	Seed *config.Bootstrap
}

// OptionsFromBootstrap translates an on-disk Bootstrap file into Options,
// so cmd/harmonydesk-cli can hand InitWithOptions a loaded config file
// directly instead of unpacking its Ambient fields by hand.
func OptionsFromBootstrap(b *config.Bootstrap) Options {
	level := slog.LevelInfo
	switch b.Ambient.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	ttl, err := time.ParseDuration(b.Ambient.DirectoryCacheTTL)
	if err != nil {
		ttl = 30 * time.Second
	}

	return Options{
		LogLevel:           level,
		LogPath:            b.Ambient.LogPath,
		DirectoryCacheAddr: b.Ambient.RedisAddr,
		DirectoryCacheTTL:  ttl,
		HistoryDSN:         b.Ambient.HistoryDSN,
		EventStreamAddr:    b.Ambient.EventStreamAddr,
		FrameBufferCap:     b.Ambient.FrameBufferCap,
		MaxPacketBytes:     b.Ambient.MaxPacketBytes,
		Seed:               b,
	}
}

type core struct {
	cfgStore *config.Store
	reg      *registry.Registry
	cache    *directorycache.Cache
	hist     *history.Store
	events   *eventstream.Server
	errRing  *logging.ErrorRing
	log      *slog.Logger
}

var (
	mu    sync.Mutex
	state *core
)

// Init initializes the embedding core with default options. Returns 0 on
// the first call, 1 if already initialized.
func Init() int {
	return InitWithOptions(Options{LogLevel: slog.LevelInfo})
}

// InitWithOptions is Init with the ambient/domain-stack extras a real host
// (cmd/harmonydesk-cli) wires up from its own startup configuration. Init
// itself is just InitWithOptions(Options{}), keeping the zero-argument
// entry point a minimal host expects.
func InitWithOptions(opts Options) int {
	mu.Lock()
	defer mu.Unlock()
	if state != nil {
		return 1
	}

	errRing := logging.NewErrorRing(logging.ErrorRingCapacity)
	log, err := logging.NewSlog("embed", opts.LogLevel, opts.LogPath, errRing)
	if err != nil {
		log = slog.Default()
	}

	cache, err := directorycache.New(opts.DirectoryCacheAddr, opts.DirectoryCacheTTL, log)
	if err != nil {
		log.Warn("directory cache disabled", "error", err)
		cache = nil
	}

	hist, err := history.Open(opts.HistoryDSN, log)
	if err != nil {
		log.Warn("connection history disabled", "error", err)
		hist = nil
	}

	cfgStore := config.NewStore()
	if opts.Seed != nil {
		cfgStore.Seed(*opts.Seed)
	}
	events := eventstream.New(log)
	orchestrator := connect.New(cfgStore.Get, cache, hist, opts.FrameBufferCap, opts.MaxPacketBytes, log)
	reg := registry.New(orchestrator, log)
	reg.SetEventFunc(events.NotifyFunc())

	if opts.EventStreamAddr != "" {
		go func() {
			if err := events.ListenAndServe(opts.EventStreamAddr); err != nil {
				log.Warn("eventstream server stopped", "error", err)
			}
		}()
	}

	state = &core{
		cfgStore: cfgStore,
		reg:      reg,
		cache:    cache,
		hist:     hist,
		events:   events,
		errRing:  errRing,
		log:      log,
	}
	log.Info("embedding core initialized")
	return 0
}

// SetServerConfig mutates the process-wide server configuration. Empty
// strings mean "use default" for idServer and key; forceRelay is always
// applied.
func SetServerConfig(idServer, relayServer string, forceRelay bool, key string) int {
	c := current()
	if c == nil {
		return 1
	}
	c.cfgStore.Set(idServer, relayServer, forceRelay, key)
	return 0
}

// GetServerConfig returns the current server configuration. It is a CLI
// convenience for confirming SetServerConfig/Seed took effect, not an
// entry point a foreign-language host needs.
func GetServerConfig() (config.ServerConfig, bool) {
	c := current()
	if c == nil {
		return config.ServerConfig{}, false
	}
	return c.cfgStore.Get(), true
}

// Connect runs the connect sequence for sessionID and inserts the result
// into the registry on success.
func Connect(sessionID, secret string) int {
	c := current()
	if c == nil {
		return 1
	}
	if _, err := c.reg.Connect(sessionID, secret); err != nil {
		return 1
	}
	return 0
}

// Disconnect tears down every live session.
func Disconnect() {
	if c := current(); c != nil {
		c.reg.DisconnectAll()
	}
}

// Cleanup tears down every live session and discards the embedding core
// entirely; a subsequent Init call starts fresh.
func Cleanup() {
	mu.Lock()
	c := state
	state = nil
	mu.Unlock()

	if c == nil {
		return
	}
	c.reg.DisconnectAll()
	c.cache.Close()
	c.hist.Close()
}

// List returns a snapshot of every live session's info. The CLI harness
// needs it for its `list` subcommand; a foreign-language host typically only
// polls ConnectionStatus.
func List() []registry.Info {
	c := current()
	if c == nil {
		return nil
	}
	return c.reg.List()
}

// ConnectionStatus reports how many sessions are currently live.
func ConnectionStatus() uint32 {
	c := current()
	if c == nil {
		return 0
	}
	return uint32(c.reg.Count())
}

// SendKeyEvent forwards to the first live session in registry order, a
// deliberate single-session simplification. It is a no-op if no session is
// live.
func SendKeyEvent(key uint32, pressed bool) {
	c := current()
	if c == nil {
		return
	}
	if id, _, ok := c.reg.First(); ok {
		c.reg.SendKeyEvent(id, key, pressed)
	}
}

// SendMouseMove forwards to the first live session, per the same routing
// simplification as SendKeyEvent.
func SendMouseMove(x, y int32) {
	c := current()
	if c == nil {
		return
	}
	if id, _, ok := c.reg.First(); ok {
		c.reg.SendMouseMove(id, x, y)
	}
}

// SendMouseClick forwards to the first live session, per the same routing
// simplification as SendKeyEvent.
func SendMouseClick(button uint32, pressed bool) {
	c := current()
	if c == nil {
		return
	}
	if id, _, ok := c.reg.First(); ok {
		c.reg.SendMouseClick(id, button, pressed)
	}
}

// GetVideoFrame returns the first live session's latest decoded frame,
// converted to RGBA, or nil if no session is live or none has decoded a
// frame yet.
func GetVideoFrame() *VideoFrame {
	c := current()
	if c == nil {
		return nil
	}
	_, sess, ok := c.reg.First()
	if !ok {
		return nil
	}
	f := sess.LatestFrame()
	if f == nil {
		return nil
	}
	rgba, err := f.ToRGBA()
	if err != nil {
		c.log.Warn("video frame conversion failed", "error", err)
		return nil
	}
	return &VideoFrame{Width: rgba.Width, Height: rgba.Height, Data: rgba.Data, Timestamp: rgba.Timestamp}
}

// GetLastError returns the most recent failure reason recorded across the
// embedding core's lifetime, or "" if none has been recorded.
func GetLastError() string {
	c := current()
	if c == nil {
		return ""
	}
	return c.errRing.Last()
}

func current() *core {
	mu.Lock()
	defer mu.Unlock()
	return state
}
