// Package connect implements the six-phase connection state machine:
// directory rendezvous, peer lookup, local bind, advisory NAT hole-punch,
// authenticated handshake, and session construction.
package connect

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/shadowmesh/harmonydesk/pkg/cipher"
	"github.com/shadowmesh/harmonydesk/pkg/config"
	"github.com/shadowmesh/harmonydesk/pkg/directory"
	"github.com/shadowmesh/harmonydesk/pkg/directorycache"
	"github.com/shadowmesh/harmonydesk/pkg/handshake"
	"github.com/shadowmesh/harmonydesk/pkg/history"
	"github.com/shadowmesh/harmonydesk/pkg/nat"
	"github.com/shadowmesh/harmonydesk/pkg/relayhook"
	"github.com/shadowmesh/harmonydesk/pkg/session"
	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

const relayDialTimeout = 5 * time.Second

// Orchestrator runs the connect sequence for the embedding facade's
// registry. It holds only optional collaborators (cache, history); every
// collaborator is safe to leave nil, in which case that concern is
// disabled.
type Orchestrator struct {
	serverConfig   func() config.ServerConfig
	cache          *directorycache.Cache
	hist           *history.Store
	frameBufferCap int
	maxPacketBytes int
	log            *slog.Logger
}

// New builds an Orchestrator. serverConfig is called once per connect
// attempt so the orchestrator always dials against the current
// configuration. frameBufferCap sizes every session's inbound frame buffer, and
// maxPacketBytes bounds the datagrams it will accept; a non-positive value
// for either leaves each session to fall back to its own default.
func New(serverConfig func() config.ServerConfig, cache *directorycache.Cache, hist *history.Store, frameBufferCap, maxPacketBytes int, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{serverConfig: serverConfig, cache: cache, hist: hist, frameBufferCap: frameBufferCap, maxPacketBytes: maxPacketBytes, log: log}
}

// Connect runs phases 1-6 for sessionID, recording the outcome to history
// if configured.
func (o *Orchestrator) Connect(sessionID, secret string) (*session.Session, error) {
	cfg := o.serverConfig()
	log := o.log.With("session_id", sessionID)

	sess, err := o.run(sessionID, secret, cfg, log)

	outcome, errKind := "success", ""
	if err != nil {
		outcome, errKind = "failure", protocol.KindOf(err)
	}
	o.hist.RecordAttempt(sessionID, outcome, errKind, time.Now())

	return sess, err
}

func (o *Orchestrator) run(sessionID, secret string, cfg config.ServerConfig, log *slog.Logger) (*session.Session, error) {
	peerAddr, cached := o.cache.Get(sessionID)
	if cached {
		log.Info("phase 1-2: peer lookup served from directory cache")
	} else {
		log.Info("phase 1: directory connect", "directory_addr", cfg.DirectoryAddr)
		dir := directory.New(cfg.DirectoryAddr, sessionID, log)
		if err := dir.Connect(); err != nil {
			log.Error("phase 1 failed", "error", err)
			return o.relayFallback(cfg, log, err)
		}
		defer dir.Close()

		log.Info("phase 2: peer lookup")
		addr, err := dir.RequestConnection(sessionID)
		if err != nil {
			log.Error("phase 2 failed", "error", err)
			if protocol.IsKind(err, protocol.PeerNotFound) {
				return nil, err
			}
			return o.relayFallback(cfg, log, err)
		}
		peerAddr = addr
		o.cache.Set(sessionID, addr)
	}

	log.Info("phase 3: bind local endpoint")
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		bindErr := protocol.NewHandshakeFailed("bind local endpoint: " + err.Error())
		log.Error("phase 3 failed", "error", bindErr)
		return o.relayFallback(cfg, log, bindErr)
	}

	log.Info("phase 4: hole punch", "peer_addr", peerAddr.String())
	if err := nat.PunchFrom(conn, peerAddr, log); err != nil {
		log.Warn("phase 4 advisory failure, continuing on the phase 3 endpoint", "error", err)
	}

	log.Info("phase 5: authenticated handshake")
	digest, err := handshake.Perform(conn, peerAddr, secret, log)
	if err != nil {
		log.Error("phase 5 failed", "error", err)
		conn.Close()
		return o.relayFallback(cfg, log, err)
	}

	log.Info("phase 6: session construction")
	sessCipher, err := cipher.New(digest, cfg.Key)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return session.New(conn, peerAddr, sessCipher, o.frameBufferCap, o.maxPacketBytes, log), nil
}

// relayFallback makes one attempt through the reserved relay hook when a
// direct-path phase fails and a relay is configured, then returns the
// original cause regardless of the hook's outcome: the hook never
// implements a relay protocol, so it can confirm reachability but can never
// turn a direct-path failure into a success.
func (o *Orchestrator) relayFallback(cfg config.ServerConfig, log *slog.Logger, cause error) (*session.Session, error) {
	if cfg.RelayAddr == "" {
		// ForceRelay alone, with no endpoint configured, has nothing to
		// dial; the direct-path failure stands.
		return nil, cause
	}

	log.Warn("direct path failed, attempting relay fallback", "relay_addr", cfg.RelayAddr, "cause", cause)
	ctx, cancel := context.WithTimeout(context.Background(), relayDialTimeout)
	defer cancel()

	if err := relayhook.Dial(ctx, cfg.RelayAddr, log); err != nil {
		log.Warn("relay fallback did not recover the connection", "error", err)
	}
	return nil, cause
}
