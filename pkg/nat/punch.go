package nat

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

const (
	punchPacketCount    = 5
	punchInterval       = 100 * time.Millisecond
	punchWaitTimeout    = 30 * time.Second
	punchRecvBufferSize = 4096
)

// PunchResult carries the socket bound for direct peer traffic along with
// the peer address it was punched towards. The socket is left open and
// unconnected (sends carry the peer address explicitly) for a session to
// adopt directly.
type PunchResult struct {
	Conn *net.UDPConn
	Peer *net.UDPAddr
}

// PunchHole performs best-effort UDP NAT traversal towards peer: it binds a
// fresh local socket and fires a short burst of Ping packets at it. Success
// here is advisory, matching the protocol's assumption that most NATs will
// open a return path after an outbound packet even if no reply is ever
// observed; callers proceed to the handshake regardless of whether a Pong
// was seen.
func PunchHole(peer *net.UDPAddr, log *slog.Logger) (*PunchResult, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("nat hole punch starting", "peer", peer.String())

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, protocol.NewIoError("bind local punch socket", err)
	}

	for i := 0; i < punchPacketCount; i++ {
		payload := []byte(fmt.Sprintf("punch_%d", i))
		data, err := protocol.Encode(protocol.MsgPing, payload)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if _, err := conn.WriteToUDP(data, peer); err != nil {
			log.Warn("punch packet send failed", "seq", i, "error", err)
		}
		time.Sleep(punchInterval)
	}

	log.Info("nat hole punch completed", "peer", peer.String())
	return &PunchResult{Conn: conn, Peer: peer}, nil
}

// PunchFrom performs the same advisory burst as PunchHole but over an
// already-bound socket instead of binding a fresh one. The connection
// orchestrator uses this so that a hole-punch failure never invalidates the
// endpoint phase 3 already bound: that same conn is reused for the
// handshake and the session regardless of whether punching succeeded.
func PunchFrom(conn *net.UDPConn, peer *net.UDPAddr, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log.Info("nat hole punch starting", "peer", peer.String())

	for i := 0; i < punchPacketCount; i++ {
		payload := []byte(fmt.Sprintf("punch_%d", i))
		data, err := protocol.Encode(protocol.MsgPing, payload)
		if err != nil {
			return err
		}
		if _, err := conn.WriteToUDP(data, peer); err != nil {
			return protocol.NewIoError("send punch packet", err)
		}
		time.Sleep(punchInterval)
	}

	log.Info("nat hole punch completed", "peer", peer.String())
	return nil
}

// WaitForConnection blocks until a Pong arrives on r's socket or
// punchWaitTimeout elapses. It is optional: most callers treat hole punching
// as advisory and skip this wait rather than fail the connection attempt on
// its timeout.
func WaitForConnection(r *PunchResult, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if r.Conn == nil {
		return protocol.NewHandshakeFailed("punch socket not initialized")
	}

	if err := r.Conn.SetReadDeadline(time.Now().Add(punchWaitTimeout)); err != nil {
		return protocol.NewIoError("set read deadline", err)
	}
	defer r.Conn.SetReadDeadline(time.Time{})

	buf := make([]byte, punchRecvBufferSize)
	n, addr, err := r.Conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return protocol.NewTimeout("waiting for peer pong")
		}
		return protocol.NewIoError("read punch response", err)
	}

	pkt, err := protocol.Decode(buf[:n])
	if err != nil {
		return err
	}
	if pkt.Type != protocol.MsgPong {
		return protocol.NewHandshakeFailed(fmt.Sprintf("unexpected punch response type %s", pkt.Type))
	}

	log.Info("nat hole punch confirmed by peer", "peer", addr.String())
	return nil
}
