// Package handshake implements the authenticated handshake performed once a
// direct UDP path to a peer exists: both sides prove knowledge of a shared
// secret by exchanging a digest derived from it.
package handshake

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	recvBufferSize   = 1024
	digestSuffix     = "RustDesk"
)

// Digest derives the 32-byte handshake proof for secret: SHA-256 over the
// secret bytes followed by a fixed suffix.
func Digest(secret string) [32]byte {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write([]byte(digestSuffix))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Perform runs the authenticated handshake over conn with peer, proving
// knowledge of secret. It returns the digest exchanged, which a session's
// cipher may fold into a derived session key.
func Perform(conn *net.UDPConn, peer *net.UDPAddr, secret string, log *slog.Logger) ([32]byte, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("handshake starting", "peer", peer.String())

	digest := Digest(secret)
	payload := make([]byte, 0, 2+len(digest))
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(digest)))
	payload = append(payload, digest[:]...)

	data, err := protocol.Encode(protocol.MsgHandshake, payload)
	if err != nil {
		return [32]byte{}, err
	}
	if _, err := conn.WriteToUDP(data, peer); err != nil {
		return [32]byte{}, protocol.NewIoError("send handshake", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return [32]byte{}, protocol.NewIoError("set read deadline", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, recvBufferSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return [32]byte{}, protocol.NewTimeout("handshake response")
		}
		return [32]byte{}, protocol.NewIoError("read handshake response", err)
	}

	resp, err := protocol.Decode(buf[:n])
	if err != nil {
		return [32]byte{}, err
	}
	if resp.Type != protocol.MsgHandshakeResponse {
		return [32]byte{}, protocol.NewHandshakeFailed(fmt.Sprintf("unexpected response type %s", resp.Type))
	}
	if len(resp.Payload) < 1 || resp.Payload[0] != 0 {
		return [32]byte{}, protocol.NewHandshakeFailed("Authentication failed")
	}

	log.Info("handshake succeeded", "peer", peer.String())
	return digest, nil
}

// Respond answers an incoming Handshake packet, checking it against the
// locally configured secret and writing the appropriate HandshakeResponse.
// It is used by test doubles and any component acting as the answering side
// of a handshake (e.g. integration tests that simulate a peer).
func Respond(conn *net.UDPConn, from *net.UDPAddr, received protocol.Packet, secret string) error {
	want := Digest(secret)

	ok := len(received.Payload) >= 2+len(want)
	if ok {
		declared := binary.BigEndian.Uint16(received.Payload[:2])
		ok = int(declared) == len(want) && string(received.Payload[2:2+len(want)]) == string(want[:])
	}

	status := byte(1)
	if ok {
		status = 0
	}
	data, err := protocol.Encode(protocol.MsgHandshakeResponse, []byte{status})
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(data, from)
	return err
}
