// Package directory implements the rendezvous client: a small UDP
// request/response protocol against a directory server that resolves a
// remote session id to the address a peer can be reached at.
package directory

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

const (
	requestTimeout = 10 * time.Second
	recvBufferSize = 1024

	cmdRegister          byte = 0x01
	cmdRequestConnection byte = 0x02
)

// Client talks to a directory server on behalf of one local session id.
type Client struct {
	serverAddr string
	localID    string
	conn       *net.UDPConn
	log        *slog.Logger
}

// New constructs a Client. Call Connect before registering or requesting.
func New(serverAddr, localID string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{serverAddr: serverAddr, localID: localID, log: log}
}

// Connect resolves the directory server address, binds an ephemeral local
// UDP socket and associates it with the remote address so subsequent
// Read/Write calls don't need to carry an address.
func (c *Client) Connect() error {
	c.log.Info("directory connect starting", "server", c.serverAddr, "local_id", c.localID)

	addr, err := net.ResolveUDPAddr("udp", c.serverAddr)
	if err != nil {
		return protocol.NewHandshakeFailed(fmt.Sprintf("invalid directory address %q: %v", c.serverAddr, err))
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		c.log.Error("directory connect failed", "server", c.serverAddr, "error", err)
		ioErr := protocol.NewIoError(fmt.Sprintf("dial directory %s", c.serverAddr), err)
		return protocol.NewHandshakeFailed(fmt.Sprintf("dial directory %s (%s): %v", c.serverAddr, ioErr.IoKind, err))
	}

	c.conn = conn
	c.log.Info("directory connected", "local_addr", conn.LocalAddr().String())
	return nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// RegisterID announces the local session id to the directory server.
func (c *Client) RegisterID() error {
	if c.conn == nil {
		return protocol.NewHandshakeFailed("not connected to directory server")
	}

	payload := make([]byte, 0, 3+len(c.localID))
	payload = append(payload, cmdRegister)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(c.localID)))
	payload = append(payload, c.localID...)

	data, err := protocol.Encode(protocol.MsgHandshake, payload)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return protocol.NewIoError("register id", err)
	}

	c.log.Info("registered session id", "local_id", c.localID)
	return nil
}

// RequestConnection asks the directory server to resolve remoteID and
// returns the address a peer connection should target. The directory's own
// socket address is returned as the rendezvous point; the caller performs
// NAT traversal from there.
func (c *Client) RequestConnection(remoteID string) (*net.UDPAddr, error) {
	if c.conn == nil {
		return nil, protocol.NewHandshakeFailed("not connected to directory server")
	}

	c.log.Info("requesting peer lookup", "remote_id", remoteID)

	payload := make([]byte, 0, 3+len(remoteID))
	payload = append(payload, cmdRequestConnection)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(remoteID)))
	payload = append(payload, remoteID...)

	data, err := protocol.Encode(protocol.MsgConnectionRequest, payload)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return nil, protocol.NewIoError("send connection request", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return nil, protocol.NewIoError("set read deadline", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, recvBufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, protocol.NewTimeout("directory response")
		}
		return nil, protocol.NewIoError("read connection response", err)
	}

	resp, err := protocol.Decode(buf[:n])
	if err != nil {
		return nil, err
	}
	if resp.Type != protocol.MsgConnectionResponse {
		return nil, protocol.NewHandshakeFailed(fmt.Sprintf("unexpected response type %s", resp.Type))
	}
	if len(resp.Payload) < 1 {
		return nil, protocol.NewHandshakeFailed("empty connection response")
	}
	if resp.Payload[0] != 0 {
		return nil, protocol.NewPeerNotFound(fmt.Sprintf("directory reports no such peer: %s", remoteID))
	}

	peerAddr, ok := c.conn.RemoteAddr().(*net.UDPAddr)
	if !ok {
		return nil, protocol.NewHandshakeFailed("directory socket has no remote address")
	}

	c.log.Info("peer lookup succeeded", "remote_id", remoteID, "peer_addr", peerAddr.String())
	return peerAddr, nil
}

// SendHeartbeat fires a fire-and-forget KeepAlive to the directory server.
func (c *Client) SendHeartbeat() error {
	if c.conn == nil {
		return nil
	}
	data, err := protocol.Encode(protocol.MsgKeepAlive, nil)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return protocol.NewIoError("send heartbeat", err)
	}
	return nil
}
