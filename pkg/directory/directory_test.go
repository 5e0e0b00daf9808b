package directory

import (
	"net"
	"testing"
	"time"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

// fakeServer is a minimal UDP directory server for exercising Client against
// real sockets instead of mocks.
type fakeServer struct {
	conn *net.UDPConn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	return &fakeServer{conn: conn}
}

func (s *fakeServer) addr() string { return s.conn.LocalAddr().String() }
func (s *fakeServer) close()       { s.conn.Close() }

func (s *fakeServer) respondOnce(t *testing.T, status byte) {
	t.Helper()
	go func() {
		buf := make([]byte, 1024)
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if _, err := protocol.Decode(buf[:n]); err != nil {
			return
		}
		resp, err := protocol.Encode(protocol.MsgConnectionResponse, []byte{status})
		if err != nil {
			return
		}
		s.conn.WriteToUDP(resp, remote)
	}()
}

func TestRequestConnectionSuccess(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()
	srv.respondOnce(t, 0)

	c := New(srv.addr(), "alice", nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	addr, err := c.RequestConnection("bob")
	if err != nil {
		t.Fatalf("RequestConnection() error = %v", err)
	}
	if addr == nil {
		t.Fatal("RequestConnection() returned nil address")
	}
}

func TestRequestConnectionPeerNotFound(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()
	srv.respondOnce(t, 1)

	c := New(srv.addr(), "alice", nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	_, err := c.RequestConnection("ghost")
	if !protocol.IsKind(err, protocol.PeerNotFound) {
		t.Fatalf("RequestConnection() error = %v, want PeerNotFound", err)
	}
}

func TestRequestConnectionTimeout(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()
	// No response scheduled; the client must time out rather than hang.

	c := New(srv.addr(), "alice", nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	start := time.Now()
	_, err := c.RequestConnection("bob")
	if !protocol.IsKind(err, protocol.Timeout) {
		t.Fatalf("RequestConnection() error = %v, want Timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 11*time.Second {
		t.Fatalf("RequestConnection() took %v, want <= ~10s", elapsed)
	}
}

func TestRequestConnectionWithoutConnect(t *testing.T) {
	c := New("127.0.0.1:0", "alice", nil)
	if _, err := c.RequestConnection("bob"); err == nil {
		t.Fatal("RequestConnection() without Connect() should error")
	}
}

func TestSendHeartbeatNoopWithoutConnect(t *testing.T) {
	c := New("127.0.0.1:0", "alice", nil)
	if err := c.SendHeartbeat(); err != nil {
		t.Fatalf("SendHeartbeat() without Connect() error = %v, want nil", err)
	}
}
