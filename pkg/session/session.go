// Package session implements the live half of a connection: once a
// handshake succeeds, a Session owns the UDP endpoint and multiplexes one
// inbound decoded-video stream against one outbound input-event stream.
package session

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/shadowmesh/harmonydesk/pkg/cipher"
	"github.com/shadowmesh/harmonydesk/pkg/decoder"
	"github.com/shadowmesh/harmonydesk/pkg/frame"
	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

// FrameQueueCapacity bounds how many decoded frames a session buffers ahead
// of a consumer; once full, the oldest buffered frame is evicted to make room
// for the new one rather than blocking the receive loop.
const FrameQueueCapacity = 100

const recvBufferSize = 65536

// State is the lifecycle of a Session's underlying socket.
type State int32

const (
	StateActive State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "active"
}

// Session owns one UDP endpoint shared by an inbound video stream and an
// outbound input-event stream to a single peer.
type Session struct {
	conn   *net.UDPConn
	peer   *net.UDPAddr
	cipher *cipher.SessionCipher
	dec    *decoder.Decoder
	log    *slog.Logger

	frames         *frame.RingBuffer
	maxPacketBytes int

	screenMu         sync.Mutex
	remoteWidth      uint32
	remoteHeight     uint32
	haveRemoteScreen bool

	state   atomic.Int32
	closeWg sync.WaitGroup
}

// New builds a Session around an already-bound, unconnected UDP socket (it
// addresses every send to peer explicitly) and starts its
// receive loop in the background. frameBufferCapacity bounds the inbound
// frame queue; a non-positive value falls back to FrameQueueCapacity.
// maxPacketBytes bounds how large an inbound datagram the session will
// accept before decoding it; a non-positive value falls back to
// protocol.MaxPayloadSize plus the header, i.e. no tighter than the wire
// format's own sanity limit.
func New(conn *net.UDPConn, peer *net.UDPAddr, sessionCipher *cipher.SessionCipher, frameBufferCapacity, maxPacketBytes int, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if frameBufferCapacity <= 0 {
		frameBufferCapacity = FrameQueueCapacity
	}
	if maxPacketBytes <= 0 {
		maxPacketBytes = protocol.MaxPayloadSize + protocol.HeaderSize
	}
	dec := decoder.New(decoder.DefaultConfig())
	dec.Initialize()

	s := &Session{
		conn:           conn,
		peer:           peer,
		cipher:         sessionCipher,
		dec:            dec,
		log:            log,
		frames:         frame.NewRingBuffer(frameBufferCapacity),
		maxPacketBytes: maxPacketBytes,
	}

	s.closeWg.Add(1)
	go s.receiveLoop()
	return s
}

// SendKeyEvent transmits a keyboard event to the peer.
func (s *Session) SendKeyEvent(key uint32, pressed bool) error {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload[0:4], key)
	if pressed {
		payload[4] = 1
	}
	return s.send(protocol.MsgKeyEvent, payload)
}

// SendMouseMove transmits an absolute mouse position to the peer. Mouse
// move and mouse click share a message type; the receiver distinguishes
// them by payload length (8 bytes for a move, 5 for a click).
func (s *Session) SendMouseMove(x, y int32) error {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], uint32(x))
	binary.BigEndian.PutUint32(payload[4:8], uint32(y))
	return s.send(protocol.MsgMouseEvent, payload)
}

// SendMouseClick transmits a mouse button event to the peer.
func (s *Session) SendMouseClick(button uint32, pressed bool) error {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload[0:4], button)
	if pressed {
		payload[4] = 1
	}
	return s.send(protocol.MsgMouseEvent, payload)
}

// send emits one packet to the peer. A closed session swallows the event
// and reports success: input events race teardown in normal use, and a
// caller holding a stale session has nothing useful to do with the error.
func (s *Session) send(msgType protocol.MsgType, payload []byte) error {
	if s.state.Load() == int32(StateClosed) {
		return nil
	}

	sealed, err := s.cipher.Seal(payload)
	if err != nil {
		return err
	}
	data, err := protocol.Encode(msgType, sealed)
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteToUDP(data, s.peer); err != nil {
		return protocol.NewIoError("write input event", err)
	}
	return nil
}

// LatestFrame returns the most recently decoded video frame, or nil if none
// has arrived yet.
func (s *Session) LatestFrame() *frame.Frame {
	return s.frames.GetLatest()
}

// ClearFrames empties the inbound frame buffer without touching the
// underlying socket. The registry calls this as the first step of
// disconnecting a session: the video pipeline stops before the session
// itself is torn down.
func (s *Session) ClearFrames() {
	s.frames.Clear()
}

// RemoteScreenSize returns the peer's reported screen size, defaulting to
// 1920x1080 until a VideoConfig or VideoFrame carrying real dimensions has
// been observed.
func (s *Session) RemoteScreenSize() (uint32, uint32) {
	s.screenMu.Lock()
	defer s.screenMu.Unlock()
	if !s.haveRemoteScreen {
		return 1920, 1080
	}
	return s.remoteWidth, s.remoteHeight
}

// Close tears down the session's receive loop and underlying socket.
func (s *Session) Close() error {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateClosed)) {
		return nil
	}
	err := s.conn.Close()
	s.closeWg.Wait()
	return err
}

// State reports whether the session is still accepting traffic.
func (s *Session) State() State {
	return State(s.state.Load())
}

// receiveLoop reads packets off the socket until it is closed, decoding
// video frames and buffering them for a consumer to pull.
func (s *Session) receiveLoop() {
	defer s.closeWg.Done()

	buf := make([]byte, recvBufferSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.state.Load() == int32(StateClosed) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("session receive error", "error", err)
			continue
		}

		if n > s.maxPacketBytes {
			s.log.Warn("session dropped oversize packet", "bytes", n, "max", s.maxPacketBytes)
			continue
		}

		pkt, err := protocol.Decode(buf[:n])
		if err != nil {
			s.log.Warn("session received invalid packet", "error", err)
			continue
		}

		if err := s.handlePacket(pkt); err != nil {
			s.log.Warn("session packet handling error", "type", pkt.Type.String(), "error", err)
		}
	}
}

func (s *Session) handlePacket(pkt protocol.Packet) error {
	switch pkt.Type {
	case protocol.MsgVideoFrame:
		return s.handleVideoFrame(pkt.Payload)
	case protocol.MsgVideoConfig:
		return s.handleVideoConfig(pkt.Payload)
	case protocol.MsgDisconnect:
		s.log.Info("peer requested disconnect")
		go s.Close()
		return nil
	case protocol.MsgPing:
		data, err := protocol.Encode(protocol.MsgPong, nil)
		if err != nil {
			return err
		}
		_, err = s.conn.WriteToUDP(data, s.peer)
		return err
	default:
		return nil
	}
}

// handleVideoConfig parses a VideoConfig payload: u32 width, u32 height.
// The peer announces its stream dimensions ahead of the first frame so
// RemoteScreenSize and the decoder agree with the stream before any frame
// has been decoded.
func (s *Session) handleVideoConfig(payload []byte) error {
	opened, err := s.cipher.Open(payload)
	if err != nil {
		return err
	}
	if len(opened) < 8 {
		return protocol.NewHandshakeFailed("truncated video config")
	}

	width := binary.BigEndian.Uint32(opened[0:4])
	height := binary.BigEndian.Uint32(opened[4:8])
	s.updateRemoteScreen(width, height)
	return nil
}

// updateRemoteScreen records the peer's announced dimensions and
// reconfigures the decoder when they change.
func (s *Session) updateRemoteScreen(width, height uint32) {
	s.screenMu.Lock()
	changed := !s.haveRemoteScreen || s.remoteWidth != width || s.remoteHeight != height
	s.remoteWidth, s.remoteHeight = width, height
	s.haveRemoteScreen = true
	s.screenMu.Unlock()

	if changed {
		s.dec.Reconfigure(width, height)
	}
}

// handleVideoFrame parses a VideoFrame payload: u32 width, u32 height,
// u64 timestamp, followed by compressed frame bytes fed to the decoder.
func (s *Session) handleVideoFrame(payload []byte) error {
	opened, err := s.cipher.Open(payload)
	if err != nil {
		return err
	}
	if len(opened) < 16 {
		return protocol.NewHandshakeFailed("truncated video frame header")
	}

	width := binary.BigEndian.Uint32(opened[0:4])
	height := binary.BigEndian.Uint32(opened[4:8])
	wireTimestamp := binary.BigEndian.Uint64(opened[8:16])
	compressed := opened[16:]

	s.updateRemoteScreen(width, height)

	decoded, err := s.dec.DecodeFrame(compressed)
	if err != nil {
		return err
	}
	if decoded != nil {
		decoded.Timestamp = wireTimestamp
		s.frames.Push(decoded)
	}
	return nil
}
