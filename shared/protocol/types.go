// Package protocol defines the wire format shared between the directory
// client, the NAT traversal step, the handshake, and a live session.
package protocol

import "fmt"

// MsgType identifies the payload carried by a Packet. The set is closed:
// Decode rejects any byte not in this list.
type MsgType uint16

const (
	MsgHandshake         MsgType = 0x01
	MsgHandshakeResponse MsgType = 0x02
	MsgConnectionRequest MsgType = 0x03
	MsgConnectionResponse MsgType = 0x04
	MsgDisconnect        MsgType = 0x05

	MsgVideoFrame  MsgType = 0x10
	MsgVideoConfig MsgType = 0x11
	MsgKeepAlive   MsgType = 0x12

	MsgKeyEvent       MsgType = 0x20
	MsgMouseEvent     MsgType = 0x21
	MsgClipboardEvent MsgType = 0x22

	MsgPing  MsgType = 0xF0
	MsgPong  MsgType = 0xF1
	MsgError MsgType = 0xFF
)

// HeaderSize is the fixed size, in bytes, of a packet header: a 2-byte
// message type followed by a 4-byte payload length, both big-endian.
const HeaderSize = 6

// MaxPayloadSize bounds the payload Encode/Decode will accept. UDP datagrams
// carrying this protocol never approach this size in practice; it exists to
// reject corrupt length fields before they drive an allocation.
const MaxPayloadSize = 1 << 20 // 1 MiB

// DefaultDirectoryAddr is the rendezvous endpoint used when none is
// configured.
const DefaultDirectoryAddr = "router.rustdesk.com:21116"

// valid reports whether t is one of the closed set of message types.
func (t MsgType) valid() bool {
	switch t {
	case MsgHandshake, MsgHandshakeResponse, MsgConnectionRequest, MsgConnectionResponse,
		MsgDisconnect, MsgVideoFrame, MsgVideoConfig, MsgKeepAlive,
		MsgKeyEvent, MsgMouseEvent, MsgClipboardEvent,
		MsgPing, MsgPong, MsgError:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for t, or "UNKNOWN" if t is not a
// recognized message type.
func (t MsgType) String() string {
	switch t {
	case MsgHandshake:
		return "HANDSHAKE"
	case MsgHandshakeResponse:
		return "HANDSHAKE_RESPONSE"
	case MsgConnectionRequest:
		return "CONNECTION_REQUEST"
	case MsgConnectionResponse:
		return "CONNECTION_RESPONSE"
	case MsgDisconnect:
		return "DISCONNECT"
	case MsgVideoFrame:
		return "VIDEO_FRAME"
	case MsgVideoConfig:
		return "VIDEO_CONFIG"
	case MsgKeepAlive:
		return "KEEP_ALIVE"
	case MsgKeyEvent:
		return "KEY_EVENT"
	case MsgMouseEvent:
		return "MOUSE_EVENT"
	case MsgClipboardEvent:
		return "CLIPBOARD_EVENT"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Packet is a single framed message: a type and its payload.
type Packet struct {
	Type    MsgType
	Payload []byte
}

// String renders a packet for logging.
func (p Packet) String() string {
	return fmt.Sprintf("Packet{Type: %s (0x%02x), Len: %d}", p.Type, uint16(p.Type), len(p.Payload))
}
