package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode frames a message type and payload into a wire packet. It fails only
// when the payload exceeds MaxPayloadSize.
func Encode(t MsgType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("protocol: payload of %d bytes exceeds max %d", len(payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(t))
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Decode parses a wire packet. It returns InvalidPacket if data is shorter
// than the header, if the declared length exceeds the remaining bytes, or if
// the type code is not one of the closed set of message types.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, &Error{Kind: InvalidPacket, Reason: fmt.Sprintf("short header: got %d bytes, need %d", len(data), HeaderSize)}
	}

	t := MsgType(binary.BigEndian.Uint16(data[0:2]))
	if !t.valid() {
		return Packet{}, &Error{Kind: InvalidPacket, Reason: fmt.Sprintf("unknown message type 0x%04x", uint16(t))}
	}

	length := binary.BigEndian.Uint32(data[2:6])
	if length > MaxPayloadSize {
		return Packet{}, &Error{Kind: InvalidPacket, Reason: fmt.Sprintf("declared length %d exceeds max %d", length, MaxPayloadSize)}
	}

	if uint32(len(data)-HeaderSize) < length {
		return Packet{}, &Error{Kind: InvalidPacket, Reason: fmt.Sprintf("truncated payload: declared %d, got %d", length, len(data)-HeaderSize)}
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+int(length)])

	return Packet{Type: t, Payload: payload}, nil
}
