/*
File Name:  packet.go

Wire packet structure for the disaster mesh overlay:

Offset  Size  Info
0       1     Protocol version, fixed 0x01
1       1     Message type
2       16    Message UUID (also the AES-CBC IV source, see meshcrypto)
18      1     Hop count
19      1     TTL
20      4     Timestamp, seconds since Unix epoch, big-endian
24      6     Sender device UUID
30      2     Payload length, big-endian
32      2     CRC-16-CCITT over header ∥ payload
34      ?     Payload (encrypted JSON)

All multi-byte integers are big-endian. The preceding 4-byte frame length
prefix (see frame.go) is not part of the packet itself.
*/
package protocol

import "github.com/google/uuid"

// MessageType identifies the purpose of a packet.
type MessageType uint8

const (
	SOS    MessageType = 0x01
	DIRECT MessageType = 0x02
	RELAY  MessageType = 0x03
	ACK    MessageType = 0x04
)

func (t MessageType) String() string {
	switch t {
	case SOS:
		return "SOS"
	case DIRECT:
		return "DIRECT"
	case RELAY:
		return "RELAY"
	case ACK:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

// ProtocolVersion is the only version this codec emits. Deserialize does not
// enforce it; that is left as a policy decision for the forwarding engine
// (see ErrVersionUnsupported).
const ProtocolVersion uint8 = 0x01

// HeaderSize is the fixed header length, not counting the CRC or payload.
const HeaderSize = 32

// CRCSize is the width of the trailing integrity field.
const CRCSize = 2

// DeviceIDSize is the width of a device identifier.
const DeviceIDSize = 6

// MaxPayloadSize is the largest payload_length the 16-bit field can carry.
const MaxPayloadSize = 65535

// DeviceID is a 6-byte device identifier, unique per mesh node.
type DeviceID [DeviceIDSize]byte

// Packet is the fundamental entity exchanged on the wire.
type Packet struct {
	ProtocolVersion uint8
	MessageType     MessageType
	MessageUUID     uuid.UUID
	HopCount        uint8
	TTL             uint8
	Timestamp       uint32
	SenderUUID      DeviceID
	Payload         []byte // ciphertext
}

// Relay returns a new packet representing this one forwarded one hop: same
// message UUID, sender and timestamp, hop_count+1, ttl-1, message_type
// rewritten to RELAY, and the given freshly-encrypted payload.
func (p Packet) Relay(payload []byte) Packet {
	return Packet{
		ProtocolVersion: p.ProtocolVersion,
		MessageType:     RELAY,
		MessageUUID:     p.MessageUUID,
		HopCount:        p.HopCount + 1,
		TTL:             p.TTL - 1,
		Timestamp:       p.Timestamp,
		SenderUUID:      p.SenderUUID,
		Payload:         payload,
	}
}
