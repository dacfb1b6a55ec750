// Package payload defines the decrypted JSON bodies carried inside mesh
// packets. Fields vary by message type but share type/sender/recipient/
// timestamp.
package payload

// BroadcastRecipient is the literal recipient value signaling that every
// node should deliver the message, as opposed to a specific device's hex ID.
const BroadcastRecipient = "broadcast"

// Location is a coordinate pair attached to SOS messages.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Envelope is the subset of fields every payload kind shares, enough to
// decide recipient routing without knowing the full shape in advance.
type Envelope struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Timestamp int64  `json:"timestamp"`
}

// IsForMe reports whether the envelope's recipient matches selfHex, the
// hex-encoded device UUID of the local node.
func (e Envelope) IsForMe(selfHex string) bool {
	return e.Recipient == selfHex
}

// IsBroadcast reports whether the envelope addresses every node.
func (e Envelope) IsBroadcast() bool {
	return e.Recipient == BroadcastRecipient
}

// SOS is the payload of an emergency broadcast.
type SOS struct {
	Envelope
	Content  string   `json:"content"`
	Location Location `json:"location"`
	Priority int      `json:"priority"`
	SOSType  string   `json:"sosType"`
}

// Direct is the payload of a point-to-point message.
type Direct struct {
	Envelope
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// Ack is the payload of an acknowledgement for a received Direct message.
type Ack struct {
	Envelope
	OriginalMessageID string `json:"originalMessageId"`
}

// Kind constants match the "type" field written into payload JSON, which is
// independent of the wire-level protocol.MessageType (a relay always
// rewrites the latter to RELAY but preserves the former).
const (
	KindSOS    = "SOS"
	KindDirect = "DIRECT"
	KindAck    = "ACK"
)
