/*
File Name:  Send.go

Origination API: SendSOS and SendDirect build a fresh packet, encrypt its
payload, and either broadcast immediately or hand it to the
store-and-forward queue when no peer is currently reachable.
*/

package mesh

import (
	"time"

	"github.com/google/uuid"

	"github.com/disastermesh/meshcore/dedupe"
	"github.com/disastermesh/meshcore/meshcrypto"
	"github.com/disastermesh/meshcore/payload"
	"github.com/disastermesh/meshcore/protocol"
)

// defaultTTL bounds how many times a packet may be relayed before it is
// dropped, preventing unbounded circulation in a network with cycles.
const defaultTTL = 5

// sosPriority and directPriority are fixed per message kind; there is no
// caller-adjustable priority knob.
const (
	sosPriority    = 5
	directPriority = 3
)

// buildPacket encrypts body under the network key with a fresh message UUID
// and assembles the packet envelope around it.
func (n *Node) buildPacket(kind protocol.MessageType, body interface{}, ttl uint8) (protocol.Packet, error) {
	msgUUID := uuid.New()
	iv := meshcrypto.IV(msgUUID)

	ciphertext, err := meshcrypto.Encrypt(body, n.networkKey, iv)
	if err != nil {
		return protocol.Packet{}, err
	}

	return protocol.Packet{
		ProtocolVersion: protocol.ProtocolVersion,
		MessageType:     kind,
		MessageUUID:     msgUUID,
		HopCount:        0,
		TTL:             ttl,
		Timestamp:       uint32(time.Now().Unix()),
		SenderUUID:      n.deviceID,
		Payload:         ciphertext,
	}, nil
}

// send broadcasts pkt immediately if any peer is reachable, otherwise queues
// it for store-and-forward retry. The originating node marks its own
// fingerprint as seen before sending, so a copy relayed back around the mesh
// is dropped at Deliver rather than being reprocessed as new.
func (n *Node) send(pkt protocol.Packet) error {
	fingerprint := dedupe.Fingerprint(pkt.MessageUUID[:], pkt.SenderUUID[:])
	n.cache.Insert(fingerprint)

	if n.broadcaster.PeerCount() == 0 {
		n.queue.Put(pkt)
		n.logInfo("send", "queued %s for store-and-forward: no reachable peer", pkt.MessageUUID)
		return nil
	}

	raw, err := protocol.Serialize(pkt)
	if err != nil {
		return err
	}
	n.broadcaster.Broadcast(raw)
	n.logInfo("send", "broadcast %s", pkt.MessageUUID)
	return nil
}

// SendSOS originates a broadcast distress message. It is delivered to every
// reachable device, relayed by intermediate nodes regardless of content, and
// queued for retry if no peer is currently connected.
func (n *Node) SendSOS(content string, lat, lng float64, sosType string) (uuid.UUID, error) {
	body := payload.SOS{
		Envelope: payload.Envelope{
			Type:      payload.KindSOS,
			Sender:    n.DeviceIDHex(),
			Recipient: payload.BroadcastRecipient,
			Timestamp: time.Now().Unix(),
		},
		Content:  content,
		Location: payload.Location{Lat: lat, Lng: lng},
		Priority: sosPriority,
		SOSType:  sosType,
	}

	pkt, err := n.buildPacket(protocol.SOS, body, defaultTTL)
	if err != nil {
		return uuid.Nil, err
	}
	if err := n.send(pkt); err != nil {
		return uuid.Nil, err
	}
	return pkt.MessageUUID, nil
}

// SendDirect originates a message addressed to a single recipient device,
// identified by its hex device ID. It is relayed by intermediate nodes until
// delivered or its TTL is exhausted.
func (n *Node) SendDirect(recipientHex, content string) (uuid.UUID, error) {
	body := payload.Direct{
		Envelope: payload.Envelope{
			Type:      payload.KindDirect,
			Sender:    n.DeviceIDHex(),
			Recipient: recipientHex,
			Timestamp: time.Now().Unix(),
		},
		Content:  content,
		Priority: directPriority,
	}

	pkt, err := n.buildPacket(protocol.DIRECT, body, defaultTTL)
	if err != nil {
		return uuid.Nil, err
	}
	if err := n.send(pkt); err != nil {
		return uuid.Nil, err
	}
	return pkt.MessageUUID, nil
}
