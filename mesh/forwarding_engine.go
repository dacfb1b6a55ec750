/*
File Name:  Forwarding Engine.go

Deliver is the single entry point every received frame passes through,
whether it arrived over a real transport.Conn or was injected in-process by
transport.SimNetwork (Node implements transport.FrameSink via this method).
It implements the fixed processing order the protocol requires: parse,
duplicate check, timestamp sanity, decrypt, mark-as-seen, classify, deliver,
ack, relay.

The duplicate check is split into two steps deliberately. The cheap
Contains peek right after parsing drops already-seen packets before paying
for a decrypt. The real correctness guarantee is the atomic
ContainsThenInsert performed right before delivery/relay: two copies of the
same packet arriving on different peer connections at the same instant both
pass the first peek, but only one of them wins the atomic check-and-insert,
so exactly one delivery and one relay happen no matter how many times a
packet loops back through the mesh.
*/

package mesh

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/disastermesh/meshcore/dedupe"
	"github.com/disastermesh/meshcore/meshcrypto"
	"github.com/disastermesh/meshcore/payload"
	"github.com/disastermesh/meshcore/protocol"
)

// maxClockSkew bounds how far a packet's declared timestamp may drift from
// this node's clock before it is treated as stale or replayed and dropped.
const maxClockSkew = 300 * time.Second

// Deliver parses, validates, and processes a single raw frame received from
// fromPeer. It never returns an error: malformed or unwelcome frames are
// logged through Filters.LogError and silently dropped, matching a field
// device's need to keep running no matter what a misbehaving peer sends.
func (n *Node) Deliver(fromPeer string, raw []byte) {
	pkt, err := protocol.Deserialize(raw)
	if err != nil {
		n.logError("Deliver", "parse frame from %s: %v", fromPeer, err)
		return
	}

	fingerprint := dedupe.Fingerprint(pkt.MessageUUID[:], pkt.SenderUUID[:])
	if n.cache.Contains(fingerprint) {
		n.logInfo("Deliver", "dropped duplicate %s from %s", pkt.MessageUUID, fromPeer)
		n.Filters.OnDuplicateDropped(pkt)
		return
	}

	age := time.Now().Unix() - int64(pkt.Timestamp)
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > maxClockSkew {
		n.logError("Deliver", "packet %s from %s outside timestamp window", pkt.MessageUUID, fromPeer)
		return
	}

	iv := meshcrypto.IV(pkt.MessageUUID)
	plaintext, err := meshcrypto.DecryptRaw(pkt.Payload, n.networkKey, iv)
	if err != nil {
		n.logError("Deliver", "decrypt %s: %v", pkt.MessageUUID, err)
		return
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(plaintext, &decoded); err != nil {
		n.logError("Deliver", "decode payload %s: %v", pkt.MessageUUID, err)
		return
	}

	// Mark-as-seen: the atomic gate that makes re-entrant delivery and
	// relay impossible, even under concurrent arrival from multiple peers.
	if n.cache.ContainsThenInsert(fingerprint) {
		n.logInfo("Deliver", "dropped duplicate %s from %s (lost the race)", pkt.MessageUUID, fromPeer)
		n.Filters.OnDuplicateDropped(pkt)
		return
	}

	recipient, _ := decoded["recipient"].(string)
	isForMe := recipient == n.DeviceIDHex()
	isBroadcast := recipient == payload.BroadcastRecipient

	if isForMe || isBroadcast {
		n.Filters.OnMessageReceived(pkt, decoded)
	}

	// The payload's own "type" field, not pkt.MessageType, identifies the
	// original kind: relaying irreversibly rewrites message_type to RELAY,
	// but the decrypted JSON's type survives every hop unchanged.
	kind, _ := decoded["type"].(string)
	isSOS := kind == payload.KindSOS
	isDirect := kind == payload.KindDirect

	if isDirect && isForMe {
		n.sendAck(decoded, pkt.MessageUUID)
	}

	shouldRelay := pkt.TTL > 0 && (isSOS || isBroadcast || (isDirect && !isForMe))
	if shouldRelay {
		n.relay(pkt, decoded)
	}
}

// relay re-encrypts decoded under a fresh ciphertext (the IV is fixed by the
// unchanged message UUID, so only the plaintext's field order actually
// differs) and broadcasts the hop_count+1/ttl-1 packet Relay produces.
func (n *Node) relay(pkt protocol.Packet, decoded map[string]interface{}) {
	iv := meshcrypto.IV(pkt.MessageUUID)
	ciphertext, err := meshcrypto.Encrypt(decoded, n.networkKey, iv)
	if err != nil {
		n.logError("relay", "re-encrypt %s: %v", pkt.MessageUUID, err)
		return
	}

	relayed := pkt.Relay(ciphertext)
	rawRelayed, err := protocol.Serialize(relayed)
	if err != nil {
		n.logError("relay", "serialize %s: %v", pkt.MessageUUID, err)
		return
	}

	n.broadcaster.Broadcast(rawRelayed)
	n.logInfo("relay", "relayed %s (hop_count now %d, ttl now %d)", pkt.MessageUUID, relayed.HopCount, relayed.TTL)
	n.Filters.OnRelay(pkt, relayed)
}

// sendAck acknowledges a DIRECT message addressed to this node. The ACK is a
// fresh single-hop broadcast back over every current peer connection; it is
// never queued for store-and-forward and, since its recipient is never
// "broadcast", it is never itself relayed (see the shouldRelay branches in
// Deliver).
func (n *Node) sendAck(original map[string]interface{}, originalID uuid.UUID) {
	sender, _ := original["sender"].(string)

	ack := payload.Ack{
		Envelope: payload.Envelope{
			Type:      payload.KindAck,
			Sender:    n.DeviceIDHex(),
			Recipient: sender,
			Timestamp: time.Now().Unix(),
		},
		OriginalMessageID: originalID.String(),
	}

	pkt, err := n.buildPacket(protocol.ACK, ack, 0)
	if err != nil {
		n.logError("sendAck", "build ack for %s: %v", originalID, err)
		return
	}

	raw, err := protocol.Serialize(pkt)
	if err != nil {
		n.logError("sendAck", "serialize ack for %s: %v", originalID, err)
		return
	}

	n.broadcaster.Broadcast(raw)
}
