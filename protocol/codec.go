package protocol

import "encoding/binary"

// Serialize emits the fixed 32-byte header, the 2-byte CRC of
// header∥payload, then the payload itself. It returns BadField if the
// payload exceeds MaxPayloadSize. The sender UUID and timestamp are not
// checked: DeviceID is a fixed-width array and Timestamp is a uint32, so
// neither can be out of range.
func Serialize(p Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, newError(BadField, "payload exceeds 65535 bytes")
	}

	buf := make([]byte, HeaderSize+CRCSize+len(p.Payload))

	buf[0] = p.ProtocolVersion
	buf[1] = uint8(p.MessageType)
	copy(buf[2:18], p.MessageUUID[:])
	buf[18] = p.HopCount
	buf[19] = p.TTL
	binary.BigEndian.PutUint32(buf[20:24], p.Timestamp)
	copy(buf[24:30], p.SenderUUID[:])
	binary.BigEndian.PutUint16(buf[30:32], uint16(len(p.Payload)))

	copy(buf[HeaderSize+CRCSize:], p.Payload)

	crc := crc16CCITT(headerAndPayload(buf))
	binary.BigEndian.PutUint16(buf[HeaderSize:HeaderSize+CRCSize], crc)

	return buf, nil
}

// headerAndPayload returns header∥payload from a buffer laid out as
// header∥crc∥payload, i.e. everything except the CRC field itself.
func headerAndPayload(buf []byte) []byte {
	out := make([]byte, 0, len(buf)-CRCSize)
	out = append(out, buf[:HeaderSize]...)
	out = append(out, buf[HeaderSize+CRCSize:]...)
	return out
}

// Deserialize parses raw into a Packet, recomputing and verifying the CRC.
// It requires at least HeaderSize+CRCSize bytes and does not verify
// ProtocolVersion; that enforcement decision belongs to the forwarding
// engine (see ErrVersionUnsupported).
func Deserialize(raw []byte) (Packet, error) {
	if len(raw) < HeaderSize+CRCSize {
		return Packet{}, newError(Truncated, "fewer than minimum header+crc bytes")
	}

	var p Packet
	p.ProtocolVersion = raw[0]
	p.MessageType = MessageType(raw[1])
	copy(p.MessageUUID[:], raw[2:18])
	p.HopCount = raw[18]
	p.TTL = raw[19]
	p.Timestamp = binary.BigEndian.Uint32(raw[20:24])
	copy(p.SenderUUID[:], raw[24:30])
	payloadLength := binary.BigEndian.Uint16(raw[30:32])

	if len(raw) < HeaderSize+CRCSize+int(payloadLength) {
		return Packet{}, newError(Truncated, "fewer bytes than declared payload_length")
	}

	receivedCRC := binary.BigEndian.Uint16(raw[HeaderSize : HeaderSize+CRCSize])
	p.Payload = make([]byte, payloadLength)
	copy(p.Payload, raw[HeaderSize+CRCSize:HeaderSize+CRCSize+int(payloadLength)])

	check := make([]byte, 0, HeaderSize+int(payloadLength))
	check = append(check, raw[:HeaderSize]...)
	check = append(check, p.Payload...)

	if crc16CCITT(check) != receivedCRC {
		return Packet{}, newError(CrcMismatch, "")
	}

	return p, nil
}
