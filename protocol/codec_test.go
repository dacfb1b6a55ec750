package protocol

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func testPacket() Packet {
	var sender DeviceID
	copy(sender[:], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})

	return Packet{
		ProtocolVersion: ProtocolVersion,
		MessageType:     SOS,
		MessageUUID:     uuid.New(),
		HopCount:        0,
		TTL:             5,
		Timestamp:       1700000000,
		SenderUUID:      sender,
		Payload:         []byte("hello mesh"),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	p := testPacket()

	raw, err := Serialize(p)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.ProtocolVersion != p.ProtocolVersion || got.MessageType != p.MessageType ||
		got.MessageUUID != p.MessageUUID || got.HopCount != p.HopCount || got.TTL != p.TTL ||
		got.Timestamp != p.Timestamp || got.SenderUUID != p.SenderUUID ||
		!bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestCodecEmptyPayload(t *testing.T) {
	p := testPacket()
	p.Payload = nil

	raw, err := Serialize(p)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(raw) != HeaderSize+CRCSize {
		t.Fatalf("expected exactly header+crc bytes, got %d", len(raw))
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got.Payload))
	}
}

func TestCodecPayloadTooLarge(t *testing.T) {
	p := testPacket()
	p.Payload = make([]byte, MaxPayloadSize+1)

	if _, err := Serialize(p); err == nil {
		t.Fatal("expected BadField error for oversized payload")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadField {
		t.Fatalf("expected BadField, got %v", err)
	}
}

func TestCodecTruncated(t *testing.T) {
	p := testPacket()
	raw, _ := Serialize(p)

	if _, err := Deserialize(raw[:HeaderSize]); err == nil {
		t.Fatal("expected Truncated error")
	} else if e, ok := err.(*Error); !ok || e.Kind != Truncated {
		t.Fatalf("expected Truncated, got %v", err)
	}

	if _, err := Deserialize(raw[:len(raw)-1]); err == nil {
		t.Fatal("expected Truncated error for short payload")
	} else if e, ok := err.(*Error); !ok || e.Kind != Truncated {
		t.Fatalf("expected Truncated, got %v", err)
	}
}

func TestCodecCrcDetectsBitFlips(t *testing.T) {
	p := testPacket()
	raw, _ := Serialize(p)

	// bitPos indexes into the conceptual "header∥payload" byte stream the
	// CRC actually covers, which in the wire layout is split by the CRC
	// field itself (header, then CRC, then payload).
	for bitPos := 0; bitPos < (HeaderSize+len(p.Payload))*8; bitPos++ {
		byteIdx := bitPos / 8

		flipIdx := byteIdx
		if byteIdx >= HeaderSize {
			flipIdx = byteIdx + CRCSize
		}

		corrupted := append([]byte(nil), raw...)
		corrupted[flipIdx] ^= 1 << uint(bitPos%8)

		if _, err := Deserialize(corrupted); err == nil {
			t.Fatalf("bit flip at byte %d not detected", flipIdx)
		}
	}
}

func TestCodecCrcFieldItselfDetected(t *testing.T) {
	p := testPacket()
	raw, _ := Serialize(p)
	raw[HeaderSize] ^= 0xFF

	if _, err := Deserialize(raw); err == nil {
		t.Fatal("expected CrcMismatch when the CRC field itself is corrupted")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	p := testPacket()
	raw, _ := Serialize(p)

	var buf bytes.Buffer
	if err := WriteFrame(&buf, raw); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("frame round trip mismatch")
	}
}

func TestFrameTruncatedStream(t *testing.T) {
	p := testPacket()
	raw, _ := Serialize(p)

	var buf bytes.Buffer
	WriteFrame(&buf, raw)

	truncated := buf.Bytes()[:buf.Len()-1]
	if _, err := ReadFrame(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error reading a truncated frame")
	}
}
