/*
File Name:  Device.go

Device identity helpers. Identity persistence across restarts is out of
scope: a device either carries a configured DeviceUUID or receives a fresh
random one each run.
*/

package mesh

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/disastermesh/meshcore/protocol"
)

// randomDeviceID derives a 6-byte device ID from a fresh random UUID, the
// same sizing the teacher used for the truncated node ID.
func randomDeviceID() protocol.DeviceID {
	id := uuid.New()
	var d protocol.DeviceID
	copy(d[:], id[:])
	return d
}

// parseDeviceID decodes a 12-char hex-encoded device ID as found in Config.
func parseDeviceID(hexStr string) (protocol.DeviceID, error) {
	var d protocol.DeviceID
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return d, fmt.Errorf("device ID %q is not valid hex: %w", hexStr, err)
	}
	if len(raw) != protocol.DeviceIDSize {
		return d, fmt.Errorf("device ID %q must decode to %d bytes, got %d", hexStr, protocol.DeviceIDSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// deviceIDHex returns the lowercase hex encoding of a device ID, the form
// used throughout payload.Envelope.Sender/Recipient and GetStatistics.
func deviceIDHex(d protocol.DeviceID) string {
	return hex.EncodeToString(d[:])
}
