/*
File Name:  Statistics.go
*/

package mesh

// Statistics is a snapshot of a Node's runtime state, exposed to callers and
// to webapi's /status endpoint.
type Statistics struct {
	IsRunning      bool   `json:"is_running"`
	PeerCount      int    `json:"peer_count"`
	CacheSize      int    `json:"cache_size"`
	QueuedMessages int    `json:"queued_messages"`
	DeviceUUIDHex  string `json:"device_uuid_hex"`
}

// GetStatistics returns a point-in-time snapshot of the node's state.
func (n *Node) GetStatistics() Statistics {
	return Statistics{
		IsRunning:      n.isRunning(),
		PeerCount:      n.broadcaster.PeerCount(),
		CacheSize:      n.cache.Len(),
		QueuedMessages: n.queue.Len(),
		DeviceUUIDHex:  n.DeviceIDHex(),
	}
}
