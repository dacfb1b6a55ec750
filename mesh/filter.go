/*
File Name:  Filter.go

Filters allow the caller to intercept events. The filter functions must not
modify any data they are given.
*/

package mesh

import (
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/disastermesh/meshcore/protocol"
)

// Filters contains all functions to install hooks. Use nil for unused; init
// fills in no-op defaults so callers never need a nil check.
// The functions are called sequentially and block execution; a slow filter
// should start its own goroutine.
type Filters struct {
	// OnMessageReceived is called for every packet accepted for local
	// delivery, i.e. one addressed to this device or broadcast. decoded
	// carries the generic decrypted payload fields (type, sender,
	// recipient, timestamp, and kind-specific fields).
	OnMessageReceived func(pkt protocol.Packet, decoded map[string]interface{})

	// OnPeerConnected is called once per successful peer connection,
	// inbound or outbound.
	OnPeerConnected func(addr string)

	// OnPeerDisconnected is called once a peer connection is removed,
	// whether due to a read/write error or an explicit close.
	OnPeerDisconnected func(addr string)

	// OnRelay is called whenever a packet is re-broadcast to neighbors,
	// after the relay decision in the forwarding engine.
	OnRelay func(original protocol.Packet, relayed protocol.Packet)

	// OnDuplicateDropped is called when an already-seen packet is
	// discarded by the duplicate cache.
	OnDuplicateDropped func(pkt protocol.Packet)

	// LogError is called for any internal error.
	LogError func(function, format string, v ...interface{})

	// LogInfo is called for routine lifecycle events: peer connect/
	// disconnect, relay, duplicate drop, queue retry/expiry, and cache
	// expiry. Every call is also written to Node.Stdout through the node's
	// ambient logger, regardless of whether LogInfo is set.
	LogInfo func(function, format string, v ...interface{})
}

func (n *Node) initFilters() {
	if n.Filters.OnMessageReceived == nil {
		n.Filters.OnMessageReceived = func(pkt protocol.Packet, decoded map[string]interface{}) {}
	}
	if n.Filters.OnPeerConnected == nil {
		n.Filters.OnPeerConnected = func(addr string) {}
	}
	if n.Filters.OnPeerDisconnected == nil {
		n.Filters.OnPeerDisconnected = func(addr string) {}
	}
	if n.Filters.OnRelay == nil {
		n.Filters.OnRelay = func(original, relayed protocol.Packet) {}
	}
	if n.Filters.OnDuplicateDropped == nil {
		n.Filters.OnDuplicateDropped = func(pkt protocol.Packet) {}
	}
	if n.Filters.LogError == nil {
		n.Filters.LogError = func(function, format string, v ...interface{}) {}
	}
	if n.Filters.LogInfo == nil {
		n.Filters.LogInfo = func(function, format string, v ...interface{}) {}
	}
}

// multiWriter duplicates writes to all of its subscribed writers. Used for
// Node.Stdout so multiple log consumers (file, webapi event stream, tests)
// can attach and detach at runtime.
type multiWriter struct {
	writers map[uuid.UUID]io.Writer
	sync.Mutex
}

func newMultiWriter() *multiWriter {
	return &multiWriter{writers: make(map[uuid.UUID]io.Writer)}
}

// Subscribe adds a writer to the list of writers.
func (m *multiWriter) Subscribe(writer io.Writer) (id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	id = uuid.New()
	m.writers[id] = writer
	return id
}

// Unsubscribe removes a writer from the list of writers.
func (m *multiWriter) Unsubscribe(id uuid.UUID) {
	m.Lock()
	defer m.Unlock()
	delete(m.writers, id)
}

// Write sends p to every subscribed writer. Errors from individual writers
// are ignored; the write always reports success for the ones that did not
// error.
func (m *multiWriter) Write(p []byte) (n int, err error) {
	m.Lock()
	defer m.Unlock()

	for _, w := range m.writers {
		w.Write(p)
	}
	return len(p), nil
}
