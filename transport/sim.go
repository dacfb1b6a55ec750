package transport

import "sync"

// FrameSink receives a raw, already-framed packet as if it had just arrived
// on a peer stream. *mesh.Node implements this so the simulation network
// can inject frames directly into a node's forwarding engine without a real
// socket.
type FrameSink interface {
	Deliver(fromPeer string, raw []byte)
}

// SimNetwork is the test-harness substitute for a real link layer: a
// topology-driven fan-out that delivers a node's broadcasts directly to its
// declared neighbors' FrameSinks, in-process. This realizes the spec's
// re-architecture note that broadcast must be a substitutable operation so
// the simulation harness needs no conditional code paths in the core.
type SimNetwork struct {
	mu       sync.RWMutex
	topology map[string][]string
	sinks    map[string]FrameSink
}

// NewSimNetwork creates an empty simulated network.
func NewSimNetwork() *SimNetwork {
	return &SimNetwork{
		topology: make(map[string][]string),
		sinks:    make(map[string]FrameSink),
	}
}

// Register associates a node name with the sink that should receive frames
// addressed to it.
func (n *SimNetwork) Register(name string, sink FrameSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks[name] = sink
}

// SetTopology replaces the adjacency map wholesale. topology["A"] lists the
// neighbors A's broadcasts reach directly; it is the caller's responsibility
// to keep it symmetric if that is the intended topology.
func (n *SimNetwork) SetTopology(topology map[string][]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.topology = make(map[string][]string, len(topology))
	for k, v := range topology {
		n.topology[k] = append([]string(nil), v...)
	}
}

// Broadcaster returns a queue.Broadcaster-and-mesh-broadcast-compatible
// handle bound to name's neighbors.
func (n *SimNetwork) Broadcaster(name string) *SimBroadcaster {
	return &SimBroadcaster{net: n, name: name}
}

// SimBroadcaster fans a node's outgoing frames out to its simulated
// neighbors. It implements the same (PeerCount, Broadcast) shape the real
// transport.PeerSet and queue.Broadcaster expect.
type SimBroadcaster struct {
	net  *SimNetwork
	name string
}

// PeerCount returns the node's neighbor count in the current topology.
func (b *SimBroadcaster) PeerCount() int {
	b.net.mu.RLock()
	defer b.net.mu.RUnlock()
	return len(b.net.topology[b.name])
}

// Broadcast delivers raw to every neighbor declared for this node in the
// topology, synchronously and in-process.
func (b *SimBroadcaster) Broadcast(raw []byte) {
	b.net.mu.RLock()
	neighbors := append([]string(nil), b.net.topology[b.name]...)
	sinks := make(map[string]FrameSink, len(neighbors))
	for _, nb := range neighbors {
		if sink, ok := b.net.sinks[nb]; ok {
			sinks[nb] = sink
		}
	}
	b.net.mu.RUnlock()

	for _, nb := range neighbors {
		if sink, ok := sinks[nb]; ok {
			sink.Deliver(b.name, raw)
		}
	}
}
