/*
File Name:  Node.go

Node lifecycle: construction, Start/Stop, and peer connection management.
Grounded on the teacher's Peernet.go (Init/Connect/Backend shape) and Peer
ID.go (peer-set mutex discipline), adapted to the mesh domain: no
blockchain, DHT, or warehouse state, and identity is a bare 6-byte device ID
rather than an ECDSA keypair.
*/

package mesh

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/disastermesh/meshcore/dedupe"
	"github.com/disastermesh/meshcore/meshcrypto"
	"github.com/disastermesh/meshcore/protocol"
	"github.com/disastermesh/meshcore/queue"
	"github.com/disastermesh/meshcore/transport"
)

// Broadcaster is the shape a Node needs to fan outgoing and relayed packets
// out to neighbors, and to learn how many it currently has. transport.PeerSet
// and transport.SimBroadcaster both satisfy it, which is what lets a Node run
// unmodified against a real link layer or transport.SimNetwork.
type Broadcaster interface {
	PeerCount() int
	Broadcast(raw []byte)
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithTransport supplies a real Transport for accepting and dialing peer
// connections. Without one, a Node can still be driven directly via Deliver
// (the simulation path) but ConnectToPeer and the accept loop are unusable.
func WithTransport(t transport.Transport) Option {
	return func(n *Node) { n.transport = t }
}

// WithFilters installs caller hooks. See Filters for the available slots.
func WithFilters(f Filters) Option {
	return func(n *Node) { n.Filters = f }
}

// WithBroadcaster overrides the default peer-set-backed Broadcaster, most
// commonly with a transport.SimBroadcaster bound to a transport.SimNetwork
// for testing.
func WithBroadcaster(b Broadcaster) Option {
	return func(n *Node) { n.broadcaster = b }
}

// Node is a single participant in the mesh: it owns a device identity, the
// shared network key, the duplicate cache and store-and-forward queue, and
// whatever Transport and Broadcaster it was given.
type Node struct {
	Config  Config
	Filters Filters
	Stdout  *multiWriter

	deviceID   protocol.DeviceID
	networkKey [meshcrypto.KeySize]byte

	transport   transport.Transport
	peers       *transport.PeerSet
	broadcaster Broadcaster

	cache *dedupe.Cache
	queue *queue.Queue

	logger    *log.Logger
	logFile   *os.File
	logFileID uuid.UUID

	running int32
	stopCh  chan struct{}
}

// New constructs a Node from cfg and the given options. The returned Node is
// not started; call Start to begin accepting connections and running the
// background workers.
//
// The returned status is one of the ExitX codes; anything other than
// ExitSuccess indicates a fatal construction failure (the caller should not
// proceed to Start).
func New(cfg Config, opts ...Option) (n *Node, status int, err error) {
	n = &Node{
		Config: cfg,
		Stdout: newMultiWriter(),
		peers:  transport.NewPeerSet(),
		cache:  dedupe.New(),
		queue:  queue.New(),
	}
	n.logger = log.New(n.Stdout, "", log.LstdFlags)

	if cfg.DeviceUUID != "" {
		id, err := parseDeviceID(cfg.DeviceUUID)
		if err != nil {
			return nil, ExitErrorConfigParse, err
		}
		n.deviceID = id
	} else {
		n.deviceID = randomDeviceID()
	}
	n.networkKey = meshcrypto.NormalizeKey([]byte(cfg.NetworkKey))

	for _, opt := range opts {
		opt(n)
	}

	n.initFilters()
	if n.broadcaster == nil {
		n.broadcaster = n.peers
	}
	n.peers.OnRemove = func(addr string) {
		n.logInfo("Node", "peer %s disconnected", addr)
		n.Filters.OnPeerDisconnected(addr)
	}
	n.queue.OnRetry = func(messageUUID string, attempt int) {
		n.logInfo("queue", "retried message %s (attempt %d)", messageUUID, attempt)
	}
	n.queue.OnExpired = func(messageUUID string) {
		n.logInfo("queue", "dropped message %s: age or attempt budget exhausted", messageUUID)
	}
	n.cache.OnExpired = func(fingerprint string) {
		n.logInfo("dedupe", "expired fingerprint %s", fingerprint)
	}

	if err := n.initLog(); err != nil {
		return nil, ExitErrorLogInit, err
	}

	return n, ExitSuccess, nil
}

// initLog opens Config.LogFile, if set, and subscribes it to Stdout so every
// log line written through the node's ambient logger is duplicated to disk.
// An empty LogFile leaves logging confined to whatever Stdout subscribers
// the caller attaches itself.
func (n *Node) initLog() error {
	if n.Config.LogFile == "" {
		return nil
	}

	f, err := os.OpenFile(n.Config.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	n.logFile = f
	n.logFileID = n.Stdout.Subscribe(f)
	return nil
}

// DeviceID returns this node's 6-byte device identifier.
func (n *Node) DeviceID() protocol.DeviceID { return n.deviceID }

// DeviceIDHex returns the hex-encoded device identifier, the form used on
// the wire and in payload envelopes.
func (n *Node) DeviceIDHex() string { return deviceIDHex(n.deviceID) }

func (n *Node) isRunning() bool { return atomic.LoadInt32(&n.running) == 1 }

// IsRunning reports whether the node is currently started. Exported so a
// caller wiring filters through a third party (such as webapi.Start) can
// guard against installing them after the node is already delivering to
// its receive workers.
func (n *Node) IsRunning() bool { return n.isRunning() }

func (n *Node) logError(function, format string, v ...interface{}) {
	n.logger.Printf("[%s] "+format, append([]interface{}{function}, v...)...)
	n.Filters.LogError(function, format, v...)
}

// logInfo records a routine lifecycle event: written through the ambient
// logger (and so to any Stdout subscriber, including the log file opened by
// initLog) and forwarded to Filters.LogInfo.
func (n *Node) logInfo(function, format string, v ...interface{}) {
	n.logger.Printf("[%s] "+format, append([]interface{}{function}, v...)...)
	n.Filters.LogInfo(function, format, v...)
}

// Start begins the duplicate-cache sweeper, the store-and-forward retry
// worker, and, if a Transport was configured, the accept loop. Start is
// idempotent: calling it on an already-running Node is a no-op.
func (n *Node) Start() error {
	if !atomic.CompareAndSwapInt32(&n.running, 0, 1) {
		return nil
	}

	n.stopCh = make(chan struct{})
	n.cache.StartSweeper(n.stopCh)
	n.queue.StartRetryWorker(n.broadcaster, n.stopCh)
	n.logInfo("Start", "node %s starting", n.DeviceIDHex())

	if n.transport != nil {
		go n.acceptLoop()
	}

	for _, addr := range n.Config.SeedPeers {
		if ok := n.ConnectToPeer(addr); !ok {
			n.logError("Start", "failed to connect to seed peer %s", addr)
		}
	}

	return nil
}

// Stop shuts down the background workers, closes every peer connection, and
// closes the Transport if one was configured. Stop is idempotent.
func (n *Node) Stop() {
	if !atomic.CompareAndSwapInt32(&n.running, 1, 0) {
		return
	}

	n.logInfo("Stop", "node %s stopping", n.DeviceIDHex())
	close(n.stopCh)
	n.peers.CloseAll()
	if n.transport != nil {
		n.transport.Close()
	}
	if n.logFile != nil {
		n.Stdout.Unsubscribe(n.logFileID)
		n.logFile.Close()
	}
}

// ConnectToPeer dials address using the configured Transport and begins
// reading frames from it. It returns false if no Transport was configured or
// the dial failed. If the peer is already connected it returns true without
// redialing.
func (n *Node) ConnectToPeer(address string) bool {
	if n.transport == nil {
		n.logError("ConnectToPeer", "no transport configured")
		return false
	}
	if _, ok := n.peers.Get(address); ok {
		return true
	}

	conn, err := n.transport.Connect(address)
	if err != nil {
		n.logError("ConnectToPeer", "connect to %s: %v", address, err)
		return false
	}

	if !n.peers.Add(address, conn) {
		conn.Close()
		return true
	}

	n.logInfo("ConnectToPeer", "connected to %s", address)
	n.Filters.OnPeerConnected(address)
	go n.receiveWorker(address, conn)
	return true
}

// acceptLoop accepts inbound peer connections until the Transport is closed.
func (n *Node) acceptLoop() {
	for {
		conn, err := n.transport.Accept()
		if err != nil {
			if n.isRunning() {
				n.logError("acceptLoop", "accept: %v", err)
			}
			return
		}

		addr := conn.RemoteAddr()
		if !n.peers.Add(addr, conn) {
			conn.Close()
			continue
		}

		n.logInfo("acceptLoop", "accepted connection from %s", addr)
		n.Filters.OnPeerConnected(addr)
		go n.receiveWorker(addr, conn)
	}
}

// receiveWorker reads frames from a single peer connection and hands each
// one to Deliver, until the connection errors out.
func (n *Node) receiveWorker(addr string, conn transport.Conn) {
	for {
		raw, err := conn.Recv()
		if err != nil {
			n.peers.Remove(addr)
			return
		}
		n.Deliver(addr, raw)
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%s)", n.DeviceIDHex())
}
