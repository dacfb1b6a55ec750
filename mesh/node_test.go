package mesh

import (
	"sync"
	"testing"
	"time"

	"github.com/disastermesh/meshcore/payload"
	"github.com/disastermesh/meshcore/protocol"
	"github.com/disastermesh/meshcore/transport"
)

// received records one OnMessageReceived call.
type received struct {
	pkt     protocol.Packet
	decoded map[string]interface{}
}

// harness wires a Node into a transport.SimNetwork under the given name and
// device ID, recording every delivered message.
type harness struct {
	node *Node
	mu   sync.Mutex
	got  []received
}

func (h *harness) onMessage(pkt protocol.Packet, decoded map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, received{pkt: pkt, decoded: decoded})
}

func (h *harness) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

func (h *harness) last() received {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.got[len(h.got)-1]
}

func newSimNode(t *testing.T, net *transport.SimNetwork, name, deviceHex string) *harness {
	t.Helper()

	h := &harness{}
	cfg := Config{DeviceUUID: deviceHex, NetworkKey: "TestNetworkKey16"}
	n, status, err := New(cfg, WithBroadcaster(net.Broadcaster(name)), WithFilters(Filters{
		OnMessageReceived: h.onMessage,
	}))
	if status != ExitSuccess {
		t.Fatalf("New(%s): status %d: %v", name, status, err)
	}

	h.node = n
	net.Register(name, n)

	if err := n.Start(); err != nil {
		t.Fatalf("Start(%s): %v", name, err)
	}
	t.Cleanup(n.Stop)

	return h
}

const (
	idA = "aaaaaaaaaaaa"
	idB = "bbbbbbbbbbbb"
	idC = "cccccccccccc"
	idD = "dddddddddddd"
	idE = "eeeeeeeeeeee"
)

func TestChainPropagationHopCounts(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)
	c := newSimNode(t, net, "C", idC)
	d := newSimNode(t, net, "D", idD)
	e := newSimNode(t, net, "E", idE)

	net.SetTopology(map[string][]string{
		"A": {"B"},
		"B": {"A", "C"},
		"C": {"B", "D"},
		"D": {"C", "E"},
		"E": {"D"},
	})

	if _, err := a.node.SendSOS("help", 1.0, 2.0, "medical"); err != nil {
		t.Fatalf("SendSOS: %v", err)
	}

	if a.count() != 0 {
		t.Fatalf("originator should not self-deliver, got %d", a.count())
	}

	// hop_count counts completed relays, not distance from origin: a direct
	// neighbor of the originator (B) sees the un-relayed packet at 0.
	cases := []struct {
		name string
		h    *harness
		hop  uint8
	}{
		{"B", b, 0},
		{"C", c, 1},
		{"D", d, 2},
		{"E", e, 3},
	}
	for _, tc := range cases {
		if tc.h.count() != 1 {
			t.Fatalf("%s: expected exactly 1 delivery, got %d", tc.name, tc.h.count())
		}
		got := tc.h.last()
		if got.pkt.HopCount != tc.hop {
			t.Fatalf("%s: expected hop_count %d, got %d", tc.name, tc.hop, got.pkt.HopCount)
		}
		if got.decoded["content"] != "help" {
			t.Fatalf("%s: expected content 'help', got %v", tc.name, got.decoded["content"])
		}
	}
}

func TestTriangleNoSelfDeliveryNoLoop(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)
	c := newSimNode(t, net, "C", idC)

	net.SetTopology(map[string][]string{
		"A": {"B", "C"},
		"B": {"A", "C"},
		"C": {"A", "B"},
	})

	if _, err := a.node.SendSOS("triangle", 0, 0, "fire"); err != nil {
		t.Fatalf("SendSOS: %v", err)
	}

	if a.count() != 0 {
		t.Fatalf("originator must not self-deliver, got %d", a.count())
	}
	if b.count() != 1 {
		t.Fatalf("B expected exactly 1 delivery, got %d", b.count())
	}
	if c.count() != 1 {
		t.Fatalf("C expected exactly 1 delivery, got %d", c.count())
	}
}

func TestDiamondMinimumHopCount(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)
	c := newSimNode(t, net, "C", idC)
	d := newSimNode(t, net, "D", idD)

	// A reaches D via two paths of equal length, both through B/C.
	net.SetTopology(map[string][]string{
		"A": {"B", "C"},
		"B": {"A", "D"},
		"C": {"A", "D"},
		"D": {"B", "C"},
	})

	if _, err := a.node.SendSOS("diamond", 0, 0, "flood"); err != nil {
		t.Fatalf("SendSOS: %v", err)
	}

	if d.count() != 1 {
		t.Fatalf("D expected exactly 1 delivery (whichever path arrives first wins, the other is deduplicated), got %d", d.count())
	}
	if d.last().pkt.HopCount != 1 {
		t.Fatalf("expected D to receive at hop_count 1, got %d", d.last().pkt.HopCount)
	}
}

func TestDirectMessageAckRoundTrip(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)

	net.SetTopology(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})

	if _, err := a.node.SendDirect(idB, "hello B"); err != nil {
		t.Fatalf("SendDirect: %v", err)
	}

	if b.count() != 1 {
		t.Fatalf("B expected to receive the direct message, got %d", b.count())
	}
	if b.last().decoded["content"] != "hello B" {
		t.Fatalf("unexpected content: %v", b.last().decoded["content"])
	}

	if a.count() != 1 {
		t.Fatalf("A expected to receive the ACK addressed to it, got %d", a.count())
	}
	ack := a.last()
	if ack.pkt.MessageType != protocol.ACK {
		t.Fatalf("expected ACK message type, got %s", ack.pkt.MessageType)
	}
	if ack.decoded["type"] != payload.KindAck {
		t.Fatalf("expected payload kind ACK, got %v", ack.decoded["type"])
	}
}

func TestDirectNotForMeIsRelayedNotDelivered(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)
	c := newSimNode(t, net, "C", idC)

	net.SetTopology(map[string][]string{
		"A": {"B"},
		"B": {"A", "C"},
		"C": {"B"},
	})

	if _, err := a.node.SendDirect(idC, "for C only"); err != nil {
		t.Fatalf("SendDirect: %v", err)
	}

	if b.count() != 0 {
		t.Fatalf("B is not the recipient and must not deliver, got %d", b.count())
	}
	if c.count() != 1 {
		t.Fatalf("C expected to receive the direct message, got %d", c.count())
	}
}

func TestStaleTimestampRejected(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)
	b := newSimNode(t, net, "B", idB)

	net.SetTopology(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})

	pkt, err := a.node.buildPacket(protocol.SOS, payload.SOS{
		Envelope: payload.Envelope{
			Type:      payload.KindSOS,
			Sender:    a.node.DeviceIDHex(),
			Recipient: payload.BroadcastRecipient,
			Timestamp: time.Now().Add(-1 * time.Hour).Unix(),
		},
		Content: "stale",
	}, defaultTTL)
	if err != nil {
		t.Fatalf("buildPacket: %v", err)
	}
	pkt.Timestamp = uint32(time.Now().Add(-1 * time.Hour).Unix())

	if err := a.node.send(pkt); err != nil {
		t.Fatalf("send: %v", err)
	}

	if b.count() != 0 {
		t.Fatalf("B must reject a packet outside the timestamp window, got %d deliveries", b.count())
	}
}

func TestStoreAndForwardRetryAfterPeerConnects(t *testing.T) {
	net := transport.NewSimNetwork()
	a := newSimNode(t, net, "A", idA)

	// A starts with no neighbors at all: SendSOS must queue rather than drop.
	net.SetTopology(map[string][]string{"A": {}})

	if _, err := a.node.SendSOS("queued", 0, 0, "flood"); err != nil {
		t.Fatalf("SendSOS: %v", err)
	}
	if got := a.node.GetStatistics().QueuedMessages; got != 1 {
		t.Fatalf("expected 1 queued message, got %d", got)
	}

	b := newSimNode(t, net, "B", idB)
	net.SetTopology(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})

	a.node.queue.RetryNow(a.node.broadcaster)

	if b.count() != 1 {
		t.Fatalf("expected the queued SOS to reach B after it connected, got %d", b.count())
	}
}
