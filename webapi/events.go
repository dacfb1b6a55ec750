/*
File Name:  Events.go

Streams delivered-message and peer-connect/disconnect events to attached
websocket clients. Grounded on the teacher's apiSearchResultStream websocket
pattern (upgrade, register, fan out, deregister on read error).
*/
package webapi

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/disastermesh/meshcore/protocol"
)

type event struct {
	Kind      string                 `json:"kind"` // "message" or "peer"
	Message   map[string]interface{} `json:"message,omitempty"`
	MessageID string                 `json:"messageId,omitempty"`
	HopCount  uint8                  `json:"hopCount,omitempty"`
	PeerState string                 `json:"peerState,omitempty"` // "connected" or "disconnected"
	PeerAddr  string                 `json:"peerAddr,omitempty"`
}

// eventHub fans events out to every currently attached websocket client.
type eventHub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*websocket.Conn
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[uuid.UUID]*websocket.Conn)}
}

func (h *eventHub) add(conn *websocket.Conn) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	h.clients[id] = conn
	return id
}

func (h *eventHub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *eventHub) publish(e event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		if err := conn.WriteJSON(e); err != nil {
			conn.Close()
			delete(h.clients, id)
		}
	}
}

func (h *eventHub) publishMessage(pkt protocol.Packet, decoded map[string]interface{}) {
	h.publish(event{
		Kind:      "message",
		Message:   decoded,
		MessageID: pkt.MessageUUID.String(),
		HopCount:  pkt.HopCount,
	})
}

func (h *eventHub) publishPeer(state, addr string) {
	h.publish(event{Kind: "peer", PeerState: state, PeerAddr: addr})
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		conn.Close()
		delete(h.clients, id)
	}
}

// handleEvents upgrades the connection to a websocket and streams events
// until the client disconnects.
// Request: GET /events (websocket upgrade)
func (api *Instance) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Node.Filters.LogError("handleEvents", "upgrade: %v", err)
		return
	}

	id := api.events.add(conn)
	defer api.events.remove(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}
