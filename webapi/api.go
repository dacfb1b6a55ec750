/*
File Name:  API.go

Control-and-status HTTP surface for a mesh.Node. Grounded on the teacher's
webapi/API.go (Start/startWebAPI/EncodeJSON/DecodeJSON shape), trimmed down
from a full blockchain/search/warehouse API to the handful of operations the
spec calls for: read statistics, originate SOS/DIRECT messages, and stream
delivery/peer events over a websocket.
*/
package webapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/disastermesh/meshcore/mesh"
	"github.com/disastermesh/meshcore/protocol"
)

// Instance is a running webapi server bound to a single mesh.Node.
type Instance struct {
	Node *mesh.Node

	// Router can be used by the caller to register additional routes.
	Router *mux.Router

	server *http.Server
	events *eventHub
}

// wsUpgrader allows all origins; the API is meant for a trusted local
// control surface (a companion app on the same device), not public exposure.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Start wires up the routes and begins listening on listenAddress.
//
// Start installs its own OnMessageReceived/OnPeerConnected/
// OnPeerDisconnected filters on node so deliveries and peer changes stream
// to attached websocket clients; any filters set on node before calling
// Start are overwritten. Because the swap is unsynchronized with node's own
// receive workers, Start must be called before node.Start(): it refuses to
// run against an already-running node rather than race with it.
func Start(node *mesh.Node, listenAddress string) (*Instance, error) {
	if node.IsRunning() {
		return nil, errors.New("webapi: Start must be called before node.Start")
	}

	api := &Instance{
		Node:   node,
		Router: mux.NewRouter(),
		events: newEventHub(),
	}

	node.Filters.OnMessageReceived = func(pkt protocol.Packet, decoded map[string]interface{}) {
		api.events.publishMessage(pkt, decoded)
	}
	node.Filters.OnPeerConnected = func(addr string) {
		api.events.publishPeer("connected", addr)
	}
	node.Filters.OnPeerDisconnected = func(addr string) {
		api.events.publishPeer("disconnected", addr)
	}

	api.registerRoutes()

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	api.server = &http.Server{
		Addr:         listenAddress,
		Handler:      api.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		TLSConfig:    tlsConfig,
	}

	go func() {
		if err := api.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			node.Filters.LogError("webapi.Start", "serve %s: %v", listenAddress, err)
		}
	}()

	return api, nil
}

func (api *Instance) registerRoutes() {
	api.Router.HandleFunc("/status", api.handleStatus).Methods("GET")
	api.Router.HandleFunc("/send/sos", api.handleSendSOS).Methods("POST")
	api.Router.HandleFunc("/send/direct", api.handleSendDirect).Methods("POST")
	api.Router.HandleFunc("/events", api.handleEvents).Methods("GET")
}

// newTestInstance builds an Instance with routes registered but no listening
// socket, for driving handlers directly through httptest.
func newTestInstance(node *mesh.Node) *Instance {
	api := &Instance{
		Node:   node,
		Router: mux.NewRouter(),
		events: newEventHub(),
	}
	api.registerRoutes()
	return api
}

// Close shuts the HTTP server down, closing any open websocket clients.
func (api *Instance) Close() error {
	api.events.closeAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return api.server.Shutdown(ctx)
}

func encodeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, data interface{}) error {
	if r.Body == nil {
		http.Error(w, "missing request body", http.StatusBadRequest)
		return errors.New("no data")
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
		return err
	}
	return nil
}
