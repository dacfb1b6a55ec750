/*
Package transport defines the Peer I/O layer: the boundary between the
mesh protocol engine and the host's radio/session layer. Discovery and
session setup are explicitly out of scope for the core (spec §"Out of
scope") and are represented here purely as the accept/connect/send/recv/
find_service operations the core needs from whatever substrate provides
them — Bluetooth RFCOMM on a real device, plain TCP for development, or an
in-memory topology for the test harness.

Modeled on the connection/peer-set lifecycle of the teacher's Connection.go
and Peer ID.go, generalized from "send a datagram to an address" to "hold
open a framed duplex stream per peer".
*/
package transport

import "io"

// Conn is a single framed duplex stream to one peer.
type Conn interface {
	// Send writes one length-prefixed packet frame.
	Send(raw []byte) error
	// Recv blocks for the next length-prefixed packet frame. It returns
	// io.EOF or io.ErrUnexpectedEOF when the stream has ended, which the
	// caller must treat as session termination.
	Recv() ([]byte, error)
	io.Closer
	// RemoteAddr identifies the peer for peer-set bookkeeping and logging.
	RemoteAddr() string
}

// Transport is the substitutable boundary the spec calls the host's
// short-range link layer. Accept and Connect block; Close unblocks any
// pending Accept.
type Transport interface {
	// Accept blocks until the next inbound peer connection, or returns an
	// error once the transport is closed.
	Accept() (Conn, error)
	// Connect locates the mesh service at address (the spec's
	// find_service(peer)) and, if found, opens a stream to it.
	Connect(address string) (Conn, error)
	io.Closer
}
