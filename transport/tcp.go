package transport

import (
	"net"
	"time"

	"golang.org/x/net/netutil"

	"github.com/disastermesh/meshcore/protocol"
)

// MaxInboundConnections bounds concurrent accepted peer connections on a
// TCPTransport. A resource-constrained portable device cannot afford an
// unbounded accept loop; this is the TCP-appropriate equivalent of the
// teacher's UDP read-buffer sizing in Network.go.
const MaxInboundConnections = 64

// tcpConn adapts a net.Conn to the transport.Conn frame interface.
type tcpConn struct {
	conn net.Conn
}

func (c *tcpConn) Send(raw []byte) error {
	return protocol.WriteFrame(c.conn, raw)
}

func (c *tcpConn) Recv() ([]byte, error) {
	return protocol.ReadFrame(c.conn)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// TCPTransport is a reference Transport implementation for development and
// bench testing on a LAN, standing in for the real Bluetooth RFCOMM link
// layer a production build would supply.
type TCPTransport struct {
	listener net.Listener
	dialer   net.Dialer
}

// ListenTCP starts listening on addr (host:port) and returns a Transport
// ready to Accept.
func ListenTCP(addr string) (*TCPTransport, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &TCPTransport{
		listener: netutil.LimitListener(l, MaxInboundConnections),
		dialer:   net.Dialer{Timeout: 10 * time.Second},
	}, nil
}

// Accept blocks for the next inbound peer connection.
func (t *TCPTransport) Accept() (Conn, error) {
	conn, err := t.listener.Accept()
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn}, nil
}

// Connect dials address directly; address discovery ("find_service") is
// delegated to the host in the general case, but for plain TCP the address
// already names a reachable service so dialing doubles as discovery.
func (t *TCPTransport) Connect(address string) (Conn, error) {
	conn, err := t.dialer.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn}, nil
}

// Close stops accepting new connections. Already-open peer connections are
// the caller's responsibility (see transport.PeerSet.CloseAll).
func (t *TCPTransport) Close() error {
	return t.listener.Close()
}
