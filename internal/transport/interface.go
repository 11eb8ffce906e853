// Package transport owns the UDP socket, TCP listen socket, and the
// per-connection RX reassembly that turns a raw byte stream into complete
// DoIP frames. It has no notion of DoIP semantics beyond framing — payload
// interpretation belongs to the entity layer above it.
package transport

import (
	"fmt"

	"github.com/doipgw/doip/internal/codec"
	"github.com/doipgw/doip/internal/constants"
	"github.com/doipgw/doip/internal/netops"
)

const (
	rxBufferSize  = constants.RxBufferSize
	broadcastIP   = "255.255.255.255"
	invalidSocket = netops.SocketHandle(0)
)

// ConnState is the per-connection lifecycle state.
type ConnState int

const (
	ConnClosed ConnState = iota
	ConnPendingActivation
	ConnActivated
)

// Connection is one TCP tester session. Socket != invalidSocket iff
// State != ConnClosed.
type Connection struct {
	Socket        netops.SocketHandle
	State         ConnState
	SourceAddress uint16

	rxBuf  []byte
	rxUsed int
}

// Handlers are the callbacks Process invokes for each event it observes in
// one iteration. Any of them may be nil, in which case the event is
// silently ignored at the transport layer (the entity always installs all
// four).
type Handlers struct {
	UDPRx        func(srcIP string, srcPort int, data []byte)
	TCPRx        func(connID int, frame []byte)
	Connected    func(connID int)
	Disconnected func(connID int)
}

// Interface owns one UDP socket, one TCP listen socket, and a bounded pool
// of Connections.
type Interface struct {
	net netops.NetOps

	udpSocket       netops.SocketHandle
	tcpListenSocket netops.SocketHandle

	conns          map[int]*Connection
	nextConnID     int
	maxConnections int
}

// New constructs an Interface bound to no sockets yet; call StartUDP and
// StartTCPServer before the first Process call.
func New(net netops.NetOps, maxConnections int) *Interface {
	return &Interface{
		net:             net,
		udpSocket:       invalidSocket,
		tcpListenSocket: invalidSocket,
		conns:           make(map[int]*Connection),
		maxConnections:  maxConnections,
	}
}

func (iface *Interface) StartUDP(port int) error {
	sock, err := iface.net.UDPBind(port)
	if err != nil {
		return fmt.Errorf("transport: start udp: %w", err)
	}
	iface.udpSocket = sock
	return nil
}

func (iface *Interface) StartTCPServer(port int) error {
	sock, err := iface.net.TCPListen(port)
	if err != nil {
		return fmt.Errorf("transport: start tcp server: %w", err)
	}
	iface.tcpListenSocket = sock
	return nil
}

// UDPBroadcast sends data to the limited broadcast address on port.
func (iface *Interface) UDPBroadcast(data []byte, port int) error {
	_, err := iface.net.UDPSendTo(iface.udpSocket, data, broadcastIP, port)
	return err
}

// UDPSend sends data to a specific destination, used for unicast replies
// to discovery requests.
func (iface *Interface) UDPSend(destIP string, destPort int, data []byte) error {
	_, err := iface.net.UDPSendTo(iface.udpSocket, data, destIP, destPort)
	return err
}

// TCPSend writes data to the connection's socket. Returns NotReady-shaped
// error if the connection is closed.
func (iface *Interface) TCPSend(connID int, data []byte) error {
	conn, ok := iface.conns[connID]
	if !ok || conn.Socket == invalidSocket {
		return fmt.Errorf("transport: connection %d not ready", connID)
	}
	_, err := iface.net.TCPSend(conn.Socket, data)
	return err
}

// Connection returns the connection state for connID, or nil if unknown.
func (iface *Interface) Connection(connID int) *Connection {
	return iface.conns[connID]
}

// Connections exposes the live connection table for iteration (timers).
func (iface *Interface) Connections() map[int]*Connection {
	return iface.conns
}

// UDPSocket returns the bound UDP discovery socket, or invalidSocket if
// StartUDP hasn't been called.
func (iface *Interface) UDPSocket() netops.SocketHandle {
	return iface.udpSocket
}

// TCPListenSocket returns the TCP listen socket, or invalidSocket if
// StartTCPServer hasn't been called.
func (iface *Interface) TCPListenSocket() netops.SocketHandle {
	return iface.tcpListenSocket
}

func (iface *Interface) findFreeConnID() int {
	for id, c := range iface.conns {
		if c.State == ConnClosed {
			return id
		}
	}
	if len(iface.conns) < iface.maxConnections {
		id := iface.nextConnID
		iface.nextConnID++
		return id
	}
	return -1
}

// CloseConnection closes the socket and resets the slot to ConnClosed. It
// does not invoke Disconnected — callers that need the notification (timer
// expiry) call it themselves before or after, per their own semantics.
func (iface *Interface) CloseConnection(connID int) {
	conn, ok := iface.conns[connID]
	if !ok || conn.Socket == invalidSocket {
		return
	}
	iface.net.CloseSocket(conn.Socket)
	if conn.rxBuf != nil {
		putRxBuffer(conn.rxBuf)
		conn.rxBuf = nil
	}
	conn.Socket = invalidSocket
	conn.State = ConnClosed
	conn.SourceAddress = 0
	conn.rxUsed = 0
}

// Process performs one non-blocking polling iteration: a UDP ingest, a TCP
// accept, then one recv per live connection, delivering exactly one
// callback per complete DoIP frame (with any partial trailing bytes left
// buffered for the next iteration).
func (iface *Interface) Process(h Handlers) error {
	iface.processUDP(h)
	iface.processAccept(h)
	iface.processConnections(h)
	return nil
}

func (iface *Interface) processUDP(h Handlers) {
	if iface.udpSocket == invalidSocket {
		return
	}
	buf := make([]byte, codec.MaxPayloadSize+codec.HeaderSize)
	n, srcIP, srcPort, err := iface.net.UDPRecvFrom(iface.udpSocket, buf)
	if err != nil {
		return // WouldBlock or a transient error; next iteration retries
	}
	if n > 0 && h.UDPRx != nil {
		h.UDPRx(srcIP, srcPort, buf[:n])
	}
}

func (iface *Interface) processAccept(h Handlers) {
	if iface.tcpListenSocket == invalidSocket {
		return
	}
	sock, err := iface.net.TCPAccept(iface.tcpListenSocket)
	if err != nil {
		return
	}
	connID := iface.findFreeConnID()
	if connID < 0 {
		iface.net.CloseSocket(sock)
		return
	}
	conn, ok := iface.conns[connID]
	if !ok {
		conn = &Connection{}
		iface.conns[connID] = conn
	}
	conn.Socket = sock
	conn.State = ConnPendingActivation
	conn.SourceAddress = 0
	conn.rxBuf = getRxBuffer()
	conn.rxUsed = 0

	if h.Connected != nil {
		h.Connected(connID)
	}
}

func (iface *Interface) processConnections(h Handlers) {
	for connID, conn := range iface.conns {
		if conn.Socket == invalidSocket {
			continue
		}

		n, err := iface.net.TCPRecv(conn.Socket, conn.rxBuf[conn.rxUsed:])
		if err != nil {
			continue // WouldBlock or transient error: try again next iteration
		}

		if n > 0 {
			conn.rxUsed += n
			iface.drainFrames(connID, conn, h)
			continue
		}

		// n == 0, err == nil: orderly peer close.
		if h.Disconnected != nil {
			h.Disconnected(connID)
		}
		iface.CloseConnection(connID)
	}
}

// drainFrames repeatedly parses the leading header out of conn's buffer,
// delivering every complete frame and shifting the remainder down, exactly
// mirroring the original C reassembly loop's memmove-based compaction.
func (iface *Interface) drainFrames(connID int, conn *Connection, h Handlers) {
	for conn.rxUsed >= codec.HeaderSize {
		hdr, err := codec.DecodeHeader(conn.rxBuf[:conn.rxUsed])
		if err != nil {
			return
		}

		if hdr.PayloadLength > codec.MaxPayloadSize {
			// Oversized even though it would still fit the reassembly
			// buffer: a framing violation, not a payload for the entity
			// layer to NACK. Close without ever calling TCPRx.
			if h.Disconnected != nil {
				h.Disconnected(connID)
			}
			iface.CloseConnection(connID)
			return
		}

		total := codec.HeaderSize + int(hdr.PayloadLength)
		if total > len(conn.rxBuf) {
			// A legitimately sized message can't fit even an empty buffer;
			// this is a protocol violation serious enough to close rather
			// than wedge the connection forever.
			if h.Disconnected != nil {
				h.Disconnected(connID)
			}
			iface.CloseConnection(connID)
			return
		}

		if conn.rxUsed < total {
			return // incomplete message, wait for more data
		}

		frame := conn.rxBuf[:total]
		if h.TCPRx != nil {
			h.TCPRx(connID, frame)
		}

		remaining := conn.rxUsed - total
		if remaining > 0 {
			copy(conn.rxBuf, conn.rxBuf[total:conn.rxUsed])
		}
		conn.rxUsed = remaining
	}
}
