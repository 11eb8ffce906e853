// Package netops abstracts non-blocking datagram and stream sockets behind
// a capability interface, so the DoIP core can run against either real BSD
// sockets or an in-memory fake in tests.
package netops

import "errors"

// ErrWouldBlock is returned by recv/accept operations when no data or
// connection is currently available. It is not a fault — callers treat it
// as "nothing to do this iteration".
var ErrWouldBlock = errors.New("netops: would block")

// SocketHandle identifies a bound/listening/connected socket. Negative
// values are never valid; zero and positive values are implementation
// defined.
type SocketHandle int

// NetOps is the capability interface required by internal/transport. All
// operations are non-blocking: a call that has no data ready returns
// ErrWouldBlock rather than parking the caller.
type NetOps interface {
	// UDPBind binds the wildcard address on port with broadcast enabled.
	UDPBind(port int) (SocketHandle, error)

	// UDPSendTo sends one datagram. Returns the number of bytes sent.
	UDPSendTo(sock SocketHandle, data []byte, ip string, port int) (int, error)

	// UDPRecvFrom reads one datagram into buf. Returns ErrWouldBlock if
	// none is pending.
	UDPRecvFrom(sock SocketHandle, buf []byte) (n int, srcIP string, srcPort int, err error)

	// TCPListen opens a listening socket with a backlog suitable for
	// MaxConnections simultaneous pending accepts.
	TCPListen(port int) (SocketHandle, error)

	// TCPAccept returns ErrWouldBlock if no connection is pending.
	TCPAccept(listen SocketHandle) (SocketHandle, error)

	// TCPRecv returns n=0, err=nil to signal orderly peer close, and
	// ErrWouldBlock if no data is currently available.
	TCPRecv(sock SocketHandle, buf []byte) (int, error)

	// TCPSend may write fewer bytes than len(data); callers must handle
	// short writes.
	TCPSend(sock SocketHandle, data []byte) (int, error)

	// CloseSocket is idempotent.
	CloseSocket(sock SocketHandle) error
}
