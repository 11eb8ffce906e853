package netops

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// pollDeadline is how far in the past we set the read deadline before each
// non-blocking attempt. A deadline already in the past makes Read/ReadFrom
// return immediately with os.ErrDeadlineExceeded when nothing is buffered,
// which is how this package emulates WouldBlock over the stdlib's blocking
// net.Conn API.
var pollDeadline = time.Unix(1, 0)

// BSD is the real NetOps implementation, backed by the host's socket API
// via the standard net package plus golang.org/x/net/ipv4 and
// golang.org/x/sys/unix for the options net.Conn can't express directly.
type BSD struct {
	mu   sync.Mutex
	next SocketHandle

	udp map[SocketHandle]*ipv4.PacketConn
	lis map[SocketHandle]*net.TCPListener
	tcp map[SocketHandle]*net.TCPConn
}

// NewBSD constructs an empty BSD NetOps instance.
func NewBSD() *BSD {
	return &BSD{
		udp: make(map[SocketHandle]*ipv4.PacketConn),
		lis: make(map[SocketHandle]*net.TCPListener),
		tcp: make(map[SocketHandle]*net.TCPConn),
	}
}

func (b *BSD) alloc() SocketHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	return b.next
}

// UDPBind binds the wildcard UDP address, sets SO_BROADCAST via
// golang.org/x/sys/unix (net.ListenUDP exposes no broadcast knob), and
// wraps the connection in golang.org/x/net/ipv4 so inbound interface index
// and outbound TTL can be controlled for discovery traffic.
func (b *BSD) UDPBind(port int) (SocketHandle, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return 0, fmt.Errorf("netops: udp bind: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("netops: udp syscallconn: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("netops: udp control: %w", err)
	}
	if sockErr != nil {
		conn.Close()
		return 0, fmt.Errorf("netops: set SO_BROADCAST: %w", sockErr)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		// Not fatal: interface index on ingress is a nicety, not required
		// by the wire protocol.
		_ = err
	}

	h := b.alloc()
	b.mu.Lock()
	b.udp[h] = pc
	b.mu.Unlock()
	return h, nil
}

func (b *BSD) UDPSendTo(sock SocketHandle, data []byte, ip string, port int) (int, error) {
	b.mu.Lock()
	pc, ok := b.udp[sock]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("netops: unknown udp socket %d", sock)
	}
	dst := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	n, err := pc.WriteTo(data, nil, dst)
	if err != nil {
		return 0, fmt.Errorf("netops: udp sendto: %w", err)
	}
	return n, nil
}

func (b *BSD) UDPRecvFrom(sock SocketHandle, buf []byte) (int, string, int, error) {
	b.mu.Lock()
	pc, ok := b.udp[sock]
	b.mu.Unlock()
	if !ok {
		return 0, "", 0, fmt.Errorf("netops: unknown udp socket %d", sock)
	}
	if err := pc.SetReadDeadline(pollDeadline); err != nil {
		return 0, "", 0, err
	}
	n, _, src, err := pc.ReadFrom(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, "", 0, ErrWouldBlock
		}
		return 0, "", 0, fmt.Errorf("netops: udp recvfrom: %w", err)
	}
	udpAddr, _ := src.(*net.UDPAddr)
	if udpAddr == nil {
		return n, "", 0, nil
	}
	return n, udpAddr.IP.String(), udpAddr.Port, nil
}

func (b *BSD) TCPListen(port int) (SocketHandle, error) {
	l, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: port})
	if err != nil {
		return 0, fmt.Errorf("netops: tcp listen: %w", err)
	}
	h := b.alloc()
	b.mu.Lock()
	b.lis[h] = l
	b.mu.Unlock()
	return h, nil
}

func (b *BSD) TCPAccept(listen SocketHandle) (SocketHandle, error) {
	b.mu.Lock()
	l, ok := b.lis[listen]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("netops: unknown listen socket %d", listen)
	}
	if err := l.SetDeadline(pollDeadline); err != nil {
		return 0, err
	}
	conn, err := l.AcceptTCP()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("netops: tcp accept: %w", err)
	}
	h := b.alloc()
	b.mu.Lock()
	b.tcp[h] = conn
	b.mu.Unlock()
	return h, nil
}

func (b *BSD) TCPRecv(sock SocketHandle, buf []byte) (int, error) {
	b.mu.Lock()
	conn, ok := b.tcp[sock]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("netops: unknown tcp socket %d", sock)
	}
	if err := conn.SetReadDeadline(pollDeadline); err != nil {
		return 0, err
	}
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrWouldBlock
		}
		if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("netops: tcp recv: %w", err)
	}
	return n, nil
}

func (b *BSD) TCPSend(sock SocketHandle, data []byte) (int, error) {
	b.mu.Lock()
	conn, ok := b.tcp[sock]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("netops: unknown tcp socket %d", sock)
	}
	n, err := conn.Write(data)
	if err != nil {
		return n, fmt.Errorf("netops: tcp send: %w", err)
	}
	return n, nil
}

func (b *BSD) CloseSocket(sock SocketHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pc, ok := b.udp[sock]; ok {
		delete(b.udp, sock)
		return pc.Close()
	}
	if l, ok := b.lis[sock]; ok {
		delete(b.lis, sock)
		return l.Close()
	}
	if conn, ok := b.tcp[sock]; ok {
		delete(b.tcp, sock)
		return conn.Close()
	}
	return nil // idempotent: closing an unknown/already-closed handle is a no-op
}

var _ NetOps = (*BSD)(nil)
