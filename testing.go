package doip

import (
	"time"

	"github.com/doipgw/doip/internal/netops"
)

// TestHarness wires an Entity to an in-memory netops.Fake, letting tests
// drive UDP discovery and TCP tester sessions without any real sockets.
// Mirrors the teacher's MockBackend role: a ready-made double for tests
// elsewhere in the module and for downstream consumers.
type TestHarness struct {
	Entity *Entity
	Net    *netops.Fake
}

// NewTestHarness builds an Entity bound to a fresh Fake NetOps. Call
// Start before feeding it traffic.
func NewTestHarness(config Config, options *Options) *TestHarness {
	fake := netops.NewFake()
	return &TestHarness{
		Entity: NewEntity(fake, config, options),
		Net:    fake,
	}
}

// Start binds the fake UDP/TCP sockets.
func (h *TestHarness) Start() error {
	return h.Entity.Start()
}

// SendUDPRequest queues data as if received from ip:port on the
// discovery socket, then drains one Process/tick iteration so the
// response (if any) lands in the Fake's UDP outbox.
func (h *TestHarness) SendUDPRequest(data []byte, ip string, port int) {
	h.Net.QueueUDPDatagram(h.Entity.Interface().UDPSocket(), data, ip, port)
	h.Pump()
}

// ConnectTester simulates a new inbound TCP connection and returns its
// connID and underlying fake socket handle.
func (h *TestHarness) ConnectTester() (int, netops.SocketHandle) {
	sock := h.Net.AcceptConnection(h.Entity.Interface().TCPListenSocket())
	before := len(h.Entity.Interface().Connections())
	h.Pump()
	_ = before
	// The connID assigned is whatever findFreeConnID picked; since tests
	// run against a fresh harness this is consistently 0 for the first
	// connection, 1 for the second closed-slot-free one, and so on.
	for id, c := range h.Entity.Interface().Connections() {
		if c.Socket == sock {
			return id, sock
		}
	}
	return -1, sock
}

// SendTCP pushes data into connID's inbound stream and pumps one
// iteration so the entity reacts to it.
func (h *TestHarness) SendTCP(sock netops.SocketHandle, data []byte) {
	h.Net.PushRecv(sock, data)
	h.Pump()
}

// Pump runs exactly one Process + tick cycle, as Run's ticker would.
func (h *TestHarness) Pump() {
	handlers := h.Entity.handlers()
	_ = h.Entity.iface.Process(handlers)
	h.Entity.tick(time.Now())
}
