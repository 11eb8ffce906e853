// Package doip implements a DoIP (ISO 13400-2) gateway entity coupled
// with a UDS (ISO 14229) service dispatcher: vehicle discovery, routing
// activation, diagnostic message relay, and the inactivity/alive-check
// timers that govern a tester connection's lifetime.
package doip

import (
	"context"
	"time"

	"github.com/doipgw/doip/internal/codec"
	"github.com/doipgw/doip/internal/netops"
	"github.com/doipgw/doip/internal/transport"
	"github.com/doipgw/doip/internal/uds"
)

// tickInterval is how often Run polls the transport layer when there is
// no blocking call to wait on; non-blocking I/O means this is the
// effective latency floor for inbound traffic.
const tickInterval = 5 * time.Millisecond

// connState is the entity-level bookkeeping for one TCP connection,
// keyed by the same connID transport.Interface uses. It tracks exactly
// what app_doip_entity.c's doip_entity_connection_t tracks, translated
// from elapsed-ms counters to absolute deadlines.
type connState struct {
	sourceAddress     uint16
	activated         bool
	initialDeadline   time.Time
	generalDeadline   time.Time
	aliveDeadline     time.Time
	aliveCheckPending bool
	session           *uds.Session
}

// Entity is one DoIP gateway/ECU identity: it owns the UDP/TCP transport,
// answers vehicle discovery, governs routing activation and inactivity
// timers, and dispatches diagnostic message payloads to a UDS Dispatcher.
type Entity struct {
	config Config

	iface      *transport.Interface
	dispatcher *uds.Dispatcher

	udsCallback UDSCallback

	conns map[int]*connState

	announcementCount int
	announcementAt    time.Time

	metrics  *Metrics
	observer Observer
	logger   Logger
}

// NewEntity constructs an Entity bound to net but does not start any
// sockets; call Start before Run.
func NewEntity(net netops.NetOps, config Config, options *Options) *Entity {
	if options == nil {
		options = &Options{}
	}

	metrics := NewMetrics()
	observer := options.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	e := &Entity{
		config:     config,
		iface:      transport.New(net, config.MaxConnections),
		dispatcher: uds.NewDispatcher(),
		conns:      make(map[int]*connState),
		metrics:    metrics,
		observer:   observer,
		logger:     options.Logger,
	}
	e.dispatcher.SetDataIdentifier(uds.DIDVIN, []byte(config.VIN))

	if options.UDSCallback != nil {
		e.udsCallback = options.UDSCallback
	} else {
		e.udsCallback = e.defaultUDSCallback
	}

	return e
}

// Interface exposes the underlying transport, primarily for tests that
// need to drive a Fake NetOps directly (queueing datagrams, simulating
// accepts) rather than going through a real socket.
func (e *Entity) Interface() *transport.Interface { return e.iface }

// RegisterUDSService wires a custom UDS service handler for sid into the
// entity's dispatcher, for applications that need SIDs beyond the five
// built in (e.g. WriteDataByIdentifier, RoutineControl).
func (e *Entity) RegisterUDSService(sid uint8, fn uds.ServiceFunc) {
	e.dispatcher.RegisterService(sid, fn)
}

// Metrics returns the entity's metrics instance.
func (e *Entity) Metrics() *Metrics { return e.metrics }

// MetricsSnapshot returns a point-in-time metrics copy.
func (e *Entity) MetricsSnapshot() MetricsSnapshot { return e.metrics.Snapshot() }

func (e *Entity) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Start binds the UDP discovery socket and TCP listen socket and arms
// the vehicle announcement schedule (3 broadcasts at 500ms intervals,
// per ISO 13400-2).
func (e *Entity) Start() error {
	if err := e.iface.StartUDP(e.config.UDPPort); err != nil {
		return WrapError("Start", err)
	}
	if err := e.iface.StartTCPServer(e.config.TCPPort); err != nil {
		return WrapError("Start", err)
	}
	e.announcementCount = 0
	e.announcementAt = time.Now()
	return nil
}

func (e *Entity) handlers() transport.Handlers {
	return transport.Handlers{
		UDPRx:        e.handleUDPRx,
		TCPRx:        e.handleTCPRx,
		Connected:    e.handleConnected,
		Disconnected: e.handleDisconnected,
	}
}

// Run polls the transport layer and timers until ctx is done.
func (e *Entity) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	handlers := e.handlers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.iface.Process(handlers); err != nil {
				return WrapError("Run", err)
			}
			e.tick(time.Now())
		}
	}
}

func (e *Entity) vehicleIDResponse() codec.VehicleIDResponse {
	resp := codec.VehicleIDResponse{
		LogicalAddress:        e.config.LogicalAddress,
		FurtherActionRequired: 0x00,
		SyncStatus:            0x00,
	}
	copy(resp.VIN[:], e.config.VIN)
	resp.EID = e.config.EID
	resp.GID = e.config.GID
	return resp
}

func (e *Entity) sendVehicleAnnouncement() {
	buf := make([]byte, codec.HeaderSize+64)
	n, err := codec.EncodeVehicleIDResponse(e.vehicleIDResponse(), buf)
	if err != nil {
		e.logf("encode vehicle announcement: %v", err)
		return
	}
	if err := e.iface.UDPBroadcast(buf[:n], e.config.UDPPort); err != nil {
		e.logf("broadcast vehicle announcement: %v", err)
		return
	}
	e.metrics.VehicleAnnouncements.Add(1)
}

func (e *Entity) handleConnected(connID int) {
	now := time.Now()
	e.conns[connID] = &connState{
		initialDeadline: now.Add(e.config.InitialInactivityTimeout),
	}
	e.observer.ObserveConnectionOpened()
}

func (e *Entity) handleDisconnected(connID int) {
	delete(e.conns, connID)
	e.observer.ObserveConnectionClosed()
}
