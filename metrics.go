package doip

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for a DoIP entity.
type Metrics struct {
	VehicleIDRequests   atomic.Uint64
	VehicleAnnouncements atomic.Uint64

	RoutingActivationsOK     atomic.Uint64
	RoutingActivationsFailed atomic.Uint64

	DiagnosticMessagesRx atomic.Uint64
	DiagnosticMessagesTx atomic.Uint64
	DiagnosticNacks      atomic.Uint64

	ConnectionsOpened atomic.Uint64
	ConnectionsClosed atomic.Uint64

	AliveChecksSent    atomic.Uint64
	AliveCheckTimeouts atomic.Uint64

	UDSRequests  atomic.Uint64
	UDSNegatives atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Stop marks the entity as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to log or export.
type MetricsSnapshot struct {
	VehicleIDRequests        uint64
	VehicleAnnouncements     uint64
	RoutingActivationsOK     uint64
	RoutingActivationsFailed uint64
	DiagnosticMessagesRx     uint64
	DiagnosticMessagesTx     uint64
	DiagnosticNacks          uint64
	ConnectionsOpened        uint64
	ConnectionsClosed        uint64
	AliveChecksSent          uint64
	AliveCheckTimeouts       uint64
	UDSRequests              uint64
	UDSNegatives             uint64
	UptimeNs                 uint64
}

// Snapshot copies the current counters out.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		VehicleIDRequests:        m.VehicleIDRequests.Load(),
		VehicleAnnouncements:     m.VehicleAnnouncements.Load(),
		RoutingActivationsOK:     m.RoutingActivationsOK.Load(),
		RoutingActivationsFailed: m.RoutingActivationsFailed.Load(),
		DiagnosticMessagesRx:     m.DiagnosticMessagesRx.Load(),
		DiagnosticMessagesTx:     m.DiagnosticMessagesTx.Load(),
		DiagnosticNacks:          m.DiagnosticNacks.Load(),
		ConnectionsOpened:        m.ConnectionsOpened.Load(),
		ConnectionsClosed:        m.ConnectionsClosed.Load(),
		AliveChecksSent:          m.AliveChecksSent.Load(),
		AliveCheckTimeouts:       m.AliveCheckTimeouts.Load(),
		UDSRequests:              m.UDSRequests.Load(),
		UDSNegatives:             m.UDSNegatives.Load(),
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return snap
}

// Observer allows pluggable metrics collection, mirroring the entity's
// internal event stream without coupling callers to Metrics directly.
type Observer interface {
	ObserveRoutingActivation(success bool)
	ObserveDiagnosticMessage(direction Direction, nack bool)
	ObserveConnectionOpened()
	ObserveConnectionClosed()
	ObserveAliveCheck(timedOut bool)
	ObserveUDSRequest(negative bool)
}

// Direction distinguishes inbound from outbound diagnostic traffic for
// Observer.ObserveDiagnosticMessage.
type Direction int

const (
	DirectionRx Direction = iota
	DirectionTx
)

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRoutingActivation(bool)            {}
func (NoOpObserver) ObserveDiagnosticMessage(Direction, bool) {}
func (NoOpObserver) ObserveConnectionOpened()                 {}
func (NoOpObserver) ObserveConnectionClosed()                 {}
func (NoOpObserver) ObserveAliveCheck(bool)                   {}
func (NoOpObserver) ObserveUDSRequest(bool)                   {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRoutingActivation(success bool) {
	if success {
		o.metrics.RoutingActivationsOK.Add(1)
	} else {
		o.metrics.RoutingActivationsFailed.Add(1)
	}
}

func (o *MetricsObserver) ObserveDiagnosticMessage(dir Direction, nack bool) {
	switch dir {
	case DirectionRx:
		o.metrics.DiagnosticMessagesRx.Add(1)
	case DirectionTx:
		o.metrics.DiagnosticMessagesTx.Add(1)
	}
	if nack {
		o.metrics.DiagnosticNacks.Add(1)
	}
}

func (o *MetricsObserver) ObserveConnectionOpened() { o.metrics.ConnectionsOpened.Add(1) }
func (o *MetricsObserver) ObserveConnectionClosed() { o.metrics.ConnectionsClosed.Add(1) }

func (o *MetricsObserver) ObserveAliveCheck(timedOut bool) {
	o.metrics.AliveChecksSent.Add(1)
	if timedOut {
		o.metrics.AliveCheckTimeouts.Add(1)
	}
}

func (o *MetricsObserver) ObserveUDSRequest(negative bool) {
	o.metrics.UDSRequests.Add(1)
	if negative {
		o.metrics.UDSNegatives.Add(1)
	}
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
