package doip

import "context"

// Logger is the minimal logging surface the entity calls into. A nil
// Logger means no logging — callers can pass internal/logging's Logger,
// wrap *log.Logger, or use any type providing these two methods.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// UDSCallback is invoked on every validated DiagnosticMessage targeted at
// the local entity: source is the tester's logical address, target is
// this entity's logical address, and data is the UDS request bytes (SID
// followed by its parameters). The ack for the request has already been
// sent by the time the callback runs. An application replies
// asynchronously by calling Entity.SendDiagnosticResponse(source, resp)
// whenever its UDS processing completes — the callback itself is not
// expected to block on it.
type UDSCallback func(source, target uint16, data []byte)

// Options carries cross-cutting dependencies into NewEntity, mirroring
// Config's role for protocol parameters.
type Options struct {
	// Context is carried for the embedder's use; NewEntity and Run do not
	// read it. Run exits when the context passed to Run is done.
	Context context.Context

	// Logger receives diagnostic/debug output. Nil disables logging.
	Logger Logger

	// Observer receives metrics events. Nil defaults to a MetricsObserver
	// wrapping a fresh Metrics instance.
	Observer Observer

	// UDSCallback receives every validated DiagnosticMessage. Nil wires
	// the Entity's built-in Dispatcher as the default, which answers
	// synchronously via SendDiagnosticResponse; RegisterUDSService extends
	// that default rather than replacing it. Set this to take over
	// dispatch entirely and answer asynchronously instead.
	UDSCallback UDSCallback
}
