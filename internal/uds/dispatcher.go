package uds

// Session holds the per-tester UDS state machine: current diagnostic
// session, security unlock state, and the outstanding seed/lockout
// counters for SecurityAccess. One Session belongs to exactly one
// activated DoIP connection.
type Session struct {
	CurrentSession         uint8
	SecurityUnlocked       bool
	Seed                   uint32
	FailedSecurityAttempts uint8
}

// NewSession returns a Session in the power-on state: default session,
// locked, no outstanding seed.
func NewSession() *Session {
	return &Session{CurrentSession: SessionDefault}
}

// ServiceFunc handles one SID's request body (without the SID byte
// itself) and returns the full response buffer, SID byte included
// (positive: sid+0x40 prefix; negative: 0x7F sid nrc). Build responses
// with PositiveResponse/NegativeResponse rather than by hand.
type ServiceFunc func(s *Session, data []byte) []byte

// Dispatcher routes a UDS request to its service handler by SID.
type Dispatcher struct {
	services        map[uint8]ServiceFunc
	dataIdentifiers map[uint16][]byte
}

// NewDispatcher builds a Dispatcher with the five service handlers wired
// in; see SIDDiagnosticSessionControl et al. in constants.go for the
// full set of SIDs the original firmware declares but does not
// implement. Use RegisterService to add more.
//
// ReadDataByIdentifier's DID table starts with just the fixture serial
// number and software number; a caller that cares about the VIN it
// reports (e.g. Entity, matching the VIN it announces over UDP) must
// call SetDataIdentifier(DIDVIN, ...) itself.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		dataIdentifiers: map[uint16][]byte{
			DIDECUSerialNumber:   []byte("SN123456789"),
			DIDECUSoftwareNumber: {0x01, 0x00, 0x05},
		},
	}
	d.services = map[uint8]ServiceFunc{
		SIDDiagnosticSessionControl: handleDiagnosticSessionControl,
		SIDECUReset:                 handleECUReset,
		SIDSecurityAccess:           handleSecurityAccess,
		SIDTesterPresent:            handleTesterPresent,
		SIDReadDataByIdentifier:     d.handleReadDataByIdentifier,
	}
	return d
}

// RegisterService wires fn to handle sid, overwriting any existing
// handler (including the built-in five). Not safe to call concurrently
// with Dispatch.
func (d *Dispatcher) RegisterService(sid uint8, fn ServiceFunc) {
	d.services[sid] = fn
}

// SetDataIdentifier sets (or overrides) the value ReadDataByIdentifier
// (SID 0x22) returns for did. Not safe to call concurrently with Dispatch.
func (d *Dispatcher) SetDataIdentifier(did uint16, value []byte) {
	d.dataIdentifiers[did] = value
}

// Dispatch processes one UDS request (sid followed by its data bytes)
// against session and returns the full response buffer. An unknown SID
// yields NRCServiceNotSupported, matching uds_process_request's default
// case.
func (d *Dispatcher) Dispatch(s *Session, sid byte, data []byte) []byte {
	fn, ok := d.services[sid]
	if !ok {
		return negativeResponse(sid, NRCServiceNotSupported)
	}
	return fn(s, data)
}

// PositiveResponse builds a positive UDS response (sid+0x40 followed by
// body) for use by handlers registered via RegisterService.
func PositiveResponse(sid byte, body []byte) []byte {
	return positiveResponse(sid, body)
}

// NegativeResponse builds a 3-byte negative UDS response for use by
// handlers registered via RegisterService.
func NegativeResponse(sid byte, nrc byte) []byte {
	return negativeResponse(sid, nrc)
}

func positiveResponse(sid byte, body []byte) []byte {
	resp := make([]byte, 1+len(body))
	resp[0] = sid + PositiveResponseOffset
	copy(resp[1:], body)
	return resp
}

func negativeResponse(sid byte, nrc byte) []byte {
	return []byte{NegativeResponseSID, sid, nrc}
}
