package doip

import (
	"time"

	"github.com/doipgw/doip/internal/codec"
	"github.com/doipgw/doip/internal/constants"
	"github.com/doipgw/doip/internal/uds"
)

// handleTCPRx dispatches one complete DoIP frame already reassembled by
// transport.Interface, mirroring entity_tcp_rx_callback's switch over
// payload type.
func (e *Entity) handleTCPRx(connID int, frame []byte) {
	hdr, err := codec.DecodeHeader(frame)
	if err != nil {
		return
	}
	if !codec.ValidateHeader(hdr) {
		e.sendGenericNackTCP(connID, codec.NackIncorrectPattern)
		return
	}

	payload := frame[codec.HeaderSize:]
	if uint32(len(payload)) > hdr.PayloadLength {
		payload = payload[:hdr.PayloadLength]
	}

	cs := e.conns[connID]
	if cs == nil {
		return
	}

	switch hdr.PayloadType {
	case codec.PayloadTypeRoutingActivationReq:
		e.handleRoutingActivation(connID, cs, payload)

	case codec.PayloadTypeDiagnosticMessage:
		e.handleDiagnosticMessage(connID, cs, payload)

	case codec.PayloadTypeAliveCheckRes:
		cs.aliveCheckPending = false
		if cs.activated {
			cs.generalDeadline = time.Now().Add(e.config.GeneralInactivityTimeout)
		}

	default:
		// Unsupported payload type on this connection; ignored, matching
		// the original firmware's default case.
	}
}

func (e *Entity) handleRoutingActivation(connID int, cs *connState, payload []byte) {
	req, decodeErr := codec.DecodeRoutingActivationReq(payload)

	responseCode := uint8(codec.RoutingActivationSuccess)
	switch {
	case decodeErr != nil:
		responseCode = codec.RoutingActivationUnknownSource

	case cs.activated && req.SourceAddress == cs.sourceAddress:
		cs.generalDeadline = time.Now().Add(e.config.GeneralInactivityTimeout)

	case cs.activated:
		// Different source on an already-activated connection: reject
		// without touching the existing activation, so at most one
		// source_address slot survives per connection.
		responseCode = codec.RoutingActivationDiffSource

	case req.SourceAddress < constants.TesterAddressRangeLow || req.SourceAddress > constants.TesterAddressRangeHigh:
		responseCode = codec.RoutingActivationUnknownSource

	default:
		cs.activated = true
		cs.sourceAddress = req.SourceAddress
		cs.generalDeadline = time.Now().Add(e.config.GeneralInactivityTimeout)
		cs.session = uds.NewSession()
	}

	resp := codec.RoutingActivationRes{
		TesterAddress: req.SourceAddress,
		EntityAddress: e.config.LogicalAddress,
		ResponseCode:  responseCode,
	}

	buf := make([]byte, codec.HeaderSize+32)
	n, err := codec.EncodeRoutingActivationRes(resp, buf)
	if err != nil {
		e.logf("encode routing activation response: %v", err)
		return
	}
	if err := e.iface.TCPSend(connID, buf[:n]); err != nil {
		e.logf("send routing activation response: %v", err)
	}

	e.observer.ObserveRoutingActivation(responseCode == codec.RoutingActivationSuccess)
}

func (e *Entity) handleDiagnosticMessage(connID int, cs *connState, payload []byte) {
	if !cs.activated {
		e.sendDiagAckOrNack(connID, e.config.LogicalAddress, 0, codec.DiagNackInvalidSource, false)
		return
	}

	diag, err := codec.DecodeDiagnosticMessage(payload)
	if err != nil {
		return
	}

	if diag.TargetAddress != e.config.LogicalAddress {
		e.sendDiagAckOrNack(connID, e.config.LogicalAddress, diag.TargetAddress, codec.DiagNackUnknownTarget, false)
		return
	}

	e.observer.ObserveDiagnosticMessage(DirectionRx, false)
	e.sendDiagAckOrNack(connID, e.config.LogicalAddress, diag.SourceAddress, 0x00, true)

	e.udsCallback(diag.SourceAddress, diag.TargetAddress, diag.UserData)

	cs.generalDeadline = time.Now().Add(e.config.GeneralInactivityTimeout)
}

func (e *Entity) sendDiagAckOrNack(connID int, source, target uint16, code uint8, ack bool) {
	buf := make([]byte, codec.HeaderSize+5)
	var n int
	var err error
	if ack {
		n, err = codec.EncodeDiagMessageAck(source, target, code, buf)
	} else {
		n, err = codec.EncodeDiagMessageNack(source, target, code, buf)
		e.observer.ObserveDiagnosticMessage(DirectionTx, true)
	}
	if err != nil {
		e.logf("encode diag ack/nack: %v", err)
		return
	}
	if err := e.iface.TCPSend(connID, buf[:n]); err != nil {
		e.logf("send diag ack/nack: %v", err)
	}
}

// defaultUDSCallback is the UDSCallback wired in by NewEntity when
// Options.UDSCallback is nil: it dispatches the request through the
// built-in UDS Dispatcher and replies synchronously via
// SendDiagnosticResponse, so an Entity is usable standalone without an
// application supplying its own callback.
func (e *Entity) defaultUDSCallback(source, target uint16, data []byte) {
	if len(data) < 1 {
		return
	}

	_, cs := e.connBySourceAddress(source)
	if cs == nil {
		return
	}

	sid := data[0]
	reqData := data[1:]

	resp := e.dispatcher.Dispatch(cs.session, sid, reqData)
	negative := len(resp) > 0 && resp[0] == uds.NegativeResponseSID
	e.observer.ObserveUDSRequest(negative)

	if err := e.SendDiagnosticResponse(source, resp); err != nil {
		e.logf("send uds response: %v", err)
	}
}

// SendDiagnosticResponse looks up the activated connection whose source
// address is target, encodes a DiagnosticMessage from config.LogicalAddress
// to it, and sends it. An application supplying its own Options.UDSCallback
// calls this asynchronously, after the callback returns, to deliver the
// UDS response — it is not invoked automatically for a custom callback.
func (e *Entity) SendDiagnosticResponse(target uint16, data []byte) error {
	connID, cs := e.connBySourceAddress(target)
	if cs == nil {
		return NewError("SendDiagnosticResponse", ErrCodeNotReady, "no activated connection for source address")
	}

	respMsg := codec.DiagnosticMessage{
		SourceAddress: e.config.LogicalAddress,
		TargetAddress: target,
		UserData:      data,
	}
	buf := make([]byte, codec.HeaderSize+4+len(data))
	n, err := codec.EncodeDiagnosticMessage(respMsg, buf)
	if err != nil {
		return WrapError("SendDiagnosticResponse", err)
	}
	if err := e.iface.TCPSend(connID, buf[:n]); err != nil {
		return WrapError("SendDiagnosticResponse", err)
	}
	e.observer.ObserveDiagnosticMessage(DirectionTx, false)
	return nil
}

// connBySourceAddress finds the activated connection whose source address
// matches addr, the lookup both SendDiagnosticResponse and the default UDS
// callback need.
func (e *Entity) connBySourceAddress(addr uint16) (int, *connState) {
	for connID, cs := range e.conns {
		if cs.activated && cs.sourceAddress == addr {
			return connID, cs
		}
	}
	return -1, nil
}

func (e *Entity) sendGenericNackTCP(connID int, code uint8) {
	buf := make([]byte, codec.HeaderSize+1)
	n, err := codec.EncodeGenericNack(code, buf)
	if err != nil {
		return
	}
	_ = e.iface.TCPSend(connID, buf[:n])
}
