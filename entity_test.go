package doip

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/doipgw/doip/internal/codec"
	"github.com/doipgw/doip/internal/netops"
	"github.com/doipgw/doip/internal/uds"
)

func testConfig() Config {
	c := DefaultConfig("WVWZZZ1KZ1A234567")
	c.InitialInactivityTimeout = 50 * time.Millisecond
	c.GeneralInactivityTimeout = 50 * time.Millisecond
	c.AliveCheckTimeout = 50 * time.Millisecond
	return c
}

func encodeFrame(t *testing.T, payloadType uint16, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, codec.HeaderSize+len(payload))
	if err := codec.EncodeHeader(codec.CurrentHeader(payloadType, uint32(len(payload))), buf); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	copy(buf[codec.HeaderSize:], payload)
	return buf
}

func newStartedHarness(t *testing.T) *TestHarness {
	t.Helper()
	h := NewTestHarness(testConfig(), nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

func TestVehicleIDRequestGetsAnnouncement(t *testing.T) {
	h := newStartedHarness(t)

	req := encodeFrame(t, codec.PayloadTypeVehicleIDReq, nil)
	h.SendUDPRequest(req, "10.0.0.5", 13400)

	// The same Pump also runs the first tick after Start, which broadcasts
	// the first vehicle announcement after the unicast reply.
	out := h.Net.UDPOutbox()
	if len(out) != 2 {
		t.Fatalf("UDPOutbox len = %d, want 2 (reply plus first announcement)", len(out))
	}
	if out[0].IP != "10.0.0.5" || out[0].Port != 13400 {
		t.Errorf("response sent to %s:%d, want 10.0.0.5:13400", out[0].IP, out[0].Port)
	}

	hdr, err := codec.DecodeHeader(out[0].Data)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeVehicleAnnouncement {
		t.Errorf("PayloadType = %#x, want %#x", hdr.PayloadType, codec.PayloadTypeVehicleAnnouncement)
	}

	snap := h.Entity.MetricsSnapshot()
	if snap.VehicleIDRequests != 1 {
		t.Errorf("VehicleIDRequests = %d, want 1", snap.VehicleIDRequests)
	}
}

func TestVehicleIDRequestByVINNoMatchNoResponse(t *testing.T) {
	h := newStartedHarness(t)

	req := encodeFrame(t, codec.PayloadTypeVehicleIDReqVIN, []byte("DIFFERENTVIN000000"))
	h.SendUDPRequest(req, "10.0.0.5", 13400)

	// The only datagram expected is the first announcement broadcast by the
	// tick after Start; nothing may be sent back to the requester.
	for _, dg := range h.Net.UDPOutbox() {
		if dg.IP == "10.0.0.5" {
			t.Errorf("datagram sent to %s:%d, want no response for a non-matching VIN request", dg.IP, dg.Port)
		}
	}
}

func TestRoutingActivationSuccess(t *testing.T) {
	h := newStartedHarness(t)
	connID, sock := h.ConnectTester()
	if connID < 0 {
		t.Fatal("ConnectTester did not register a connection")
	}

	reqPayload := make([]byte, 7)
	binary.BigEndian.PutUint16(reqPayload[0:2], 0x0E00)
	reqPayload[2] = 0x00
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeRoutingActivationReq, reqPayload))

	sent := h.Net.Sent(sock)
	hdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeRoutingActivationRes {
		t.Fatalf("PayloadType = %#x, want %#x", hdr.PayloadType, codec.PayloadTypeRoutingActivationRes)
	}
	responseCode := sent[codec.HeaderSize+4]
	if responseCode != codec.RoutingActivationSuccess {
		t.Errorf("response code = %#x, want %#x", responseCode, codec.RoutingActivationSuccess)
	}

	snap := h.Entity.MetricsSnapshot()
	if snap.RoutingActivationsOK != 1 {
		t.Errorf("RoutingActivationsOK = %d, want 1", snap.RoutingActivationsOK)
	}
}

func TestRoutingActivationRejectsSourceOutOfRange(t *testing.T) {
	h := newStartedHarness(t)
	_, sock := h.ConnectTester()

	reqPayload := make([]byte, 7)
	binary.BigEndian.PutUint16(reqPayload[0:2], 0x0001) // below TesterAddressRangeLow
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeRoutingActivationReq, reqPayload))

	sent := h.Net.Sent(sock)
	responseCode := sent[codec.HeaderSize+4]
	if responseCode != codec.RoutingActivationUnknownSource {
		t.Errorf("response code = %#x, want %#x", responseCode, codec.RoutingActivationUnknownSource)
	}

	snap := h.Entity.MetricsSnapshot()
	if snap.RoutingActivationsFailed != 1 {
		t.Errorf("RoutingActivationsFailed = %d, want 1", snap.RoutingActivationsFailed)
	}
}

func TestDiagnosticMessageDispatchesToUDS(t *testing.T) {
	h := newStartedHarness(t)
	_, sock := h.ConnectTester()

	reqPayload := make([]byte, 7)
	binary.BigEndian.PutUint16(reqPayload[0:2], 0x0E00)
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeRoutingActivationReq, reqPayload))
	beforeLen := len(h.Net.Sent(sock)) // Sent() accumulates; mark where the diag traffic starts

	diagPayload := make([]byte, 4+2) // source, target, UDS: SID TesterPresent + sub
	binary.BigEndian.PutUint16(diagPayload[0:2], 0x0E00)
	binary.BigEndian.PutUint16(diagPayload[2:4], h.Entity.config.LogicalAddress)
	diagPayload[4] = uds.SIDTesterPresent
	diagPayload[5] = uds.TesterPresentWithResponse
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeDiagnosticMessage, diagPayload))

	sent := h.Net.Sent(sock)[beforeLen:]
	if len(sent) == 0 {
		t.Fatal("expected an ack plus a UDS response on the wire")
	}

	hdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader (ack): %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeDiagnosticMessageAck {
		t.Fatalf("first frame PayloadType = %#x, want ack %#x", hdr.PayloadType, codec.PayloadTypeDiagnosticMessageAck)
	}

	ackTotal := codec.HeaderSize + int(hdr.PayloadLength)
	udsHdr, err := codec.DecodeHeader(sent[ackTotal:])
	if err != nil {
		t.Fatalf("DecodeHeader (uds response): %v", err)
	}
	if udsHdr.PayloadType != codec.PayloadTypeDiagnosticMessage {
		t.Fatalf("second frame PayloadType = %#x, want %#x", udsHdr.PayloadType, codec.PayloadTypeDiagnosticMessage)
	}
	udsPayload := sent[ackTotal+codec.HeaderSize : ackTotal+codec.HeaderSize+int(udsHdr.PayloadLength)]
	userData := udsPayload[4:]
	want := []byte{uds.SIDTesterPresent + uds.PositiveResponseOffset, uds.TesterPresentWithResponse}
	if len(userData) != len(want) || userData[0] != want[0] || userData[1] != want[1] {
		t.Errorf("UDS response user data = %v, want %v", userData, want)
	}
}

func TestDiagnosticMessageRejectedBeforeActivation(t *testing.T) {
	h := newStartedHarness(t)
	_, sock := h.ConnectTester()

	diagPayload := make([]byte, 4+2)
	diagPayload[4] = uds.SIDTesterPresent
	diagPayload[5] = uds.TesterPresentWithResponse
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeDiagnosticMessage, diagPayload))

	sent := h.Net.Sent(sock)
	hdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeDiagnosticMessageNack {
		t.Errorf("PayloadType = %#x, want nack %#x", hdr.PayloadType, codec.PayloadTypeDiagnosticMessageNack)
	}
}

func TestUnactivatedConnectionClosedAfterInitialInactivityTimeout(t *testing.T) {
	h := newStartedHarness(t)
	connID, _ := h.ConnectTester()

	if h.Entity.Interface().Connection(connID) == nil {
		t.Fatal("expected connection to be registered")
	}

	time.Sleep(60 * time.Millisecond)
	h.Pump()

	if c := h.Entity.Interface().Connection(connID); c != nil && c.State != 0 {
		t.Errorf("connection state = %v, want ConnClosed after inactivity timeout", c.State)
	}
}

func TestVehicleAnnouncementLimitedToThree(t *testing.T) {
	h := newStartedHarness(t)

	for i := 0; i < 10; i++ {
		time.Sleep(2 * time.Millisecond)
		h.Pump()
	}

	snap := h.Entity.MetricsSnapshot()
	if snap.VehicleAnnouncements > 3 {
		t.Errorf("VehicleAnnouncements = %d, want at most 3", snap.VehicleAnnouncements)
	}
}

func activateTester(t *testing.T, h *TestHarness, sock netops.SocketHandle, source uint16) {
	t.Helper()
	reqPayload := make([]byte, 7)
	binary.BigEndian.PutUint16(reqPayload[0:2], source)
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeRoutingActivationReq, reqPayload))
}

func TestRoutingActivationDiffSourceLeavesActivationUntouched(t *testing.T) {
	h := newStartedHarness(t)
	_, sock := h.ConnectTester()
	activateTester(t, h, sock, 0x0E00)

	beforeLen := len(h.Net.Sent(sock))
	activateTester(t, h, sock, 0x0E01) // different in-range source, already activated

	sent := h.Net.Sent(sock)[beforeLen:]
	responseCode := sent[codec.HeaderSize+4]
	if responseCode != codec.RoutingActivationDiffSource {
		t.Errorf("response code = %#x, want DiffSource %#x", responseCode, codec.RoutingActivationDiffSource)
	}

	diagPayload := make([]byte, 4+2)
	binary.BigEndian.PutUint16(diagPayload[0:2], 0x0E00)
	binary.BigEndian.PutUint16(diagPayload[2:4], h.Entity.config.LogicalAddress)
	diagPayload[4] = uds.SIDTesterPresent
	diagPayload[5] = uds.TesterPresentWithResponse
	beforeLen = len(h.Net.Sent(sock))
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeDiagnosticMessage, diagPayload))

	sent = h.Net.Sent(sock)[beforeLen:]
	hdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeDiagnosticMessageAck {
		t.Errorf("original source 0x0E00 should still be the activated source, got first frame %#x", hdr.PayloadType)
	}
}

func TestReadDataByIdentifierVINMatchesConfiguredVIN(t *testing.T) {
	h := newStartedHarness(t)
	_, sock := h.ConnectTester()
	activateTester(t, h, sock, 0x0E00)
	beforeLen := len(h.Net.Sent(sock))

	diagPayload := make([]byte, 4+3) // source, target, SID 0x22, DID 0xF190
	binary.BigEndian.PutUint16(diagPayload[0:2], 0x0E00)
	binary.BigEndian.PutUint16(diagPayload[2:4], h.Entity.config.LogicalAddress)
	diagPayload[4] = uds.SIDReadDataByIdentifier
	binary.BigEndian.PutUint16(diagPayload[5:7], uds.DIDVIN)
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeDiagnosticMessage, diagPayload))

	sent := h.Net.Sent(sock)[beforeLen:]
	ackHdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader (ack): %v", err)
	}
	ackTotal := codec.HeaderSize + int(ackHdr.PayloadLength)
	udsHdr, err := codec.DecodeHeader(sent[ackTotal:])
	if err != nil {
		t.Fatalf("DecodeHeader (uds response): %v", err)
	}
	udsPayload := sent[ackTotal+codec.HeaderSize : ackTotal+codec.HeaderSize+int(udsHdr.PayloadLength)]
	userData := udsPayload[4:]

	if userData[0] != uds.SIDReadDataByIdentifier+uds.PositiveResponseOffset {
		t.Fatalf("response sid byte = %#x, want positive ReadDataByIdentifier", userData[0])
	}
	gotVIN := string(userData[3:])
	if gotVIN != h.Entity.config.VIN {
		t.Errorf("ReadDID 0xF190 returned %q, want the configured VIN %q", gotVIN, h.Entity.config.VIN)
	}
}

func TestCustomUDSCallbackEnablesAsyncSendDiagnosticResponse(t *testing.T) {
	type received struct {
		source, target uint16
		data           []byte
	}
	got := make(chan received, 1)

	h := NewTestHarness(testConfig(), &Options{
		UDSCallback: func(source, target uint16, data []byte) {
			got <- received{source, target, data}
		},
	})
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, sock := h.ConnectTester()
	activateTester(t, h, sock, 0x0E00)

	diagPayload := make([]byte, 4+1)
	binary.BigEndian.PutUint16(diagPayload[0:2], 0x0E00)
	binary.BigEndian.PutUint16(diagPayload[2:4], h.Entity.config.LogicalAddress)
	diagPayload[4] = uds.SIDTesterPresent
	beforeLen := len(h.Net.Sent(sock))
	h.SendTCP(sock, encodeFrame(t, codec.PayloadTypeDiagnosticMessage, diagPayload))

	select {
	case r := <-got:
		if r.source != 0x0E00 || r.target != h.Entity.config.LogicalAddress {
			t.Fatalf("callback args = %+v", r)
		}
	default:
		t.Fatal("custom UDSCallback was never invoked")
	}

	// Nothing has been sent yet beyond the ack: the custom callback, unlike
	// the default one, doesn't reply on its own.
	sent := h.Net.Sent(sock)[beforeLen:]
	hdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader (ack): %v", err)
	}
	if hdr.PayloadType != codec.PayloadTypeDiagnosticMessageAck {
		t.Fatalf("PayloadType = %#x, want ack", hdr.PayloadType)
	}
	if len(sent) != codec.HeaderSize+int(hdr.PayloadLength) {
		t.Fatalf("expected only the ack on the wire before SendDiagnosticResponse is called")
	}

	resp := []byte{uds.SIDTesterPresent + uds.PositiveResponseOffset, 0x00}
	if err := h.Entity.SendDiagnosticResponse(0x0E00, resp); err != nil {
		t.Fatalf("SendDiagnosticResponse: %v", err)
	}

	sent = h.Net.Sent(sock)[beforeLen+len(sent):]
	udsHdr, err := codec.DecodeHeader(sent)
	if err != nil {
		t.Fatalf("DecodeHeader (uds response): %v", err)
	}
	if udsHdr.PayloadType != codec.PayloadTypeDiagnosticMessage {
		t.Fatalf("PayloadType = %#x, want DiagnosticMessage", udsHdr.PayloadType)
	}
}

func TestSendDiagnosticResponseNotReadyForUnknownSource(t *testing.T) {
	h := newStartedHarness(t)
	err := h.Entity.SendDiagnosticResponse(0x0E00, []byte{0x00})
	if !IsCode(err, ErrCodeNotReady) {
		t.Errorf("SendDiagnosticResponse to an unactivated source: err = %v, want ErrCodeNotReady", err)
	}
}
