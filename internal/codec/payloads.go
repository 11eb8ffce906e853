package codec

import (
	"encoding/binary"

	"github.com/doipgw/doip/internal/constants"
)

// Payload type selectors, ISO 13400-2:2019 Table 2 plus the informative
// EntityStatus/DiagPowerMode pair some implementations also advertise.
const (
	PayloadTypeGenericNack             uint16 = 0x0000
	PayloadTypeVehicleIDReq            uint16 = 0x0001
	PayloadTypeVehicleIDReqEID         uint16 = 0x0002
	PayloadTypeVehicleIDReqVIN         uint16 = 0x0003
	PayloadTypeVehicleAnnouncement     uint16 = 0x0004
	PayloadTypeRoutingActivationReq    uint16 = 0x0005
	PayloadTypeRoutingActivationRes    uint16 = 0x0006
	PayloadTypeAliveCheckReq           uint16 = 0x0007
	PayloadTypeAliveCheckRes           uint16 = 0x0008
	PayloadTypeEntityStatusReq         uint16 = 0x4001
	PayloadTypeEntityStatusRes         uint16 = 0x4002
	PayloadTypeDiagPowerModeReq        uint16 = 0x4003
	PayloadTypeDiagPowerModeRes        uint16 = 0x4004
	PayloadTypeDiagnosticMessage       uint16 = 0x8001
	PayloadTypeDiagnosticMessageAck    uint16 = 0x8002
	PayloadTypeDiagnosticMessageNack   uint16 = 0x8003
)

// Generic NACK codes (payload type 0x0000).
const (
	NackIncorrectPattern    uint8 = 0x00
	NackUnknownPayloadType  uint8 = 0x01
	NackMessageTooLarge     uint8 = 0x02
	NackOutOfMemory         uint8 = 0x03
	NackInvalidPayloadLength uint8 = 0x04
)

// Routing activation response codes.
const (
	RoutingActivationUnknownSource   uint8 = 0x00
	RoutingActivationNoSockets       uint8 = 0x01
	RoutingActivationDiffSource      uint8 = 0x02
	RoutingActivationActive         uint8 = 0x03
	RoutingActivationAuthMissing     uint8 = 0x04
	RoutingActivationConfirmRejected uint8 = 0x05
	RoutingActivationUnsupportedType uint8 = 0x06
	RoutingActivationSuccess         uint8 = 0x10
	RoutingActivationConfirmRequired uint8 = 0x11
)

// Diagnostic message NACK codes.
const (
	DiagNackInvalidSource       uint8 = 0x02
	DiagNackUnknownTarget       uint8 = 0x03
	DiagNackMessageTooLarge     uint8 = 0x04
	DiagNackOutOfMemory         uint8 = 0x05
	DiagNackTargetUnreachable   uint8 = 0x06
	DiagNackUnknownNetwork      uint8 = 0x07
	DiagNackTransportProtocol  uint8 = 0x08
)

const (
	VINLength = constants.VINLength
	EIDLength = constants.EIDLength
	GIDLength = constants.GIDLength

	vehicleIDResponsePayloadLen   = VINLength + 2 + EIDLength + GIDLength + 1 + 1 // 33
	routingActivationReqPayloadLen = 2 + 1 + 4 + 4                               // 11
	routingActivationResPayloadLen = 2 + 2 + 1 + 4 + 4                           // 13
)

// VehicleIDResponse is the 33-byte body of VehicleAnnouncement / a response
// to VehicleIdReq(ByEID/ByVIN).
type VehicleIDResponse struct {
	VIN                   [VINLength]byte
	LogicalAddress        uint16
	EID                   [EIDLength]byte
	GID                   [GIDLength]byte
	FurtherActionRequired uint8
	SyncStatus            uint8
}

// EncodeVehicleIDResponse writes the 8-byte header plus the 33-byte payload
// into buf.
func EncodeVehicleIDResponse(r VehicleIDResponse, buf []byte) (int, error) {
	total := HeaderSize + vehicleIDResponsePayloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(PayloadTypeVehicleAnnouncement, vehicleIDResponsePayloadLen), buf); err != nil {
		return 0, err
	}
	off := HeaderSize
	off += copy(buf[off:], r.VIN[:])
	binary.BigEndian.PutUint16(buf[off:off+2], r.LogicalAddress)
	off += 2
	off += copy(buf[off:], r.EID[:])
	off += copy(buf[off:], r.GID[:])
	buf[off] = r.FurtherActionRequired
	off++
	buf[off] = r.SyncStatus
	off++
	return off, nil
}

// RoutingActivationReq is the 11-byte TCP request that moves a connection
// from PendingActivation to Activated.
type RoutingActivationReq struct {
	SourceAddress  uint16
	ActivationType uint8
	Reserved       uint32
	OEMSpecific    uint32
}

// DecodeRoutingActivationReq reads payload (the bytes after the header).
// oem_specific is optional on the wire; if payload is shorter than the
// full 11 bytes it decodes as zero, matching common tester behavior.
func DecodeRoutingActivationReq(payload []byte) (RoutingActivationReq, error) {
	if len(payload) < 7 {
		return RoutingActivationReq{}, ErrInvalidFormat
	}
	req := RoutingActivationReq{
		SourceAddress:  binary.BigEndian.Uint16(payload[0:2]),
		ActivationType: payload[2],
		Reserved:       binary.BigEndian.Uint32(payload[3:7]),
	}
	if len(payload) >= routingActivationReqPayloadLen {
		req.OEMSpecific = binary.BigEndian.Uint32(payload[7:11])
	}
	return req, nil
}

// EncodeRoutingActivationReq is provided for completeness (a tester role
// encoding its own request); the entity side only decodes these.
func EncodeRoutingActivationReq(r RoutingActivationReq, buf []byte) (int, error) {
	total := HeaderSize + routingActivationReqPayloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(PayloadTypeRoutingActivationReq, routingActivationReqPayloadLen), buf); err != nil {
		return 0, err
	}
	off := HeaderSize
	binary.BigEndian.PutUint16(buf[off:off+2], r.SourceAddress)
	off += 2
	buf[off] = r.ActivationType
	off++
	binary.BigEndian.PutUint32(buf[off:off+4], r.Reserved)
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], r.OEMSpecific)
	off += 4
	return off, nil
}

// RoutingActivationRes is the 13-byte response to a RoutingActivationReq.
type RoutingActivationRes struct {
	TesterAddress uint16
	EntityAddress uint16
	ResponseCode  uint8
	Reserved      uint32
	OEMSpecific   uint32
}

func EncodeRoutingActivationRes(r RoutingActivationRes, buf []byte) (int, error) {
	total := HeaderSize + routingActivationResPayloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(PayloadTypeRoutingActivationRes, routingActivationResPayloadLen), buf); err != nil {
		return 0, err
	}
	off := HeaderSize
	binary.BigEndian.PutUint16(buf[off:off+2], r.TesterAddress)
	off += 2
	binary.BigEndian.PutUint16(buf[off:off+2], r.EntityAddress)
	off += 2
	buf[off] = r.ResponseCode
	off++
	binary.BigEndian.PutUint32(buf[off:off+4], r.Reserved)
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], r.OEMSpecific)
	off += 4
	return off, nil
}

// DiagnosticMessage carries UDS request/response bytes between tester and
// entity. UserData aliases the caller's buffer on decode — it must not be
// retained past the lifetime of that buffer.
type DiagnosticMessage struct {
	SourceAddress uint16
	TargetAddress uint16
	UserData      []byte
}

// EncodeDiagnosticMessage writes the header plus a 4-byte address pair plus
// m.UserData into buf.
func EncodeDiagnosticMessage(m DiagnosticMessage, buf []byte) (int, error) {
	if m.UserData == nil {
		return 0, ErrInvalidParam
	}
	payloadLen := 4 + len(m.UserData)
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(PayloadTypeDiagnosticMessage, uint32(payloadLen)), buf); err != nil {
		return 0, err
	}
	off := HeaderSize
	binary.BigEndian.PutUint16(buf[off:off+2], m.SourceAddress)
	off += 2
	binary.BigEndian.PutUint16(buf[off:off+2], m.TargetAddress)
	off += 2
	off += copy(buf[off:], m.UserData)
	return off, nil
}

// DecodeDiagnosticMessage reads payload (bytes after the header) and
// aliases the trailing user-data region directly into payload.
func DecodeDiagnosticMessage(payload []byte) (DiagnosticMessage, error) {
	if len(payload) < 4 {
		return DiagnosticMessage{}, ErrInvalidFormat
	}
	return DiagnosticMessage{
		SourceAddress: binary.BigEndian.Uint16(payload[0:2]),
		TargetAddress: binary.BigEndian.Uint16(payload[2:4]),
		UserData:      payload[4:],
	}, nil
}

// EncodeGenericNack writes a 1-byte-payload GenericNack message.
func EncodeGenericNack(code uint8, buf []byte) (int, error) {
	total := HeaderSize + 1
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(PayloadTypeGenericNack, 1), buf); err != nil {
		return 0, err
	}
	buf[HeaderSize] = code
	return total, nil
}

// DecodeGenericNack reads the 1-byte NACK code from payload.
func DecodeGenericNack(payload []byte) (uint8, error) {
	if len(payload) < 1 {
		return 0, ErrInvalidFormat
	}
	return payload[0], nil
}

// EncodeDiagMessageAck writes a positive DiagMessageAck (payload type
// 0x8002): source/target swapped relative to the message being
// acknowledged, plus a 1-byte ack code (always 0x00 in practice).
func EncodeDiagMessageAck(sourceAddress, targetAddress uint16, ackCode uint8, buf []byte) (int, error) {
	return encodeDiagAckOrNack(PayloadTypeDiagnosticMessageAck, sourceAddress, targetAddress, ackCode, buf)
}

// EncodeDiagMessageNack writes a negative DiagMessageNack (payload type
// 0x8003) with one of the DiagNack* codes.
func EncodeDiagMessageNack(sourceAddress, targetAddress uint16, nackCode uint8, buf []byte) (int, error) {
	return encodeDiagAckOrNack(PayloadTypeDiagnosticMessageNack, sourceAddress, targetAddress, nackCode, buf)
}

func encodeDiagAckOrNack(payloadType uint16, sourceAddress, targetAddress uint16, code uint8, buf []byte) (int, error) {
	const payloadLen = 2 + 2 + 1
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	if err := EncodeHeader(CurrentHeader(payloadType, payloadLen), buf); err != nil {
		return 0, err
	}
	off := HeaderSize
	binary.BigEndian.PutUint16(buf[off:off+2], sourceAddress)
	off += 2
	binary.BigEndian.PutUint16(buf[off:off+2], targetAddress)
	off += 2
	buf[off] = code
	off++
	return off, nil
}

// MatchesEID reports whether a VehicleIdReqByEid payload (6 bytes) matches
// the configured EID.
func MatchesEID(payload []byte, eid [EIDLength]byte) bool {
	if len(payload) < EIDLength {
		return false
	}
	for i := 0; i < EIDLength; i++ {
		if payload[i] != eid[i] {
			return false
		}
	}
	return true
}

// MatchesVIN reports whether a VehicleIdReqByVin payload (17 bytes) matches
// the configured VIN. A payload shorter than VINLength never matches — the
// caller should treat that case as "no response" per the original source,
// not as a NACK.
func MatchesVIN(payload []byte, vin [VINLength]byte) bool {
	if len(payload) < VINLength {
		return false
	}
	for i := 0; i < VINLength; i++ {
		if payload[i] != vin[i] {
			return false
		}
	}
	return true
}
