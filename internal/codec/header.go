// Package codec implements the ISO 13400-2 DoIP wire format: header
// encode/decode and per-payload-type message bodies. Every function here is
// pure — no sockets, no state, no allocation beyond the returned buffer.
//
// All multi-byte integers are big-endian on the wire, unlike the host's
// native order, so every field goes through encoding/binary.BigEndian
// explicitly rather than a direct memory cast.
package codec

import (
	"encoding/binary"

	"github.com/doipgw/doip/internal/constants"
)

const (
	ProtocolVersion2012        = constants.ProtocolVersion2012
	InverseProtocolVersion2012 = constants.InverseProtocolVersion2012
	ProtocolVersion2019        = constants.ProtocolVersion2019
	InverseProtocolVersion2019 = constants.InverseProtocolVersion2019

	MaxPayloadSize = constants.MaxPayloadSize

	HeaderSize = 8
)

// Header is the 8-byte DoIP generic header present on every message.
type Header struct {
	ProtocolVersion        uint8
	InverseProtocolVersion uint8
	PayloadType            uint16
	PayloadLength          uint32
}

// EncodeHeader writes h into buf[0:8]. buf must be at least HeaderSize long.
func EncodeHeader(h Header, buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrBufferTooSmall
	}
	buf[0] = h.ProtocolVersion
	buf[1] = h.InverseProtocolVersion
	binary.BigEndian.PutUint16(buf[2:4], h.PayloadType)
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	return nil
}

// DecodeHeader reads the first 8 bytes of buf. It does not validate
// semantics — see ValidateHeader.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBufferTooSmall
	}
	return Header{
		ProtocolVersion:        buf[0],
		InverseProtocolVersion: buf[1],
		PayloadType:            binary.BigEndian.Uint16(buf[2:4]),
		PayloadLength:          binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// ValidateHeader accepts only the 2012/2019 version pairs and rejects any
// payload_length claiming more than MaxPayloadSize.
func ValidateHeader(h Header) bool {
	switch {
	case h.ProtocolVersion == ProtocolVersion2012 && h.InverseProtocolVersion == InverseProtocolVersion2012:
	case h.ProtocolVersion == ProtocolVersion2019 && h.InverseProtocolVersion == InverseProtocolVersion2019:
	default:
		return false
	}
	return h.PayloadLength <= MaxPayloadSize
}

// CurrentHeader builds a header with the given payload type/length using
// the 2019 version pair, the version every encode_* helper in this package
// emits.
func CurrentHeader(payloadType uint16, payloadLength uint32) Header {
	return Header{
		ProtocolVersion:        ProtocolVersion2019,
		InverseProtocolVersion: InverseProtocolVersion2019,
		PayloadType:            payloadType,
		PayloadLength:          payloadLength,
	}
}
