package doip

import "github.com/doipgw/doip/internal/codec"

// handleUDPRx answers vehicle discovery requests, mirroring
// entity_udp_rx_callback / handle_vehicle_id_request: plain VehicleIdReq
// always gets a response, ByEID/ByVIN only respond on a match, and any
// other payload type is silently ignored on the UDP port.
func (e *Entity) handleUDPRx(srcIP string, srcPort int, data []byte) {
	if len(data) < codec.HeaderSize {
		return
	}
	hdr, err := codec.DecodeHeader(data)
	if err != nil {
		return
	}
	if !codec.ValidateHeader(hdr) {
		// UDP drops a header that fails validation outright; GenericNack is
		// only sent on TCP, never on the discovery socket.
		return
	}

	payload := data[codec.HeaderSize:]
	if uint32(len(payload)) > hdr.PayloadLength {
		payload = payload[:hdr.PayloadLength]
	}

	switch hdr.PayloadType {
	case codec.PayloadTypeVehicleIDReq:
		e.metrics.VehicleIDRequests.Add(1)
		e.respondVehicleID(srcIP, srcPort)

	case codec.PayloadTypeVehicleIDReqVIN:
		e.metrics.VehicleIDRequests.Add(1)
		var vin [codec.VINLength]byte
		copy(vin[:], e.config.VIN)
		if codec.MatchesVIN(payload, vin) {
			e.respondVehicleID(srcIP, srcPort)
		}

	case codec.PayloadTypeVehicleIDReqEID:
		e.metrics.VehicleIDRequests.Add(1)
		if codec.MatchesEID(payload, e.config.EID) {
			e.respondVehicleID(srcIP, srcPort)
		}

	default:
		// Unsupported payload type on UDP; no response per ISO 13400-2.
	}
}

func (e *Entity) respondVehicleID(ip string, port int) {
	buf := make([]byte, codec.HeaderSize+64)
	n, err := codec.EncodeVehicleIDResponse(e.vehicleIDResponse(), buf)
	if err != nil {
		e.logf("encode vehicle id response: %v", err)
		return
	}
	if err := e.iface.UDPSend(ip, port, buf[:n]); err != nil {
		e.logf("send vehicle id response: %v", err)
	}
}
