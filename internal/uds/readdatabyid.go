package uds

import "encoding/binary"

// handleReadDataByIdentifier implements SID 0x22 against d's DID table
// (see Dispatcher.dataIdentifiers / SetDataIdentifier). The positive
// response echoes the requested 2-byte DID ahead of its data, per
// uds_handle_read_data_by_id.
func (d *Dispatcher) handleReadDataByIdentifier(s *Session, data []byte) []byte {
	if len(data) < 2 {
		return negativeResponse(SIDReadDataByIdentifier, NRCIncorrectMessageLength)
	}

	did := binary.BigEndian.Uint16(data[0:2])
	value, ok := d.dataIdentifiers[did]
	if !ok {
		return negativeResponse(SIDReadDataByIdentifier, NRCRequestOutOfRange)
	}

	body := make([]byte, 2+len(value))
	binary.BigEndian.PutUint16(body[0:2], did)
	copy(body[2:], value)
	return positiveResponse(SIDReadDataByIdentifier, body)
}
