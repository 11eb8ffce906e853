package uds

// handleTesterPresent implements SID 0x3E: the sub-function byte is
// echoed back unchanged, matching uds_handle_tester_present. A
// suppress-positive-response sub-function (0x80) still gets a response
// here and last-tester-present time isn't tracked, both matching the
// original firmware (which comments out the timestamp and never checks
// the suppress bit) rather than ISO 14229-1's letter.
func handleTesterPresent(s *Session, data []byte) []byte {
	if len(data) < 1 {
		return negativeResponse(SIDTesterPresent, NRCIncorrectMessageLength)
	}
	return positiveResponse(SIDTesterPresent, []byte{data[0]})
}
