package uds

// handleDiagnosticSessionControl implements SID 0x10: switch the tester's
// session type and report the server's P2/P2* timing parameters.
func handleDiagnosticSessionControl(s *Session, data []byte) []byte {
	if len(data) < 1 {
		return negativeResponse(SIDDiagnosticSessionControl, NRCIncorrectMessageLength)
	}

	sessionType := data[0]
	switch sessionType {
	case SessionDefault, SessionProgramming, SessionExtended:
	default:
		return negativeResponse(SIDDiagnosticSessionControl, NRCSubFunctionNotSupported)
	}

	s.CurrentSession = sessionType

	// Body: session type, then P2Server (0x0032 = 50ms) and P2*Server
	// (0x01F4 = 500 in units of 10ms = 5000ms, per ISO 14229-1).
	return positiveResponse(SIDDiagnosticSessionControl, []byte{sessionType, 0x00, 0x32, 0x01, 0xF4})
}
