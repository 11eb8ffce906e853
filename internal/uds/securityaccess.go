package uds

import "encoding/binary"

// handleSecurityAccess implements SID 0x27: level-1 RequestSeed/SendKey.
// The seed is a fixed test value, not a real PRNG, matching the original
// firmware — see FixedTestSeed.
func handleSecurityAccess(s *Session, data []byte) []byte {
	if len(data) < 1 {
		return negativeResponse(SIDSecurityAccess, NRCIncorrectMessageLength)
	}

	switch data[0] {
	case SecurityRequestSeedLevel1:
		if s.SecurityUnlocked {
			// Already unlocked: server returns an all-zero seed, the
			// conventional signal that no further key is needed.
			return positiveResponse(SIDSecurityAccess, []byte{SecurityRequestSeedLevel1, 0, 0, 0, 0})
		}
		s.Seed = FixedTestSeed
		seedBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(seedBytes, s.Seed)
		return positiveResponse(SIDSecurityAccess, append([]byte{SecurityRequestSeedLevel1}, seedBytes...))

	case SecuritySendKeyLevel1:
		if len(data) < 5 {
			return negativeResponse(SIDSecurityAccess, NRCIncorrectMessageLength)
		}
		key := binary.BigEndian.Uint32(data[1:5])
		expected := s.Seed ^ SecurityKeyXOR
		if key == expected {
			s.SecurityUnlocked = true
			s.FailedSecurityAttempts = 0
			return positiveResponse(SIDSecurityAccess, []byte{SecuritySendKeyLevel1})
		}
		s.FailedSecurityAttempts++
		if s.FailedSecurityAttempts >= MaxFailedSecurityAttempts {
			return negativeResponse(SIDSecurityAccess, NRCExceededNumberOfAttempts)
		}
		return negativeResponse(SIDSecurityAccess, NRCInvalidKey)

	default:
		return negativeResponse(SIDSecurityAccess, NRCSubFunctionNotSupported)
	}
}
