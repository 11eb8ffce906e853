package uds

import (
	"encoding/binary"
	"testing"
)

func TestSecurityAccessRequestSeed(t *testing.T) {
	s := NewSession()
	resp := handleSecurityAccess(s, []byte{SecurityRequestSeedLevel1})

	if resp[0] != SIDSecurityAccess+PositiveResponseOffset || resp[1] != SecurityRequestSeedLevel1 {
		t.Fatalf("handleSecurityAccess() = %v, want positive request-seed response", resp)
	}
	seed := binary.BigEndian.Uint32(resp[2:6])
	if seed != FixedTestSeed {
		t.Errorf("seed = %#x, want %#x", seed, FixedTestSeed)
	}
	if s.Seed != FixedTestSeed {
		t.Errorf("Session.Seed = %#x, want %#x", s.Seed, FixedTestSeed)
	}
}

func TestSecurityAccessRequestSeedAlreadyUnlocked(t *testing.T) {
	s := NewSession()
	s.SecurityUnlocked = true
	resp := handleSecurityAccess(s, []byte{SecurityRequestSeedLevel1})
	want := []byte{SIDSecurityAccess + PositiveResponseOffset, SecurityRequestSeedLevel1, 0, 0, 0, 0}
	if !bytesEqual(resp, want) {
		t.Errorf("handleSecurityAccess() = %v, want all-zero seed %v", resp, want)
	}
}

func TestSecurityAccessSendKeyCorrect(t *testing.T) {
	s := NewSession()
	handleSecurityAccess(s, []byte{SecurityRequestSeedLevel1})

	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, s.Seed^SecurityKeyXOR)
	resp := handleSecurityAccess(s, append([]byte{SecuritySendKeyLevel1}, key...))

	want := []byte{SIDSecurityAccess + PositiveResponseOffset, SecuritySendKeyLevel1}
	if !bytesEqual(resp, want) {
		t.Errorf("handleSecurityAccess() = %v, want %v", resp, want)
	}
	if !s.SecurityUnlocked {
		t.Error("expected SecurityUnlocked after correct key")
	}
	if s.FailedSecurityAttempts != 0 {
		t.Errorf("FailedSecurityAttempts = %d, want 0", s.FailedSecurityAttempts)
	}
}

func TestSecurityAccessSendKeyWrongLocksOutAfterThreeAttempts(t *testing.T) {
	s := NewSession()
	handleSecurityAccess(s, []byte{SecurityRequestSeedLevel1})
	wrongKey := []byte{0, 0, 0, 1}

	for i := 0; i < MaxFailedSecurityAttempts-1; i++ {
		resp := handleSecurityAccess(s, append([]byte{SecuritySendKeyLevel1}, wrongKey...))
		want := []byte{NegativeResponseSID, SIDSecurityAccess, NRCInvalidKey}
		if !bytesEqual(resp, want) {
			t.Fatalf("attempt %d: handleSecurityAccess() = %v, want %v", i+1, resp, want)
		}
	}

	resp := handleSecurityAccess(s, append([]byte{SecuritySendKeyLevel1}, wrongKey...))
	want := []byte{NegativeResponseSID, SIDSecurityAccess, NRCExceededNumberOfAttempts}
	if !bytesEqual(resp, want) {
		t.Errorf("final attempt: handleSecurityAccess() = %v, want %v", resp, want)
	}
	if s.SecurityUnlocked {
		t.Error("expected SecurityUnlocked to remain false after wrong keys")
	}
}

func TestSecurityAccessUnsupportedSubFunction(t *testing.T) {
	s := NewSession()
	resp := handleSecurityAccess(s, []byte{0xFF})
	want := []byte{NegativeResponseSID, SIDSecurityAccess, NRCSubFunctionNotSupported}
	if !bytesEqual(resp, want) {
		t.Errorf("handleSecurityAccess() = %v, want %v", resp, want)
	}
}
