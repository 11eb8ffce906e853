// Package uds implements the session/security state machine and service
// handlers of a UDS (ISO 14229) request dispatcher.
package uds

// Service IDs (SID). Only the five marked "implemented" below have
// handlers wired into the dispatch table; the rest are carried here so an
// embedding application wiring additional handlers has the ISO names
// available, the same way the original firmware declares more SIDs than
// it implements.
const (
	SIDDiagnosticSessionControl = 0x10 // implemented
	SIDECUReset                 = 0x11 // implemented
	SIDSecurityAccess           = 0x27 // implemented
	SIDCommunicationControl     = 0x28
	SIDTesterPresent            = 0x3E // implemented
	SIDControlDTCSetting        = 0x85
	SIDReadDataByIdentifier     = 0x22 // implemented
	SIDReadMemoryByAddress      = 0x23
	SIDWriteDataByIdentifier    = 0x2E
	SIDWriteMemoryByAddress     = 0x3D
	SIDClearDiagnosticInfo      = 0x14
	SIDReadDTCInformation       = 0x19
	SIDInputOutputControl       = 0x2F
	SIDRoutineControl           = 0x31
	SIDRequestDownload          = 0x34
	SIDRequestUpload            = 0x35
	SIDTransferData             = 0x36
	SIDRequestTransferExit      = 0x37
)

// PositiveResponseOffset is added to the request SID to form a positive
// response's first byte.
const PositiveResponseOffset = 0x40

// NegativeResponseSID is the first byte of every negative response.
const NegativeResponseSID = 0x7F

// Negative Response Codes (NRC).
const (
	NRCGeneralReject               = 0x10
	NRCServiceNotSupported         = 0x11
	NRCSubFunctionNotSupported     = 0x12
	NRCIncorrectMessageLength      = 0x13
	NRCConditionsNotCorrect        = 0x22
	NRCRequestSequenceError        = 0x24
	NRCRequestOutOfRange           = 0x31
	NRCSecurityAccessDenied        = 0x33
	NRCInvalidKey                  = 0x35
	NRCExceededNumberOfAttempts    = 0x36
	NRCRequiredTimeDelayNotExpired = 0x37
)

// Diagnostic session types.
const (
	SessionDefault     = 0x01
	SessionProgramming = 0x02
	SessionExtended    = 0x03
)

// ECU reset types.
const (
	ResetHard      = 0x01
	ResetKeyOffOn  = 0x02
	ResetSoft      = 0x03
)

// Security access sub-functions (level 1).
const (
	SecurityRequestSeedLevel1 = 0x01
	SecuritySendKeyLevel1     = 0x02
)

// SecurityKeyXOR is the constant the fixed test seed is XORed with to
// derive the expected key.
const SecurityKeyXOR = 0xA5A5A5A5

// FixedTestSeed is the seed value generated by RequestSeed. The original
// firmware generates a fixed value rather than a true PRNG; carried over
// verbatim since a documented end-to-end scenario is written against
// this exact value.
const FixedTestSeed = 0x12345678

// MaxFailedSecurityAttempts is the lockout threshold: once reached,
// SendKey responses switch from NRCInvalidKey to NRCExceededNumberOfAttempts.
const MaxFailedSecurityAttempts = 3

// Data Identifiers (DID) recognized by ReadDataByIdentifier.
const (
	DIDVIN                = 0xF190
	DIDECUSerialNumber    = 0xF18C
	DIDSystemSupplierID   = 0xF18A
	DIDECUSoftwareNumber  = 0xF194
	DIDECUHardwareNumber  = 0xF191
	DIDFingerprint        = 0xF15B
)

// TesterPresent sub-functions.
const (
	TesterPresentWithResponse = 0x00
	TesterPresentSuppressResp = 0x80
)
