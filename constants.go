package doip

import "github.com/doipgw/doip/internal/constants"

// Re-exported for callers that only need the wire constants, not the full
// Config type.
const (
	DefaultUDPPort    = constants.UDPPort
	DefaultTCPPort    = constants.TCPPort
	VINLength         = constants.VINLength
	EIDLength         = constants.EIDLength
	GIDLength         = constants.GIDLength
	TesterAddressLow  = constants.TesterAddressRangeLow
	TesterAddressHigh = constants.TesterAddressRangeHigh
)
