package doip

import (
	"time"

	"github.com/doipgw/doip/internal/constants"
)

// Config describes one DoIP entity's identity and timing parameters.
type Config struct {
	// VIN is the vehicle identification number, exactly 17 ASCII bytes.
	// Shorter strings are right-padded with 0x00 by DefaultConfig.
	VIN string

	// EID is the entity ID, typically a MAC address (6 bytes).
	EID [constants.EIDLength]byte

	// GID is the group ID (6 bytes), shared by entities on the same gateway.
	GID [constants.GIDLength]byte

	// LogicalAddress is this entity's DoIP logical address.
	LogicalAddress uint16

	// MaxConnections bounds concurrent TCP tester connections, activated or
	// not; an accept beyond it is closed immediately.
	MaxConnections int

	// UDPPort and TCPPort default to 13400 per ISO 13400-2.
	UDPPort int
	TCPPort int

	// InitialInactivityTimeout bounds how long a TCP connection may sit
	// without a successful RoutingActivation before being closed.
	InitialInactivityTimeout time.Duration

	// GeneralInactivityTimeout bounds how long an activated connection may
	// go without a routing activation, diagnostic message or alive-check
	// response before the entity sends an AliveCheckReq; the connection is
	// closed if that check then goes unanswered for AliveCheckTimeout.
	GeneralInactivityTimeout time.Duration

	// AliveCheckTimeout bounds how long the entity waits for an Alive
	// Check response once sent.
	AliveCheckTimeout time.Duration
}

// DefaultConfig returns a Config with ISO 13400-2 default timings and the
// given VIN, padding or truncating it to exactly VINLength bytes.
func DefaultConfig(vin string) Config {
	vinBytes := [constants.VINLength]byte{}
	copy(vinBytes[:], vin)

	return Config{
		VIN:                      string(vinBytes[:]),
		LogicalAddress:           0x0001,
		MaxConnections:           constants.DefaultMaxConnections,
		UDPPort:                  constants.UDPPort,
		TCPPort:                  constants.TCPPort,
		InitialInactivityTimeout: time.Duration(constants.DefaultInitialInactivityTimeMs) * time.Millisecond,
		GeneralInactivityTimeout: time.Duration(constants.DefaultGeneralInactivityTimeMs) * time.Millisecond,
		AliveCheckTimeout:        time.Duration(constants.DefaultAliveCheckTimeMs) * time.Millisecond,
	}
}
