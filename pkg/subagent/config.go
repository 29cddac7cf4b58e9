// Package subagent pkg/subagent/config.go

package subagent

import (
	"fmt"
	"time"

	"github.com/snmpkit/agentx/pkg/config"
	"github.com/snmpkit/agentx/pkg/oid"
)

const (
	// DefaultTimeout is the session timeout offered in the Open PDU.
	DefaultTimeout = 60 * time.Second

	// DefaultPingInterval paces keepalive Pings on an idle session.
	DefaultPingInterval = 30 * time.Second

	// DefaultRefreshInterval is the updater cadence when a region
	// does not set one.
	DefaultRefreshInterval = 30 * time.Second

	maxSessionTimeout = 255 * time.Second // u8 seconds on the wire

	minRefreshInterval = time.Second
)

// Config holds the session-level settings of a subagent.
type Config struct {
	// MasterAddress is the master agent endpoint: "host:port",
	// "tcp://host:port", "unix:///path", or an absolute socket path.
	MasterAddress string `json:"master_address"`

	// AgentID is the subagent's identifying OID, sent in Open.
	AgentID string `json:"agent_id"`

	// Description accompanies AgentID in Open.
	Description string `json:"description"`

	// Timeout is the session timeout negotiated with the master and
	// the bound used when garbage-collecting abandoned SET
	// transactions.
	Timeout config.Duration `json:"timeout"`

	// PingInterval paces keepalives; zero means the default,
	// negative disables them.
	PingInterval config.Duration `json:"ping_interval"`

	// DisableReconnect turns off automatic reconnection after a
	// transport failure.
	DisableReconnect bool `json:"disable_reconnect,omitempty"`

	// ListenAddr is where the status and metrics HTTP server binds.
	ListenAddr string `json:"listen_addr,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.MasterAddress == "" {
		return errMasterAddressRequired
	}

	if c.AgentID == "" {
		return errAgentIDRequired
	}

	if _, err := oid.Parse(c.AgentID); err != nil {
		return fmt.Errorf("agent_id: %w", err)
	}

	if time.Duration(c.Timeout) == 0 {
		c.Timeout = config.Duration(DefaultTimeout)
	}

	if time.Duration(c.Timeout) > maxSessionTimeout {
		return errTimeoutTooLarge
	}

	if time.Duration(c.PingInterval) == 0 {
		c.PingInterval = config.Duration(DefaultPingInterval)
	}

	return nil
}

// timeoutSeconds converts the session timeout to the Open PDU's u8
// seconds field.
func (c *Config) timeoutSeconds() uint8 {
	secs := int64(time.Duration(c.Timeout) / time.Second)
	if secs < 1 {
		secs = 1
	}

	if secs > 255 {
		secs = 255
	}

	return uint8(secs)
}
