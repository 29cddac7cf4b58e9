package subagent

import "errors"

var (
	ErrConnection     = errors.New("connection error")
	ErrTimeout        = errors.New("timeout")
	ErrRegistration   = errors.New("registration rejected by master")
	ErrOpenFailed     = errors.New("session open rejected by master")
	ErrSessionRunning = errors.New("session already running")
	ErrSessionClosed  = errors.New("session closed")
	ErrMasterClosed   = errors.New("session closed by master")
	ErrDesync         = errors.New("byte stream desynchronized")
	ErrPDUDropped     = errors.New("unusable PDU dropped")
	ErrRegionOverlap  = errors.New("region overlaps an existing registration")
	ErrNoUpdater      = errors.New("region requires an updater")

	errUpdaterPanic          = errors.New("updater panicked")
	errMasterAddressRequired = errors.New("master address is required")
	errAgentIDRequired       = errors.New("agent id is required")
	errTimeoutTooLarge       = errors.New("session timeout exceeds 255 seconds")
	errIntervalTooSmall      = errors.New("refresh interval must be at least one second")
)
