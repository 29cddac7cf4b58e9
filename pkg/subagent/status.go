// Package subagent pkg/subagent/status.go

package subagent

import "time"

// Status is a point-in-time view of the session for the status API.
type Status struct {
	State     string         `json:"state"`
	SessionID uint32         `json:"session_id"`
	Master    string         `json:"master"`
	Uptime    string         `json:"uptime,omitempty"`
	Regions   []RegionStatus `json:"regions"`
}

// RegionStatus describes one region.
type RegionStatus struct {
	Root        string    `json:"root"`
	Priority    uint8     `json:"priority"`
	Registered  bool      `json:"registered"`
	Error       string    `json:"error,omitempty"`
	Bindings    int       `json:"bindings"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
}

// Status reports the session and region state.
func (s *Session) Status() Status {
	s.mu.RLock()
	st := Status{
		State:     s.state.String(),
		SessionID: s.sessionID,
		Master:    s.cfg.MasterAddress,
	}

	if !s.startedAt.IsZero() && s.state == StateActive {
		st.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}

	regions := append([]*Region(nil), s.regions...)
	s.mu.RUnlock()

	for _, r := range regions {
		rs := RegionStatus{
			Root:     r.root.String(),
			Priority: r.priority,
		}

		if snap := r.Snapshot(); snap != nil {
			rs.Bindings = snap.Len()
		}

		r.mu.Lock()
		rs.Registered = r.registered
		rs.LastRefresh = r.lastRefresh

		if r.lastErr != nil {
			rs.Error = r.lastErr.Error()
		}
		r.mu.Unlock()

		st.Regions = append(st.Regions, rs)
	}

	return st
}
