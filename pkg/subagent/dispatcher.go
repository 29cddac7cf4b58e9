// Package subagent pkg/subagent/dispatcher.go
//
// Mapping of inbound Get/GetNext/GetBulk search ranges onto region
// snapshots.
package subagent

import (
	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/oid"
)

// regionFor returns the region whose subtree contains o.
func (s *Session) regionFor(o oid.OID) *Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.regions {
		if r.contains(o) {
			return r
		}
	}

	return nil
}

// regionForRange returns the region a search range targets: the one
// containing the start OID, or else the first region whose root falls
// inside the range.
func (s *Session) regionForRange(sr agentx.SearchRange) *Region {
	if r := s.regionFor(sr.Start); r != nil {
		return r
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Region

	for _, r := range s.regions {
		if r.root.Compare(sr.Start) <= 0 {
			continue
		}

		if sr.End != nil && r.root.Compare(sr.End) >= 0 {
			continue
		}

		if best == nil || r.root.Compare(best.root) < 0 {
			best = r
		}
	}

	return best
}

// handleGet answers exact lookups: one varbind per range start.
func (s *Session) handleGet(p *agentx.Get) *agentx.Response {
	vbs := make([]agentx.VarBind, 0, len(p.Ranges))

	for _, sr := range p.Ranges {
		vbs = append(vbs, s.getOne(sr.Start))
	}

	return s.buildResponse(vbs)
}

// getOne resolves a single name. Outside every region the name does
// not exist as an object; inside a region any miss, interior node
// included, is a missing instance.
func (s *Session) getOne(name oid.OID) agentx.VarBind {
	region := s.regionFor(name)
	if region == nil {
		return agentx.VarBind{Name: name, Value: agentx.NoSuchObjectValue()}
	}

	snap := region.Snapshot()
	if snap == nil {
		return agentx.VarBind{Name: name, Value: agentx.NoSuchInstanceValue()}
	}

	v, ok := snap.Get(name)
	if !ok {
		return agentx.VarBind{Name: name, Value: agentx.NoSuchInstanceValue()}
	}

	return agentx.VarBind{Name: name, Value: v}
}

// handleGetNext answers successor lookups: one varbind per range.
func (s *Session) handleGetNext(p *agentx.GetNext) *agentx.Response {
	vbs := make([]agentx.VarBind, 0, len(p.Ranges))

	for _, sr := range p.Ranges {
		vbs = append(vbs, s.nextOne(sr))
	}

	return s.buildResponse(vbs)
}

// nextOne advances one search range by a single step.
func (s *Session) nextOne(sr agentx.SearchRange) agentx.VarBind {
	endOfView := agentx.VarBind{Name: sr.Start, Value: agentx.EndOfMibViewValue()}

	region := s.regionForRange(sr)
	if region == nil {
		return endOfView
	}

	snap := region.Snapshot()
	if snap == nil {
		return endOfView
	}

	// A collapsed range is an exact lookup governed by the include
	// flag.
	if sr.End != nil && sr.Start.Compare(sr.End) == 0 {
		if sr.Include {
			if v, ok := snap.Get(sr.Start); ok {
				return agentx.VarBind{Name: sr.Start, Value: v}
			}
		}

		return endOfView
	}

	start, include := sr.Start, sr.Include

	// Ranges may open below the region root when the master probes
	// from a boundary; clamp to the root.
	if start.Compare(region.root) < 0 {
		start, include = region.root, true
	}

	key, v, ok := snap.Successor(start, include)
	if !ok || !region.contains(key) {
		return endOfView
	}

	if sr.End != nil && key.Compare(sr.End) >= 0 {
		return endOfView
	}

	return agentx.VarBind{Name: key, Value: v}
}

// handleGetBulk answers like GetNext for the first NonRepeaters ranges
// and then repeats the rest, each repetition advancing every remaining
// range by one step. Emission order is range-major within a
// repetition: r1-rep1, r2-rep1, ..., r1-rep2, r2-rep2, ...
func (s *Session) handleGetBulk(p *agentx.GetBulk) *agentx.Response {
	var vbs []agentx.VarBind

	n := int(p.NonRepeaters)
	if n > len(p.Ranges) {
		n = len(p.Ranges)
	}

	for _, sr := range p.Ranges[:n] {
		vbs = append(vbs, s.nextOne(sr))
	}

	type cursor struct {
		sr   agentx.SearchRange
		done bool
	}

	cursors := make([]cursor, 0, len(p.Ranges)-n)
	for _, sr := range p.Ranges[n:] {
		cursors = append(cursors, cursor{sr: sr})
	}

	for rep := 0; rep < int(p.MaxRepetitions); rep++ {
		progressed := false

		for i := range cursors {
			c := &cursors[i]
			if c.done {
				continue
			}

			vb := s.nextOne(c.sr)
			vbs = append(vbs, vb)

			if vb.Value.Type == agentx.TypeEndOfMibView {
				c.done = true
				continue
			}

			c.sr.Start = vb.Name
			c.sr.Include = false
			progressed = true
		}

		if !progressed {
			break
		}
	}

	return s.buildResponse(vbs)
}

// buildResponse wraps varbinds in a Response. If any value fails wire
// validation the reply degrades to genErr with the 1-based offending
// index and all values nulled, so the master still sees every name.
func (s *Session) buildResponse(vbs []agentx.VarBind) *agentx.Response {
	for i, vb := range vbs {
		if err := vb.Value.Validate(); err == nil {
			continue
		}

		nulled := make([]agentx.VarBind, len(vbs))
		for j, orig := range vbs {
			nulled[j] = agentx.VarBind{Name: orig.Name, Value: agentx.NullValue()}
		}

		resp := s.newResponse(agentx.GenErr, uint16(i+1))
		resp.VarBinds = nulled

		return resp
	}

	resp := s.newResponse(agentx.NoAgentXError, 0)
	resp.VarBinds = vbs

	return resp
}
