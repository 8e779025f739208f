package status

import (
	"github.com/leozw/vessel-guardian/internal/core"
)

// Derive maps a vessel's active port call to its coarse status.
func Derive(active *core.PortCall) core.VesselStatus {
	if active == nil {
		return core.StatusAtSea
	}
	switch active.Status {
	case core.PortCallPlanned:
		return core.StatusInbound
	case core.PortCallInProgress:
		return core.StatusInPort
	default:
		return core.StatusAtSea
	}
}

// FromNavStatus recovers the status recorded on a stored position. Records that carry
// no status (or a vendor navigational status string) yield false.
func FromNavStatus(navStatus *string) (core.VesselStatus, bool) {
	if navStatus == nil {
		return "", false
	}
	s := core.VesselStatus(*navStatus)
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Change is a detected status transition.
type Change struct {
	Previous *core.VesselStatus
	Current  core.VesselStatus
}

// Transition diffs the freshly derived status against the status implied by the
// previous stored position. A vessel seen for the first time only produces a change
// when it is not at sea, so a fresh AT_SEA vessel stays quiet.
func Transition(prev *core.PositionRecord, current core.VesselStatus) (Change, bool) {
	var previous core.VesselStatus
	var ok bool
	if prev != nil {
		previous, ok = FromNavStatus(prev.NavStatus)
	}

	if !ok {
		if current == core.StatusAtSea {
			return Change{}, false
		}
		return Change{Current: current}, true
	}
	if previous == current {
		return Change{}, false
	}
	return Change{Previous: &previous, Current: current}, true
}

// Stamp records status on the position so the next cycle can diff against it.
func Stamp(rec *core.PositionRecord, s core.VesselStatus) {
	v := string(s)
	rec.NavStatus = &v
}
