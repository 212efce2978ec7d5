// Package migration moves datacenter traffic out of harm's way before
// a disaster strikes and manages each ISP's policy posture while it
// does so.
package migration

import (
	"fmt"
	"sort"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/routing"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// ISPRuntime tracks which routing policy an ISP currently operates
// under. The active pointer starts at the primary policy and is
// swapped by the migration controller as the disaster timeline
// advances.
type ISPRuntime struct {
	ISP *model.ISP

	primary  *routing.Policy
	disaster *routing.Policy
	active   *routing.Policy
}

// Active returns the policy currently in force.
func (r *ISPRuntime) Active() *routing.Policy { return r.active }

// InDisasterMode reports whether the disaster policy is in force.
func (r *ISPRuntime) InDisasterMode() bool { return r.active == r.disaster && r.disaster != r.primary }

// EnterDisasterMode swaps the active policy to the disaster variant.
func (r *ISPRuntime) EnterDisasterMode() { r.active = r.disaster }

// ExitDisasterMode restores the primary policy.
func (r *ISPRuntime) ExitDisasterMode() { r.active = r.primary }

// Fleet holds the runtime state of every ISP plus a fallback policy
// for traffic that belongs to no configured provider.
type Fleet struct {
	byID     map[int]*ISPRuntime
	fallback *routing.Policy
}

// NewFleet builds runtimes for all ISPs. An ISP with no disaster
// policy configured keeps its primary one in both modes.
func NewFleet(eng *routing.Engine, isps []*model.ISP, fallbackKind model.PolicyKind) (*Fleet, error) {
	fallback, err := eng.PolicyFor(fallbackKind, nil)
	if err != nil {
		return nil, fmt.Errorf("fleet fallback policy: %w", err)
	}
	f := &Fleet{byID: make(map[int]*ISPRuntime, len(isps)), fallback: fallback}
	for _, isp := range isps {
		primary, err := eng.PolicyFor(isp.PrimaryPolicy, isp)
		if err != nil {
			return nil, fmt.Errorf("ISP %d primary policy: %w", isp.ID, err)
		}
		disaster := primary
		if isp.DisasterPolicy != "" && isp.DisasterPolicy != isp.PrimaryPolicy {
			disaster, err = eng.PolicyFor(isp.DisasterPolicy, isp)
			if err != nil {
				return nil, fmt.Errorf("ISP %d disaster policy: %w", isp.ID, err)
			}
		}
		f.byID[isp.ID] = &ISPRuntime{ISP: isp, primary: primary, disaster: disaster, active: primary}
	}
	return f, nil
}

// Runtime returns the runtime for one ISP.
func (f *Fleet) Runtime(id int) (*ISPRuntime, bool) {
	rt, ok := f.byID[id]
	return rt, ok
}

// Runtimes returns all runtimes in ascending ISP order.
func (f *Fleet) Runtimes() []*ISPRuntime {
	out := make([]*ISPRuntime, 0, len(f.byID))
	for _, rt := range f.byID {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISP.ID < out[j].ISP.ID })
	return out
}

// ActivePolicy resolves the policy a request owned by the given ISP
// routes through right now. Unknown ISPs get the fallback.
func (f *Fleet) ActivePolicy(id int) *routing.Policy {
	if rt, ok := f.byID[id]; ok {
		return rt.Active()
	}
	return f.fallback
}
