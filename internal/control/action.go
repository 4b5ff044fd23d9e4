package control

import "fmt"

// Action is one unit of control policy, run when a trigger fires. Actions
// read cached telemetry and mutate zone or manager state; they never fail
// outward — problems are logged and the remaining actions still run.
type Action interface {
	Run()
}

// newAction builds an action from its policy entry, resolving zone
// references against the zone set being loaded. Unresolvable references and
// missing fields abort the load.
func newAction(m *Manager, cfg actionConfig, zones map[string]*Zone) (Action, error) {
	resolveZone := func() (*Zone, error) {
		if cfg.Zone == "" {
			return nil, fmt.Errorf("%w: action %q zone", ErrMissingField, cfg.Name)
		}
		for _, z := range zones {
			if z.Name == cfg.Zone {
				return z, nil
			}
		}
		return nil, fmt.Errorf("%w: %q in action %q", ErrUnknownZone, cfg.Zone, cfg.Name)
	}

	switch cfg.Name {
	case "set_target":
		zone, err := resolveZone()
		if err != nil {
			return nil, err
		}
		if cfg.Target == nil {
			return nil, fmt.Errorf("%w: set_target target", ErrMissingField)
		}
		return &setTargetAction{m: m, zone: zone, target: *cfg.Target}, nil

	case "set_floor":
		zone, err := resolveZone()
		if err != nil {
			return nil, err
		}
		if cfg.Floor == nil {
			return nil, fmt.Errorf("%w: set_floor floor", ErrMissingField)
		}
		return &setFloorAction{zone: zone, floor: *cfg.Floor}, nil

	case "set_parameter":
		if cfg.Parameter == "" {
			return nil, fmt.Errorf("%w: set_parameter parameter", ErrMissingField)
		}
		return &setParameterAction{m: m, name: cfg.Parameter, value: cfg.Value}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cfg.Name)
}

// setTargetAction drives a zone to a fixed target.
type setTargetAction struct {
	m      *Manager
	zone   *Zone
	target uint64
}

func (a *setTargetAction) Run() {
	a.zone.SetTarget(a.target)
	a.m.recordZoneTarget(a.zone)
}

// setFloorAction moves a zone's floor.
type setFloorAction struct {
	zone  *Zone
	floor uint64
}

func (a *setFloorAction) Run() {
	a.zone.SetFloor(a.floor)
}

// setParameterAction writes an ad-hoc named parameter on the manager.
// Parameters are shared scratch state between events and show up in the
// diagnostic dump.
type setParameterAction struct {
	m     *Manager
	name  string
	value any
}

func (a *setParameterAction) Run() {
	a.m.SetParameter(a.name, a.value)
}
