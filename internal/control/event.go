package control

import (
	"fmt"
	"time"
)

// timerTrigger is a parsed timer trigger awaiting enable.
type timerTrigger struct {
	typ      TimerType
	interval time.Duration
	refresh  bool
}

// signalTrigger is a parsed signal trigger awaiting enable.
type signalTrigger struct {
	kind    string
	handler SignalHandler
	target  SignalTarget
}

// Event binds groups, actions and triggers into one unit of policy. An
// event owns its groups and actions exclusively; enabling it registers its
// timers and signal subscriptions with the manager.
type Event struct {
	Key     ConfigKey
	Name    string
	Groups  []Group
	Actions []Action

	timers   []timerTrigger
	signals  []signalTrigger
	powerOn  bool
	powerOff bool
}

// newEvent builds an event from its policy entry. Group references are
// resolved against the group definitions and registered with the manager's
// group registry as a construction side effect; actions are resolved against
// the zone set being loaded. Any unresolvable reference aborts the load.
func newEvent(m *Manager, cfg eventConfig, zones map[string]*Zone, groupDefs []groupConfig) (*Event, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: event name", ErrMissingField)
	}

	e := &Event{
		Key:  ConfigKey{Name: cfg.Name, Profiles: cfg.Profiles},
		Name: cfg.Name,
	}

	for _, ref := range cfg.Groups {
		def, ok := findGroupDef(m, ref, groupDefs)
		if !ok {
			return nil, fmt.Errorf("%w: %q in event %q", ErrUnknownGroup, ref.Name, cfg.Name)
		}
		if ref.Interface == "" || ref.Property == "" {
			return nil, fmt.Errorf("%w: event %q group %q interface/property",
				ErrMissingField, cfg.Name, ref.Name)
		}
		e.Groups = append(e.Groups, Group{
			Name:      ref.Name,
			Service:   ref.Service,
			Interface: ref.Interface,
			Property:  ref.Property,
			Members:   def.Members,
		})
	}

	for _, ac := range cfg.Actions {
		action, err := newAction(m, ac, zones)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", cfg.Name, err)
		}
		e.Actions = append(e.Actions, action)
	}

	for _, tr := range cfg.Triggers {
		if err := e.addTrigger(tr); err != nil {
			return nil, fmt.Errorf("event %q: %w", cfg.Name, err)
		}
	}

	// Construction registers the event's groups globally; the load
	// transaction saves and restores this registry around event loading.
	m.groups = append(m.groups, e.Groups...)
	return e, nil
}

// findGroupDef locates the group definition matching a reference, honoring
// the reference's profile constraints.
func findGroupDef(m *Manager, ref eventGroupRef, defs []groupConfig) (groupConfig, bool) {
	requested := ConfigKey{Name: ref.Name, Profiles: ref.Profiles}
	for _, def := range defs {
		candidate := ConfigKey{Name: def.Name, Profiles: def.Profiles}
		if m.InConfig(requested, candidate) {
			return def, true
		}
	}
	return groupConfig{}, false
}

func (e *Event) addTrigger(tr triggerConfig) error {
	switch tr.Class {
	case "timer":
		typ := Repeating
		if tr.Type == "oneshot" {
			typ = OneShot
		}
		if tr.IntervalSec == nil {
			return fmt.Errorf("%w: timer trigger interval", ErrMissingField)
		}
		refresh := true
		if tr.Refresh != nil {
			refresh = *tr.Refresh
		}
		e.timers = append(e.timers, timerTrigger{
			typ:      typ,
			interval: time.Duration(*tr.IntervalSec * float64(time.Second)),
			refresh:  refresh,
		})
		return nil

	case "signal":
		handler, ok := handlerByName(tr.Signal)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownHandler, tr.Signal)
		}
		e.signals = append(e.signals, signalTrigger{
			kind:    tr.Signal,
			handler: handler,
			target: SignalTarget{
				Path:      tr.Path,
				Service:   tr.Service,
				Interface: tr.Interface,
				Property:  tr.Property,
			},
		})
		return nil

	case "poweron":
		e.powerOn = true
		return nil

	case "poweroff":
		e.powerOff = true
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownTrigger, tr.Class)
}

// Enable registers the event's timers and signal subscriptions. Called once
// per load, after the previous event set's registrations were cleared.
func (e *Event) Enable(m *Manager) error {
	for _, tt := range e.timers {
		payload := TimerPayload{
			Refresh: tt.refresh,
			Groups:  e.Groups,
			Actions: e.Actions,
			Name:    e.Name,
		}
		if err := m.AddTimer(tt.typ, tt.interval, payload); err != nil {
			return fmt.Errorf("event %q: %w", e.Name, err)
		}
	}

	for _, st := range e.signals {
		topic := m.signalTopic(st.kind, st.target.Path)
		pkg := &SignalPkg{Handler: st.handler, Target: st.target, Actions: e.Actions}
		if err := m.AddSignal(topic, pkg); err != nil {
			return fmt.Errorf("event %q: %w", e.Name, err)
		}
	}

	return nil
}
