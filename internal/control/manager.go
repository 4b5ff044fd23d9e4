package control

import (
	"fmt"

	"github.com/bmcfleet/fanctl/internal/flightrec"
	"github.com/bmcfleet/fanctl/internal/infrastructure/mqtt"
)

// Telemetry is the optional recorder for zone target changes. The InfluxDB
// client satisfies it; a nil Telemetry disables recording.
type Telemetry interface {
	WriteZoneTarget(zone string, target float64)
}

// Options configures a Manager. Lookup, Signals and Reactor are required.
type Options struct {
	Lookup    Lookup
	Signals   SignalBus
	Reactor   *Reactor
	PolicyDir string
	DumpPath  string

	// DiscoveryDepth bounds bus subtree discovery; 0 means unbounded.
	DiscoveryDepth int

	// Recorder receives flight-recorder entries; a fresh ring is created
	// when nil.
	Recorder *flightrec.Recorder

	Telemetry Telemetry
	Modes     ModeStore

	// SignalTopic builds the broadcast topic for a signal kind and object
	// path. Defaults to the fanctl topic layout.
	SignalTopic func(kind, path string) string

	Logger Logger
}

// Manager is the runtime core: it owns the object cache, the loaded policy
// entities, and the timer and signal machinery, and implements the
// load/reload/dump operations.
//
// All Manager state is reactor-confined. Every entry point that outside
// goroutines may drive (bus callbacks, OS signals, timer expirations) must
// come in through the reactor.
type Manager struct {
	log     Logger
	lookup  Lookup
	signals SignalBus
	reactor *Reactor
	loader  *Loader
	cache   *ObjectCache
	rec     *flightrec.Recorder

	telemetry   Telemetry
	modes       ModeStore
	dumpPath    string
	signalTopic func(kind, path string) string

	profiles       map[string]*Profile
	activeProfiles []string

	zones  map[string]*Zone
	events map[string]*Event
	groups []Group

	timers []*timerEntry
	subs   map[string]*signalSub
	params map[string]any

	loadAllowed bool
	powerOn     bool
}

// New creates a Manager. It performs no bus traffic; call Load on the
// reactor to bring up the configuration.
func New(opts Options) (*Manager, error) {
	if opts.Lookup == nil {
		return nil, fmt.Errorf("control: lookup is required")
	}
	if opts.Signals == nil {
		return nil, fmt.Errorf("control: signal bus is required")
	}
	if opts.Reactor == nil {
		return nil, fmt.Errorf("control: reactor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	rec := opts.Recorder
	if rec == nil {
		rec = flightrec.New(128)
	}
	signalTopic := opts.SignalTopic
	if signalTopic == nil {
		signalTopic = mqtt.Topics{}.Signal
	}

	return &Manager{
		log:         logger,
		lookup:      opts.Lookup,
		signals:     opts.Signals,
		reactor:     opts.Reactor,
		loader:      NewLoader(opts.PolicyDir, logger),
		cache:       NewObjectCache(opts.Lookup, opts.DiscoveryDepth, logger),
		rec:         rec,
		telemetry:   opts.Telemetry,
		modes:       opts.Modes,
		dumpPath:    opts.DumpPath,
		signalTopic: signalTopic,
		profiles:    make(map[string]*Profile),
		zones:       make(map[string]*Zone),
		events:      make(map[string]*Event),
		subs:        make(map[string]*signalSub),
		params:      make(map[string]any),
		loadAllowed: true,
	}, nil
}

// Cache exposes the object cache to collaborators that share it, such as
// the fan health monitor. Reactor-confined like everything else here.
func (m *Manager) Cache() *ObjectCache { return m.cache }

// Reactor returns the reactor all Manager work must run on.
func (m *Manager) Reactor() *Reactor { return m.reactor }

// Load runs the configuration load transaction.
//
// Profiles are recomputed first; zones and fans are loaded under the new
// active-profile set and fans moved into their zones; events are loaded with
// the group registry saved for rollback. Only when every stage succeeds is
// the new state published and enabled. On any failure the previous profiles,
// zones, events and group registry are all left exactly as they were, and a
// later load attempt remains possible.
//
// The object cache deliberately survives a reload so warm telemetry is not
// lost.
func (m *Manager) Load() error {
	if !m.loadAllowed {
		return ErrLoadDisabled
	}

	savedProfiles, savedActive := m.profiles, m.activeProfiles
	fail := func(err error) error {
		m.profiles, m.activeProfiles = savedProfiles, savedActive
		return err
	}

	if err := m.setProfiles(); err != nil {
		return fail(err)
	}

	zones, err := m.loadZones()
	if err != nil {
		return fail(err)
	}
	if err := m.loadFans(zones); err != nil {
		return fail(err)
	}

	savedGroups := m.groups
	m.groups = nil
	events, err := m.loadEvents(zones)
	if err != nil {
		m.groups = savedGroups
		return fail(err)
	}

	// Publish. The previous zone and event sets are dropped here, and all
	// timers and signal subscriptions are re-registered from scratch.
	m.zones = zones
	for _, z := range zones {
		z.Enable()
	}
	m.clearTimers()
	m.clearSignals()
	m.events = events
	for _, e := range events {
		if err := e.Enable(m); err != nil {
			// Only transport failures reach here; configuration collisions
			// were caught at load. The old registrations are already gone,
			// so disable everything rather than run half a policy.
			m.clearTimers()
			m.clearSignals()
			return err
		}
	}

	m.rec.Add("configuration loaded",
		"zones", len(zones), "events", len(events),
		"active_profiles", len(m.activeProfiles))
	m.log.Info("configuration loaded",
		"zones", len(zones), "events", len(events),
		"active_profiles", m.activeProfiles)
	return nil
}

// ReloadConfigs is the reconfiguration entry point (SIGHUP path). On a load
// failure the previous profiles are restored, the running zones and events
// stay untouched, and further loading is disabled — a daemon whose policy
// files no longer parse must be fixed and restarted, not silently retried.
func (m *Manager) ReloadConfigs() {
	savedProfiles, savedActive := m.profiles, m.activeProfiles

	if err := m.Load(); err != nil {
		m.profiles, m.activeProfiles = savedProfiles, savedActive
		m.loadAllowed = false
		m.rec.Add("reload failed", "error", err.Error())
		m.log.Error("reload failed; keeping previous configuration", "error", err)
		return
	}

	m.rec.Add("configuration reloaded")
}

// setProfiles recomputes the profile set and the active-profile list. Both
// are replaced together; a reader never observes one without the other.
func (m *Manager) setProfiles() error {
	cfgs, err := m.loader.Profiles()
	if err != nil {
		return err
	}

	profiles := make(map[string]*Profile, len(cfgs))
	var active []string
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return fmt.Errorf("%w: profile name", ErrMissingField)
		}
		p := &Profile{
			Key:       ConfigKey{Name: cfg.Name, Profiles: cfg.Profiles},
			Static:    cfg.Active,
			Path:      cfg.Path,
			Interface: cfg.Interface,
			Property:  cfg.Property,
			Value:     cfg.Value,
		}
		profiles[p.Key.String()] = p
		if p.Active(m.cache) {
			active = append(active, p.Key.Name)
		}
	}

	m.profiles, m.activeProfiles = profiles, active
	return nil
}

// entityActive reports whether an entity tagged with the given profiles is
// included under the current active set. No tags means always included.
func (m *Manager) entityActive(profiles []string) bool {
	if len(profiles) == 0 {
		return true
	}
	for _, p := range profiles {
		if m.profileActive(p) {
			return true
		}
	}
	return false
}

func (m *Manager) profileActive(name string) bool {
	for _, a := range m.activeProfiles {
		if a == name {
			return true
		}
	}
	return false
}

// InConfig is the configuration matching predicate. A requested key matches
// a candidate when their names are equal and either the requester specifies
// no profiles, or at least one requested profile is both declared by the
// candidate and currently active.
func (m *Manager) InConfig(requested, candidate ConfigKey) bool {
	if requested.Name != candidate.Name {
		return false
	}
	if len(requested.Profiles) == 0 {
		return true
	}
	for _, p := range requested.Profiles {
		if candidate.declares(p) && m.profileActive(p) {
			return true
		}
	}
	return false
}

func (m *Manager) loadZones() (map[string]*Zone, error) {
	cfgs, err := m.loader.Zones()
	if err != nil {
		return nil, err
	}

	zones := make(map[string]*Zone)
	for _, cfg := range cfgs {
		if !m.entityActive(cfg.Profiles) {
			continue
		}
		z, err := newZone(cfg, m.modes, m.log)
		if err != nil {
			return nil, err
		}
		key := z.Key.String()
		if _, dup := zones[key]; dup {
			return nil, fmt.Errorf("%w: duplicate zone %q", ErrPolicyFile, key)
		}
		zones[key] = z
	}
	return zones, nil
}

// loadFans constructs fans and moves each into the zone it names. A fan
// naming a zone outside the loaded set is a hard load error.
func (m *Manager) loadFans(zones map[string]*Zone) error {
	cfgs, err := m.loader.Fans()
	if err != nil {
		return err
	}

	for _, cfg := range cfgs {
		if !m.entityActive(cfg.Profiles) {
			continue
		}
		f, err := newFan(cfg, m.cache, m.lookup, m.log)
		if err != nil {
			return err
		}

		requested := ConfigKey{Name: f.ZoneName, Profiles: f.Key.Profiles}
		var zone *Zone
		for _, z := range zones {
			if m.InConfig(requested, z.Key) {
				zone = z
				break
			}
		}
		if zone == nil {
			return fmt.Errorf("%w: %q for fan %q", ErrUnknownZone, f.ZoneName, f.Name)
		}
		zone.AddFan(f)
	}
	return nil
}

func (m *Manager) loadEvents(zones map[string]*Zone) (map[string]*Event, error) {
	groupDefs, err := m.loader.Groups()
	if err != nil {
		return nil, err
	}
	cfgs, err := m.loader.Events()
	if err != nil {
		return nil, err
	}

	events := make(map[string]*Event)
	for _, cfg := range cfgs {
		if !m.entityActive(cfg.Profiles) {
			continue
		}
		e, err := newEvent(m, cfg, zones, groupDefs)
		if err != nil {
			return nil, err
		}
		key := e.Key.String()
		if _, dup := events[key]; dup {
			return nil, fmt.Errorf("%w: duplicate event %q", ErrPolicyFile, key)
		}
		events[key] = e
	}

	// Timer registrations are unique per (type, name) across the whole event
	// set. Colliding ones must fail here, while the previous registrations
	// are still intact — by enable time they are already gone.
	seen := make(map[string]bool)
	for _, e := range events {
		for _, tt := range e.timers {
			k := tt.typ.String() + "|" + e.Name
			if seen[k] {
				return nil, fmt.Errorf("%w: %s %q", ErrDuplicateTimer, tt.typ, e.Name)
			}
			seen[k] = true
		}
	}
	return events, nil
}

// PowerStateChanged reacts to a power-good transition.
//
// Power-on with no zones enabled is fatal: it means no cooling policy
// exists. Otherwise every zone is driven to its power-on target and each
// event's power-on trigger fires. Power-off fires the power-off triggers and
// leaves zone targets alone; physical shutdown is the power sequencer's
// business.
func (m *Manager) PowerStateChanged(on bool) error {
	m.powerOn = on
	m.rec.Add("power state changed", "on", on)

	if !on {
		for _, e := range m.events {
			if !e.powerOff {
				continue
			}
			for _, a := range e.Actions {
				a.Run()
			}
		}
		return nil
	}

	if len(m.zones) == 0 {
		return ErrNoZones
	}

	for _, z := range m.zones {
		z.SetTarget(z.PowerOnTarget)
		m.recordZoneTarget(z)
	}
	for _, e := range m.events {
		if !e.powerOn {
			continue
		}
		for _, g := range e.Groups {
			m.RefreshGroup(g)
		}
		for _, a := range e.Actions {
			a.Run()
		}
	}
	return nil
}

// PowerOn reports the last power state seen.
func (m *Manager) PowerOn() bool { return m.powerOn }

// RequestDump schedules a diagnostic dump for the next reactor idle slot, so
// it never delays in-progress signal handling.
func (m *Manager) RequestDump() {
	m.reactor.Defer(m.dump)
}

// SetParameter stores an ad-hoc named parameter. Parameters are shared
// scratch state between events and appear in the diagnostic dump.
func (m *Manager) SetParameter(name string, value any) {
	m.params[name] = value
}

// Parameter reads a named parameter.
func (m *Manager) Parameter(name string) (any, bool) {
	value, ok := m.params[name]
	return value, ok
}

// DeleteParameter removes a named parameter.
func (m *Manager) DeleteParameter(name string) {
	delete(m.params, name)
}

// ActiveProfiles returns a copy of the currently active profile names.
func (m *Manager) ActiveProfiles() []string {
	out := make([]string, len(m.activeProfiles))
	copy(out, m.activeProfiles)
	return out
}

// Zones returns the live zones.
func (m *Manager) Zones() []*Zone {
	out := make([]*Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	return out
}

func (m *Manager) recordZoneTarget(z *Zone) {
	if m.telemetry != nil {
		m.telemetry.WriteZoneTarget(z.Name, float64(z.Target()))
	}
}
