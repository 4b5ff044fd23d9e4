package control

import (
	"errors"
	"testing"
)

func TestInConfig(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeLookup())
	m.activeProfiles = []string{"p1"}

	tests := []struct {
		name      string
		requested ConfigKey
		candidate ConfigKey
		want      bool
	}{
		{
			name:      "empty requested profiles match anything with same name",
			requested: ConfigKey{Name: "A"},
			candidate: ConfigKey{Name: "A", Profiles: []string{"p1"}},
			want:      true,
		},
		{
			name:      "requested profile not declared by candidate",
			requested: ConfigKey{Name: "A", Profiles: []string{"p1"}},
			candidate: ConfigKey{Name: "A", Profiles: []string{"p2"}},
			want:      false,
		},
		{
			name:      "requested profile declared and active",
			requested: ConfigKey{Name: "A", Profiles: []string{"p1"}},
			candidate: ConfigKey{Name: "A", Profiles: []string{"p1", "p2"}},
			want:      true,
		},
		{
			name:      "requested profile declared but inactive",
			requested: ConfigKey{Name: "A", Profiles: []string{"p2"}},
			candidate: ConfigKey{Name: "A", Profiles: []string{"p2"}},
			want:      false,
		},
		{
			name:      "names differ",
			requested: ConfigKey{Name: "A", Profiles: []string{"p1"}},
			candidate: ConfigKey{Name: "B", Profiles: []string{"p1"}},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.InConfig(tt.requested, tt.candidate); got != tt.want {
				t.Errorf("InConfig(%v, %v) = %v, want %v",
					tt.requested, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestLoadSyncsZoneTargetToLiveFan(t *testing.T) {
	lookup := newFakeLookup()
	lookup.addObject("/sys/fans/fan0", "svc.fans", "control.FanSpeed")
	lookup.values[valueKey("/sys/fans/fan0", "control.FanSpeed", "Target")] = float64(7000)

	m, _, dir := newTestManager(t, lookup)
	basicPolicy(t, dir) // zone "left" configured at 5000

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	zones := m.Zones()
	if len(zones) != 1 {
		t.Fatalf("got %d zones, want 1", len(zones))
	}
	if zones[0].Target() != 7000 {
		t.Errorf("zone target = %d, want 7000 (live fan state wins over configured 5000)",
			zones[0].Target())
	}
}

func TestLoadKeepsConfiguredTargetWithoutLiveFan(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if target := m.Zones()[0].Target(); target != 5000 {
		t.Errorf("zone target = %d, want configured 5000", target)
	}
}

func TestLoadMissingRequiredZoneField(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	writePolicy(t, dir, zonesFile, `[{"name": "left", "default_floor": 2000}]`)
	writePolicy(t, dir, fansFile, `[]`)

	if err := m.Load(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Load() error = %v, want ErrMissingField", err)
	}
}

func TestLoadFanNamingUnknownZone(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	writePolicy(t, dir, zonesFile, `[
		{"name": "left", "poweron_target": 9000, "default_floor": 2000, "decrease_interval": 30}
	]`)
	writePolicy(t, dir, fansFile, `[
		{"name": "fan0", "zone": "ghost", "sensors": ["/sys/sensors/fan0_0"]}
	]`)

	if err := m.Load(); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("Load() error = %v, want ErrUnknownZone", err)
	}
}

func TestFailedLoadRollsBackAndStaysLoadable(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	writePolicy(t, dir, groupsFile, `[
		{"name": "temps", "members": ["/sys/sensors/t0"]}
	]`)
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "poll",
			"groups": [{"name": "temps", "interface": "sensors.Value", "property": "Value"}],
			"triggers": [{"class": "timer", "type": "repeating", "interval": 3600}],
			"actions": [{"name": "set_parameter", "parameter": "polled", "value": true}]
		}
	]`)
	if err := m.Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}

	zonesBefore := m.zones
	eventsBefore := m.events
	profilesBefore := m.profiles
	activeBefore := m.ActiveProfiles()
	groupsBefore := len(m.groups)

	// Event stage failure: the group reference no longer resolves.
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "poll",
			"groups": [{"name": "missing", "interface": "i", "property": "p"}]
		}
	]`)
	err := m.Load()
	if !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("Load() error = %v, want ErrUnknownGroup", err)
	}

	if len(m.zones) != len(zonesBefore) {
		t.Error("failed load must leave the zone set unchanged")
	}
	for k, z := range zonesBefore {
		if m.zones[k] != z {
			t.Errorf("zone %q replaced by a failed load", k)
		}
	}
	for k, e := range eventsBefore {
		if m.events[k] != e {
			t.Errorf("event %q replaced by a failed load", k)
		}
	}
	for k, p := range profilesBefore {
		if m.profiles[k] != p {
			t.Errorf("profile %q replaced by a failed load", k)
		}
	}
	if got := m.ActiveProfiles(); len(got) != len(activeBefore) {
		t.Errorf("active profiles changed: %v, want %v", got, activeBefore)
	}
	if len(m.groups) != groupsBefore {
		t.Errorf("group registry = %d entries, want %d restored", len(m.groups), groupsBefore)
	}

	// Fix the file; a subsequent load must still be possible.
	writePolicy(t, dir, eventsFile, `[]`)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() after fixing policy: %v", err)
	}
}

func TestLoadRejectsDuplicateTimersBeforeCommit(t *testing.T) {
	m, bus, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "poll",
			"triggers": [{"class": "timer", "type": "repeating", "interval": 3600}],
			"actions": [{"name": "set_parameter", "parameter": "polled", "value": true}]
		}
	]`)
	if err := m.Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}
	eventsBefore := m.events
	timersBefore := m.timers

	// One event declaring two same-type timer triggers would collide at
	// registration; the load must fail before the running set is touched.
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "dup",
			"triggers": [
				{"class": "timer", "type": "repeating", "interval": 10},
				{"class": "timer", "type": "repeating", "interval": 20}
			],
			"actions": [{"name": "set_parameter", "parameter": "x", "value": 1}]
		}
	]`)
	if err := m.Load(); !errors.Is(err, ErrDuplicateTimer) {
		t.Fatalf("Load() error = %v, want ErrDuplicateTimer", err)
	}

	if len(m.events) != len(eventsBefore) {
		t.Fatalf("events = %d after failed load, want %d", len(m.events), len(eventsBefore))
	}
	for k, e := range eventsBefore {
		if m.events[k] != e {
			t.Errorf("event %q replaced by a failed load", k)
		}
	}
	if _, published := m.events[(ConfigKey{Name: "dup"}).String()]; published {
		t.Error("failed load published the new event set")
	}
	if len(m.timers) != len(timersBefore) || m.timers[0] != timersBefore[0] {
		t.Error("failed load disturbed the live timer set")
	}
	if len(bus.handlers) != 0 {
		t.Errorf("bus subscriptions = %d after failed load, want 0", len(bus.handlers))
	}

	// Fix the file; a subsequent load must still be possible.
	writePolicy(t, dir, eventsFile, `[]`)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() after fixing policy: %v", err)
	}
}

func TestReloadConfigsDisablesLoadingAfterFailure(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	if err := m.Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}
	zonesBefore := m.zones

	writePolicy(t, dir, zonesFile, `this is not json at all {{{`)
	m.ReloadConfigs()

	if len(m.zones) != len(zonesBefore) {
		t.Error("failed reload must leave the running zones untouched")
	}
	if err := m.Load(); !errors.Is(err, ErrLoadDisabled) {
		t.Errorf("Load() after failed reload = %v, want ErrLoadDisabled", err)
	}
}

func TestReloadConfigsAppliesNewPolicy(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	if err := m.Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}

	writePolicy(t, dir, zonesFile, `[
		{"name": "left", "poweron_target": 9000, "default_floor": 2000, "decrease_interval": 30},
		{"name": "right", "poweron_target": 8000, "default_floor": 2000, "decrease_interval": 30}
	]`)
	m.ReloadConfigs()

	if len(m.Zones()) != 2 {
		t.Errorf("got %d zones after reload, want 2", len(m.Zones()))
	}
}

func TestPowerOnWithNoZonesIsFatal(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeLookup())

	if err := m.PowerStateChanged(true); !errors.Is(err, ErrNoZones) {
		t.Fatalf("PowerStateChanged(true) = %v, want ErrNoZones", err)
	}
}

func TestPowerOnDrivesZonesAndTriggers(t *testing.T) {
	lookup := newFakeLookup()
	lookup.addObject("/sys/fans/fan0", "svc.fans", "control.FanSpeed")

	m, _, dir := newTestManager(t, lookup)
	basicPolicy(t, dir)
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "on_power",
			"triggers": [{"class": "poweron"}],
			"actions": [{"name": "set_parameter", "parameter": "powered", "value": true}]
		}
	]`)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if err := m.PowerStateChanged(true); err != nil {
		t.Fatalf("PowerStateChanged(true) error: %v", err)
	}

	if target := m.Zones()[0].Target(); target != 9000 {
		t.Errorf("zone target = %d, want poweron target 9000", target)
	}
	if v, _ := lookup.values[valueKey("/sys/fans/fan0", "control.FanSpeed", "Target")]; v != uint64(9000) {
		t.Errorf("fan hardware target = %v, want 9000", v)
	}
	if v, ok := m.Parameter("powered"); !ok || v != true {
		t.Error("power-on trigger actions did not run")
	}
	if !m.PowerOn() {
		t.Error("PowerOn() should report true")
	}
}

func TestPowerOffRunsOnlyPowerOffTriggers(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "on_power",
			"triggers": [{"class": "poweron"}],
			"actions": [{"name": "set_parameter", "parameter": "on_ran", "value": true}]
		},
		{
			"name": "off_power",
			"triggers": [{"class": "poweroff"}],
			"actions": [{"name": "set_parameter", "parameter": "off_ran", "value": true}]
		}
	]`)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	targetBefore := m.Zones()[0].Target()

	if err := m.PowerStateChanged(false); err != nil {
		t.Fatalf("PowerStateChanged(false) error: %v", err)
	}

	if _, ok := m.Parameter("on_ran"); ok {
		t.Error("power-on trigger must not run on power-off")
	}
	if v, ok := m.Parameter("off_ran"); !ok || v != true {
		t.Error("power-off trigger actions did not run")
	}
	if m.Zones()[0].Target() != targetBefore {
		t.Error("power-off must leave zone targets as-is")
	}
}

func TestProfileFiltering(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	writePolicy(t, dir, profilesFile, `[
		{"name": "air", "active": true},
		{"name": "water"}
	]`)
	writePolicy(t, dir, zonesFile, `[
		{"name": "always", "poweron_target": 9000, "default_floor": 2000, "decrease_interval": 30},
		{"name": "aircooled", "profiles": ["air"],
		 "poweron_target": 9000, "default_floor": 2000, "decrease_interval": 30},
		{"name": "watercooled", "profiles": ["water"],
		 "poweron_target": 4000, "default_floor": 1000, "decrease_interval": 30}
	]`)
	writePolicy(t, dir, fansFile, `[]`)

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	names := make(map[string]bool)
	for _, z := range m.Zones() {
		names[z.Name] = true
	}
	if !names["always"] || !names["aircooled"] || names["watercooled"] {
		t.Errorf("loaded zones = %v; want always+aircooled only", names)
	}
	active := m.ActiveProfiles()
	if len(active) != 1 || active[0] != "air" {
		t.Errorf("active profiles = %v, want [air]", active)
	}
}

func TestProfileActivationByCachedProperty(t *testing.T) {
	m, _, dir := newTestManager(t, newFakeLookup())
	writePolicy(t, dir, profilesFile, `[
		{"name": "air", "path": "/sys/chassis", "interface": "inventory.Cooling",
		 "property": "WaterCooled", "value": false}
	]`)
	writePolicy(t, dir, zonesFile, `[]`)
	writePolicy(t, dir, fansFile, `[]`)

	// Nothing cached: the profile is inactive.
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(m.ActiveProfiles()) != 0 {
		t.Errorf("active profiles = %v, want none", m.ActiveProfiles())
	}

	m.Cache().SetProperty("/sys/chassis", "inventory.Cooling", "WaterCooled", false)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if active := m.ActiveProfiles(); len(active) != 1 || active[0] != "air" {
		t.Errorf("active profiles = %v, want [air]", active)
	}
}

func TestParameters(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeLookup())

	m.SetParameter("limit", 4500)
	if v, ok := m.Parameter("limit"); !ok || v != 4500 {
		t.Errorf("Parameter() = %v, %v", v, ok)
	}

	m.DeleteParameter("limit")
	if _, ok := m.Parameter("limit"); ok {
		t.Error("deleted parameter still present")
	}
}

func TestLoadRegistersTimersAndSignals(t *testing.T) {
	m, bus, dir := newTestManager(t, newFakeLookup())
	basicPolicy(t, dir)
	writePolicy(t, dir, groupsFile, `[
		{"name": "temps", "members": ["/sys/sensors/t0"]}
	]`)
	writePolicy(t, dir, eventsFile, `[
		{
			"name": "watch",
			"groups": [{"name": "temps", "interface": "sensors.Value", "property": "Value"}],
			"triggers": [
				{"class": "timer", "type": "repeating", "interval": 3600},
				{"class": "signal", "signal": "properties_changed",
				 "path": "/sys/sensors/t0", "interface": "sensors.Value", "property": "Value"}
			],
			"actions": [{"name": "set_parameter", "parameter": "seen", "value": 1}]
		}
	]`)

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(m.timers) != 1 {
		t.Errorf("live timers = %d, want 1", len(m.timers))
	}
	if len(m.subs) != 1 {
		t.Errorf("signal subscriptions = %d, want 1", len(m.subs))
	}
	if len(bus.handlers) != 1 {
		t.Errorf("bus subscriptions = %d, want 1", len(bus.handlers))
	}

	// A reload replaces all registrations, never accumulates them.
	if err := m.Load(); err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if len(m.timers) != 1 || len(m.subs) != 1 || len(bus.handlers) != 1 {
		t.Errorf("after reload: timers=%d subs=%d bus=%d, want 1 each",
			len(m.timers), len(m.subs), len(bus.handlers))
	}
}
