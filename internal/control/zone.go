package control

import (
	"fmt"
	"time"
)

// Zone is a cooling domain: the fans it owns and the speed targets applied
// to them. The numeric increase/decrease policy lives outside this core;
// the zone tracks the commanded target and floor and fans them out.
type Zone struct {
	Key              ConfigKey
	Name             string
	PowerOnTarget    uint64
	DefaultFloor     uint64
	DecreaseInterval time.Duration

	target uint64
	floor  uint64
	fans   []*Fan

	supportedModes []string
	currentMode    string
	persistMode    bool

	modes ModeStore
	log   Logger
}

// newZone builds a zone from its policy entry. poweron_target, default_floor
// and decrease_interval are required; their absence aborts the load.
func newZone(cfg zoneConfig, modes ModeStore, logger Logger) (*Zone, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: zone name", ErrMissingField)
	}
	if cfg.PowerOnTarget == nil {
		return nil, fmt.Errorf("%w: zone %q poweron_target", ErrMissingField, cfg.Name)
	}
	if cfg.DefaultFloor == nil {
		return nil, fmt.Errorf("%w: zone %q default_floor", ErrMissingField, cfg.Name)
	}
	if cfg.DecreaseIntervalSec == nil {
		return nil, fmt.Errorf("%w: zone %q decrease_interval", ErrMissingField, cfg.Name)
	}

	z := &Zone{
		Key:              ConfigKey{Name: cfg.Name, Profiles: cfg.Profiles},
		Name:             cfg.Name,
		PowerOnTarget:    *cfg.PowerOnTarget,
		DefaultFloor:     *cfg.DefaultFloor,
		DecreaseInterval: time.Duration(*cfg.DecreaseIntervalSec * float64(time.Second)),
		target:           cfg.DefaultTarget,
		modes:            modes,
		log:              logger,
	}
	z.floor = z.DefaultFloor
	if z.target == 0 {
		z.target = z.PowerOnTarget
	}

	if cfg.Modes != nil {
		z.supportedModes = cfg.Modes.Supported
		z.currentMode = cfg.Modes.Current
		z.persistMode = cfg.Modes.Persist
	}
	return z, nil
}

// AddFan moves a fan into this zone. Called once per fan during load; a fan
// belongs to exactly one zone.
//
// A fan reporting a nonzero live target that differs from the zone's
// configured target corrects the zone to the observed hardware state, so a
// reload never causes an abrupt speed jump.
func (z *Zone) AddFan(f *Fan) {
	z.fans = append(z.fans, f)
	if t := f.Target(); t != 0 && t != z.target {
		z.log.Info("zone target corrected to live fan state",
			"zone", z.Name, "fan", f.Name, "target", t)
		z.target = t
	}
}

// Fans returns the fans owned by this zone.
func (z *Zone) Fans() []*Fan { return z.fans }

// Target returns the zone's current commanded target.
func (z *Zone) Target() uint64 { return z.target }

// SetTarget commands every fan in the zone to the given target. Fan write
// failures are logged; the zone still records the commanded value so the
// policy converges when the fan comes back.
func (z *Zone) SetTarget(target uint64) {
	z.target = target
	for _, f := range z.fans {
		if err := f.SetTarget(target); err != nil {
			z.log.Warn("fan target write failed", "zone", z.Name, "error", err)
		}
	}
}

// Floor returns the zone's current floor.
func (z *Zone) Floor() uint64 { return z.floor }

// SetFloor raises or lowers the zone floor, and lifts the current target up
// to it when the target would fall below.
func (z *Zone) SetFloor(floor uint64) {
	z.floor = floor
	if z.target < floor {
		z.SetTarget(floor)
	}
}

// Enable brings the zone live after a (re)load: a persisted thermal mode is
// restored if one was saved. Store failures are logged, never fatal.
func (z *Zone) Enable() {
	if !z.persistMode || z.modes == nil {
		return
	}
	mode, ok, err := z.modes.Mode(z.Name)
	if err != nil {
		z.log.Warn("thermal mode restore failed", "zone", z.Name, "error", err)
		return
	}
	if !ok {
		return
	}
	if !z.supportsMode(mode) {
		z.log.Warn("persisted thermal mode no longer supported",
			"zone", z.Name, "mode", mode)
		return
	}
	z.currentMode = mode
}

// CurrentMode returns the zone's current thermal mode ("" when the zone
// declares none).
func (z *Zone) CurrentMode() string { return z.currentMode }

// SupportedModes returns the thermal modes the zone accepts.
func (z *Zone) SupportedModes() []string { return z.supportedModes }

// SetCurrentMode switches the zone's thermal mode, persisting it when the
// zone is configured to. Persistence failures are logged only.
func (z *Zone) SetCurrentMode(mode string) error {
	if !z.supportsMode(mode) {
		return fmt.Errorf("%w: zone %q mode %q", ErrUnknownMode, z.Name, mode)
	}
	z.currentMode = mode
	if z.persistMode && z.modes != nil {
		if err := z.modes.SaveMode(z.Name, mode); err != nil {
			z.log.Warn("thermal mode persist failed", "zone", z.Name, "error", err)
		}
	}
	return nil
}

func (z *Zone) supportsMode(mode string) bool {
	for _, m := range z.supportedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Describe reports the zone's self-described state for the diagnostic dump.
func (z *Zone) Describe() map[string]any {
	fans := make([]map[string]any, 0, len(z.fans))
	for _, f := range z.fans {
		fans = append(fans, map[string]any{
			"name":    f.Name,
			"target":  f.Target(),
			"sensors": f.Sensors,
		})
	}
	desc := map[string]any{
		"name":              z.Name,
		"target":            z.target,
		"floor":             z.floor,
		"poweron_target":    z.PowerOnTarget,
		"default_floor":     z.DefaultFloor,
		"decrease_interval": z.DecreaseInterval.String(),
		"fans":              fans,
	}
	if len(z.supportedModes) > 0 {
		desc["mode"] = map[string]any{
			"supported": z.supportedModes,
			"current":   z.currentMode,
		}
	}
	return desc
}
