package control

import "fmt"

// Defaults for the bus location of a fan's speed control.
const (
	fanPathPrefix      = "/sys/fans/"
	fanTargetInterface = "control.FanSpeed"
	fanTargetProperty  = "Target"
)

// Fan is one controllable fan. It belongs to exactly one zone after load and
// carries the tach sensors that report on its rotors.
type Fan struct {
	Key      ConfigKey
	Name     string
	ZoneName string
	Sensors  []string

	path     string
	iface    string
	property string
	target   uint64

	cache  *ObjectCache
	lookup Lookup
	log    Logger
}

// newFan builds a fan from its policy entry and probes the live hardware
// target so a (re)load can pick up where the hardware actually is.
func newFan(cfg fanConfig, cache *ObjectCache, lookup Lookup, logger Logger) (*Fan, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: fan name", ErrMissingField)
	}
	if cfg.Zone == "" {
		return nil, fmt.Errorf("%w: fan %q zone", ErrMissingField, cfg.Name)
	}
	if len(cfg.Sensors) == 0 {
		return nil, fmt.Errorf("%w: fan %q sensors", ErrMissingField, cfg.Name)
	}

	f := &Fan{
		Key:      ConfigKey{Name: cfg.Name, Profiles: cfg.Profiles},
		Name:     cfg.Name,
		ZoneName: cfg.Zone,
		Sensors:  cfg.Sensors,
		path:     cfg.Path,
		iface:    cfg.TargetInterface,
		property: cfg.TargetProperty,
		cache:    cache,
		lookup:   lookup,
		log:      logger,
	}
	if f.path == "" {
		f.path = fanPathPrefix + f.Name
	}
	if f.iface == "" {
		f.iface = fanTargetInterface
	}
	if f.property == "" {
		f.property = fanTargetProperty
	}

	f.probeTarget()
	return f, nil
}

// probeTarget reads the fan's current commanded target from the bus. An
// unreachable fan probes as zero, which load treats as "no live state".
func (f *Fan) probeTarget() {
	service := f.cache.GetService(f.path, f.iface)
	if service == "" {
		f.log.Debug("fan target service not found", "fan", f.Name, "path", f.path)
		return
	}

	value, err := f.lookup.Property(service, f.path, f.iface, f.property)
	if err != nil {
		f.log.Warn("fan target probe failed", "fan", f.Name, "error", err)
		return
	}

	target, ok := asUint64(value)
	if !ok {
		f.log.Warn("fan target has unexpected type", "fan", f.Name, "value", value)
		return
	}
	f.target = target
	f.cache.SetProperty(f.path, f.iface, f.property, value)
}

// Path returns the fan's bus object path.
func (f *Fan) Path() string { return f.path }

// Target returns the last target this fan was observed or commanded at.
func (f *Fan) Target() uint64 { return f.target }

// SetTarget commands the fan to a new speed target over the bus and writes
// the value through to the cache.
func (f *Fan) SetTarget(target uint64) error {
	service := f.cache.GetService(f.path, f.iface)
	if service == "" {
		return fmt.Errorf("fan %q: no service for %s at %s", f.Name, f.iface, f.path)
	}

	if err := f.lookup.SetProperty(service, f.path, f.iface, f.property, target); err != nil {
		return fmt.Errorf("fan %q: setting target: %w", f.Name, err)
	}
	f.target = target
	f.cache.SetProperty(f.path, f.iface, f.property, target)
	return nil
}

// asUint64 normalizes the numeric shapes a target can arrive in. JSON
// decoding yields float64; internal writes may use native integer types.
func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}
