package monitor

import (
	"context"
	"time"
)

// Logger is the logging interface the monitor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Monitor.
type Options struct {
	Lookup    Lookup
	Telemetry Telemetry
	Interval  time.Duration

	// Bus service names for sensor reads, target reads and inventory
	// updates.
	SensorService    string
	FanService       string
	InventoryService string

	Logger Logger
}

// Monitor periodically evaluates fan health.
type Monitor struct {
	lookup    Lookup
	telemetry Telemetry
	interval  time.Duration

	sensorService    string
	fanService       string
	inventoryService string

	fans []*Fan
	log  Logger
}

// New creates a monitor with no fans; register them with AddFan before Run.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		lookup:           opts.Lookup,
		telemetry:        opts.Telemetry,
		interval:         interval,
		sensorService:    opts.SensorService,
		fanService:       opts.FanService,
		inventoryService: opts.InventoryService,
		log:              logger,
	}
}

// AddFan registers a fan for monitoring.
func (m *Monitor) AddFan(f *Fan) {
	m.fans = append(m.fans, f)
}

// Run evaluates all fans on the configured interval until the context is
// cancelled. An immediate first evaluation establishes baseline state.
func (m *Monitor) Run(ctx context.Context) error {
	if len(m.fans) == 0 {
		return ErrNoFans
	}

	m.evaluateAll()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.evaluateAll()
		}
	}
}

func (m *Monitor) evaluateAll() {
	for _, f := range m.fans {
		m.Evaluate(f)
	}
}

// Evaluate reads one fan's target and tach sensors and updates its
// functional state. Unreadable sensors count as nonfunctional rotors; an
// unreadable target skips the evaluation entirely, since no expectation can
// be formed.
func (m *Monitor) Evaluate(f *Fan) {
	target, err := m.readFloat(m.fanService, f.FanPath, fanTargetInterface, fanTargetProperty)
	if err != nil {
		m.log.Warn("fan target unreadable, skipping evaluation",
			"fan", f.Name, "error", err)
		return
	}

	failed := 0
	for _, s := range f.Sensors {
		rpm, err := m.readFloat(m.sensorService, s.Path, sensorValueInterface, sensorValueProperty)
		if err != nil {
			m.log.Warn("tach sensor unreadable", "fan", f.Name, "sensor", s.Name, "error", err)
			s.functional = false
			failed++
			continue
		}

		s.lastRPM = rpm
		s.functional = f.withinDeviation(rpm, s.expected(target))
		if !s.functional {
			failed++
			m.log.Debug("rotor out of range", "fan", f.Name, "sensor", s.Name,
				"rpm", rpm, "expected", s.expected(target))
		}
		if m.telemetry != nil {
			m.telemetry.WriteFanTach(f.Name, s.Name, rpm, target)
		}
	}

	functional := failed <= f.allowed
	if functional == f.functional {
		return
	}
	f.functional = functional

	m.log.Info("fan functional state changed",
		"fan", f.Name, "functional", functional, "failed_rotors", failed)
	if err := m.lookup.SetProperty(m.inventoryService, f.InventoryPath,
		inventoryInterface, inventoryProperty, functional); err != nil {
		m.log.Warn("inventory update failed", "fan", f.Name, "error", err)
	}
	if m.telemetry != nil {
		m.telemetry.WriteFanHealth(f.Name, functional)
	}
}

func (m *Monitor) readFloat(service, path, iface, property string) (float64, error) {
	value, err := m.lookup.Property(service, path, iface, property)
	if err != nil {
		return 0, err
	}
	switch n := value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, errUnexpectedType(path, value)
}

func errUnexpectedType(path string, value any) error {
	return &typeError{path: path, value: value}
}

type typeError struct {
	path  string
	value any
}

func (e *typeError) Error() string {
	return "monitor: unexpected value type at " + e.path
}
