package monitor

import (
	"fmt"
)

// Bus interface names the monitor reads and writes.
const (
	sensorValueInterface = "sensors.Value"
	sensorValueProperty  = "Value"
	fanTargetInterface   = "control.FanSpeed"
	fanTargetProperty    = "Target"
	inventoryInterface   = "inventory.Item"
	inventoryProperty    = "Functional"
)

// Lookup is the slice of the object bus the monitor needs.
type Lookup interface {
	Property(service, path, iface, property string) (any, error)
	SetProperty(service, path, iface, property string, value any) error
}

// Telemetry receives tach readings and health transitions. The InfluxDB
// client satisfies it; nil disables emission.
type Telemetry interface {
	WriteFanTach(fan, sensor string, rpm, target float64)
	WriteFanHealth(fan string, functional bool)
}

// TachSensor is one rotor's tach reading point. Factor and Offset map the
// fan's commanded target to this rotor's expected speed; a factor of zero
// is treated as one.
type TachSensor struct {
	Name   string
	Path   string
	Factor float64
	Offset float64

	functional bool
	lastRPM    float64
}

// expected returns the rotor speed implied by a commanded target.
func (s *TachSensor) expected(target float64) float64 {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	return target*factor + s.Offset
}

// Functional reports the rotor's state as of the last evaluation.
func (s *TachSensor) Functional() bool { return s.functional }

// Fan aggregates a fan's rotors against the health policy.
type Fan struct {
	Name          string
	FanPath       string
	InventoryPath string
	Sensors       []*TachSensor

	// deviation is the allowed percentage between expected and measured
	// speed; allowed is how many rotors may fail before the fan does.
	deviation  int
	allowed    int
	functional bool
}

// NewFan builds a monitored fan. It starts functional; the first evaluation
// establishes the real state.
func NewFan(name, fanPath, inventoryPath string, sensors []*TachSensor, deviation, allowed int) (*Fan, error) {
	if len(sensors) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSensors, name)
	}
	for _, s := range sensors {
		s.functional = true
	}
	return &Fan{
		Name:          name,
		FanPath:       fanPath,
		InventoryPath: inventoryPath,
		Sensors:       sensors,
		deviation:     deviation,
		allowed:       allowed,
		functional:    true,
	}, nil
}

// Functional reports the fan's state as of the last evaluation.
func (f *Fan) Functional() bool { return f.functional }

// withinDeviation reports whether a measured speed is close enough to the
// expected one. A zero expected speed accepts only a stopped rotor reading
// near zero, using the deviation as an absolute band.
func (f *Fan) withinDeviation(measured, expected float64) bool {
	if expected == 0 {
		return measured <= float64(f.deviation)
	}
	diff := measured - expected
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= expected*float64(f.deviation)
}
