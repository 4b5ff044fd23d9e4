package monitor

import "errors"

var (
	// ErrNoSensors is returned when a fan is registered without any tach
	// sensors; such a fan could never be assessed.
	ErrNoSensors = errors.New("monitor: fan has no tach sensors")

	// ErrNoFans is returned when Run is called with nothing to monitor.
	ErrNoFans = errors.New("monitor: no fans registered")
)
