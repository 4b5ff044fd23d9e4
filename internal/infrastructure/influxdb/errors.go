package influxdb

import "errors"

var (
	// ErrDisabled is returned when connecting while influxdb.enabled is
	// false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be reached or
	// reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
