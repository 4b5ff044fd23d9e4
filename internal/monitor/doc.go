// Package monitor implements fan rotor health monitoring.
//
// Each fan carries one tach sensor per rotor. On every evaluation the
// monitor reads the sensors and the fan's commanded target over the bus,
// counts how many rotors spin outside the allowed deviation window, and
// flips the fan's functional state in the platform inventory when the count
// crosses the configured threshold. Readings and transitions are also
// emitted as telemetry.
//
// The monitor is deliberately outside the control loop: it runs on its own
// ticker goroutine and talks to the bus directly, so a slow sensor read
// never stalls signal handling.
package monitor
