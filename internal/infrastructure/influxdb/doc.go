// Package influxdb records fan-control telemetry to an InfluxDB v2 server.
//
// Writes are non-blocking and batched; a telemetry outage degrades to
// dropped points, never to a stalled control loop. The package is optional —
// the daemon runs without it when influxdb.enabled is false.
package influxdb
