// Package control implements the fan-control runtime core.
//
// The Manager owns a live model of the platform: an object cache of bus
// property values and service ownership, the loaded policy entities (zones,
// fans, groups, events, profiles), and the timer and signal machinery that
// turns telemetry into fan speed adjustments.
//
// Everything in this package runs on a single-threaded cooperative reactor.
// Bus callbacks, timer expirations, reload requests and dump requests are all
// marshalled onto the reactor before they touch Manager state, so the cache
// and entity collections need no locking. That confinement is a load-bearing
// property: do not call Manager methods from outside the reactor, and do not
// offload cache mutation to other goroutines.
//
// Configuration is applied transactionally. A reload either installs a
// complete consistent set of zones, fans and events, or leaves the running
// set untouched.
package control
