// Package mqtt wraps the paho MQTT client for the fanctl management bus
// transport.
//
// The daemon's object bus (queries, property writes, broadcast signals)
// rides on an MQTT broker local to the management controller. This package
// owns the broker connection: Last Will and Testament for crash detection,
// automatic reconnection with subscription restoration, tracked
// subscriptions, and publish with bounded waits. The object-bus semantics
// on top of the transport live in internal/bus.
package mqtt
