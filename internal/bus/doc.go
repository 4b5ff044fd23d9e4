// Package bus implements the management object bus on top of the MQTT
// transport.
//
// The bus exposes a small query surface — interface subtree discovery,
// managed-object enumeration, property get/set — as synchronous JSON
// request/reply exchanges correlated by id, plus broadcast signal
// subscriptions. Responders (sensor services, inventory, the platform
// power sequencer) answer queries on the shared query topics and address
// replies to this client's reply topic.
//
// The control package consumes this through its Lookup and SignalBus
// contracts; transport failures surface as errors and are contained at the
// object-cache boundary.
package bus
