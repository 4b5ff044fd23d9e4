package mqtt

// Topic layout for the fanctl management bus.
//
//	fanctl/system/status              daemon online/offline status (retained)
//	fanctl/bus/query/{op}             object-bus queries to responders
//	fanctl/bus/reply/{client_id}      query replies addressed to one client
//	fanctl/signal/{kind}{path}        broadcast signals about bus objects
//	fanctl/signal/power               power-good state (retained)
//
// Object paths begin with "/" so signal topics concatenate without a
// separator: fanctl/signal/properties_changed/sys/fans/fan0.
const (
	// TopicPrefix is the root of all fanctl topics.
	TopicPrefix = "fanctl"

	topicSystemStatus = TopicPrefix + "/system/status"
	topicBusQuery     = TopicPrefix + "/bus/query/"
	topicBusReply     = TopicPrefix + "/bus/reply/"
	topicSignal       = TopicPrefix + "/signal/"
	topicPowerState   = TopicPrefix + "/signal/power"
)

// Topics provides builders for fanctl MQTT topics. Using these helpers keeps
// topic naming consistent between the daemon and bus responders.
type Topics struct{}

// SystemStatus returns the retained daemon status topic.
func (Topics) SystemStatus() string {
	return topicSystemStatus
}

// BusQuery returns the topic a query operation is published to.
//
// Example: fanctl/bus/query/subtree
func (Topics) BusQuery(op string) string {
	return topicBusQuery + op
}

// BusReply returns the reply topic addressed to a single client.
//
// Example: fanctl/bus/reply/fanctld-01
func (Topics) BusReply(clientID string) string {
	return topicBusReply + clientID
}

// Signal returns the broadcast topic for a signal kind about an object path.
//
// Example: fanctl/signal/properties_changed/sys/fans/fan0
func (Topics) Signal(kind, path string) string {
	return topicSignal + kind + path
}

// PowerState returns the retained power-good state topic.
func (Topics) PowerState() string {
	return topicPowerState
}
