package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bmcfleet/fanctl/internal/infrastructure/mqtt"
)

// Transport is the slice of the MQTT client the bus adapter needs.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	ClientID() string
}

// Logger is the optional logging interface used by the adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client is the object-bus adapter. One instance serves the whole daemon.
//
// Queries are synchronous from the caller's perspective: the calling
// goroutine blocks until the correlated reply arrives or the request times
// out. The control reactor relies on this — a cache refresh completes in
// place without yielding to other reactor work.
type Client struct {
	transport Transport
	topics    mqtt.Topics
	qos       byte
	timeout   time.Duration
	log       Logger

	mu      sync.Mutex
	pending map[string]chan reply
}

// reply is the wire shape of a query response.
type reply struct {
	ID     string          `json:"id"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// query is the wire shape of a query request.
type query struct {
	ID      string `json:"id"`
	ReplyTo string `json:"reply_to"`

	// Query arguments; unused fields are omitted per operation.
	Path      string `json:"path,omitempty"`
	Service   string `json:"service,omitempty"`
	Interface string `json:"interface,omitempty"`
	Property  string `json:"property,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Value     any    `json:"value,omitempty"`
}

// New creates the adapter and subscribes to this client's reply topic.
func New(transport Transport, qos byte, timeout time.Duration, log Logger) (*Client, error) {
	if log == nil {
		log = noopLogger{}
	}
	c := &Client{
		transport: transport,
		qos:       qos,
		timeout:   timeout,
		log:       log,
		pending:   make(map[string]chan reply),
	}

	replyTopic := c.topics.BusReply(transport.ClientID())
	if err := transport.Subscribe(replyTopic, qos, c.handleReply); err != nil {
		return nil, fmt.Errorf("subscribing to reply topic: %w", err)
	}

	return c, nil
}

// handleReply correlates an inbound reply with its waiting request.
// Replies for unknown ids (late arrivals after a timeout) are dropped.
func (c *Client) handleReply(_ string, payload []byte) error {
	var r reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("%w: %w", ErrBadReply, err)
	}

	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	if ok {
		delete(c.pending, r.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("dropping reply for unknown query id", "id", r.ID)
		return nil
	}

	ch <- r
	return nil
}

// request performs one query round trip and returns the raw result.
func (c *Client) request(op string, q query) (json.RawMessage, error) {
	q.ID = uuid.New().String()
	q.ReplyTo = c.topics.BusReply(c.transport.ClientID())

	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s query: %w", op, err)
	}

	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending[q.ID] = ch
	c.mu.Unlock()

	if err := c.transport.Publish(c.topics.BusQuery(op), payload, c.qos, false); err != nil {
		c.mu.Lock()
		delete(c.pending, q.ID)
		c.mu.Unlock()
		return nil, fmt.Errorf("publishing %s query: %w", op, err)
	}

	select {
	case r := <-ch:
		if r.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrRemote, op, r.Error)
		}
		return r.Result, nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, q.ID)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, op, c.timeout)
	}
}

// SubTree finds all objects implementing an interface below a root path, at
// a bounded depth (0 means unbounded). The result maps object path to
// service name to the interfaces that service implements there.
func (c *Client) SubTree(rootPath, iface string, depth int) (map[string]map[string][]string, error) {
	raw, err := c.request("subtree", query{Path: rootPath, Interface: iface, Depth: depth})
	if err != nil {
		return nil, err
	}

	var result map[string]map[string][]string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: subtree result: %w", ErrBadReply, err)
	}
	return result, nil
}

// ManagedObjects bulk-fetches every object a service manages below an
// object-manager path: path → interface → property → value.
func (c *Client) ManagedObjects(service, path string) (map[string]map[string]map[string]any, error) {
	raw, err := c.request("managed_objects", query{Service: service, Path: path})
	if err != nil {
		return nil, err
	}

	var result map[string]map[string]map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: managed_objects result: %w", ErrBadReply, err)
	}
	return result, nil
}

// Property fetches a single property value from a service.
func (c *Client) Property(service, path, iface, property string) (any, error) {
	raw, err := c.request("get_property", query{
		Service: service, Path: path, Interface: iface, Property: property,
	})
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%w: get_property result: %w", ErrBadReply, err)
	}
	return value, nil
}

// SetProperty writes a property value on a service and waits for the ack.
func (c *Client) SetProperty(service, path, iface, property string, value any) error {
	_, err := c.request("set_property", query{
		Service: service, Path: path, Interface: iface, Property: property, Value: value,
	})
	return err
}

// SubscribeSignal registers a callback for broadcast signal messages on a
// topic. The returned function cancels the subscription.
func (c *Client) SubscribeSignal(topic string, fn func(topic string, payload []byte)) (func(), error) {
	err := c.transport.Subscribe(topic, c.qos, func(t string, payload []byte) error {
		fn(t, payload)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to signal topic %q: %w", topic, err)
	}

	return func() {
		if err := c.transport.Unsubscribe(topic); err != nil {
			c.log.Warn("unsubscribing signal topic failed", "topic", topic, "error", err)
		}
	}, nil
}
