package powerstate

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Subscriber is the slice of the object bus the watcher needs.
type Subscriber interface {
	SubscribeSignal(topic string, fn func(topic string, payload []byte)) (func(), error)
}

// Logger is the optional logging interface used by the watcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}

// statePayload is the wire shape of a power-good message.
type statePayload struct {
	PGood bool `json:"pgood"`
}

// Watcher subscribes to the power-good topic and reports transitions.
// The first message after Start always fires the callback; after that only
// genuine changes do.
type Watcher struct {
	sub      Subscriber
	topic    string
	onChange func(on bool)
	log      Logger

	mu     sync.Mutex
	known  bool
	last   bool
	cancel func()
}

// New creates a watcher. onChange runs on the transport's delivery
// goroutine; callers needing confinement must hop themselves.
func New(sub Subscriber, topic string, onChange func(on bool), logger Logger) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watcher{sub: sub, topic: topic, onChange: onChange, log: logger}
}

// Start subscribes to the power topic. With a retained state message on the
// broker, the callback fires promptly with the current state.
func (w *Watcher) Start() error {
	cancel, err := w.sub.SubscribeSignal(w.topic, w.handle)
	if err != nil {
		return fmt.Errorf("powerstate: subscribing: %w", err)
	}
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	return nil
}

// Stop cancels the subscription. Safe to call before Start or twice.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Watcher) handle(_ string, payload []byte) {
	var msg statePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.log.Warn("malformed power state message", "error", err)
		return
	}

	w.mu.Lock()
	changed := !w.known || w.last != msg.PGood
	w.known = true
	w.last = msg.PGood
	w.mu.Unlock()

	if !changed {
		w.log.Debug("power state repeated", "pgood", msg.PGood)
		return
	}

	w.log.Info("power state transition", "pgood", msg.PGood)
	w.onChange(msg.PGood)
}

// State returns the last known power state; known is false before the first
// message arrives.
func (w *Watcher) State() (on, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.known
}
