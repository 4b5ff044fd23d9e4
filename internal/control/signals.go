package control

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
)

// SignalBus is the interface the dispatcher needs for broadcast signals.
// The returned cancel function removes the subscription.
type SignalBus interface {
	SubscribeSignal(topic string, fn func(topic string, payload []byte)) (func(), error)
}

// Signal wraps one inbound broadcast message with a read cursor. A handler
// consumes the message by decoding it; Rewind resets the cursor so the next
// handler for the same physical signal can re-read it from the start.
type Signal struct {
	topic  string
	reader *bytes.Reader
}

// NewSignal wraps a raw signal payload.
func NewSignal(topic string, payload []byte) *Signal {
	return &Signal{topic: topic, reader: bytes.NewReader(payload)}
}

// Topic returns the topic the signal arrived on.
func (s *Signal) Topic() string { return s.topic }

// Decode unmarshals the remaining message content into v and advances the
// cursor to the end. A second Decode without an intervening Rewind sees an
// empty message and fails.
func (s *Signal) Decode(v any) error {
	data, err := io.ReadAll(s.reader)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Rewind resets the read cursor to the start of the message.
func (s *Signal) Rewind() {
	s.reader.Seek(0, io.SeekStart) //nolint:errcheck // seek on bytes.Reader cannot fail
}

// SignalTarget describes the cache entry a signal package is about.
type SignalTarget struct {
	Path      string
	Service   string
	Interface string
	Property  string
}

// SignalHandler inspects a signal, updates the cache as appropriate, and
// reports whether the cache actually changed. Actions run only on a change.
type SignalHandler func(cache *ObjectCache, sig *Signal, target SignalTarget) bool

// SignalPkg binds a handler, its target descriptor and the actions to run on
// a cache change. Packages are immutable once registered and live as long as
// the owning event's subscription.
type SignalPkg struct {
	Handler SignalHandler
	Target  SignalTarget
	Actions []Action
}

// signalSub is one live topic subscription with its ordered package list.
type signalSub struct {
	topic  string
	pkgs   []*SignalPkg
	cancel func()
}

// AddSignal binds a package to a signal topic. The first package for a topic
// creates the bus subscription; later packages for the same topic accumulate
// in registration order behind it and share the one delivery.
func (m *Manager) AddSignal(topic string, pkg *SignalPkg) error {
	if sub, ok := m.subs[topic]; ok {
		sub.pkgs = append(sub.pkgs, pkg)
		return nil
	}

	sub := &signalSub{topic: topic, pkgs: []*SignalPkg{pkg}}
	cancel, err := m.signals.SubscribeSignal(topic, func(t string, payload []byte) {
		m.reactor.Submit(func() { m.handleSignal(NewSignal(t, payload), sub) })
	})
	if err != nil {
		return err
	}
	sub.cancel = cancel
	m.subs[topic] = sub
	return nil
}

// handleSignal dispatches one delivery to the topic's packages, in
// registration order. A package's actions run only when its handler reports
// a cache change; the message is rewound between packages (not after the
// last) so every handler reads the full original content.
func (m *Manager) handleSignal(sig *Signal, sub *signalSub) {
	if m.subs[sub.topic] != sub {
		// Subscription replaced by a reload after delivery was queued.
		return
	}

	m.rec.Add("signal dispatched", "topic", sig.Topic(), "packages", len(sub.pkgs))

	for i, pkg := range sub.pkgs {
		if pkg.Handler(m.cache, sig, pkg.Target) {
			for _, a := range pkg.Actions {
				a.Run()
			}
		}
		if i < len(sub.pkgs)-1 {
			sig.Rewind()
		}
	}
}

// clearSignals cancels every live subscription. Reload calls this before
// enabling the new event set.
func (m *Manager) clearSignals() {
	for topic, sub := range m.subs {
		if sub.cancel != nil {
			sub.cancel()
		}
		delete(m.subs, topic)
	}
}

// handlerByName resolves the handler kinds the policy files may name.
func handlerByName(name string) (SignalHandler, bool) {
	switch name {
	case "properties_changed":
		return handlePropertiesChanged, true
	case "interfaces_added":
		return handleInterfacesAdded, true
	case "interfaces_removed":
		return handleInterfacesRemoved, true
	case "name_owner_changed":
		return handleNameOwnerChanged, true
	}
	return nil, false
}

// handlePropertiesChanged applies a property-change notification:
//
//	{"interface": "...", "properties": {"Name": value, ...}}
//
// The cache changes only when the message carries the target property with a
// value differing from what is cached.
func handlePropertiesChanged(cache *ObjectCache, sig *Signal, target SignalTarget) bool {
	var msg struct {
		Interface  string         `json:"interface"`
		Properties map[string]any `json:"properties"`
	}
	if err := sig.Decode(&msg); err != nil {
		return false
	}
	if msg.Interface != target.Interface {
		return false
	}
	value, ok := msg.Properties[target.Property]
	if !ok {
		return false
	}

	if cached, ok := cache.GetProperty(target.Path, target.Interface, target.Property); ok &&
		reflect.DeepEqual(cached, value) {
		return false
	}
	cache.SetProperty(target.Path, target.Interface, target.Property, value)
	return true
}

// handleInterfacesAdded applies an object-added notification:
//
//	{"path": "...", "interfaces": {"iface": {"Prop": value, ...}, ...}}
func handleInterfacesAdded(cache *ObjectCache, sig *Signal, target SignalTarget) bool {
	var msg struct {
		Path       string                    `json:"path"`
		Interfaces map[string]map[string]any `json:"interfaces"`
	}
	if err := sig.Decode(&msg); err != nil {
		return false
	}
	if target.Path != "" && msg.Path != target.Path {
		return false
	}
	props, ok := msg.Interfaces[target.Interface]
	if !ok {
		return false
	}
	value, ok := props[target.Property]
	if !ok {
		return false
	}

	if cached, ok := cache.GetProperty(msg.Path, target.Interface, target.Property); ok &&
		reflect.DeepEqual(cached, value) {
		return false
	}
	cache.SetProperty(msg.Path, target.Interface, target.Property, value)
	return true
}

// handleInterfacesRemoved applies an object-removed notification:
//
//	{"path": "...", "interfaces": ["iface", ...]}
//
// The cached target property is erased; the cache changed only if a value
// was actually present.
func handleInterfacesRemoved(cache *ObjectCache, sig *Signal, target SignalTarget) bool {
	var msg struct {
		Path       string   `json:"path"`
		Interfaces []string `json:"interfaces"`
	}
	if err := sig.Decode(&msg); err != nil {
		return false
	}
	if target.Path != "" && msg.Path != target.Path {
		return false
	}
	for _, iface := range msg.Interfaces {
		if iface == target.Interface {
			return cache.EraseProperty(msg.Path, target.Interface, target.Property)
		}
	}
	return false
}

// handleNameOwnerChanged applies a service connection transition:
//
//	{"name": "svc", "old_owner": "...", "new_owner": "..."}
//
// An empty new owner means the connection dropped. The flag is propagated to
// every cached path where the service lists the target interface.
func handleNameOwnerChanged(cache *ObjectCache, sig *Signal, target SignalTarget) bool {
	var msg struct {
		Name     string `json:"name"`
		OldOwner string `json:"old_owner"`
		NewOwner string `json:"new_owner"`
	}
	if err := sig.Decode(&msg); err != nil {
		return false
	}
	if msg.Name == "" {
		return false
	}
	owned := msg.NewOwner != ""

	paths := cache.GetPaths(msg.Name, target.Interface)
	if len(paths) == 0 {
		return false
	}
	for _, path := range paths {
		cache.SetOwner(path, msg.Name, target.Interface, owned)
	}
	return true
}
