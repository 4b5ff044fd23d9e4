package control

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeLookup is an in-memory bus responder. Keys for values are
// "path|iface|property"; the service argument is accepted but not used for
// value lookup so tests can stay terse.
type fakeLookup struct {
	// tree is path → service → interfaces, returned by SubTree filtered to
	// the requested interface.
	tree map[string]map[string][]string

	// values backs Property and receives SetProperty writes.
	values map[string]any

	// failing marks value keys whose Property read errors.
	failing map[string]bool

	// managed is service → managed objects, returned by ManagedObjects.
	managed map[string]map[string]map[string]map[string]any

	subtreeCalls  int
	propertyCalls int
	setCalls      []string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		tree:    make(map[string]map[string][]string),
		values:  make(map[string]any),
		failing: make(map[string]bool),
		managed: make(map[string]map[string]map[string]map[string]any),
	}
}

func valueKey(path, iface, property string) string {
	return path + "|" + iface + "|" + property
}

func (f *fakeLookup) addObject(path, service string, interfaces ...string) {
	if f.tree[path] == nil {
		f.tree[path] = make(map[string][]string)
	}
	f.tree[path][service] = append(f.tree[path][service], interfaces...)
}

func (f *fakeLookup) SubTree(rootPath, iface string, depth int) (map[string]map[string][]string, error) {
	f.subtreeCalls++
	out := make(map[string]map[string][]string)
	for path, servs := range f.tree {
		for service, interfaces := range servs {
			for _, i := range interfaces {
				if i == iface {
					if out[path] == nil {
						out[path] = make(map[string][]string)
					}
					out[path][service] = interfaces
					break
				}
			}
		}
	}
	return out, nil
}

func (f *fakeLookup) ManagedObjects(service, path string) (map[string]map[string]map[string]any, error) {
	objs, ok := f.managed[service]
	if !ok {
		return nil, fmt.Errorf("no managed objects for %q", service)
	}
	return objs, nil
}

func (f *fakeLookup) Property(service, path, iface, property string) (any, error) {
	f.propertyCalls++
	key := valueKey(path, iface, property)
	if f.failing[key] {
		return nil, fmt.Errorf("unreachable: %s", key)
	}
	value, ok := f.values[key]
	if !ok {
		return nil, fmt.Errorf("no such property: %s", key)
	}
	return value, nil
}

func (f *fakeLookup) SetProperty(service, path, iface, property string, value any) error {
	key := valueKey(path, iface, property)
	f.values[key] = value
	f.setCalls = append(f.setCalls, fmt.Sprintf("%s=%v", key, value))
	return nil
}

// fakeSignalBus records subscriptions; tests drive deliveries by hand.
type fakeSignalBus struct {
	handlers map[string]func(topic string, payload []byte)
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{handlers: make(map[string]func(string, []byte))}
}

func (f *fakeSignalBus) SubscribeSignal(topic string, fn func(topic string, payload []byte)) (func(), error) {
	f.handlers[topic] = fn
	return func() { delete(f.handlers, topic) }, nil
}

// testAction counts its runs and optionally notifies a channel.
type testAction struct {
	runs   int
	notify chan struct{}
}

func (a *testAction) Run() {
	a.runs++
	if a.notify != nil {
		a.notify <- struct{}{}
	}
}

// writePolicy writes one policy file into the test policy directory.
func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// newTestManager builds a Manager over fakes with a fresh policy directory.
// The reactor is created but not running; tests that need it call Run.
func newTestManager(t *testing.T, lookup *fakeLookup) (*Manager, *fakeSignalBus, string) {
	t.Helper()
	dir := t.TempDir()
	bus := newFakeSignalBus()

	m, err := New(Options{
		Lookup:    lookup,
		Signals:   bus,
		Reactor:   NewReactor(16),
		PolicyDir: dir,
		DumpPath:  filepath.Join(dir, "dump.json"),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return m, bus, dir
}

// basicPolicy writes a minimal valid zones/fans pair: one zone "left" with a
// default target of 5000 and one fan in it.
func basicPolicy(t *testing.T, dir string) {
	t.Helper()
	writePolicy(t, dir, zonesFile, `[
		{
			"name": "left",
			"poweron_target": 9000,
			"default_floor": 2000,
			"decrease_interval": 30,
			"default_target": 5000
		}
	]`)
	writePolicy(t, dir, fansFile, `[
		{
			"name": "fan0",
			"zone": "left",
			"sensors": ["/sys/sensors/fan0_0"]
		}
	]`)
}
