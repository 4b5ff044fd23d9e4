package powerstate

import (
	"testing"
)

type fakeSub struct {
	handler   func(topic string, payload []byte)
	cancelled bool
}

func (f *fakeSub) SubscribeSignal(topic string, fn func(string, []byte)) (func(), error) {
	f.handler = fn
	return func() { f.cancelled = true }, nil
}

func TestWatcherReportsTransitions(t *testing.T) {
	sub := &fakeSub{}
	var got []bool
	w := New(sub, "fanctl/signal/power", func(on bool) { got = append(got, on) }, nil)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	sub.handler("fanctl/signal/power", []byte(`{"pgood": true}`))
	sub.handler("fanctl/signal/power", []byte(`{"pgood": true}`))  // repeat, dropped
	sub.handler("fanctl/signal/power", []byte(`{"pgood": false}`))

	want := []bool{true, false}
	if len(got) != len(want) {
		t.Fatalf("callbacks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("callbacks = %v, want %v", got, want)
		}
	}

	on, known := w.State()
	if !known || on {
		t.Errorf("State() = %v, %v; want false, true", on, known)
	}
}

func TestWatcherFirstMessageAlwaysFires(t *testing.T) {
	sub := &fakeSub{}
	fired := 0
	w := New(sub, "t", func(bool) { fired++ }, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// A retained "off" message matches the zero value but must still fire.
	sub.handler("t", []byte(`{"pgood": false}`))
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestWatcherIgnoresMalformed(t *testing.T) {
	sub := &fakeSub{}
	fired := 0
	w := New(sub, "t", func(bool) { fired++ }, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	sub.handler("t", []byte(`not json`))
	if fired != 0 {
		t.Error("malformed message must not fire the callback")
	}

	_, known := w.State()
	if known {
		t.Error("malformed message must not establish a known state")
	}
}

func TestWatcherStop(t *testing.T) {
	sub := &fakeSub{}
	w := New(sub, "t", func(bool) {}, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	w.Stop()
	if !sub.cancelled {
		t.Error("Stop() must cancel the subscription")
	}
	w.Stop() // second call is a no-op
}
