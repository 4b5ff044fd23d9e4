package control

import (
	"fmt"
	"time"
)

// TimerType distinguishes repeating and one-shot timers.
type TimerType int

const (
	// Repeating timers re-arm at the same interval after every firing.
	Repeating TimerType = iota
	// OneShot timers fire exactly once and remove themselves.
	OneShot
)

// String returns the policy-file spelling of the timer type.
func (t TimerType) String() string {
	if t == OneShot {
		return "oneshot"
	}
	return "repeating"
}

// TimerPayload is what a timer carries into each firing: the groups to
// refresh first, the actions to run after, and the owning event's name.
type TimerPayload struct {
	Refresh bool
	Groups  []Group
	Actions []Action
	Name    string
}

// timerEntry is one live timer. Entries live in the Manager's timer set and
// are removed by oneshot firing or by a reload clearing all timers.
type timerEntry struct {
	typ      TimerType
	interval time.Duration
	payload  TimerPayload
	timer    *time.Timer
}

// AddTimer registers and arms a timer. At most one live timer may exist per
// (type, name) pair; a duplicate is a configuration error.
//
// Expirations are marshalled onto the reactor, so firings never run
// concurrently with each other or with any other Manager work.
func (m *Manager) AddTimer(typ TimerType, interval time.Duration, payload TimerPayload) error {
	for _, e := range m.timers {
		if e.typ == typ && e.payload.Name == payload.Name {
			return fmt.Errorf("%w: %s %q", ErrDuplicateTimer, typ, payload.Name)
		}
	}

	entry := &timerEntry{typ: typ, interval: interval, payload: payload}
	entry.timer = time.AfterFunc(interval, func() {
		m.reactor.Submit(func() { m.timerExpired(entry) })
	})
	m.timers = append(m.timers, entry)
	return nil
}

// timerExpired handles one expiration on the reactor.
//
// Group refresh strictly precedes action execution; a oneshot timer removes
// itself from the live set as its very last step.
func (m *Manager) timerExpired(entry *timerEntry) {
	if !m.timerLive(entry) {
		// Cleared by a reload after the expiration was queued.
		return
	}

	m.rec.Add("timer fired", "name", entry.payload.Name, "type", entry.typ.String())

	if entry.payload.Refresh {
		for _, g := range entry.payload.Groups {
			m.RefreshGroup(g)
		}
	}
	for _, a := range entry.payload.Actions {
		a.Run()
	}

	if entry.typ == Repeating {
		entry.timer.Reset(entry.interval)
		return
	}
	m.removeTimer(entry)
}

func (m *Manager) timerLive(entry *timerEntry) bool {
	for _, e := range m.timers {
		if e == entry {
			return true
		}
	}
	return false
}

func (m *Manager) removeTimer(entry *timerEntry) {
	for i, e := range m.timers {
		if e == entry {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// clearTimers stops and drops every live timer. Reload calls this before
// enabling the new event set; there is no partial-cancellation path.
func (m *Manager) clearTimers() {
	for _, e := range m.timers {
		e.timer.Stop()
	}
	m.timers = nil
}
