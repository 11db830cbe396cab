// Package apptest provides in-memory transports and a manual clock for
// exercising the registry, rooms and matchmaking without a network.
package apptest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
)

var ErrClosed = errors.New("connection closed")

// Conn records every frame it is asked to send.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Events decodes every recorded frame.
func (c *Conn) Events() []app.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]app.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env app.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Types lists the event types in arrival order.
func (c *Conn) Types() []string {
	var out []string
	for _, e := range c.Events() {
		out = append(out, e.Type)
	}
	return out
}

func (c *Conn) Count(event string) int {
	n := 0
	for _, e := range c.Events() {
		if e.Type == event {
			n++
		}
	}
	return n
}

// Last decodes the payload of the most recent event of the given type into v.
func (c *Conn) Last(event string, v any) bool {
	events := c.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == event {
			return json.Unmarshal(events[i].Payload, v) == nil
		}
	}
	return false
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// Clock fires timers only when told to.
type Clock struct {
	mu     sync.Mutex
	timers []*Timer
}

type Timer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func NewClock() *Clock { return &Clock{} }

func (c *Clock) AfterFunc(d time.Duration, f func()) app.Timer {
	t := &Timer{d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs f even if the timer was stopped, mimicking a timer whose
// callback was already scheduled when Stop was called.
func (t *Timer) Fire() {
	t.mu.Lock()
	t.fired = true
	f := t.f
	t.mu.Unlock()
	f()
}

// FireAll runs every live timer and returns how many fired.
func (c *Clock) FireAll() int {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	n := 0
	for _, t := range timers {
		t.mu.Lock()
		live := !t.stopped && !t.fired
		if live {
			t.fired = true
		}
		t.mu.Unlock()
		if live {
			t.f()
			n++
		}
	}
	return n
}

// Pending counts timers that are neither stopped nor fired.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

// All returns every timer created so far that has not been collected by FireAll.
func (c *Clock) All() []*Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Timer(nil), c.timers...)
}
