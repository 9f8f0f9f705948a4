// Package dispatch distributes lifecycle events from executors and launchers
// to subscribers.
//
// A Dispatcher serves one scope, typically one job. Events are queued in the
// order they are posted and delivered by a single goroutine, so subscriber
// handlers never run concurrently with each other and every subscriber sees
// the events of the scope in post order. Handler errors and panics are
// logged and swallowed; a misbehaving subscriber cannot stop scheduling.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/jobgridgo/internal/ctxlog"
)

// ErrClosed is returned when posting to a closed dispatcher.
var ErrClosed = errors.New("dispatcher closed")

type subscriber struct {
	id       uint64
	name     string
	handlers Handlers
}

// Dispatcher is a per-scope publish/subscribe channel.
type Dispatcher struct {
	ctx   context.Context
	scope string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	subs    []subscriber
	nextID  uint64
	closed  bool
	pending int

	done chan struct{}
}

// New starts a dispatcher for scope. ctx supplies the logger and is handed
// to handlers; its cancellation does not stop delivery.
func New(ctx context.Context, scope string) *Dispatcher {
	d := &Dispatcher{
		ctx:   context.WithoutCancel(ctx),
		scope: scope,
		done:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *Dispatcher) Scope() string {
	return d.scope
}

// Subscribe registers a dispatch table and returns a function that removes
// it again. Events already queued are delivered to the new subscriber too.
func (d *Dispatcher) Subscribe(name string, h Handlers) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, name: name, handlers: h})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Post queues e for delivery. It never blocks on subscribers.
func (d *Dispatcher) Post(e Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.queue = append(d.queue, e)
	d.pending++
	d.cond.Broadcast()
	return nil
}

// Flush blocks until every event posted so far has been delivered.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.cond.Wait()
	}
}

// Close stops accepting events, delivers the ones already queued and
// returns once delivery has finished.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	logger := ctxlog.FromContext(d.ctx).With("dispatcher", d.scope)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			logger.Debug("Dispatcher drained and closed.")
			return
		}
		e := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		subs := append([]subscriber(nil), d.subs...)
		d.mu.Unlock()

		for _, s := range subs {
			if err := d.deliver(s, e); err != nil {
				logger.Error("Subscriber failed to handle event.", "subscriber", s.name, "event", e.Kind().String(), "error", err)
			}
		}

		d.mu.Lock()
		d.pending--
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *Dispatcher) deliver(s subscriber, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return s.handlers.route(d.ctx, e)
}
