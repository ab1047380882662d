package client

import (
	"sync"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/metrics"
)

// Reducer folds the event stream into one feature's derived state. Reducers
// receive every event and filter by type themselves.
type Reducer interface {
	Apply(ev event.Event)
}

// DefaultLogCap bounds the event log and the dedup window.
const DefaultLogCap = 50

// Dispatcher is the fan-out hub between the normalizer and the feature
// reducers. It owns the canonical event log view: a bounded ring,
// most-recent-first, which also bounds the dedup window. Events are never
// mutated after normalization.
type Dispatcher struct {
	mu       sync.Mutex
	cap      int
	log      []event.Event
	seen     map[string]struct{}
	seenFIFO []string
	reducers []Reducer
}

// NewDispatcher creates a dispatcher with the given log capacity.
func NewDispatcher(logCap int) *Dispatcher {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	return &Dispatcher{
		cap:  logCap,
		seen: make(map[string]struct{}, logCap),
	}
}

// Subscribe registers a reducer. Delivery order follows registration order;
// subscribe the presence tracker first so liveness is refreshed before any
// per-feature state reads the roster.
func (d *Dispatcher) Subscribe(r Reducer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reducers = append(d.reducers, r)
}

// Unsubscribe removes a reducer.
func (d *Dispatcher) Unsubscribe(r Reducer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.reducers {
		if cur == r {
			d.reducers = append(d.reducers[:i], d.reducers[i+1:]...)
			return
		}
	}
}

// Dispatch deduplicates and fans out one normalized event. It returns false
// when the event id was already seen; duplicate delivery is the expected
// steady state of an at-least-once relay, not an error.
//
// No causal ordering is guaranteed across calls; consumers that need
// temporal order sort by timestamp themselves.
func (d *Dispatcher) Dispatch(ev event.Event) bool {
	d.mu.Lock()
	if _, dup := d.seen[ev.ID]; dup {
		d.mu.Unlock()
		metrics.EventsDedupedTotal.Inc()
		return false
	}
	d.remember(ev.ID)
	d.prepend(ev)

	reducers := make([]Reducer, len(d.reducers))
	copy(reducers, d.reducers)
	d.mu.Unlock()

	metrics.EventsReceivedTotal.WithLabelValues(string(ev.Type)).Inc()

	for _, r := range reducers {
		r.Apply(ev)
	}
	return true
}

// Log returns a snapshot of the event log, most recent first.
func (d *Dispatcher) Log() []event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Event, len(d.log))
	copy(out, d.log)
	return out
}

func (d *Dispatcher) prepend(ev event.Event) {
	if len(d.log) == d.cap {
		d.log = d.log[:d.cap-1]
	}
	d.log = append([]event.Event{ev}, d.log...)
}

// remember records an id in the bounded dedup window.
func (d *Dispatcher) remember(id string) {
	if len(d.seenFIFO) == d.cap {
		oldest := d.seenFIFO[0]
		d.seenFIFO = d.seenFIFO[1:]
		delete(d.seen, oldest)
	}
	d.seen[id] = struct{}{}
	d.seenFIFO = append(d.seenFIFO, id)
}
