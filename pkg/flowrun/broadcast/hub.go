package broadcast

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// Subscriber receives the events of one run. Send must not block for long:
// the run waits for every subscriber on each event. A non-nil error marks
// the subscriber dead; it is removed after the current delivery pass.
type Subscriber interface {
	Send(ctx context.Context, event flowrun.Event) error
}

// Config configures hub behavior.
type Config struct {
	// MaxSubscribersPerRun limits subscriptions per run id.
	// Default: 0 (unlimited)
	MaxSubscribersPerRun int

	// OnError is called for every failed send, before the subscriber is pruned.
	OnError func(runID string, event flowrun.Event, err error)
}

// Hub routes run events to subscribers registered against the run id.
// It is safe for concurrent use: registration may race with delivery, and
// a delivery pass works on a snapshot of the subscriber list.
type Hub struct {
	config Config

	mu   sync.RWMutex
	runs map[string]map[uint64]*Subscription

	nextID atomic.Uint64
}

var (
	_ flowrun.Broadcaster = (*Hub)(nil)
	_ flowrun.RunCloser   = (*Hub)(nil)
)

// NewHub creates an empty hub.
func NewHub(config Config) *Hub {
	return &Hub{
		config: config,
		runs:   make(map[string]map[uint64]*Subscription),
	}
}

// Subscription is a registered subscriber. Unregister removes it.
type Subscription struct {
	id    uint64
	runID string
	sub   Subscriber
	types map[flowrun.EventType]bool
	hub   *Hub
}

// RunID returns the run the subscription listens to.
func (s *Subscription) RunID() string { return s.runID }

// Unregister removes the subscription. Calling it twice is safe.
func (s *Subscription) Unregister() {
	s.hub.remove(s.runID, s.id)
}

func (s *Subscription) matches(t flowrun.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// RegisterOption configures one registration.
type RegisterOption func(*Subscription)

// WithTypes restricts a subscription to the given event types.
func WithTypes(types ...flowrun.EventType) RegisterOption {
	return func(s *Subscription) {
		if len(types) == 0 {
			return
		}
		s.types = make(map[flowrun.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// Register adds a subscriber for a run. The run does not have to exist yet.
func (h *Hub) Register(runID string, sub Subscriber, opts ...RegisterOption) (*Subscription, error) {
	if runID == "" {
		return nil, ErrEmptyRunID
	}
	if sub == nil {
		return nil, ErrNilSubscriber
	}

	s := &Subscription{
		id:    h.nextID.Add(1),
		runID: runID,
		sub:   sub,
		hub:   h,
	}
	for _, opt := range opts {
		opt(s)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.runs[runID]
	if h.config.MaxSubscribersPerRun > 0 && len(subs) >= h.config.MaxSubscribersPerRun {
		return nil, fmt.Errorf("%w: run %s has %d", ErrTooManySubscribers, runID, len(subs))
	}
	if subs == nil {
		subs = make(map[uint64]*Subscription)
		h.runs[runID] = subs
	}
	subs[s.id] = s
	return s, nil
}

// Unregister removes every registration of sub for a run. Subscribers of
// non-comparable types (such as SubscriberFunc) must be removed through
// their Subscription instead.
func (h *Hub) Unregister(runID string, sub Subscriber) {
	if sub == nil || !reflect.TypeOf(sub).Comparable() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.runs[runID]
	for id, s := range subs {
		if reflect.TypeOf(s.sub) == reflect.TypeOf(sub) && s.sub == sub {
			delete(subs, id)
		}
	}
	if len(subs) == 0 {
		delete(h.runs, runID)
	}
}

// Deliver sends event to every live subscriber of runID. Each failure is
// isolated: the remaining subscribers still receive the event, and the
// failed ones are pruned once the pass is complete.
func (h *Hub) Deliver(ctx context.Context, runID string, event flowrun.Event) flowrun.Delivery {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.runs[runID]))
	for _, s := range h.runs[runID] {
		if s.matches(event.Type) {
			subs = append(subs, s)
		}
	}
	h.mu.RUnlock()

	var (
		d    flowrun.Delivery
		errs []error
		dead []uint64
	)
	for _, s := range subs {
		d.Attempted++
		if err := send(ctx, s.sub, event); err != nil {
			d.Failed++
			errs = append(errs, err)
			dead = append(dead, s.id)
			if h.config.OnError != nil {
				h.config.OnError(runID, event, err)
			}
		}
	}

	if len(dead) > 0 {
		h.remove(runID, dead...)
		d.Err = errors.Join(errs...)
	}
	return d
}

// Count returns the number of subscribers registered for a run.
func (h *Hub) Count(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs[runID])
}

// CloseRun drops every subscriber of a run. The engine calls it after the
// run_finished event.
func (h *Hub) CloseRun(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.runs, runID)
}

func (h *Hub) remove(runID string, ids ...uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.runs[runID]
	for _, id := range ids {
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(h.runs, runID)
	}
}

// send calls the subscriber, converting a panic into an error.
func send(ctx context.Context, sub Subscriber, event flowrun.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanic, r)
		}
	}()
	return sub.Send(ctx, event)
}
