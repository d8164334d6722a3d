// Package events broadcasts "data was refreshed" signals to in-process
// subscribers after each sync batch commits.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/wesm/pr-watch/internal/log"
)

// Kind is the kind of batch that produced an event
type Kind string

const (
	KindRepository   Kind = "repository"
	KindPullRequests Kind = "pull_requests"
	KindIssues       Kind = "issues"
	KindSearch       Kind = "search"
	KindReleases     Kind = "releases"
)

// Event announces that a batch finished
type Event struct {
	Kind Kind
	// Scope names what the batch covered, e.g. "octo/hello".
	Scope   string
	BatchID string
	Time    time.Time
	// Err is the batch error; nil when the batch committed.
	Err error
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	Kind  Kind
	Scope string
}

func (f Filter) matches(e Event) bool {
	return (f.Kind == "" || f.Kind == e.Kind) && (f.Scope == "" || f.Scope == e.Scope)
}

const subscriberBuffer = 16

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Bus fans events out to subscribers
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

// New creates an empty bus
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel receiving the events matching filter and a
// function that removes the subscription and closes the channel.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{filter: filter, ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(sub.ch)
		})
	}
}

// Publish delivers e to every matching subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			log.Warn(ctx, "Dropping event for slow subscriber", "kind", e.Kind, "scope", e.Scope)
		}
	}
}
