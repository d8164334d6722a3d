package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFilters(t *testing.T) {
	bus := New()
	ctx := context.Background()

	all, unsubAll := bus.Subscribe(Filter{})
	defer unsubAll()
	prs, unsubPRs := bus.Subscribe(Filter{Kind: KindPullRequests, Scope: "octo/hello"})
	defer unsubPRs()

	bus.Publish(ctx, Event{Kind: KindPullRequests, Scope: "octo/hello"})
	bus.Publish(ctx, Event{Kind: KindPullRequests, Scope: "octo/other"})
	bus.Publish(ctx, Event{Kind: KindIssues, Scope: "octo/hello"})

	assert.Len(t, all, 3)
	require.Len(t, prs, 1)
	e := <-prs
	assert.Equal(t, "octo/hello", e.Scope)
}

func TestPublishDoesNotBlock(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(Filter{Kind: KindSearch})
	defer unsub()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(context.Background(), Event{Kind: KindSearch})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(Filter{})
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(context.Background(), Event{Kind: KindRepository})
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(context.Background(), Event{}) })
}
