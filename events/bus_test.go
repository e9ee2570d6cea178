package events_test

import (
	"testing"

	"github.com/jrsteele09/go-passwordless/events"
	"github.com/stretchr/testify/require"
)

func TestPublishAuthChangedEmitsBothNames(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.PublishAuthChanged(true)

	first := <-ch
	second := <-ch
	require.Equal(t, events.NameAuthStateChanged, first.Name)
	require.True(t, first.Authenticated)
	require.Equal(t, events.NameAuthChanged, second.Name)
	require.True(t, second.Authenticated)
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	bus.PublishAuthChanged(false)

	_, open := <-ch
	require.False(t, open)
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	// The subscriber buffer holds 8 events; publishing past it must not
	// deadlock.
	for i := 0; i < 20; i++ {
		bus.PublishAuthChanged(i%2 == 0)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := events.NewBus()
	ch, _ := bus.Subscribe()

	bus.Close()

	_, open := <-ch
	require.False(t, open)
}
