package eventbus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	ID int
}

func TestPublishMatchesHandlerSignature(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	var got []int
	bus.Subscribe(func(e testEvent) {
		got = append(got, e.ID)
	})
	bus.Subscribe(func(s string) {
		t.Fatal("string handler must not fire for testEvent")
	})

	bus.Publish(testEvent{ID: 7})
	require.Equal(t, []int{7}, got)
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	fired := false
	bus.Subscribe(func(e testEvent) { panic("boom") })
	bus.Subscribe(func(e testEvent) { fired = true })

	require.NotPanics(t, func() { bus.Publish(testEvent{ID: 1}) })
	require.True(t, fired, "later handlers still run after a panic")
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	handler := func(e testEvent) {}
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	require.Zero(t, bus.SubscribersCount())
}
