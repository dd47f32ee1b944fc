package eventbus_test

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/pkg/eventbus"
)

type tenantCreated struct {
	Subdomain string
}

type named interface {
	Name() string
}

type namedEvent struct{}

func (namedEvent) Name() string { return "named" }

func newBus() eventbus.EventBus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return eventbus.NewEventPublisher(log)
}

func TestPublish_DeliversToMatchingHandler(t *testing.T) {
	bus := newBus()

	var got []tenantCreated
	bus.Subscribe(func(e tenantCreated) {
		got = append(got, e)
	})
	bus.Subscribe(func(e namedEvent) {
		t.Fatal("handler for a different event type must not run")
	})

	bus.Publish(tenantCreated{Subdomain: "meadow"})

	require.Len(t, got, 1)
	assert.Equal(t, "meadow", got[0].Subdomain)
}

func TestPublish_InterfaceParameterMatchesImplementors(t *testing.T) {
	bus := newBus()

	var got []string
	bus.Subscribe(func(e named) {
		got = append(got, e.Name())
	})

	bus.Publish(namedEvent{})
	bus.Publish(tenantCreated{})

	assert.Equal(t, []string{"named"}, got)
}

func TestPublish_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := newBus()

	var calls int
	bus.Subscribe(func(tenantCreated) { panic("boom") })
	bus.Subscribe(func(tenantCreated) { calls++ })

	assert.NotPanics(t, func() {
		bus.Publish(tenantCreated{})
	})
	assert.Equal(t, 1, calls)
}

func TestPublish_NilAndUnmatchedAreNoOps(t *testing.T) {
	bus := newBus()

	assert.NotPanics(t, func() {
		bus.Publish(nil)
		bus.Publish(tenantCreated{})
	})
}

func TestSubscribe_RejectsNonHandlers(t *testing.T) {
	bus := newBus()

	assert.Panics(t, func() { bus.Subscribe("not a function") })
	assert.Panics(t, func() { bus.Subscribe(func(a, b int) {}) })
}

func TestUnsubscribe_RemovesHandler(t *testing.T) {
	bus := newBus()

	var calls int
	handler := func(tenantCreated) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Publish(tenantCreated{})
	bus.Unsubscribe(handler)
	bus.Publish(tenantCreated{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscribersCount())
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	bus := newBus()
	bus.Subscribe(func(tenantCreated) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(tenantCreated{})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Subscribe(func(tenantCreated) {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, bus.SubscribersCount())
}
