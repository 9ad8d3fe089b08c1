package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDropsSlowClientWithoutStalling(t *testing.T) {
	hub := NewWSHub(nil)
	go hub.Run()

	slow := &FeedClient{ID: "slow", Send: make(chan []byte, 1), Hub: hub}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// First message fills the buffer, second finds it full and must evict
	// the client without blocking the hub loop
	hub.broadcast <- feedMessage{payload: []byte(`{"type":"visit"}`)}
	hub.broadcast <- feedMessage{payload: []byte(`{"type":"visit"}`)}

	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 },
		time.Second, 10*time.Millisecond)

	// Send channel is closed once the buffered message is drained
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)

	// The hub still serves registrations afterwards
	fresh := &FeedClient{ID: "fresh", Send: make(chan []byte, 16), Hub: hub}
	hub.register <- fresh
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestHubServiceFilter(t *testing.T) {
	hub := NewWSHub(nil)
	go hub.Run()

	all := &FeedClient{ID: "all", Send: make(chan []byte, 16), Hub: hub}
	scoped := &FeedClient{ID: "scoped", Send: make(chan []byte, 16), Hub: hub, ServiceID: 2}
	hub.register <- all
	hub.register <- scoped
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 },
		time.Second, 10*time.Millisecond)

	hub.broadcast <- feedMessage{serviceID: 1, payload: []byte(`{"service_id":1}`)}
	hub.broadcast <- feedMessage{serviceID: 2, payload: []byte(`{"service_id":2}`)}

	// The unscoped client gets both events
	for i := 0; i < 2; i++ {
		select {
		case <-all.Send:
		case <-time.After(time.Second):
			t.Fatal("unscoped client did not receive event")
		}
	}

	// The scoped client only gets its own service's event
	select {
	case msg := <-scoped.Send:
		assert.JSONEq(t, `{"service_id":2}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("scoped client did not receive event")
	}
	select {
	case msg := <-scoped.Send:
		t.Fatalf("scoped client received unexpected event: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
