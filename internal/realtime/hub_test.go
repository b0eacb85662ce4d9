package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	return hub
}

func register(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.RegisterClient(client)
	require.Eventually(t, func() bool {
		return hub.IsOnline(client.UserID)
	}, time.Second, 5*time.Millisecond)
}

func recv(t *testing.T, client *Client) map[string]any {
	t.Helper()
	select {
	case b := <-client.Send:
		var out map[string]any
		require.NoError(t, json.Unmarshal(b, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHubSendToUserReachesAllConnections(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	other := uuid.New()

	phone := newTestClient(user)
	laptop := newTestClient(user)
	bystander := newTestClient(other)
	register(t, hub, phone)
	register(t, hub, laptop)
	register(t, hub, bystander)

	hub.SendToUser(user, map[string]string{"type": "ping"})

	assert.Equal(t, "ping", recv(t, phone)["type"])
	assert.Equal(t, "ping", recv(t, laptop)["type"])
	select {
	case b := <-bystander.Send:
		t.Fatalf("bystander received %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSendToUsers(t *testing.T) {
	hub := startHub(t)
	a, b := newTestClient(uuid.New()), newTestClient(uuid.New())
	register(t, hub, a)
	register(t, hub, b)

	hub.SendToUsers(map[string]string{"type": "both"}, a.UserID, b.UserID)
	assert.Equal(t, "both", recv(t, a)["type"])
	assert.Equal(t, "both", recv(t, b)["type"])
}

func TestHubDeliveryOrderPerConnection(t *testing.T) {
	hub := startHub(t)
	client := newTestClient(uuid.New())
	register(t, hub, client)

	for i := 0; i < 10; i++ {
		hub.SendToUser(client.UserID, map[string]int{"seq": i})
	}
	for i := 0; i < 10; i++ {
		ev := recv(t, client)
		assert.Equal(t, float64(i), ev["seq"])
	}
}

func TestHubPresence(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	assert.False(t, hub.IsOnline(user))

	phone := newTestClient(user)
	laptop := newTestClient(user)
	register(t, hub, phone)
	register(t, hub, laptop)
	assert.True(t, hub.IsOnline(user))
	assert.Equal(t, 1, hub.OnlineCount())

	hub.UnregisterClient(phone)
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.byUser[user]) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, hub.IsOnline(user), "still one connection left")

	hub.UnregisterClient(laptop)
	require.Eventually(t, func() bool {
		return !hub.IsOnline(user)
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.OnlineCount())
}

func TestHubViewing(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	client := newTestClient(user)
	register(t, hub, client)

	appointment := uuid.New()
	assert.False(t, hub.IsViewing(user, appointment))

	hub.Subscribe(client.ID, appointment)
	assert.True(t, hub.IsViewing(user, appointment))
	assert.False(t, hub.IsViewing(user, uuid.New()), "other appointments stay closed")

	hub.Unsubscribe(client.ID, appointment)
	assert.False(t, hub.IsViewing(user, appointment))

	// viewing state dies with the connection
	hub.Subscribe(client.ID, appointment)
	hub.UnregisterClient(client)
	require.Eventually(t, func() bool {
		return !hub.IsViewing(user, appointment)
	}, time.Second, 5*time.Millisecond)
}

func TestHubSubscribeUnknownConnection(t *testing.T) {
	hub := startHub(t)
	hub.Subscribe("nope", uuid.New()) // must not panic or leak
	assert.False(t, hub.IsViewing(uuid.New(), uuid.New()))
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	hub := startHub(t)
	client := &Client{ID: uuid.New().String(), UserID: uuid.New(), Send: make(chan []byte, 1)}
	register(t, hub, client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			hub.SendToUser(client.UserID, map[string]int{"seq": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a full buffer")
	}
}

func TestTypingExpires(t *testing.T) {
	var mu sync.Mutex
	var events []TypingEvent
	tracker := NewTypingTracker(30*time.Millisecond, func(ev TypingEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	appointment, user := uuid.New(), uuid.New()
	tracker.Start(appointment, user)

	mu.Lock()
	require.Len(t, events, 1)
	assert.True(t, events[0].Typing)
	assert.Equal(t, appointment, events[0].RequestID)
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2 && !events[1].Typing
	}, time.Second, 5*time.Millisecond)
}

func TestTypingRefreshDoesNotDouble(t *testing.T) {
	var mu sync.Mutex
	var events []TypingEvent
	tracker := NewTypingTracker(40*time.Millisecond, func(ev TypingEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	appointment, user := uuid.New(), uuid.New()
	tracker.Start(appointment, user)
	time.Sleep(20 * time.Millisecond)
	tracker.Start(appointment, user) // refresh, no second "on"

	mu.Lock()
	assert.Len(t, events, 1)
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2 && !events[1].Typing
	}, time.Second, 5*time.Millisecond)
}

func TestTypingExplicitStop(t *testing.T) {
	var mu sync.Mutex
	var events []TypingEvent
	tracker := NewTypingTracker(time.Minute, func(ev TypingEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	appointment, user := uuid.New(), uuid.New()
	tracker.Start(appointment, user)
	tracker.Stop(appointment, user)
	tracker.Stop(appointment, user) // second stop is silent

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.False(t, events[1].Typing)
}

func TestTypingStopAllOnDisconnect(t *testing.T) {
	var mu sync.Mutex
	var events []TypingEvent
	tracker := NewTypingTracker(time.Minute, func(ev TypingEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	user := uuid.New()
	first, second := uuid.New(), uuid.New()
	tracker.Start(first, user)
	tracker.Start(second, user)
	tracker.StopAll(user)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	off := 0
	for _, ev := range events {
		if !ev.Typing {
			off++
			assert.Equal(t, user, ev.UserID)
		}
	}
	assert.Equal(t, 2, off)
}
