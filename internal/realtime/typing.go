// internal/realtime/typing.go
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypingTTL is how long a typing indicator stays lit without a refresh.
const TypingTTL = time.Second

// TypingEvent is broadcast to the counterpart when an indicator turns
// on or off.
type TypingEvent struct {
	Type      string    `json:"type"` // "typing"
	RequestID uuid.UUID `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`
	Typing    bool      `json:"typing"`
}

type typingKey struct {
	appointment uuid.UUID
	user        uuid.UUID
}

// TypingTracker debounces typing indicators. Start lights the indicator
// and arms an expiry timer; repeated Starts within the TTL just rearm
// it, so the off event fires once when the user actually stops.
type TypingTracker struct {
	ttl    time.Duration
	notify func(TypingEvent)

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
}

func NewTypingTracker(ttl time.Duration, notify func(TypingEvent)) *TypingTracker {
	if ttl <= 0 {
		ttl = TypingTTL
	}
	return &TypingTracker{
		ttl:    ttl,
		notify: notify,
		timers: make(map[typingKey]*time.Timer),
	}
}

func (t *TypingTracker) Start(appointmentID, userID uuid.UUID) {
	key := typingKey{appointment: appointmentID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.ttl)
		return
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.expire(key)
	})
	t.notify(TypingEvent{Type: "typing", RequestID: appointmentID, UserID: userID, Typing: true})
}

// Stop turns the indicator off immediately (the client sent an explicit
// stop or disconnected).
func (t *TypingTracker) Stop(appointmentID, userID uuid.UUID) {
	key := typingKey{appointment: appointmentID, user: userID}

	t.mu.Lock()
	timer, ok := t.timers[key]
	if ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.notify(TypingEvent{Type: "typing", RequestID: appointmentID, UserID: userID, Typing: false})
	}
}

// StopAll clears every indicator the user holds, used on disconnect.
func (t *TypingTracker) StopAll(userID uuid.UUID) {
	t.mu.Lock()
	var keys []typingKey
	for key, timer := range t.timers {
		if key.user == userID {
			timer.Stop()
			delete(t.timers, key)
			keys = append(keys, key)
		}
	}
	t.mu.Unlock()

	for _, key := range keys {
		t.notify(TypingEvent{Type: "typing", RequestID: key.appointment, UserID: key.user, Typing: false})
	}
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.notify(TypingEvent{Type: "typing", RequestID: key.appointment, UserID: key.user, Typing: false})
	}
}
