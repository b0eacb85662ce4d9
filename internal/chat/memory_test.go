package chat

// In-memory Store and dispatcher fakes for the service tests.

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*models.Conversation
	msgs  map[uuid.UUID][]models.Message // by conversation id
	fail  bool                           // force AppendMessage failure
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[uuid.UUID]*models.Conversation),
		msgs:  make(map[uuid.UUID][]models.Message),
	}
}

func (s *memStore) addConversation(requestID, clientID, providerID uuid.UUID) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &models.Conversation{
		ID:         uuid.New(),
		RequestID:  requestID,
		ClientID:   clientID,
		ProviderID: providerID,
	}
	s.convs[conv.ID] = conv
	return conv
}

func (s *memStore) Conversation(id uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *memStore) ConversationByRequest(requestID uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.RequestID == requestID {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, ErrConversationNotFound
}

func (s *memStore) ThreadsFor(userID uuid.UUID) ([]Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Thread
	for _, conv := range s.convs {
		if conv.ClientID != userID && conv.ProviderID != userID {
			continue
		}
		th := Thread{Conversation: *conv}
		msgs := s.msgs[conv.ID]
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			th.LastMessage = &last
		}
		th.Unread = CountUnread(msgs, userID)
		out = append(out, th)
	}
	return out, nil
}

func (s *memStore) Messages(convID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.msgs[convID]...), nil
}

func (s *memStore) AppendMessage(msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	conv, ok := s.convs[msg.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}
	now := time.Now()
	if now.Before(conv.LastMessageAt) {
		now = conv.LastMessageAt
	}
	msg.ID = uuid.New()
	msg.CreatedAt = now
	conv.LastMessageAt = now
	s.msgs[conv.ID] = append(s.msgs[conv.ID], *msg)
	return nil
}

func (s *memStore) MarkSeen(convID, participant uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	msgs := s.msgs[convID]
	for i := range msgs {
		if msgs[i].SenderID == uuid.Nil {
			continue
		}
		if msgs[i].SenderID != participant && msgs[i].Status != models.MessageStatusSeen {
			msgs[i].Status = models.MessageStatusSeen
			msgs[i].SeenAt = &at
			changed++
		}
	}
	return changed, nil
}

func (s *memStore) UnreadCount(convID, participant uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CountUnread(s.msgs[convID], participant), nil
}

func (s *memStore) UnreadTotal(userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, conv := range s.convs {
		if conv.ClientID == userID || conv.ProviderID == userID {
			n += CountUnread(s.msgs[id], userID)
		}
	}
	return n, nil
}

// fakeDispatcher records sends and lets tests control presence/viewing.
type fakeDispatcher struct {
	mu      sync.Mutex
	sent    map[uuid.UUID][]MessageEvent
	online  map[uuid.UUID]bool
	viewing map[uuid.UUID]uuid.UUID // user -> appointment
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		sent:    make(map[uuid.UUID][]MessageEvent),
		online:  make(map[uuid.UUID]bool),
		viewing: make(map[uuid.UUID]uuid.UUID),
	}
}

func (d *fakeDispatcher) SendToUsers(event any, userIDs ...uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev, ok := event.(MessageEvent)
	if !ok {
		return
	}
	for _, id := range userIDs {
		d.sent[id] = append(d.sent[id], ev)
	}
}

func (d *fakeDispatcher) IsOnline(userID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[userID]
}

func (d *fakeDispatcher) IsViewing(userID, appointmentID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewing[userID] == appointmentID
}

func (d *fakeDispatcher) eventsFor(userID uuid.UUID) []MessageEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]MessageEvent(nil), d.sent[userID]...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	notifs []*models.Notification
}

func (n *fakeNotifier) Notify(notif *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifs = append(n.notifs, notif)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notifs)
}
