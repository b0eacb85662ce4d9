package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

func thread(userID, counterpart uuid.UUID, unread int64, lastAt time.Time) Thread {
	conv := models.Conversation{
		ID:         uuid.New(),
		RequestID:  uuid.New(),
		ClientID:   userID,
		ProviderID: counterpart,
	}
	th := Thread{Conversation: conv, Unread: unread}
	if !lastAt.IsZero() {
		th.LastMessage = &models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			SenderID:       counterpart,
			Text:           "hi",
			CreatedAt:      lastAt,
		}
	}
	return th
}

func TestGroupThreadsSumsUnreadPerCounterpart(t *testing.T) {
	me := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	now := time.Now()

	threads := []Thread{
		thread(me, alice, 2, now.Add(-3*time.Hour)),
		thread(me, alice, 3, now.Add(-1*time.Hour)),
		thread(me, bob, 1, now.Add(-2*time.Hour)),
	}

	groups := GroupThreads(me, threads)
	require.Len(t, groups, 2)

	var total int64
	for _, g := range groups {
		var sum int64
		for _, th := range g.Threads {
			sum += th.Unread
		}
		assert.Equal(t, sum, g.TotalUnread)
		total += g.TotalUnread
	}
	assert.Equal(t, int64(6), total)

	// alice's group carries two request ids, bob's one
	for _, g := range groups {
		switch g.CounterpartID {
		case alice:
			assert.Len(t, g.RequestIDs, 2)
			assert.Equal(t, int64(5), g.TotalUnread)
		case bob:
			assert.Len(t, g.RequestIDs, 1)
			assert.Equal(t, int64(1), g.TotalUnread)
		default:
			t.Fatalf("unexpected counterpart %s", g.CounterpartID)
		}
	}
}

func TestGroupThreadsNewestMessageWinsAndOrders(t *testing.T) {
	me := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	now := time.Now()

	aliceOld := thread(me, alice, 0, now.Add(-5*time.Hour))
	aliceNew := thread(me, alice, 0, now.Add(-10*time.Minute))
	bobMid := thread(me, bob, 0, now.Add(-1*time.Hour))

	groups := GroupThreads(me, []Thread{aliceOld, bobMid, aliceNew})
	require.Len(t, groups, 2)

	// alice's latest message is newer than bob's, so alice sorts first
	assert.Equal(t, alice, groups[0].CounterpartID)
	assert.Equal(t, aliceNew.LastMessage.ID, groups[0].LastMessage.ID)
	assert.Equal(t, bob, groups[1].CounterpartID)
}

func TestGroupThreadsSilentGroupsLast(t *testing.T) {
	me := uuid.New()
	quiet := uuid.New()
	chatty := uuid.New()

	groups := GroupThreads(me, []Thread{
		thread(me, quiet, 0, time.Time{}),
		thread(me, chatty, 0, time.Now()),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, chatty, groups[0].CounterpartID)
	assert.Equal(t, quiet, groups[1].CounterpartID)
	assert.Nil(t, groups[1].LastMessage)
}

func TestGroupThreadsCounterpartFromEitherSide(t *testing.T) {
	me := uuid.New()
	other := uuid.New()

	// one thread where I'm the client, one where I'm the provider
	asClient := thread(me, other, 1, time.Now())
	asProvider := thread(me, other, 2, time.Now())
	asProvider.Conversation.ClientID = other
	asProvider.Conversation.ProviderID = me

	groups := GroupThreads(me, []Thread{asClient, asProvider})
	require.Len(t, groups, 1)
	assert.Equal(t, other, groups[0].CounterpartID)
	assert.Equal(t, int64(3), groups[0].TotalUnread)
}

func TestGroupThreadsEmpty(t *testing.T) {
	assert.Empty(t, GroupThreads(uuid.New(), nil))
}

func TestCountUnread(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	seen := time.Now()

	msgs := []models.Message{
		{SenderID: other, Status: models.MessageStatusDelivered},
		{SenderID: other, Status: models.MessageStatusSeen, SeenAt: &seen},
		{SenderID: me, Status: models.MessageStatusSent}, // own messages never count
		{SenderID: other, Status: models.MessageStatusSent},
		{SenderID: uuid.Nil, Status: models.MessageStatusDelivered}, // system line, counts for nobody
	}
	assert.Equal(t, int64(2), CountUnread(msgs, me))
	assert.Equal(t, int64(1), CountUnread(msgs, other))
	assert.Zero(t, CountUnread(nil, me))
}
