// internal/chat/grouping.go
package chat

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

// Thread is one conversation as seen by a particular user.
type Thread struct {
	Conversation models.Conversation `json:"conversation"`
	LastMessage  *models.Message     `json:"last_message,omitempty"`
	Unread       int64               `json:"unread_count"`
}

// GroupedChat collapses all threads the user shares with one counterpart:
// unread counts are summed, the most recent last message wins.
type GroupedChat struct {
	CounterpartID uuid.UUID       `json:"counterpart_id"`
	RequestIDs    []uuid.UUID     `json:"request_ids"`
	Threads       []Thread        `json:"threads"`
	TotalUnread   int64           `json:"total_unread_count"`
	LastMessage   *models.Message `json:"last_message,omitempty"`
}

// GroupThreads groups the user's threads by counterpart identity and orders
// groups by most-recent last message, groups with no messages last. The
// sort is stable for equal timestamps.
func GroupThreads(userID uuid.UUID, threads []Thread) []GroupedChat {
	byCounterpart := make(map[uuid.UUID]*GroupedChat)
	order := make([]uuid.UUID, 0, len(threads))

	for _, th := range threads {
		cp := th.Conversation.Counterpart(userID)
		g, ok := byCounterpart[cp]
		if !ok {
			g = &GroupedChat{CounterpartID: cp}
			byCounterpart[cp] = g
			order = append(order, cp)
		}
		g.RequestIDs = append(g.RequestIDs, th.Conversation.RequestID)
		g.Threads = append(g.Threads, th)
		g.TotalUnread += th.Unread
		if th.LastMessage != nil {
			if g.LastMessage == nil || th.LastMessage.CreatedAt.After(g.LastMessage.CreatedAt) {
				g.LastMessage = th.LastMessage
			}
		}
	}

	out := make([]GroupedChat, 0, len(byCounterpart))
	for _, cp := range order {
		out = append(out, *byCounterpart[cp])
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		switch {
		case li == nil && lj == nil:
			return false
		case lj == nil:
			return true // messages beat silence
		case li == nil:
			return false
		default:
			return li.CreatedAt.After(lj.CreatedAt)
		}
	})
	return out
}

// CountUnread is the unread invariant in function form: messages from the
// counterpart that the participant has not seen yet. System lines carry a
// nil sender and never count as unread for either side.
func CountUnread(msgs []models.Message, participant uuid.UUID) int64 {
	var n int64
	for _, m := range msgs {
		if m.SenderID == uuid.Nil {
			continue
		}
		if m.SenderID != participant && m.Status != models.MessageStatusSeen {
			n++
		}
	}
	return n
}
