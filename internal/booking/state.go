// Package booking owns the lifecycle of a service engagement: request →
// offer → acceptance → work → completion or cancellation. The transition
// table is pure; Service applies it against a Store.
package booking

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

type Action string

const (
	ActionOffer    Action = "offer"
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions is the full request state machine. Cancel is allowed from any
// non-terminal state; everything else is a single forward edge.
var transitions = map[models.RequestStatus]map[Action]models.RequestStatus{
	models.RequestStatusOpen: {
		ActionOffer:  models.RequestStatusOffered,
		ActionAccept: models.RequestStatusAccepted, // accepting a provider's application
		ActionCancel: models.RequestStatusCancelled,
	},
	models.RequestStatusOffered: {
		ActionAccept:  models.RequestStatusAccepted,
		ActionDecline: models.RequestStatusOpen, // request becomes re-offerable
		ActionCancel:  models.RequestStatusCancelled,
	},
	models.RequestStatusAccepted: {
		ActionStart:  models.RequestStatusWorking,
		ActionCancel: models.RequestStatusCancelled,
	},
	models.RequestStatusWorking: {
		ActionComplete: models.RequestStatusCompleted,
		ActionCancel:   models.RequestStatusCancelled,
	},
}

// Next returns the state the action leads to, or a TransitionError naming
// the offending state and attempted action.
func Next(from models.RequestStatus, action Action) (models.RequestStatus, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return from, &TransitionError{From: from, Action: action}
}

// Guard serializes accept attempts per request within one process. The store
// CAS is still the cross-process authority; this keeps the losing goroutine
// from even reaching the store with stale state.
type Guard struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewGuard() *Guard {
	return &Guard{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Do runs fn while holding the per-request lock.
func (g *Guard) Do(requestID uuid.UUID, fn func() error) error {
	g.mu.Lock()
	l, ok := g.locks[requestID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[requestID] = l
	}
	g.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}
