// internal/booking/errors.go
package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

var (
	ErrRequestNotFound = errors.New("booking: request not found")
	ErrOfferNotFound   = errors.New("booking: offer not found")

	// errActivePairOffer is returned by stores when the (request, counterpart)
	// pair already has a non-terminal offer. The service maps it to either a
	// DuplicateApplicationError or a ConflictError depending on direction.
	errActivePairOffer = errors.New("booking: pair already has an active offer")
)

// ValidationError: malformed input on an operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError: the actor is not the party allowed to perform the action.
type AuthorizationError struct {
	Actor  uuid.UUID
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("booking: user %s may not %s", e.Actor, e.Action)
}

// ConflictError: a state-machine race, e.g. the losing side of a double accept.
type ConflictError struct {
	RequestID uuid.UUID
	Reason    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking: conflict on request %s: %s", e.RequestID, e.Reason)
}

// DuplicateApplicationError: a provider applied twice to the same open request.
type DuplicateApplicationError struct {
	RequestID  uuid.UUID
	ProviderID uuid.UUID
}

func (e *DuplicateApplicationError) Error() string {
	return fmt.Sprintf("booking: provider %s already applied to request %s", e.ProviderID, e.RequestID)
}

// TransitionError: the request is not in a state that allows the action.
// No state is mutated when this is returned.
type TransitionError struct {
	From   models.RequestStatus
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking: cannot %s a request in state %q", e.Action, e.From)
}
