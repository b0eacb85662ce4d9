// internal/booking/store.go
package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

// Store is the persistence collaborator for requests and offers. The GORM
// implementation lives in gorm.go; tests use an in-memory one.
type Store interface {
	Request(id uuid.UUID) (*models.ServiceRequest, error) // ErrRequestNotFound
	Offer(id uuid.UUID) (*models.Offer, error)            // ErrOfferNotFound

	CreateRequest(req *models.ServiceRequest) error
	SaveRequest(req *models.ServiceRequest) error

	// CreateOffer persists the offer unless the (request, counterpart) pair
	// already holds a non-terminal offer, in which case errActivePairOffer is
	// returned, or the request is no longer open, in which case a
	// ConflictError is returned. The checks and the insert are atomic.
	CreateOffer(offer *models.Offer) error
	SaveOffer(offer *models.Offer) error

	// AcceptOffer commits a winning accept in one transaction: the request
	// moves from `from` to accepted via compare-and-swap, the offer becomes
	// accepted, every other pending offer on the request is declined and the
	// conversation is opened. Returns false when the CAS loses; then nothing
	// is written. A partial commit is never visible.
	AcceptOffer(offer *models.Offer, from models.RequestStatus) (bool, error)

	// DeclinePendingOffers resolves every pending offer on the request except
	// the given one (uuid.Nil declines all of them).
	DeclinePendingOffers(requestID, except uuid.UUID) error

	// EnsureConversation opens the request's message thread, reusing an
	// existing one on repeat calls.
	EnsureConversation(requestID, clientID, providerID uuid.UUID) (*models.Conversation, error)

	// StaleOfferedRequests lists requests stuck in offered since before the
	// cutoff, for the expiry worker.
	StaleOfferedRequests(cutoff time.Time) ([]models.ServiceRequest, error)
}
