package booking

// In-memory Store used by the service tests. Mirrors the atomicity the SQL
// implementation gets from transactions and the status CAS.

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

type memStore struct {
	mu         sync.Mutex
	requests   map[uuid.UUID]*models.ServiceRequest
	offers     map[uuid.UUID]*models.Offer
	convs      map[uuid.UUID]*models.Conversation // by request id
	failAccept error                              // force AcceptOffer failure
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[uuid.UUID]*models.ServiceRequest),
		offers:   make(map[uuid.UUID]*models.Offer),
		convs:    make(map[uuid.UUID]*models.Conversation),
	}
}

func (s *memStore) Request(id uuid.UUID) (*models.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *memStore) Offer(id uuid.UUID) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}
	cp := *offer
	return &cp, nil
}

func (s *memStore) CreateRequest(req *models.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *memStore) SaveRequest(req *models.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.UpdatedAt = time.Now()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *memStore) CreateOffer(offer *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[offer.RequestID]
	if !ok {
		return ErrRequestNotFound
	}
	if req.Status != models.RequestStatusOpen {
		return &ConflictError{RequestID: offer.RequestID, Reason: "request is no longer open"}
	}
	for _, o := range s.offers {
		if o.RequestID == offer.RequestID && o.ProviderID == offer.ProviderID &&
			o.Status == models.OfferStatusPending {
			return errActivePairOffer
		}
	}
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	offer.CreatedAt = time.Now()
	cp := *offer
	s.offers[offer.ID] = &cp
	return nil
}

func (s *memStore) SaveOffer(offer *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer.UpdatedAt = time.Now()
	cp := *offer
	s.offers[offer.ID] = &cp
	return nil
}

func (s *memStore) AcceptOffer(offer *models.Offer, from models.RequestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAccept != nil {
		// the whole commit fails before anything is written
		return false, s.failAccept
	}
	req, ok := s.requests[offer.RequestID]
	if !ok {
		return false, ErrRequestNotFound
	}
	if req.Status != from {
		return false, nil
	}
	now := time.Now()
	req.Status = models.RequestStatusAccepted
	req.ServiceProviderID = &offer.ProviderID
	req.TargetProviderID = nil
	req.UpdatedAt = now

	offer.Status = models.OfferStatusAccepted
	offer.UpdatedAt = now
	cp := *offer
	s.offers[offer.ID] = &cp

	for _, o := range s.offers {
		if o.RequestID == offer.RequestID && o.ID != offer.ID && o.Status == models.OfferStatusPending {
			o.Status = models.OfferStatusDeclined
		}
	}
	if _, ok := s.convs[offer.RequestID]; !ok {
		s.convs[offer.RequestID] = &models.Conversation{
			ID:         uuid.New(),
			RequestID:  offer.RequestID,
			ClientID:   offer.ClientID,
			ProviderID: offer.ProviderID,
		}
	}
	return true, nil
}

func (s *memStore) DeclinePendingOffers(requestID, except uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offers {
		if o.RequestID == requestID && o.ID != except && o.Status == models.OfferStatusPending {
			o.Status = models.OfferStatusDeclined
		}
	}
	return nil
}

func (s *memStore) EnsureConversation(requestID, clientID, providerID uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[requestID]; ok {
		cp := *conv
		return &cp, nil
	}
	conv := &models.Conversation{
		ID:         uuid.New(),
		RequestID:  requestID,
		ClientID:   clientID,
		ProviderID: providerID,
	}
	s.convs[requestID] = conv
	cp := *conv
	return &cp, nil
}

func (s *memStore) StaleOfferedRequests(cutoff time.Time) ([]models.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range s.requests {
		if req.Status == models.RequestStatusOffered && !req.UpdatedAt.After(cutoff) {
			out = append(out, *req)
		}
	}
	return out, nil
}

// recordingEvents captures emitted events and notifications for assertions.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	notifs []*models.Notification
}

func (r *recordingEvents) RequestEvent(event string, _ *models.ServiceRequest, _ *models.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) Notify(n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifs = append(r.notifs, n)
}

func (r *recordingEvents) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}
