// internal/booking/service.go
package booking

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/matching"
	"github.com/tukangin-app/tukangin_be/internal/models"
)

// Events receives every committed state change for fan-out. Implementations
// must not block; delivery is best-effort.
type Events interface {
	// RequestEvent fires after a transition commits. offer may be nil.
	RequestEvent(event string, req *models.ServiceRequest, offer *models.Offer)
	// Notify lands an entry in a user's notification feed.
	Notify(n *models.Notification)
}

type nopEvents struct{}

func (nopEvents) RequestEvent(string, *models.ServiceRequest, *models.Offer) {}
func (nopEvents) Notify(*models.Notification)                                {}

type Service struct {
	store  Store
	events Events
	guard  *Guard
}

func NewService(store Store, events Events) *Service {
	if events == nil {
		events = nopEvents{}
	}
	return &Service{store: store, events: events, guard: NewGuard()}
}

type CreateRequestInput struct {
	TypeOfWork    string     `json:"type_of_work"`
	Description   string     `json:"description"`
	Budget        *int64     `json:"budget"`
	BudgetMin     *int64     `json:"budget_min"`
	BudgetMax     *int64     `json:"budget_max"`
	City          string     `json:"city"`
	Lat           *float64   `json:"lat"`
	Lng           *float64   `json:"lng"`
	PreferredDate *time.Time `json:"preferred_date"`
}

func (s *Service) CreateRequest(clientID uuid.UUID, in CreateRequestInput) (*models.ServiceRequest, error) {
	if in.TypeOfWork == "" {
		return nil, &ValidationError{Field: "type_of_work", Reason: "required"}
	}
	for _, b := range []*int64{in.Budget, in.BudgetMin, in.BudgetMax} {
		if b != nil && *b < 0 {
			return nil, &ValidationError{Field: "budget", Reason: "must be non-negative"}
		}
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		return nil, &ValidationError{Field: "budget_range", Reason: "min exceeds max"}
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		return nil, &ValidationError{Field: "location", Reason: "lat and lng must both be set"}
	}
	if in.Lat != nil {
		if err := (matching.Point{Lat: *in.Lat, Lng: *in.Lng}).Valid(); err != nil {
			return nil, &ValidationError{Field: "location", Reason: "coordinates must be finite"}
		}
	}

	req := &models.ServiceRequest{
		OrderCode:     models.GenerateOrderCode(),
		RequesterID:   clientID,
		TypeOfWork:    in.TypeOfWork,
		Description:   in.Description,
		Budget:        in.Budget,
		BudgetMin:     in.BudgetMin,
		BudgetMax:     in.BudgetMax,
		City:          in.City,
		Lat:           in.Lat,
		Lng:           in.Lng,
		PreferredDate: in.PreferredDate,
		Status:        models.RequestStatusOpen,
	}
	if err := s.store.CreateRequest(req); err != nil {
		return nil, err
	}
	s.events.RequestEvent("request_created", req, nil)
	return req, nil
}

// CreateOffer directs an open request at a specific provider (client → provider).
func (s *Service) CreateOffer(clientID, requestID, providerID uuid.UUID) (*models.Offer, error) {
	if providerID == uuid.Nil {
		return nil, &ValidationError{Field: "provider_id", Reason: "required"}
	}

	var offer *models.Offer
	err := s.guard.Do(requestID, func() error {
		req, err := s.store.Request(requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != clientID {
			return &AuthorizationError{Actor: clientID, Action: "offer this request"}
		}
		next, err := Next(req.Status, ActionOffer)
		if err != nil {
			return err
		}

		offer = &models.Offer{
			RequestID:  requestID,
			ClientID:   clientID,
			ProviderID: providerID,
			Direction:  models.DirectionOffered,
			Status:     models.OfferStatusPending,
		}
		if err := s.store.CreateOffer(offer); err != nil {
			if errors.Is(err, errActivePairOffer) {
				return &ConflictError{RequestID: requestID, Reason: "request already has an active offer for this provider"}
			}
			return err
		}

		req.Status = next
		req.TargetProviderID = &providerID
		if err := s.store.SaveRequest(req); err != nil {
			return err
		}

		s.events.RequestEvent("offer_made", req, offer)
		s.events.Notify(notification(providerID, models.NotifOfferMade,
			"You received a job offer", req, offer))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// ApplyToRequest is the provider → client direction. The request stays open;
// the application is an offer awaiting the client's response.
func (s *Service) ApplyToRequest(providerID, requestID uuid.UUID, commissionFee *int64, message string) (*models.Offer, error) {
	var offer *models.Offer
	err := s.guard.Do(requestID, func() error {
		req, err := s.store.Request(requestID)
		if err != nil {
			return err
		}
		if req.RequesterID == providerID {
			return &ValidationError{Field: "provider_id", Reason: "cannot apply to your own request"}
		}
		if req.Status != models.RequestStatusOpen {
			return &TransitionError{From: req.Status, Action: ActionOffer}
		}
		if commissionFee != nil {
			if *commissionFee < 0 {
				return &ValidationError{Field: "commission_fee", Reason: "must be non-negative"}
			}
			if !req.BudgetContains(*commissionFee) {
				return &ValidationError{Field: "commission_fee", Reason: "outside the request budget range"}
			}
		}

		offer = &models.Offer{
			RequestID:     requestID,
			ClientID:      req.RequesterID,
			ProviderID:    providerID,
			Direction:     models.DirectionApplied,
			CommissionFee: commissionFee,
			Message:       message,
			Status:        models.OfferStatusPending,
		}
		if err := s.store.CreateOffer(offer); err != nil {
			if errors.Is(err, errActivePairOffer) {
				return &DuplicateApplicationError{RequestID: requestID, ProviderID: providerID}
			}
			return err
		}

		s.events.RequestEvent("application_made", req, offer)
		s.events.Notify(notification(req.RequesterID, models.NotifApplication,
			"A provider applied to your request", req, offer))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// RespondToOffer accepts or declines a pending offer. Accepting is a CAS on
// the request status: of two concurrent accepts exactly one wins, the loser
// gets a ConflictError and no state moves.
func (s *Service) RespondToOffer(actorID, offerID uuid.UUID, accept bool) (*models.Offer, error) {
	offer, err := s.store.Offer(offerID)
	if err != nil {
		return nil, err
	}

	err = s.guard.Do(offer.RequestID, func() error {
		// re-read under the lock
		offer, err = s.store.Offer(offerID)
		if err != nil {
			return err
		}
		if offer.Status.Terminal() {
			return &ConflictError{RequestID: offer.RequestID, Reason: "offer already resolved"}
		}

		// The recipient responds: the provider for a directed offer, the
		// client for an application.
		recipient := offer.ProviderID
		expectFrom := models.RequestStatusOffered
		if offer.Direction == models.DirectionApplied {
			recipient = offer.ClientID
			expectFrom = models.RequestStatusOpen
		}
		if actorID != recipient {
			return &AuthorizationError{Actor: actorID, Action: "respond to this offer"}
		}

		if accept {
			return s.acceptOffer(offer, expectFrom)
		}
		return s.declineOffer(offer)
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *Service) acceptOffer(offer *models.Offer, expectFrom models.RequestStatus) error {
	// One atomic commit: the CAS, the winning offer, the losing offers and
	// the conversation either all land or none do.
	ok, err := s.store.AcceptOffer(offer, expectFrom)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{RequestID: offer.RequestID, Reason: "request already accepted"}
	}

	req, err := s.store.Request(offer.RequestID)
	if err != nil {
		return err
	}
	s.events.RequestEvent("offer_accepted", req, offer)
	counterpart := offer.ClientID
	if offer.Direction == models.DirectionApplied {
		counterpart = offer.ProviderID
	}
	s.events.Notify(notification(counterpart, models.NotifOfferAccepted,
		"Your offer was accepted", req, offer))
	return nil
}

func (s *Service) declineOffer(offer *models.Offer) error {
	offer.Status = models.OfferStatusDeclined
	if err := s.store.SaveOffer(offer); err != nil {
		return err
	}

	req, err := s.store.Request(offer.RequestID)
	if err != nil {
		return err
	}
	// declining a directed offer returns the request to open
	if offer.Direction == models.DirectionOffered && req.Status == models.RequestStatusOffered {
		next, err := Next(req.Status, ActionDecline)
		if err != nil {
			return err
		}
		req.Status = next
		req.TargetProviderID = nil
		if err := s.store.SaveRequest(req); err != nil {
			return err
		}
	}

	s.events.RequestEvent("offer_declined", req, offer)
	counterpart := offer.ClientID
	if offer.Direction == models.DirectionApplied {
		counterpart = offer.ProviderID
	}
	s.events.Notify(notification(counterpart, models.NotifOfferDeclined,
		"Your offer was declined", req, offer))
	return nil
}

// Start moves an accepted engagement into working. Only the assigned
// provider may start.
func (s *Service) Start(providerID, requestID uuid.UUID) (*models.ServiceRequest, error) {
	return s.providerTransition(providerID, requestID, ActionStart, "request_started")
}

// Complete finishes the work. Only the assigned provider may complete;
// completed is terminal.
func (s *Service) Complete(providerID, requestID uuid.UUID) (*models.ServiceRequest, error) {
	return s.providerTransition(providerID, requestID, ActionComplete, "request_completed")
}

func (s *Service) providerTransition(providerID, requestID uuid.UUID, action Action, event string) (*models.ServiceRequest, error) {
	var req *models.ServiceRequest
	err := s.guard.Do(requestID, func() error {
		var err error
		req, err = s.store.Request(requestID)
		if err != nil {
			return err
		}
		if req.ServiceProviderID == nil || *req.ServiceProviderID != providerID {
			return &AuthorizationError{Actor: providerID, Action: string(action) + " this request"}
		}
		next, err := Next(req.Status, action)
		if err != nil {
			return err
		}
		req.Status = next
		if err := s.store.SaveRequest(req); err != nil {
			return err
		}
		s.events.RequestEvent(event, req, nil)
		s.events.Notify(notification(req.RequesterID, models.NotifRequestUpdate,
			"Your request status changed", req, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel aborts a non-terminal request. Requires requester or admin authority.
func (s *Service) Cancel(actorID, requestID uuid.UUID, isAdmin bool) (*models.ServiceRequest, error) {
	var req *models.ServiceRequest
	err := s.guard.Do(requestID, func() error {
		var err error
		req, err = s.store.Request(requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != actorID && !isAdmin {
			return &AuthorizationError{Actor: actorID, Action: "cancel this request"}
		}
		next, err := Next(req.Status, ActionCancel)
		if err != nil {
			return err
		}
		req.Status = next
		req.TargetProviderID = nil
		if err := s.store.SaveRequest(req); err != nil {
			return err
		}
		if err := s.store.DeclinePendingOffers(requestID, uuid.Nil); err != nil {
			return err
		}
		s.events.RequestEvent("request_cancelled", req, nil)
		if req.ServiceProviderID != nil {
			s.events.Notify(notification(*req.ServiceProviderID, models.NotifRequestUpdate,
				"A request you were working on was cancelled", req, nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ExpireStaleOffers returns requests stuck in offered past maxAge to open,
// declining the pending offer. Used by the background worker.
func (s *Service) ExpireStaleOffers(maxAge time.Duration) (int, error) {
	stale, err := s.store.StaleOfferedRequests(time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		req := &stale[i]
		err := s.guard.Do(req.ID, func() error {
			cur, err := s.store.Request(req.ID)
			if err != nil {
				return err
			}
			if cur.Status != models.RequestStatusOffered {
				return nil // resolved while we were scanning
			}
			if err := s.store.DeclinePendingOffers(cur.ID, uuid.Nil); err != nil {
				return err
			}
			cur.Status = models.RequestStatusOpen
			cur.TargetProviderID = nil
			if err := s.store.SaveRequest(cur); err != nil {
				return err
			}
			expired++
			s.events.RequestEvent("offer_expired", cur, nil)
			s.events.Notify(notification(cur.RequesterID, models.NotifRequestUpdate,
				"Your offer expired without a response", cur, nil))
			return nil
		})
		if err != nil {
			log.Printf("[OfferExpiryWorker] Error expiring request %s: %v", req.ID, err)
		}
	}
	return expired, nil
}

// StartOfferExpiryWorker scans hourly for offers older than maxAge.
func (s *Service) StartOfferExpiryWorker(maxAge time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			log.Println("[OfferExpiryWorker] Scanning for stale offers...")
			if n, err := s.ExpireStaleOffers(maxAge); err != nil {
				log.Printf("[OfferExpiryWorker] Scan failed: %v", err)
			} else if n > 0 {
				log.Printf("[OfferExpiryWorker] Expired %d stale offers", n)
			}
		}
	}()
}

func notification(userID uuid.UUID, typ models.NotificationType, title string, req *models.ServiceRequest, offer *models.Offer) *models.Notification {
	payload := map[string]any{"request_id": req.ID.String()}
	if offer != nil {
		payload["offer_id"] = offer.ID.String()
	}
	return &models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Payload: models.PayloadJSON(payload),
	}
}
